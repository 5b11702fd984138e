package domain

import (
	"time"
)

// PassRecord is the audit form of one surfaced recommendation pass.
type PassRecord struct {
	ID              string               `json:"id"`
	SessionID       string               `json:"session_id"`
	Sequence        uint64               `json:"sequence"`
	Urgency         Urgency              `json:"urgency"`
	Diagnosis       string               `json:"diagnosis"`
	Symptoms        []string             `json:"symptoms"`
	Recommendations []TestRecommendation `json:"recommendations"`
	CreatedAt       time.Time            `json:"created_at"`
}
