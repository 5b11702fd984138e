package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/diagnostic-test-advisor/internal/domain"
)

// Scoring weights
const (
	symptomMatchWeight   = 20.0
	diagnosisMatchWeight = 30.0
	cardiacAgeBonus      = 15.0
	thyroidFemaleBonus   = 10.0

	cardiacAgeThreshold = 40
	thyroidAgeThreshold = 35
)

// Reasoning fragments for demographic adjustments
const (
	reasonCardiacAge    = "age-related cardiac risk"
	reasonThyroidFemale = "female thyroid-risk demographic"
	reasonDefault       = "Recommended for routine health screening."
)

// Score is the outcome of scoring one test against one patient presentation.
type Score struct {
	Test               domain.Test
	RelevanceScore     float64
	Reasoning          string
	MatchedIndications []string
	DiagnosisMatch     bool
	Adjustments        []string
}

// Scorer evaluates catalog tests against a patient's symptoms, diagnosis
// and demographics.
type Scorer struct {
	logger  *logrus.Logger
	urgency []urgencyRule
}

type urgencyRule struct {
	level    domain.Urgency
	symptoms map[string]struct{}
}

// NewScorer creates a scorer using the given urgency symptom sets.
func NewScorer(logger *logrus.Logger, cfg domain.UrgencyConfig) *Scorer {
	return &Scorer{
		logger: logger,
		urgency: []urgencyRule{
			{level: domain.UrgencyImmediate, symptoms: symptomSet(cfg.Immediate)},
			{level: domain.UrgencyWithin24h, symptoms: symptomSet(cfg.Within24h)},
			{level: domain.UrgencyWithinWeek, symptoms: symptomSet(cfg.WithinWeek)},
		},
	}
}

func symptomSet(symptoms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symptoms))
	for _, s := range symptoms {
		if n := normalize(s); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ScoreTest scores test against the patient. It reports false when the test
// matches neither a symptom nor the diagnosis and must be excluded.
func (s *Scorer) ScoreTest(test domain.Test, patient *domain.Patient, diagnosis string) (Score, bool) {
	symptoms := normalizeAll(patient.Symptoms)
	diag := normalize(diagnosis)

	var matched []string
	diagnosisMatch := false
	for _, indication := range test.Indications {
		ind := normalize(indication)
		if ind == "" {
			continue
		}
		for _, sym := range symptoms {
			if strings.Contains(ind, sym) || strings.Contains(sym, ind) {
				matched = append(matched, indication)
				break
			}
		}
		if diag != "" && strings.Contains(diag, ind) {
			diagnosisMatch = true
		}
	}

	if len(matched) == 0 && !diagnosisMatch {
		return Score{}, false
	}

	score := symptomMatchWeight * float64(len(matched))
	if diagnosisMatch {
		score += diagnosisMatchWeight
	}

	var adjustments []string
	if patient.Age > cardiacAgeThreshold && test.Category == domain.CategoryCardiac {
		score += cardiacAgeBonus
		adjustments = append(adjustments, reasonCardiacAge)
	}
	if domain.Gender(normalize(string(patient.Gender))) == domain.GenderFemale && patient.Age > thyroidAgeThreshold &&
		strings.Contains(strings.ToLower(test.Name), "thyroid") {
		score += thyroidFemaleBonus
		adjustments = append(adjustments, reasonThyroidFemale)
	}

	s.logger.WithFields(logrus.Fields{
		"test_id":         test.ID,
		"matches":         len(matched),
		"diagnosis_match": diagnosisMatch,
		"score":           score,
	}).Debug("Scored test")

	return Score{
		Test:               test,
		RelevanceScore:     score,
		Reasoning:          buildReasoning(matched, diagnosisMatch, adjustments),
		MatchedIndications: matched,
		DiagnosisMatch:     diagnosisMatch,
		Adjustments:        adjustments,
	}, true
}

// ClassifyUrgency returns the patient-level urgency. Rules are checked in
// order immediate, within_24h, within_week and the first hit wins.
func (s *Scorer) ClassifyUrgency(symptoms []string) domain.Urgency {
	normalized := normalizeAll(symptoms)
	for _, rule := range s.urgency {
		for _, sym := range normalized {
			if _, ok := rule.symptoms[sym]; ok {
				return rule.level
			}
		}
	}
	return domain.UrgencyRoutine
}

func buildReasoning(matched []string, diagnosisMatch bool, adjustments []string) string {
	var parts []string
	if len(matched) > 0 {
		parts = append(parts, fmt.Sprintf("Indicated for reported symptoms: %s.", strings.Join(matched, ", ")))
	}
	if diagnosisMatch {
		parts = append(parts, "Relevant to the stated diagnosis.")
	}
	if len(adjustments) > 0 {
		parts = append(parts, fmt.Sprintf("Risk factors: %s.", strings.Join(adjustments, ", ")))
	}
	if len(parts) == 0 {
		return reasonDefault
	}
	return strings.Join(parts, " ")
}

// Warnings lists the test's contraindications that match the patient's
// medical history, medications or allergies. Matching uses the same
// bidirectional substring rule as indications.
func Warnings(test domain.Test, patient *domain.Patient) []string {
	var profile []string
	profile = append(profile, normalizeAll(patient.MedicalHistory)...)
	profile = append(profile, normalizeAll(patient.CurrentMedications)...)
	profile = append(profile, normalizeAll(patient.Allergies)...)
	if len(profile) == 0 {
		return nil
	}

	var warnings []string
	for _, contra := range test.Contraindications {
		c := normalize(contra)
		if c == "" {
			continue
		}
		for _, p := range profile {
			if strings.Contains(c, p) || strings.Contains(p, c) {
				warnings = append(warnings, fmt.Sprintf("contraindicated: %s", contra))
				break
			}
		}
	}
	return warnings
}

// normalizeAll lowercases and trims values, dropping empty entries.
func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if n := normalize(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// mergeSymptoms returns the union of both lists in first-seen order,
// de-duplicated case-insensitively.
func mergeSymptoms(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			n := normalize(s)
			if n == "" {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
