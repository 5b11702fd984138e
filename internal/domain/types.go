// Package domain contains the core entities for diagnostic test recommendation:
// the immutable test catalog entry, the per-request patient profile, and the
// derived recommendation and filter types shared by every surface.
package domain

import (
	"errors"
	"math"
	"strings"
)

// TestCategory groups catalog tests by clinical area.
type TestCategory string

const (
	CategoryBlood        TestCategory = "blood"
	CategoryUrine        TestCategory = "urine"
	CategoryImaging      TestCategory = "imaging"
	CategoryCardiac      TestCategory = "cardiac"
	CategoryNeurological TestCategory = "neurological"
	CategoryEndocrine    TestCategory = "endocrine"
	CategoryOther        TestCategory = "other"
)

// TestType describes how a test is ordinarily scheduled.
type TestType string

const (
	TypeRoutine     TestType = "routine"
	TypeSpecialized TestType = "specialized"
	TypeEmergency   TestType = "emergency"
)

// Priority is the intrinsic clinical priority of a test, independent of any patient.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Availability reports whether a test can currently be ordered.
type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityLimited     Availability = "limited"
	AvailabilityUnavailable Availability = "unavailable"
)

// UrgencyClass is the intrinsic turnaround class of a test. It is a property
// of the test itself and unrelated to the patient-level Urgency.
type UrgencyClass string

const (
	UrgencyClassStat    UrgencyClass = "stat"
	UrgencyClassUrgent  UrgencyClass = "urgent"
	UrgencyClassRoutine UrgencyClass = "routine"
)

// Urgency is computed once per patient presentation and applied to every
// test recommended for that patient.
type Urgency string

const (
	UrgencyImmediate  Urgency = "immediate"
	UrgencyWithin24h  Urgency = "within_24h"
	UrgencyWithinWeek Urgency = "within_week"
	UrgencyRoutine    Urgency = "routine"
)

// Gender of the patient as captured by the intake form.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// SortKey selects the ordering applied by the filter pipeline.
type SortKey string

const (
	SortByRelevance SortKey = "relevance"
	SortByCost      SortKey = "cost"
	SortByPriority  SortKey = "priority"
	SortByAccuracy  SortKey = "accuracy"
)

// FilterAll is the wildcard accepted for category and type filters.
const FilterAll = "all"

// Validation errors for catalog and enum integrity
var (
	ErrInvalidCategory     = errors.New("invalid test category")
	ErrInvalidTestType     = errors.New("invalid test type")
	ErrInvalidPriority     = errors.New("invalid priority")
	ErrInvalidAvailability = errors.New("invalid availability")
	ErrInvalidUrgencyClass = errors.New("invalid urgency class")
)

// IsValid reports whether c is one of the known categories.
func (c TestCategory) IsValid() bool {
	switch c {
	case CategoryBlood, CategoryUrine, CategoryImaging, CategoryCardiac,
		CategoryNeurological, CategoryEndocrine, CategoryOther:
		return true
	default:
		return false
	}
}

func (c TestCategory) String() string {
	return string(c)
}

// IsValid reports whether t is one of the known test types.
func (t TestType) IsValid() bool {
	switch t {
	case TypeRoutine, TypeSpecialized, TypeEmergency:
		return true
	default:
		return false
	}
}

func (t TestType) String() string {
	return string(t)
}

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Rank maps the priority to its sort weight: high=3, medium=2, low=1.
// Unknown priorities rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether a is one of the known availability states.
func (a Availability) IsValid() bool {
	switch a {
	case AvailabilityAvailable, AvailabilityLimited, AvailabilityUnavailable:
		return true
	default:
		return false
	}
}

// IsValid reports whether u is one of the known urgency classes.
func (u UrgencyClass) IsValid() bool {
	switch u {
	case UrgencyClassStat, UrgencyClassUrgent, UrgencyClassRoutine:
		return true
	default:
		return false
	}
}

// IsValid reports whether u is one of the patient-level urgencies.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyImmediate, UrgencyWithin24h, UrgencyWithinWeek, UrgencyRoutine:
		return true
	default:
		return false
	}
}

func (u Urgency) String() string {
	return string(u)
}

// Description returns a patient-facing phrase for the urgency.
func (u Urgency) Description() string {
	switch u {
	case UrgencyImmediate:
		return "Seek testing immediately"
	case UrgencyWithin24h:
		return "Schedule testing within 24 hours"
	case UrgencyWithinWeek:
		return "Schedule testing within a week"
	default:
		return "Routine scheduling"
	}
}

// ParseSortKey returns the sort key for s. Unknown values fall back to
// SortByRelevance.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortByRelevance, SortByCost, SortByPriority, SortByAccuracy:
		return k
	default:
		return SortByRelevance
	}
}

// Test is an immutable catalog entry.
type Test struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	LocalizedName        string       `json:"localized_name"`
	Category             TestCategory `json:"category"`
	Type                 TestType     `json:"type"`
	Priority             Priority     `json:"priority"`
	Cost                 float64      `json:"cost"`
	Duration             string       `json:"duration"`
	ReportTime           string       `json:"report_time"`
	Description          string       `json:"description"`
	ClinicalSignificance string       `json:"clinical_significance"`
	PreparationSteps     []string     `json:"preparation_steps"`
	Indications          []string     `json:"indications"`
	Contraindications    []string     `json:"contraindications"`
	NormalRange          string       `json:"normal_range,omitempty"`
	Accuracy             float64      `json:"accuracy"`
	Availability         Availability `json:"availability"`
	SampleType           string       `json:"sample_type"`
	Fasting              bool         `json:"fasting"`
	UrgencyClass         UrgencyClass `json:"urgency_class"`
}

// Validate checks the catalog invariants for a single test.
func (t *Test) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return NewValidationError("id", "is required", t.ID)
	}
	if strings.TrimSpace(t.Name) == "" {
		return NewValidationError("name", "is required", t.Name)
	}
	if t.Cost <= 0 {
		return NewValidationError("cost", "must be positive", t.Cost)
	}
	if t.Accuracy < 0 || t.Accuracy > 100 {
		return NewValidationError("accuracy", "must be between 0 and 100", t.Accuracy)
	}
	if !t.Category.IsValid() {
		return NewValidationError("category", ErrInvalidCategory.Error(), t.Category)
	}
	if !t.Type.IsValid() {
		return NewValidationError("type", ErrInvalidTestType.Error(), t.Type)
	}
	if !t.Priority.IsValid() {
		return NewValidationError("priority", ErrInvalidPriority.Error(), t.Priority)
	}
	if !t.Availability.IsValid() {
		return NewValidationError("availability", ErrInvalidAvailability.Error(), t.Availability)
	}
	if !t.UrgencyClass.IsValid() {
		return NewValidationError("urgency_class", ErrInvalidUrgencyClass.Error(), t.UrgencyClass)
	}
	return nil
}

// VitalSigns is the optional structured subset captured at intake.
type VitalSigns struct {
	BloodPressure   string  `json:"blood_pressure,omitempty"`
	HeartRate       int     `json:"heart_rate,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	RespiratoryRate int     `json:"respiratory_rate,omitempty"`
}

// Patient is the per-request profile. It is never persisted by the engine.
type Patient struct {
	Age                int         `json:"age"`
	Gender             Gender      `json:"gender"`
	Symptoms           []string    `json:"symptoms"`
	MedicalHistory     []string    `json:"medical_history,omitempty"`
	CurrentMedications []string    `json:"current_medications,omitempty"`
	Allergies          []string    `json:"allergies,omitempty"`
	VitalSigns         *VitalSigns `json:"vital_signs,omitempty"`
}

// TestRecommendation is derived per scoring pass and never mutated.
type TestRecommendation struct {
	Test              Test     `json:"test"`
	RelevanceScore    float64  `json:"relevance_score"`
	Reasoning         string   `json:"reasoning"`
	Urgency           Urgency  `json:"urgency"`
	CostEffectiveness float64  `json:"cost_effectiveness"`
	Warnings          []string `json:"warnings,omitempty"`
}

// CostRange bounds the cost filter, inclusive on both ends.
type CostRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FilterParams drives the catalog filter/sort pipeline. Category and Type
// accept FilterAll; unknown values are treated as FilterAll.
type FilterParams struct {
	SearchText      string    `json:"search_text"`
	Category        string    `json:"category"`
	Type            string    `json:"type"`
	SortKey         SortKey   `json:"sort_key"`
	Cost            CostRange `json:"cost"`
	OnlyRecommended bool      `json:"only_recommended"`
}

// DefaultFilterParams shows the whole catalog ordered by relevance with an
// unbounded cost range.
func DefaultFilterParams() FilterParams {
	return FilterParams{
		Category: FilterAll,
		Type:     FilterAll,
		SortKey:  SortByRelevance,
		Cost:     CostRange{Min: 0, Max: math.MaxFloat64},
	}
}

// OrderSummary aggregates a selection for the order-submission flow.
type OrderSummary struct {
	Tests           []Test   `json:"tests"`
	TotalCost       float64  `json:"total_cost"`
	RequiresFasting bool     `json:"requires_fasting"`
	Preparation     []string `json:"preparation"`
	Urgency         Urgency  `json:"urgency"`
}
