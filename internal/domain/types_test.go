package domain

import (
	"math"
	"testing"
)

func TestCategoryConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    TestCategory
		expected string
	}{
		{"Blood", CategoryBlood, "blood"},
		{"Urine", CategoryUrine, "urine"},
		{"Imaging", CategoryImaging, "imaging"},
		{"Cardiac", CategoryCardiac, "cardiac"},
		{"Neurological", CategoryNeurological, "neurological"},
		{"Endocrine", CategoryEndocrine, "endocrine"},
		{"Other", CategoryOther, "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.value)
			}
		})
	}

	if TestCategory("dental").IsValid() {
		t.Error("Unknown category should not be valid")
	}
}

func TestPriorityRank(t *testing.T) {
	tests := []struct {
		priority Priority
		expected int
	}{
		{PriorityHigh, 3},
		{PriorityMedium, 2},
		{PriorityLow, 1},
		{Priority("unknown"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			if got := tt.priority.Rank(); got != tt.expected {
				t.Errorf("Expected rank %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestParseSortKey(t *testing.T) {
	tests := []struct {
		input    string
		expected SortKey
	}{
		{"relevance", SortByRelevance},
		{"cost", SortByCost},
		{"PRIORITY", SortByPriority},
		{" accuracy ", SortByAccuracy},
		{"", SortByRelevance},
		{"popularity", SortByRelevance},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseSortKey(tt.input); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestUrgencyIsValid(t *testing.T) {
	for _, u := range []Urgency{UrgencyImmediate, UrgencyWithin24h, UrgencyWithinWeek, UrgencyRoutine} {
		if !u.IsValid() {
			t.Errorf("Expected %s to be valid", u)
		}
		if u.Description() == "" {
			t.Errorf("Expected description for %s", u)
		}
	}
	if Urgency("stat").IsValid() {
		t.Error("Test-level urgency class must not be a valid patient urgency")
	}
}

func validTest() Test {
	return Test{
		ID:           "cbc",
		Name:         "Complete Blood Count",
		Category:     CategoryBlood,
		Type:         TypeRoutine,
		Priority:     PriorityHigh,
		Cost:         300,
		Accuracy:     95,
		Availability: AvailabilityAvailable,
		UrgencyClass: UrgencyClassRoutine,
		Indications:  []string{"fever", "infection"},
	}
}

func TestTestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Test)
		field   string
		wantErr bool
	}{
		{"valid", func(*Test) {}, "", false},
		{"missing id", func(tt *Test) { tt.ID = " " }, "id", true},
		{"missing name", func(tt *Test) { tt.Name = "" }, "name", true},
		{"zero cost", func(tt *Test) { tt.Cost = 0 }, "cost", true},
		{"negative cost", func(tt *Test) { tt.Cost = -10 }, "cost", true},
		{"accuracy above 100", func(tt *Test) { tt.Accuracy = 100.5 }, "accuracy", true},
		{"negative accuracy", func(tt *Test) { tt.Accuracy = -1 }, "accuracy", true},
		{"bad category", func(tt *Test) { tt.Category = "dental" }, "category", true},
		{"bad type", func(tt *Test) { tt.Type = "elective" }, "type", true},
		{"bad priority", func(tt *Test) { tt.Priority = "urgent" }, "priority", true},
		{"bad availability", func(tt *Test) { tt.Availability = "soon" }, "availability", true},
		{"bad urgency class", func(tt *Test) { tt.UrgencyClass = "immediate" }, "urgency_class", true},
		{"boundary accuracy", func(tt *Test) { tt.Accuracy = 100 }, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test := validTest()
			tt.mutate(&test)

			err := test.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				verr, ok := err.(*ValidationError)
				if !ok {
					t.Fatalf("Expected *ValidationError, got %T", err)
				}
				if verr.Field != tt.field {
					t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
				}
			}
		})
	}
}

func TestDefaultFilterParams(t *testing.T) {
	params := DefaultFilterParams()

	if params.Category != FilterAll || params.Type != FilterAll {
		t.Errorf("Expected wildcard category and type, got %s/%s", params.Category, params.Type)
	}
	if params.SortKey != SortByRelevance {
		t.Errorf("Expected relevance sort, got %s", params.SortKey)
	}
	if params.Cost.Min != 0 || params.Cost.Max != math.MaxFloat64 {
		t.Errorf("Expected unbounded cost range, got %+v", params.Cost)
	}
	if params.OnlyRecommended {
		t.Error("Expected full catalog by default")
	}
}
