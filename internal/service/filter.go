package service

import (
	"math"
	"sort"
	"strings"

	"github.com/diagnostic-test-advisor/internal/domain"
)

// FilterAndSort runs the view pipeline over source (the catalog, in catalog
// order): source selection, text search, category, type, cost range, then a
// stable sort. It never fails; malformed params yield an empty or unfiltered
// view as appropriate.
func FilterAndSort(source []domain.Test, recs []domain.TestRecommendation, params domain.FilterParams) []domain.Test {
	if !validCostRange(params.Cost) {
		return []domain.Test{}
	}

	working := selectSource(source, recs, params.OnlyRecommended)

	search := normalize(params.SearchText)
	category := categoryFilter(params.Category)
	testType := typeFilter(params.Type)

	out := make([]domain.Test, 0, len(working))
	for _, t := range working {
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		if testType != "" && t.Type != testType {
			continue
		}
		if t.Cost < params.Cost.Min || t.Cost > params.Cost.Max {
			continue
		}
		out = append(out, t)
	}

	sortTests(out, recs, params)
	return out
}

func validCostRange(r domain.CostRange) bool {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
		return false
	}
	return r.Min <= r.Max
}

// selectSource returns the working set. With onlyRecommended it is the
// recommended tests arranged in catalog order, so later stable sorts break
// ties by catalog position; recommended tests unknown to source follow in
// recommendation order.
func selectSource(source []domain.Test, recs []domain.TestRecommendation, onlyRecommended bool) []domain.Test {
	if !onlyRecommended {
		out := make([]domain.Test, len(source))
		copy(out, source)
		return out
	}
	if len(recs) == 0 {
		return nil
	}

	recommended := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		recommended[r.Test.ID] = struct{}{}
	}

	out := make([]domain.Test, 0, len(recs))
	placed := make(map[string]struct{}, len(recs))
	for _, t := range source {
		if _, ok := recommended[t.ID]; !ok {
			continue
		}
		if _, dup := placed[t.ID]; dup {
			continue
		}
		placed[t.ID] = struct{}{}
		out = append(out, t)
	}
	for _, r := range recs {
		if _, ok := placed[r.Test.ID]; ok {
			continue
		}
		placed[r.Test.ID] = struct{}{}
		out = append(out, r.Test)
	}
	return out
}

func matchesSearch(t domain.Test, search string) bool {
	return strings.Contains(strings.ToLower(t.Name), search) ||
		strings.Contains(strings.ToLower(t.LocalizedName), search) ||
		strings.Contains(strings.ToLower(t.Description), search)
}

// categoryFilter returns the category to keep, or "" for no filtering.
// Unknown values fail open.
func categoryFilter(value string) domain.TestCategory {
	c := domain.TestCategory(normalize(value))
	if !c.IsValid() {
		return ""
	}
	return c
}

// typeFilter returns the type to keep, or "" for no filtering.
func typeFilter(value string) domain.TestType {
	t := domain.TestType(normalize(value))
	if !t.IsValid() {
		return ""
	}
	return t
}

func sortTests(tests []domain.Test, recs []domain.TestRecommendation, params domain.FilterParams) {
	var less func(a, b domain.Test) bool

	switch domain.ParseSortKey(string(params.SortKey)) {
	case domain.SortByCost:
		less = func(a, b domain.Test) bool { return a.Cost < b.Cost }
	case domain.SortByPriority:
		less = func(a, b domain.Test) bool { return a.Priority.Rank() > b.Priority.Rank() }
	case domain.SortByAccuracy:
		less = byAccuracy
	default:
		if !params.OnlyRecommended {
			less = byAccuracy
			break
		}
		scores := make(map[string]float64, len(recs))
		for _, r := range recs {
			if _, seen := scores[r.Test.ID]; !seen {
				scores[r.Test.ID] = r.RelevanceScore
			}
		}
		less = func(a, b domain.Test) bool { return scores[a.ID] > scores[b.ID] }
	}

	sort.SliceStable(tests, func(i, j int) bool {
		return less(tests[i], tests[j])
	})
}

func byAccuracy(a, b domain.Test) bool {
	return a.Accuracy > b.Accuracy
}
