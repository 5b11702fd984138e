package service

import (
	"sort"

	"github.com/diagnostic-test-advisor/internal/domain"
)

// MaxRecommendations caps every ranked recommendation list.
const MaxRecommendations = 8

// Rank orders recommendations by descending relevance score and truncates to
// MaxRecommendations. Ties keep their input (catalog) order. The input slice
// is not modified.
func Rank(scored []domain.TestRecommendation) []domain.TestRecommendation {
	ranked := make([]domain.TestRecommendation, len(scored))
	copy(ranked, scored)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})

	if len(ranked) > MaxRecommendations {
		ranked = ranked[:MaxRecommendations]
	}
	return ranked
}
