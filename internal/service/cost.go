package service

import (
	"github.com/diagnostic-test-advisor/internal/domain"
)

// CostEffectiveness is accuracy × relevance / cost. It is a ranking aid with
// no clinical meaning and is never presented as a probability.
func CostEffectiveness(test domain.Test, relevanceScore float64) float64 {
	if test.Cost <= 0 || relevanceScore <= 0 || test.Accuracy <= 0 {
		return 0
	}
	return test.Accuracy * relevanceScore / test.Cost
}
