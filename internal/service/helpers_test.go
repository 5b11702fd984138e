package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/diagnostic-test-advisor/internal/catalog"
	"github.com/diagnostic-test-advisor/internal/domain"
)

func newTestLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func makeTest(id string, category domain.TestCategory, cost, accuracy float64, indications ...string) domain.Test {
	return domain.Test{
		ID:           id,
		Name:         id,
		Category:     category,
		Type:         domain.TypeRoutine,
		Priority:     domain.PriorityMedium,
		Cost:         cost,
		Accuracy:     accuracy,
		Availability: domain.AvailabilityAvailable,
		UrgencyClass: domain.UrgencyClassRoutine,
		Indications:  indications,
	}
}

// infectionTest is the blood test used by the worked scoring examples.
func infectionTest() domain.Test {
	return makeTest("blood-panel", domain.CategoryBlood, 300, 95, "fever", "infection")
}

func newTestCatalog(t *testing.T, tests ...domain.Test) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(tests)
	require.NoError(t, err)
	return c
}

func ids(tests []domain.Test) []string {
	out := make([]string, len(tests))
	for i, t := range tests {
		out[i] = t.ID
	}
	return out
}

func recIDs(recs []domain.TestRecommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Test.ID
	}
	return out
}
