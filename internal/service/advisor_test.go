package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/diagnostic-test-advisor/internal/cache"
	"github.com/diagnostic-test-advisor/internal/catalog"
	"github.com/diagnostic-test-advisor/internal/domain"
	"github.com/diagnostic-test-advisor/internal/orders"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) ([]domain.TestRecommendation, bool) {
	args := m.Called(ctx, key)
	recs, _ := args.Get(0).([]domain.TestRecommendation)
	return recs, args.Bool(1)
}

func (m *mockCache) Set(ctx context.Context, key string, recs []domain.TestRecommendation) error {
	args := m.Called(ctx, key, recs)
	return args.Error(0)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordPass(ctx context.Context, record *domain.PassRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockRecorder) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.PassRecord, error) {
	args := m.Called(ctx, sessionID, limit)
	records, _ := args.Get(0).([]*domain.PassRecord)
	return records, args.Error(1)
}

func newDefaultAdvisor(t *testing.T, opts ...Option) *Advisor {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return NewAdvisor(newTestLogger(), cat, domain.DefaultUrgencyConfig(), opts...)
}

func TestAdvisor_ComputeRecommendations_Scenarios(t *testing.T) {
	ecg := makeTest("ecg", domain.CategoryCardiac, 250, 88, "chest pain", "palpitations")
	cat := newTestCatalog(t, infectionTest(), ecg)
	advisor := NewAdvisor(newTestLogger(), cat, domain.DefaultUrgencyConfig())
	ctx := context.Background()

	t.Run("symptom match", func(t *testing.T) {
		recs, urgency := advisor.ComputeRecommendations(ctx, RecommendRequest{
			Patient: domain.Patient{Age: 30, Gender: domain.GenderMale, Symptoms: []string{"fever"}},
		})

		require.Len(t, recs, 1)
		assert.Equal(t, "blood-panel", recs[0].Test.ID)
		assert.Equal(t, 20.0, recs[0].RelevanceScore)
		assert.Equal(t, domain.UrgencyWithin24h, urgency)
		assert.Equal(t, domain.UrgencyWithin24h, recs[0].Urgency)
		assert.InDelta(t, 95.0*20/300, recs[0].CostEffectiveness, 1e-9)
	})

	t.Run("diagnosis match", func(t *testing.T) {
		recs, urgency := advisor.ComputeRecommendations(ctx, RecommendRequest{
			Patient:   domain.Patient{Age: 45},
			Diagnosis: "suspected infection",
		})

		require.Len(t, recs, 1)
		assert.Equal(t, 30.0, recs[0].RelevanceScore)
		assert.Equal(t, domain.UrgencyRoutine, urgency)
	})

	t.Run("cardiac bonus", func(t *testing.T) {
		recs, urgency := advisor.ComputeRecommendations(ctx, RecommendRequest{
			Patient:  domain.Patient{Age: 50},
			Symptoms: []string{"chest pain"},
		})

		require.Len(t, recs, 1)
		assert.Equal(t, "ecg", recs[0].Test.ID)
		assert.Equal(t, 35.0, recs[0].RelevanceScore)
		assert.Equal(t, domain.UrgencyImmediate, urgency)
	})

	t.Run("empty input", func(t *testing.T) {
		recs, urgency := advisor.ComputeRecommendations(ctx, RecommendRequest{})

		assert.Empty(t, recs)
		assert.Equal(t, domain.UrgencyRoutine, urgency)
	})

	t.Run("negative age", func(t *testing.T) {
		recs, _ := advisor.ComputeRecommendations(ctx, RecommendRequest{
			Patient: domain.Patient{Age: -1, Symptoms: []string{"fever"}},
		})

		assert.NotNil(t, recs)
		assert.Empty(t, recs)
	})
}

func TestAdvisor_ComputeRecommendations_Properties(t *testing.T) {
	advisor := newDefaultAdvisor(t)
	ctx := context.Background()

	req := RecommendRequest{
		Patient: domain.Patient{
			Age:      52,
			Gender:   domain.GenderFemale,
			Symptoms: []string{"fever", "fatigue", "chest pain", "shortness of breath", "weakness", "diabetes"},
		},
		Diagnosis: "possible heart disease with infection",
	}

	recs, urgency := advisor.ComputeRecommendations(ctx, req)

	assert.LessOrEqual(t, len(recs), MaxRecommendations)
	assert.Equal(t, domain.UrgencyImmediate, urgency)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].RelevanceScore, recs[i].RelevanceScore)
	}

	// Every surfaced test matched a symptom or the diagnosis
	scorer := newTestScorer()
	patient := req.Patient
	for _, rec := range recs {
		_, ok := scorer.ScoreTest(rec.Test, &patient, req.Diagnosis)
		assert.True(t, ok, "test %s should not have been recommended", rec.Test.ID)
		assert.GreaterOrEqual(t, rec.CostEffectiveness, 0.0)
	}

	// Deterministic across passes
	again, _ := advisor.ComputeRecommendations(ctx, req)
	assert.Equal(t, recIDs(recs), recIDs(again))
}

func TestAdvisor_ComputeRecommendations_Cache(t *testing.T) {
	recCache := &mockCache{}
	advisor := newDefaultAdvisor(t, WithCache(recCache))
	ctx := context.Background()
	req := RecommendRequest{Patient: domain.Patient{Age: 30, Symptoms: []string{"fever"}}}

	recCache.On("Get", ctx, mock.AnythingOfType("string")).Return(nil, false).Once()
	recCache.On("Set", ctx, mock.AnythingOfType("string"), mock.Anything).Return(errors.New("redis down")).Once()

	recs, _ := advisor.ComputeRecommendations(ctx, req)
	assert.NotEmpty(t, recs)

	cached := []domain.TestRecommendation{{Test: domain.Test{ID: "cached"}, RelevanceScore: 99}}
	recCache.On("Get", ctx, mock.AnythingOfType("string")).Return(cached, true).Once()

	got, _ := advisor.ComputeRecommendations(ctx, req)
	assert.Equal(t, cached, got)
	recCache.AssertExpectations(t)
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("cfg", &domain.Patient{Age: 30, Gender: "Female", Symptoms: []string{"Fever", "cough"}}, "Flu")
	b := cacheKey("cfg", &domain.Patient{Age: 30, Gender: "female", Symptoms: []string{"cough", "fever"}}, " flu ")
	c := cacheKey("cfg", &domain.Patient{Age: 31, Gender: "female", Symptoms: []string{"cough", "fever"}}, "flu")
	d := cacheKey("other", &domain.Patient{Age: 30, Gender: "female", Symptoms: []string{"cough", "fever"}}, "flu")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Contains(t, a, "recs:cfg:")
}

func TestCacheKey_ScopedByConfiguration(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	patient := &domain.Patient{Age: 30, Symptoms: []string{"fever"}}

	base := NewAdvisor(newTestLogger(), cat, domain.DefaultUrgencyConfig())
	same := NewAdvisor(newTestLogger(), cat, domain.DefaultUrgencyConfig())
	reordered := domain.DefaultUrgencyConfig()
	reordered.Within24h = []string{"Severe Pain", "fever"}
	otherUrgency := domain.DefaultUrgencyConfig()
	otherUrgency.Immediate = append(otherUrgency.Immediate, "fever")
	otherCatalog := newTestCatalog(t, infectionTest())

	tests := []struct {
		name    string
		advisor *Advisor
		shared  bool
	}{
		{"identical configuration", same, true},
		{"reordered urgency set", NewAdvisor(newTestLogger(), cat, reordered), true},
		{"different urgency set", NewAdvisor(newTestLogger(), cat, otherUrgency), false},
		{"different catalog", NewAdvisor(newTestLogger(), otherCatalog, domain.DefaultUrgencyConfig()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			want := cacheKey(base.fingerprint, patient, "")
			got := cacheKey(tt.advisor.fingerprint, patient, "")

			// Assert
			if tt.shared {
				assert.Equal(t, want, got)
			} else {
				assert.NotEqual(t, want, got)
			}
		})
	}
}

func TestAdvisor_CacheStats(t *testing.T) {
	without := newDefaultAdvisor(t)
	_, ok := without.CacheStats()
	assert.False(t, ok)

	mem := cache.NewMemoryCache(10, time.Minute)
	advisor := newDefaultAdvisor(t, WithCache(mem))
	ctx := context.Background()
	req := RecommendRequest{Patient: domain.Patient{Age: 30, Symptoms: []string{"fever"}}}

	// Act
	advisor.ComputeRecommendations(ctx, req)
	advisor.ComputeRecommendations(ctx, req)
	stats, ok := advisor.CacheStats()

	// Assert
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestAdvisor_RunPass(t *testing.T) {
	recorder := &mockRecorder{}
	advisor := newDefaultAdvisor(t, WithPassRecorder(recorder))
	tracker := NewPassTracker()
	ctx := context.Background()

	recorder.On("RecordPass", ctx, mock.MatchedBy(func(r *domain.PassRecord) bool {
		return r.SessionID == "s1" && r.Sequence == 1 && r.Urgency == domain.UrgencyWithin24h
	})).Return(nil).Once()

	result, surfaced := advisor.RunPass(ctx, "s1", tracker, RecommendRequest{
		Patient: domain.Patient{Age: 30, Symptoms: []string{"fever"}},
	})

	require.True(t, surfaced)
	assert.Equal(t, uint64(1), result.Sequence)
	assert.NotEmpty(t, result.Recommendations)
	recorder.AssertExpectations(t)

	latest, ok := tracker.Latest()
	require.True(t, ok)
	assert.Same(t, result, latest)
}

func TestAdvisor_RunPass_Superseded(t *testing.T) {
	advisor := newDefaultAdvisor(t)
	tracker := NewPassTracker()
	ctx := context.Background()

	// A later request is begun while this one is in flight
	superseding := &supersedingCache{tracker: tracker}
	advisor.cache = superseding

	result, surfaced := advisor.RunPass(ctx, "s1", tracker, RecommendRequest{
		Patient: domain.Patient{Age: 30, Symptoms: []string{"fever"}},
	})

	assert.False(t, surfaced)
	assert.Equal(t, uint64(1), result.Sequence)
	_, ok := tracker.Latest()
	assert.False(t, ok)
}

// supersedingCache begins a newer pass during the cache lookup.
type supersedingCache struct {
	tracker *PassTracker
}

func (c *supersedingCache) Get(context.Context, string) ([]domain.TestRecommendation, bool) {
	c.tracker.Begin()
	return nil, false
}

func (c *supersedingCache) Set(context.Context, string, []domain.TestRecommendation) error {
	return nil
}

func TestAdvisor_History(t *testing.T) {
	ctx := context.Background()

	advisor := newDefaultAdvisor(t)
	records, err := advisor.History(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	recorder := &mockRecorder{}
	recorder.On("ListBySession", ctx, "s1", 10).Return(nil, fmt.Errorf("pool closed"))
	advisor = newDefaultAdvisor(t, WithPassRecorder(recorder))

	_, err = advisor.History(ctx, "s1", 10)
	assert.Error(t, err)
}

func TestAdvisor_ViewTests(t *testing.T) {
	advisor := newDefaultAdvisor(t)
	ctx := context.Background()

	recs, _ := advisor.ComputeRecommendations(ctx, RecommendRequest{
		Patient: domain.Patient{Age: 30, Symptoms: []string{"fever"}},
	})

	params := domain.DefaultFilterParams()
	params.OnlyRecommended = true
	view := advisor.ViewTests(params, recs)
	assert.ElementsMatch(t, recIDs(recs), ids(view))

	params = domain.DefaultFilterParams()
	assert.Len(t, advisor.ViewTests(params, nil), len(advisor.Catalog()))

	params.Cost = domain.CostRange{Min: 1000, Max: 0}
	assert.Empty(t, advisor.ViewTests(params, recs))
}

func TestAdvisor_SelectTest(t *testing.T) {
	advisor := newDefaultAdvisor(t)
	sel := NewSelectionState()

	added, err := advisor.SelectTest(sel, "cbc")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = advisor.SelectTest(sel, "cbc")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []string{"cbc"}, sel.Selected())

	_, err = advisor.SelectTest(sel, "unknown")
	assert.ErrorIs(t, err, domain.ErrTestNotFound)
	assert.False(t, advisor.IsTestSelected(sel, "unknown"))
	assert.True(t, advisor.IsTestSelected(sel, "cbc"))
}

func TestAdvisor_Summarize(t *testing.T) {
	advisor := newDefaultAdvisor(t)
	sel := NewSelectionState()
	sel.Select("lipid-profile")
	sel.Select("cbc")
	sel.Select("fasting-glucose")

	summary := advisor.Summarize(sel, domain.UrgencyWithinWeek)

	assert.Equal(t, []string{"lipid-profile", "cbc", "fasting-glucose"}, ids(summary.Tests))
	assert.Equal(t, 950.0, summary.TotalCost)
	assert.True(t, summary.RequiresFasting)
	assert.Equal(t, domain.UrgencyWithinWeek, summary.Urgency)
	assert.Contains(t, summary.Preparation, "Fast for 10-12 hours")
	assert.Contains(t, summary.Preparation, "No special preparation required")

	empty := advisor.Summarize(NewSelectionState(), "bogus")
	assert.Empty(t, empty.Tests)
	assert.Equal(t, domain.UrgencyRoutine, empty.Urgency)
}

func TestAdvisor_SubmitOrder(t *testing.T) {
	store, err := orders.NewSQLiteStore(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	defer store.Close()

	advisor := newDefaultAdvisor(t, WithOrderStore(store))
	ctx := context.Background()

	_, err = advisor.SubmitOrder(ctx, "s1", NewSelectionState(), domain.UrgencyRoutine, "")
	assert.ErrorIs(t, err, domain.ErrEmptySelection)

	sel := NewSelectionState()
	sel.Select("ecg")
	sel.Select("troponin")

	order, err := advisor.SubmitOrder(ctx, "s1", sel, domain.UrgencyImmediate, "walk-in")
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, []string{"ecg", "troponin"}, order.TestIDs)
	assert.Equal(t, 1450.0, order.TotalCost)

	listed, err := advisor.ListOrders(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, order.ID, listed[0].ID)
}

func TestAdvisor_SubmitOrderWithoutStore(t *testing.T) {
	advisor := newDefaultAdvisor(t)
	sel := NewSelectionState()
	sel.Select("cbc")

	_, err := advisor.SubmitOrder(context.Background(), "s1", sel, domain.UrgencyRoutine, "")
	assert.Error(t, err)
}
