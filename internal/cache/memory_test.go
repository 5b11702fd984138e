package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnostic-test-advisor/internal/domain"
)

func sampleRecs() []domain.TestRecommendation {
	return []domain.TestRecommendation{
		{Test: domain.Test{ID: "cbc", Name: "Complete Blood Count"}, RelevanceScore: 20, Urgency: domain.UrgencyWithin24h},
	}
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", sampleRecs()))

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "cbc", got[0].Test.ID)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestMemoryCache_EvictsBySize(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, sampleRecs()))
	}

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Stats().Size)
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache(10, 20*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", sampleRecs()))

	time.Sleep(60 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_Purge(t *testing.T) {
	c := NewMemoryCache(0, time.Minute)
	require.NoError(t, c.Set(context.Background(), "k", sampleRecs()))

	c.Purge()

	assert.Equal(t, 0, c.Stats().Size)
}

type stubShared struct {
	data   map[string][]domain.TestRecommendation
	setErr error
}

func (s *stubShared) Get(_ context.Context, key string) ([]domain.TestRecommendation, bool) {
	recs, ok := s.data[key]
	return recs, ok
}

func (s *stubShared) Set(_ context.Context, key string, recs []domain.TestRecommendation) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = recs
	return nil
}

func TestTiered_BackfillsLocal(t *testing.T) {
	ctx := context.Background()
	shared := &stubShared{data: map[string][]domain.TestRecommendation{"k": sampleRecs()}}
	local := NewMemoryCache(10, time.Minute)
	tiered := NewTiered(local, shared)

	got, ok := tiered.Get(ctx, "k")
	require.True(t, ok)
	assert.Len(t, got, 1)

	_, ok = local.Get(ctx, "k")
	assert.True(t, ok, "shared hit should populate the local tier")
}

func TestTiered_SetWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	shared := &stubShared{data: map[string][]domain.TestRecommendation{}}
	tiered := NewTiered(NewMemoryCache(10, time.Minute), shared)

	require.NoError(t, tiered.Set(ctx, "k", sampleRecs()))
	assert.Contains(t, shared.data, "k")

	shared.setErr = errors.New("down")
	assert.Error(t, tiered.Set(ctx, "k2", sampleRecs()))
	_, ok := tiered.Get(ctx, "k2")
	assert.True(t, ok, "local tier is written even when the shared tier fails")
}

func TestTiered_LocalOnly(t *testing.T) {
	ctx := context.Background()
	tiered := NewTiered(NewMemoryCache(10, time.Minute), nil)

	_, ok := tiered.Get(ctx, "k")
	assert.False(t, ok)
	require.NoError(t, tiered.Set(ctx, "k", sampleRecs()))
	_, ok = tiered.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, int64(1), tiered.Stats().Hits)
}
