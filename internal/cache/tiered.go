package cache

import (
	"context"

	"github.com/diagnostic-test-advisor/internal/domain"
)

// Tiered checks the local cache first and falls back to a shared one,
// back-filling the local tier on shared hits.
type Tiered struct {
	local  *MemoryCache
	shared domain.RecommendationCache
}

// NewTiered layers shared behind local. A nil shared cache leaves only the
// local tier.
func NewTiered(local *MemoryCache, shared domain.RecommendationCache) *Tiered {
	return &Tiered{local: local, shared: shared}
}

// Get implements domain.RecommendationCache.
func (t *Tiered) Get(ctx context.Context, key string) ([]domain.TestRecommendation, bool) {
	if recs, ok := t.local.Get(ctx, key); ok {
		return recs, true
	}
	if t.shared == nil {
		return nil, false
	}
	recs, ok := t.shared.Get(ctx, key)
	if ok {
		_ = t.local.Set(ctx, key, recs)
	}
	return recs, ok
}

// Set implements domain.RecommendationCache. The local tier is always
// written; a shared-tier failure is returned.
func (t *Tiered) Set(ctx context.Context, key string, recs []domain.TestRecommendation) error {
	_ = t.local.Set(ctx, key, recs)
	if t.shared == nil {
		return nil
	}
	return t.shared.Set(ctx, key, recs)
}

// Stats returns the local tier's counters.
func (t *Tiered) Stats() Stats {
	return t.local.Stats()
}
