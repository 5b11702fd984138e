// Package cache stores completed recommendation passes keyed by a digest of
// their inputs. A process-local expirable LRU is always present; Redis can
// be layered behind it to share results between replicas.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/diagnostic-test-advisor/internal/domain"
)

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// MemoryCache is a size-bounded, TTL-bounded in-process cache.
type MemoryCache struct {
	lru    *expirable.LRU[string, []domain.TestRecommendation]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a cache holding at most maxItems entries for ttl.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, []domain.TestRecommendation](maxItems, nil, ttl),
	}
}

// Get implements domain.RecommendationCache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]domain.TestRecommendation, bool) {
	recs, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return recs, true
}

// Set implements domain.RecommendationCache.
func (c *MemoryCache) Set(_ context.Context, key string, recs []domain.TestRecommendation) error {
	c.lru.Add(key, recs)
	return nil
}

// Purge drops every entry.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}

// Stats returns hit, miss and size counters.
func (c *MemoryCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.lru.Len(),
	}
}
