package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/diagnostic-test-advisor/internal/domain"
)

const redisKeyPrefix = "advisor:"

// cachedPass is the Redis value format.
type cachedPass struct {
	Recommendations []domain.TestRecommendation `json:"recommendations"`
	CachedAt        time.Time                   `json:"cached_at"`
}

// RedisCache shares recommendation passes through Redis. Calls go through a
// circuit breaker so an unavailable Redis degrades to cache misses.
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	logger  *logrus.Logger
}

// NewRedisCache connects to the Redis instance at cfg.RedisURL.
func NewRedisCache(logger *logrus.Logger, cfg domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.PoolTimeout > 0 {
		opts.PoolTimeout = cfg.PoolTimeout
	}
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheWithClient(logger, client, cfg.DefaultTTL), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(logger *logrus.Logger, client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RedisCache{
		client:  client,
		breaker: breaker,
		ttl:     ttl,
		logger:  logger,
	}
}

// Get implements domain.RecommendationCache. Errors are reported as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]domain.TestRecommendation, bool) {
	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Debug("Redis cache lookup failed")
		}
		return nil, false
	}

	var cached cachedPass
	if err := json.Unmarshal(v.([]byte), &cached); err != nil {
		// Corrupted entries are removed and treated as misses
		c.client.Del(ctx, redisKeyPrefix+key)
		return nil, false
	}
	return cached.Recommendations, true
}

// Set implements domain.RecommendationCache.
func (c *RedisCache) Set(ctx context.Context, key string, recs []domain.TestRecommendation) error {
	data, err := json.Marshal(cachedPass{Recommendations: recs, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to cache recommendations: %w", err)
	}
	return nil
}

// State returns the circuit breaker state.
func (c *RedisCache) State() gobreaker.State {
	return c.breaker.State()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
