// Package cache keeps term lookup results in Redis, keyed by snapshot build
// so a reload never serves postings from an older index.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/redis"
)

const keyPrefix = "pix:lookup:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type LookupCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration) *LookupCache {
	return &LookupCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "lookup-cache"),
	}
}

// WithMetrics reports hits and misses to m.
func (c *LookupCache) WithMetrics(m *metrics.Metrics) *LookupCache {
	c.metrics = m
	return c
}

func (c *LookupCache) Get(ctx context.Context, build, term string) (*query.TermResult, bool) {
	key := buildKey(build, term)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result query.TermResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "term", term, "key", key)
	return &result, true
}

func (c *LookupCache) Set(ctx context.Context, build, term string, result *query.TermResult) {
	key := buildKey(build, term)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for term under build, or runs
// compute once across concurrent callers and caches its result. Errors are
// never cached.
func (c *LookupCache) GetOrCompute(
	ctx context.Context,
	build, term string,
	compute func() (*query.TermResult, error),
) (*query.TermResult, bool, error) {
	if result, ok := c.Get(ctx, build, term); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(buildKey(build, term), func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, build, term, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*query.TermResult), false, nil
}

// Invalidate drops every cached lookup.
func (c *LookupCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *LookupCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *LookupCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *LookupCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(build, term string) string {
	hash := sha256.Sum256([]byte(term))
	return fmt.Sprintf("%s%s:%x", keyPrefix, build, hash[:16])
}
