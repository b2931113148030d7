// Package cache memoises assembled retrieval contexts in Redis. Keys embed
// the corpus fingerprint, so a rebuilt index never serves stale entries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/rag"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/resilience"
)

const (
	keyPrefix   = "ctx:"
	breakerName = "redis-cache"
)

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// ContextCache is safe for concurrent use. A nil *ContextCache computes
// every request.
type ContextCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration, m *metrics.Metrics) *ContextCache {
	c := &ContextCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "context-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker(breakerName, resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, state int) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
			}
		},
	})
	return c
}

// Get looks up a cached context. Redis errors and an open breaker count as
// misses.
func (c *ContextCache) Get(ctx context.Context, fingerprint, query string, n int) (rag.Context, bool) {
	key := BuildKey(fingerprint, query, n)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return rag.Context{}, false
	}
	if data == nil {
		c.miss()
		return rag.Context{}, false
	}
	var out rag.Context
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return rag.Context{}, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", key)
	return out, true
}

// Set stores out unless it is degraded; degraded contexts must be retried.
func (c *ContextCache) Set(ctx context.Context, fingerprint, query string, n int, out rag.Context) {
	if !out.IsWorking {
		return
	}
	key := BuildKey(fingerprint, query, n)
	data, err := json.Marshal(out)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	}); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached context or computes, stores and returns
// it. Concurrent misses for the same key share one computation. The bool
// reports a cache hit.
func (c *ContextCache) GetOrCompute(
	ctx context.Context,
	fingerprint, query string,
	n int,
	compute func() rag.Context,
) (rag.Context, bool) {
	if c == nil {
		return compute(), false
	}
	if out, ok := c.Get(ctx, fingerprint, query, n); ok {
		return out, true
	}
	key := BuildKey(fingerprint, query, n)
	val, _, _ := c.group.Do(key, func() (interface{}, error) {
		out := compute()
		c.Set(ctx, fingerprint, query, n, out)
		return out, nil
	})
	return val.(rag.Context), false
}

// Invalidate drops every cached context.
func (c *ContextCache) Invalidate(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *ContextCache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

// BreakerState is "closed", "half-open" or "open".
func (c *ContextCache) BreakerState() string {
	if c == nil {
		return "disabled"
	}
	return c.breaker.State()
}

func (c *ContextCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey hashes the lowercased query and result count. Surrounding
// whitespace is kept because the title boost matches the raw query.
func BuildKey(fingerprint, query string, n int) string {
	raw := fmt.Sprintf("%s|n=%d", strings.ToLower(query), n)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, fingerprint, hash[:16])
}
