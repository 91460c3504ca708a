// Package cache keeps serialised PSGC query responses in Redis. Keys are
// namespaced by the dataset fingerprint, so a restart with different data
// never serves stale entries. Cache failures are never surfaced to callers:
// a broken or slow Redis degrades to computing every response.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/psgc"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/resilience"
)

const keyPrefix = "psgc:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache caches []psgc.Entry responses by operation and parameters.
type QueryCache struct {
	store     Store
	namespace string
	ttl       time.Duration
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	group     singleflight.Group
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
	errors    atomic.Int64
}

// New creates a cache over store. namespace is normally
// psgc.Service.CacheNamespace. m may be nil.
func New(store Store, namespace string, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		store:     store,
		namespace: namespace,
		ttl:       ttl,
		metrics:   m,
		logger:    slog.Default().With("component", "query-cache", "namespace", namespace),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Key builds the cache key for op and its normalised parameters.
func (c *QueryCache) Key(op string, params ...string) string {
	h := sha256.New()
	for _, p := range params {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, c.namespace, op, hex.EncodeToString(h.Sum(nil)[:12]))
}

// Get returns the cached entries for key. Misses, Redis errors and an open
// breaker all report false.
func (c *QueryCache) Get(ctx context.Context, key string) ([]psgc.Entry, bool) {
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
		c.recordError("get", key, err)
		c.recordMiss()
		return nil, false
	}
	if data == nil {
		c.recordMiss()
		return nil, false
	}
	var entries []psgc.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.recordError("decode", key, err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return entries, true
}

// Set stores entries under key. Failures are logged and counted only.
func (c *QueryCache) Set(ctx context.Context, key string, entries []psgc.Entry) {
	data, err := json.Marshal(entries)
	if err != nil {
		c.recordError("encode", key, err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.recordError("set", key, err)
	}
}

// GetOrCompute returns the cached entries for key, or computes, stores and
// returns them. Concurrent misses on one key share a single computation.
func (c *QueryCache) GetOrCompute(ctx context.Context, key string, compute func() ([]psgc.Entry, error)) ([]psgc.Entry, bool, error) {
	if entries, ok := c.Get(ctx, key); ok {
		return entries, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		entries, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(context.WithoutCancel(ctx), key, entries)
		return entries, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]psgc.Entry), false, nil
}

// Invalidate removes every cached response, across all namespaces.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats is a point-in-time view of the cache counters.
type Stats struct {
	Namespace string `json:"namespace"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Errors    int64  `json:"errors"`
	Total     int64  `json:"total"`
	HitRate   string `json:"hit_rate"`
	Breaker   string `json:"breaker"`
}

func (c *QueryCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	return Stats{
		Namespace: c.namespace,
		Hits:      hits,
		Misses:    misses,
		Errors:    c.errors.Load(),
		Total:     total,
		HitRate:   fmt.Sprintf("%.1f%%", rate),
		Breaker:   c.breaker.GetState().String(),
	}
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) recordError(op, key string, err error) {
	c.errors.Add(1)
	if c.metrics != nil {
		c.metrics.CacheErrorsTotal.Inc()
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Debug("cache bypassed", "op", op, "key", key, "error", err)
		return
	}
	c.logger.Warn("cache operation failed", "op", op, "key", key, "error", err)
}

// NormalizeQuery folds a search term the way matching does, so "NCR" and
// "ncr" share a cache entry.
func NormalizeQuery(q string) string {
	return strings.ToLower(q)
}
