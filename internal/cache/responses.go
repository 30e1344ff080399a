// Package cache provides a two-tier cache for raw LLM completions:
// a Ristretto L1 for in-process hits and an optional Redis L2 shared
// across instances. The cache is purely an optimization; misses and
// errors fall through to the live backend call.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ResponseCache caches prompt-hash -> raw completion text.
type ResponseCache struct {
	l1     *ristretto.Cache[string, string]
	l2     *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	metricsMu sync.Mutex
	metrics   Metrics
}

// Metrics tracks cache performance.
type Metrics struct {
	L1Hits   int64
	L1Misses int64
	L2Hits   int64
	L2Misses int64
}

// NewResponseCache creates a response cache. maxEntries bounds the L1 cost
// (default 2048); ttl defaults to 5 minutes. redisClient may be nil, in
// which case the cache is purely in-process.
func NewResponseCache(maxEntries int64, ttl time.Duration, redisClient *redis.Client, logger *zap.Logger) (*ResponseCache, error) {
	if maxEntries == 0 {
		maxEntries = 2048
	}
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l1, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	return &ResponseCache{
		l1:     l1,
		l2:     redisClient,
		ttl:    ttl,
		logger: logger.Named("respcache"),
	}, nil
}

// Get retrieves a cached completion, consulting L1 then L2. A hit in L2 is
// promoted to L1.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	if text, found := c.l1.Get(key); found {
		c.record(func(m *Metrics) { m.L1Hits++ })
		return text, true
	}
	c.record(func(m *Metrics) { m.L1Misses++ })

	if c.l2 != nil {
		text, err := c.l2.Get(ctx, key).Result()
		if err == nil && text != "" {
			c.record(func(m *Metrics) { m.L2Hits++ })
			c.l1.SetWithTTL(key, text, 1, c.ttl)
			return text, true
		}
		c.record(func(m *Metrics) { m.L2Misses++ })
	}
	return "", false
}

// Set stores a completion in L1 and, asynchronously, in L2. The L2 write
// is detached from the caller's context so a finished request cannot
// cancel it.
func (c *ResponseCache) Set(_ context.Context, key, text string) {
	c.l1.SetWithTTL(key, text, 1, c.ttl)

	if c.l2 != nil {
		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := c.l2.Set(setCtx, key, text, c.ttl).Err(); err != nil {
				c.logger.Warn("failed to set L2 cache", zap.String("key", key), zap.Error(err))
			}
		}()
	}
}

// Stats returns a snapshot of cache metrics.
func (c *ResponseCache) Stats() Metrics {
	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()
	return c.metrics
}

// Close releases cache resources.
func (c *ResponseCache) Close() {
	c.l1.Close()
}

func (c *ResponseCache) record(fn func(*Metrics)) {
	c.metricsMu.Lock()
	fn(&c.metrics)
	c.metricsMu.Unlock()
}
