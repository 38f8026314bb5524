// Package adaptive implements the optional adaptive-exploration signal
// source described by §4.7: a short-deadline external RPC whose value
// biases ε toward exploitation, with a hard rule that failure must never
// block a decision.
package adaptive

import (
	"context"
	"sync"
)

// Source samples the adaptive signal. Sample never blocks past the
// context deadline: on timeout, transport error, or an out-of-range
// response it returns (0, false) rather than erroring, per §4.7
// "Failure must not block decisions."
type Source interface {
	Sample(ctx context.Context) (value float64, ok bool)
}

// Static is a fixed-value Source, used in tests and for deployments that
// run without a live signal endpoint.
type Static struct {
	Value float64
	OK    bool
}

func (s Static) Sample(ctx context.Context) (float64, bool) {
	return s.Value, s.OK
}

// CachingSource wraps another Source with a last-good-value cache: when
// the wrapped Source reports unavailable, CachingSource returns the most
// recent available value instead of propagating the miss, so a brief
// upstream blip does not snap exploration back to the uncalibrated base
// rate. The very first call before any success has ever landed still
// returns unavailable.
type CachingSource struct {
	inner Source

	mu          sync.Mutex
	lastGood    float64
	hasLast     bool
	cacheHits   int64 // served lastGood after the inner Source failed
	cacheMisses int64 // inner Source failed and there was no lastGood yet
}

// NewCachingSource wraps inner with a last-good-value cache.
func NewCachingSource(inner Source) *CachingSource {
	return &CachingSource{inner: inner}
}

func (c *CachingSource) Sample(ctx context.Context) (float64, bool) {
	v, ok := c.inner.Sample(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ok {
		c.lastGood = v
		c.hasLast = true
		return v, true
	}

	if c.hasLast {
		c.cacheHits++
		return c.lastGood, true
	}
	c.cacheMisses++
	return 0, false
}

// CacheStats reports the hit/miss counters surfaced by GET /status's
// "cache hit rate for signal source" field (§5).
type CacheStats struct {
	Hits   int64
	Misses int64
}

func (c *CachingSource) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.cacheHits, Misses: c.cacheMisses}
}
