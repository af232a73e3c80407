// Package ratelimit provides rate limiting for API calls using a token bucket algorithm.
package ratelimit

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/rescale/poloniex-int/internal/logging"
)

// Errors returned by NewRateLimiter for unusable parameters.
var (
	ErrInvalidRate  = errors.New("ratelimit: refill rate must be positive")
	ErrInvalidBurst = errors.New("ratelimit: burst capacity must be at least 1")
	ErrInvalidSize  = errors.New("ratelimit: tracked key capacity must be at least 1")
)

// bucket is the token state of one key.
type bucket struct {
	budget     float64   // Tokens left after the last successful check
	lastRefill time.Time // Time of the last successful check
}

// RateLimiter implements a keyed token bucket rate limiter.
// Each key gets its own bucket holding up to burst tokens, refilled at
// refillRate tokens/second. At most maxKeys buckets are kept; inserting a new
// key beyond that evicts the least recently checked one.
type RateLimiter struct {
	refillRate   float64 // Tokens added per second
	burst        float64 // Maximum bucket capacity
	pollInterval time.Duration
	now          func() time.Time
	logger       *logging.Logger

	mu           sync.Mutex
	buckets      *simplelru.LRU[string, *bucket]
	lastWarnTime time.Time // Last time we warned about rate limiting
}

// Option customizes a RateLimiter.
type Option func(*RateLimiter)

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

// WithLogger sets the logger used for throttling warnings.
func WithLogger(l *logging.Logger) Option {
	return func(rl *RateLimiter) {
		if l != nil {
			rl.logger = l
		}
	}
}

// NewRateLimiter creates a new keyed rate limiter.
//
// Parameters:
//   - refillRate: Rate at which tokens are added per second (e.g., 6.0)
//   - burst: Maximum tokens a bucket can hold (allows brief bursts)
//   - maxKeys: Maximum number of buckets kept before LRU eviction
func NewRateLimiter(refillRate, burst float64, maxKeys int, opts ...Option) (*RateLimiter, error) {
	if refillRate <= 0 || math.IsNaN(refillRate) || math.IsInf(refillRate, 0) {
		return nil, ErrInvalidRate
	}
	if burst < 1 || math.IsNaN(burst) || math.IsInf(burst, 0) {
		return nil, ErrInvalidBurst
	}
	if maxKeys < 1 {
		return nil, ErrInvalidSize
	}

	buckets, err := simplelru.NewLRU[string, *bucket](maxKeys, nil)
	if err != nil {
		return nil, err
	}

	rl := &RateLimiter{
		refillRate:   refillRate,
		burst:        burst,
		pollInterval: time.Duration(float64(time.Second) / refillRate),
		now:          time.Now,
		logger:       logging.Nop(),
		buckets:      buckets,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl, nil
}

// New creates a rate limiter from cfg.
func New(cfg Config, opts ...Option) (*RateLimiter, error) {
	return NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, cfg.MaxTrackedKeys, opts...)
}

// Check reports whether one more request under key is admissible now,
// consuming a token if so. A rejected check leaves the bucket untouched
// but still counts as a use of the key for eviction purposes.
func (rl *RateLimiter) Check(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	// Get marks the key most recently used on both outcomes
	b, ok := rl.buckets.Get(key)
	if !ok {
		b = &bucket{budget: rl.burst, lastRefill: now}
	}

	budget := rl.refill(b, now) - 1
	if budget < 0 {
		return false
	}

	b.budget = budget
	b.lastRefill = now
	if !ok {
		rl.buckets.Add(key, b)
	}
	return true
}

// refill returns the budget of b at now, capped at burst.
func (rl *RateLimiter) refill(b *bucket, now time.Time) float64 {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Min(rl.burst, b.budget+elapsed*rl.refillRate)
}

// Wait blocks until a request under key is admitted or ctx is cancelled.
// Between checks it sleeps 1/refillRate seconds without holding the lock.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Try immediate acquire first
	if rl.Check(key) {
		return nil
	}

	startTime := time.Now()
	warned := false
	ticker := time.NewTicker(rl.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if rl.Check(key) {
			actualWait := time.Since(startTime)
			if actualWait > 5*time.Second {
				rl.logger.Info().Str("key", key).Msgf("Rate limit wait completed after %.1fs", actualWait.Seconds())
			}
			return nil
		}

		if !warned && time.Since(startTime) > WarnWaitThreshold {
			warned = true
			rl.warn(key, time.Since(startTime))
		}
	}
}

// warn logs a throttling notice, at most once per WarnInterval.
func (rl *RateLimiter) warn(key string, waited time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastWarnTime) <= WarnInterval {
		return
	}
	rl.lastWarnTime = time.Now()
	rl.logger.Warn().Str("key", key).Msgf("Rate limited: waiting %.1fs for API capacity", waited.Seconds())
}

// Tokens returns the current budget of key without consuming anything
// or changing eviction order (for testing/debugging).
func (rl *RateLimiter) Tokens(key string) float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets.Peek(key)
	if !ok {
		return rl.burst
	}
	return rl.refill(b, rl.now())
}

// Tracked reports whether key currently has a bucket.
func (rl *RateLimiter) Tracked(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.buckets.Contains(key)
}

// Len returns the number of buckets currently kept.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.buckets.Len()
}

// PollInterval returns the sleep used between checks in Wait.
func (rl *RateLimiter) PollInterval() time.Duration {
	return rl.pollInterval
}
