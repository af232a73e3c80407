// Package ratelimit provides rate limiting constants for Poloniex API clients.
package ratelimit

import "time"

// Poloniex API Throttle Limits
//
// Poloniex enforces a per-account limit on both the public and the trading
// endpoint. Exceeding it returns HTTP 429 and, when repeated, a temporary ban.
//
// Source: Poloniex API documentation (legacy HTTP API)
const (
	// DefaultRequestsPerSecond is the documented request rate for one account.
	DefaultRequestsPerSecond = 6.0

	// DefaultBurstCapacity is the number of requests that may be sent back to
	// back before the refill rate applies. Equal to the rate, so no banking
	// beyond one second of traffic.
	DefaultBurstCapacity = 6.0

	// DefaultMaxTrackedKeys bounds the number of buckets one limiter keeps.
	// Each client throttles under a single key, so one bucket is enough.
	DefaultMaxTrackedKeys = 1
)

// Throttle loop behavior
const (
	// WarnWaitThreshold is the wait after which a throttled caller is reported.
	WarnWaitThreshold = 2 * time.Second

	// WarnInterval limits "rate limited" warnings to one per interval.
	WarnInterval = 10 * time.Second
)

// Config holds the parameters of a RateLimiter.
type Config struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             float64 `koanf:"burst"`
	MaxTrackedKeys    int     `koanf:"max_tracked_keys"`
}

// DefaultConfig returns the limiter configuration used by exchange clients.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurstCapacity,
		MaxTrackedKeys:    DefaultMaxTrackedKeys,
	}
}

// PollInterval returns the sleep between admission checks while throttled.
func (c Config) PollInterval() time.Duration {
	if c.RequestsPerSecond <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / c.RequestsPerSecond)
}
