package constants

import (
	"time"
)

// Exchange endpoints
const (
	// PublicURL - market data endpoint, unauthenticated GET with a command query parameter
	PublicURL = "https://poloniex.com/public"

	// PrivateURL - trading endpoint, signed POST with a form body
	PrivateURL = "https://poloniex.com/tradingApi"
)

// Retry configuration
const (
	// MaxAttempts - maximum number of attempts per logical call, first try included
	MaxAttempts = 4

	// RetryMaxElapsed - maximum cumulative backoff wait per logical call (8s)
	// A retry whose wait would cross this budget is not taken
	RetryMaxElapsed = 8 * time.Second

	// RetryBackoffBase - wait before the first retry, doubled for each further retry (500ms)
	RetryBackoffBase = 500 * time.Millisecond

	// RetryJitterMax - upper bound of the uniform jitter added to each wait (250ms)
	RetryJitterMax = 250 * time.Millisecond
)

// API and Context Timeouts
const (
	// APIContextTimeout - default timeout for one CLI command (60 seconds)
	// Covers throttling, all attempts, and backoff
	APIContextTimeout = 60 * time.Second

	// APIRequestTimeout - timeout for a single HTTP exchange (30 seconds)
	APIRequestTimeout = 30 * time.Second

	// APIConnectionTestTimeout - timeout for testing API connectivity (10 seconds)
	APIConnectionTestTimeout = 10 * time.Second

	// APIUsageLogInterval - how often call counts are summarized in the log (30 seconds)
	APIUsageLogInterval = 30 * time.Second

	// MaxResponseBytes - responses larger than this are treated as malformed (16 MB)
	MaxResponseBytes = 16 * 1024 * 1024
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (15 seconds)
	HTTPTLSHandshakeTimeout = 15 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - TCP keep-alive interval (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPMaxConnsPerHost - the exchange is one host and calls are throttled,
	// so a small pool is enough
	HTTPMaxConnsPerHost = 16
)

// Proxy
const (
	// DefaultProxyPort - used when a proxy host is configured without a port
	DefaultProxyPort = 8080

	// ProxyWarmupTimeout - timeout for the proxy warmup request (15 seconds)
	ProxyWarmupTimeout = 15 * time.Second
)

// Client identification
const (
	// UserAgentPrefix - prepended to the version in the User-Agent header
	UserAgentPrefix = "poloniex-int/"
)
