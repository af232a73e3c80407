package http

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rescale/poloniex-int/internal/config"
	"github.com/rescale/poloniex-int/internal/constants"
)

// RetryPolicy bounds the retries of one logical call. Attempts stop at
// MaxAttempts or when the next wait would push the cumulative wait past
// MaxElapsed, whichever comes first.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts, first try included (default: 4)
	MaxAttempts int
	// MaxElapsed is the maximum cumulative backoff wait (default: 8s)
	MaxElapsed time.Duration
	// BackoffBase is the wait before the first retry, doubled for each further retry (default: 500ms)
	BackoffBase time.Duration
	// JitterMax is the upper bound of the uniform jitter added to each wait (default: 250ms)
	JitterMax time.Duration
}

// DefaultPolicy returns a RetryPolicy with the documented defaults
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: constants.MaxAttempts,
		MaxElapsed:  constants.RetryMaxElapsed,
		BackoffBase: constants.RetryBackoffBase,
		JitterMax:   constants.RetryJitterMax,
	}
}

// PolicyFromConfig converts the retry section of the configuration.
func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		MaxElapsed:  cfg.MaxElapsed,
		BackoffBase: cfg.BackoffBase,
		JitterMax:   cfg.JitterMax,
	}
}

// RetryState is the progress of one logical call.
type RetryState struct {
	Attempts int           // attempts made so far
	Waited   time.Duration // cumulative backoff wait so far
	Started  time.Time     // when the call began
}

// Next decides what to do after state.Attempts attempts, the last of which
// failed with err. It returns the wait before the next attempt and true,
// or false when the call should end with err.
func (p RetryPolicy) Next(ctx context.Context, state RetryState, err error) (time.Duration, bool) {
	if state.Attempts >= p.MaxAttempts {
		return 0, false
	}
	if !ShouldRetry(ctx, err) {
		return 0, false
	}
	delay := CalculateBackoff(state.Attempts, p.BackoffBase, p.JitterMax)
	if state.Waited+delay > p.MaxElapsed {
		return 0, false
	}
	return delay, true
}

// ShouldRetry reports whether err describes a transient failure:
// a 5xx response, a 429 response, or a transport failure that is not
// provably permanent. Cancellation of ctx is never retried.
func ShouldRetry(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}

	var serverErr *ServerError
	var clientErr *ClientError
	var malformed *MalformedResponseError
	var transportErr *TransportError
	switch {
	case errors.As(err, &serverErr):
		return serverErr.Retryable()
	case errors.As(err, &clientErr):
		return clientErr.Retryable()
	case errors.As(err, &malformed):
		return false
	case errors.As(err, &transportErr):
		return IsRetryableTransportError(ctx, transportErr.Err)
	default:
		return false
	}
}

// IsRetryableTransportError reports whether a failed round trip may be
// attempted again. Invalid URLs, redirect loops, invalid headers, and
// untrusted certificates are permanent; so is cancellation.
func IsRetryableTransportError(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Client.Timeout errors also match DeadlineExceeded; those are retryable
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		return false
	}
	retry, _ := retryablehttp.DefaultRetryPolicy(ctx, nil, err)
	return retry
}

// CalculateBackoff returns the wait before retry number attempt (1-based)
// as exponential backoff with additive jitter.
//
// Formula: base * 2^(attempt-1) + random[0, jitterMax)
func CalculateBackoff(attempt int, base, jitterMax time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	// Cap the shift so large attempt counts cannot overflow
	shift := attempt - 1
	if shift > 30 {
		shift = 30
	}
	delay := base << uint(shift)
	if delay < 0 {
		delay = constants.RetryMaxElapsed
	}

	if jitterMax > 0 {
		delay += time.Duration(rand.Int64N(int64(jitterMax)))
	}
	return delay
}
