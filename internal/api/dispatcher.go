package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rescale/poloniex-int/internal/auth"
	"github.com/rescale/poloniex-int/internal/constants"
	"github.com/rescale/poloniex-int/internal/http"
	"github.com/rescale/poloniex-int/internal/logging"
	"github.com/rescale/poloniex-int/internal/ratelimit"
)

// RequestSpec describes one logical call. It is built by the endpoint
// wrappers and never modified by the dispatcher.
type RequestSpec struct {
	Method        string      // defaults to GET for public and POST for signed calls
	URL           string      // endpoint without query
	Command       string      // value of the "command" parameter
	Query         auth.Params // public calls: encoded into the query string
	Body          auth.Params // signed calls: encoded into the form body
	Authenticated bool
}

// Dispatcher runs logical calls: it throttles, builds and signs each
// attempt, classifies the response, and retries transient failures within
// the bounds of its RetryPolicy.
type Dispatcher struct {
	kind       Kind
	httpClient *nethttp.Client
	limiter    *ratelimit.RateLimiter
	signer     *auth.Signer // nil for clients without credentials
	policy     http.RetryPolicy
	userAgent  string
	logger     *logging.Logger
	telemetry  *telemetry
	metrics    *apiMetrics
}

// Do performs spec and returns the decoded response.
//
// Transient failures (5xx, 429, retryable transport errors) are retried with
// exponential backoff until the call succeeds, MaxAttempts attempts have
// been made, or the next wait would push the cumulative wait past
// MaxElapsed. The last error is then returned unchanged in type. Every
// attempt of a signed call carries a fresh nonce and signature.
//
// A successful response whose body holds an "error" entry is returned as
// data; see SoftError.
func (d *Dispatcher) Do(ctx context.Context, spec RequestSpec) (any, error) {
	if spec.Authenticated && d.signer == nil {
		return nil, fmt.Errorf("%s: %w", spec.Command, ErrUnauthenticated)
	}

	logger := d.logger.Child(func(c zerolog.Context) zerolog.Context {
		return c.Str("call_id", uuid.NewString()).
			Str("client", string(d.kind)).
			Str("command", spec.Command)
	})

	ctx, span := d.telemetry.startCall(ctx, d.kind, spec)
	state := http.RetryState{Started: time.Now()}

	var lastErr error
	var pending time.Duration

	maxAttempts := d.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	payload, err := retry.NewWithData[any](
		retry.Context(ctx),
		retry.Attempts(uint(maxAttempts)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			delay, ok := d.policy.Next(ctx, state, err)
			if !ok {
				return false
			}
			pending = delay
			return true
		}),
		retry.DelayType(func(_ uint, _ error, _ retry.DelayContext) time.Duration {
			state.Waited += pending
			return pending
		}),
		retry.OnRetry(func(_ uint, err error) {
			d.telemetry.recordRetry(ctx, spec.Command)
			logger.Warn().
				Err(err).
				Int("attempt", state.Attempts).
				Dur("backoff", pending).
				Msg("Transient failure, retrying")
		}),
	).Do(func() (any, error) {
		state.Attempts++
		payload, err := d.attempt(ctx, spec, logger)
		d.telemetry.recordAttempt(ctx, spec.Command, err)
		lastErr = err
		return payload, err
	})

	// Cancellation must be visible to errors.Is without hiding the last failure
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		switch {
		case !errors.Is(err, ctxErr):
			err = fmt.Errorf("%w (last error: %w)", ctxErr, err)
		case lastErr != nil && !errors.Is(err, lastErr):
			err = fmt.Errorf("%w (last error: %w)", err, lastErr)
		}
	}
	if err != nil {
		err = fmt.Errorf("%s: %w", spec.Command, err)
		logger.Debug().Err(err).Int("attempts", state.Attempts).Msg("Call failed")
	}

	d.telemetry.endCall(ctx, span, spec.Command, state, err)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// attempt performs one throttled HTTP exchange and classifies the result.
func (d *Dispatcher) attempt(ctx context.Context, spec RequestSpec, logger *logging.Logger) (any, error) {
	throttleStart := time.Now()
	if err := d.limiter.Wait(ctx, string(d.kind)); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}
	d.telemetry.recordThrottle(ctx, time.Since(throttleStart))

	// Track API call metrics
	d.metrics.record(spec.Command, logger)

	req, err := d.buildRequest(ctx, spec, logger)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		logger.Debug().Err(err).Msg("HTTP exchange failed")
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseBytes+1))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}
	if len(body) > constants.MaxResponseBytes {
		return nil, &MalformedResponseError{StatusCode: resp.StatusCode, Note: "response body too large"}
	}

	outcome := http.Classify(resp.StatusCode, body)
	switch outcome.Kind {
	case http.OutcomeSuccess:
		logger.Debug().Int("status", resp.StatusCode).Msg("Response received")
	case http.OutcomeMalformed:
		logger.Warn().
			Err(outcome.Cause).
			Int("status", resp.StatusCode).
			Str("note", outcome.Note).
			Msg("Error decoding response")
	default:
		if resp.StatusCode == nethttp.StatusTooManyRequests {
			logger.Warn().Msg("Rate limited by the exchange (429)")
		}
		logger.Debug().
			Int("status", resp.StatusCode).
			Str("message", outcome.Message).
			Msg("Error response")
	}
	return outcome.Payload, outcome.Err()
}

// buildRequest creates the HTTP request for one attempt. Signed bodies get
// a new nonce each time.
func (d *Dispatcher) buildRequest(ctx context.Context, spec RequestSpec, logger *logging.Logger) (*nethttp.Request, error) {
	var req *nethttp.Request
	var err error

	if spec.Authenticated {
		method := spec.Method
		if method == "" {
			method = nethttp.MethodPost
		}
		signed := d.signer.Prepare(spec.Command, spec.Body)
		req, err = nethttp.NewRequestWithContext(ctx, method, spec.URL, strings.NewReader(signed.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		signed.Apply(req.Header)
		logger.Debug().Int64("nonce", signed.Nonce).Msg("Signed request")
	} else {
		method := spec.Method
		if method == "" {
			method = nethttp.MethodGet
		}
		u, perr := url.Parse(spec.URL)
		if perr != nil {
			return nil, fmt.Errorf("invalid endpoint URL: %w", perr)
		}
		q := auth.Values(spec.Query)
		q.Set("command", spec.Command)
		u.RawQuery = q.Encode()
		req, err = nethttp.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
	}

	req.Header.Set("Accept", "application/json")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	return req, nil
}

// Usage returns a snapshot of the exchanges sent so far.
func (d *Dispatcher) Usage() Usage {
	return d.metrics.snapshot()
}

// Policy returns the retry bounds in effect.
func (d *Dispatcher) Policy() http.RetryPolicy {
	return d.policy
}
