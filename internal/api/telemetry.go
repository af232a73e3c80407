package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rescale/poloniex-int/internal/http"
)

const (
	instrumentationName = "github.com/rescale/poloniex-int/internal/api"

	metricAttempts     = "poloniex.client.attempts"
	metricRetries      = "poloniex.client.retries"
	metricCallDuration = "poloniex.client.call.duration"
	metricThrottleWait = "poloniex.client.throttle.wait"
)

// telemetry holds the tracer and instruments of one client.
type telemetry struct {
	tracer       trace.Tracer
	attempts     metric.Int64Counter
	retries      metric.Int64Counter
	callDuration metric.Float64Histogram
	throttleWait metric.Float64Histogram
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	attempts, err := meter.Int64Counter(
		metricAttempts,
		metric.WithDescription("HTTP exchanges sent, by command and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create attempts counter: %w", err)
	}

	retries, err := meter.Int64Counter(
		metricRetries,
		metric.WithDescription("retries scheduled after a transient failure"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create retries counter: %w", err)
	}

	callDuration, err := meter.Float64Histogram(
		metricCallDuration,
		metric.WithDescription("logical call duration including throttling and backoff"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create call duration histogram: %w", err)
	}

	throttleWait, err := meter.Float64Histogram(
		metricThrottleWait,
		metric.WithDescription("time spent waiting for a rate limit token"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create throttle wait histogram: %w", err)
	}

	return &telemetry{
		tracer:       tp.Tracer(instrumentationName),
		attempts:     attempts,
		retries:      retries,
		callDuration: callDuration,
		throttleWait: throttleWait,
	}, nil
}

func (t *telemetry) startCall(ctx context.Context, kind Kind, spec RequestSpec) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spec.Command,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("poloniex.client", string(kind)),
			attribute.String("poloniex.command", spec.Command),
			attribute.Bool("poloniex.authenticated", spec.Authenticated),
		),
	)
}

func (t *telemetry) recordAttempt(ctx context.Context, command string, err error) {
	t.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("outcome", outcomeLabel(err)),
	))
}

func (t *telemetry) recordRetry(ctx context.Context, command string) {
	t.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("command", command)))
}

func (t *telemetry) recordThrottle(ctx context.Context, waited time.Duration) {
	t.throttleWait.Record(ctx, waited.Seconds())
}

func (t *telemetry) endCall(ctx context.Context, span trace.Span, command string, state http.RetryState, err error) {
	outcome := outcomeLabel(err)
	t.callDuration.Record(ctx, time.Since(state.Started).Seconds(), metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	))

	span.SetAttributes(
		attribute.Int("poloniex.attempts", state.Attempts),
		attribute.Float64("poloniex.backoff_seconds", state.Waited.Seconds()),
		attribute.String("poloniex.outcome", outcome),
	)
	if code := StatusCode(err); code != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", code))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// outcomeLabel names the class of err for metric attributes.
func outcomeLabel(err error) string {
	if err == nil {
		return http.OutcomeSuccess.String()
	}

	var clientErr *ClientError
	var serverErr *ServerError
	var malformed *MalformedResponseError
	var transportErr *TransportError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded) && !errors.As(err, &transportErr):
		return "cancelled"
	case errors.As(err, &clientErr):
		return http.OutcomeClientError.String()
	case errors.As(err, &serverErr):
		return http.OutcomeServerError.String()
	case errors.As(err, &malformed):
		return http.OutcomeMalformed.String()
	case errors.As(err, &transportErr):
		return "transport_error"
	default:
		return "error"
	}
}
