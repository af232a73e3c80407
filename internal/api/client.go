package api

import (
	"fmt"
	nethttp "net/http"
	"strings"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rescale/poloniex-int/internal/auth"
	"github.com/rescale/poloniex-int/internal/config"
	"github.com/rescale/poloniex-int/internal/constants"
	"github.com/rescale/poloniex-int/internal/http"
	"github.com/rescale/poloniex-int/internal/logging"
	"github.com/rescale/poloniex-int/internal/ratelimit"
	"github.com/rescale/poloniex-int/internal/version"
)

// Kind identifies a client variant. It is also the rate limit key, so all
// calls of one client share one bucket.
type Kind string

const (
	KindPublic  Kind = "PublicClient"
	KindPrivate Kind = "PrivateClient"
)

// Options configures a client. Every field is optional.
type Options struct {
	// Config supplies endpoints, rate limit, retry bounds, HTTP and proxy
	// settings (nil = config.Default()).
	Config *config.Config

	// Logger receives call logs (nil = discard).
	Logger *logging.Logger

	// HTTPClient overrides the session built from Config.
	// The client must not be shared with another exchange client.
	HTTPClient *nethttp.Client

	// TracerProvider and MeterProvider default to the otel globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client is implemented by both client variants.
type Client interface {
	Kind() Kind
	Dispatcher() *Dispatcher
	Close()
}

// baseClient owns the state every variant needs: its own limiter, HTTP
// session, and dispatcher.
type baseClient struct {
	kind       Kind
	baseURL    string
	httpClient *nethttp.Client
	dispatcher *Dispatcher
}

func newBaseClient(kind Kind, opts Options, signer *auth.Signer, baseURL string) (*baseClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("API base URL is empty for %s", kind)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = http.NewClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
		}
	}

	limiter, err := ratelimit.New(cfg.RateLimit, ratelimit.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	tel, err := newTelemetry(opts.TracerProvider, opts.MeterProvider)
	if err != nil {
		return nil, err
	}

	userAgent := cfg.HTTP.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent(constants.UserAgentPrefix)
	}

	return &baseClient{
		kind:       kind,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		dispatcher: &Dispatcher{
			kind:       kind,
			httpClient: httpClient,
			limiter:    limiter,
			signer:     signer,
			policy:     http.PolicyFromConfig(cfg.Retry),
			userAgent:  userAgent,
			logger:     logger,
			telemetry:  tel,
			metrics:    newAPIMetrics(cfg.RateLimit.RequestsPerSecond),
		},
	}, nil
}

// Kind returns the client variant.
func (c *baseClient) Kind() Kind {
	return c.kind
}

// Dispatcher returns the dispatcher all calls of this client go through.
func (c *baseClient) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// Close releases idle connections of the client's session.
func (c *baseClient) Close() {
	c.httpClient.CloseIdleConnections()
}

// PublicClient issues unauthenticated market data commands.
type PublicClient struct {
	*baseClient
}

// NewPublicClient creates a public client with its own limiter and session.
func NewPublicClient(opts Options) (*PublicClient, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
		opts.Config = cfg
	}
	base, err := newBaseClient(KindPublic, opts, nil, cfg.Endpoints.PublicURL)
	if err != nil {
		return nil, err
	}
	return &PublicClient{baseClient: base}, nil
}

// PrivateClient issues signed trading and account commands for one account.
type PrivateClient struct {
	*baseClient
	creds auth.Credentials
}

// NewPrivateClient creates a private client for creds. Build exactly one
// per account; two clients for the same key would issue conflicting nonces.
func NewPrivateClient(creds auth.Credentials, opts Options) (*PrivateClient, error) {
	if creds.PublicKey() == "" {
		return nil, ErrUnauthenticated
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
		opts.Config = cfg
	}
	base, err := newBaseClient(KindPrivate, opts, auth.NewSigner(creds), cfg.Endpoints.PrivateURL)
	if err != nil {
		return nil, err
	}
	if opts.Logger != nil {
		opts.Logger.Debug().Str("key", creds.Fingerprint()).Msg("Private client ready")
	}
	return &PrivateClient{baseClient: base, creds: creds}, nil
}

// Credentials returns the key pair the client signs with.
func (c *PrivateClient) Credentials() auth.Credentials {
	return c.creds
}

var (
	_ Client = (*PublicClient)(nil)
	_ Client = (*PrivateClient)(nil)
)
