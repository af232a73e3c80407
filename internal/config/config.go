// Package config provides configuration management for poloniex-int.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/rescale/poloniex-int/internal/constants"
	"github.com/rescale/poloniex-int/internal/ratelimit"
)

// Errors returned by Load and Validate.
var (
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
	ErrLoadFailed        = errors.New("config: load failed")
	ErrInvalid           = errors.New("config: invalid configuration")
)

// Config is the complete client configuration.
type Config struct {
	// Credentials. Usually supplied through flags, env, or the secret file
	// rather than the config file.
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`

	Endpoints EndpointsConfig  `koanf:"endpoints"`
	RateLimit ratelimit.Config `koanf:"rate_limit"`
	Retry     RetryConfig      `koanf:"retry"`
	HTTP      HTTPConfig       `koanf:"http"`
	Proxy     ProxyConfig      `koanf:"proxy"`
	Log       LogConfig        `koanf:"log"`
}

// EndpointsConfig holds the exchange URLs.
type EndpointsConfig struct {
	PublicURL  string `koanf:"public_url"`
	PrivateURL string `koanf:"private_url"`
}

// RetryConfig bounds the retry loop of one logical call.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"` // first try included
	MaxElapsed  time.Duration `koanf:"max_elapsed"`  // cumulative backoff wait
	BackoffBase time.Duration `koanf:"backoff_base"`
	JitterMax   time.Duration `koanf:"jitter_max"`
}

// HTTPConfig tunes the HTTP session.
type HTTPConfig struct {
	Timeout      time.Duration `koanf:"timeout"` // per HTTP exchange
	DisableHTTP2 bool          `koanf:"disable_http2"`
	UserAgent    string        `koanf:"user_agent"`
}

// ProxyConfig selects how requests reach the exchange.
type ProxyConfig struct {
	Mode     string `koanf:"mode"` // "no-proxy", "system", "basic", "ntlm"
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	NoProxy  string `koanf:"no_proxy"` // Comma-separated list of hosts to bypass proxy
	Warmup   bool   `koanf:"warmup"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Endpoints: EndpointsConfig{
			PublicURL:  constants.PublicURL,
			PrivateURL: constants.PrivateURL,
		},
		RateLimit: ratelimit.DefaultConfig(),
		Retry: RetryConfig{
			MaxAttempts: constants.MaxAttempts,
			MaxElapsed:  constants.RetryMaxElapsed,
			BackoffBase: constants.RetryBackoffBase,
			JitterMax:   constants.RetryJitterMax,
		},
		HTTP: HTTPConfig{
			Timeout: constants.APIRequestTimeout,
		},
		Proxy: ProxyConfig{
			Mode: "no-proxy",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path over the defaults.
// A missing file is not an error when allowMissing is set.
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	if err := cfg.merge(path, data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadBytes reads config data in the given format ("yaml" or "json") over the defaults.
func LoadBytes(data []byte, format string) (*Config, error) {
	cfg := Default()
	if err := cfg.merge("config."+format, data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(path string, data []byte) error {
	parser, err := parserFor(path)
	if err != nil {
		return err
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	// Keys missing from the file keep their default values
	if err := k.UnmarshalWithConf("", c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Overrides are values supplied on the command line. Zero values are ignored.
type Overrides struct {
	APIKey     string
	SecretFile string
	PublicURL  string
	PrivateURL string
	Rate       float64
	ProxyMode  string
	ProxyHost  string
	ProxyPort  int
	LogFile    string
}

// MergeWithFlags applies environment variables and then flags.
// Priority: flags > environment > config file > defaults
func (c *Config) MergeWithFlags(o Overrides) error {
	if v := os.Getenv(EnvPublicURL); v != "" {
		c.Endpoints.PublicURL = v
	}
	if v := os.Getenv(EnvPrivateURL); v != "" {
		c.Endpoints.PrivateURL = v
	}

	if o.PublicURL != "" {
		c.Endpoints.PublicURL = o.PublicURL
	}
	if o.PrivateURL != "" {
		c.Endpoints.PrivateURL = o.PrivateURL
	}
	if o.Rate > 0 {
		c.RateLimit.RequestsPerSecond = o.Rate
		c.RateLimit.Burst = o.Rate
	}
	if o.ProxyMode != "" {
		c.Proxy.Mode = o.ProxyMode
	}
	if o.ProxyHost != "" {
		c.Proxy.Host = o.ProxyHost
	}
	if o.ProxyPort > 0 {
		c.Proxy.Port = o.ProxyPort
	}
	if o.LogFile != "" {
		c.Log.File = o.LogFile
	}

	creds, err := ResolveCredentials(o.APIKey, o.SecretFile, c)
	if err != nil {
		return err
	}
	c.APIKey = creds.APIKey
	c.APISecret = creds.APISecret

	// Ensure HTTPS scheme
	c.Endpoints.PublicURL = ensureScheme(c.Endpoints.PublicURL)
	c.Endpoints.PrivateURL = ensureScheme(c.Endpoints.PrivateURL)
	return nil
}

func ensureScheme(u string) string {
	if u != "" && !strings.HasPrefix(u, "http") {
		return "https://" + u
	}
	return u
}

// Validate checks that the configuration can build working clients.
// Credentials are checked separately by HasCredentials since public
// commands do not need them.
func (c *Config) Validate() error {
	if c.Endpoints.PublicURL == "" || c.Endpoints.PrivateURL == "" {
		return fmt.Errorf("%w: endpoint URLs are required", ErrInvalid)
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: rate_limit.requests_per_second: %w", ErrInvalid, ratelimit.ErrInvalidRate)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("%w: rate_limit.burst: %w", ErrInvalid, ratelimit.ErrInvalidBurst)
	}
	if c.RateLimit.MaxTrackedKeys < 1 {
		return fmt.Errorf("%w: rate_limit.max_tracked_keys: %w", ErrInvalid, ratelimit.ErrInvalidSize)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be at least 1", ErrInvalid)
	}
	if c.Retry.MaxElapsed < 0 || c.Retry.BackoffBase < 0 || c.Retry.JitterMax < 0 {
		return fmt.Errorf("%w: retry durations must not be negative", ErrInvalid)
	}
	switch strings.ToLower(c.Proxy.Mode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return fmt.Errorf("%w: unsupported proxy mode %q", ErrInvalid, c.Proxy.Mode)
	}
	return nil
}

// HasCredentials reports whether both halves of the key pair are set.
func (c *Config) HasCredentials() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// Redacted returns the configuration as a nested map with secrets masked,
// suitable for display.
func (c *Config) Redacted() map[string]interface{} {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	m := c.toMap()
	m["api_key"] = mask(c.APIKey)
	m["api_secret"] = mask(c.APISecret)
	m["proxy"].(map[string]interface{})["password"] = mask(c.Proxy.Password)
	return m
}

// toMap mirrors the koanf layout of c so that saved files load back unchanged.
func (c *Config) toMap() map[string]interface{} {
	return map[string]interface{}{
		"api_key":    c.APIKey,
		"api_secret": c.APISecret,
		"endpoints": map[string]interface{}{
			"public_url":  c.Endpoints.PublicURL,
			"private_url": c.Endpoints.PrivateURL,
		},
		"rate_limit": map[string]interface{}{
			"requests_per_second": c.RateLimit.RequestsPerSecond,
			"burst":               c.RateLimit.Burst,
			"max_tracked_keys":    c.RateLimit.MaxTrackedKeys,
		},
		"retry": map[string]interface{}{
			"max_attempts": c.Retry.MaxAttempts,
			"max_elapsed":  c.Retry.MaxElapsed.String(),
			"backoff_base": c.Retry.BackoffBase.String(),
			"jitter_max":   c.Retry.JitterMax.String(),
		},
		"http": map[string]interface{}{
			"timeout":       c.HTTP.Timeout.String(),
			"disable_http2": c.HTTP.DisableHTTP2,
			"user_agent":    c.HTTP.UserAgent,
		},
		"proxy": map[string]interface{}{
			"mode":     c.Proxy.Mode,
			"host":     c.Proxy.Host,
			"port":     c.Proxy.Port,
			"user":     c.Proxy.User,
			"password": c.Proxy.Password,
			"no_proxy": c.Proxy.NoProxy,
			"warmup":   c.Proxy.Warmup,
		},
		"log": map[string]interface{}{
			"level": c.Log.Level,
			"file":  c.Log.File,
		},
	}
}

// Save writes c to path as YAML with owner-only permissions. The API secret
// and proxy password are never written; they belong in the secret file or
// the environment.
func (c *Config) Save(path string) error {
	m := c.toMap()
	delete(m, "api_secret")
	delete(m["proxy"].(map[string]interface{}), "password")

	data, err := yaml.Parser().Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// YAML renders Redacted as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Parser().Marshal(c.Redacted())
}
