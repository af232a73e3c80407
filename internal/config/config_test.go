package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
endpoints:
  public_url: https://example.test/public
rate_limit:
  requests_per_second: 2
  burst: 4
retry:
  max_attempts: 3
  max_elapsed: 5s
proxy:
  mode: system
log:
  level: debug
`

const testJSON = `{
  "rate_limit": {"requests_per_second": 3, "burst": 3, "max_tracked_keys": 8},
  "http": {"disable_http2": true}
}`

// isolateHome points the config directory at a temp dir and clears credential env vars.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("APPDATA", home)
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPISecret, "")
	t.Setenv(EnvPublicURL, "")
	t.Setenv(EnvPrivateURL, "")
	return home
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// TestDefaultsAreValid verifies the documented defaults.
func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://poloniex.com/public", cfg.Endpoints.PublicURL)
	assert.Equal(t, "https://poloniex.com/tradingApi", cfg.Endpoints.PrivateURL)
	assert.Equal(t, 6.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 8*time.Second, cfg.Retry.MaxElapsed)
	assert.False(t, cfg.HasCredentials())
}

// TestLoadYAMLOverDefaults verifies file values override only the keys they name.
func TestLoadYAMLOverDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", testYAML), false)
	require.NoError(t, err)

	assert.Equal(t, "https://example.test/public", cfg.Endpoints.PublicURL)
	assert.Equal(t, "https://poloniex.com/tradingApi", cfg.Endpoints.PrivateURL, "untouched keys keep defaults")
	assert.Equal(t, 2.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 4.0, cfg.RateLimit.Burst)
	assert.Equal(t, 1, cfg.RateLimit.MaxTrackedKeys)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Retry.MaxElapsed)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BackoffBase)
	assert.Equal(t, "system", cfg.Proxy.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// TestLoadJSON verifies JSON files are parsed by extension.
func TestLoadJSON(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.json", testJSON), false)
	require.NoError(t, err)

	assert.Equal(t, 3.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 8, cfg.RateLimit.MaxTrackedKeys)
	assert.True(t, cfg.HTTP.DisableHTTP2)
}

// TestLoadErrors verifies unknown formats and missing files.
func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "config.toml", "a = 1"), false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, err = Load(missing, false)
	assert.ErrorIs(t, err, ErrLoadFailed)

	cfg, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = LoadBytes([]byte("rate_limit: [unclosed"), "yaml")
	assert.ErrorIs(t, err, ErrLoadFailed)
}

// TestValidateRejectsBadValues verifies each validation rule.
func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"rate":     func(c *Config) { c.RateLimit.RequestsPerSecond = 0 },
		"burst":    func(c *Config) { c.RateLimit.Burst = 0.5 },
		"keys":     func(c *Config) { c.RateLimit.MaxTrackedKeys = 0 },
		"attempts": func(c *Config) { c.Retry.MaxAttempts = 0 },
		"elapsed":  func(c *Config) { c.Retry.MaxElapsed = -time.Second },
		"proxy":    func(c *Config) { c.Proxy.Mode = "socks" },
		"endpoint": func(c *Config) { c.Endpoints.PrivateURL = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

// TestMergeWithFlagsPriority verifies flags > environment > file.
func TestMergeWithFlagsPriority(t *testing.T) {
	isolateHome(t)

	cfg := Default()
	cfg.APIKey = "file-key"
	cfg.APISecret = "file-secret"

	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvPublicURL, "env.example.test/public")

	secretFile := writeFile(t, "secret", "flag-secret\n")
	require.NoError(t, cfg.MergeWithFlags(Overrides{
		SecretFile: secretFile,
		PrivateURL: "https://flag.example.test/tradingApi",
		Rate:       2,
	}))

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "flag-secret", cfg.APISecret)
	assert.Equal(t, "https://env.example.test/public", cfg.Endpoints.PublicURL)
	assert.Equal(t, "https://flag.example.test/tradingApi", cfg.Endpoints.PrivateURL)
	assert.Equal(t, 2.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 2.0, cfg.RateLimit.Burst)

	require.NoError(t, cfg.MergeWithFlags(Overrides{APIKey: "flag-key"}))
	assert.Equal(t, "flag-key", cfg.APIKey)
}

// TestResolveCredentialsSources verifies the reported source of each half.
func TestResolveCredentialsSources(t *testing.T) {
	home := isolateHome(t)

	creds, err := ResolveCredentials("", "", Default())
	require.NoError(t, err)
	assert.Empty(t, creds.APIKey)
	assert.Empty(t, creds.SecretSource)

	require.NoError(t, WriteSecretFile(filepath.Join(home, ".config", ConfigDir, "secret"), "default-secret"))
	creds, err = ResolveCredentials("", "", &Config{APIKey: "cfg-key"})
	require.NoError(t, err)
	assert.Equal(t, "cfg-key", creds.APIKey)
	assert.Equal(t, "config", creds.KeySource)
	assert.Equal(t, "default-secret", creds.APISecret)
	assert.Equal(t, "default-secret-file", creds.SecretSource)

	t.Setenv(EnvAPISecret, "env-secret")
	creds, err = ResolveCredentials("flag-key", "", &Config{APISecret: "cfg-secret"})
	require.NoError(t, err)
	assert.Equal(t, "flag", creds.KeySource)
	assert.Equal(t, "env-secret", creds.APISecret)
	assert.Equal(t, "environment", creds.SecretSource)

	_, err = ResolveCredentials("", filepath.Join(home, "missing"), nil)
	assert.Error(t, err, "an explicitly named secret file must exist")
}

// TestSecretFileRoundTrip verifies permissions and trimming.
func TestSecretFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secret")
	require.NoError(t, WriteSecretFile(path, "  abc123  "))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	secret, err := ReadSecretFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", secret)

	assert.Error(t, WriteSecretFile(path, "   "))
}

// TestRedactedHidesSecrets verifies display output masks credentials.
func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Default()
	cfg.APIKey = "key"
	cfg.APISecret = "super-secret"
	cfg.Proxy.Password = "hunter2"

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "super-secret")
	assert.NotContains(t, string(out), "hunter2")
	assert.Contains(t, string(out), "requests_per_second")
}

// TestSaveRoundTrip verifies a saved file loads back without its secrets.
func TestSaveRoundTrip(t *testing.T) {
	isolateHome(t)
	cfg := Default()
	cfg.APIKey = "saved-key"
	cfg.APISecret = "never-written"
	cfg.Proxy.Password = "hunter2"
	cfg.RateLimit.RequestsPerSecond = 3
	cfg.Retry.BackoffBase = 250 * time.Millisecond

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-written")
	assert.NotContains(t, string(data), "hunter2")

	loaded, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "saved-key", loaded.APIKey)
	assert.Empty(t, loaded.APISecret)
	assert.Equal(t, 3.0, loaded.RateLimit.RequestsPerSecond)
	assert.Equal(t, 250*time.Millisecond, loaded.Retry.BackoffBase)
}
