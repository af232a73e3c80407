package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescale/poloniex-int/internal/config"
)

// isolate points HOME at a temp dir and clears the credential environment
// so that nothing from the developer's machine leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, name := range []string{config.EnvAPIKey, config.EnvAPISecret, config.EnvPublicURL, config.EnvPrivateURL} {
		t.Setenv(name, "")
	}
	return home
}

// runCLI executes the full command tree with args and returns stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	AddCommands(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

// writeConfig writes a YAML config pointing at serverURL with fast retries.
func writeConfig(t *testing.T, serverURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := fmt.Sprintf(`endpoints:
  public_url: %[1]s/public
  private_url: %[1]s/tradingApi
rate_limit:
  requests_per_second: 1000
  burst: 1000
retry:
  backoff_base: 1ms
  jitter_max: 1ms
  max_elapsed: 1s
log:
  level: error
`, serverURL)
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	return path
}

func TestConfigCmd(t *testing.T) {
	cmd := newConfigCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "config", cmd.Use)

	found := map[string]bool{}
	for _, sub := range cmd.Commands() {
		found[sub.Name()] = true
	}
	for _, name := range []string{"init", "show", "test", "path"} {
		assert.True(t, found[name], "subcommand %s", name)
	}

	initCmd, _, err := cmd.Find([]string{"init"})
	require.NoError(t, err)
	assert.NotNil(t, initCmd.Flags().Lookup("force"))
}

func TestConfigInitWritesConfigAndSecret(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := runCLI(t, "MYKEY\nmy-secret\n2.5\n", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration saved to: "+path)

	cfg, err := config.Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "MYKEY", cfg.APIKey)
	assert.Empty(t, cfg.APISecret, "secret must not be written to the config file")
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)

	secretPath := filepath.Join(home, ".config", config.ConfigDir, "secret")
	secret, err := config.ReadSecretFile(secretPath)
	require.NoError(t, err)
	assert.Equal(t, "my-secret", secret)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigInitKeepsExistingConfig(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: OLD\n"), 0600))

	out, err := runCLI(t, "NEW\nsecret\n\n", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "api_key: OLD\n", string(data))

	_, err = runCLI(t, "NEW\nsecret\n\n", "--config", path, "config", "init", "--force")
	require.NoError(t, err)
	cfg, err := config.Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "NEW", cfg.APIKey)
}

func TestConfigInitRejectsBadRate(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := runCLI(t, "KEY\nsecret\nfast\n", "--config", path, "config", "init")
	assert.ErrorContains(t, err, "invalid rate")
	assert.NoFileExists(t, path)
}

func TestConfigShowMasksSecrets(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "https://example.invalid")
	t.Setenv(config.EnvAPISecret, "super-secret")

	out, err := runCLI(t, "", "--config", path, "--api-key", "VISIBLEKEY", "config", "show")
	require.NoError(t, err)

	assert.NotContains(t, out, "super-secret")
	assert.NotContains(t, out, "VISIBLEKEY")
	assert.Contains(t, out, "https://example.invalid/public")
	assert.Contains(t, out, "API key:    flag")
	assert.Contains(t, out, "API secret: environment")
}

func TestConfigPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "missing.yaml")

	out, err := runCLI(t, "", "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "from --config flag")
	assert.Contains(t, out, "File does not exist")
}

func TestConfigTestPublicOnly(t *testing.T) {
	isolate(t)
	server := newExchange(t, nil)
	path := writeConfig(t, server.URL)

	out, err := runCLI(t, "", "--config", path, "config", "test")
	require.NoError(t, err)
	assert.Contains(t, out, "Public API reachable")
	assert.Contains(t, out, "Trading API skipped")
}

func TestConfigDefaultPath(t *testing.T) {
	isolate(t)
	path := config.GetDefaultConfigPath()
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, strings.HasSuffix(path, filepath.Join(config.ConfigDir, "config.yaml")))
}
