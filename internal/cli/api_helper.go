package cli

import (
	"fmt"

	"github.com/rescale/poloniex-int/internal/api"
	"github.com/rescale/poloniex-int/internal/auth"
	"github.com/rescale/poloniex-int/internal/config"
	"github.com/rescale/poloniex-int/internal/http"
	"github.com/rescale/poloniex-int/internal/logging"
)

// configPath returns the --config path or the default one, and whether a
// missing file is acceptable.
func configPath() (string, bool) {
	if cfgFile != "" {
		return cfgFile, false
	}
	return config.GetDefaultConfigPath(), true
}

// loadConfig loads the config file and merges environment and flags.
// Priority: flags > environment > config file > defaults
func loadConfig() (*config.Config, error) {
	path, allowMissing := configPath()
	cfg, err := config.Load(path, allowMissing)
	if err != nil {
		return nil, err
	}

	err = cfg.MergeWithFlags(config.Overrides{
		APIKey:     apiKey,
		SecretFile: secretFile,
		PublicURL:  publicURL,
		PrivateURL: privateURL,
		Rate:       rate,
		LogFile:    logFile,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Config file settings apply unless overridden on the command line
	if !verbose && !debug && cfg.Log.Level != "" {
		logging.SetGlobalLevel(logging.ParseLevel(cfg.Log.Level))
	}
	if logFile == "" && cfg.Log.File != "" {
		logger = logging.NewLogger(logging.Options{File: cfg.Log.File})
	}
	return cfg, nil
}

// ensureProxyPassword prompts for the proxy password when the proxy needs
// one and none is configured.
func ensureProxyPassword(cfg *config.Config) error {
	if !http.NeedsProxyPassword(cfg.Proxy) {
		return nil
	}
	password, err := promptSecret(fmt.Sprintf("Proxy password for %s", cfg.Proxy.User))
	if err != nil {
		return fmt.Errorf("proxy password required: %w", err)
	}
	cfg.Proxy.Password = password
	return nil
}

// getPublicClient loads configuration and creates a public API client.
func getPublicClient() (*api.PublicClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := ensureProxyPassword(cfg); err != nil {
		return nil, err
	}

	client, err := api.NewPublicClient(api.Options{Config: cfg, Logger: GetLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

// getPrivateClient loads configuration and creates a private API client.
// The secret is prompted for when it is not configured and stdin is a
// terminal.
func getPrivateClient() (*api.PrivateClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required (use --api-key flag, %s env var, or config file)", config.EnvAPIKey)
	}
	if cfg.APISecret == "" {
		secret, err := promptSecret("API secret")
		if err != nil {
			return nil, fmt.Errorf("API secret is required (use --secret-file flag, %s env var, or 'config init'): %w",
				config.EnvAPISecret, err)
		}
		cfg.APISecret = secret
	}
	if err := ensureProxyPassword(cfg); err != nil {
		return nil, err
	}

	creds, err := auth.NewCredentials(cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, err
	}

	client, err := api.NewPrivateClient(creds, api.Options{Config: cfg, Logger: GetLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}
