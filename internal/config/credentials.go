package config

import (
	"os"
)

// Environment variables read by MergeWithFlags and ResolveCredentials.
const (
	EnvAPIKey     = "POLONIEX_API_KEY"
	EnvAPISecret  = "POLONIEX_API_SECRET"
	EnvPublicURL  = "POLONIEX_PUBLIC_URL"
	EnvPrivateURL = "POLONIEX_PRIVATE_URL"
)

// Credentials is a resolved key pair together with where each half came from.
type Credentials struct {
	APIKey       string
	APISecret    string
	KeySource    string // "flag", "environment", "config", or ""
	SecretSource string // "secret-file", "environment", "config", "default-secret-file", or ""
}

// ResolveCredentials returns the API key and secret by checking multiple
// sources in priority order.
//
// Key priority (highest to lowest):
//  1. apiKey parameter (--api-key flag)
//  2. POLONIEX_API_KEY environment variable
//  3. api_key in the config file
//
// Secret priority (highest to lowest):
//  1. secretFile parameter (--secret-file flag)
//  2. POLONIEX_API_SECRET environment variable
//  3. api_secret in the config file
//  4. Default secret file (~/.config/poloniex-int/secret), created by 'config init'
//
// An explicitly named secret file that cannot be read is an error; missing
// values are not, since public commands need no credentials.
func ResolveCredentials(apiKey, secretFile string, cfg *Config) (Credentials, error) {
	var c Credentials

	switch {
	case apiKey != "":
		c.APIKey, c.KeySource = apiKey, "flag"
	case os.Getenv(EnvAPIKey) != "":
		c.APIKey, c.KeySource = os.Getenv(EnvAPIKey), "environment"
	case cfg != nil && cfg.APIKey != "":
		c.APIKey, c.KeySource = cfg.APIKey, "config"
	}

	if secretFile != "" {
		secret, err := ReadSecretFile(secretFile)
		if err != nil {
			return Credentials{}, err
		}
		c.APISecret, c.SecretSource = secret, "secret-file"
		return c, nil
	}

	switch {
	case os.Getenv(EnvAPISecret) != "":
		c.APISecret, c.SecretSource = os.Getenv(EnvAPISecret), "environment"
	case cfg != nil && cfg.APISecret != "":
		c.APISecret, c.SecretSource = cfg.APISecret, "config"
	default:
		if path := GetDefaultSecretPath(); path != "" {
			if secret, err := ReadSecretFile(path); err == nil {
				c.APISecret, c.SecretSource = secret, "default-secret-file"
			}
		}
	}
	return c, nil
}
