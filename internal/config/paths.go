package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ConfigDir is the standard configuration directory name
const ConfigDir = "poloniex-int"

// getConfigDir returns the platform-appropriate config directory.
// - Windows: %APPDATA%\poloniex-int
// - Unix: ~/.config/poloniex-int (XDG standard)
func getConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, ConfigDir)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", ConfigDir)
	}
	return ""
}

// GetDefaultConfigPath returns the default config file path.
func GetDefaultConfigPath() string {
	configDir := getConfigDir()
	if configDir == "" {
		return "config.yaml"
	}
	return filepath.Join(configDir, "config.yaml")
}

// GetDefaultSecretPath returns the default API secret file path.
// This is where 'config init' saves the secret.
func GetDefaultSecretPath() string {
	configDir := getConfigDir()
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, "secret")
}

// LogDirectory returns the directory for rotated log files.
func LogDirectory() string {
	configDir := getConfigDir()
	if configDir == "" {
		return filepath.Join(os.TempDir(), "poloniex-int-logs")
	}
	return filepath.Join(configDir, "logs")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	configDir := getConfigDir()
	if configDir == "" {
		return fmt.Errorf("could not determine config directory")
	}
	return os.MkdirAll(configDir, 0700)
}

// ReadSecretFile reads an API secret from a file.
// The file should contain only the secret (whitespace is trimmed).
// Warns if file permissions are too open (not 0600 on Unix systems).
func ReadSecretFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat secret file: %w", err)
	}

	// Secret files should be readable only by owner (0600 or stricter)
	mode := info.Mode().Perm()
	if runtime.GOOS != "windows" && mode&0077 != 0 {
		fmt.Fprintf(os.Stderr, "Warning: Secret file %s has insecure permissions %04o. Consider using 'chmod 600 %s'\n", path, mode, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("secret file is empty")
	}
	return secret, nil
}

// WriteSecretFile writes an API secret to a file with secure permissions (0600).
func WriteSecretFile(path, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("cannot write empty secret")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create secret directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write secret file: %w", err)
	}
	return nil
}
