package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rescale/poloniex-int/internal/config"
	"github.com/rescale/poloniex-int/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage poloniex-int configuration",
		Long: `Configuration management commands for poloniex-int.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test API connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// readSecret prompts without echo when in is the terminal and falls back to
// a plain line read otherwise, so that setup can be scripted.
func readSecret(in io.Reader, reader *bufio.Reader, out io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && f == os.Stdin && isInteractive() {
		return promptSecret(label)
	}
	return promptLine(reader, out, label, "")
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for poloniex-int.

The configuration is saved to ~/.config/poloniex-int/config.yaml (or the
--config path) and the API secret to a separate owner-only file next to it.

Use --force to overwrite existing configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()
			out := cmd.OutOrStdout()

			path, _ := configPath()
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "Poloniex Configuration Setup")
			fmt.Fprintln(out, "============================")
			fmt.Fprintln(out)

			in := cmd.InOrStdin()
			reader := bufio.NewReader(in)
			cfg := config.Default()

			var err error
			for cfg.APIKey == "" {
				cfg.APIKey, err = promptLine(reader, out, "API key (required)", "")
				if err != nil {
					return fmt.Errorf("failed to read API key: %w", err)
				}
				if cfg.APIKey == "" {
					fmt.Fprintln(out, "  Error: API key is required")
				}
			}

			secret, err := readSecret(in, reader, out, "API secret (required)")
			if err != nil {
				return fmt.Errorf("failed to read API secret: %w", err)
			}
			if secret == "" {
				return fmt.Errorf("API secret is required")
			}

			def := strconv.FormatFloat(cfg.RateLimit.RequestsPerSecond, 'f', -1, 64)
			rateInput, err := promptLine(reader, out, "Requests per second", def)
			if err != nil {
				return fmt.Errorf("failed to read rate: %w", err)
			}
			r, err := strconv.ParseFloat(rateInput, 64)
			if err != nil || r <= 0 {
				return fmt.Errorf("invalid rate %q: must be a positive number", rateInput)
			}
			cfg.RateLimit.RequestsPerSecond = r
			cfg.RateLimit.Burst = r

			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			log.Info().Str("path", path).Msg("Configuration saved")

			secretPath := config.GetDefaultSecretPath()
			if secretPath == "" {
				return fmt.Errorf("could not determine where to store the API secret")
			}
			if err := config.WriteSecretFile(secretPath, secret); err != nil {
				return err
			}
			log.Info().Str("path", secretPath).Msg("API secret saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			fmt.Fprintf(out, "✓ API secret saved to:    %s\n", secretPath)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Test your configuration with: poloniex-int config test")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings with secrets masked.

This command shows the merged configuration from:
  1. Configuration file (~/.config/poloniex-int/config.yaml)
  2. Environment variables (POLONIEX_API_KEY, POLONIEX_API_SECRET, ...)
  3. Command-line flags (--api-key, --secret-file, ...)

Priority: flags > environment > config file > defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			creds, err := config.ResolveCredentials(apiKey, secretFile, cfg)
			if err != nil {
				return err
			}

			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)
			fmt.Fprint(out, string(data))
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Credential sources:")
			fmt.Fprintf(out, "  API key:    %s\n", sourceOrUnset(creds.KeySource))
			fmt.Fprintf(out, "  API secret: %s\n", sourceOrUnset(creds.SecretSource))
			fmt.Fprintln(out)

			path, _ := configPath()
			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

func sourceOrUnset(source string) string {
	if source == "" {
		return "<not set>"
	}
	return source
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test API connection",
		Long: `Test the API connection with current configuration.

The public endpoint is checked with returnTicker. When credentials are
configured, the trading endpoint is checked with returnFeeInfo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := GetLogger()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Testing API Connection")
			fmt.Fprintln(out, "======================")
			fmt.Fprintln(out)

			ctx, cancel := context.WithTimeout(GetContext(), constants.APIConnectionTestTimeout)
			defer cancel()

			pub, err := getPublicClient()
			if err != nil {
				return err
			}
			defer pub.Close()

			if _, err := pub.ReturnTicker(ctx); err != nil {
				log.Error().Err(err).Msg("Public connection test failed")
				fmt.Fprintln(out, "✗ Public API FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}
			fmt.Fprintln(out, "✓ Public API reachable")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.HasCredentials() {
				fmt.Fprintln(out, "- Trading API skipped (no credentials configured)")
				return nil
			}

			priv, err := getPrivateClient()
			if err != nil {
				return err
			}
			defer priv.Close()

			resp, err := priv.ReturnFeeInfo(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Trading connection test failed")
				fmt.Fprintln(out, "✗ Trading API FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}
			if err := printResult(out, resp); err != nil {
				fmt.Fprintln(out, "✗ Trading API rejected the credentials")
				return err
			}
			log.Info().Msg("Connection test successful")
			fmt.Fprintln(out, "✓ Trading API accepted the credentials")
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, isDefault := configPath()
			if isDefault {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n", path)
			fmt.Fprintln(out)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: poloniex-int config init")
			}
			return nil
		},
	}
}
