// Package cli provides the command-line interface for poloniex-int.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rescale/poloniex-int/internal/logging"
	"github.com/rescale/poloniex-int/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiKey     string
	secretFile string // Path to file containing the API secret
	publicURL  string
	privateURL string
	rate       float64
	logFile    string
	verbose    bool
	debug      bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "poloniex-int",
		Short: "Rate-limited, signed command-line client for the Poloniex API",
		Long: `poloniex-int ` + version.Version + ` - Built: ` + version.BuildTime + `
Command-line client for the Poloniex public and trading APIs.

Every call is throttled by a per-client token bucket, private calls are
signed with HMAC-SHA512 and a fresh nonce, and transient failures (5xx,
429, network errors) are retried with exponential backoff.

Results are printed to stdout as JSON; logs go to stderr.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger
			logger = logging.NewLogger(logging.Options{File: logFile})
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Poloniex API key (overrides all other sources)")
	rootCmd.PersistentFlags().StringVar(&secretFile, "secret-file", "", "Path to file containing the API secret")
	rootCmd.PersistentFlags().StringVar(&publicURL, "public-url", "", "Public API endpoint (overrides config)")
	rootCmd.PersistentFlags().StringVar(&privateURL, "private-url", "", "Trading API endpoint (overrides config)")
	rootCmd.PersistentFlags().Float64Var(&rate, "rate", 0, "Requests per second per client (0 = config value)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this rotated file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	// Create a context that can be cancelled by signals
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	// Set up signal handling for graceful cancellation
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so that repeated Ctrl+C presses do not kill the process mid-write
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(rootContext)

	// Clean up signal handler
	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newPublicCmd())
	rootCmd.AddCommand(newPrivateCmd())
	rootCmd.AddCommand(newDemoCmd())
	rootCmd.AddCommand(newConfigCmd())

	// Add shortcuts for convenience
	AddShortcuts(rootCmd)
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		// Fallback to background context if called before Execute()
		return context.Background()
	}
	return rootContext
}
