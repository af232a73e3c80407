package cli

import (
	"github.com/spf13/cobra"
)

// AddShortcuts adds shortcut commands to the root command.
// Shortcuts provide convenient aliases for commonly-used operations.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newTickerShortcut())
	rootCmd.AddCommand(newBalancesShortcut())
	rootCmd.AddCommand(newOrdersShortcut())
}

// asShortcut relabels a group subcommand for use at the top level.
func asShortcut(cmd *cobra.Command, full, short, examples string) *cobra.Command {
	cmd.Short = short + " (shortcut for '" + full + "')"
	cmd.Long = "Shortcut for '" + full + "'.\n\nExamples:\n" + examples
	return cmd
}

// newTickerShortcut creates the 'ticker' shortcut command.
// Shortcut for: public ticker
func newTickerShortcut() *cobra.Command {
	return asShortcut(newTickerCmd(), "public ticker", "Show tickers",
		`  poloniex-int ticker
  poloniex-int ticker BTC_ETH`)
}

// newBalancesShortcut creates the 'balances' shortcut command.
// Shortcut for: private balances
func newBalancesShortcut() *cobra.Command {
	return asShortcut(newBalancesCmd(), "private balances", "Show available balances",
		`  poloniex-int balances
  POLONIEX_API_KEY=... poloniex-int balances --secret-file ~/.poloniex-secret`)
}

// newOrdersShortcut creates the 'orders' shortcut command.
// Shortcut for: private open-orders
func newOrdersShortcut() *cobra.Command {
	cmd := asShortcut(newOpenOrdersCmd(), "private open-orders", "Show open orders",
		`  poloniex-int orders
  poloniex-int orders BTC_ETH`)
	cmd.Use = "orders [pair]"
	return cmd
}
