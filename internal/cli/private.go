package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescale/poloniex-int/internal/api"
)

// newPrivateCmd creates the 'private' command group.
func newPrivateCmd() *cobra.Command {
	privateCmd := &cobra.Command{
		Use:   "private",
		Short: "Account and trading commands (credentials required)",
		Long: `Commands for the signed trading API.

Credentials are read from --api-key/--secret-file, the POLONIEX_API_KEY and
POLONIEX_API_SECRET environment variables, or the config file.`,
	}

	privateCmd.AddCommand(newBalancesCmd())
	privateCmd.AddCommand(newCompleteBalancesCmd())
	privateCmd.AddCommand(newAddressesCmd())
	privateCmd.AddCommand(newOpenOrdersCmd())
	privateCmd.AddCommand(newPrivateTradesCmd())
	privateCmd.AddCommand(newFeeInfoCmd())
	privateCmd.AddCommand(newOrderCmd("buy"))
	privateCmd.AddCommand(newOrderCmd("sell"))
	privateCmd.AddCommand(newCancelCmd())

	return privateCmd
}

// runPrivate creates a private client, runs fn, and prints its result.
func runPrivate(cmd *cobra.Command, fn func(c *api.PrivateClient) (any, error)) error {
	client, err := getPrivateClient()
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := fn(client)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), resp)
}

// newBalancesCmd creates the 'private balances' command.
func newBalancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Show available balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrivate(cmd, func(c *api.PrivateClient) (any, error) {
				return c.ReturnBalances(GetContext())
			})
		},
	}
}

// newCompleteBalancesCmd creates the 'private complete-balances' command.
func newCompleteBalancesCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "complete-balances",
		Short: "Show available, on-order and BTC-equivalent balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrivate(cmd, func(c *api.PrivateClient) (any, error) {
				return c.ReturnCompleteBalances(GetContext(), account)
			})
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Include this account (e.g. all)")

	return cmd
}

// newAddressesCmd creates the 'private addresses' command.
func newAddressesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "addresses",
		Short: "Show deposit addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrivate(cmd, func(c *api.PrivateClient) (any, error) {
				return c.ReturnDepositAddresses(GetContext())
			})
		},
	}
}

// newOpenOrdersCmd creates the 'private open-orders' command.
func newOpenOrdersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open-orders [pair]",
		Short: "Show open orders of one market, or of every market",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair := ""
			if len(args) == 1 {
				pair = strings.ToUpper(args[0])
			}
			return runPrivate(cmd, func(c *api.PrivateClient) (any, error) {
				return c.ReturnOpenOrders(GetContext(), pair)
			})
		},
	}
}

// newPrivateTradesCmd creates the 'private trade-history' command.
func newPrivateTradesCmd() *cobra.Command {
	var start, end string
	var limit int

	cmd := &cobra.Command{
		Use:   "trade-history [pair]",
		Short: "Show your trade history",
		Long: `Show your trade history of one market, or of every market.

Examples:
  poloniex-int private trade-history
  poloniex-int private trade-history BTC_ETH --start 168h --limit 100`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative, got %d", limit)
			}
			filter := api.HistoryFilter{Limit: limit}
			if start != "" || end != "" {
				window, err := parseWindow(start, end, time.Now())
				if err != nil {
					return err
				}
				filter.Start, filter.End = window.Start, window.End
			}
			pair := ""
			if len(args) == 1 {
				pair = strings.ToUpper(args[0])
			}
			return runPrivate(cmd, func(c *api.PrivateClient) (any, error) {
				return c.ReturnTradeHistory(GetContext(), pair, filter)
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Window start (UNIX seconds, RFC 3339, date, or duration ago)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (default: now when --start is set)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of trades (0 = server default)")

	return cmd
}

// newFeeInfoCmd creates the 'private fee-info' command.
func newFeeInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fee-info",
		Short: "Show maker/taker fees and 30-day volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrivate(cmd, func(c *api.PrivateClient) (any, error) {
				return c.ReturnFeeInfo(GetContext())
			})
		},
	}
}

// newOrderCmd creates the 'private buy' or 'private sell' command.
func newOrderCmd(side string) *cobra.Command {
	var orderType string
	var yes bool

	cmd := &cobra.Command{
		Use:   side + " <pair> <rate> <amount>",
		Short: fmt.Sprintf("Place a limit %s order", side),
		Long: fmt.Sprintf(`Place a limit %[1]s order.

Rate and amount are sent with eight decimal places. The order is confirmed
interactively unless --yes is given.

Examples:
  poloniex-int private %[1]s BTC_ETH 0.0701 1.5
  poloniex-int private %[1]s BTC_ETH 0.0701 1.5 --type postOnly --yes`, side),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair := strings.ToUpper(args[0])
			price, err := parsePositiveDecimal("rate", args[1])
			if err != nil {
				return err
			}
			amount, err := parsePositiveDecimal("amount", args[2])
			if err != nil {
				return err
			}
			ot, err := api.ParseOrderType(orderType)
			if err != nil {
				return err
			}

			if !yes {
				if !isInteractive() {
					return fmt.Errorf("refusing to place an order without --yes: %w", errNotInteractive)
				}
				question := fmt.Sprintf("%s %s %s at %s?", strings.ToUpper(side[:1])+side[1:],
					amount.StringFixed(8), pair, price.StringFixed(8))
				if !confirm(bufio.NewReader(os.Stdin), os.Stderr, question) {
					return fmt.Errorf("order not placed")
				}
			}

			return runPrivate(cmd, func(c *api.PrivateClient) (any, error) {
				if side == "buy" {
					return c.Buy(GetContext(), pair, price, amount, ot)
				}
				return c.Sell(GetContext(), pair, price, amount, ot)
			})
		},
	}

	cmd.Flags().StringVar(&orderType, "type", "", "Order type: fillOrKill, immediateOrCancel or postOnly")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

// newCancelCmd creates the 'private cancel' command.
func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <orderNumber>",
		Short: "Cancel an open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseOrderNumber(args[0])
			if err != nil {
				return err
			}
			return runPrivate(cmd, func(c *api.PrivateClient) (any, error) {
				return c.CancelOrder(GetContext(), n)
			})
		},
	}
}
