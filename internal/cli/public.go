package cli

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rescale/poloniex-int/internal/api"
)

// maxConcurrentBooks bounds the parallel order book fetches of 'public book'.
// The client's limiter still spaces the requests.
const maxConcurrentBooks = 4

// newPublicCmd creates the 'public' command group.
func newPublicCmd() *cobra.Command {
	publicCmd := &cobra.Command{
		Use:   "public",
		Short: "Market data commands (no credentials needed)",
		Long:  `Commands for the unauthenticated market data API.`,
	}

	publicCmd.AddCommand(newTickerCmd())
	publicCmd.AddCommand(newVolumeCmd())
	publicCmd.AddCommand(newBookCmd())
	publicCmd.AddCommand(newPublicTradesCmd())
	publicCmd.AddCommand(newChartCmd())
	publicCmd.AddCommand(newCurrenciesCmd())
	publicCmd.AddCommand(newLoansCmd())

	return publicCmd
}

// runPublic creates a public client, runs fn, and prints its result.
func runPublic(cmd *cobra.Command, fn func(c *api.PublicClient) (any, error)) error {
	client, err := getPublicClient()
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

// newTickerCmd creates the 'public ticker' command.
func newTickerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ticker [pair...]",
		Short: "Show the ticker of every market, or of the given pairs",
		Long: `Show the ticker of every market.

Examples:
  poloniex-int public ticker
  poloniex-int public ticker BTC_ETH BTC_XMR`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublic(cmd, func(c *api.PublicClient) (any, error) {
				resp, err := c.ReturnTicker(GetContext())
				if err != nil || len(args) == 0 {
					return resp, err
				}
				return filterPairs(resp, args)
			})
		},
	}
}

// filterPairs keeps only the requested markets of a ticker mapping.
func filterPairs(resp any, pairs []string) (any, error) {
	all, ok := resp.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected ticker response of type %T", resp)
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		pair = strings.ToUpper(pair)
		v, ok := all[pair]
		if !ok {
			return nil, fmt.Errorf("unknown market %s", pair)
		}
		out[pair] = v
	}
	return out, nil
}

// newVolumeCmd creates the 'public volume' command.
func newVolumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "volume",
		Short: "Show 24-hour volume of every market",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublic(cmd, func(c *api.PublicClient) (any, error) {
				return c.Return24hVolume(GetContext())
			})
		},
	}
}

// newBookCmd creates the 'public book' command.
func newBookCmd() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "book [pair...]",
		Short: "Show order books",
		Long: `Show the order book of the given pairs, or of every market.

Several pairs are fetched concurrently; the client's rate limit still
applies to every request.

Examples:
  poloniex-int public book
  poloniex-int public book BTC_ETH --depth 20
  poloniex-int public book BTC_ETH BTC_XMR USDT_BTC`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < 0 {
				return fmt.Errorf("--depth must not be negative, got %d", depth)
			}
			return runPublic(cmd, func(c *api.PublicClient) (any, error) {
				if len(args) <= 1 {
					pair := ""
					if len(args) == 1 {
						pair = strings.ToUpper(args[0])
					}
					return c.ReturnOrderBook(GetContext(), pair, depth)
				}
				return fetchBooks(c, args, depth)
			})
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "Entries per side (0 = server default)")

	return cmd
}

// fetchBooks fetches several order books concurrently. The first failure
// cancels the rest.
func fetchBooks(c *api.PublicClient, pairs []string, depth int) (map[string]any, error) {
	g, ctx := errgroup.WithContext(GetContext())
	g.SetLimit(maxConcurrentBooks)

	var mu sync.Mutex
	books := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		pair := strings.ToUpper(pair)
		g.Go(func() error {
			book, err := c.ReturnOrderBook(ctx, pair, depth)
			if err != nil {
				return fmt.Errorf("%s: %w", pair, err)
			}
			mu.Lock()
			books[pair] = book
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return books, nil
}

// newPublicTradesCmd creates the 'public trades' command.
func newPublicTradesCmd() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "trades <pair>",
		Short: "Show recent public trades of a market",
		Long: `Show recent public trades of a market.

--start and --end are only sent together; --start alone uses now as end.

Examples:
  poloniex-int public trades BTC_ETH
  poloniex-int public trades BTC_ETH --start 6h
  poloniex-int public trades BTC_ETH --start 2024-01-01 --end 2024-01-02`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var window *api.TimeRange
			if start != "" || end != "" {
				w, err := parseWindow(start, end, time.Now())
				if err != nil {
					return err
				}
				if w.Start.IsZero() {
					return fmt.Errorf("--end requires --start")
				}
				window = &w
			}
			return runPublic(cmd, func(c *api.PublicClient) (any, error) {
				return c.ReturnTradeHistory(GetContext(), strings.ToUpper(args[0]), window)
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Window start (UNIX seconds, RFC 3339, date, or duration ago)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (default: now)")

	return cmd
}

// newChartCmd creates the 'public chart' command.
func newChartCmd() *cobra.Command {
	var start, end string
	var period int

	cmd := &cobra.Command{
		Use:   "chart <pair>",
		Short: "Show candlestick data of a market",
		Long: `Show candlestick data of a market.

Valid periods (seconds): 300, 900, 1800, 7200, 14400, 86400.

Examples:
  poloniex-int public chart BTC_ETH
  poloniex-int public chart BTC_ETH --period 86400 --start 720h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := api.ChartPeriod(period)
			switch p {
			case api.Period5Min, api.Period15Min, api.Period30Min, api.Period2Hour, api.Period4Hour, api.Period1Day:
			default:
				return fmt.Errorf("invalid --period %d", period)
			}
			window, err := parseWindow(start, end, time.Now())
			if err != nil {
				return err
			}
			return runPublic(cmd, func(c *api.PublicClient) (any, error) {
				return c.ReturnChartData(GetContext(), strings.ToUpper(args[0]), p, window)
			})
		},
	}

	cmd.Flags().IntVar(&period, "period", int(api.Period5Min), "Candlestick width in seconds")
	cmd.Flags().StringVar(&start, "start", "24h", "Window start (UNIX seconds, RFC 3339, date, or duration ago)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (default: now)")

	return cmd
}

// newCurrenciesCmd creates the 'public currencies' command.
func newCurrenciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "currencies",
		Short: "Show information about every currency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublic(cmd, func(c *api.PublicClient) (any, error) {
				return c.ReturnCurrencies(GetContext())
			})
		},
	}
}

// newLoansCmd creates the 'public loans' command.
func newLoansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loans <currency>",
		Short: "Show loan offers and demands of a currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublic(cmd, func(c *api.PublicClient) (any, error) {
				return c.ReturnLoanOrders(GetContext(), strings.ToUpper(args[0]))
			})
		},
	}
}
