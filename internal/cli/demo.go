package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescale/poloniex-int/internal/api"
	"github.com/rescale/poloniex-int/internal/logging"
	"github.com/rescale/poloniex-int/internal/progress"
)

// demoStep is one read-only call of the account tour.
type demoStep struct {
	name string
	call func(ctx context.Context, c *api.PrivateClient) (any, error)
}

// demoSteps returns the account tour. Windowed calls cover everything up to now.
func demoSteps(now time.Time) []demoStep {
	all := api.TimeRange{Start: time.Unix(0, 0), End: now}
	return []demoStep{
		{"returnBalances", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnBalances(ctx)
		}},
		{"returnCompleteBalances", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnCompleteBalances(ctx, "")
		}},
		{"returnDepositAddresses", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnDepositAddresses(ctx)
		}},
		{"returnDepositsWithdrawals", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnDepositsWithdrawals(ctx, all)
		}},
		{"returnOpenOrders", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnOpenOrders(ctx, "")
		}},
		{"returnTradeHistory", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnTradeHistory(ctx, "", api.HistoryFilter{})
		}},
		{"returnFeeInfo", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnFeeInfo(ctx)
		}},
		{"returnAvailableAccountBalances", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnAvailableAccountBalances(ctx, "")
		}},
		{"returnTradableBalances", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnTradableBalances(ctx)
		}},
		{"returnMarginAccountSummary", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnMarginAccountSummary(ctx)
		}},
		{"returnOpenLoanOffers", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnOpenLoanOffers(ctx)
		}},
		{"returnActiveLoans", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnActiveLoans(ctx)
		}},
		{"returnLendingHistory", func(ctx context.Context, c *api.PrivateClient) (any, error) {
			return c.ReturnLendingHistory(ctx, all, 0)
		}},
	}
}

// demoError is recorded in place of a step result that failed.
type demoError struct {
	Error string `json:"error"`
}

// runDemo runs every step, continuing past failures. It returns the results
// keyed by command and the number of failed steps. Cancellation stops the tour.
func runDemo(ctx context.Context, c *api.PrivateClient, steps []demoStep, rep progress.Reporter, log *logging.Logger) (map[string]any, int) {
	results := make(map[string]any, len(steps))
	failed := 0

	rep.Start(int64(len(steps)), "Touring account")
	defer rep.Finish()

	for i, step := range steps {
		if ctx.Err() != nil {
			break
		}
		rep.SetDescription(step.name)

		resp, err := step.call(ctx, c)
		switch {
		case err != nil:
			failed++
			log.Warn().Err(err).Str("command", step.name).Msg("Demo step failed")
			results[step.name] = demoError{Error: err.Error()}
		default:
			if msg, ok := api.SoftError(resp); ok {
				log.Warn().Str("command", step.name).Str("error", msg).Msg("Exchange reported an error")
			}
			results[step.name] = resp
		}
		rep.Update(int64(i + 1))
	}
	return results, failed
}

// newDemoCmd creates the 'demo' command.
func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a read-only tour of the trading API",
		Long: `Run every read-only account command once and print the results.

The tour places no orders and moves no funds. A failing step is reported and
the tour continues; the command fails if any step failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getPrivateClient()
			if err != nil {
				return err
			}
			defer client.Close()

			log := GetLogger()
			steps := demoSteps(time.Now())
			start := time.Now()
			results, failed := runDemo(GetContext(), client, steps, progress.New(os.Stderr), log)

			usage := client.Dispatcher().Usage()
			log.Info().
				Int("steps", len(steps)).
				Int("failed", failed).
				Int64("exchanges", usage.TotalCalls).
				Dur("elapsed", time.Since(start)).
				Msg("Demo finished")

			if err := printJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if err := GetContext().Err(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d demo steps failed", failed, len(steps))
			}
			return nil
		},
	}
}
