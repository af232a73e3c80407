package api

import (
	"context"
	"time"

	"github.com/rescale/poloniex-int/internal/auth"
)

// AllPairs selects every market in commands that accept a currency pair.
const AllPairs = "all"

// ChartPeriod is the candlestick width accepted by ReturnChartData.
type ChartPeriod int

// Candlestick widths supported by the exchange, in seconds.
const (
	Period5Min  ChartPeriod = 300
	Period15Min ChartPeriod = 900
	Period30Min ChartPeriod = 1800
	Period2Hour ChartPeriod = 7200
	Period4Hour ChartPeriod = 14400
	Period1Day  ChartPeriod = 86400
)

// TimeRange bounds history queries. Both ends are sent as UNIX seconds.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (r *TimeRange) apply(p auth.Params) {
	if r == nil {
		return
	}
	p["start"] = r.Start.Unix()
	p["end"] = r.End.Unix()
}

func (c *PublicClient) call(ctx context.Context, command string, params auth.Params) (any, error) {
	return c.dispatcher.Do(ctx, RequestSpec{
		URL:     c.baseURL,
		Command: command,
		Query:   params,
	})
}

// ReturnTicker returns the ticker of every market.
func (c *PublicClient) ReturnTicker(ctx context.Context) (any, error) {
	return c.call(ctx, "returnTicker", nil)
}

// Return24hVolume returns the 24-hour volume of every market and the totals
// per primary currency.
func (c *PublicClient) Return24hVolume(ctx context.Context) (any, error) {
	return c.call(ctx, "return24hVolume", nil)
}

// ReturnOrderBook returns the order book of pair, or of all markets when
// pair is empty. depth limits the entries per side; 0 uses the server default.
func (c *PublicClient) ReturnOrderBook(ctx context.Context, pair string, depth int) (any, error) {
	if pair == "" {
		pair = AllPairs
	}
	params := auth.Params{"currencyPair": pair}
	if depth > 0 {
		params["depth"] = depth
	}
	return c.call(ctx, "returnOrderBook", params)
}

// ReturnTradeHistory returns recent public trades of pair, restricted to
// window when it is not nil.
func (c *PublicClient) ReturnTradeHistory(ctx context.Context, pair string, window *TimeRange) (any, error) {
	params := auth.Params{"currencyPair": pair}
	window.apply(params)
	return c.call(ctx, "returnTradeHistory", params)
}

// ReturnChartData returns candlesticks of pair over window.
func (c *PublicClient) ReturnChartData(ctx context.Context, pair string, period ChartPeriod, window TimeRange) (any, error) {
	params := auth.Params{
		"currencyPair": pair,
		"period":       int(period),
	}
	window.apply(params)
	return c.call(ctx, "returnChartData", params)
}

// ReturnCurrencies returns information about every currency.
func (c *PublicClient) ReturnCurrencies(ctx context.Context) (any, error) {
	return c.call(ctx, "returnCurrencies", nil)
}

// ReturnLoanOrders returns the loan offers and demands of currency.
func (c *PublicClient) ReturnLoanOrders(ctx context.Context, currency string) (any, error) {
	return c.call(ctx, "returnLoanOrders", auth.Params{"currency": currency})
}
