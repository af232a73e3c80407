package api

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rescale/poloniex-int/internal/auth"
)

// OrderType is an optional execution flag of buy, sell, and moveOrder.
type OrderType string

const (
	OrderTypeNone              OrderType = ""
	OrderTypeFillOrKill        OrderType = "fillOrKill"
	OrderTypeImmediateOrCancel OrderType = "immediateOrCancel"
	OrderTypePostOnly          OrderType = "postOnly"
)

// ParseOrderType converts a flag value into an OrderType.
func ParseOrderType(s string) (OrderType, error) {
	switch t := OrderType(s); t {
	case OrderTypeNone, OrderTypeFillOrKill, OrderTypeImmediateOrCancel, OrderTypePostOnly:
		return t, nil
	default:
		return OrderTypeNone, fmt.Errorf("unknown order type %q (want fillOrKill, immediateOrCancel or postOnly)", s)
	}
}

func (t OrderType) apply(p auth.Params) {
	if t != OrderTypeNone {
		p[string(t)] = 1
	}
}

// HistoryFilter narrows account history queries. Zero fields are omitted.
type HistoryFilter struct {
	Start time.Time
	End   time.Time
	Limit int
}

func (f HistoryFilter) apply(p auth.Params) {
	if !f.Start.IsZero() {
		p["start"] = f.Start.Unix()
	}
	if !f.End.IsZero() {
		p["end"] = f.End.Unix()
	}
	if f.Limit > 0 {
		p["limit"] = f.Limit
	}
}

func (c *PrivateClient) call(ctx context.Context, command string, params auth.Params) (any, error) {
	return c.dispatcher.Do(ctx, RequestSpec{
		URL:           c.baseURL,
		Command:       command,
		Body:          params,
		Authenticated: true,
	})
}

func pairOrAll(pair string) string {
	if pair == "" {
		return AllPairs
	}
	return pair
}

// ReturnBalances returns the available balance of every currency.
func (c *PrivateClient) ReturnBalances(ctx context.Context) (any, error) {
	return c.call(ctx, "returnBalances", nil)
}

// ReturnCompleteBalances returns available, on-order, and BTC-equivalent
// balances. An empty account means the exchange account only.
func (c *PrivateClient) ReturnCompleteBalances(ctx context.Context, account string) (any, error) {
	params := auth.Params{}
	if account != "" {
		params["account"] = account
	}
	return c.call(ctx, "returnCompleteBalances", params)
}

// ReturnDepositAddresses returns all deposit addresses of the account.
func (c *PrivateClient) ReturnDepositAddresses(ctx context.Context) (any, error) {
	return c.call(ctx, "returnDepositAddresses", nil)
}

// GenerateNewAddress creates a deposit address for currency.
func (c *PrivateClient) GenerateNewAddress(ctx context.Context, currency string) (any, error) {
	return c.call(ctx, "generateNewAddress", auth.Params{"currency": currency})
}

// ReturnDepositsWithdrawals returns deposits and withdrawals within window.
func (c *PrivateClient) ReturnDepositsWithdrawals(ctx context.Context, window TimeRange) (any, error) {
	params := auth.Params{}
	window.apply(params)
	return c.call(ctx, "returnDepositsWithdrawals", params)
}

// ReturnOpenOrders returns open orders of pair, or of all markets when pair
// is empty.
func (c *PrivateClient) ReturnOpenOrders(ctx context.Context, pair string) (any, error) {
	return c.call(ctx, "returnOpenOrders", auth.Params{"currencyPair": pairOrAll(pair)})
}

// ReturnTradeHistory returns the account's trades of pair (all when empty).
func (c *PrivateClient) ReturnTradeHistory(ctx context.Context, pair string, filter HistoryFilter) (any, error) {
	params := auth.Params{"currencyPair": pairOrAll(pair)}
	filter.apply(params)
	return c.call(ctx, "returnTradeHistory", params)
}

// ReturnOrderTrades returns the trades that filled an order.
func (c *PrivateClient) ReturnOrderTrades(ctx context.Context, orderNumber int64) (any, error) {
	return c.call(ctx, "returnOrderTrades", auth.Params{"orderNumber": orderNumber})
}

func (c *PrivateClient) placeOrder(ctx context.Context, command, pair string, rate, amount decimal.Decimal, orderType OrderType) (any, error) {
	params := auth.Params{
		"currencyPair": pair,
		"rate":         rate,
		"amount":       amount,
	}
	orderType.apply(params)
	return c.call(ctx, command, params)
}

// Buy places a limit buy order.
func (c *PrivateClient) Buy(ctx context.Context, pair string, rate, amount decimal.Decimal, orderType OrderType) (any, error) {
	return c.placeOrder(ctx, "buy", pair, rate, amount, orderType)
}

// Sell places a limit sell order.
func (c *PrivateClient) Sell(ctx context.Context, pair string, rate, amount decimal.Decimal, orderType OrderType) (any, error) {
	return c.placeOrder(ctx, "sell", pair, rate, amount, orderType)
}

// CancelOrder cancels an open order.
func (c *PrivateClient) CancelOrder(ctx context.Context, orderNumber int64) (any, error) {
	return c.call(ctx, "cancelOrder", auth.Params{"orderNumber": orderNumber})
}

// MoveOrder cancels an order and places a new one at rate. A zero amount
// keeps the original amount.
func (c *PrivateClient) MoveOrder(ctx context.Context, orderNumber int64, rate, amount decimal.Decimal, orderType OrderType) (any, error) {
	params := auth.Params{
		"orderNumber": orderNumber,
		"rate":        rate,
	}
	if !amount.IsZero() {
		params["amount"] = amount
	}
	orderType.apply(params)
	return c.call(ctx, "moveOrder", params)
}

// Withdraw sends amount of currency to address. paymentID is optional.
func (c *PrivateClient) Withdraw(ctx context.Context, currency string, amount decimal.Decimal, address, paymentID string) (any, error) {
	params := auth.Params{
		"currency": currency,
		"amount":   amount,
		"address":  address,
	}
	if paymentID != "" {
		params["paymentId"] = paymentID
	}
	return c.call(ctx, "withdraw", params)
}

// ReturnFeeInfo returns the account's maker and taker fees.
func (c *PrivateClient) ReturnFeeInfo(ctx context.Context) (any, error) {
	return c.call(ctx, "returnFeeInfo", nil)
}

// ReturnAvailableAccountBalances returns balances by account (exchange,
// margin, lending), or of one account when account is not empty.
func (c *PrivateClient) ReturnAvailableAccountBalances(ctx context.Context, account string) (any, error) {
	params := auth.Params{}
	if account != "" {
		params["account"] = account
	}
	return c.call(ctx, "returnAvailableAccountBalances", params)
}

// ReturnTradableBalances returns the current tradable margin balances.
func (c *PrivateClient) ReturnTradableBalances(ctx context.Context) (any, error) {
	return c.call(ctx, "returnTradableBalances", nil)
}

// TransferBalance moves amount of currency between two accounts.
func (c *PrivateClient) TransferBalance(ctx context.Context, currency string, amount decimal.Decimal, fromAccount, toAccount string) (any, error) {
	return c.call(ctx, "transferBalance", auth.Params{
		"currency":    currency,
		"amount":      amount,
		"fromAccount": fromAccount,
		"toAccount":   toAccount,
	})
}

// ReturnMarginAccountSummary returns a summary of the margin account.
func (c *PrivateClient) ReturnMarginAccountSummary(ctx context.Context) (any, error) {
	return c.call(ctx, "returnMarginAccountSummary", nil)
}

func (c *PrivateClient) marginOrder(ctx context.Context, command, pair string, rate, amount, lendingRate decimal.Decimal) (any, error) {
	params := auth.Params{
		"currencyPair": pair,
		"rate":         rate,
		"amount":       amount,
	}
	if !lendingRate.IsZero() {
		params["lendingRate"] = lendingRate
	}
	return c.call(ctx, command, params)
}

// MarginBuy places a margin buy order. A zero lendingRate lets the
// exchange choose.
func (c *PrivateClient) MarginBuy(ctx context.Context, pair string, rate, amount, lendingRate decimal.Decimal) (any, error) {
	return c.marginOrder(ctx, "marginBuy", pair, rate, amount, lendingRate)
}

// MarginSell places a margin sell order.
func (c *PrivateClient) MarginSell(ctx context.Context, pair string, rate, amount, lendingRate decimal.Decimal) (any, error) {
	return c.marginOrder(ctx, "marginSell", pair, rate, amount, lendingRate)
}

// GetMarginPosition returns the margin position of pair (all when empty).
func (c *PrivateClient) GetMarginPosition(ctx context.Context, pair string) (any, error) {
	return c.call(ctx, "getMarginPosition", auth.Params{"currencyPair": pairOrAll(pair)})
}

// CloseMarginPosition closes the margin position of pair at market price.
func (c *PrivateClient) CloseMarginPosition(ctx context.Context, pair string) (any, error) {
	return c.call(ctx, "closeMarginPosition", auth.Params{"currencyPair": pair})
}

// CreateLoanOffer offers amount of currency for durationDays at lendingRate.
func (c *PrivateClient) CreateLoanOffer(ctx context.Context, currency string, amount decimal.Decimal, durationDays int, autoRenew bool, lendingRate decimal.Decimal) (any, error) {
	return c.call(ctx, "createLoanOffer", auth.Params{
		"currency":    currency,
		"amount":      amount,
		"duration":    durationDays,
		"autoRenew":   autoRenew,
		"lendingRate": lendingRate,
	})
}

// CancelLoanOffer cancels a loan offer.
func (c *PrivateClient) CancelLoanOffer(ctx context.Context, orderNumber int64) (any, error) {
	return c.call(ctx, "cancelLoanOffer", auth.Params{"orderNumber": orderNumber})
}

// ReturnOpenLoanOffers returns the account's open loan offers.
func (c *PrivateClient) ReturnOpenLoanOffers(ctx context.Context) (any, error) {
	return c.call(ctx, "returnOpenLoanOffers", nil)
}

// ReturnActiveLoans returns the account's active loans.
func (c *PrivateClient) ReturnActiveLoans(ctx context.Context) (any, error) {
	return c.call(ctx, "returnActiveLoans", nil)
}

// ReturnLendingHistory returns lending history within window. limit 0 uses
// the server default.
func (c *PrivateClient) ReturnLendingHistory(ctx context.Context, window TimeRange, limit int) (any, error) {
	params := auth.Params{}
	window.apply(params)
	if limit > 0 {
		params["limit"] = limit
	}
	return c.call(ctx, "returnLendingHistory", params)
}

// ToggleAutoRenew flips the auto-renew setting of an active loan.
func (c *PrivateClient) ToggleAutoRenew(ctx context.Context, orderNumber int64) (any, error) {
	return c.call(ctx, "toggleAutoRenew", auth.Params{"orderNumber": orderNumber})
}
