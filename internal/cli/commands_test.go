package cli

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescale/poloniex-int/internal/api"
	"github.com/rescale/poloniex-int/internal/auth"
	"github.com/rescale/poloniex-int/internal/config"
	"github.com/rescale/poloniex-int/internal/logging"
	"github.com/rescale/poloniex-int/internal/progress"
)

// fakeExchange answers every command with a canned body and records what it saw.
type fakeExchange struct {
	*httptest.Server

	mu       sync.Mutex
	commands []string
	forms    []url.Values
	keys     []string
	replies  map[string]reply
}

// reply overrides the canned answer for one command.
type reply struct {
	status int
	body   string
}

func newExchange(t *testing.T, replies map[string]reply) *fakeExchange {
	t.Helper()
	ex := &fakeExchange{replies: replies}
	ex.Server = httptest.NewServer(nethttp.HandlerFunc(ex.serve))
	t.Cleanup(ex.Close)
	return ex
}

func (ex *fakeExchange) serve(w nethttp.ResponseWriter, r *nethttp.Request) {
	var form url.Values
	if r.Method == nethttp.MethodPost {
		_ = r.ParseForm()
		form = r.PostForm
	} else {
		form = r.URL.Query()
	}
	command := form.Get("command")

	ex.mu.Lock()
	ex.commands = append(ex.commands, command)
	ex.forms = append(ex.forms, form)
	ex.keys = append(ex.keys, r.Header.Get(auth.HeaderKey))
	rep, ok := ex.replies[command]
	ex.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(rep.status)
		_, _ = w.Write([]byte(rep.body))
		return
	}
	switch command {
	case "returnTicker":
		_, _ = w.Write([]byte(`{"BTC_ETH":{"last":"0.07"},"BTC_XMR":{"last":"0.002"}}`))
	case "returnOrderBook":
		_ = json.NewEncoder(w).Encode(map[string]any{"asks": []any{}, "bids": []any{}, "pair": form.Get("currencyPair")})
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{"command": command})
	}
}

// seen returns a copy of the commands received so far.
func (ex *fakeExchange) seen() []string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return append([]string(nil), ex.commands...)
}

// formFor returns the form of the last request for command.
func (ex *fakeExchange) formFor(command string) url.Values {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	for i := len(ex.commands) - 1; i >= 0; i-- {
		if ex.commands[i] == command {
			return ex.forms[i]
		}
	}
	return nil
}

func decodeOutput(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m), out)
	return m
}

func TestPublicTickerFiltersPairs(t *testing.T) {
	isolate(t)
	ex := newExchange(t, nil)
	path := writeConfig(t, ex.URL)

	out, err := runCLI(t, "", "--config", path, "public", "ticker", "btc_eth")
	require.NoError(t, err)

	m := decodeOutput(t, out)
	assert.Contains(t, m, "BTC_ETH")
	assert.NotContains(t, m, "BTC_XMR")

	_, err = runCLI(t, "", "--config", path, "ticker", "BTC_NOPE")
	assert.ErrorContains(t, err, "unknown market BTC_NOPE")
}

func TestPublicBookSeveralPairs(t *testing.T) {
	isolate(t)
	ex := newExchange(t, nil)
	path := writeConfig(t, ex.URL)

	out, err := runCLI(t, "", "--config", path, "public", "book", "BTC_ETH", "btc_xmr", "USDT_BTC", "--depth", "5")
	require.NoError(t, err)

	m := decodeOutput(t, out)
	require.Len(t, m, 3)
	for _, pair := range []string{"BTC_ETH", "BTC_XMR", "USDT_BTC"} {
		book, ok := m[pair].(map[string]any)
		require.True(t, ok, pair)
		assert.Equal(t, pair, book["pair"])
	}
	assert.Len(t, ex.seen(), 3)
	assert.Equal(t, "5", ex.formFor("returnOrderBook").Get("depth"))
}

func TestPublicArgumentValidation(t *testing.T) {
	isolate(t)
	ex := newExchange(t, nil)
	path := writeConfig(t, ex.URL)

	_, err := runCLI(t, "", "--config", path, "public", "book", "--depth", "-1")
	assert.ErrorContains(t, err, "--depth")

	_, err = runCLI(t, "", "--config", path, "public", "chart", "BTC_ETH", "--period", "60")
	assert.ErrorContains(t, err, "invalid --period")

	_, err = runCLI(t, "", "--config", path, "public", "trades", "BTC_ETH", "--end", "1h")
	assert.ErrorContains(t, err, "--end requires --start")

	assert.Empty(t, ex.seen())
}

func TestPublicChartSendsWindow(t *testing.T) {
	isolate(t)
	ex := newExchange(t, nil)
	path := writeConfig(t, ex.URL)

	_, err := runCLI(t, "", "--config", path, "public", "chart", "btc_eth",
		"--period", "86400", "--start", "1700000000", "--end", "1700086400")
	require.NoError(t, err)

	form := ex.formFor("returnChartData")
	require.NotNil(t, form)
	assert.Equal(t, "BTC_ETH", form.Get("currencyPair"))
	assert.Equal(t, "86400", form.Get("period"))
	assert.Equal(t, "1700000000", form.Get("start"))
	assert.Equal(t, "1700086400", form.Get("end"))
}

func TestPrivateRequiresKey(t *testing.T) {
	isolate(t)
	ex := newExchange(t, nil)
	path := writeConfig(t, ex.URL)

	_, err := runCLI(t, "", "--config", path, "private", "balances")
	assert.ErrorContains(t, err, "API key is required")
	assert.Empty(t, ex.seen())
}

func TestPrivateBalancesSigned(t *testing.T) {
	isolate(t)
	ex := newExchange(t, nil)
	path := writeConfig(t, ex.URL)
	t.Setenv(config.EnvAPISecret, "secret")

	out, err := runCLI(t, "", "--config", path, "--api-key", "KEY", "balances")
	require.NoError(t, err)
	assert.Equal(t, "returnBalances", decodeOutput(t, out)["command"])

	form := ex.formFor("returnBalances")
	require.NotNil(t, form)
	assert.NotEmpty(t, form.Get("nonce"))
	ex.mu.Lock()
	assert.Equal(t, []string{"KEY"}, ex.keys)
	ex.mu.Unlock()
}

func TestPrivateBuyPlacesOrder(t *testing.T) {
	isolate(t)
	ex := newExchange(t, nil)
	path := writeConfig(t, ex.URL)
	t.Setenv(config.EnvAPIKey, "KEY")
	t.Setenv(config.EnvAPISecret, "secret")

	_, err := runCLI(t, "", "--config", path, "private", "buy", "btc_eth", "0.07", "1.5", "--type", "postOnly", "--yes")
	require.NoError(t, err)

	form := ex.formFor("buy")
	require.NotNil(t, form)
	assert.Equal(t, "BTC_ETH", form.Get("currencyPair"))
	assert.Equal(t, "0.07000000", form.Get("rate"))
	assert.Equal(t, "1.50000000", form.Get("amount"))
	assert.Equal(t, "1", form.Get("postOnly"))
}

func TestPrivateOrderValidation(t *testing.T) {
	isolate(t)
	ex := newExchange(t, nil)
	path := writeConfig(t, ex.URL)
	t.Setenv(config.EnvAPIKey, "KEY")
	t.Setenv(config.EnvAPISecret, "secret")

	_, err := runCLI(t, "", "--config", path, "private", "sell", "BTC_ETH", "0", "1", "--yes")
	assert.Error(t, err)

	_, err = runCLI(t, "", "--config", path, "private", "sell", "BTC_ETH", "0.1", "1", "--type", "gtc", "--yes")
	assert.ErrorContains(t, err, "unknown order type")

	_, err = runCLI(t, "", "--config", path, "private", "cancel", "abc")
	assert.ErrorContains(t, err, "invalid order number")

	assert.Empty(t, ex.seen())
}

func TestSoftErrorFailsCommand(t *testing.T) {
	isolate(t)
	ex := newExchange(t, map[string]reply{
		"cancelOrder": {nethttp.StatusOK, `{"error":"Invalid order number, or you are not the person who placed the order."}`},
	})
	path := writeConfig(t, ex.URL)
	t.Setenv(config.EnvAPIKey, "KEY")
	t.Setenv(config.EnvAPISecret, "secret")

	out, err := runCLI(t, "", "--config", path, "private", "cancel", "42")
	assert.ErrorContains(t, err, "exchange reported: Invalid order number")
	assert.Contains(t, out, "Invalid order number")
	assert.Equal(t, []string{"cancelOrder"}, ex.seen(), "a soft error is not retried")
}

func TestDemoContinuesPastFailures(t *testing.T) {
	isolate(t)
	ex := newExchange(t, map[string]reply{
		"returnFeeInfo": {nethttp.StatusForbidden, `{"error":"Permission denied."}`},
	})
	path := writeConfig(t, ex.URL)
	t.Setenv(config.EnvAPIKey, "KEY")
	t.Setenv(config.EnvAPISecret, "secret")

	out, err := runCLI(t, "", "--config", path, "demo")
	assert.ErrorContains(t, err, "1 of 13 demo steps failed")

	m := decodeOutput(t, out)
	assert.Len(t, m, 13)
	failed, ok := m["returnFeeInfo"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, failed["error"], "Permission denied.")
	assert.Equal(t, "returnLendingHistory", m["returnLendingHistory"].(map[string]any)["command"])

	assert.Len(t, ex.seen(), 13, "a client error is not retried")
	assert.Equal(t, "0", ex.formFor("returnDepositsWithdrawals").Get("start"))
}

func TestRunDemoStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := 0
	steps := []demoStep{
		{"first", func(context.Context, *api.PrivateClient) (any, error) {
			ran++
			cancel()
			return map[string]any{}, nil
		}},
		{"second", func(context.Context, *api.PrivateClient) (any, error) {
			ran++
			return map[string]any{}, nil
		}},
	}

	results, failed := runDemo(ctx, nil, steps, progress.NewNoOpProgress(), logging.Nop())
	assert.Equal(t, 1, ran)
	assert.Equal(t, 0, failed)
	assert.Len(t, results, 1)
}
