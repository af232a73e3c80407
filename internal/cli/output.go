package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rescale/poloniex-int/internal/api"
)

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints a response and turns a soft error into a failure, so
// that scripts see a non-zero exit status for rejected orders.
func printResult(w io.Writer, resp any) error {
	if err := printJSON(w, resp); err != nil {
		return err
	}
	if msg, ok := api.SoftError(resp); ok {
		return fmt.Errorf("exchange reported: %s", msg)
	}
	return nil
}

// parseTime accepts UNIX seconds, RFC 3339, a date (2006-01-02), or a
// duration before now such as 24h. An empty string yields the zero time.
func parseTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want UNIX seconds, RFC 3339, YYYY-MM-DD, or a duration like 24h)", s)
}

// parseWindow parses a start/end pair. A missing end means now.
func parseWindow(start, end string, now time.Time) (api.TimeRange, error) {
	s, err := parseTime(start, now)
	if err != nil {
		return api.TimeRange{}, fmt.Errorf("--start: %w", err)
	}
	e, err := parseTime(end, now)
	if err != nil {
		return api.TimeRange{}, fmt.Errorf("--end: %w", err)
	}
	if e.IsZero() {
		e = now
	}
	if !s.IsZero() && s.After(e) {
		return api.TimeRange{}, fmt.Errorf("--start %s is after --end %s", s.Format(time.RFC3339), e.Format(time.RFC3339))
	}
	return api.TimeRange{Start: s, End: e}, nil
}

// parsePositiveDecimal parses a price or amount argument.
func parsePositiveDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be positive, got %s", name, s)
	}
	return d, nil
}

// parseOrderNumber parses an order number argument.
func parseOrderNumber(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid order number %q", s)
	}
	return n, nil
}
