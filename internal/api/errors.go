// Package api provides the exchange clients and the dispatcher every call
// goes through.
package api

import (
	"context"
	"errors"

	"github.com/rescale/poloniex-int/internal/http"
)

// Error types returned by calls. They are defined by the classifier in
// internal/http and aliased here so callers need only this package.
type (
	ClientError            = http.ClientError
	ServerError            = http.ServerError
	MalformedResponseError = http.MalformedResponseError
	TransportError         = http.TransportError
)

// ErrUnauthenticated is returned when a signed command is issued by a
// client without credentials.
var ErrUnauthenticated = errors.New("api: command requires API credentials")

// SoftError returns the "error" entry of a successful mapping response.
// The exchange reports some rejections (insufficient funds, unknown order)
// with a 200 status; those are returned as data and detected here.
//
// Usage:
//
//	resp, err := client.Buy(ctx, "BTC_ETH", rate, amount, api.OrderTypeNone)
//	if msg, ok := api.SoftError(resp); ok {
//	    // order was rejected
//	}
func SoftError(payload any) (string, bool) {
	return http.SoftError(payload)
}

// IsRetryable reports whether err is a transient failure that the
// dispatcher would have retried had attempts remained.
func IsRetryable(err error) bool {
	return http.ShouldRetry(context.Background(), err)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var clientErr *ClientError
	var serverErr *ServerError
	var malformed *MalformedResponseError
	switch {
	case errors.As(err, &clientErr):
		return clientErr.StatusCode
	case errors.As(err, &serverErr):
		return serverErr.StatusCode
	case errors.As(err, &malformed):
		return malformed.StatusCode
	default:
		return 0
	}
}
