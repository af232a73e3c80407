package http

import (
	"context"
	"fmt"
	nethttp "net/http"
)

// ClientError is a 4xx response. The request was rejected as sent.
type ClientError struct {
	StatusCode int
	Message    string // server "error" field, empty when absent
}

func (e *ClientError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client error %d %s", e.StatusCode, nethttp.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("client error %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may be sent again.
// Only 429 Too Many Requests qualifies.
func (e *ClientError) Retryable() bool {
	return e.StatusCode == nethttp.StatusTooManyRequests
}

// ServerError is a 5xx response.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error %d %s", e.StatusCode, nethttp.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// Retryable always returns true for server errors.
func (e *ServerError) Retryable() bool {
	return true
}

// MalformedResponseError is a response whose status or body cannot be interpreted.
type MalformedResponseError struct {
	StatusCode int
	Note       string
	Err        error // decode error, if any
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("malformed response (status %d): %s", e.StatusCode, e.Note)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Retryable always returns false for malformed responses.
func (e *MalformedResponseError) Retryable() bool {
	return false
}

// TransportError is a failure to complete the HTTP exchange at all:
// connection refused, reset, timeout, TLS failure, and so on.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may be transient.
func (e *TransportError) Retryable() bool {
	return IsRetryableTransportError(context.Background(), e.Err)
}
