package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// OutcomeKind is the class of a completed HTTP exchange.
type OutcomeKind int

const (
	// OutcomeSuccess is a 2xx response with a decodable JSON body
	OutcomeSuccess OutcomeKind = iota
	// OutcomeClientError is a 4xx response
	OutcomeClientError
	// OutcomeServerError is a 5xx response
	OutcomeServerError
	// OutcomeMalformed is an undecodable 2xx body or a status outside 200-599
	OutcomeMalformed
)

// String returns a short name for logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeClientError:
		return "client_error"
	case OutcomeServerError:
		return "server_error"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one HTTP exchange.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Payload    any    // decoded body, Success only
	Message    string // server "error" field, ClientError and ServerError only
	Note       string // reason, Malformed only
	Cause      error  // decode error, Malformed only
}

// Classify maps a status code and raw body to an Outcome.
//
// A 2xx body that decodes to a mapping with an "error" entry is still a
// Success; callers decide what a soft error means for them.
func Classify(statusCode int, body []byte) Outcome {
	switch {
	case statusCode >= 200 && statusCode <= 299:
		payload, err := DecodeJSON(body)
		if err != nil {
			return Outcome{
				Kind:       OutcomeMalformed,
				StatusCode: statusCode,
				Note:       "undecodable success body",
				Cause:      err,
			}
		}
		return Outcome{Kind: OutcomeSuccess, StatusCode: statusCode, Payload: payload}

	case statusCode >= 400 && statusCode <= 499:
		return Outcome{Kind: OutcomeClientError, StatusCode: statusCode, Message: errorMessage(body)}

	case statusCode >= 500 && statusCode <= 599:
		return Outcome{Kind: OutcomeServerError, StatusCode: statusCode, Message: errorMessage(body)}

	default:
		return Outcome{
			Kind:       OutcomeMalformed,
			StatusCode: statusCode,
			Note:       "unexpected status",
		}
	}
}

// Err converts a non-success Outcome into its typed error. Success yields nil.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeClientError:
		return &ClientError{StatusCode: o.StatusCode, Message: o.Message}
	case OutcomeServerError:
		return &ServerError{StatusCode: o.StatusCode, Message: o.Message}
	default:
		return &MalformedResponseError{StatusCode: o.StatusCode, Note: o.Note, Err: o.Cause}
	}
}

// DecodeJSON decodes body into a generic tree. Numbers are kept as
// json.Number so prices and amounts lose no precision. Trailing data after
// the first value is an error.
func DecodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

// errorMessage extracts the "error" string of a JSON mapping body, or "".
func errorMessage(body []byte) string {
	payload, err := DecodeJSON(body)
	if err != nil {
		return ""
	}
	msg, _ := SoftError(payload)
	return msg
}

// SoftError returns the "error" string of a decoded mapping payload.
func SoftError(payload any) (string, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := m["error"].(string)
	return msg, ok
}
