package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a failed request.
type Kind int

const (
	// KindTransport means the request never completed.
	KindTransport Kind = iota
	// KindHTTP means the server answered with a non-2xx status.
	KindHTTP
	// KindDecode means a 2xx body could not be decoded.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	}
	return "unknown"
}

// Error is returned by every Client method on failure.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	// Detail is the server-provided message, empty when the body had none.
	Detail string
	// Fallback is the templated message used when Detail is empty.
	Fallback string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return e.Message()
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the operator-facing text: the server detail when present,
// otherwise the operation's fallback.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Fallback != "" {
		return e.Fallback
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s failed", e.Op)
}

// Message extracts the operator-facing text from any error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	return err.Error()
}

// StatusCode returns the HTTP status of err, or 0 when err is not an HTTP
// failure.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindHTTP {
		return apiErr.Status
	}
	return 0
}

// parseDetail pulls a string "detail" field out of an error body. Bodies
// that are not JSON, or whose detail is not a string, yield "".
func parseDetail(body []byte) string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return ""
	}
	d, ok := raw["detail"]
	if !ok {
		return ""
	}
	var detail string
	if err := json.Unmarshal(d, &detail); err != nil {
		return ""
	}
	return detail
}
