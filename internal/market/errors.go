package market

import (
	"errors"
	"fmt"
)

// ErrNetwork wraps transport-level failures (DNS, connect, read).
var ErrNetwork = errors.New("network error")

// UpstreamError reports a non-2xx response from the quote or price API.
type UpstreamError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// ParseError reports a response body that did not match the wire schema.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
