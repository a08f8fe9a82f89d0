package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrTransport matches failures to complete the HTTP exchange.
	ErrTransport = errors.New("transport failure")

	// ErrProtocol matches responses the server sent but we cannot use.
	ErrProtocol = errors.New("remote protocol failure")

	// ErrRateLimited matches protocol failures caused by API quota.
	ErrRateLimited = errors.New("rate limited")
)

// TransportError wraps a connectivity, DNS, timeout or body read failure.
type TransportError struct {
	Op  string // "request", "read body"
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ProtocolError is an unexpected status or an undecodable body.
type ProtocolError struct {
	StatusCode int
	Message    string
	// RateLimitRemaining is the X-RateLimit-Remaining header, "" when absent.
	RateLimitRemaining string
	// RetryAfter is the Retry-After header, "" when absent.
	RetryAfter string
	Err        error
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("status %d: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrProtocol:
		return true
	case ErrRateLimited:
		if e.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return e.StatusCode == http.StatusForbidden && e.RateLimitRemaining == "0"
	}
	return false
}
