package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies provider failures
type Kind string

const (
	KindRateLimited             Kind = "rate-limited"
	KindUnavailable             Kind = "unavailable"
	KindNetwork                 Kind = "network"
	KindTimeout                 Kind = "timeout"
	KindContentPolicy           Kind = "content-policy"
	KindInvalidStructuredOutput Kind = "invalid-structured-output"
)

// Error is the typed error surfaced by every provider
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed provider error
func NewError(kind Kind, provider string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// KindOf returns the kind of a provider error, or "" when err is not one
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err is a provider error of the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusError is returned by the raw HTTP providers on a non-2xx response
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

// KindForStatus maps an HTTP status code to an error kind
func KindForStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusUnavailableForLegalReasons:
		return KindContentPolicy
	default:
		return KindUnavailable
	}
}

// Classify wraps err into a typed provider error. Errors that are already
// typed pass through unchanged.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(KindTimeout, provider, err)
	}
	var se *StatusError
	if errors.As(err, &se) {
		return NewError(KindForStatus(se.Code), provider, err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return NewError(KindTimeout, provider, err)
		}
		return NewError(KindNetwork, provider, err)
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return NewError(KindNetwork, provider, err)
	}
	return NewError(KindUnavailable, provider, err)
}

// Retryable reports whether a caller may retry once after backoff
func Retryable(err error) bool {
	return IsKind(err, KindRateLimited)
}
