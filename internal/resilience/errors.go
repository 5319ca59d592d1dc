// Package resilience provides the self-protection primitives wrapped around
// every backend call: circuit breaking, rate limiting, retry with backoff,
// timeouts, service health tracking and error aggregation.
package resilience

import (
	"context"
	"errors"
)

// Sentinel errors surfaced by the wrappers. Callers match with errors.Is.
var (
	// ErrCircuitOpen rejects calls while a breaker is cooling down.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrRateLimited rejects calls exceeding the trailing-window budget.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrTimeout reports an operation cancelled by its timeout guard.
	ErrTimeout = errors.New("operation timed out")
	// ErrUnavailable reports a backend that was never connected.
	ErrUnavailable = errors.New("backend not available")
)

// Kind classifies an error for aggregation and reporting.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "backend_error"
	}
}
