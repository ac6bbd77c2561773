// Package pkg holds shared helpers: domain errors, the HTTP response
// envelope, and request decoding/validation.
package pkg

import "errors"

// Domain error kinds. Repositories and services return these (usually
// wrapped with %w and context); handlers map them to HTTP status codes and
// the ws dispatch path maps them to directed error events. Comparison is
// always errors.Is, never string matching.
var (
	ErrNotFound         = errors.New("not_found")
	ErrAlreadyExists    = errors.New("already_exists")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid_input")
	ErrConflict         = errors.New("conflict")
	ErrCapacityExceeded = errors.New("capacity_exceeded")
	ErrBusy             = errors.New("busy")
	ErrWrongState       = errors.New("wrong_state")
	ErrRateLimited      = errors.New("rate_limited")
	ErrInternal         = errors.New("internal")
)

// Kind reduces an error chain to its normalized kind string, "internal"
// when no known sentinel is in the chain. Used for ws error events and logs.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrWrongState):
		return "wrong_state"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}

// PublicMessage returns error text safe to show a client. Internal errors
// are masked so driver strings never leave the process.
func PublicMessage(err error) string {
	if Kind(err) == "internal" {
		return "internal error"
	}
	return err.Error()
}
