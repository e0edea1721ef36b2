// Package apperr defines the error kinds surfaced at route boundaries.
// Handlers translate a Kind into an HTTP status; everything else is
// reported as an internal error without leaking the underlying cause.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUpstreamUnavailable
	KindUpstreamAuthExpired
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindUpstreamAuthExpired:
		return "upstream_auth_expired"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error carries a Kind, a user-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports missing or malformed input. Never retried.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Unavailable wraps a network or timeout failure talking to the directory.
func Unavailable(err error) error {
	return &Error{Kind: KindUpstreamUnavailable, Message: "check-in service unavailable", Err: err}
}

// AuthExpired wraps a 401 from the directory.
func AuthExpired(err error) error {
	return &Error{Kind: KindUpstreamAuthExpired, Message: "check-in service authorization expired", Err: err}
}

// NotFound reports an absent record.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns a message safe to show to the caller.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps a Kind to its response status.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstreamAuthExpired:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
