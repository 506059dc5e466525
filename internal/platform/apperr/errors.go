// Package apperr defines the error taxonomy shared by every component. Each
// failure carries a Kind that the transport layer maps to a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation             Kind = "validation"
	KindAuthenticationRequired Kind = "authentication_required"
	KindAuthorizationDenied    Kind = "authorization_denied"
	KindNotFound               Kind = "not_found"
	KindConflict               Kind = "conflict"
	KindInsufficientStock      Kind = "insufficient_stock"
	KindLedgerUnavailable      Kind = "ledger_unavailable"
	KindLedgerRejected         Kind = "ledger_rejected"
	KindInternal               Kind = "internal"
)

// Error is a classified failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func Unauthenticated() *Error {
	return New(KindAuthenticationRequired, "authentication required")
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(KindAuthorizationDenied, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

func InsufficientStock(format string, args ...interface{}) *Error {
	return New(KindInsufficientStock, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
// for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether the caller may safely retry the operation.
// Only transient ledger failures qualify.
func IsRetryable(err error) bool {
	return Is(err, KindLedgerUnavailable)
}

// MessageOf returns the user-facing message for err. Unclassified errors
// never leak their internals.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindInternal {
			return "internal server error"
		}
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps a kind to the status code of the exposed HTTP contract.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindConflict, KindInsufficientStock, KindLedgerRejected:
		return http.StatusBadRequest
	case KindAuthenticationRequired:
		return http.StatusUnauthorized
	case KindAuthorizationDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindLedgerUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
