// Package apperr defines the error taxonomy shared by every core component.
// Each operation fails with the most specific kind; the API layer owns the
// single mapping from kinds to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The set is closed: callers switch on it and the
// transport layer maps it to a caller-visible outcome.
type Kind int

const (
	// KindInternal marks an invariant violation. Always logged.
	KindInternal Kind = iota
	// KindValidation marks malformed or missing caller input. Never retried.
	KindValidation
	// KindNotFound marks an identifier that does not resolve.
	KindNotFound
	// KindUnauthorized marks a missing, invalid, or expired credential.
	KindUnauthorized
	// KindForbidden marks a valid identity with insufficient ownership.
	KindForbidden
	// KindConflict marks a uniqueness violation.
	KindConflict
	// KindRefreshReused marks presentation of a refresh token that has
	// already been superseded by rotation. Surfaced distinctly from
	// KindUnauthorized so it can be audit logged.
	KindRefreshReused
	// KindUnavailable marks a store or collaborator timeout. Safe to retry
	// for idempotent operations only.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindRefreshReused:
		return "refresh_reused"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error carries a kind, the operation that failed, and a caller-safe message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error with the provided kind, operation, and message.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an Error that records an underlying cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Validation(op, message string) *Error {
	return New(KindValidation, op, message)
}

func NotFound(op, message string) *Error {
	return New(KindNotFound, op, message)
}

func Unauthorized(op, message string) *Error {
	return New(KindUnauthorized, op, message)
}

func Forbidden(op, message string) *Error {
	return New(KindForbidden, op, message)
}

func Conflict(op, message string) *Error {
	return New(KindConflict, op, message)
}

func RefreshReused(op, message string) *Error {
	return New(KindRefreshReused, op, message)
}

func Unavailable(op string, err error) *Error {
	return Wrap(KindUnavailable, op, "", err)
}

func Internal(op string, err error) *Error {
	return Wrap(KindInternal, op, "", err)
}

// KindOf reports the kind of the first *Error in the chain. Errors outside
// the taxonomy classify as KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the provided kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-safe message of the first *Error in the chain,
// or a generic fallback for errors outside the taxonomy.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Message != "" {
			return appErr.Message
		}
		return appErr.Kind.String()
	}
	return "internal error"
}
