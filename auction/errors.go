package auction

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure so the transport layer can map it to
// a response code and so callers know whether a retry is safe.
type Kind int

const (
	// KindInternal covers database and infrastructure failures. Not retried
	// automatically.
	KindInternal Kind = iota
	// KindNotFound means a referenced draft/lot/roster/player does not exist
	// or is outside the scope implied by the request. Never retried.
	KindNotFound
	// KindValidation means the request violates a state or arithmetic
	// precondition. The message is surfaced verbatim to the user.
	KindValidation
	// KindForbidden means the actor is not permitted to act.
	KindForbidden
	// KindConflict means a concurrent write won. Safe to retry once with a
	// fresh read.
	KindConflict
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified operation failure with a human-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Forbiddenf builds a KindForbidden error.
func Forbiddenf(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a KindConflict error.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Internalf builds a KindInternal error wrapping a cause.
func Internalf(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Msg: fmt.Sprintf(format, args...), Err: err}
}

// ErrSimultaneousBid is returned when the CAS predicate on a lot update
// matches zero rows. Callers should retry at most once with a fresh read.
var ErrSimultaneousBid = &Error{Kind: KindConflict, Msg: "simultaneous bid detected, please retry"}

// KindOf extracts the Kind from err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
