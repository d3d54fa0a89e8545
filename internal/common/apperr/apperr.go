// Package apperr defines the discriminated error values returned by the
// permission and group services. NotFound, Forbidden and Conflict are
// expected outcomes and are returned as values, never panics; callers
// discriminate with errors.Is.
package apperr

import "fmt"

// Kind identifies the failure category of an Error.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindDatabase
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindDatabase:
		return "database"
	case KindInvalid:
		return "invalid"
	default:
		return "internal"
	}
}

// Error is a structured error with a kind, a message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches two Errors by kind, so errors.Is(err, apperr.ErrNotFound)
// holds for any not-found error regardless of message or cause.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithMessage returns a copy of the error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Message: msg, cause: e.cause}
}

// WithMessagef returns a copy of the error with a formatted message.
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	return &Error{Kind: e.Kind, Message: fmt.Sprintf(format, args...), cause: e.cause}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, cause: cause}
}

// Predefined errors for the subsystem's taxonomy.
var (
	ErrNotFound  = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrForbidden = &Error{Kind: KindForbidden, Message: "access denied"}
	ErrConflict  = &Error{Kind: KindConflict, Message: "resource already exists"}
	ErrDatabase  = &Error{Kind: KindDatabase, Message: "database operation failed"}
	ErrInvalid   = &Error{Kind: KindInvalid, Message: "invalid argument"}
)
