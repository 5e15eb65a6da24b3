package model

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures surfaced by the core.
type ErrorKind string

const (
	// KindNotFound: queue, department, counter or ticket absent.
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindInvalidArgument: missing references, unknown states, malformed values.
	KindInvalidArgument ErrorKind = "INVALID_ARGUMENT"

	// KindConflict: a uniqueness constraint or a conditional update lost a race.
	KindConflict ErrorKind = "CONFLICT"

	// KindTransient: the store is busy or unreachable; the caller may retry
	// the whole operation.
	KindTransient ErrorKind = "TRANSIENT"
)

// Error is the typed error returned across package boundaries.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Op names the operation that failed, e.g. "create ticket".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds a KindNotFound error.
func NotFound(op, msg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg}
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(op, msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Message: msg}
}

// Conflict builds a KindConflict error wrapping cause.
func Conflict(op, msg string, cause error) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: msg, Err: cause}
}

// Transient builds a KindTransient error wrapping cause.
func Transient(op string, cause error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err (or anything it wraps) is KindNotFound.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsInvalidArgument reports whether err is KindInvalidArgument.
func IsInvalidArgument(err error) bool {
	return KindOf(err) == KindInvalidArgument
}

// IsConflict reports whether err is KindConflict.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsTransient reports whether err is KindTransient.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
