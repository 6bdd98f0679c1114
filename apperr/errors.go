// Package apperr defines the closed set of error kinds that cross every
// component boundary in this service. The HTTP edge maps Kind to a status
// code in one place instead of pattern-matching on error strings; the CLI
// exits with status 1 for every error, whatever its Kind.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a closed enum of error categories. New kinds must be added here,
// not invented ad hoc at call sites.
type Kind string

const (
	Unauthorized    Kind = "unauthorized"
	Forbidden       Kind = "forbidden"
	NotFound        Kind = "not_found"
	Conflict        Kind = "conflict"
	InvalidInput    Kind = "invalid_input"
	LastOwner       Kind = "last_owner"
	NotPending      Kind = "not_pending"
	Timeout         Kind = "timeout"
	UpstreamFailure Kind = "upstream_failure"
	Internal        Kind = "internal"
)

// Error wraps an underlying cause with a Kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, apperr.Forbidden) style checks against a bare
// Kind by treating a *Error with a matching Kind as equal to a sentinel
// constructed from that Kind alone.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NewUnauthorized(format string, args ...any) *Error { return newErr(Unauthorized, format, args...) }
func NewForbidden(format string, args ...any) *Error    { return newErr(Forbidden, format, args...) }
func NewNotFound(format string, args ...any) *Error     { return newErr(NotFound, format, args...) }
func NewConflict(format string, args ...any) *Error     { return newErr(Conflict, format, args...) }
func NewInvalidInput(format string, args ...any) *Error {
	return newErr(InvalidInput, format, args...)
}
func NewLastOwner(format string, args ...any) *Error  { return newErr(LastOwner, format, args...) }
func NewNotPending(format string, args ...any) *Error { return newErr(NotPending, format, args...) }
func NewInternal(format string, args ...any) *Error   { return newErr(Internal, format, args...) }

func WrapTimeout(err error, format string, args ...any) *Error {
	return wrap(Timeout, err, format, args...)
}

func WrapUpstream(err error, format string, args ...any) *Error {
	return wrap(UpstreamFailure, err, format, args...)
}

func WrapInternal(err error, format string, args ...any) *Error {
	return wrap(Internal, err, format, args...)
}

// KindOf extracts the Kind of err, defaulting to Internal for errors that
// never passed through this package (unexpected internal state).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
