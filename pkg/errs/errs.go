// Package errs defines the error vocabulary shared by all domain packages.
// Domain packages declare sentinel errors with these constructors; the HTTP
// layer translates kinds to status codes.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation marks bad input shape or values. Surfaced to the
	// caller, never retried.
	KindValidation
	// KindNotFound marks a missing entity.
	KindNotFound
	// KindConflict marks a benign "already handled" outcome, such as a
	// lost claim race or a duplicate generation attempt.
	KindConflict
	// KindExternal marks a failure of an outbound dependency.
	KindExternal
	// KindInvariant marks a broken internal invariant. Fatal for the
	// single computation that hit it.
	KindInvariant
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func Validationf(code, format string, args ...any) *Error {
	return New(KindValidation, code, fmt.Sprintf(format, args...))
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

func External(code, message string) *Error {
	return New(KindExternal, code, message)
}

func Externalf(code, format string, args ...any) *Error {
	return New(KindExternal, code, fmt.Sprintf(format, args...))
}

func Invariant(code, message string) *Error {
	return New(KindInvariant, code, message)
}

// KindOf reports the kind of err, unwrapping as needed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf reports the stable code of err, or "" if it carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
