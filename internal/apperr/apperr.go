// Package apperr defines the typed error kinds used across AuthGate so
// that HTTP-layer code can map failures to status codes without string
// matching.
package apperr

import "errors"

// Kind is a coarse error category, stable across subsystems.
type Kind string

const (
	KindConfigParse       Kind = "ConfigParse"
	KindConfigUnavailable Kind = "ConfigUnavailable"
	KindNotFound          Kind = "NotFound"
	KindNotSupported      Kind = "NotSupported"
	KindUnauthenticated   Kind = "Unauthenticated"
	KindUpstream          Kind = "Upstream"
	KindAuthzDenied       Kind = "AuthzDenied"
	KindTimeout           Kind = "Timeout"
)

// Error is a kinded application error.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind that wraps cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
