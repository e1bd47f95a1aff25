// Package apierrors implements the error taxonomy of spec.md §7: a small set
// of named Kinds, each mapped to an HTTP status, with a single wrapper type
// carrying the kind and an optional cause. Component packages construct
// *Error directly or via the New* helpers; the HTTP boundary (pkg/api)
// is the only place that reads Kind to pick a status code.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for status-code mapping and client messaging.
// These are kinds, not Go types, matching spec.md §7's taxonomy.
type Kind string

const (
	KindValidation   Kind = "Validation"
	KindAuthz        Kind = "Authorisation"
	KindNotFound     Kind = "NotFound"
	KindConflict     Kind = "Conflict"
	KindConfig       Kind = "Configuration"
	KindDatabase     Kind = "Database"
	KindStorage      Kind = "Storage"
	KindQueue        Kind = "Queue"
	KindLanguageModel Kind = "LanguageModel"
	KindNoMatch      Kind = "NoMatch"   // Matching sub-kind: 404
	KindMatching     Kind = "Matching"  // Matching sub-kind: generic, 500
	KindUnknown      Kind = "Unknown"
)

// HTTPStatus returns the status code the HTTP boundary should emit for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthz:
		return http.StatusForbidden
	case KindNotFound, KindNoMatch:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindLanguageModel:
		return http.StatusServiceUnavailable
	case KindConfig, KindDatabase, KindStorage, KindQueue, KindMatching, KindUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single wrapped-error type carried through the core. Name is
// a short machine-readable label (e.g. "task_not_found"); Message is the
// client-facing description; Context carries optional debug-only detail.
type Error struct {
	Kind    Kind
	Name    string
	Message string
	Context map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, name, message string) *Error {
	return &Error{Kind: kind, Name: name, Message: message}
}

// Wrap constructs an *Error of the given kind around an existing cause. The
// result always carries Wrap's own kind/name arguments; if cause is already
// an *Error it is kept only as Cause, and As/KindOf find the outer one first.
func Wrap(kind Kind, name, message string, cause error) *Error {
	return &Error{Kind: kind, Name: name, Message: message, Cause: cause}
}

// WithContext attaches development-only debug context and returns e for
// chaining.
func (e *Error) WithContext(ctx map[string]any) *Error {
	e.Context = ctx
	return e
}

// As reports whether err (or something it wraps) is an *Error, writing it
// into target — a small helper over errors.As so callers don't repeat the
// pointer dance.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else
// KindUnknown — the form pkg/api uses to pick a status code for any
// error, wrapped or not.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

func NewValidation(name, message string) *Error { return New(KindValidation, name, message) }
func NewNotFound(name, message string) *Error    { return New(KindNotFound, name, message) }
func NewAuthz(name, message string) *Error       { return New(KindAuthz, name, message) }
func NewConflict(name, message string) *Error    { return New(KindConflict, name, message) }
