// Package errors provides the structured error taxonomy for the simulation.
//
// Two kinds exist. Validation errors reject a request before any state is
// touched and are meant to be shown to a player. Invariant errors mean the
// core itself is inconsistent and must be reported loudly.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error for propagation policy.
type Kind string

const (
	KindValidation Kind = "VALIDATION_FAILURE"
	KindInvariant  Kind = "INVARIANT_VIOLATION"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Kind     Kind
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message
	Metadata map[string]string // Additional context (ids, amounts)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Metadata) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Metadata[k])
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, ", "))
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Validation creates a validation failure.
func Validation(code Code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Invariant creates an invariant violation.
func Invariant(code Code, message string) *Error {
	return &Error{Kind: KindInvariant, Code: code, Message: message}
}

// With returns the error with an extra metadata entry.
func (e *Error) With(key, value string) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsInvariant reports whether err is an invariant violation.
func IsInvariant(err error) bool {
	return KindOf(err) == KindInvariant
}
