// Package dmserr defines the typed error kinds shared across the schema,
// quantity, path, resolver, tracker, store, and document packages, and the
// HTTP-boundary translation of them into the response body shape from
// spec.md §6/§7: {type, message, url, method, traceback?}.
//
// Grounded on the teacher's ResponseError/createTelnyxError pair in
// server.go, generalized from a single fixed error type to one carrying a
// Kind per §7, and on the mupif/EDM prototype's exception handler
// (type(err).__name__, traceback.format_exc()).
package dmserr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the error kind names from spec.md §7. It is surfaced
// verbatim as the HTTP error body's "type" field.
type Kind string

const (
	SchemaError          Kind = "SchemaError"
	UnknownType          Kind = "UnknownType"
	UnknownAttr          Kind = "UnknownAttr"
	TypeMismatch         Kind = "TypeMismatch"
	DimensionMismatch    Kind = "DimensionMismatch"
	ShapeMismatch        Kind = "ShapeMismatch"
	UnitMissing          Kind = "UnitMissing"
	UnitExtra            Kind = "UnitExtra"
	UnitIncompatible     Kind = "UnitIncompatible"
	ExtraKeys            Kind = "ExtraKeys"
	PathParseError       Kind = "PathParseError"
	PathNotFound         Kind = "PathNotFound"
	IndexOutOfRange      Kind = "IndexOutOfRange"
	IndexedScalar        Kind = "IndexedScalar"
	UnindexedList        Kind = "UnindexedList"
	PathTooLong          Kind = "PathTooLong"
	IndexedAttribute     Kind = "IndexedAttribute"
	UnknownId            Kind = "UnknownId"
	RelativeRefUnresolved Kind = "RelativeRefUnresolved"
	LinkShapeMismatch    Kind = "LinkShapeMismatch"
	Internal             Kind = "InternalServerError"
)

// Error is a typed, stack-carrying error. It wraps an underlying cause with
// github.com/pkg/errors so the HTTP boundary can render a traceback-like
// frame list instead of a bare message.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.cause.Error())
}

// Unwrap lets errors.As/errors.Is see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// New builds a new Error of the given kind from a format string, capturing
// a stack trace at the call site.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: errors.WithStack(errors.Errorf(format, args...))}
}

// Wrap attaches a Kind to an existing error, preserving any stack trace it
// already carries (or adding one if it doesn't).
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.WithStack(err)}
}

// StackFrames renders the wrapped cause's stack trace (if any) as a slice
// of strings, one per frame, for the HTTP response's optional "traceback"
// field.
func (e *Error) StackFrames() []string {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	st, ok := e.cause.(stackTracer)
	if !ok {
		return nil
	}
	trace := st.StackTrace()
	frames := make([]string, 0, len(trace))
	for _, f := range trace {
		frames = append(frames, fmt.Sprintf("%+v", f))
	}
	return frames
}

// As reports whether err (or something it wraps) is a *Error, populating
// the Kind if so. Mirrors the standard errors.As contract.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
