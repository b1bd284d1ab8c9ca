// Package ragerr defines the structured error taxonomy shared by every RAG
// component. Components never return bare errors across a package boundary;
// they wrap failures in an *Error carrying a Kind, so the query orchestrator
// can annotate the failing step and present a correlation id without losing
// the ability to switch on error category upstream.
package ragerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error independent of transport.
type Kind string

const (
	InvalidInput           Kind = "InvalidInput"
	TenantMissing          Kind = "TenantMissing"
	NotFound               Kind = "NotFound"
	AlreadyIndexed         Kind = "AlreadyIndexed"
	TemplateVariableMissing Kind = "TemplateVariableMissing"
	UnknownVariable         Kind = "UnknownVariable"
	ExternalUnavailable     Kind = "ExternalUnavailable"
	ProviderUnavailable     Kind = "ProviderUnavailable"
	QuotaExceeded           Kind = "QuotaExceeded"
	ContextTooLong          Kind = "ContextTooLong"
	ContentFiltered         Kind = "ContentFiltered"
	ResponseShapeMismatch   Kind = "ResponseShapeMismatch"
	Cancelled               Kind = "Cancelled"
	Internal                Kind = "Internal"
)

// Error is the structured error type every RAG component returns.
type Error struct {
	Kind          Kind
	Step          string // set by the orchestrator once the error crosses a step boundary
	CorrelationID string
	Message       string
	Err           error
}

func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Step, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an *Error of the given kind around an underlying cause.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// WithStep returns a copy of err annotated with the step tag it failed at.
// Non-*Error values are wrapped as Internal so the step tag is never lost.
func WithStep(err error, step string) *Error {
	var re *Error
	if errors.As(err, &re) {
		cp := *re
		if cp.Step == "" {
			cp.Step = step
		}
		return &cp
	}
	return &Error{Kind: Internal, Step: step, Message: err.Error(), Err: err}
}

// WithCorrelationID attaches a correlation id, returning a new *Error.
func WithCorrelationID(err *Error, id string) *Error {
	cp := *err
	cp.CorrelationID = id
	return &cp
}

// KindOf extracts the Kind of err, defaulting to Internal for plain errors.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return Internal
}

// Is reports whether err (or something it wraps) has the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
