// Package errs defines the error taxonomy shared by every component of the
// logfile ingestion and scan engine: NotFound, ParseError, IllegalState and
// Runtime, plus the helpers used to build and inspect them.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error the way the scan coordinator and ingestion
// pipeline need to: callers switch on Kind rather than parsing messages.
type Kind string

const (
	// KindNotFound covers an unknown logfile, unknown table, or a
	// partition that a given replica host doesn't have (wire: 404).
	KindNotFound Kind = "not_found"
	// KindParseError covers a malformed SQL filter condition.
	KindParseError Kind = "parse_error"
	// KindIllegalState covers ingestion attempted against a logfile
	// whose regex has no "time" row field.
	KindIllegalState Kind = "illegal_state"
	// KindRuntime covers aggregated remote-scan failures and storage
	// insert failures: anything that aborts a request outright.
	KindRuntime Kind = "runtime"
)

// Error is the standardized error value returned by every component
// package in this module. It tags which component/operation raised it so
// logs and API responses can carry that context without re-deriving it.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Cause     error
}

func New(kind Kind, component, operation, message string) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Message: message}
}

func NotFound(component, operation, message string) *Error {
	return New(KindNotFound, component, operation, message)
}

func ParseError(component, operation, message string) *Error {
	return New(KindParseError, component, operation, message)
}

func IllegalState(component, operation, message string) *Error {
	return New(KindIllegalState, component, operation, message)
}

func Runtime(component, operation, message string) *Error {
	return New(KindRuntime, component, operation, message)
}

// Wrap attaches a lower-level cause to the error and returns it for
// chaining at the call site, e.g. return errs.Runtime(...).Wrap(err).
func (e *Error) Wrap(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether err carries the given Kind, unwrapping *Error values
// as needed so callers can do errs.Is(err, errs.KindNotFound).
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Aggregate joins per-host failures from a fanned-out remote scan into a
// single Runtime error, mirroring the "join both hosts' errors" behavior
// required of the remote scan adapter when every replica fails.
func Aggregate(component, operation string, failures []string) *Error {
	return Runtime(component, operation, strings.Join(failures, ", "))
}
