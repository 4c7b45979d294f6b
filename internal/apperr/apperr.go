// Package apperr provides the structured error taxonomy shared across the
// platform: every boundary (store, service, workflow, HTTP/A2A) surfaces one
// of these kinds so callers can map to transport-specific status codes
// without reaching into implementation details. Modeled on the teacher's
// toolerrors.ToolError chain (message + cause, errors.Is/As-friendly).
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error per the taxonomy in the platform specification §7.
type Kind string

const (
	MissingContext       Kind = "missing_context"
	Validation           Kind = "validation"
	NotFound             Kind = "not_found"
	AccessDenied         Kind = "access_denied"
	DependencyUnavailable Kind = "dependency_unavailable"
	TriggerExecution     Kind = "trigger_execution"
	BudgetExceeded       Kind = "budget_exceeded"
	Timeout              Kind = "timeout"
)

// Error is a structured, chainable application error. It preserves a Kind so
// transport adapters (HTTP, JSON-RPC) can map to the correct status/code
// without string matching, while still behaving like a normal Go error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause so errors.Is/As traverse the chain.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind that chains an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether the first *Error found in err's chain (the outermost
// one) has the given Kind. Kinds of *Errors nested beneath it are not
// checked.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf extracts the Kind carried by err, or "" if err does not wrap an Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
