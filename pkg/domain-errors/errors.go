// Package domainerrors carries the orchestrator's error taxonomy. Every error that
// crosses a service boundary has a Code so transports can map it without string
// matching, and so callers can tell a fault from a rejected precondition.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies an error class. Values are stable and exposed on the wire.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_error"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeUnavailable  Code = "service_unavailable"
	CodeInternal     Code = "internal_error"

	// CodeInvariantViolation marks a constructor or state-machine guard that
	// refused an impossible transition.
	CodeInvariantViolation Code = "invariant_violation"

	// Pipeline and ledger faults. Both abort the in-flight operation and are
	// never retried by the core.
	CodeAgentFault  Code = "agent_fault"
	CodeLedgerFault Code = "ledger_fault"

	// Override precondition failures.
	CodeNotOverridable       Code = "not_overridable"
	CodeInvalidJustification Code = "invalid_justification"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the outermost coded error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the outermost code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is reports whether err matches target. It exists so callers can stay on one
// errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
