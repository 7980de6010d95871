// Package apperrors provides structured controller errors with result-code and HTTP
// status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrProtocol = errors.New("protocol error")
	ErrPolicy   = errors.New("policy error")
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // Offending attribute or argument for protocol errors
	Call     string // Remote call refused by policy
	Resource string // For not found (e.g., "attribute")
	Op       string // Operation that failed (e.g., "queue.save")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches either the
// classification or the underlying failure.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Protocol creates an error for a malformed request from the agent.
func Protocol(field, message string) error {
	return &Error{
		Sentinel: ErrProtocol,
		Message:  message,
		Field:    field,
	}
}

// Policy creates an error for a call the controller refuses to serve.
func Policy(call, message string) error {
	return &Error{
		Sentinel: ErrPolicy,
		Message:  message,
		Call:     call,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
