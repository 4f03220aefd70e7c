// Package errors provides domain-specific error types for keen-iprules.
//
// Errors carry a code so callers can tell a configuration problem from a
// malformed rule definition or a failing filter store call:
//
//   - CONFIG_ERROR: a settings value is missing or unreadable; the feature is treated as disabled
//   - PARSE_ERROR: a rule definition is malformed; the whole pass is rejected before any change
//   - STORE_ERROR: a single filter store call failed; reported per rule, the pass continues
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a category of error that can occur in the application.
type ErrorCode string

const (
	// ErrCodeConfig indicates a missing or unavailable configuration value.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// ErrCodeParse indicates a malformed rule definition.
	ErrCodeParse ErrorCode = "PARSE_ERROR"

	// ErrCodeStore indicates a failed filter store operation.
	ErrCodeStore ErrorCode = "STORE_ERROR"

	// ErrCodeValidation indicates a validation error.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Sentinels usable as errors.Is targets; they match any error with the same code.
var (
	ErrConfig     = New(ErrCodeConfig, "configuration error")
	ErrParse      = New(ErrCodeParse, "parse error")
	ErrStore      = New(ErrCodeStore, "store error")
	ErrValidation = New(ErrCodeValidation, "validation error")
)

// Error represents a domain-specific error with an error code and optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new domain error with the specified code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, cause error) *Error {
	return Wrap(ErrCodeConfig, message, cause)
}

// NewParseError creates a new rule definition parse error.
func NewParseError(message string, cause error) *Error {
	return Wrap(ErrCodeParse, message, cause)
}

// NewStoreError creates a new filter store error.
func NewStoreError(message string, cause error) *Error {
	return Wrap(ErrCodeStore, message, cause)
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, cause error) *Error {
	return Wrap(ErrCodeValidation, message, cause)
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCodeInternal, message, cause)
}

// CodeOf returns the code of the first coded error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}
