// Package errors provides structured error types for the Keyline engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the engine, CLI, and persistence layer
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - VALIDATION / INVALID_*: Structural-invariant or input validation failures
//   - NOT_FOUND_*: Referenced entity absent
//   - TIMEOUT / NETWORK_ERROR: Remote call failures
//   - PARTIAL_SAVE: A save cycle completed with one or more failed steps
//   - INTERNAL_ERROR: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeValidation, "cannot group elements with different parents")
//	if errors.Is(err, errors.ErrCodeValidation) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTimeout, origErr, "fetch elements for template %s", id)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Validation errors
	ErrCodeValidation     Code = "VALIDATION"
	ErrCodeInvalidCache   Code = "INVALID_CACHE"
	ErrCodeInvalidElement Code = "INVALID_ELEMENT"
	ErrCodeInvalidPhase   Code = "INVALID_PHASE"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeProjectNotFound  Code = "PROJECT_NOT_FOUND"
	ErrCodeTemplateNotFound Code = "TEMPLATE_NOT_FOUND"
	ErrCodeElementNotFound  Code = "ELEMENT_NOT_FOUND"

	// Remote call errors
	ErrCodeTimeout Code = "TIMEOUT"
	ErrCodeNetwork Code = "NETWORK_ERROR"

	// Persistence errors
	ErrCodePartialSave Code = "PARTIAL_SAVE"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// As finds the first error in err's chain matching target's type.
// Re-exported so callers need only one errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// StepError records the failure of one step of an ordered save cycle.
type StepError struct {
	Step string // Step name (e.g., "upsert:elements", "delete:keyframes")
	Err  error  // The failure
}

// PartialSaveError aggregates per-step failures of a save cycle. A save
// cycle never aborts on a failed step; every step runs and the failures
// are collected here so the caller can keep the dirty flag set and retry
// on the next explicit save.
type PartialSaveError struct {
	Steps []StepError
}

// Error implements the error interface.
func (e *PartialSaveError) Error() string {
	names := make([]string, len(e.Steps))
	for i, s := range e.Steps {
		names[i] = s.Step
	}
	return fmt.Sprintf("%s: %d save step(s) failed (%s)", ErrCodePartialSave, len(e.Steps), strings.Join(names, ", "))
}

// Unwrap returns the underlying step errors for errors.Is/As matching.
func (e *PartialSaveError) Unwrap() []error {
	errs := make([]error, len(e.Steps))
	for i, s := range e.Steps {
		errs[i] = s.Err
	}
	return errs
}

// Add records a failed step. A nil err is ignored so callers can pass
// step results through unconditionally.
func (e *PartialSaveError) Add(step string, err error) {
	if err == nil {
		return
	}
	e.Steps = append(e.Steps, StepError{Step: step, Err: err})
}

// OrNil returns the error itself if any step failed, nil otherwise.
func (e *PartialSaveError) OrNil() error {
	if len(e.Steps) == 0 {
		return nil
	}
	return e
}
