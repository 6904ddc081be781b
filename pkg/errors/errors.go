// Package errors provides structured error types for the satie layout engine.
//
// Every fatal condition raised by the engine carries a machine-readable
// [Code] so that the CLI and the HTTP server can react to it without string
// matching. Expected structural signals (a measure overflowing its declared
// duration) are not errors and never surface through this package unless a
// caller asks for final geometry of an unvalidated document.
//
// # Error Codes
//
//   - INVALID_*: malformed input (paths, numbers, formats)
//   - MISSING_*: required elements or capabilities that cannot be located
//   - DIVISION_OVERFLOW, FIXUP_LOOP: layout could not converge
//   - INTERNAL_ERROR: broken invariants
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidNumber, "divisions must be non-negative, got %d", d)
//	if errors.Is(err, errors.ErrCodeInvalidNumber) {
//	    // Handle bad input
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidNumber Code = "INVALID_NUMBER"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"

	// Lookup errors
	ErrCodeNotFound          Code = "NOT_FOUND"
	ErrCodeFileNotFound      Code = "FILE_NOT_FOUND"
	ErrCodeMissingElement    Code = "MISSING_ELEMENT"
	ErrCodeMissingCapability Code = "MISSING_CAPABILITY"

	// Layout convergence errors
	ErrCodeDivisionOverflow Code = "DIVISION_OVERFLOW"
	ErrCodeFixupLoop        Code = "FIXUP_LOOP"

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

// IsInput reports whether err was caused by bad caller input rather than an
// engine fault. The HTTP server maps these to 4xx responses.
func IsInput(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidPath, ErrCodeInvalidNumber, ErrCodeInvalidFormat,
		ErrCodeMissingElement, ErrCodeDivisionOverflow:
		return true
	}
	return false
}
