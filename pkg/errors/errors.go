// Package errors provides structured error types for depfix.
//
// Every fatal condition of a repair run carries a machine-readable [Code] so
// the CLI can tell an ambiguous diagnostic apart from a malformed BUILD file
// or a build tool that could not be started.
//
// # Error Codes
//
//   - INVALID_*: command-line and configuration validation failures
//   - BUILD_FILE_* / MALFORMED_*: BUILD files the editor refuses to touch
//   - UNKNOWN_FAILURE / UNRESOLVED_TARGET: diagnostics the tool will not guess about
//   - BAZEL_FAILED: the build client itself failed
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidMode, "unknown mode %q", mode)
//	if errors.Is(err, errors.ErrCodeInvalidMode) {
//	    // Print usage
//	}
//
//	err := errors.Wrap(errors.ErrCodeBazel, origErr, "query %s", expr)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidMode    Code = "INVALID_MODE"
	ErrCodeInvalidRoot    Code = "INVALID_ROOT"
	ErrCodeInvalidPattern Code = "INVALID_PATTERN"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"

	// BUILD file errors
	ErrCodeBuildFileNotFound  Code = "BUILD_FILE_NOT_FOUND"
	ErrCodeMalformedBuildFile Code = "MALFORMED_BUILD_FILE"

	// Ambiguous diagnostics
	ErrCodeUnknownFailure   Code = "UNKNOWN_FAILURE"
	ErrCodeUnresolvedTarget Code = "UNRESOLVED_TARGET"

	// Build client errors
	ErrCodeBazel Code = "BAZEL_FAILED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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

// ExitCode maps an error to the process exit status used by cmd/depfix.
// Usage errors exit with 2; everything else fatal exits with 1.
func ExitCode(err error) int {
	switch GetCode(err) {
	case "":
		if err == nil {
			return 0
		}
		return 1
	case ErrCodeInvalidInput, ErrCodeInvalidMode, ErrCodeInvalidRoot, ErrCodeInvalidPattern, ErrCodeInvalidConfig:
		return 2
	default:
		return 1
	}
}
