// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown errors and cancellation
//   - Validation errors (100-199): Invalid parameters, configuration and volumes
//   - Basket errors (200-299): Basket lifecycle precondition violations
//   - Signal errors (300-399): Model loading, prediction and feature errors
//   - Market data errors (400-499): Bar and tick retrieval
//   - Broker errors (500-599): Order execution and position management
//   - Risk errors (600-699): Risk gate rejections
//   - Storage errors (700-799): Journal, stats and archive persistence
//   - Engine errors (800-899): Runner lifecycle and callbacks
//
// Usage:
//
//	err := errors.New(errors.ErrCodeBasketNotOpen, "no basket is open")
//
//	err := errors.Newf(errors.ErrCodeInvalidDirection, "unsupported direction %q", dir)
//
//	err := errors.Wrap(errors.ErrCodeOrderFailed, "failed to send market order", cause)
//
//	if errors.HasCode(err, errors.ErrCodeBasketNotOpen) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Join wraps several causes under one code. Nil causes are dropped and
// nil is returned when nothing remains.
func Join(code ErrorCode, message string, causes ...error) error {
	joined := errors.Join(causes...)
	if joined == nil {
		return nil
	}

	return Wrap(code, message, joined)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}
