// Package ragerr defines the structured error taxonomy of the retrieval
// core. Three categories cover every failure the core can surface:
// validation (bad input), provider (embedder or vector store), and index
// unavailability (lexical index not built / empty corpus).
//
// An empty result set is a valid outcome, not an error, and is never
// represented by this package.
package ragerr

import (
	"errors"
	"fmt"
)

// Error codes for the retrieval core.
const (
	CodeValidation       = "ERR_VALIDATION"
	CodeProvider         = "ERR_PROVIDER"
	CodeIndexUnavailable = "ERR_INDEX_UNAVAILABLE"
)

// Category classifies errors for handling decisions.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryProvider   Category = "provider"
	CategoryIndex      Category = "index"
)

// Error is the structured error type for the retrieval core.
type Error struct {
	// Code is the unique error code (e.g., "ERR_PROVIDER").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category.
	Category Category

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates whether the operation may succeed on retry.
	// Provider failures are retryable; validation failures are not.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so errors.Is works across instances.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Validation creates a validation error (empty/invalid query or text).
func Validation(message string) *Error {
	return &Error{
		Code:     CodeValidation,
		Message:  message,
		Category: CategoryValidation,
	}
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// Provider creates a provider error (embedder/vector-store call failed or
// timed out). Provider errors are retryable.
func Provider(message string, cause error) *Error {
	return &Error{
		Code:      CodeProvider,
		Message:   message,
		Category:  CategoryProvider,
		Cause:     cause,
		Retryable: true,
	}
}

// IndexUnavailable creates an index-unavailable error.
func IndexUnavailable(message string) *Error {
	return &Error{
		Code:     CodeIndexUnavailable,
		Message:  message,
		Category: CategoryIndex,
	}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsProvider reports whether err is a provider error.
func IsProvider(err error) bool {
	return hasCode(err, CodeProvider)
}

// IsIndexUnavailable reports whether err is an index-unavailable error.
func IsIndexUnavailable(err error) bool {
	return hasCode(err, CodeIndexUnavailable)
}

func hasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
