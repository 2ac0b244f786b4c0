// Package errors provides domain-specific error types and sentinel errors
// for improved error handling across the application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates the caller provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingParameter indicates a required request field is empty.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrLLMUnavailable indicates no LLM provider could produce an answer.
	ErrLLMUnavailable = errors.New("llm unavailable")

	// ErrKnowledgeLoad indicates the knowledge base could not be loaded.
	ErrKnowledgeLoad = errors.New("knowledge load failed")

	// ErrBackupDisabled indicates backups were requested without object storage.
	ErrBackupDisabled = errors.New("backup storage not configured")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err is an input error: ErrInvalidInput,
// ErrMissingParameter or a *ValidationError.
func IsInvalidInput(err error) bool {
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrMissingParameter) {
		return true
	}
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("validation failed on %s (%q): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewValueError creates a validation error that records the rejected value.
func NewValueError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
