// Package apperrors defines the error taxonomy shared by the diary core and
// the HTTP layer that translates it into status codes.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Core failures wrap exactly one of these.
var (
	// ErrValidation marks malformed or missing input. Recoverable by the caller.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a reference to an entry that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks an actor without rights over the target entry.
	ErrForbidden = errors.New("forbidden")

	// ErrStorageUnavailable marks a durable medium read or write failure.
	// The operation did not complete and had no partial effect.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// FieldError describes a validation failure for a single input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries one or more field-level failures.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("validation: %d errors (%s)", len(e.Errors), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// Code returns the stable machine-readable code for err, or "internal_error"
// when err does not belong to the taxonomy.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "internal_error"
	}
}
