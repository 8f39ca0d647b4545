package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Unwrap(t *testing.T) {
	err := NewValidationError("title", "is required")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("ValidationError should unwrap to ErrValidation")
	}

	wrapped := fmt.Errorf("create diary: %w", err)
	var ve *ValidationError
	if !errors.As(wrapped, &ve) {
		t.Fatal("errors.As should find ValidationError through wrapping")
	}
	if ve.Errors[0].Field != "title" {
		t.Errorf("Field = %q, want %q", ve.Errors[0].Field, "title")
	}
}

func TestValidationError_Message(t *testing.T) {
	single := NewValidationError("body", "is required")
	if got, want := single.Error(), "validation: body: is required"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	multi := NewValidationErrors([]FieldError{
		{Field: "title", Message: "is required"},
		{Field: "body", Message: "is required"},
	})
	if got, want := multi.Error(), "validation: 2 errors (title: is required; body: is required)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", NewValidationError("f", "m"), "validation_error"},
		{"not found", fmt.Errorf("get: %w", ErrNotFound), "not_found"},
		{"forbidden", ErrForbidden, "forbidden"},
		{"storage", fmt.Errorf("write: %w", ErrStorageUnavailable), "storage_unavailable"},
		{"other", errors.New("boom"), "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}
