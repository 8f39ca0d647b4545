// Package api provides the HTTP handlers of the travelog API and its
// standardized error responses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/travelog/internal/apperrors"
	"github.com/onnwee/travelog/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeBadRequest indicates a malformed request (unparseable JSON or query).
	ErrCodeBadRequest = "bad_request"

	// ErrCodeUnauthorized indicates a missing or invalid access token.
	ErrCodeUnauthorized = "unauthorized"

	// ErrCodeForbidden indicates the actor may not act on the resource.
	ErrCodeForbidden = "forbidden"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeMethodNotAllowed indicates an unsupported method on a known route.
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// ErrCodeStorageUnavailable indicates the durable medium could not be read or written.
	ErrCodeStorageUnavailable = "storage_unavailable"

	// ErrCodeAuditNotRecorded indicates a moderation decision was applied
	// but its audit record could not be written.
	ErrCodeAuditNotRecorded = "audit_not_recorded"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message, plus the
// offending fields for validation errors.
type ErrorDetail struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Fields  []FieldDetail `json:"fields,omitempty"`
}

// FieldDetail is one field-level validation failure.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
//
// The error code is reported to the logging middleware through ctx, so
// callers set it first:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Diary entry not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	writeErrorResponse(w, ctx, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func writeErrorResponse(w http.ResponseWriter, ctx context.Context, status int, errResp ErrorResponse) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// WriteAppError translates an error from the diary core into its HTTP form.
// Validation errors keep their field details; storage and unknown failures
// are logged and answered with a generic message.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.Code(err)
	status := StatusCodeMapping(code)
	ctx := middleware.SetErrorCode(r.Context(), code)

	detail := ErrorDetail{Code: code}
	switch code {
	case ErrCodeValidation:
		detail.Message = "Request validation failed"
		var verr *apperrors.ValidationError
		if errors.As(err, &verr) {
			for _, fe := range verr.Errors {
				detail.Fields = append(detail.Fields, FieldDetail{Field: fe.Field, Message: fe.Message})
			}
			if len(verr.Errors) == 1 {
				detail.Message = verr.Errors[0].Field + " " + verr.Errors[0].Message
			}
		}
	case ErrCodeNotFound:
		detail.Message = "Diary entry not found"
	case ErrCodeForbidden:
		detail.Message = "You are not allowed to modify this diary entry"
	case ErrCodeStorageUnavailable:
		slog.ErrorContext(ctx, "storage unavailable", "error", err, "path", r.URL.Path)
		detail.Message = "Storage is temporarily unavailable, retry later"
		w.Header().Set("Retry-After", "5")
	default:
		slog.ErrorContext(ctx, "unhandled error", "error", err, "path", r.URL.Path)
		detail.Message = "Internal server error"
	}

	writeErrorResponse(w, ctx, status, ErrorResponse{Error: detail})
}

// StatusCodeMapping returns the HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeStorageUnavailable, ErrCodeAuditNotRecorded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// writeBadRequest reports an unparseable request.
func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, message)
}
