package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/travelog/internal/audit"
	"github.com/onnwee/travelog/internal/auth"
	"github.com/onnwee/travelog/internal/diary"
	"github.com/onnwee/travelog/internal/middleware"
	"github.com/onnwee/travelog/internal/moderation"
)

// SetStatusRequest represents the request body for a moderation decision.
type SetStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// RejectRequest is the body of the reject shortcut.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// AuditNotRecordedResponse is returned when a decision was applied but its
// audit record was lost. Entry is omitted for deletions.
type AuditNotRecordedResponse struct {
	Error ErrorDetail  `json:"error"`
	Entry *diary.Entry `json:"entry,omitempty"`
}

// AuditLogResponse lists audit records, newest first.
type AuditLogResponse struct {
	Total int           `json:"total"`
	Items []audit.Entry `json:"items"`
}

// VerifyResponse reports the state of the audit hash chain.
type VerifyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ModerationHandlers holds dependencies for moderator HTTP handlers.
type ModerationHandlers struct {
	service *moderation.Service
	diaries *diary.Repository
	log     *audit.Log
}

// NewModerationHandlers creates a new ModerationHandlers instance.
func NewModerationHandlers(service *moderation.Service, diaries *diary.Repository, log *audit.Log) *ModerationHandlers {
	return &ModerationHandlers{service: service, diaries: diaries, log: log}
}

// List handles GET /admin/diaries?status=. An empty status lists every entry.
func (h *ModerationHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePaging(r)
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	status := diary.Status(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	result, err := h.diaries.ListForModeration(r.Context(), status, page, limit)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// SetStatus handles PUT /admin/diaries/{id}/status.
func (h *ModerationHandlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}

	status, err := diary.ParseStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	h.decide(w, r, status, req.Reason)
}

// Approve handles PUT /admin/diaries/{id}/approve.
func (h *ModerationHandlers) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, diary.StatusApproved, "")
}

// Reject handles PUT /admin/diaries/{id}/reject with body {"reason": "..."}.
func (h *ModerationHandlers) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, r, "Invalid JSON in request body")
		return
	}
	h.decide(w, r, diary.StatusRejected, req.Reason)
}

func (h *ModerationHandlers) decide(w http.ResponseWriter, r *http.Request, status diary.Status, reason string) {
	actor, _ := auth.ActorFrom(r.Context())
	id := r.PathValue("id")

	entry, err := h.service.SetStatus(r.Context(), id, actor.ID, status, reason)
	if errors.Is(err, moderation.ErrAuditNotRecorded) {
		writeAuditNotRecorded(w, r, &entry)
		return
	}
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "diary entry moderated",
		"entry_id", id,
		"actor_id", actor.ID,
		"status", string(status),
	)
	writeJSON(w, r, http.StatusOK, entry)
}

// Delete handles DELETE /admin/diaries/{id}.
func (h *ModerationHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	id := r.PathValue("id")

	err := h.service.DeleteByModerator(r.Context(), id, actor.ID)
	if errors.Is(err, moderation.ErrAuditNotRecorded) {
		writeAuditNotRecorded(w, r, nil)
		return
	}
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "diary entry deleted by moderator", "entry_id", id, "actor_id", actor.ID)
	w.WriteHeader(http.StatusNoContent)
}

func writeAuditNotRecorded(w http.ResponseWriter, r *http.Request, entry *diary.Entry) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuditNotRecorded)
	middleware.UpdateResponseContext(w, ctx)
	writeJSON(w, r, StatusCodeMapping(ErrCodeAuditNotRecorded), AuditNotRecordedResponse{
		Error: ErrorDetail{
			Code:    ErrCodeAuditNotRecorded,
			Message: "The decision was applied but could not be recorded in the audit log",
		},
		Entry: entry,
	})
}

// AuditLogs handles GET /admin/audit-logs?entry_id=.
func (h *ModerationHandlers) AuditLogs(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.AuditTrail(r.Context(), r.URL.Query().Get("entry_id"))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if records == nil {
		records = []audit.Entry{}
	}
	writeJSON(w, r, http.StatusOK, AuditLogResponse{Total: len(records), Items: records})
}

// ExportAuditLogs handles GET /admin/audit-logs/export.
// Query parameters: format (json|csv, default json), entry_id, from, to
// (RFC 3339 or YYYY-MM-DD) and limit.
func (h *ModerationHandlers) ExportAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := audit.ExportOptions{
		Format:  audit.ExportFormat(strings.ToLower(q.Get("format"))),
		EntryID: q.Get("entry_id"),
	}
	if opts.Format == "" {
		opts.Format = audit.ExportFormatJSON
	}

	var err error
	if opts.From, err = parseTimeParam(q.Get("from"), false); err != nil {
		writeBadRequest(w, r, "from must be RFC 3339 or YYYY-MM-DD")
		return
	}
	if opts.To, err = parseTimeParam(q.Get("to"), true); err != nil {
		writeBadRequest(w, r, "to must be RFC 3339 or YYYY-MM-DD")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		if opts.Limit, err = strconv.Atoi(raw); err != nil {
			writeBadRequest(w, r, "limit must be an integer")
			return
		}
	}

	data, err := audit.Export(r.Context(), h.log, opts)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", opts.Format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.`+string(opts.Format)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(r.Context(), "failed to write audit export", "error", err)
	}
}

// VerifyAuditLog handles GET /admin/audit-logs/verify.
func (h *ModerationHandlers) VerifyAuditLog(w http.ResponseWriter, r *http.Request) {
	err := h.log.Verify(r.Context())
	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, VerifyResponse{Valid: true})
	case errors.Is(err, audit.ErrChainBroken):
		slog.WarnContext(r.Context(), "audit log verification failed", "error", err)
		writeJSON(w, r, http.StatusOK, VerifyResponse{Valid: false, Error: err.Error()})
	default:
		WriteAppError(w, r, err)
	}
}

// parseTimeParam accepts RFC 3339 timestamps or bare dates. A bare date used
// as an upper bound covers the whole day.
func parseTimeParam(raw string, endOfDay bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
