// Package moderation coordinates diary status decisions with the audit log.
//
// Each operation runs two sequential exclusive sections, diaries first and
// then audit-log. The pair is not atomic: if the audit append fails the
// diary change stays committed and ErrAuditNotRecorded is returned. Once the
// diary change is committed the audit append ignores caller cancellation.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onnwee/travelog/internal/apperrors"
	"github.com/onnwee/travelog/internal/audit"
	"github.com/onnwee/travelog/internal/diary"
	"github.com/onnwee/travelog/internal/validate"
)

// ErrAuditNotRecorded is returned alongside a committed diary change whose
// audit record could not be written.
var ErrAuditNotRecorded = errors.New("moderation decision applied but not recorded in audit log")

// Service applies moderator decisions.
type Service struct {
	diaries *diary.Repository
	log     *audit.Log
	logger  *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default().
func NewService(diaries *diary.Repository, log *audit.Log, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{diaries: diaries, log: log, logger: logger}
}

// SetStatus moves an entry to status. Approvals and rejections are recorded
// in the audit log; returning an entry to pending is not.
func (s *Service) SetStatus(ctx context.Context, entryID, actorID string, status diary.Status, reason string) (diary.Entry, error) {
	if !status.Valid() {
		return diary.Entry{}, apperrors.NewValidationError("status", "must be one of pending, approved, rejected")
	}
	reason, err := validate.Reason(reason)
	if err != nil {
		return diary.Entry{}, apperrors.NewValidationError("reason", err.Error())
	}
	if status == diary.StatusRejected && reason == "" {
		return diary.Entry{}, apperrors.NewValidationError("reason", "is required when rejecting")
	}

	entry, err := s.diaries.Review(ctx, entryID, status, reason)
	if err != nil {
		return diary.Entry{}, err
	}

	var action audit.Action
	switch status {
	case diary.StatusApproved:
		action = audit.ActionApproved
	case diary.StatusRejected:
		action = audit.ActionRejected
	default:
		return entry, nil
	}

	if err := s.record(ctx, entryID, actorID, action, entry.RejectionReason); err != nil {
		return entry, err
	}
	return entry, nil
}

// DeleteByModerator removes an entry regardless of owner and records the
// deletion. Earlier audit records for the entry are kept.
func (s *Service) DeleteByModerator(ctx context.Context, entryID, actorID string) error {
	if err := s.diaries.Delete(ctx, entryID, actorID, true); err != nil {
		return err
	}
	return s.record(ctx, entryID, actorID, audit.ActionDeleted, "")
}

// AuditTrail returns audit records for entryID, or all records when
// entryID is empty, newest first.
func (s *Service) AuditTrail(ctx context.Context, entryID string) ([]audit.Entry, error) {
	return s.log.Query(ctx, entryID)
}

func (s *Service) record(ctx context.Context, entryID, actorID string, action audit.Action, reason string) error {
	ctx = context.WithoutCancel(ctx)
	_, err := s.log.Append(ctx, audit.AppendInput{
		EntryID: entryID,
		ActorID: actorID,
		Action:  action,
		Reason:  reason,
	})
	if err == nil {
		return nil
	}

	s.logger.ErrorContext(ctx, "moderation decision not recorded in audit log",
		"entry_id", entryID,
		"actor_id", actorID,
		"action", string(action),
		"error", err,
	)
	if errors.Is(err, apperrors.ErrStorageUnavailable) {
		return fmt.Errorf("%w: %w", ErrAuditNotRecorded, err)
	}
	return fmt.Errorf("%w: %w: %v", ErrAuditNotRecorded, apperrors.ErrStorageUnavailable, err)
}
