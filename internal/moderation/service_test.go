package moderation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/onnwee/travelog/internal/apperrors"
	"github.com/onnwee/travelog/internal/audit"
	"github.com/onnwee/travelog/internal/collection"
	"github.com/onnwee/travelog/internal/diary"
)

// auditFailingBackend fails writes to the audit-log collection on demand
// and runs afterDiaryWrite once a diaries write has landed.
type auditFailingBackend struct {
	*collection.MemoryBackend
	fail            atomic.Bool
	afterDiaryWrite func()
}

func (b *auditFailingBackend) Write(ctx context.Context, name string, data []byte) error {
	if name == audit.CollectionName && b.fail.Load() {
		return errors.New("disk full")
	}
	if err := b.MemoryBackend.Write(ctx, name, data); err != nil {
		return err
	}
	if name == diary.CollectionName && b.afterDiaryWrite != nil {
		b.afterDiaryWrite()
	}
	return nil
}

type fixture struct {
	svc     *Service
	diaries *diary.Repository
	log     *audit.Log
	backend *auditFailingBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := &auditFailingBackend{MemoryBackend: collection.NewMemoryBackend()}
	db := collection.NewDB(backend, collection.WithLogger(logger))

	diaries := diary.NewRepository(db)
	log := audit.NewLog(db)
	return &fixture{
		svc:     NewService(diaries, log, logger),
		diaries: diaries,
		log:     log,
		backend: backend,
	}
}

func (f *fixture) create(t *testing.T, author string) diary.Entry {
	t.Helper()
	e, err := f.diaries.Create(context.Background(), diary.CreateInput{AuthorID: author, Title: "T", Body: "B"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return e
}

func TestScenario_ApproveMakesEntryPublic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := f.create(t, "u1")
	if e.Status != diary.StatusPending {
		t.Fatalf("new entry status = %q, want pending", e.Status)
	}

	got, err := f.svc.SetStatus(ctx, e.ID, "mod1", diary.StatusApproved, "")
	if err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if got.Status != diary.StatusApproved {
		t.Errorf("Status = %q, want approved", got.Status)
	}

	trail, err := f.svc.AuditTrail(ctx, e.ID)
	if err != nil {
		t.Fatalf("AuditTrail() error = %v", err)
	}
	if len(trail) != 1 {
		t.Fatalf("AuditTrail() returned %d records, want 1", len(trail))
	}
	if trail[0].Action != audit.ActionApproved || trail[0].ActorID != "mod1" || trail[0].EntryID != e.ID {
		t.Errorf("audit record = %+v", trail[0])
	}

	page, err := f.diaries.ListPublic(ctx, 0, 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].ID != e.ID {
		t.Errorf("ListPublic() = %+v, want approved entry", page)
	}
}

func TestScenario_RejectWithoutReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "u1")

	for _, reason := range []string{"", "   "} {
		_, err := f.svc.SetStatus(ctx, e.ID, "mod1", diary.StatusRejected, reason)
		if !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("SetStatus(rejected, %q) error = %v, want ErrValidation", reason, err)
		}
	}

	got, _ := f.diaries.GetByID(ctx, e.ID)
	if got.Status != diary.StatusPending || !got.UpdatedAt.Equal(e.UpdatedAt) {
		t.Errorf("entry changed after invalid rejection: %+v", got)
	}
	trail, _ := f.svc.AuditTrail(ctx, "")
	if len(trail) != 0 {
		t.Errorf("invalid rejection wrote %d audit records", len(trail))
	}
}

func TestSetStatus_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "u1")

	got, err := f.svc.SetStatus(ctx, e.ID, "mod1", diary.StatusRejected, "Photos are not yours")
	if err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if got.RejectionReason != "Photos are not yours" {
		t.Errorf("RejectionReason = %q", got.RejectionReason)
	}
	trail, _ := f.svc.AuditTrail(ctx, e.ID)
	if len(trail) != 1 || trail[0].Action != audit.ActionRejected || trail[0].Reason != "Photos are not yours" {
		t.Errorf("audit trail = %+v", trail)
	}
}

func TestSetStatus_PendingIsNotAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "u1")

	if _, err := f.svc.SetStatus(ctx, e.ID, "mod1", diary.StatusApproved, ""); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.SetStatus(ctx, e.ID, "mod1", diary.StatusPending, "ignored")
	if err != nil {
		t.Fatalf("SetStatus(pending) error = %v", err)
	}
	if got.Status != diary.StatusPending || got.RejectionReason != "" {
		t.Errorf("entry = %+v, want pending without reason", got)
	}

	trail, _ := f.svc.AuditTrail(ctx, e.ID)
	if len(trail) != 1 {
		t.Errorf("AuditTrail() = %d records, want only the approval", len(trail))
	}
}

func TestSetStatus_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SetStatus(ctx, "e1", "mod1", diary.Status("published"), ""); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("SetStatus(invalid status) error = %v, want ErrValidation", err)
	}
	if _, err := f.svc.SetStatus(ctx, "missing", "mod1", diary.StatusApproved, ""); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("SetStatus(missing) error = %v, want ErrNotFound", err)
	}
	trail, _ := f.svc.AuditTrail(ctx, "")
	if len(trail) != 0 {
		t.Errorf("failed operations wrote %d audit records", len(trail))
	}
}

func TestDeleteByModerator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "u1")

	if _, err := f.svc.SetStatus(ctx, e.ID, "mod1", diary.StatusApproved, ""); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeleteByModerator(ctx, e.ID, "mod2"); err != nil {
		t.Fatalf("DeleteByModerator() error = %v", err)
	}

	if _, err := f.diaries.GetByID(ctx, e.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("entry still present after moderator delete: %v", err)
	}

	trail, _ := f.svc.AuditTrail(ctx, e.ID)
	if len(trail) != 2 {
		t.Fatalf("AuditTrail() = %d records, want approval and deletion kept", len(trail))
	}
	if trail[0].Action != audit.ActionDeleted || trail[0].ActorID != "mod2" {
		t.Errorf("newest record = %+v, want deletion by mod2", trail[0])
	}

	if err := f.svc.DeleteByModerator(ctx, e.ID, "mod2"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
	trail, _ = f.svc.AuditTrail(ctx, e.ID)
	if len(trail) != 2 {
		t.Errorf("failed delete wrote an audit record")
	}
}

func TestDeleteByModerator_SystemActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "u1")

	if err := f.svc.DeleteByModerator(ctx, e.ID, ""); err != nil {
		t.Fatal(err)
	}
	trail, _ := f.svc.AuditTrail(ctx, e.ID)
	if len(trail) != 1 || trail[0].ActorID != audit.SystemActor {
		t.Errorf("audit trail = %+v, want system actor", trail)
	}
}

func TestSetStatus_AuditFailureKeepsDiaryChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.create(t, "u1")

	f.backend.fail.Store(true)
	got, err := f.svc.SetStatus(ctx, e.ID, "mod1", diary.StatusApproved, "")
	if !errors.Is(err, ErrAuditNotRecorded) {
		t.Fatalf("SetStatus() error = %v, want ErrAuditNotRecorded", err)
	}
	if !errors.Is(err, apperrors.ErrStorageUnavailable) {
		t.Errorf("SetStatus() error = %v, should also be ErrStorageUnavailable", err)
	}
	if got.Status != diary.StatusApproved {
		t.Errorf("returned entry status = %q, want approved", got.Status)
	}

	stored, _ := f.diaries.GetByID(ctx, e.ID)
	if stored.Status != diary.StatusApproved {
		t.Errorf("stored status = %q, diary change should stay committed", stored.Status)
	}
}

func TestSetStatus_CancelAfterDiaryCommitStillAudits(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.backend.afterDiaryWrite = cancel

	got, err := f.svc.SetStatus(ctx, e.ID, "mod1", diary.StatusApproved, "")
	if err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if got.Status != diary.StatusApproved {
		t.Errorf("Status = %q, want approved", got.Status)
	}
	if ctx.Err() == nil {
		t.Fatal("context was not cancelled during the diary write")
	}

	trail, err := f.svc.AuditTrail(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("AuditTrail() error = %v", err)
	}
	if len(trail) != 1 || trail[0].Action != audit.ActionApproved {
		t.Errorf("AuditTrail() = %+v, want one approval record", trail)
	}
}

func TestDeleteByModerator_CancelAfterDiaryCommitStillAudits(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.backend.afterDiaryWrite = cancel

	if err := f.svc.DeleteByModerator(ctx, e.ID, "mod2"); err != nil {
		t.Fatalf("DeleteByModerator() error = %v", err)
	}

	trail, err := f.svc.AuditTrail(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("AuditTrail() error = %v", err)
	}
	if len(trail) != 1 || trail[0].Action != audit.ActionDeleted || trail[0].ActorID != "mod2" {
		t.Errorf("AuditTrail() = %+v, want one deletion record by mod2", trail)
	}
}

func TestSetStatus_CancelledBeforeStartChangesNothing(t *testing.T) {
	f := newFixture(t)
	e := f.create(t, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.SetStatus(ctx, e.ID, "mod1", diary.StatusApproved, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SetStatus() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrAuditNotRecorded) {
		t.Error("cancelled request reported an unrecorded audit")
	}

	stored, err := f.diaries.GetByID(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != diary.StatusPending {
		t.Errorf("stored status = %q, want pending", stored.Status)
	}
	trail, _ := f.svc.AuditTrail(context.Background(), e.ID)
	if len(trail) != 0 {
		t.Errorf("AuditTrail() = %d records, want none", len(trail))
	}
}
