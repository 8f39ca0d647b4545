package diary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/travelog/internal/apperrors"
	"github.com/onnwee/travelog/internal/collection"
	"github.com/onnwee/travelog/internal/validate"
)

// CollectionName is the name of the persisted collection holding entries.
const CollectionName = "diaries"

// Common errors for diary operations.
var (
	ErrEntryNotFound = fmt.Errorf("diary entry %w", apperrors.ErrNotFound)
	ErrNotOwner      = fmt.Errorf("%w: actor does not own this entry", apperrors.ErrForbidden)
	ErrDuplicateID   = errors.New("generated entry id already exists")
)

// Repository performs typed operations on diary entries. Every mutation runs
// in one exclusive section of the "diaries" collection; listings read a
// snapshot with Load.
type Repository struct {
	store *collection.Store[Entry]
	now   func() time.Time
	newID func() (string, error)
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source. Default: time.Now in UTC.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator overrides the id source. Generated ids must be unique and
// sort in creation order. Default: UUIDv7.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(r *Repository) { r.newID = gen }
}

// NewRepository opens the diaries collection on db.
func NewRepository(db *collection.DB, opts ...Option) *Repository {
	r := &Repository{
		store: collection.Open[Entry](db, CollectionName),
		now:   func() time.Time { return time.Now().UTC() },
		newID: newUUIDv7,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Create validates in and stores a new pending entry.
func (r *Repository) Create(ctx context.Context, in CreateInput) (Entry, error) {
	entry, err := validateCreate(in)
	if err != nil {
		return Entry{}, err
	}

	return collection.WithExclusiveAccess(ctx, r.store, func(current []Entry) ([]Entry, Entry, error) {
		id, err := r.newID()
		if err != nil {
			return nil, Entry{}, fmt.Errorf("failed to generate entry id: %w", err)
		}
		for i := range current {
			if current[i].ID == id {
				return nil, Entry{}, ErrDuplicateID
			}
		}

		now := r.now()
		entry.ID = id
		entry.Status = StatusPending
		entry.RejectionReason = ""
		entry.CreatedAt = now
		entry.UpdatedAt = now

		return append(current, entry), entry, nil
	})
}

// GetByID returns the entry with the given id.
func (r *Repository) GetByID(ctx context.Context, id string) (Entry, error) {
	entries, err := r.store.Load(ctx)
	if err != nil {
		return Entry{}, err
	}
	if i := indexOf(entries, id); i >= 0 {
		return entries[i], nil
	}
	return Entry{}, ErrEntryNotFound
}

// ListPublic returns approved entries, optionally restricted to those whose
// title or body contains keyword (case-insensitive).
func (r *Repository) ListPublic(ctx context.Context, page, limit int, keyword string) (Page, error) {
	if err := checkPaging(page, limit); err != nil {
		return Page{}, err
	}
	keyword, err := validate.Keyword(keyword)
	if err != nil {
		return Page{}, apperrors.NewValidationError("keyword", err.Error())
	}
	keyword = strings.ToLower(keyword)

	entries, err := r.store.Load(ctx)
	if err != nil {
		return Page{}, err
	}
	return paginate(filter(entries, func(e *Entry) bool {
		if e.Status != StatusApproved {
			return false
		}
		return keyword == "" || matchesKeyword(e, keyword)
	}), page, limit), nil
}

// ListByAuthor returns every entry written by authorID regardless of status.
func (r *Repository) ListByAuthor(ctx context.Context, authorID string, page, limit int) (Page, error) {
	if err := checkPaging(page, limit); err != nil {
		return Page{}, err
	}
	entries, err := r.store.Load(ctx)
	if err != nil {
		return Page{}, err
	}
	return paginate(filter(entries, func(e *Entry) bool {
		return e.AuthorID == authorID
	}), page, limit), nil
}

// ListForModeration returns entries with the given status, or all entries
// when status is empty.
func (r *Repository) ListForModeration(ctx context.Context, status Status, page, limit int) (Page, error) {
	if status != "" && !status.Valid() {
		return Page{}, apperrors.NewValidationError("status", "must be one of pending, approved, rejected")
	}
	if err := checkPaging(page, limit); err != nil {
		return Page{}, err
	}
	entries, err := r.store.Load(ctx)
	if err != nil {
		return Page{}, err
	}
	return paginate(filter(entries, func(e *Entry) bool {
		return status == "" || e.Status == status
	}), page, limit), nil
}

// Update applies patch to an entry owned by actorID. Whatever its previous
// status, the entry returns to pending with no rejection reason.
func (r *Repository) Update(ctx context.Context, id, actorID string, patch Patch) (Entry, error) {
	patch, patchErr := validatePatch(patch)

	return collection.WithExclusiveAccess(ctx, r.store, func(current []Entry) ([]Entry, Entry, error) {
		i := indexOf(current, id)
		if i < 0 {
			return nil, Entry{}, ErrEntryNotFound
		}
		e := &current[i]
		if !e.IsOwnedBy(actorID) {
			return nil, Entry{}, ErrNotOwner
		}
		if patchErr != nil {
			return nil, Entry{}, patchErr
		}

		if patch.Title != nil {
			e.Title = *patch.Title
		}
		if patch.Body != nil {
			e.Body = *patch.Body
		}
		if patch.Location != nil {
			e.Location = *patch.Location
		}
		if patch.Media != nil {
			e.Media = *patch.Media
		}
		e.Status = StatusPending
		e.RejectionReason = ""
		e.UpdatedAt = r.now()

		return current, *e, nil
	})
}

// Delete removes an entry. Only its author or an admin may delete it.
func (r *Repository) Delete(ctx context.Context, id, actorID string, isAdmin bool) error {
	_, err := collection.WithExclusiveAccess(ctx, r.store, func(current []Entry) ([]Entry, Entry, error) {
		i := indexOf(current, id)
		if i < 0 {
			return nil, Entry{}, ErrEntryNotFound
		}
		removed := current[i]
		if !isAdmin && !removed.IsOwnedBy(actorID) {
			return nil, Entry{}, ErrNotOwner
		}
		return append(current[:i], current[i+1:]...), removed, nil
	})
	return err
}

// Review sets the moderation status of an entry. A rejected entry must
// carry a reason; any other status clears it.
func (r *Repository) Review(ctx context.Context, id string, status Status, reason string) (Entry, error) {
	if !status.Valid() {
		return Entry{}, apperrors.NewValidationError("status", "must be one of pending, approved, rejected")
	}
	reason, err := validate.Reason(reason)
	if err != nil {
		return Entry{}, apperrors.NewValidationError("reason", err.Error())
	}
	if status == StatusRejected && reason == "" {
		return Entry{}, apperrors.NewValidationError("reason", "is required when rejecting")
	}
	if status != StatusRejected {
		reason = ""
	}

	return collection.WithExclusiveAccess(ctx, r.store, func(current []Entry) ([]Entry, Entry, error) {
		i := indexOf(current, id)
		if i < 0 {
			return nil, Entry{}, ErrEntryNotFound
		}
		e := &current[i]
		e.Status = status
		e.RejectionReason = reason
		e.UpdatedAt = r.now()
		return current, *e, nil
	})
}

// RewriteMediaPrefix replaces the leading from with to in every stored media
// URI and returns the number of entries changed. Status is left alone.
func (r *Repository) RewriteMediaPrefix(ctx context.Context, from, to string) (int, error) {
	var errs []apperrors.FieldError
	from, err := validate.MediaPrefix(from)
	if err != nil {
		errs = append(errs, apperrors.FieldError{Field: "from", Message: err.Error()})
	}
	to, err = validate.MediaPrefix(to)
	if err != nil {
		errs = append(errs, apperrors.FieldError{Field: "to", Message: err.Error()})
	}
	if len(errs) > 0 {
		return 0, apperrors.NewValidationErrors(errs)
	}
	if from == to {
		return 0, nil
	}

	return collection.WithExclusiveAccess(ctx, r.store, func(current []Entry) ([]Entry, int, error) {
		now := r.now()
		changed := 0
		for i := range current {
			touched := false
			for j, uri := range current[i].Media {
				if strings.HasPrefix(uri, from) {
					current[i].Media[j] = to + strings.TrimPrefix(uri, from)
					touched = true
				}
			}
			if touched {
				current[i].UpdatedAt = now
				changed++
			}
		}
		return current, changed, nil
	})
}

func indexOf(entries []Entry, id string) int {
	if id == "" {
		return -1
	}
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}
