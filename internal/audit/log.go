package audit

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/travelog/internal/apperrors"
	"github.com/onnwee/travelog/internal/collection"
	"github.com/onnwee/travelog/internal/validate"
)

// CollectionName is the name of the persisted collection holding records.
const CollectionName = "audit-log"

// Log is the append-only audit record store. Storage order is the log's
// total order.
type Log struct {
	store *collection.Store[Entry]
	now   func() time.Time
	newID func() (string, error)
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source. Default: time.Now in UTC.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithIDGenerator overrides the id source. Default: UUIDv7.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(l *Log) { l.newID = gen }
}

// NewLog opens the audit-log collection on db.
func NewLog(db *collection.DB, opts ...Option) *Log {
	l := &Log{
		store: collection.Open[Entry](db, CollectionName),
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records a decision and returns the stored record.
func (l *Log) Append(ctx context.Context, in AppendInput) (Entry, error) {
	rec, err := validateAppend(in)
	if err != nil {
		return Entry{}, err
	}

	return collection.WithExclusiveAccess(ctx, l.store, func(current []Entry) ([]Entry, Entry, error) {
		id, err := l.newID()
		if err != nil {
			return nil, Entry{}, err
		}
		rec.ID = id
		rec.At = l.now()
		if n := len(current); n > 0 {
			rec.PreviousHash = hashEntry(&current[n-1])
		}
		return append(current, rec), rec, nil
	})
}

// Query returns records for entryID, or every record when entryID is empty,
// newest first.
func (l *Log) Query(ctx context.Context, entryID string) ([]Entry, error) {
	entries, err := l.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(entries))
	for i := range entries {
		if entryID == "" || entries[i].EntryID == entryID {
			out = append(out, entries[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.After(out[j].At)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Verify checks the hash chain of the stored log.
func (l *Log) Verify(ctx context.Context) error {
	entries, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	return VerifyChain(entries)
}

func validateAppend(in AppendInput) (Entry, error) {
	var errs []apperrors.FieldError

	if in.EntryID == "" {
		errs = append(errs, apperrors.FieldError{Field: "entry_id", Message: "is required"})
	}
	if !in.Action.Valid() {
		errs = append(errs, apperrors.FieldError{Field: "action", Message: "must be one of approved, rejected, deleted"})
	}
	reason, err := validate.Reason(in.Reason)
	if err != nil {
		errs = append(errs, apperrors.FieldError{Field: "reason", Message: err.Error()})
	} else if in.Action == ActionRejected && reason == "" {
		errs = append(errs, apperrors.FieldError{Field: "reason", Message: "is required for rejections"})
	}
	if len(errs) > 0 {
		return Entry{}, apperrors.NewValidationErrors(errs)
	}

	actor := in.ActorID
	if actor == "" {
		actor = SystemActor
	}
	return Entry{
		EntryID: in.EntryID,
		ActorID: actor,
		Action:  in.Action,
		Reason:  reason,
	}, nil
}
