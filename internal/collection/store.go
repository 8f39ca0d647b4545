package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/onnwee/travelog/internal/apperrors"
	"github.com/onnwee/travelog/internal/tracing"
)

// DB binds a Backend and Codec and owns the exclusive section of every
// collection opened through it. All Stores for the same name on one DB share
// a single mutex.
type DB struct {
	backend Backend
	codec   Codec
	logger  *slog.Logger
	metrics *Metrics
	timeNow func() time.Time

	locks sync.Map // collection name -> *sync.Mutex
}

// Option configures a DB.
type Option func(*DB)

// WithCodec sets the serialisation codec. Default: JSONCodec.
func WithCodec(c Codec) Option {
	return func(db *DB) { db.codec = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(db *DB) { db.metrics = m }
}

// NewDB creates a DB over backend.
func NewDB(backend Backend, opts ...Option) *DB {
	db := &DB{
		backend: backend,
		codec:   JSONCodec{},
		logger:  slog.Default(),
		timeNow: time.Now,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Backend returns the underlying backend.
func (db *DB) Backend() Backend { return db.backend }

// Ping checks that the backend is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.backend.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %s backend: %v", apperrors.ErrStorageUnavailable, db.backend.Name(), err)
	}
	return nil
}

func (db *DB) lockFor(name string) *sync.Mutex {
	mu, _ := db.locks.LoadOrStore(name, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Store is a typed handle on one named collection.
type Store[T any] struct {
	db   *DB
	name string
	mu   *sync.Mutex
}

// Open returns a Store for the named collection. Nothing is read until the
// first operation. Open panics on a name that no backend can store; names
// are program constants.
func Open[T any](db *DB, name string) *Store[T] {
	if err := ValidateName(name); err != nil {
		panic(err)
	}
	return &Store[T]{db: db, name: name, mu: db.lockFor(name)}
}

// Name returns the collection name.
func (s *Store[T]) Name() string { return s.name }

// Load returns the full current collection.
//
// A missing backing object is initialised to an empty collection and
// persisted. A corrupt one is logged and reported as empty without being
// overwritten. Any other read failure is ErrStorageUnavailable.
func (s *Store[T]) Load(ctx context.Context) (items []T, err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, s.db.backend.Name(), s.name, tracing.StoreOperationLoad)
	start := s.db.timeNow()
	defer func() {
		endSpan(err)
		s.db.metrics.observe(s.name, OpLoad, statusOf(err), s.db.timeNow().Sub(start).Seconds())
	}()

	items, found, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		return items, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the lock: a concurrent mutation may have created it.
	items, found, err = s.read(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		return items, nil
	}
	if err := s.write(ctx, []T{}); err != nil {
		return nil, err
	}
	s.db.logger.InfoContext(ctx, "initialized empty collection",
		"collection", s.name,
		"backend", s.db.backend.Name(),
	)
	return []T{}, nil
}

// Replace atomically overwrites the whole collection.
func (s *Store[T]) Replace(ctx context.Context, items []T) (err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, s.db.backend.Name(), s.name, tracing.StoreOperationReplace)
	start := s.db.timeNow()
	defer func() {
		endSpan(err)
		s.db.metrics.observe(s.name, OpReplace, statusOf(err), s.db.timeNow().Sub(start).Seconds())
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if items == nil {
		items = []T{}
	}
	return s.write(ctx, items)
}

// Update is WithExclusiveAccess for callers that need no result.
func (s *Store[T]) Update(ctx context.Context, fn func(current []T) ([]T, error)) error {
	_, err := WithExclusiveAccess(ctx, s, func(current []T) ([]T, struct{}, error) {
		updated, err := fn(current)
		return updated, struct{}{}, err
	})
	return err
}

// WithExclusiveAccess runs fn inside the collection's exclusive section: it
// loads the current collection, applies fn, persists the returned collection
// and returns fn's result.
//
// If fn returns an error nothing is written and the error is returned
// unchanged. If the write fails the error wraps ErrStorageUnavailable and
// the previous content stays in place. A ctx that is already done also
// yields ErrStorageUnavailable, still matching ctx.Err() under errors.Is.
// Once fn has started, cancellation of ctx no longer aborts the write.
func WithExclusiveAccess[T, R any](ctx context.Context, s *Store[T], fn func(current []T) ([]T, R, error)) (result R, err error) {
	var zero R
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("%w: %s: %w", apperrors.ErrStorageUnavailable, s.name, err)
	}

	ctx, endSpan := tracing.StartStoreSpan(ctx, s.db.backend.Name(), s.name, tracing.StoreOperationUpdate)
	start := s.db.timeNow()
	aborted := false
	defer func() {
		endSpan(err)
		status := statusOf(err)
		if aborted {
			status = StatusAborted
		}
		s.db.metrics.observe(s.name, OpUpdate, status, s.db.timeNow().Sub(start).Seconds())
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	current, raw, err := s.readForUpdate(ctx)
	if err != nil {
		return zero, err
	}

	updated, result, err := fn(current)
	if err != nil {
		aborted = true
		return zero, err
	}
	if updated == nil {
		updated = []T{}
	}

	writeCtx := context.WithoutCancel(ctx)
	if raw != nil {
		s.quarantine(writeCtx, raw)
	}
	if err := s.write(writeCtx, updated); err != nil {
		return zero, err
	}
	return result, nil
}

// read fetches and decodes the collection. found is false when the object is
// missing or undecodable; in both cases items is an empty slice.
func (s *Store[T]) read(ctx context.Context) (items []T, found bool, err error) {
	items, raw, err := s.decodeRead(ctx)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return []T{}, false, nil
		}
		return nil, false, err
	}
	if raw != nil {
		// Corrupt: report empty but leave the object alone for inspection.
		return []T{}, true, nil
	}
	return items, true, nil
}

// readForUpdate is read for the mutation path. It returns the raw payload
// when it could not be decoded so the caller can preserve it before
// overwriting.
func (s *Store[T]) readForUpdate(ctx context.Context) ([]T, []byte, error) {
	items, raw, err := s.decodeRead(ctx)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return []T{}, nil, nil
		}
		return nil, nil, err
	}
	if raw != nil {
		return []T{}, raw, nil
	}
	return items, nil, nil
}

// decodeRead returns ErrObjectNotFound unchanged, wraps every other backend
// failure as ErrStorageUnavailable, and on a decode failure returns the raw
// payload with a nil error.
func (s *Store[T]) decodeRead(ctx context.Context) ([]T, []byte, error) {
	data, err := s.db.backend.Read(ctx, s.name)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, nil, ErrObjectNotFound
		}
		s.db.logger.ErrorContext(ctx, "failed to read collection",
			"collection", s.name,
			"backend", s.db.backend.Name(),
			"error", err,
		)
		return nil, nil, fmt.Errorf("%w: read %s: %v", apperrors.ErrStorageUnavailable, s.name, err)
	}

	var items []T
	if err := s.db.codec.Unmarshal(data, &items); err != nil {
		s.db.metrics.incCorrupt(s.name)
		s.db.logger.WarnContext(ctx, "collection payload is corrupt, treating as empty",
			"collection", s.name,
			"backend", s.db.backend.Name(),
			"codec", s.db.codec.Name(),
			"size", len(data),
			"error", err,
		)
		return nil, data, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil, nil
}

func (s *Store[T]) write(ctx context.Context, items []T) error {
	data, err := s.db.codec.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", apperrors.ErrStorageUnavailable, s.name, err)
	}
	if err := s.db.backend.Write(ctx, s.name, data); err != nil {
		s.db.logger.ErrorContext(ctx, "failed to write collection",
			"collection", s.name,
			"backend", s.db.backend.Name(),
			"error", err,
		)
		return fmt.Errorf("%w: write %s: %v", apperrors.ErrStorageUnavailable, s.name, err)
	}
	s.db.metrics.setPayloadBytes(s.name, len(data))
	return nil
}

// quarantine copies an undecodable payload aside before the first mutation
// overwrites it. Best effort: failure is logged and the mutation proceeds.
func (s *Store[T]) quarantine(ctx context.Context, raw []byte) {
	name := s.name + ".corrupt-" + strconv.FormatInt(s.db.timeNow().UnixNano(), 10)
	if err := s.db.backend.Write(ctx, name, raw); err != nil {
		s.db.logger.ErrorContext(ctx, "failed to preserve corrupt collection payload",
			"collection", s.name,
			"error", err,
		)
		return
	}
	s.db.logger.WarnContext(ctx, "preserved corrupt collection payload before overwrite",
		"collection", s.name,
		"copy", name,
	)
}

func statusOf(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
