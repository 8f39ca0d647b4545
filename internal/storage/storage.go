// Package storage builds the collection database selected by configuration
// and the health checks for the medium behind it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/travelog/internal/collection"
	"github.com/onnwee/travelog/internal/config"
	"github.com/onnwee/travelog/internal/health"
)

// Storage is an opened collection database plus whatever must be closed on
// shutdown.
type Storage struct {
	DB      *collection.DB
	Backend collection.Backend
	Checks  []health.Check

	closers []func() error
}

// Close releases backend connections.
func (s *Storage) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open creates the backend named by cfg.StorageBackend with the configured
// codec. Postgres gets its table created; remote backends are pinged once so
// misconfiguration surfaces at startup.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *collection.Metrics) (*Storage, error) {
	codec, err := collection.CodecByName(cfg.StorageCodec)
	if err != nil {
		return nil, err
	}

	s := &Storage{}
	switch cfg.StorageBackend {
	case config.BackendMemory:
		s.Backend = collection.NewMemoryBackend()

	case config.BackendFile:
		fb, err := collection.NewFileBackend(cfg.DataDir, "."+codec.Name())
		if err != nil {
			return nil, err
		}
		s.Backend = fb

	case config.BackendS3:
		sb, err := collection.NewS3Backend(collection.S3Config{
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Prefix:          cfg.S3Prefix,
			ContentType:     codec.ContentType(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 backend: %w", err)
		}
		s.Backend = sb

	case config.BackendRedis:
		rb, err := collection.NewRedisBackendFromURL(cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		s.Backend = rb
		s.closers = append(s.closers, rb.Close)
		s.Checks = append(s.Checks, health.Check{Name: "redis", Checker: health.NewRedisChecker(rb.Client()), Critical: true})

	case config.BackendPostgres:
		db, err := collection.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pb := collection.NewPostgresBackend(db)
		s.closers = append(s.closers, db.Close)

		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = pb.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.Backend = pb
		s.Checks = append(s.Checks, health.Check{Name: "database", Checker: health.NewDBChecker(db), Critical: true})

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStorageBackend, cfg.StorageBackend)
	}

	s.DB = collection.NewDB(s.Backend,
		collection.WithCodec(codec),
		collection.WithLogger(logger),
		collection.WithMetrics(metrics),
	)
	s.Checks = append(s.Checks, health.Check{Name: "storage", Checker: health.NewStorageChecker(s.DB), Critical: true})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.DB.Ping(pingCtx); err != nil {
		logger.Warn("storage backend not reachable at startup", "backend", s.Backend.Name(), "error", err)
	}

	logger.Info("storage opened", "backend", s.Backend.Name(), "codec", codec.Name())
	return s, nil
}
