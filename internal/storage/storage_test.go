package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/onnwee/travelog/internal/collection"
	"github.com/onnwee/travelog/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), &config.Config{StorageBackend: config.BackendMemory, StorageCodec: "json"}, discardLogger(), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if s.Backend.Name() != "memory" {
		t.Errorf("backend = %s, want memory", s.Backend.Name())
	}
	if len(s.Checks) != 1 || s.Checks[0].Name != "storage" || !s.Checks[0].Critical {
		t.Errorf("unexpected checks: %+v", s.Checks)
	}
}

func TestOpen_FileUsesCodecExtension(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{StorageBackend: config.BackendFile, StorageCodec: "cbor", DataDir: dir}

	s, err := Open(context.Background(), cfg, discardLogger(), collection.NewMetrics())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	store := collection.Open[string](s.DB, "notes")
	if err := store.Replace(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.cbor")); err != nil {
		t.Errorf("expected notes.cbor on disk: %v", err)
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"unknown backend", config.Config{StorageBackend: "floppy", StorageCodec: "json"}},
		{"unknown codec", config.Config{StorageBackend: config.BackendMemory, StorageCodec: "xml"}},
		{"file without dir", config.Config{StorageBackend: config.BackendFile, StorageCodec: "json"}},
		{"s3 without bucket", config.Config{StorageBackend: config.BackendS3, StorageCodec: "json"}},
		{"redis with bad url", config.Config{StorageBackend: config.BackendRedis, StorageCodec: "json", RedisURL: "http://not-redis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(context.Background(), &tt.cfg, discardLogger(), nil); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestOpen_UnknownBackendWrapsConfigError(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StorageBackend: "floppy", StorageCodec: "json"}, discardLogger(), nil)
	if !errors.Is(err, config.ErrInvalidStorageBackend) {
		t.Errorf("expected ErrInvalidStorageBackend, got %v", err)
	}
}
