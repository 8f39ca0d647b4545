package collection

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend stores each collection as a single file in a directory.
// Writes go to a temporary file in the same directory which is fsynced and
// then renamed over the target, so readers never observe a partial file.
type FileBackend struct {
	dir string
	ext string
}

// NewFileBackend creates the directory if needed and returns a backend that
// stores collection name as <dir>/<name><ext>.
func NewFileBackend(dir, ext string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &FileBackend{dir: dir, ext: ext}, nil
}

// Name implements Backend.
func (b *FileBackend) Name() string { return "file" }

// Path returns the file path used for a collection.
func (b *FileBackend) Path(name string) string {
	return filepath.Join(b.dir, name+b.ext)
}

// Read implements Backend.
func (b *FileBackend) Read(_ context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write implements Backend.
func (b *FileBackend) Write(_ context.Context, name string, data []byte) (err error) {
	if err := ValidateName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err = os.Rename(tmpPath, b.Path(name)); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	// Persist the rename itself. Not every platform supports syncing a
	// directory, so failure here is ignored.
	if d, derr := os.Open(b.dir); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Ping implements Backend.
func (b *FileBackend) Ping(context.Context) error {
	info, err := os.Stat(b.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", b.dir)
	}
	return nil
}
