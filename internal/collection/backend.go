// Package collection provides named, durably persisted collections of
// serialisable records with an atomic whole-collection replace and a
// per-collection exclusive read-modify-write primitive.
package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrObjectNotFound is returned by a Backend when no object exists for a name.
var ErrObjectNotFound = errors.New("collection object not found")

// ErrInvalidName is returned when a collection name cannot be used as a key.
var ErrInvalidName = errors.New("invalid collection name")

// Backend is the durable byte store that holds one object per collection.
//
// Write must be atomic: after a crash a subsequent Read returns either the
// previous payload or the new one in full.
type Backend interface {
	// Name identifies the backend kind in logs, spans and metrics.
	Name() string

	// Read returns the stored payload, or ErrObjectNotFound.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write replaces the stored payload.
	Write(ctx context.Context, name string, data []byte) error

	// Ping verifies the medium is reachable.
	Ping(ctx context.Context) error
}

// ValidateName checks that name is usable as an object key on every backend.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// MemoryBackend keeps payloads in process memory.
// Used for tests and the "memory" storage mode. Thread-safe via RWMutex.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string][]byte)}
}

// Name implements Backend.
func (b *MemoryBackend) Name() string { return "memory" }

// Read implements Backend.
func (b *MemoryBackend) Read(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.objects[name]
	if !ok {
		return nil, ErrObjectNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write implements Backend.
func (b *MemoryBackend) Write(_ context.Context, name string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)

	b.mu.Lock()
	b.objects[name] = stored
	b.mu.Unlock()
	return nil
}

// Ping implements Backend.
func (b *MemoryBackend) Ping(context.Context) error { return nil }

// Names returns the stored object names. Order is unspecified.
func (b *MemoryBackend) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.objects))
	for name := range b.objects {
		names = append(names, name)
	}
	return names
}
