package state

import (
	"context"
	"sync"
)

// Backend is the durable storage boundary beneath the in-memory façade. The
// store assumes nothing about the persistence technology, only eventual
// durability of committed writes. Load returns (nil, nil) for absent keys.
type Backend interface {
	Load(ctx context.Context, key string) (*Entry, error)
	Save(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// MemoryBackend is a trivial process-local Backend useful for tests,
// examples and single-process prototypes. Entries are copied on save and
// load to avoid accidental external mutation.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]Entry)}
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context, key string) (*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.entries[key]
	if !ok {
		return nil, nil
	}
	cp := entry
	cp.Permissions = entry.Permissions.clone()
	return &cp, nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(_ context.Context, key string, entry *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *entry
	cp.Permissions = entry.Permissions.clone()
	b.entries[key] = cp
	return nil
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}

// Keys implements Backend.
func (b *MemoryBackend) Keys(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	return keys, nil
}
