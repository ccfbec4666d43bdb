package isr

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryMaxEntries bounds the in-memory adapter when no size is
// given. Rendered pages are small; a few thousand entries is plenty for a
// single process.
const DefaultMemoryMaxEntries = 4096

// MemoryAdapter stores entries in process memory with LRU eviction. It is
// the default adapter and the one tests use.
//
// Entries are cloned on Set and Get so callers can never mutate cached
// state through a shared pointer.
type MemoryAdapter struct {
	entries *lru.Cache[string, *Entry]
}

// NewMemoryAdapter creates a memory adapter holding at most maxEntries
// entries. maxEntries <= 0 uses DefaultMemoryMaxEntries.
func NewMemoryAdapter(maxEntries int) *MemoryAdapter {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryMaxEntries
	}
	// lru.New only fails for a non-positive size, which is excluded above.
	entries, err := lru.New[string, *Entry](maxEntries)
	if err != nil {
		panic(err)
	}
	return &MemoryAdapter{entries: entries}
}

// Get implements Adapter.
func (m *MemoryAdapter) Get(_ context.Context, key string) (*Entry, error) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return nil, nil
	}
	return entry.Clone(), nil
}

// Set implements Adapter.
func (m *MemoryAdapter) Set(_ context.Context, key string, entry *Entry) error {
	m.entries.Add(key, entry.Clone())
	return nil
}

// Delete implements Adapter.
func (m *MemoryAdapter) Delete(_ context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

// Keys implements Adapter. Keys are returned in LRU order (oldest first).
func (m *MemoryAdapter) Keys(_ context.Context) ([]string, error) {
	return m.entries.Keys(), nil
}

// GetMeta implements Adapter.
func (m *MemoryAdapter) GetMeta(_ context.Context, key string) (*Meta, error) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return nil, nil
	}
	meta := entry.Meta
	meta.Tags = append([]string(nil), entry.Meta.Tags...)
	return &meta, nil
}

// Len returns the number of cached entries.
func (m *MemoryAdapter) Len() int {
	return m.entries.Len()
}

var _ Adapter = (*MemoryAdapter)(nil)
