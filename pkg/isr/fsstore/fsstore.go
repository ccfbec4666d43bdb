// Package fsstore persists ISR cache entries as JSON files on disk, one
// file per path. It suits single-node deployments that want entries to
// survive restarts without running a database.
package fsstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/philjs-dev/philjs/pkg/isr"
)

const fileExt = ".json"

// Store is a filesystem-backed isr.Adapter. Cache keys are encoded into
// filenames with URL-safe base64, so any path is a valid filename and the
// original key can be recovered when listing.
type Store struct {
	dir string
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fsstore: creating %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Get implements isr.Adapter.
func (s *Store) Get(_ context.Context, key string) (*isr.Entry, error) {
	data, err := os.ReadFile(s.filename(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fsstore: reading %q: %w", key, err)
	}

	var entry isr.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("fsstore: decoding %q: %w", key, err)
	}
	return &entry, nil
}

// Set implements isr.Adapter. The entry is written to a temp file and
// renamed into place so readers never observe a partial write.
func (s *Store) Set(_ context.Context, key string, entry *isr.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("fsstore: encoding %q: %w", key, err)
	}

	target := s.filename(key)
	tmp, err := os.CreateTemp(s.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("fsstore: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("fsstore: writing %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("fsstore: closing %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("fsstore: renaming %q: %w", key, err)
	}
	return nil
}

// Delete implements isr.Adapter.
func (s *Store) Delete(_ context.Context, key string) error {
	err := os.Remove(s.filename(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fsstore: deleting %q: %w", key, err)
	}
	return nil
}

// Keys implements isr.Adapter.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	names, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("fsstore: listing %s: %w", s.dir, err)
	}

	var keys []string
	for _, de := range names {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileExt) {
			continue
		}
		encoded := strings.TrimSuffix(de.Name(), fileExt)
		raw, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			// Not one of ours (e.g. a leftover temp file renamed by hand).
			continue
		}
		keys = append(keys, string(raw))
	}
	return keys, nil
}

// GetMeta implements isr.Adapter.
func (s *Store) GetMeta(ctx context.Context, key string) (*isr.Meta, error) {
	entry, err := s.Get(ctx, key)
	if err != nil || entry == nil {
		return nil, err
	}
	meta := entry.Meta
	return &meta, nil
}

func (s *Store) filename(key string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+fileExt)
}

var _ isr.Adapter = (*Store)(nil)
