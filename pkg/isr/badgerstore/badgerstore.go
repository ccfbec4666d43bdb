// Package badgerstore persists ISR cache entries in an embedded BadgerDB
// database. It suits single-node deployments that need the cache to survive
// restarts without an external service.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/philjs-dev/philjs/pkg/isr"
)

const (
	entryPrefix = "entry:"
	metaPrefix  = "meta:"
)

// Config controls how the underlying BadgerDB instance is opened.
type Config struct {
	// Path is the directory for database files. Created if missing.
	// Required unless InMemory is true.
	Path string

	// InMemory keeps all data in memory. Useful for tests.
	InMemory bool

	// SyncWrites forces an fsync on every write. Slower but durable.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger

	// GCInterval is how often value-log garbage collection runs.
	// Zero disables the GC loop.
	GCInterval time.Duration
}

// DefaultConfig returns a persistent configuration with GC enabled.
// Path must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		SyncWrites: false,
		GCInterval: 5 * time.Minute,
	}
}

// InMemoryConfig returns a configuration for throwaway in-memory stores.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store is an isr.Adapter backed by BadgerDB. Entries and their metadata
// are stored under separate keys so GetMeta avoids loading page HTML.
type Store struct {
	db     *badger.DB
	gcStop chan struct{}
}

// badgerLogger adapts slog to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens a store with the given configuration.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("badgerstore: path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open database: %w", err)
	}

	s := &Store{db: db}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		s.gcStop = make(chan struct{})
		go s.runGC(cfg.GCInterval)
	}
	return s, nil
}

// OpenPath opens a persistent store at path with default settings.
func OpenPath(path string) (*Store, error) {
	cfg := DefaultConfig()
	cfg.Path = path
	return Open(cfg)
}

func (s *Store) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// Badger asks callers to rerun GC while it reclaims space.
			for s.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}

// Get returns the entry for key, or (nil, nil) when absent.
func (s *Store) Get(_ context.Context, key string) (*isr.Entry, error) {
	var entry *isr.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(entryPrefix + key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var e isr.Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("decode entry %q: %w", key, err)
			}
			entry = &e
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: get %q: %w", key, err)
	}
	return entry, nil
}

// Set writes the entry and its metadata in a single transaction.
func (s *Store) Set(_ context.Context, key string, entry *isr.Entry) error {
	entryData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("badgerstore: encode entry %q: %w", key, err)
	}
	metaData, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("badgerstore: encode meta %q: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(entryPrefix+key), entryData); err != nil {
			return err
		}
		return txn.Set([]byte(metaPrefix+key), metaData)
	})
	if err != nil {
		return fmt.Errorf("badgerstore: set %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry and its metadata. Deleting a missing key is not
// an error.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(entryPrefix + key)); err != nil {
			return err
		}
		return txn.Delete([]byte(metaPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("badgerstore: delete %q: %w", key, err)
	}
	return nil
}

// Keys lists every cached path.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := string(it.Item().Key())
			keys = append(keys, strings.TrimPrefix(k, entryPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list keys: %w", err)
	}
	return keys, nil
}

// GetMeta returns only the metadata for key, or (nil, nil) when absent.
// It reads the dedicated meta key, skipping the HTML payload entirely.
func (s *Store) GetMeta(_ context.Context, key string) (*isr.Meta, error) {
	var meta *isr.Meta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaPrefix + key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var m isr.Meta
			if err := json.Unmarshal(val, &m); err != nil {
				return fmt.Errorf("decode meta %q: %w", key, err)
			}
			meta = &m
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: get meta %q: %w", key, err)
	}
	return meta, nil
}

// Close stops the GC loop and closes the database.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
	}
	return s.db.Close()
}
