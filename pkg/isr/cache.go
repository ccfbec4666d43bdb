package isr

import (
	"context"
	"log/slog"
	"time"

	"github.com/philjs-dev/philjs/internal/errors"
)

// CacheManager is the path-keyed store of rendered pages. All persistence
// goes through the configured Adapter; the manager adds staleness logic,
// logging, and convenience lookups on top.
type CacheManager struct {
	adapter Adapter
	logger  *slog.Logger

	// nowFn is the clock; replaceable in tests.
	nowFn func() time.Time
}

// CacheOption configures a CacheManager.
type CacheOption func(*CacheManager)

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CacheManager) {
		c.logger = logger
	}
}

// WithCacheClock replaces the clock used for staleness checks. Tests use
// this to simulate elapsed time.
func WithCacheClock(nowFn func() time.Time) CacheOption {
	return func(c *CacheManager) {
		c.nowFn = nowFn
	}
}

// NewCacheManager creates a cache manager over the given adapter. A nil
// adapter defaults to an in-memory LRU adapter.
func NewCacheManager(adapter Adapter, opts ...CacheOption) *CacheManager {
	if adapter == nil {
		adapter = NewMemoryAdapter(0)
	}
	c := &CacheManager{
		adapter: adapter,
		logger:  slog.Default().With("component", "isr.cache"),
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Adapter returns the underlying storage adapter.
func (c *CacheManager) Adapter() Adapter {
	return c.adapter
}

// Get returns the entry for path, or nil if absent. When includeStale is
// false, entries past their revalidation interval are treated as absent;
// with includeStale true the stale entry is returned so callers can apply a
// stale-while-revalidate policy.
func (c *CacheManager) Get(ctx context.Context, path string, includeStale bool) (*Entry, error) {
	entry, err := c.adapter.Get(ctx, path)
	if err != nil {
		return nil, errors.FromError(err, "E101")
	}
	if entry == nil {
		return nil, nil
	}
	if !includeStale && c.IsStale(entry) {
		return nil, nil
	}
	return entry, nil
}

// GetWithStale returns the entry together with its staleness in a single
// lookup, so there is no window between checking staleness and using the
// entry.
func (c *CacheManager) GetWithStale(ctx context.Context, path string) (*Entry, bool, error) {
	entry, err := c.adapter.Get(ctx, path)
	if err != nil {
		return nil, false, errors.FromError(err, "E101")
	}
	if entry == nil {
		return nil, false, nil
	}
	return entry, c.IsStale(entry), nil
}

// Set stores entry under path, stamping the meta path.
func (c *CacheManager) Set(ctx context.Context, path string, entry *Entry) error {
	entry.Meta.Path = path
	if err := c.adapter.Set(ctx, path, entry); err != nil {
		return errors.FromError(err, "E102")
	}
	return nil
}

// Delete removes the entry for path.
func (c *CacheManager) Delete(ctx context.Context, path string) error {
	return c.adapter.Delete(ctx, path)
}

// Clear removes every entry.
func (c *CacheManager) Clear(ctx context.Context) error {
	keys, err := c.adapter.Keys(ctx)
	if err != nil {
		return errors.FromError(err, "E101")
	}
	for _, key := range keys {
		if err := c.adapter.Delete(ctx, key); err != nil {
			return errors.FromError(err, "E102")
		}
	}
	return nil
}

// Keys returns all cached paths.
func (c *CacheManager) Keys(ctx context.Context) ([]string, error) {
	return c.adapter.Keys(ctx)
}

// GetByTag scans adapter metadata for paths carrying tag. This is the
// fallback path when the TagManager's in-process registry is cold, for
// example right after a restart with a persistent adapter.
func (c *CacheManager) GetByTag(ctx context.Context, tag string) ([]string, error) {
	keys, err := c.adapter.Keys(ctx)
	if err != nil {
		return nil, errors.FromError(err, "E101")
	}

	var paths []string
	for _, key := range keys {
		meta, err := c.adapter.GetMeta(ctx, key)
		if err != nil {
			c.logger.Warn("meta scan failed", "path", key, "error", err)
			continue
		}
		if meta == nil {
			continue
		}
		for _, t := range meta.Tags {
			if t == tag {
				paths = append(paths, key)
				break
			}
		}
	}
	return paths, nil
}

// IsStale reports whether the entry's revalidation interval has elapsed.
// The comparison is strict: an entry exactly at the boundary is not stale.
func (c *CacheManager) IsStale(entry *Entry) bool {
	return c.nowFn().Sub(entry.Meta.RevalidatedAt) > entry.Meta.RevalidateInterval
}

// IsWithinSWRWindow reports whether the entry may still be served stale:
// elapsed time is at most the revalidation interval plus the SWR window.
func (c *CacheManager) IsWithinSWRWindow(entry *Entry, swr time.Duration) bool {
	return c.nowFn().Sub(entry.Meta.RevalidatedAt) <= entry.Meta.RevalidateInterval+swr
}

// now returns the manager's current time. Used by sibling managers so a
// simulated clock applies consistently across the subsystem.
func (c *CacheManager) now() time.Time {
	return c.nowFn()
}
