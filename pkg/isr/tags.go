package isr

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

// TagManager maintains a bidirectional index between invalidation tags and
// cached paths. The two maps (tag→paths and path→tags) are only ever
// updated together, through RegisterPath and UnregisterPath, which keeps
// them consistent.
type TagManager struct {
	mu sync.Mutex

	// tagToPaths indexes cached paths by tag.
	tagToPaths map[string]*tagEntry

	// pathToTags is the reverse mapping, in registration order.
	pathToTags map[string][]string

	cache  *CacheManager
	sink   EventSink
	logger *slog.Logger
}

// tagEntry is the per-tag bookkeeping record.
type tagEntry struct {
	paths             map[string]struct{}
	lastInvalidatedAt time.Time
	invalidationCount int
}

// TagOption configures a TagManager.
type TagOption func(*TagManager)

// WithTagLogger sets the logger.
func WithTagLogger(logger *slog.Logger) TagOption {
	return func(t *TagManager) {
		t.logger = logger
	}
}

// WithTagEventSink sets the sink receiving tag:invalidate events.
func WithTagEventSink(sink EventSink) TagOption {
	return func(t *TagManager) {
		t.sink = sink
	}
}

// NewTagManager creates a tag manager bound to the given cache.
func NewTagManager(cache *CacheManager, opts ...TagOption) *TagManager {
	t := &TagManager{
		tagToPaths: make(map[string]*tagEntry),
		pathToTags: make(map[string][]string),
		cache:      cache,
		logger:     slog.Default().With("component", "isr.tags"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RegisterPath records that path carries exactly tags. Tags the path no
// longer carries are removed from the index (pruning tag entries that
// become empty); new tags gain the path.
func (t *TagManager) RegisterPath(path string, tags []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	previous := t.pathToTags[path]

	next := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		next[tag] = struct{}{}
	}

	for _, tag := range previous {
		if _, keep := next[tag]; !keep {
			t.removeMembership(tag, path)
		}
	}

	prev := make(map[string]struct{}, len(previous))
	for _, tag := range previous {
		prev[tag] = struct{}{}
	}
	for _, tag := range tags {
		if _, had := prev[tag]; !had {
			entry := t.tagToPaths[tag]
			if entry == nil {
				entry = &tagEntry{paths: make(map[string]struct{})}
				t.tagToPaths[tag] = entry
			}
			entry.paths[path] = struct{}{}
		}
	}

	if len(tags) == 0 {
		delete(t.pathToTags, path)
	} else {
		t.pathToTags[path] = append([]string(nil), tags...)
	}
}

// UnregisterPath removes path from every tag it carries.
func (t *TagManager) UnregisterPath(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tag := range t.pathToTags[path] {
		t.removeMembership(tag, path)
	}
	delete(t.pathToTags, path)
}

// removeMembership drops path from tag's set, pruning empty tag entries.
// Caller holds t.mu.
func (t *TagManager) removeMembership(tag, path string) {
	entry := t.tagToPaths[tag]
	if entry == nil {
		return
	}
	delete(entry.paths, path)
	if len(entry.paths) == 0 {
		delete(t.tagToPaths, tag)
	}
}

// TagsForPath returns the tags registered for path, in registration order.
func (t *TagManager) TagsForPath(path string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.pathToTags[path]...)
}

// PathsForTag returns the locally registered paths carrying tag.
func (t *TagManager) PathsForTag(tag string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.tagToPaths[tag]
	if entry == nil {
		return nil
	}
	paths := make([]string, 0, len(entry.paths))
	for path := range entry.paths {
		paths = append(paths, path)
	}
	return paths
}

// Tags returns all known tag names.
func (t *TagManager) Tags() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	tags := make([]string, 0, len(t.tagToPaths))
	for tag := range t.tagToPaths {
		tags = append(tags, tag)
	}
	return tags
}

// PathError records a single failed deletion inside a best-effort batch.
type PathError struct {
	Path string
	Err  error
}

// InvalidateResult reports the outcome of a tag invalidation.
type InvalidateResult struct {
	// Tag is the invalidated tag.
	Tag string

	// Paths are all paths that were targeted for deletion.
	Paths []string

	// Errors holds per-path deletion failures. Deletion is best-effort:
	// one failing path does not abort the rest of the batch.
	Errors []PathError

	// Success is true when every deletion succeeded.
	Success bool
}

// InvalidateTag deletes every cached path carrying tag. The local registry
// is merged with an adapter-level metadata scan, so paths survive a restart
// that wiped the in-process index. Per-path deletion errors are collected,
// not fatal.
func (t *TagManager) InvalidateTag(ctx context.Context, tag string) (*InvalidateResult, error) {
	local := t.PathsForTag(tag)

	scanned, err := t.cache.GetByTag(ctx, tag)
	if err != nil {
		t.logger.Warn("adapter tag scan failed, using local registry only", "tag", tag, "error", err)
	}

	seen := make(map[string]struct{}, len(local)+len(scanned))
	paths := make([]string, 0, len(local)+len(scanned))
	for _, lists := range [][]string{local, scanned} {
		for _, path := range lists {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			paths = append(paths, path)
		}
	}

	result := &InvalidateResult{Tag: tag, Paths: paths}

	for _, path := range paths {
		if err := t.cache.Delete(ctx, path); err != nil {
			result.Errors = append(result.Errors, PathError{Path: path, Err: err})
			continue
		}
		t.UnregisterPath(path)
	}
	result.Success = len(result.Errors) == 0

	t.mu.Lock()
	entry := t.tagToPaths[tag]
	if entry != nil {
		entry.lastInvalidatedAt = t.cache.now()
		entry.invalidationCount++
	}
	t.mu.Unlock()

	emit(t.sink, t.logger, Event{
		Type:  EventTagInvalidate,
		Tag:   tag,
		Paths: paths,
	})

	t.logger.Info("tag invalidated", "tag", tag, "paths", len(paths), "errors", len(result.Errors))
	return result, nil
}

// InvalidateTagPattern invalidates every tag matching a *-wildcard pattern.
// Matching tags are invalidated sequentially.
func (t *TagManager) InvalidateTagPattern(ctx context.Context, pattern string) ([]*InvalidateResult, error) {
	re, err := globToRegexp(pattern)
	if err != nil {
		return nil, err
	}

	var results []*InvalidateResult
	for _, tag := range t.Tags() {
		if !re.MatchString(tag) {
			continue
		}
		result, err := t.InvalidateTag(ctx, tag)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// globToRegexp translates a *-wildcard pattern into an anchored regexp.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for i, part := range strings.Split(pattern, "*") {
		if i > 0 {
			sb.WriteString(".*")
		}
		sb.WriteString(regexp.QuoteMeta(part))
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
