package isr

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/philjs-dev/philjs/internal/errors"
)

// Priority orders queued revalidation requests. Higher values run first.
type Priority int

const (
	// PriorityLow is used by the background staleness scanner.
	PriorityLow Priority = iota

	// PriorityNormal is used by request-triggered background revalidation.
	PriorityNormal

	// PriorityHigh is used by explicit API calls and retries.
	PriorityHigh
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// RenderFunc regenerates the HTML for a path. It is supplied by the hosting
// application; the ISR core has no opinion on its internals.
type RenderFunc func(ctx context.Context, path string, rctx map[string]any) (string, error)

// Request asks for a path to be revalidated.
type Request struct {
	// Path is the cache key to regenerate.
	Path string

	// Priority orders the request against others in the queue.
	Priority Priority

	// Force regenerates even if the current entry is still fresh.
	Force bool

	// Context is passed through to the render function.
	Context map[string]any

	// OnComplete, if set, is called with the outcome once the regeneration
	// finishes (nil on success). It is not called when the request is
	// skipped or coalesced into an existing one.
	OnComplete func(error)

	// seq breaks priority ties by insertion order.
	seq uint64
}

// RevalidatorConfig tunes the revalidation manager.
type RevalidatorConfig struct {
	// MaxConcurrent bounds simultaneous regenerations. Default: 2.
	MaxConcurrent int

	// MaxRetries bounds automatic retries after a render failure.
	// Default: 3.
	MaxRetries int

	// InitialDelay is the first retry delay. Default: 1s.
	InitialDelay time.Duration

	// MaxDelay caps the backoff. Default: 30s.
	MaxDelay time.Duration

	// BackoffMultiplier grows the delay per retry. Default: 2.
	BackoffMultiplier float64

	// DefaultInterval is the revalidation interval stamped on entries whose
	// path had no prior entry. Default: 60s.
	DefaultInterval time.Duration
}

// DefaultRevalidatorConfig returns a config with the documented defaults.
func DefaultRevalidatorConfig() RevalidatorConfig {
	return RevalidatorConfig{
		MaxConcurrent:     2,
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		DefaultInterval:   60 * time.Second,
	}
}

// withDefaults fills zero fields with defaults.
func (c RevalidatorConfig) withDefaults() RevalidatorConfig {
	d := DefaultRevalidatorConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = d.BackoffMultiplier
	}
	if c.DefaultInterval <= 0 {
		c.DefaultInterval = d.DefaultInterval
	}
	return c
}

// Revalidator regenerates stale cache entries in the background. Requests
// are queued per path (at most one queued or in-flight request per path)
// and executed by a bounded worker pool. Failed renders are retried with
// exponential backoff and jitter, up to MaxRetries.
//
// Per path, at most one regeneration is ever in flight: Revalidate drops
// requests for paths already processing, and the queue never dispatches a
// path while a worker still holds it. A request enqueued during that window
// waits until the worker finishes.
type Revalidator struct {
	cfg    RevalidatorConfig
	cache  *CacheManager
	tags   *TagManager
	render RenderFunc

	mu         sync.Mutex
	queue      map[string]*Request
	processing map[string]struct{}
	retries    map[string]int
	timers     map[string]*time.Timer
	seq        uint64
	stopped    bool

	wg sync.WaitGroup

	sink   EventSink
	logger *slog.Logger
}

// RevalidatorOption configures a Revalidator.
type RevalidatorOption func(*Revalidator)

// WithRevalidatorLogger sets the logger.
func WithRevalidatorLogger(logger *slog.Logger) RevalidatorOption {
	return func(r *Revalidator) {
		r.logger = logger
	}
}

// WithRevalidatorEventSink sets the sink receiving revalidate:* events.
func WithRevalidatorEventSink(sink EventSink) RevalidatorOption {
	return func(r *Revalidator) {
		r.sink = sink
	}
}

// NewRevalidator creates a revalidation manager. tags may be nil; when set,
// freshly regenerated entries are re-registered so the tag index follows
// entry tags across regenerations.
func NewRevalidator(cfg RevalidatorConfig, cache *CacheManager, tags *TagManager, render RenderFunc, opts ...RevalidatorOption) *Revalidator {
	r := &Revalidator{
		cfg:        cfg.withDefaults(),
		cache:      cache,
		tags:       tags,
		render:     render,
		queue:      make(map[string]*Request),
		processing: make(map[string]struct{}),
		retries:    make(map[string]int),
		timers:     make(map[string]*time.Timer),
		logger:     slog.Default().With("component", "isr.revalidator"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Revalidate queues a regeneration for req.Path and returns immediately;
// the work happens on a background goroutine. The call is a no-op when the
// path is already being processed, and, unless Force is set, when the
// current entry is still fresh. A queued request is replaced only by a
// higher-priority one.
func (r *Revalidator) Revalidate(ctx context.Context, req Request) error {
	if req.Path == "" {
		return errors.Newf(errors.CategoryRevalidate, "revalidate: empty path")
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return errors.New("E203")
	}
	if _, inFlight := r.processing[req.Path]; inFlight {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if !req.Force {
		entry, isStale, err := r.cache.GetWithStale(ctx, req.Path)
		if err != nil {
			return err
		}
		if entry != nil && !isStale && entry.Meta.Status != StatusError {
			return nil
		}
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return errors.New("E203")
	}
	if existing, queued := r.queue[req.Path]; queued {
		if req.Priority > existing.Priority {
			req.seq = existing.seq
			r.queue[req.Path] = &req
		}
		r.mu.Unlock()
		return nil
	}
	r.seq++
	req.seq = r.seq
	r.queue[req.Path] = &req
	r.mu.Unlock()

	r.processQueue()
	return nil
}

// processQueue starts workers for queued requests while capacity remains,
// highest priority first, insertion order within a priority.
func (r *Revalidator) processQueue() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for !r.stopped && len(r.processing) < r.cfg.MaxConcurrent && len(r.queue) > 0 {
		next := r.popLocked()
		if next == nil {
			return
		}
		r.processing[next.Path] = struct{}{}
		r.wg.Add(1)
		go r.work(next)
	}
}

// popLocked removes and returns the best queued request. Requests whose
// path is already in flight stay queued; the finishing worker's
// processQueue picks them up. Caller holds r.mu.
func (r *Revalidator) popLocked() *Request {
	var best *Request
	for _, req := range r.queue {
		if _, inFlight := r.processing[req.Path]; inFlight {
			continue
		}
		if best == nil ||
			req.Priority > best.Priority ||
			(req.Priority == best.Priority && req.seq < best.seq) {
			best = req
		}
	}
	if best != nil {
		delete(r.queue, best.Path)
	}
	return best
}

// work runs one regeneration to completion, then releases the path and
// drains any queued work.
func (r *Revalidator) work(req *Request) {
	defer r.wg.Done()

	err := r.revalidateNow(context.Background(), req.Path, req.Context)

	r.mu.Lock()
	delete(r.processing, req.Path)
	r.mu.Unlock()

	if req.OnComplete != nil {
		req.OnComplete(err)
	}

	r.processQueue()
}

// revalidateNow regenerates one path: marks the entry revalidating, invokes
// the render function, and writes the fresh entry preserving prior tags and
// interval. On failure the entry is marked with error status and a delayed
// retry is scheduled, bounded by MaxRetries.
func (r *Revalidator) revalidateNow(ctx context.Context, path string, rctx map[string]any) error {
	if r.render == nil {
		return errors.New("E401")
	}

	prev, _, err := r.cache.GetWithStale(ctx, path)
	if err != nil {
		r.logger.Warn("reading previous entry failed", "path", path, "error", err)
	}

	if prev != nil {
		marked := prev.Clone()
		marked.Meta.Status = StatusRevalidating
		if err := r.cache.Set(ctx, path, marked); err != nil {
			r.logger.Warn("marking entry revalidating failed", "path", path, "error", err)
		}
	}

	emit(r.sink, r.logger, Event{Type: EventRevalidateStart, Path: path})
	r.logger.Debug("revalidating", "path", path)

	html, renderErr := r.render(ctx, path, rctx)
	if renderErr != nil {
		r.recordFailure(ctx, path, prev, rctx, renderErr)
		return errors.New("E201").Wrap(renderErr)
	}

	now := r.cache.now()
	entry := &Entry{
		HTML: html,
		Meta: Meta{
			Path:               path,
			CreatedAt:          now,
			RevalidatedAt:      now,
			RevalidateInterval: r.cfg.DefaultInterval,
			Status:             StatusFresh,
			RegenerationCount:  1,
			ContentHash:        ContentHash(html),
		},
	}
	if prev != nil {
		entry.Meta.CreatedAt = prev.Meta.CreatedAt
		entry.Meta.Tags = append([]string(nil), prev.Meta.Tags...)
		entry.Meta.RevalidateInterval = prev.Meta.RevalidateInterval
		entry.Meta.RegenerationCount = prev.Meta.RegenerationCount + 1
		entry.Headers = prev.Headers
	}

	if err := r.cache.Set(ctx, path, entry); err != nil {
		r.recordFailure(ctx, path, prev, rctx, err)
		return err
	}

	if r.tags != nil && len(entry.Meta.Tags) > 0 {
		r.tags.RegisterPath(path, entry.Meta.Tags)
	}

	r.mu.Lock()
	delete(r.retries, path)
	r.mu.Unlock()

	emit(r.sink, r.logger, Event{Type: EventRevalidateSuccess, Path: path})
	r.logger.Info("revalidated", "path", path, "regenerations", entry.Meta.RegenerationCount)
	return nil
}

// recordFailure marks the entry with error status and schedules a retry if
// the budget allows.
func (r *Revalidator) recordFailure(ctx context.Context, path string, prev *Entry, rctx map[string]any, cause error) {
	if prev != nil {
		failed := prev.Clone()
		failed.Meta.Status = StatusError
		failed.Meta.ErrorMessage = cause.Error()
		if err := r.cache.Set(ctx, path, failed); err != nil {
			r.logger.Warn("marking entry errored failed", "path", path, "error", err)
		}
	} else {
		entry := &Entry{
			Meta: Meta{
				Path:               path,
				CreatedAt:          r.cache.now(),
				RevalidatedAt:      r.cache.now(),
				RevalidateInterval: r.cfg.DefaultInterval,
				Status:             StatusError,
				ErrorMessage:       cause.Error(),
			},
		}
		if err := r.cache.Set(ctx, path, entry); err != nil {
			r.logger.Warn("storing errored entry failed", "path", path, "error", err)
		}
	}

	emit(r.sink, r.logger, Event{Type: EventRevalidateError, Path: path, Error: cause.Error()})

	r.mu.Lock()
	r.retries[path]++
	retry := r.retries[path]
	stopped := r.stopped
	r.mu.Unlock()

	if stopped {
		return
	}

	if retry > r.cfg.MaxRetries {
		r.logger.Error("revalidation retries exhausted", "path", path, "retries", retry-1, "error", cause)
		return
	}

	delay := r.backoffDelay(retry)
	r.logger.Warn("revalidation failed, retrying", "path", path, "retry", retry, "delay", delay, "error", cause)

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.timers[path] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, path)
		r.mu.Unlock()

		err := r.Revalidate(context.Background(), Request{
			Path:     path,
			Priority: PriorityHigh,
			Force:    true,
			Context:  rctx,
		})
		if err != nil {
			r.logger.Warn("retry enqueue failed", "path", path, "error", err)
		}
	})
	r.mu.Unlock()
}

// backoffDelay computes the nth retry delay:
// min(initial * multiplier^(n-1), max) * (1 + U(0, 0.1)).
func (r *Revalidator) backoffDelay(retry int) time.Duration {
	base := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.BackoffMultiplier, float64(retry-1))
	if capped := float64(r.cfg.MaxDelay); base > capped {
		base = capped
	}
	jitter := 1 + rand.Float64()*0.1
	return time.Duration(base * jitter)
}

// Retries returns the current retry count for path.
func (r *Revalidator) Retries(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retries[path]
}

// InFlight reports whether path is currently being regenerated.
func (r *Revalidator) InFlight(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.processing[path]
	return ok
}

// QueueLen returns the number of queued (not yet started) requests.
func (r *Revalidator) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Stop drains the manager: pending retry timers are cancelled, queued work
// is dropped, and Stop blocks until in-flight regenerations finish. Further
// Revalidate calls fail.
func (r *Revalidator) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.wg.Wait()
		return
	}
	r.stopped = true
	for path, timer := range r.timers {
		timer.Stop()
		delete(r.timers, path)
	}
	r.queue = make(map[string]*Request)
	r.mu.Unlock()

	r.wg.Wait()
}
