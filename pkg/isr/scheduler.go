package isr

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler periodically scans the cache for stale entries and hands them
// to the Revalidator at low priority. It decouples "time passes" triggers
// from the "request arrives" triggers handled by the HTTP middleware.
type Scheduler struct {
	interval    time.Duration
	cache       *CacheManager
	revalidator *Revalidator
	logger      *slog.Logger

	// watched restricts the scan to a subset of paths when non-empty.
	watched   map[string]struct{}
	watchedMu sync.Mutex

	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	mu      sync.Mutex
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a scheduler scanning every interval. interval <= 0
// defaults to 60s.
func NewScheduler(interval time.Duration, cache *CacheManager, revalidator *Revalidator, opts ...SchedulerOption) *Scheduler {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	s := &Scheduler{
		interval:    interval,
		cache:       cache,
		revalidator: revalidator,
		watched:     make(map[string]struct{}),
		logger:      slog.Default().With("component", "isr.scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch restricts scans to the given paths. Without any Watch call, every
// cached path is scanned.
func (s *Scheduler) Watch(paths ...string) {
	s.watchedMu.Lock()
	defer s.watchedMu.Unlock()
	for _, path := range paths {
		s.watched[path] = struct{}{}
	}
}

// Start launches the scan loop. It returns immediately; Stop (or cancelling
// ctx) ends the loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.scan(ctx)
			}
		}
	}()
}

// Stop ends the scan loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// scan walks cache keys once and enqueues every stale entry.
func (s *Scheduler) scan(ctx context.Context) {
	keys, err := s.cache.Keys(ctx)
	if err != nil {
		s.logger.Warn("staleness scan failed", "error", err)
		return
	}

	s.watchedMu.Lock()
	restricted := len(s.watched) > 0
	watched := make(map[string]struct{}, len(s.watched))
	for path := range s.watched {
		watched[path] = struct{}{}
	}
	s.watchedMu.Unlock()

	enqueued := 0
	for _, path := range keys {
		if restricted {
			if _, ok := watched[path]; !ok {
				continue
			}
		}

		entry, isStale, err := s.cache.GetWithStale(ctx, path)
		if err != nil || entry == nil || !isStale {
			continue
		}

		err = s.revalidator.Revalidate(ctx, Request{
			Path:     path,
			Priority: PriorityLow,
		})
		if err != nil {
			s.logger.Warn("enqueue from scan failed", "path", path, "error", err)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		s.logger.Debug("staleness scan complete", "scanned", len(keys), "enqueued", enqueued)
	}
}
