package middleware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/philjs-dev/philjs/pkg/isr"
)

// ISRConfig configures the ISR page handler.
type ISRConfig struct {
	// SWRWindow is how long past staleness a stale entry may still be
	// served while a background regeneration runs. Default: 5m.
	SWRWindow time.Duration

	// RenderTimeout bounds the synchronous render on a cache miss.
	// Default: 10s.
	RenderTimeout time.Duration

	// Logger receives handler diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Sink receives cache:hit and cache:miss events. Optional.
	Sink isr.EventSink
}

// ISROption configures the ISR page handler.
type ISROption func(*ISRConfig)

// WithSWRWindow sets the stale-while-revalidate window.
func WithSWRWindow(d time.Duration) ISROption {
	return func(c *ISRConfig) {
		c.SWRWindow = d
	}
}

// WithRenderTimeout sets the synchronous render timeout.
func WithRenderTimeout(d time.Duration) ISROption {
	return func(c *ISRConfig) {
		c.RenderTimeout = d
	}
}

// WithISRLogger sets the handler logger.
func WithISRLogger(logger *slog.Logger) ISROption {
	return func(c *ISRConfig) {
		c.Logger = logger
	}
}

// WithISREventSink sets the sink for cache hit and miss events.
func WithISREventSink(sink isr.EventSink) ISROption {
	return func(c *ISRConfig) {
		c.Sink = sink
	}
}

func defaultISRConfig() ISRConfig {
	return ISRConfig{
		SWRWindow:     5 * time.Minute,
		RenderTimeout: 10 * time.Second,
	}
}

// ISRHandler serves pages from the ISR cache.
//
// Per request it picks one of three paths:
//   - fresh entry: serve it (X-Cache: HIT)
//   - stale entry inside the SWR window: serve the stale copy and enqueue a
//     background regeneration (X-Cache: STALE)
//   - miss or stale past the window: regenerate synchronously, then serve
//     (X-Cache: MISS); a render failure surfaces as 500
//
// Responses carry an ETag derived from the entry's content hash; a matching
// If-None-Match yields 304.
type ISRHandler struct {
	cache  *isr.CacheManager
	rev    *isr.Revalidator
	config ISRConfig
	logger *slog.Logger
}

// NewISR creates the page handler. It serves GET and HEAD; other methods
// get 405 unless the handler is mounted via Wrap.
func NewISR(cache *isr.CacheManager, rev *isr.Revalidator, opts ...ISROption) *ISRHandler {
	config := defaultISRConfig()
	for _, opt := range opts {
		opt(&config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ISRHandler{
		cache:  cache,
		rev:    rev,
		config: config,
		logger: logger.With("component", "isr-handler"),
	}
}

// Wrap returns a handler that delegates non-GET/HEAD requests to next and
// serves the rest through the ISR cache.
func (h *ISRHandler) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (h *ISRHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.URL.RequestURI()
	entry, stale, err := h.cache.GetWithStale(r.Context(), path)
	if err != nil {
		h.logger.Error("cache read failed", "path", path, "error", err)
		http.Error(w, "cache unavailable", http.StatusInternalServerError)
		return
	}

	if entry != nil && !stale {
		h.emit(isr.Event{Type: isr.EventCacheHit, Path: path, Time: time.Now()})
		h.serve(w, r, entry, "HIT")
		return
	}

	if entry != nil && h.cache.IsWithinSWRWindow(entry, h.config.SWRWindow) {
		h.emit(isr.Event{Type: isr.EventCacheHit, Path: path, Stale: true, Time: time.Now()})
		// The request context dies with this response; the regeneration
		// must outlive it.
		bg := context.WithoutCancel(r.Context())
		if err := h.rev.Revalidate(bg, isr.Request{Path: path, Priority: isr.PriorityNormal}); err != nil {
			h.logger.Warn("background revalidation rejected", "path", path, "error", err)
		}
		h.serve(w, r, entry, "STALE")
		return
	}

	// Miss, or stale beyond the window: the client waits for a render.
	h.emit(isr.Event{Type: isr.EventCacheMiss, Path: path, Time: time.Now()})
	h.renderAndServe(w, r, path)
}

// renderAndServe regenerates path synchronously and serves the result.
func (h *ISRHandler) renderAndServe(w http.ResponseWriter, r *http.Request, path string) {
	done := make(chan error, 1)
	err := h.rev.Revalidate(r.Context(), isr.Request{
		Path:     path,
		Priority: isr.PriorityHigh,
		Force:    true,
		OnComplete: func(err error) {
			done <- err
		},
	})
	if err != nil {
		h.logger.Error("revalidation rejected", "path", path, "error", err)
		http.Error(w, "revalidation unavailable", http.StatusInternalServerError)
		return
	}

	// If the path was already being regenerated the request coalesced and
	// OnComplete will not fire, so poll the cache as a second signal.
	timeout := time.NewTimer(h.config.RenderTimeout)
	defer timeout.Stop()
	poll := time.NewTicker(25 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				h.logger.Error("render failed", "path", path, "error", err)
				http.Error(w, "render failed", http.StatusInternalServerError)
				return
			}
			h.serveCurrent(w, r, path)
			return
		case <-poll.C:
			entry, stale, err := h.cache.GetWithStale(r.Context(), path)
			if err == nil && entry != nil && !stale && entry.Meta.Status == isr.StatusFresh {
				h.serve(w, r, entry, "MISS")
				return
			}
		case <-timeout.C:
			h.logger.Error("render timed out", "path", path)
			http.Error(w, "render timed out", http.StatusGatewayTimeout)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *ISRHandler) serveCurrent(w http.ResponseWriter, r *http.Request, path string) {
	entry, _, err := h.cache.GetWithStale(r.Context(), path)
	if err != nil || entry == nil {
		h.logger.Error("entry missing after render", "path", path, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	h.serve(w, r, entry, "MISS")
}

func (h *ISRHandler) serve(w http.ResponseWriter, r *http.Request, entry *isr.Entry, cacheStatus string) {
	etag := `"` + entry.Meta.ContentHash + `"`
	header := w.Header()
	header.Set("ETag", etag)
	header.Set("X-Cache", cacheStatus)
	header.Set("Cache-Control", fmt.Sprintf("s-maxage=%d, stale-while-revalidate=%d",
		int(entry.Meta.RevalidateInterval.Seconds()), int(h.config.SWRWindow.Seconds())))

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	for k, v := range entry.Headers {
		header.Set(k, v)
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "text/html; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		if _, err := io.WriteString(w, entry.HTML); err != nil {
			h.logger.Debug("write response", "path", entry.Meta.Path, "error", err)
		}
	}
}

func (h *ISRHandler) emit(ev isr.Event) {
	if h.config.Sink == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("event sink panicked", "event", string(ev.Type), "panic", rec)
		}
	}()
	h.config.Sink(ev)
}
