package isr

import (
	"log/slog"
	"time"
)

// EventType identifies a lifecycle event.
type EventType string

const (
	EventCacheHit          EventType = "cache:hit"
	EventCacheMiss         EventType = "cache:miss"
	EventRevalidateStart   EventType = "revalidate:start"
	EventRevalidateSuccess EventType = "revalidate:success"
	EventRevalidateError   EventType = "revalidate:error"
	EventTagInvalidate     EventType = "tag:invalidate"
)

// Event is a typed lifecycle notification. Events are purely observational:
// they carry no control-flow significance for the core.
type Event struct {
	Type EventType `json:"type"`

	// Path is set for cache and revalidation events.
	Path string `json:"path,omitempty"`

	// Tag is set for tag:invalidate events.
	Tag string `json:"tag,omitempty"`

	// Error is the failure message for revalidate:error events.
	Error string `json:"error,omitempty"`

	// Stale marks cache:hit events that served stale content.
	Stale bool `json:"stale,omitempty"`

	// Paths lists the affected paths for tag:invalidate events.
	Paths []string `json:"paths,omitempty"`

	// Time is when the event was emitted.
	Time time.Time `json:"time"`
}

// EventSink receives lifecycle events. Sinks must not block; errors (panics)
// inside a sink are caught and logged, never propagated to the operation
// that emitted the event.
type EventSink func(Event)

// CombineSinks fans events out to several sinks. Nil sinks are skipped.
func CombineSinks(sinks ...EventSink) EventSink {
	active := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(ev Event) {
		for _, s := range active {
			s(ev)
		}
	}
}

// emit delivers ev to sink, shielding the caller from sink panics.
func emit(sink EventSink, logger *slog.Logger, ev Event) {
	if sink == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("event sink panicked", "event", string(ev.Type), "panic", r)
			}
		}
	}()
	sink(ev)
}
