package isr

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeClock is an adjustable clock for staleness tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// eventRecorder collects emitted events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) sink() EventSink {
	return func(ev Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	}
}

func (r *eventRecorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// testEntry builds a fresh entry revalidated at the clock's current time.
func testEntry(clock *fakeClock, path string, interval time.Duration, tags ...string) *Entry {
	html := "<html>" + path + "</html>"
	return &Entry{
		HTML: html,
		Meta: Meta{
			Path:               path,
			CreatedAt:          clock.Now(),
			RevalidatedAt:      clock.Now(),
			RevalidateInterval: interval,
			Tags:               tags,
			Status:             StatusFresh,
			ContentHash:        ContentHash(html),
		},
	}
}

// failingAdapter wraps another adapter and fails deletes for chosen keys.
type failingAdapter struct {
	Adapter
	failDelete map[string]bool
}

func (f *failingAdapter) Delete(ctx context.Context, key string) error {
	if f.failDelete[key] {
		return errors.New("simulated delete failure")
	}
	return f.Adapter.Delete(ctx, key)
}
