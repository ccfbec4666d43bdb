package reactive

import (
	"sync"
	"sync/atomic"
)

// Effect is a reactive side effect. It runs once when created and re-runs
// whenever a signal or memo it read during its last execution changes.
//
// The effect body may return a Cleanup, which runs before the next execution
// and when the effect is disposed. A disposed effect silently ignores
// further dependency changes.
type Effect struct {
	id uint64

	fn func() Cleanup

	// cleanup from the previous run, if any.
	cleanup Cleanup

	// runMu serializes executions so cleanup/run pairs never interleave.
	runMu sync.Mutex

	sources   []*signalBase
	sourcesMu sync.Mutex

	disposed atomic.Bool
}

// NewEffect creates an effect and runs it immediately. If there is a current
// Owner, the effect is registered with it and disposed when the owner is.
func NewEffect(fn func() Cleanup) *Effect {
	e := &Effect{
		id: nextID(),
		fn: fn,
	}

	if owner := getCurrentOwner(); owner != nil {
		owner.registerEffect(e)
	}

	e.run()
	return e
}

// MarkDirty re-runs the effect. Implements Listener. No-op once disposed.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() {
		return
	}
	e.run()
}

// ID returns the unique identifier for this effect. Implements Listener.
func (e *Effect) ID() uint64 {
	return e.id
}

// Dispose runs the pending cleanup and detaches the effect from every signal
// it subscribed to. Safe to call more than once.
func (e *Effect) Dispose() {
	if e.disposed.Swap(true) {
		return
	}

	e.runMu.Lock()
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
	e.runMu.Unlock()

	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = nil
	e.sourcesMu.Unlock()
}

// run executes the effect body with dependency tracking enabled.
func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	// Rebuild the dependency set from scratch on every run.
	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = e.sources[:0]
	e.sourcesMu.Unlock()

	old := setCurrentListener(e)
	e.cleanup = e.fn()
	setCurrentListener(old)
}

// addSource records a dependency read during execution.
func (e *Effect) addSource(source *signalBase) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, s := range e.sources {
		if s == source {
			return
		}
	}
	e.sources = append(e.sources, source)
}

var _ sourceTracker = (*Effect)(nil)
