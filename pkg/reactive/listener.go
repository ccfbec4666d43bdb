package reactive

import "sync/atomic"

// Listener is anything that can be notified when a dependency changes.
// Memos and effects implement it; application code can too, for example to
// drive a render loop from signal changes.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	// For memos this invalidates the cached value; for effects it triggers
	// a re-run.
	MarkDirty()

	// ID returns a unique identifier for this listener, used to deduplicate
	// notifications during batch processing.
	ID() uint64
}

// Cleanup is a function returned by an effect body to release resources.
// It runs before the effect re-runs and when the effect is disposed.
type Cleanup func()

// globalIDCounter is the source of unique IDs for all reactive primitives.
var globalIDCounter uint64

// nextID returns the next unique ID. IDs are monotonically increasing and
// never reused.
func nextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}
