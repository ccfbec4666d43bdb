// Package philjs provides the public API for the PhilJS runtime: reactive
// signals and incrementally regenerated pages behind one HTTP app.
//
// This is the recommended import for most applications:
//
//	import "github.com/philjs-dev/philjs"
//
// Usage:
//
//	count := philjs.NewSignal(0)
//	doubled := philjs.NewMemo(func() int { return count.Get() * 2 })
//
//	app, err := philjs.New(philjs.Config{
//	    Render: renderPage,
//	})
//	http.ListenAndServe(":3000", app)
package philjs

import (
	"github.com/philjs-dev/philjs/pkg/isr"
	"github.com/philjs-dev/philjs/pkg/reactive"
)

// =============================================================================
// Reactive primitives (re-export from pkg/reactive)
// =============================================================================

// NewSignal creates a new reactive signal with the given initial value.
//
// Example:
//
//	count := philjs.NewSignal(0)
//	count.Set(1)
//	value := count.Get() // 1
func NewSignal[T any](initial T) *reactive.Signal[T] {
	return reactive.NewSignal(initial)
}

// NewMemo creates a lazily recomputed derived value.
func NewMemo[T any](compute func() T) *reactive.Memo[T] {
	return reactive.NewMemo(compute)
}

// NewEffect runs fn immediately and again whenever a dependency changes.
func NewEffect(fn func() reactive.Cleanup) *reactive.Effect {
	return reactive.NewEffect(fn)
}

// Batch coalesces notifications: each listener runs at most once per
// outermost batch.
func Batch(fn func()) {
	reactive.Batch(fn)
}

// Untracked runs fn without registering dependencies.
func Untracked(fn func()) {
	reactive.Untracked(fn)
}

// Effect is the handle returned by NewEffect.
type Effect = reactive.Effect

// Cleanup is an optional function returned by effect bodies, invoked
// before the next run and on disposal.
type Cleanup = reactive.Cleanup

// Owner is a disposal scope for effects.
type Owner = reactive.Owner

// NewOwner creates a disposal scope under parent. Parent may be nil.
func NewOwner(parent *Owner) *Owner {
	return reactive.NewOwner(parent)
}

// =============================================================================
// ISR types (re-export from pkg/isr)
// =============================================================================

// RenderFunc regenerates the HTML for a path.
type RenderFunc = isr.RenderFunc

// Entry is a cached page.
type Entry = isr.Entry

// Event is a cache lifecycle notification.
type Event = isr.Event

// EventSink receives lifecycle events.
type EventSink = isr.EventSink
