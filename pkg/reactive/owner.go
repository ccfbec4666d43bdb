package reactive

import (
	"sync"
	"sync/atomic"
)

// Owner is a disposal scope for reactive primitives. Effects created while
// an owner is current (see WithOwner) are registered with it; disposing the
// owner disposes them all, plus any child owners, and runs manual cleanups
// in reverse registration order.
//
// Owners form a hierarchy so nested scopes tear down cleanly with their
// parent.
type Owner struct {
	id uint64

	parent *Owner

	children   []*Owner
	childrenMu sync.Mutex

	effects   []*Effect
	effectsMu sync.Mutex

	cleanups   []func()
	cleanupsMu sync.Mutex

	// signalCount tracks signals created under this owner, for diagnostics.
	signalCount atomic.Int64

	disposed atomic.Bool
}

// NewOwner creates an owner with the given parent. Pass nil for a root.
func NewOwner(parent *Owner) *Owner {
	o := &Owner{
		id:     nextID(),
		parent: parent,
	}

	if parent != nil {
		parent.addChild(o)
	}

	return o
}

// ID returns the unique identifier for this owner.
func (o *Owner) ID() uint64 {
	return o.id
}

// Parent returns the parent owner, or nil for a root owner.
func (o *Owner) Parent() *Owner {
	return o.parent
}

// IsDisposed reports whether Dispose has been called.
func (o *Owner) IsDisposed() bool {
	return o.disposed.Load()
}

// SignalCount returns the number of signals created under this owner.
func (o *Owner) SignalCount() int64 {
	return o.signalCount.Load()
}

// OnCleanup registers fn to run when the owner is disposed.
func (o *Owner) OnCleanup(fn func()) {
	if fn == nil || o.disposed.Load() {
		return
	}
	o.cleanupsMu.Lock()
	o.cleanups = append(o.cleanups, fn)
	o.cleanupsMu.Unlock()
}

// Dispose tears down the owner: child owners first, then owned effects,
// then manual cleanups in reverse registration order. Safe to call more
// than once.
func (o *Owner) Dispose() {
	if o.disposed.Swap(true) {
		return
	}

	o.childrenMu.Lock()
	children := o.children
	o.children = nil
	o.childrenMu.Unlock()
	for _, child := range children {
		child.Dispose()
	}

	o.effectsMu.Lock()
	effects := o.effects
	o.effects = nil
	o.effectsMu.Unlock()
	for _, e := range effects {
		e.Dispose()
	}

	o.cleanupsMu.Lock()
	cleanups := o.cleanups
	o.cleanups = nil
	o.cleanupsMu.Unlock()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}

	if o.parent != nil {
		o.parent.removeChild(o)
	}
}

func (o *Owner) addChild(child *Owner) {
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()
	o.children = append(o.children, child)
}

func (o *Owner) removeChild(child *Owner) {
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()
	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

func (o *Owner) registerEffect(e *Effect) {
	o.effectsMu.Lock()
	defer o.effectsMu.Unlock()
	o.effects = append(o.effects, e)
}

func (o *Owner) trackSignal() {
	o.signalCount.Add(1)
}
