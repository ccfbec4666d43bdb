package reactive

import (
	"sync"
	"sync/atomic"
)

// Memo is a cached derived value that automatically tracks its dependencies.
// When any dependency changes, the memo is marked dirty and recomputes on the
// next read, never eagerly. If several dependencies change before the next
// read, the memo recomputes once. WithEquals is the exception: it makes the
// memo recompute on invalidation so an unchanged value never propagates.
//
// Memos can themselves be subscribed to, so chains of derived values work.
type Memo[T any] struct {
	base signalBase

	compute func() T

	value   T
	valueMu sync.RWMutex

	// valid is false when the cached value is stale and the next Get must
	// recompute.
	valid atomic.Bool

	// sources are the signals/memos read during the last computation.
	// Rebuilt from scratch on every run so stale dependencies are dropped.
	sources   []*signalBase
	sourcesMu sync.Mutex

	equal func(T, T) bool

	// computing guards against infinite recursion on circular dependencies.
	computing atomic.Bool
}

// NewMemo creates a memo with the given computation. The computation does
// not run until the first Get.
func NewMemo[T any](compute func() T) *Memo[T] {
	return &Memo[T]{
		base:    signalBase{id: nextID()},
		compute: compute,
	}
}

// Get returns the memo's value, recomputing if a dependency changed since
// the last read. Subscribes the current listener, if any.
func (m *Memo[T]) Get() T {
	if listener := getCurrentListener(); listener != nil {
		m.base.subscribe(listener)
		if src, ok := listener.(sourceTracker); ok {
			src.addSource(&m.base)
		}
	}

	if !m.valid.Load() {
		m.recompute()
	}

	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// Peek returns the value without subscribing. Still recomputes if dirty.
func (m *Memo[T]) Peek() T {
	if !m.valid.Load() {
		m.recompute()
	}
	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// MarkDirty invalidates the cached value and propagates to subscribers.
// Implements Listener. Idempotent: a memo that is already dirty does not
// re-notify. With an equality function the memo recomputes here and stays
// silent when the new value equals the old one.
func (m *Memo[T]) MarkDirty() {
	if !m.valid.CompareAndSwap(true, false) {
		return
	}
	if m.equal == nil {
		m.base.notifySubscribers()
		return
	}

	m.valueMu.RLock()
	prev := m.value
	m.valueMu.RUnlock()
	m.recompute()
	m.valueMu.RLock()
	next := m.value
	m.valueMu.RUnlock()

	if !m.equal(prev, next) {
		m.base.notifySubscribers()
	}
}

// ID returns the unique identifier for this memo. Implements Listener.
func (m *Memo[T]) ID() uint64 {
	return m.base.id
}

// addSource records a dependency read during computation.
func (m *Memo[T]) addSource(source *signalBase) {
	m.sourcesMu.Lock()
	defer m.sourcesMu.Unlock()

	for _, s := range m.sources {
		if s == source {
			return
		}
	}
	m.sources = append(m.sources, source)
}

// WithEquals configures an equality function for the memo's value. It
// trades laziness for precision: a dependency change recomputes the memo
// immediately, and subscribers are only notified when the new value differs
// from the old one.
func (m *Memo[T]) WithEquals(fn func(T, T) bool) *Memo[T] {
	m.equal = fn
	return m
}

// recompute runs the computation with tracking enabled and caches the result.
func (m *Memo[T]) recompute() {
	if m.computing.Swap(true) {
		// Circular dependency; keep the current value.
		return
	}
	defer m.computing.Store(false)

	// Drop dependencies from the previous run. The new set is exactly what
	// the computation reads this time.
	m.sourcesMu.Lock()
	for _, source := range m.sources {
		source.unsubscribe(m)
	}
	m.sources = m.sources[:0]
	m.sourcesMu.Unlock()

	old := setCurrentListener(m)
	newValue := m.compute()
	setCurrentListener(old)

	m.valueMu.Lock()
	m.value = newValue
	m.valueMu.Unlock()

	m.valid.Store(true)
}

var _ sourceTracker = (*Memo[int])(nil)
