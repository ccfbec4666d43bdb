package reactive

// Batch groups multiple signal updates into a single notification phase.
// Notifications raised inside fn are collected, deduplicated by listener ID,
// and delivered once when the outermost batch completes. A signal written
// several times inside one batch notifies its dependents once, with the
// final value visible.
//
// Batches nest: inner batches flatten into the outermost batch's
// notification pass.
//
//	reactive.Batch(func() {
//	    firstName.Set("Ada")
//	    lastName.Set("Lovelace")
//	})
//	// dependents of both signals run once
func Batch(fn func()) {
	incrementBatchDepth()

	defer func() {
		if decrementBatchDepth() {
			processPendingUpdates()
		}
	}()

	fn()
}

// processPendingUpdates deduplicates and notifies all pending listeners in
// the order they were first queued, which follows subscriber-registration
// order per signal.
func processPendingUpdates() {
	updates := drainPendingUpdates()
	if len(updates) == 0 {
		return
	}

	seen := make(map[uint64]bool, len(updates))
	unique := make([]Listener, 0, len(updates))

	for _, listener := range updates {
		id := listener.ID()
		if !seen[id] {
			seen[id] = true
			unique = append(unique, listener)
		}
	}

	for _, listener := range unique {
		listener.MarkDirty()
	}
}

// Untracked runs fn without tracking signal reads as dependencies. For a
// single read, Peek is clearer.
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	fn()
}
