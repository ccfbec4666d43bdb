// Package reactive implements the fine-grained reactive core of PhilJS:
// signals, memos, effects, and batched updates.
//
// A Signal is a mutable reactive cell. Reading a signal inside a tracked
// context (a memo computation or an effect body) subscribes that computation
// to the signal, so it re-runs when the value changes:
//
//	count := reactive.NewSignal(0)
//
//	doubled := reactive.NewMemo(func() int {
//	    return count.Get() * 2
//	})
//
//	reactive.NewEffect(func() reactive.Cleanup {
//	    fmt.Println("doubled is", doubled.Get())
//	    return nil
//	})
//
//	count.Set(2) // effect prints "doubled is 4"
//
// Memos are lazy: they recompute only when read after a dependency change.
// Effects run eagerly when a dependency changes, unless the change happens
// inside Batch, in which case all notifications are coalesced and delivered
// once when the outermost batch completes.
//
// All primitives are safe for concurrent use. Dependency tracking is scoped
// per goroutine, so concurrent computations do not observe each other's
// tracking state.
package reactive
