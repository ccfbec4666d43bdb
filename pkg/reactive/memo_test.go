package reactive

import "testing"

func TestMemoLazyComputation(t *testing.T) {
	computeCount := 0
	m := NewMemo(func() int {
		computeCount++
		return 42
	})

	if computeCount != 0 {
		t.Fatalf("memo should not compute before first read, computed %d times", computeCount)
	}

	if m.Get() != 42 {
		t.Errorf("expected 42")
	}
	if computeCount != 1 {
		t.Errorf("expected 1 computation, got %d", computeCount)
	}

	// Repeated reads hit the cache.
	_ = m.Get()
	_ = m.Get()
	if computeCount != 1 {
		t.Errorf("cached reads should not recompute, got %d computations", computeCount)
	}
}

func TestMemoRecomputesOncePerDistinctChange(t *testing.T) {
	s := NewSignal(1)
	computeCount := 0
	m := NewMemo(func() int {
		computeCount++
		return s.Get() * 2
	})

	if m.Get() != 2 {
		t.Fatalf("expected 2, got %d", m.Get())
	}

	s.Set(2)
	s.Set(2) // no-op write: must not dirty the memo again
	if m.Get() != 4 {
		t.Errorf("expected 4, got %d", m.Get())
	}
	if computeCount != 2 {
		t.Errorf("expected exactly 2 computations, got %d", computeCount)
	}
}

func TestMemoWithEqualsSuppressesUnchangedValue(t *testing.T) {
	s := NewSignal(1)
	m := NewMemo(func() int {
		return s.Get() % 2
	}).WithEquals(func(a, b int) bool { return a == b })

	runs := 0
	e := NewEffect(func() Cleanup {
		runs++
		m.Get()
		return nil
	})
	defer e.Dispose()

	if runs != 1 {
		t.Fatalf("expected 1 initial run, got %d", runs)
	}

	// Parity unchanged: the memo recomputes but must not re-run the effect.
	s.Set(3)
	if runs != 1 {
		t.Errorf("unchanged memo value must not re-run the effect, got %d runs", runs)
	}
	if m.Get() != 1 {
		t.Errorf("expected memo value 1, got %d", m.Get())
	}

	// Parity flips: the effect re-runs.
	s.Set(2)
	if runs != 2 {
		t.Errorf("changed memo value should re-run the effect, got %d runs", runs)
	}
}

func TestMemoWithEqualsAlwaysEqualNeverPropagates(t *testing.T) {
	s := NewSignal(1)
	m := NewMemo(func() int {
		return s.Get()
	}).WithEquals(func(int, int) bool { return true })

	runs := 0
	e := NewEffect(func() Cleanup {
		runs++
		m.Get()
		return nil
	})
	defer e.Dispose()

	s.Set(2)
	s.Set(3)
	if runs != 1 {
		t.Errorf("always-equal memo must never re-run the effect, got %d runs", runs)
	}
	if m.Get() != 3 {
		t.Errorf("memo should still track the latest value, got %d", m.Get())
	}
}

func TestMemoDirtyWithoutReadDoesNotRecompute(t *testing.T) {
	s := NewSignal(1)
	computeCount := 0
	m := NewMemo(func() int {
		computeCount++
		return s.Get()
	})

	_ = m.Get()

	// Several changes before the next read collapse into one recompute.
	s.Set(2)
	s.Set(3)
	s.Set(4)
	if computeCount != 1 {
		t.Errorf("memo should be pull-based, got %d computations", computeCount)
	}

	if m.Get() != 4 {
		t.Errorf("expected 4, got %d", m.Get())
	}
	if computeCount != 2 {
		t.Errorf("expected 2 computations after read, got %d", computeCount)
	}
}

func TestMemoDropsStaleDependencies(t *testing.T) {
	useFirst := NewSignal(true)
	first := NewSignal("a")
	second := NewSignal("b")

	computeCount := 0
	m := NewMemo(func() string {
		computeCount++
		if useFirst.Get() {
			return first.Get()
		}
		return second.Get()
	})

	if m.Get() != "a" {
		t.Fatalf("expected a")
	}

	useFirst.Set(false)
	if m.Get() != "b" {
		t.Fatalf("expected b")
	}
	countAfterSwitch := computeCount

	// first is no longer a dependency; writing it must not dirty the memo.
	first.Set("changed")
	_ = m.Get()
	if computeCount != countAfterSwitch {
		t.Errorf("stale dependency triggered recompute: %d -> %d", countAfterSwitch, computeCount)
	}

	// second is a live dependency.
	second.Set("b2")
	if m.Get() != "b2" {
		t.Errorf("expected b2, got %s", m.Get())
	}
}

func TestMemoChaining(t *testing.T) {
	s := NewSignal(1)
	doubled := NewMemo(func() int { return s.Get() * 2 })
	quadrupled := NewMemo(func() int { return doubled.Get() * 2 })

	if quadrupled.Get() != 4 {
		t.Fatalf("expected 4, got %d", quadrupled.Get())
	}

	s.Set(3)
	if quadrupled.Get() != 12 {
		t.Errorf("expected 12, got %d", quadrupled.Get())
	}
}

func TestMemoSubscribersNotifiedOnce(t *testing.T) {
	s := NewSignal(1)
	m := NewMemo(func() int { return s.Get() })
	_ = m.Get()

	listener := newTestListener()
	WithListener(listener, func() { _ = m.Get() })

	// Two writes while the memo is already dirty notify downstream once.
	s.Set(2)
	s.Set(3)
	if listener.getDirtyCount() != 1 {
		t.Errorf("expected 1 downstream notification, got %d", listener.getDirtyCount())
	}
}

func TestMemoPeek(t *testing.T) {
	s := NewSignal(5)
	m := NewMemo(func() int { return s.Get() })

	listener := newTestListener()
	WithListener(listener, func() {
		if m.Peek() != 5 {
			t.Errorf("expected 5")
		}
	})

	s.Set(6)
	if listener.getDirtyCount() != 0 {
		t.Errorf("Peek should not subscribe, got %d notifications", listener.getDirtyCount())
	}
}

func TestMemoCircularDependencyDoesNotHang(t *testing.T) {
	var m *Memo[int]
	m = NewMemo(func() int {
		if m != nil {
			// Self-read during computation: must not recurse forever.
			return m.Get()
		}
		return 0
	})

	_ = m.Get()
}
