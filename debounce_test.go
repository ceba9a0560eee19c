package scripting

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebounceTable_CoalescesBurst(t *testing.T) {
	d := newDebounceTable(30 * time.Millisecond)
	var fired atomic.Int64

	id := TypeId("enemy/goomba")
	for i := 0; i < 5; i++ {
		d.Trigger(id, func(TypeId) { fired.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(80 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Fatalf("fired = %d, want exactly 1 after a coalesced burst", got)
	}
	if got := d.DebouncedEvents(); got != 4 {
		t.Fatalf("DebouncedEvents = %d, want 4 (5 triggers, 1 survives)", got)
	}
}

func TestDebounceTable_IndependentKeys(t *testing.T) {
	d := newDebounceTable(20 * time.Millisecond)
	fired := make(map[TypeId]int)
	var mu sync.Mutex
	a, b := TypeId("a"), TypeId("b")

	record := func(id TypeId) {
		mu.Lock()
		fired[id]++
		mu.Unlock()
	}

	d.Trigger(a, record)
	d.Trigger(b, record)
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired[a] != 1 || fired[b] != 1 {
		t.Fatalf("fired = %v, want both keys fired exactly once", fired)
	}
}

func TestDebounceTable_CancelPreventsFire(t *testing.T) {
	d := newDebounceTable(20 * time.Millisecond)
	var fired atomic.Bool
	id := TypeId("enemy/goomba")

	d.Trigger(id, func(TypeId) { fired.Store(true) })
	d.Cancel(id)
	time.Sleep(50 * time.Millisecond)

	if fired.Load() {
		t.Fatalf("expected Cancel to prevent the timer from firing")
	}
}
