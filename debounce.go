// debounce.go: per-TypeId debouncing of rapid file-change bursts.
//
// Adapted from the teacher's optimized_audit.go buffering discipline
// (coalesce a burst of events into one unit of work), retargeted from
// "flush after N buffered records" to "flush after the debounce window
// elapses with no further events for this TypeId", using time.AfterFunc
// cancellable timers the way net/http's idle-timeout machinery does.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultDebounceWindow matches spec.md §4.2's default coalescing window.
const DefaultDebounceWindow = 300 * time.Millisecond

// debounceEntry tracks the pending timer for one TypeId.
type debounceEntry struct {
	timer *time.Timer
}

// debounceTable coalesces bursts of FileEvents for the same TypeId into a
// single fire after window has elapsed with no further events. Editors
// that write-then-rename-then-touch a file in quick succession produce
// several raw FileEvents per logical edit; without this, each would
// trigger its own compile.
type debounceTable struct {
	window time.Duration

	mu      sync.Mutex
	entries map[TypeId]*debounceEntry

	debouncedEvents atomic.Int64
}

// newDebounceTable creates a table with the given coalescing window.
// window <= 0 uses DefaultDebounceWindow.
func newDebounceTable(window time.Duration) *debounceTable {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &debounceTable{
		window:  window,
		entries: make(map[TypeId]*debounceEntry),
	}
}

// Trigger arms (or re-arms) the debounce timer for id. If id already has a
// pending timer, it is cancelled and counted as a debounced (coalesced)
// event, and a fresh timer is started. fire is invoked from a timer
// goroutine once the window elapses with no further Trigger calls for id.
func (d *debounceTable) Trigger(id TypeId, fire func(TypeId)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.entries[id]; ok {
		if existing.timer.Stop() {
			d.debouncedEvents.Add(1)
		}
	}

	entry := &debounceEntry{}
	entry.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		// Only clear if we're still the current timer for id: a Cancel or
		// a newer Trigger may have already replaced or removed us.
		if d.entries[id] == entry {
			delete(d.entries, id)
		}
		d.mu.Unlock()
		fire(id)
	})
	d.entries[id] = entry
}

// Cancel stops any pending timer for id without firing it. The
// orchestrator itself uses CancelAll on shutdown.
func (d *debounceTable) Cancel(id TypeId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.entries[id]; ok {
		existing.timer.Stop()
		delete(d.entries, id)
	}
}

// CancelAll stops every pending timer, used on orchestrator Stop.
func (d *debounceTable) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, existing := range d.entries {
		existing.timer.Stop()
		delete(d.entries, id)
	}
}

// DebouncedEvents returns the running count of coalesced (cancelled)
// events, feeding ReloadStats.debounced_events. Orchestrator.Start zeroes
// it per DESIGN.md's Open Question decision.
func (d *debounceTable) DebouncedEvents() int64 {
	return d.debouncedEvents.Load()
}
