package scripting

import (
	"sync"
	"testing"
	"time"
)

// noHookScript is a Script with none of the optional lifecycle hooks,
// just enough for Cache.Instance/Tick to resolve something.
type noHookScript struct{ version int }

type taggedArtifact struct{ version int }

func (a taggedArtifact) New() (Script, error) {
	return noHookScript{version: a.version}, nil
}

// scriptedCompiler returns one CompileResult per call, in order, keyed by
// call index (1-based) rather than path, since these tests reuse a
// single logical source file across several simulated edits.
type scriptedCompiler struct {
	mu      sync.Mutex
	calls   int
	results []CompileResult
}

func (c *scriptedCompiler) Compile(path string) (CompileResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls-1 >= len(c.results) {
		return c.results[len(c.results)-1], nil
	}
	return c.results[c.calls-1], nil
}

func (c *scriptedCompiler) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// collectingSink records every Notification delivered to it, guarded by a
// mutex since the orchestrator calls Notify from its reload goroutine
// concurrently with the test goroutine reading the slice.
type collectingSink struct {
	mu    sync.Mutex
	notes []Notification
}

func (s *collectingSink) Notify(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
}

func (s *collectingSink) snapshot() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.notes))
	copy(out, s.notes)
	return out
}

// newTestOrchestrator builds a ready-to-drive Orchestrator without a live
// Watcher: tests inject FileEvents directly through handleEvent, which
// exercises the real debounce -> semaphore -> compile -> cache/backup
// pipeline deterministically, without depending on filesystem polling
// timing.
func newTestOrchestrator(t *testing.T, compiler Compiler, sink NotificationSink) *Orchestrator {
	t.Helper()
	cfg := OrchestratorConfig{
		DebounceWindow: 15 * time.Millisecond,
		Sink:           sink,
	}
	o, err := NewOrchestrator(cfg, compiler, nil, nil)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	o.dir = "/scripts"
	o.state.Store(int32(StateRunning))
	t.Cleanup(func() { _ = o.Stop() })
	return o
}

// awaitVersion polls cache.Version(id) until it reaches want or the
// deadline expires, since reload is driven asynchronously off a debounce
// timer goroutine.
func awaitVersion(t *testing.T, o *Orchestrator, id TypeId, want uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.Cache().Version(id) == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Version(%s) never reached %d, stuck at %d", id, want, o.Cache().Version(id))
}

// awaitStats polls until pred(Statistics()) is true or the deadline
// expires.
func awaitStats(t *testing.T, o *Orchestrator, pred func(ReloadStats) bool) ReloadStats {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		stats := o.Statistics()
		if pred(stats) {
			return stats
		}
		if time.Now().After(deadline) {
			t.Fatalf("stats never satisfied predicate, last snapshot: %+v", stats)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// TestOrchestrator_HappyPath is spec.md §8 scenario 1: a single edit
// compiles successfully, the cache reports version 1, and the instance
// is servable.
func TestOrchestrator_HappyPath(t *testing.T) {
	compiler := &scriptedCompiler{results: []CompileResult{
		{Success: true, Artifact: taggedArtifact{version: 1}},
	}}
	sink := &collectingSink{}
	o := newTestOrchestrator(t, compiler, sink)

	o.handleEvent(FileEvent{Path: "/scripts/pikachu.src", Kind: EventModified, ObservedAt: time.Now()})

	id := TypeId("pikachu")
	awaitVersion(t, o, id, 1)

	inst, err := o.Cache().Instance(id)
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	if inst.(noHookScript).version != 1 {
		t.Fatalf("instance version = %v, want 1", inst)
	}

	notes := sink.snapshot()
	if len(notes) != 1 || notes[0].Kind != NotifyReloadSucceeded {
		t.Fatalf("notifications = %+v, want exactly one NotifyReloadSucceeded", notes)
	}
	if notes[0].TypeId != id {
		t.Fatalf("notification TypeId = %s, want %s", notes[0].TypeId, id)
	}
}

// TestOrchestrator_GoodGoodBadRollback is spec.md §8 scenario 3: two
// successful reloads followed by a failed compile. The cache's own
// round-trip invariant (§8: "update(t, a) then rollback(t) restores the
// exact version/artifact that was current immediately before the
// update") governs the expected outcome here: rolling back after the v2
// update restores v1, the version the cache held immediately before that
// update — not v2 itself, since nothing ever re-installed v2 as a
// "previous" link to roll forward to.
func TestOrchestrator_GoodGoodBadRollback(t *testing.T) {
	compiler := &scriptedCompiler{results: []CompileResult{
		{Success: true, Artifact: taggedArtifact{version: 1}},
		{Success: true, Artifact: taggedArtifact{version: 2}},
		{Success: false, Diagnostics: []Diagnostic{{Severity: SeverityError, Message: "syntax error", Line: 12, Column: 4}}},
	}}
	sink := &collectingSink{}
	o := newTestOrchestrator(t, compiler, sink)
	id := TypeId("pikachu")

	o.handleEvent(FileEvent{Path: "/scripts/pikachu.src", Kind: EventModified, ObservedAt: time.Now()})
	awaitVersion(t, o, id, 1)

	o.handleEvent(FileEvent{Path: "/scripts/pikachu.src", Kind: EventModified, ObservedAt: time.Now()})
	awaitVersion(t, o, id, 2)

	o.handleEvent(FileEvent{Path: "/scripts/pikachu.src", Kind: EventModified, ObservedAt: time.Now()})
	// The failing compile never bumps the version; wait for the rollback
	// (demoting current from v2 back to v1) to land instead.
	awaitVersion(t, o, id, 1)

	inst, err := o.Cache().Instance(id)
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	if inst.(noHookScript).version != 1 {
		t.Fatalf("instance after rollback = %v, want the v1 artifact", inst)
	}

	stats := awaitStats(t, o, func(s ReloadStats) bool { return s.Rollbacks == 1 })
	if stats.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Succeeded != 2 {
		t.Fatalf("Succeeded = %d, want 2", stats.Succeeded)
	}

	notes := sink.snapshot()
	if len(notes) != 3 {
		t.Fatalf("notifications = %+v, want 3", notes)
	}
	last := notes[2]
	if last.Kind != NotifyReloadFailed {
		t.Fatalf("last notification kind = %v, want NotifyReloadFailed", last.Kind)
	}
	if len(last.Details) != 1 || last.Details[0].Message != "syntax error" {
		t.Fatalf("last notification details = %+v, want the syntax error diagnostic", last.Details)
	}
}

// TestOrchestrator_DebounceCoalescing is spec.md §8 scenario 5: N rapid
// edits of the same file within the debounce window produce exactly one
// compile, debounced_events increases by N-1, and the final version
// increments by exactly one.
func TestOrchestrator_DebounceCoalescing(t *testing.T) {
	compiler := &scriptedCompiler{results: []CompileResult{
		{Success: true, Artifact: taggedArtifact{version: 1}},
	}}
	sink := &collectingSink{}
	o := newTestOrchestrator(t, compiler, sink)
	id := TypeId("pikachu")

	const edits = 5
	for i := 0; i < edits; i++ {
		o.handleEvent(FileEvent{Path: "/scripts/pikachu.src", Kind: EventModified, ObservedAt: time.Now()})
	}

	awaitVersion(t, o, id, 1)
	// Give the debounce table a moment past the window to settle so a
	// second, unwanted fire (if any) would have already happened.
	time.Sleep(30 * time.Millisecond)

	if got := compiler.callCount(); got != 1 {
		t.Fatalf("compiler invoked %d times, want exactly 1", got)
	}
	if got := o.Statistics().DebouncedEvents; got != edits-1 {
		t.Fatalf("DebouncedEvents = %d, want %d", got, edits-1)
	}
	if got := o.Cache().Version(id); got != 1 {
		t.Fatalf("Version = %d, want 1", got)
	}
}
