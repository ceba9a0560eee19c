// cache.go: versioned script cache with O(1) rollback (spec.md §4.3).
//
// Generalizes the teacher's atomic.Pointer copy-on-write discipline
// (argus.go's stat cache) from "one pointer over the whole map" to "one
// atomic pointer per TypeId", which is what makes update/rollback for a
// single TypeId O(1) instead of O(watched files) — see DESIGN.md.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
)

// Artifact is an opaque, constructable handle produced by the Compiler. It
// resolves to a concrete script type via New.
type Artifact interface {
	// New constructs a fresh Script instance from this artifact. Called
	// once per cache entry, the first time Instance or Tick needs it, and
	// again after ClearInstance or a failed construction.
	New() (Script, error)
}

// cacheEntry is the versioned record described in spec.md §3. previous is
// retained at most one level deep: a second successful update supersedes
// the first, and a second failed update rolls back to the still-current
// good version, so history never needs to run deeper than two.
type cacheEntry struct {
	version     uint64
	artifact    Artifact
	driver      atomic.Pointer[scriptDriver]
	instanceMu  sync.Mutex
	lastUpdated time.Time
	previous    *cacheEntry
}

// Cache stores compiled artifacts and their lazily-constructed singleton
// instances. Reads are lock-free; writes go through a per-key atomic
// pointer (Update stores, Rollback compare-and-swaps, Remove deletes the
// key) so that a reload for one TypeId never contends with reads or writes
// for another.
type Cache struct {
	entries sync.Map // TypeId -> *atomic.Pointer[cacheEntry]
	version atomic.Uint64
}

// NewCache creates an empty versioned cache.
func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) slot(id TypeId) *atomic.Pointer[cacheEntry] {
	if v, ok := c.entries.Load(id); ok {
		return v.(*atomic.Pointer[cacheEntry])
	}
	v, _ := c.entries.LoadOrStore(id, new(atomic.Pointer[cacheEntry]))
	return v.(*atomic.Pointer[cacheEntry])
}

// Update installs artifact as the new current entry for id, linking the
// outgoing entry as previous, and returns the newly assigned version. The
// new entry's instance starts as None; Instance constructs it lazily.
//
// The returned version is strictly greater than any version previously
// returned for id and strictly greater than the global counter's previous
// value, satisfying spec.md §8's monotonicity property.
func (c *Cache) Update(id TypeId, artifact Artifact) uint64 {
	slot := c.slot(id)
	version := c.version.Add(1)

	// The outgoing entry is linked in as previous via a trimmed copy, not
	// its own live pointer: its own previous is deliberately dropped so the
	// chain never grows past two links, no matter how many updates
	// preceded this one. Carrying the outgoing entry's ancestry forward
	// would keep every historical artifact reachable forever instead of
	// bounding history at current+one (spec.md §4.3's Memory bound, §8's
	// chain-length <= 2 invariant). Built field-by-field rather than a
	// whole-struct copy so the new cacheEntry gets its own zero-value
	// instanceMu instead of one that's (however harmlessly) shared with
	// the entry it's replacing.
	var previous *cacheEntry
	if outgoing := slot.Load(); outgoing != nil {
		trimmed := &cacheEntry{
			version:     outgoing.version,
			artifact:    outgoing.artifact,
			lastUpdated: outgoing.lastUpdated,
		}
		trimmed.driver.Store(outgoing.driver.Load())
		previous = trimmed
	}

	next := &cacheEntry{
		version:     version,
		artifact:    artifact,
		lastUpdated: time.Now(),
		previous:    previous,
	}
	slot.Store(next)
	return version
}

// Instance returns the singleton Script for id, constructing it on first
// access under a per-entry mutex and publishing it so subsequent readers
// observe it lock-free. Returns an error if id has no current entry or
// construction fails.
func (c *Cache) Instance(id TypeId) (Script, error) {
	d, err := c.driverFor(id)
	if err != nil {
		return nil, err
	}
	return d.script, nil
}

// Tick is the tick-path entry point data flow §2 describes: it resolves
// id's current singleton (constructing it on first access), guarantees
// Initialize and Activate have each run exactly once for this instance
// before dispatching Tick, and returns whichever hook failed. A script
// with no Ticker is a silent no-op, matching the "hooks are optional"
// contract in spec.md §4.5.
func (c *Cache) Tick(id TypeId, ctx *Context, dt float64) error {
	d, err := c.driverFor(id)
	if err != nil {
		return err
	}
	if err := d.runInitialize(ctx); err != nil {
		return err
	}
	if err := d.runActivateOnce(ctx); err != nil {
		return err
	}
	return d.runTick(ctx, dt)
}

// Deactivate runs id's current instance's Deactivate hook, if the
// instance has been constructed and implements Deactivator. Intended for
// a host that is about to stop ticking a TypeId (explicit removal,
// shutdown) and wants the script to see its Deactivate hook once more;
// Cache itself never calls this automatically since it has no Context to
// supply.
func (c *Cache) Deactivate(id TypeId, ctx *Context) error {
	entry := c.current(id)
	if entry == nil {
		return nil
	}
	d := entry.driver.Load()
	if d == nil {
		return nil
	}
	return d.runDeactivate(ctx)
}

// driverFor resolves id's current cache entry and lazily constructs its
// scriptDriver the first time it's requested. Construction happens at
// most once per entry; subsequent callers observe the published driver
// lock-free.
func (c *Cache) driverFor(id TypeId) (*scriptDriver, error) {
	entry := c.current(id)
	if entry == nil {
		return nil, errors.New(ErrCodeNotFound, "no cache entry for type").WithContext("type_id", string(id))
	}

	if existing := entry.driver.Load(); existing != nil {
		return existing, nil
	}

	entry.instanceMu.Lock()
	defer entry.instanceMu.Unlock()

	// Re-check: another goroutine may have published while we waited for
	// the lock. Construction happens at most once per entry.
	if existing := entry.driver.Load(); existing != nil {
		return existing, nil
	}

	script, err := entry.artifact.New()
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeContractViolation, "failed to construct script instance").
			WithContext("type_id", string(id))
	}

	d := newScriptDriver(script)
	entry.driver.Store(d)
	return d, nil
}

// currentArtifact returns id's current artifact, or nil if id has no
// current entry. Used by the orchestrator to snapshot a Backup before
// every compile attempt (spec.md §4.2 step 4); unexported since artifact
// access bypasses the singleton/driver machinery that Instance and Tick
// guard.
func (c *Cache) currentArtifact(id TypeId) Artifact {
	entry := c.current(id)
	if entry == nil {
		return nil
	}
	return entry.artifact
}

// Version returns the current version for id, or 0 if absent.
func (c *Cache) Version(id TypeId) uint64 {
	entry := c.current(id)
	if entry == nil {
		return 0
	}
	return entry.version
}

// Rollback atomically replaces the current entry for id with its previous
// entry, if any. O(1): it performs zero compiler invocations and no
// allocation beyond the pointer swap. Returns false if there is no
// previous entry (including when there is no current entry at all).
func (c *Cache) Rollback(id TypeId) bool {
	v, ok := c.entries.Load(id)
	if !ok {
		return false
	}
	slot := v.(*atomic.Pointer[cacheEntry])

	for {
		current := slot.Load()
		if current == nil || current.previous == nil {
			return false
		}
		if slot.CompareAndSwap(current, current.previous) {
			return true
		}
	}
}

// ClearInstance resets id's current entry's instance slot to None,
// forcing reconstruction on the next Instance call.
//
// Diagnostic-only: this is not part of the steady-state reload path (see
// DESIGN.md's Open Question resolution); it exists for host-side operator
// tooling that needs to force a script to re-run its initialization hooks
// without a full recompile. cmd/scriptctl does not call it.
func (c *Cache) ClearInstance(id TypeId) {
	entry := c.current(id)
	if entry == nil {
		return
	}
	entry.driver.Store(nil)
}

// Remove deletes id's entire entry chain. Subsequent Instance/Version
// calls behave as if id was never present.
func (c *Cache) Remove(id TypeId) {
	c.entries.Delete(id)
}

// HistoryDepth reports the chain length starting from the current entry,
// for diagnostics. Must stabilize at <= 2 once concurrent transitions
// settle (spec.md §8).
func (c *Cache) HistoryDepth(id TypeId) int {
	entry := c.current(id)
	depth := 0
	for entry != nil {
		depth++
		entry = entry.previous
	}
	return depth
}

// current loads the current entry for id without mutating anything.
func (c *Cache) current(id TypeId) *cacheEntry {
	v, ok := c.entries.Load(id)
	if !ok {
		return nil
	}
	return v.(*atomic.Pointer[cacheEntry]).Load()
}

// restoreEntry installs a previously-held artifact as id's current entry
// at an explicit version, used by the backup store's restore path (spec.md
// §4.2 step 7: backup.restore re-installs the prior artifact in the
// cache). The restored entry has no previous link of its own: a backup
// restoration is a fresh starting point for future rollbacks, not a
// continuation of the in-memory chain that was already lost.
func (c *Cache) restoreEntry(id TypeId, artifact Artifact, version uint64) {
	slot := c.slot(id)
	slot.Store(&cacheEntry{
		version:     version,
		artifact:    artifact,
		lastUpdated: time.Now(),
	})
	for {
		cur := c.version.Load()
		if version <= cur || c.version.CompareAndSwap(cur, version) {
			return
		}
	}
}
