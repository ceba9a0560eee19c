// orchestrator.go: the Reload Orchestrator (spec.md §4.2).
//
// Turns a raw watcher event stream into applied-or-rolled-back cache
// entries, one logical reload at a time per TypeId. Structurally this is
// the teacher's own watch-then-react loop (argus.go's pollingLoop feeding
// a user callback) with the callback replaced by the seven-step
// debounce -> semaphore -> compile -> apply-or-rollback pipeline spec.md
// requires, and the single-slot semaphore borrowed from the teacher's
// BoreasLite single-writer discipline rather than invented fresh.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"

	"github.com/fuddlesworth/PokeSharp-sub010/auditlog"
	"github.com/fuddlesworth/PokeSharp-sub010/backup"
)

// OrchestratorState is the orchestrator's own lifecycle, distinct from
// any per-script state.
type OrchestratorState int32

const (
	StateStopped OrchestratorState = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s OrchestratorState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Orchestrator drives the watch -> debounce -> compile -> cache pipeline
// for a single watched directory.
type Orchestrator struct {
	cfg      OrchestratorConfig
	compiler Compiler
	backup   backup.Store
	audit    *auditlog.Logger

	cache     *Cache
	debouncer *debounceTable
	stats     *statsAccumulator

	state  atomic.Int32
	semCh  chan struct{} // single-permit compile semaphore
	cancel context.CancelFunc
	wg     sync.WaitGroup

	watcher Watcher
	dir     string
}

// NewOrchestrator wires together a Cache, a Compiler, a backup.Store, and
// an auditlog.Logger into a ready-to-Start Orchestrator. cfg is completed
// with WithDefaults and validated before use.
func NewOrchestrator(cfg OrchestratorConfig, compiler Compiler, store backup.Store, audit *auditlog.Logger) (*Orchestrator, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if compiler == nil {
		return nil, errors.New(ErrCodeInvalidConfig, "compiler must not be nil")
	}
	if store == nil {
		store = backup.NewMemoryStore()
	}

	return &Orchestrator{
		cfg:       cfg,
		compiler:  compiler,
		backup:    store,
		audit:     audit,
		cache:     NewCache(),
		debouncer: newDebounceTable(cfg.DebounceWindow),
		stats:     newStatsAccumulator(),
		semCh:     make(chan struct{}, 1),
	}, nil
}

// Cache exposes the orchestrator's Cache for readers (scripts looking up
// their own instance, diagnostics tooling).
func (o *Orchestrator) Cache() *Cache { return o.cache }

// State returns the orchestrator's current lifecycle state.
func (o *Orchestrator) State() OrchestratorState {
	return OrchestratorState(o.state.Load())
}

// Start begins watching dir. Events outside the Running state are
// ignored; Start itself transitions Stopped -> Starting -> Running.
func (o *Orchestrator) Start(dir string) error {
	if !o.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return errors.New(ErrCodeOrchestratorState, "orchestrator is not stopped").
			WithContext("state", o.State().String())
	}

	o.stats.reset()
	o.debouncer.debouncedEvents.Store(0)

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel

	o.dir = dir
	o.watcher = NewWatcher(o.cfg.WatcherStrategy, dir, o.cfg.PollInterval, o.cfg.PollCacheTTL)
	filter := Filter{Extensions: o.cfg.Extensions}

	events, errs, err := o.watcher.Start(ctx, dir, filter)
	if err != nil {
		cancel()
		o.state.Store(int32(StateStopped))
		return errors.Wrap(err, ErrCodeWatcherStopped, "failed to start watcher").WithContext("dir", dir)
	}

	o.state.Store(int32(StateRunning))

	o.wg.Add(2)
	go o.consumeEvents(ctx, events)
	go o.consumeErrors(ctx, errs)

	return nil
}

// Stop cancels every live debounce timer, stops the watcher, and waits for
// the event and error consumer goroutines to settle. Reloads already
// waiting on the compile semaphore are not interrupted: each one acquires
// the permit in turn and then returns without compiling. In-flight
// compiles may still run to completion (the compiler is opaque) but their
// post-compile cache update is skipped once the orchestrator has left
// Running.
func (o *Orchestrator) Stop() error {
	if !o.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		if o.State() == StateStopped {
			return nil
		}
		return errors.New(ErrCodeOrchestratorState, "orchestrator is not running").
			WithContext("state", o.State().String())
	}

	o.debouncer.CancelAll()
	if o.cancel != nil {
		o.cancel()
	}
	if o.watcher != nil {
		_ = o.watcher.Stop()
	}
	o.wg.Wait()

	o.state.Store(int32(StateStopped))
	return nil
}

// Statistics returns a snapshot of ReloadStats.
func (o *Orchestrator) Statistics() ReloadStats {
	return o.stats.snapshot(o.debouncer.DebouncedEvents())
}

func (o *Orchestrator) consumeEvents(ctx context.Context, events <-chan FileEvent) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			o.handleEvent(evt)
		}
	}
}

func (o *Orchestrator) consumeErrors(ctx context.Context, errs <-chan error) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			o.cfg.Sink.Notify(Notification{Kind: NotifyWatchError, Message: err.Error()})
			if o.audit != nil {
				o.audit.Log(auditlog.EventWatchError, "", 0, err.Error(), nil)
			}
		}
	}
}

// handleEvent implements algorithm step 1-2: derive a TypeId, drop events
// outside Running, and (re)arm the per-TypeId debounce timer.
func (o *Orchestrator) handleEvent(evt FileEvent) {
	if o.State() != StateRunning {
		return
	}
	if evt.Kind == EventDeleted || evt.Kind == EventRenamed {
		// Reload-on-delete is a non-goal; the watched file reappearing
		// later is observed as a fresh Created event. A rename event
		// carries the old path, whose cache entry is left untouched; the
		// new path arrives as its own Created event.
		return
	}

	id := DeriveTypeId(o.dir, evt.Path)
	o.debouncer.Trigger(id, func(id TypeId) {
		o.reload(id, evt.Path)
	})
}

// reload implements algorithm steps 3-7.
func (o *Orchestrator) reload(id TypeId, path string) {
	select {
	case o.semCh <- struct{}{}:
	default:
		// Someone else holds the permit; block until it's free. Stop does
		// not interrupt this wait; the state check below makes a reload
		// that acquires the permit after Stop return without compiling.
		o.semCh <- struct{}{}
	}
	defer func() { <-o.semCh }()

	if o.State() != StateRunning {
		return
	}

	start := time.Now()

	priorVersion := o.cache.Version(id)
	priorArtifact := o.cache.currentArtifact(id)
	// Step 4: back up the current artifact and version before every
	// compile attempt, including the initial-load case (priorVersion==0,
	// priorArtifact==nil) — this is what lets backup.Restore serve a cold
	// rollback later, per spec.md §4.2 step 4 / §4.4.
	_ = o.backup.Create(string(id), encodeBackupArtifact(priorArtifact), priorVersion)
	if o.audit != nil {
		o.audit.Log(auditlog.EventReloadAttempt, string(id), priorVersion, path, nil)
	}

	result, err := o.compiler.Compile(path)
	compileElapsed := result.Elapsed
	if compileElapsed == 0 {
		compileElapsed = time.Since(start)
	}
	o.stats.recordCompile(compileElapsed)

	if o.State() != StateRunning {
		// Stopped while we were compiling: skip the cache mutation.
		return
	}

	if err != nil || !result.Success || result.Artifact == nil {
		o.handleCompileFailure(id, path, result, err, start)
		return
	}

	newVersion := o.cache.Update(id, result.Artifact)
	_ = o.backup.Clear(string(id))

	o.stats.recordReload(time.Since(start), true)
	if o.audit != nil {
		o.audit.Log(auditlog.EventReloadSuccess, string(id), newVersion, path, nil)
	}
	o.cfg.Sink.Notify(Notification{
		Kind:     NotifyReloadSucceeded,
		TypeId:   id,
		Duration: compileElapsed,
	})
}

// handleCompileFailure implements algorithm step 7: roll back to the
// cache's linked previous entry first (instant, in-memory); only when
// that reports false does it fall through to the backup store.
func (o *Orchestrator) handleCompileFailure(id TypeId, path string, result CompileResult, compileErr error, start time.Time) {
	diagnostics := result.Diagnostics
	if max := o.cfg.MaxDiagnostics; max > 0 && len(diagnostics) > max {
		diagnostics = diagnostics[:max]
	}

	message := "compile failed"
	if compileErr != nil {
		message = compileErr.Error()
	}

	rolledBack := o.cache.Rollback(id)
	if !rolledBack {
		if restored, ok, rerr := o.backup.Restore(string(id)); ok && rerr == nil {
			if artifact, aerr := decodeBackupArtifact(restored.ArtifactBlob); aerr == nil && artifact != nil {
				o.cache.restoreEntry(id, artifact, restored.Version)
				rolledBack = true
			}
		}
	}

	o.stats.recordReload(time.Since(start), false)
	if rolledBack {
		o.stats.recordRollback()
	}

	if o.audit != nil {
		kind := auditlog.EventReloadAttempt
		if rolledBack {
			kind = auditlog.EventReloadRollback
		}
		o.audit.Log(kind, string(id), 0, message, nil)
	}

	o.cfg.Sink.Notify(Notification{
		Kind:          NotifyReloadFailed,
		TypeId:        id,
		Message:       message,
		Details:       diagnostics,
		AffectedCount: len(diagnostics),
	})
}

// decodeBackupArtifact exists because backup.Store persists an opaque
// byte blob while the cache needs an Artifact. This package has no
// built-in artifact serialization (that's the Compiler's concern), so
// the default backup.MemoryStore / backup.FileStore are only useful for
// rollback once a host supplies a Compiler whose Artifact round-trips
// through bytes; absent that, this always reports "nothing to restore"
// and failure handling falls back to the warning notification alone,
// which matches spec.md's "if restore is unavailable, the warning still
// fires" baseline behavior.
func decodeBackupArtifact(blob []byte) (Artifact, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if decoder, ok := backupArtifactDecoder.Load().(func([]byte) (Artifact, error)); ok && decoder != nil {
		return decoder(blob)
	}
	return nil, nil
}

// backupArtifactDecoder lets a host register how to turn backup bytes
// back into an Artifact, without forcing every Compiler to depend on a
// fixed serialization format.
var backupArtifactDecoder atomic.Value

// SetBackupArtifactDecoder registers the function used to reconstruct an
// Artifact from a backup.Store blob during a disk-backed rollback. Hosts
// that only rely on the cache's in-memory previous-entry rollback (the
// common case) never need to call this.
func SetBackupArtifactDecoder(decode func([]byte) (Artifact, error)) {
	backupArtifactDecoder.Store(decode)
}

// encodeBackupArtifact is decodeBackupArtifact's counterpart, used when
// snapshotting the current artifact into a Backup before a compile
// attempt. Absent a registered encoder, the Backup still records the
// version (enough for backup.FileStore/backup.MemoryStore bookkeeping and
// for Clear/Restore's presence checks); only the artifact bytes are
// missing, so a disk-backed cold rollback degrades to "no artifact to
// restore" rather than failing to persist at all.
func encodeBackupArtifact(artifact Artifact) []byte {
	if artifact == nil {
		return nil
	}
	if encoder, ok := backupArtifactEncoder.Load().(func(Artifact) ([]byte, error)); ok && encoder != nil {
		if blob, err := encoder(artifact); err == nil {
			return blob
		}
	}
	return nil
}

// backupArtifactEncoder is encodeBackupArtifact's registration point,
// symmetric with backupArtifactDecoder.
var backupArtifactEncoder atomic.Value

// SetBackupArtifactEncoder registers the function used to turn an
// Artifact into bytes before it is handed to backup.Store.Create. Hosts
// that only rely on the cache's in-memory previous-entry rollback (the
// common case) never need to call this.
func SetBackupArtifactEncoder(encode func(Artifact) ([]byte, error)) {
	backupArtifactEncoder.Store(encode)
}
