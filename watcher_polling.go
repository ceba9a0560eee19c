// watcher_polling.go: timestamp-polling change detector.
//
// Adapted from the teacher's argus.go: lock-free atomic.Pointer copy-on-
// write stat cache (getStat/updateCache/removeFromCache), a sequential
// per-tick directory scan, feeding events into an MPSC ring buffer
// (ring.go) instead of calling callbacks directly.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// DefaultPollInterval matches spec.md §4.1's polling adapter default.
const DefaultPollInterval = 250 * time.Millisecond

// fileStat is a cached os.Stat result, held by value to avoid use-after-
// free under concurrent copy-on-write cache updates.
type fileStat struct {
	modTime  time.Time
	size     int64
	exists   bool
	cachedAt int64
}

func (fs fileStat) isExpired(ttl time.Duration) bool {
	return (timecache.CachedTimeNano() - fs.cachedAt) > int64(ttl)
}

// PollingWatcher scans file modification timestamps at a fixed interval.
// 100% reliable across network shares, containers, and mounted foreign
// filesystems, at the cost of bounded latency and a few percent CPU.
type PollingWatcher struct {
	interval time.Duration
	cacheTTL time.Duration

	statCache atomic.Pointer[map[string]fileStat]

	filesMu sync.RWMutex
	files   map[string]fileStat

	running atomic.Bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewPollingWatcher creates a polling adapter. interval <= 0 uses
// DefaultPollInterval; cacheTTL <= 0 uses interval/2.
func NewPollingWatcher(interval, cacheTTL time.Duration) *PollingWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if cacheTTL <= 0 || cacheTTL > interval {
		cacheTTL = interval / 2
	}
	w := &PollingWatcher{
		interval: interval,
		cacheTTL: cacheTTL,
		files:    make(map[string]fileStat),
	}
	empty := make(map[string]fileStat)
	w.statCache.Store(&empty)
	return w
}

// Start implements Watcher.
func (w *PollingWatcher) Start(ctx context.Context, dir string, filter Filter) (<-chan FileEvent, <-chan error, error) {
	if !w.running.CompareAndSwap(false, true) {
		return nil, nil, errors.New(ErrCodeWatcherBusy, "polling watcher is already running")
	}

	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})

	events := make(chan FileEvent, 256)
	errs := make(chan error, 16)

	stopCh := w.stopCh
	ring := newEventRing(128, 4, func(evt FileEvent) {
		// Slow consumer: wait here, on the ring's own goroutine, rather
		// than drop. The poll loop never blocks: once the ring is full its
		// writes fail and the next tick re-observes the same delta.
		select {
		case events <- evt:
		case <-ctx.Done():
		case <-stopCh:
		}
	})
	ringDone := make(chan struct{})
	go func() {
		ring.run()
		close(ringDone)
	}()

	go func() {
		defer close(w.done)
		defer close(events)
		// The ring's consumer must be finished before events is closed.
		defer func() {
			ring.Stop()
			<-ringDone
		}()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.poll(dir, filter, ring, errs)
			}
		}
	}()

	return events, errs, nil
}

// Stop implements Watcher.
func (w *PollingWatcher) Stop() error {
	if !w.running.CompareAndSwap(true, false) {
		return nil
	}
	close(w.stopCh)
	<-w.done
	return nil
}

// Reliability implements Watcher: polling never misses an edit.
func (w *PollingWatcher) Reliability() int { return 100 }

// CPUOverheadPercent implements Watcher.
func (w *PollingWatcher) CPUOverheadPercent() float64 { return 4.0 }

func (w *PollingWatcher) poll(dir string, filter Filter, ring *eventRing, errs chan<- error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		select {
		case errs <- errors.Wrap(err, ErrCodeFileNotFound, "failed to read watch directory").WithContext("dir", dir):
		default:
		}
		return
	}

	w.filesMu.Lock()
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := dir + string(os.PathSeparator) + entry.Name()
		if !filter.Match(path) {
			continue
		}
		seen[path] = struct{}{}
		w.checkFile(path, ring)
	}

	// Files that dropped out of the directory listing are deletions; the
	// orchestrator ignores these (reload-on-delete is a non-goal), but we
	// still retire the cached stat so a later re-creation is seen fresh.
	for path := range w.files {
		if _, ok := seen[path]; !ok {
			delete(w.files, path)
			w.removeFromCache(path)
		}
	}
	w.filesMu.Unlock()
}

// checkFile compares the current stat against the last known one and
// writes a Created/Modified event into the ring when it differs. Caller
// holds filesMu.
func (w *PollingWatcher) checkFile(path string, ring *eventRing) {
	current, err := w.getStat(path)
	if err != nil {
		return
	}

	prev, known := w.files[path]

	// The new stat is recorded only once its event is in the ring, so a
	// write dropped on a full ring is seen again on the next tick.
	now := time.Now()
	switch {
	case !known:
		if !ring.Write(FileEvent{Path: path, Kind: EventCreated, ObservedAt: now}) {
			return
		}
	case current.modTime != prev.modTime || current.size != prev.size:
		if !ring.Write(FileEvent{Path: path, Kind: EventModified, ObservedAt: now}) {
			return
		}
	}
	w.files[path] = current
}

// getStat returns a cached stat, refreshing it from the filesystem when
// expired. Lock-free fast path via atomic.Pointer; copy-on-write slow path
// on cache miss, exactly as the teacher's Watcher.getStat does.
func (w *PollingWatcher) getStat(path string) (fileStat, error) {
	cache := *w.statCache.Load()
	if cached, ok := cache[path]; ok && !cached.isExpired(w.cacheTTL) {
		return cached, nil
	}

	info, err := os.Stat(path)
	stat := fileStat{
		cachedAt: timecache.CachedTimeNano(),
		exists:   err == nil,
	}
	if err == nil {
		stat.modTime = info.ModTime()
		stat.size = info.Size()
	}

	w.updateCache(path, stat)
	return stat, err
}

func (w *PollingWatcher) updateCache(path string, stat fileStat) {
	for {
		oldPtr := w.statCache.Load()
		old := *oldPtr
		next := make(map[string]fileStat, len(old)+1)
		for k, v := range old {
			next[k] = v
		}
		next[path] = stat
		if w.statCache.CompareAndSwap(oldPtr, &next) {
			return
		}
	}
}

func (w *PollingWatcher) removeFromCache(path string) {
	for {
		oldPtr := w.statCache.Load()
		old := *oldPtr
		if _, ok := old[path]; !ok {
			return
		}
		next := make(map[string]fileStat, len(old)-1)
		for k, v := range old {
			if k != path {
				next[k] = v
			}
		}
		if w.statCache.CompareAndSwap(oldPtr, &next) {
			return
		}
	}
}
