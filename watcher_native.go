// watcher_native.go: OS-notification-backed change detector.
//
// The teacher has no native adapter at all (argus is deliberately polling-
// only). Grounded on k-kohey-axe-cli's use of fsnotify, the one example
// repo in the retrieval pack that wires a native filesystem-event library.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/fsnotify/fsnotify"
)

// NativeWatcher subscribes to the OS file-notification facility. Fast and
// low-CPU, but known to silently drop events on network shares, containers,
// and mounted foreign filesystems — the Factory routes those paths to
// PollingWatcher instead.
type NativeWatcher struct {
	fsw *fsnotify.Watcher

	running atomic.Bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewNativeWatcher creates a native adapter.
func NewNativeWatcher() *NativeWatcher {
	return &NativeWatcher{}
}

// Start implements Watcher.
func (w *NativeWatcher) Start(ctx context.Context, dir string, filter Filter) (<-chan FileEvent, <-chan error, error) {
	if !w.running.CompareAndSwap(false, true) {
		return nil, nil, errors.New(ErrCodeWatcherBusy, "native watcher is already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.running.Store(false)
		return nil, nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to create native watcher")
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		w.running.Store(false)
		return nil, nil, errors.Wrap(err, ErrCodeFileNotFound, "failed to watch directory").WithContext("dir", dir)
	}
	w.fsw = fsw
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})

	events := make(chan FileEvent, 256)
	errs := make(chan error, 16)

	go func() {
		defer close(w.done)
		defer close(events)

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return

			case ev, ok := <-fsw.Events:
				if !ok {
					// Fatal: the underlying notification stream ended.
					return
				}
				if !filter.Match(ev.Name) {
					continue
				}
				kind, ok := translate(ev.Op)
				if !ok {
					continue
				}
				select {
				case events <- FileEvent{Path: ev.Name, Kind: kind, ObservedAt: time.Now()}:
				default:
				}

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				select {
				case errs <- errors.Wrap(err, ErrCodeFileNotFound, "native watcher error"):
				default:
				}
			}
		}
	}()

	return events, errs, nil
}

// translate maps an fsnotify op bitmask to an EventKind. A rename
// surfaces here as EventRenamed for the *old* path (fsnotify fires a
// second Create for the new path, which becomes a brand new TypeId —
// rename is not reload, see DESIGN.md).
func translate(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return EventCreated, true
	case op&fsnotify.Write != 0:
		return EventModified, true
	case op&fsnotify.Rename != 0:
		return EventRenamed, true
	case op&fsnotify.Remove != 0:
		return EventDeleted, true
	default:
		return 0, false
	}
}

// Stop implements Watcher.
func (w *NativeWatcher) Stop() error {
	if !w.running.CompareAndSwap(true, false) {
		return nil
	}
	close(w.stopCh)
	<-w.done
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// Reliability implements Watcher.
func (w *NativeWatcher) Reliability() int { return 85 }

// CPUOverheadPercent implements Watcher.
func (w *NativeWatcher) CPUOverheadPercent() float64 { return 0.5 }
