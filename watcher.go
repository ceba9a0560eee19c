// watcher.go: the change-detector contract (spec.md §4.1).
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"time"
)

// EventKind classifies a FileEvent.
type EventKind int

const (
	// EventCreated reports a new file matching the watch filter.
	EventCreated EventKind = iota
	// EventModified reports a content or metadata change to a watched file.
	EventModified
	// EventRenamed reports that a watched file was renamed away; the event
	// carries the old path. The orchestrator ignores it, and the
	// destination path arrives as an EventCreated for a brand new TypeId
	// (rename is not reload, see DESIGN.md).
	EventRenamed
	// EventDeleted reports file removal. The orchestrator ignores these:
	// reload-on-delete is a non-goal.
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventRenamed:
		return "renamed"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileEvent is a coalesced notification of a change to a watched file.
type FileEvent struct {
	Path       string
	Kind       EventKind
	ObservedAt time.Time
}

// WatcherStrategy selects which Watcher implementation the Factory builds.
type WatcherStrategy int

const (
	// StrategyAuto lets the Factory inspect the path and decide.
	StrategyAuto WatcherStrategy = iota
	// StrategyNative forces the OS-notification adapter.
	StrategyNative
	// StrategyPolling forces the timestamp-polling adapter.
	StrategyPolling
)

// Watcher is the change-detector contract: start(dir, filter) -> stream of
// FileEvent, stop(). Implementations must be safe to Stop concurrently with
// event delivery.
type Watcher interface {
	// Start begins watching dir for files matching filter. The returned
	// event channel is closed when the watcher stops (including on a
	// fatal error); the returned error channel carries transient errors
	// and is never closed while the watcher is running.
	Start(ctx context.Context, dir string, filter Filter) (<-chan FileEvent, <-chan error, error)

	// Stop releases all watcher resources. Safe to call concurrently with
	// event delivery and safe to call more than once.
	Stop() error

	// Reliability reports how dependable this adapter's notifications are
	// on the current platform, in [0, 100].
	Reliability() int

	// CPUOverheadPercent reports this adapter's approximate steady-state
	// CPU cost.
	CPUOverheadPercent() float64
}

// Filter restricts a Watcher to files of interest.
type Filter struct {
	// Extensions is the set of file extensions to watch, e.g. ".src". An
	// empty slice matches every file.
	Extensions []string
}

// Match reports whether path satisfies the filter.
func (f Filter) Match(path string) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	ext := extOf(path)
	for _, want := range f.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

func extOf(path string) string {
	dot := -1
	for i := len(path) - 1; i >= 0 && path[i] != '/' && path[i] != '\\'; i-- {
		if path[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return ""
	}
	return path[dot:]
}
