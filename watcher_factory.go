// watcher_factory.go: platform heuristics for picking a Watcher.
//
// The factory is the only component that encodes platform heuristics
// (spec.md §4.1); the orchestrator stays oblivious to which adapter it got.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"os"
	"strings"
	"time"
)

// containerMarkers are paths whose presence indicates we're inside a
// container overlay filesystem, where native notifications are known to
// silently drop events.
var containerMarkers = []string{
	"/.dockerenv",
}

// NewWatcher picks Polling for UNC paths, network-share mounts, and
// container-overlay filesystems, and Native everywhere else, unless
// strategy forces a specific adapter. pollInterval/cacheTTL are only
// consulted when the chosen adapter ends up being PollingWatcher.
func NewWatcher(strategy WatcherStrategy, dir string, pollInterval, cacheTTL time.Duration) Watcher {
	switch strategy {
	case StrategyNative:
		return NewNativeWatcher()
	case StrategyPolling:
		return NewPollingWatcher(pollInterval, cacheTTL)
	default:
		if needsPolling(dir) {
			return NewPollingWatcher(pollInterval, cacheTTL)
		}
		return NewNativeWatcher()
	}
}

func needsPolling(dir string) bool {
	if strings.HasPrefix(dir, `\\`) {
		return true // UNC path
	}

	lower := strings.ToLower(filepathToSlash(dir))
	for _, marker := range []string{"/mnt/", "/media/", "/volumes/", "/net/"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, marker := range []string{"/var/lib/docker", "/var/lib/containerd"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, marker := range containerMarkers {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}
	return false
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
