// config.go: orchestrator tuning knobs and validation.
//
// Adapted from the teacher's config.go/config_validation.go defaulting
// and validation style (WithDefaults + Validate returning the first
// go-errors failure it finds), scoped down to the runtime-tuning knobs this
// package actually needs — not configuration *loading*, which spec.md
// explicitly excludes (see DESIGN.md).
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"time"

	"github.com/agilira/go-errors"
)

// OrchestratorConfig tunes the Reload Orchestrator. Zero-value fields are
// replaced by WithDefaults with the values spec.md §4.2/§4.1 specify.
type OrchestratorConfig struct {
	// DebounceWindow is how long to wait, per TypeId, for the file to stop
	// changing before compiling. Default 300ms.
	DebounceWindow time.Duration

	// WatcherStrategy forces a specific change-detection adapter.
	// Default StrategyAuto.
	WatcherStrategy WatcherStrategy

	// PollInterval is the polling adapter's scan period, consulted only
	// when the chosen adapter ends up being PollingWatcher. Default 250ms.
	PollInterval time.Duration

	// PollCacheTTL is the polling adapter's stat-cache TTL. Default
	// PollInterval/2.
	PollCacheTTL time.Duration

	// MaxDiagnostics caps how many Diagnostics a failed-compile
	// Notification carries, to keep a script with thousands of syntax
	// errors from flooding the sink. Default 50; WithDefaults replaces 0
	// with 50, so there is no unlimited setting.
	MaxDiagnostics int

	// Extensions restricts the watched file set. Default nil, meaning
	// every file in the directory is watched; most hosts set this to
	// their script file extension(s), e.g. []string{".lua"}.
	Extensions []string

	// Sink receives reload/rollback/error Notifications. Default
	// NullSink.
	Sink NotificationSink
}

// WithDefaults returns a copy of c with every zero-value field replaced by
// its spec default.
func (c OrchestratorConfig) WithDefaults() OrchestratorConfig {
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = DefaultDebounceWindow
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollCacheTTL <= 0 {
		c.PollCacheTTL = c.PollInterval / 2
	}
	if c.MaxDiagnostics == 0 {
		c.MaxDiagnostics = 50
	}
	if c.Sink == nil {
		c.Sink = NullSink{}
	}
	return c
}

// Validate reports a structured error for any setting outside its
// supported range. Called by NewOrchestrator before anything starts.
func (c OrchestratorConfig) Validate() error {
	if c.DebounceWindow < 0 {
		return errors.New(ErrCodeInvalidConfig, "debounce window must not be negative").
			WithContext("debounce_window", c.DebounceWindow.String())
	}
	if c.PollInterval < 0 {
		return errors.New(ErrCodeInvalidConfig, "poll interval must not be negative").
			WithContext("poll_interval", c.PollInterval.String())
	}
	if c.MaxDiagnostics < 0 {
		return errors.New(ErrCodeInvalidConfig, "max diagnostics must not be negative").
			WithContext("max_diagnostics", c.MaxDiagnostics)
	}
	switch c.WatcherStrategy {
	case StrategyAuto, StrategyNative, StrategyPolling:
	default:
		return errors.New(ErrCodeInvalidConfig, "unknown watcher strategy").
			WithContext("strategy", int(c.WatcherStrategy))
	}
	return nil
}
