// Package auditlog is a buffered, background-flushed, SHA-256
// checksummed JSONL event log for the reload orchestrator, adapted from
// the teacher's AuditLogger (audit.go) and retargeted from
// config-change events to reload_attempt / reload_success /
// reload_rollback / hook_failure / watch_error events.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package auditlog

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

// EventKind classifies a logged Event.
type EventKind string

const (
	EventReloadAttempt  EventKind = "reload_attempt"
	EventReloadSuccess  EventKind = "reload_success"
	EventReloadRollback EventKind = "reload_rollback"
	EventHookFailure    EventKind = "hook_failure"
	EventWatchError     EventKind = "watch_error"
)

// Event is one JSONL record. Checksum guards against silent tampering of
// the log file at rest, exactly as the teacher's AuditEvent does.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Kind      EventKind              `json:"kind"`
	TypeId    string                 `json:"type_id,omitempty"`
	Version   uint64                 `json:"version,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	ProcessID int                    `json:"process_id"`
	Checksum  string                 `json:"checksum"`
}

// Config configures the Logger.
type Config struct {
	OutputFile    string
	BufferSize    int
	FlushInterval time.Duration
}

// DefaultConfig mirrors the teacher's DefaultAuditConfig shape, retargeted
// to this runtime's own temp-dir subpath.
func DefaultConfig() Config {
	return Config{
		OutputFile:    filepath.Join(os.TempDir(), "scriptrt", "reload-events.jsonl"),
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}
}

// Logger is a buffered, background-flushed event log.
type Logger struct {
	cfg       Config
	file      *os.File
	buffer    []Event
	bufferMu  sync.Mutex
	ticker    *time.Ticker
	stopCh    chan struct{}
	processID int
}

// New creates a Logger, opening (and creating, if absent) cfg.OutputFile
// in append mode.
func New(cfg Config) (*Logger, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}

	l := &Logger{
		cfg:       cfg,
		buffer:    make([]Event, 0, cfg.BufferSize),
		stopCh:    make(chan struct{}),
		processID: os.Getpid(),
	}

	if cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0750); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log file: %w", err)
		}
		l.file = file
	}

	if cfg.FlushInterval > 0 {
		l.ticker = time.NewTicker(cfg.FlushInterval)
		go l.flushLoop()
	}

	return l, nil
}

// Log records one event, flushing immediately if the buffer is full.
func (l *Logger) Log(kind EventKind, typeID string, version uint64, message string, ctx map[string]interface{}) {
	event := Event{
		Timestamp: timecache.CachedTime(),
		Kind:      kind,
		TypeId:    typeID,
		Version:   version,
		Message:   message,
		Context:   ctx,
		ProcessID: l.processID,
	}
	event.Checksum = l.checksum(event)

	l.bufferMu.Lock()
	l.buffer = append(l.buffer, event)
	if len(l.buffer) >= l.cfg.BufferSize {
		l.flushLocked()
	}
	l.bufferMu.Unlock()
}

// Flush immediately writes all buffered events.
func (l *Logger) Flush() error {
	l.bufferMu.Lock()
	defer l.bufferMu.Unlock()
	return l.flushLocked()
}

// Close stops the background flusher, flushes, and closes the file.
func (l *Logger) Close() error {
	close(l.stopCh)
	if l.ticker != nil {
		l.ticker.Stop()
	}
	if err := l.Flush(); err != nil {
		return err
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) flushLoop() {
	for {
		select {
		case <-l.ticker.C:
			_ = l.Flush()
		case <-l.stopCh:
			return
		}
	}
}

func (l *Logger) flushLocked() error {
	if len(l.buffer) == 0 || l.file == nil {
		return nil
	}
	for _, event := range l.buffer {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = l.file.Write(data)
		_, _ = l.file.Write([]byte("\n"))
	}
	_ = l.file.Sync()
	l.buffer = l.buffer[:0]
	return nil
}

func (l *Logger) checksum(e Event) string {
	data := fmt.Sprintf("%s:%s:%s:%d:%s", e.Timestamp.Format(time.RFC3339Nano), e.Kind, e.TypeId, e.Version, e.Message)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
