// ring.go: MPSC ring buffer for file-change events, adapted from the
// teacher's BoreasLite (boreaslite.go) — same atomic writer/reader cursor
// and per-slot availability-marker discipline, retargeted to carry this
// runtime's FileEvent instead of Argus's ChangeEvent.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"runtime"
	"sync/atomic"
	"time"
)

// ringEvent is the fixed-size event record stored in the ring buffer.
type ringEvent struct {
	ObservedAt int64 // UnixNano
	Kind       EventKind
	Path       [110]byte
	PathLen    uint8
}

// eventRing is an ultra-fast MPSC ring buffer for FileEvents: many writer
// goroutines can write concurrently, one consumer goroutine drains it and
// hands events on. The PollingWatcher is its only user, writing from its
// single poll goroutine.
type eventRing struct {
	buffer   []ringEvent
	capacity int64
	mask     int64

	writerCursor atomic.Int64
	readerCursor atomic.Int64
	_            [48]byte // padding against false sharing

	availableBuffer []atomic.Int64

	processor func(FileEvent)

	batchSize int64
	running   atomic.Bool

	processed atomic.Int64
	dropped   atomic.Int64
}

// newEventRing creates a ring buffer of the given capacity feeding events
// to processor. capacity must be a power of two; any other value
// (including <= 0) is replaced by 64.
func newEventRing(capacity int64, batchSize int64, processor func(FileEvent)) *eventRing {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		capacity = 64
	}
	if batchSize <= 0 {
		batchSize = 4
	}

	r := &eventRing{
		buffer:          make([]ringEvent, capacity),
		capacity:        capacity,
		mask:            capacity - 1,
		availableBuffer: make([]atomic.Int64, capacity),
		processor:       processor,
		batchSize:       batchSize,
	}
	for i := range r.availableBuffer {
		r.availableBuffer[i].Store(-1)
	}
	r.running.Store(true)
	return r
}

// Write enqueues a FileEvent. Returns false if the ring is full or closed;
// callers treat a full ring as a lost coalescing opportunity, not a
// correctness problem, since the next poll tick will observe the same
// modtime/size delta again.
func (r *eventRing) Write(evt FileEvent) bool {
	if !r.running.Load() {
		r.dropped.Add(1)
		return false
	}

	// Claim a slot only when there is room: advancing the writer cursor
	// for a dropped write would leave a sequence number that is never
	// marked available, and the reader would stall on it forever.
	var seq int64
	for {
		seq = r.writerCursor.Load()
		if seq >= r.readerCursor.Load()+r.capacity {
			r.dropped.Add(1)
			return false
		}
		if r.writerCursor.CompareAndSwap(seq, seq+1) {
			break
		}
	}

	slot := &r.buffer[seq&r.mask]
	slot.ObservedAt = evt.ObservedAt.UnixNano()
	slot.Kind = evt.Kind

	pathBytes := []byte(evt.Path)
	n := len(pathBytes)
	if n > len(slot.Path)-1 {
		n = len(slot.Path) - 1
	}
	copy(slot.Path[:], pathBytes[:n])
	slot.PathLen = uint8(n) // #nosec G115 -- n bounded above by len(slot.Path)-1

	r.availableBuffer[seq&r.mask].Store(seq)
	return true
}

// processBatch drains whatever contiguous run of events is currently
// available, up to batchSize, and returns how many were processed.
func (r *eventRing) processBatch() int {
	current := r.readerCursor.Load()
	writerPos := r.writerCursor.Load()
	if current >= writerPos {
		return 0
	}

	maxProcess := r.batchSize
	if remaining := writerPos - current; remaining < maxProcess {
		maxProcess = remaining
	}

	available := current - 1
	for seq := current; seq < current+maxProcess; seq++ {
		if r.availableBuffer[seq&r.mask].Load() == seq {
			available = seq
		} else {
			break
		}
	}
	if available < current {
		return 0
	}

	for seq := current; seq <= available; seq++ {
		idx := seq & r.mask
		slot := &r.buffer[idx]
		r.processor(FileEvent{
			Path:       string(slot.Path[:slot.PathLen]),
			Kind:       slot.Kind,
			ObservedAt: time.Unix(0, slot.ObservedAt),
		})
		r.availableBuffer[idx].Store(-1)
	}

	processed := int(available - current + 1)
	r.readerCursor.Store(available + 1)
	r.processed.Add(int64(processed))
	return processed
}

// run drains the ring until Stop is called, backing off from hot spinning
// to periodic sleeping the way the teacher's RunProcessor does.
func (r *eventRing) run() {
	spins := 0
	for r.running.Load() {
		if r.processBatch() > 0 {
			spins = 0
			continue
		}
		spins++
		switch {
		case spins < 2000:
		case spins < 8000:
			if spins&7 == 0 {
				runtime.Gosched()
			}
		default:
			time.Sleep(200 * time.Microsecond)
			spins = 0
		}
	}

	drainAttempts := 0
	for r.processBatch() > 0 && drainAttempts < 1000 {
		drainAttempts++
	}
}

// Stop halts the consumer loop. In-flight writes may still be observed
// during the final drain inside run().
func (r *eventRing) Stop() {
	r.running.Store(false)
}

// stats exposes minimal counters for diagnostics, same shape as the
// teacher's BoreasLite.Stats.
func (r *eventRing) stats() map[string]int64 {
	writerPos := r.writerCursor.Load()
	readerPos := r.readerCursor.Load()
	return map[string]int64{
		"writer_position": writerPos,
		"reader_position": readerPos,
		"buffer_size":     r.capacity,
		"items_buffered":  writerPos - readerPos,
		"items_processed": r.processed.Load(),
		"items_dropped":   r.dropped.Load(),
	}
}
