// Package backup preserves the last-known-good artifact and version for
// each TypeId across the window where the cache has no usable previous
// entry (spec.md §4.4): initial loads, explicit removal, process restart.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package backup

import "time"

// Backup is the last-known-good record for one TypeId. ArtifactBlob is an
// opaque serialized form of the artifact: this package has no notion of
// how to compile or construct one, only how to persist and retrieve its
// bytes.
type Backup struct {
	TypeId       string
	ArtifactBlob []byte
	Version      uint64
	CreatedAt    time.Time
}

// Store persists Backups. Implementations must make Create idempotent: a
// second Create for the same TypeId overwrites rather than duplicates.
type Store interface {
	// Create upserts the backup for typeID. A nil blob with version 0
	// records the "initial load, nothing to back up yet" state.
	Create(typeID string, blob []byte, version uint64) error
	// Restore returns the stored backup for typeID, or ok=false if none
	// exists.
	Restore(typeID string) (b Backup, ok bool, err error)
	// Clear removes the backup for typeID.
	Clear(typeID string) error
	// Close releases any underlying resources.
	Close() error
}
