// file.go: SQLite-backed backup.Store, adapted from the teacher's
// audit_backend.go sqliteAuditBackend — same WAL-mode pragma string and
// open/ping/schema-init sequence, retargeted from append-only audit rows
// to one upserted row per TypeId. Every Create also rewrites a YAML
// sidecar summarizing the current backup set for human inspection,
// mirroring the teacher's habit of keeping a queryable store and a
// human-readable trail side by side.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package backup

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	goerrors "github.com/agilira/go-errors"
	_ "github.com/mattn/go-sqlite3"
	yaml "go.yaml.in/yaml/v3"
)

const (
	errCodeBackupIO     = "SCRIPTRT_BACKUP_IO"
	errCodeBackupSchema = "SCRIPTRT_BACKUP_SCHEMA"
)

// FileStore is a durable backup.Store backed by a SQLite database, with a
// backups.yaml sidecar written alongside it on every mutation.
type FileStore struct {
	db         *sql.DB
	dbPath     string
	yamlPath   string
	upsertStmt *sql.Stmt

	mu     sync.Mutex
	closed bool
}

type sidecarEntry struct {
	TypeId    string    `yaml:"type_id"`
	Version   uint64    `yaml:"version"`
	CreatedAt time.Time `yaml:"created_at"`
}

// NewFileStore opens (creating if absent) a SQLite database at dbPath and
// prepares a backups.yaml sidecar next to it.
func NewFileStore(dbPath string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, goerrors.Wrap(err, errCodeBackupIO, "failed to create backup store directory")
	}

	db, err := openSQLiteDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	s := &FileStore{
		db:       db,
		dbPath:   dbPath,
		yamlPath: filepath.Join(filepath.Dir(dbPath), "backups.yaml"),
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// openSQLiteDatabase opens a WAL-mode SQLite connection tuned the same
// way the teacher tunes its audit database: readers never block writers,
// a generous busy timeout absorbs concurrent access from CLI tooling
// inspecting the store while the orchestrator writes to it.
func openSQLiteDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf(
		"%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=1000", dbPath))
	if err != nil {
		return nil, goerrors.Wrap(err, errCodeBackupIO, "failed to open backup database")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, errCodeBackupIO, "failed to ping backup database")
	}
	return db, nil
}

func (s *FileStore) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS backups (
	type_id    TEXT PRIMARY KEY,
	artifact   BLOB,
	version    INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return goerrors.Wrap(err, errCodeBackupSchema, "failed to initialize backup schema")
	}
	return nil
}

func (s *FileStore) prepareStatements() error {
	stmt, err := s.db.Prepare(`
INSERT INTO backups (type_id, artifact, version, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(type_id) DO UPDATE SET
	artifact = excluded.artifact,
	version = excluded.version,
	created_at = excluded.created_at`)
	if err != nil {
		return goerrors.Wrap(err, errCodeBackupSchema, "failed to prepare upsert statement")
	}
	s.upsertStmt = stmt
	return nil
}

// Create implements Store.
func (s *FileStore) Create(typeID string, blob []byte, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return goerrors.New(errCodeBackupIO, "backup store is closed")
	}

	now := time.Now()
	if _, err := s.upsertStmt.Exec(typeID, blob, version, now.UnixNano()); err != nil {
		return goerrors.Wrap(err, errCodeBackupIO, "failed to upsert backup").WithContext("type_id", typeID)
	}
	return s.writeSidecarLocked()
}

// Restore implements Store.
func (s *FileStore) Restore(typeID string) (Backup, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Backup{}, false, goerrors.New(errCodeBackupIO, "backup store is closed")
	}

	row := s.db.QueryRow(`SELECT artifact, version, created_at FROM backups WHERE type_id = ?`, typeID)
	var blob []byte
	var version uint64
	var createdNanos int64
	if err := row.Scan(&blob, &version, &createdNanos); err != nil {
		if err == sql.ErrNoRows {
			return Backup{}, false, nil
		}
		return Backup{}, false, goerrors.Wrap(err, errCodeBackupIO, "failed to restore backup").WithContext("type_id", typeID)
	}
	return Backup{
		TypeId:       typeID,
		ArtifactBlob: blob,
		Version:      version,
		CreatedAt:    time.Unix(0, createdNanos),
	}, true, nil
}

// Clear implements Store.
func (s *FileStore) Clear(typeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return goerrors.New(errCodeBackupIO, "backup store is closed")
	}
	if _, err := s.db.Exec(`DELETE FROM backups WHERE type_id = ?`, typeID); err != nil {
		return goerrors.Wrap(err, errCodeBackupIO, "failed to clear backup").WithContext("type_id", typeID)
	}
	return s.writeSidecarLocked()
}

// writeSidecarLocked rewrites backups.yaml from the current table
// contents. Caller holds s.mu. Best-effort: a failure here does not
// invalidate the SQLite write that triggered it, since SQLite remains
// the source of truth for restore.
func (s *FileStore) writeSidecarLocked() error {
	rows, err := s.db.Query(`SELECT type_id, version, created_at FROM backups ORDER BY type_id`)
	if err != nil {
		return goerrors.Wrap(err, errCodeBackupIO, "failed to list backups for sidecar")
	}
	defer rows.Close()

	var entries []sidecarEntry
	for rows.Next() {
		var e sidecarEntry
		var createdNanos int64
		if err := rows.Scan(&e.TypeId, &e.Version, &createdNanos); err != nil {
			return goerrors.Wrap(err, errCodeBackupIO, "failed to scan sidecar row")
		}
		e.CreatedAt = time.Unix(0, createdNanos)
		entries = append(entries, e)
	}

	out, err := yaml.Marshal(entries)
	if err != nil {
		return goerrors.Wrap(err, errCodeBackupIO, "failed to marshal backups sidecar")
	}
	return os.WriteFile(s.yamlPath, out, 0640)
}

// Close implements Store, flushing WAL to disk before releasing the
// connection — same final checkpoint discipline as the teacher's audit
// backend close path.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.upsertStmt != nil {
		_ = s.upsertStmt.Close()
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		_ = s.db.Close()
		return goerrors.Wrap(err, errCodeBackupIO, "failed to checkpoint backup database")
	}
	return s.db.Close()
}
