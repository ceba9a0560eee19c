// errors.go: error codes shared across the scripting runtime.
//
// Follows the teacher convention of one SCOPE_REASON constant block per
// concern, wrapped with github.com/agilira/go-errors so every error carries
// a stable machine-readable code plus structured context.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

const (
	// ErrCodeInvalidConfig flags a malformed OrchestratorConfig or Config.
	ErrCodeInvalidConfig = "SCRIPTRT_INVALID_CONFIG"

	// ErrCodeWatcherBusy flags a Start call on an already-running watcher.
	ErrCodeWatcherBusy = "SCRIPTRT_WATCHER_BUSY"

	// ErrCodeWatcherStopped flags an operation on a watcher that isn't running.
	ErrCodeWatcherStopped = "SCRIPTRT_WATCHER_STOPPED"

	// ErrCodeFileNotFound flags a stat failure that isn't "file deleted".
	ErrCodeFileNotFound = "SCRIPTRT_FILE_NOT_FOUND"

	// ErrCodeCompileFailed flags a compiler result with success=false.
	ErrCodeCompileFailed = "SCRIPTRT_COMPILE_FAILED"

	// ErrCodeContractViolation flags a compiled artifact that does not
	// resolve to a type implementing the script contract.
	ErrCodeContractViolation = "SCRIPTRT_CONTRACT_VIOLATION"

	// ErrCodeCacheInvariant flags an impossible cache state, treated as a
	// bug: the offending entry is removed rather than served.
	ErrCodeCacheInvariant = "SCRIPTRT_CACHE_INVARIANT"

	// ErrCodeNotFound flags a lookup for a TypeId with no cache entry.
	ErrCodeNotFound = "SCRIPTRT_NOT_FOUND"

	// ErrCodeOrchestratorState flags an operation attempted outside the
	// Running state.
	ErrCodeOrchestratorState = "SCRIPTRT_ORCHESTRATOR_STATE"

	// ErrCodeComponentMissing flags Get[T] called with no component T
	// present on the entity.
	ErrCodeComponentMissing = "SCRIPTRT_COMPONENT_MISSING"

	// ErrCodeNoEntity flags an entity-scoped operation on a global context.
	ErrCodeNoEntity = "SCRIPTRT_NO_ENTITY"
)
