// typeid.go: stable script identity derived from a source path.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"path/filepath"
	"strings"
)

// TypeId is the stable identifier of a script, derived from its source
// path. It keys the cache and the backup store.
type TypeId string

// DeriveTypeId normalizes a source path into a TypeId: relative to base,
// path-separator normalized, lower-cased, extension stripped.
//
// Rename is not reload: DeriveTypeId depends only on the current path, so
// renaming a.src to b.src produces a brand new TypeId for b and never
// touches a's existing cache entry.
func DeriveTypeId(base, path string) TypeId {
	rel := path
	if base != "" {
		if r, err := filepath.Rel(base, path); err == nil {
			rel = r
		}
	}

	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	rel = strings.ToLower(rel)
	rel = strings.TrimPrefix(rel, "./")

	return TypeId(rel)
}

// String returns the TypeId as a plain string, satisfying fmt.Stringer.
func (t TypeId) String() string {
	return string(t)
}
