// context.go: the per-tick handle scripts receive (spec.md §4.5).
//
// Go forbids type parameters on methods, so the generic component
// accessors are free functions taking a *Context, mirroring how the teacher
// exposes generic helpers (e.g. config binding's typed getters) as
// package-level functions rather than methods on a non-generic struct.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"reflect"

	"github.com/agilira/go-errors"
)

// EntityId identifies an entity within a World. Opaque to this package;
// concrete Worlds are free to back it with a uuid, an index, or anything
// else comparable.
type EntityId interface{}

// World is the host application's entity/component store. This package
// ships no concrete implementation: the host provides one (see
// internal/simworld for a reference implementation used by this
// package's own tests).
type World interface {
	// Component returns the component of the given reflect.Type attached
	// to entity, or (nil, false) if entity has no such component.
	Component(entity EntityId, t reflect.Type) (interface{}, bool)
	// SetComponent attaches or replaces the component of its own
	// reflect.Type on entity.
	SetComponent(entity EntityId, component interface{})
	// RemoveComponent detaches the component of type t from entity, if
	// present, and reports whether anything was actually removed.
	RemoveComponent(entity EntityId, t reflect.Type) bool
}

// Services is the facade through which scripts reach host-provided
// capabilities (logging, asset lookup, networking, ...) that are not
// per-entity components. This package defines no fixed method set for
// it: the host decides what it exposes.
type Services interface{}

// Context is the handle passed to every script lifecycle hook. It
// bundles the World, the host Services facade, and the entity the script
// instance is bound to (if any — scripts not bound to a specific entity
// see a nil Entity).
type Context struct {
	World    World
	Services Services
	Entity   EntityId
}

// componentType returns the reflect.Type these accessors key a T
// component's storage slot by: *T, not T. Every accessor below stores and
// retrieves a *T rather than a T, so that the pointer returned to a
// script is the live, shared storage cell — writes through it are
// visible to every subsequent Get/TryGet/GetOrAdd for the same entity and
// type, matching spec.md §4.5's get<T>() -> &mut T contract. Keying by
// *T (rather than T, then boxing separately) also sidesteps
// reflect.TypeOf returning nil for a nil interface zero value when T
// itself is an interface type.
func componentType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil))
}

// Get returns the T-typed component attached to ctx.Entity, panicking
// with an ErrCodeComponentMissing error if absent, or an ErrCodeNoEntity
// error if ctx.Entity is nil.
// Intended for hooks that have already validated the component exists
// (e.g. via Has) and want to avoid repeating the ok-check at every call
// site. The returned pointer is the live storage cell: writes through it
// persist across ticks.
func Get[T any](ctx *Context) *T {
	v, err := TryGet[T](ctx)
	if err != nil {
		panic(err)
	}
	return v
}

// TryGet returns a pointer to the T-typed component attached to
// ctx.Entity. The pointer is the live storage cell, not a copy: writes
// through it are visible to subsequent accessor calls for the same
// entity and type.
func TryGet[T any](ctx *Context) (*T, error) {
	if ctx.Entity == nil {
		return nil, errors.New(ErrCodeNoEntity, "context has no bound entity")
	}
	t := componentType[T]()
	raw, ok := ctx.World.Component(ctx.Entity, t)
	if !ok {
		return nil, errors.New(ErrCodeComponentMissing, "entity has no component of requested type").
			WithContext("component_type", t.String())
	}
	typed, ok := raw.(*T)
	if !ok {
		return nil, errors.New(ErrCodeComponentMissing, "component type assertion failed").
			WithContext("component_type", t.String())
	}
	return typed, nil
}

// Has reports whether ctx.Entity carries a T-typed component.
func Has[T any](ctx *Context) bool {
	_, err := TryGet[T](ctx)
	return err == nil
}

// GetOrAdd returns ctx.Entity's T-typed component, attaching a
// zero-valued one if absent, and returns the live storage cell either
// way.
func GetOrAdd[T any](ctx *Context) *T {
	if existing, err := TryGet[T](ctx); err == nil {
		return existing
	}
	cell := new(T)
	ctx.World.SetComponent(ctx.Entity, cell)
	return cell
}

// Remove detaches the T-typed component from ctx.Entity, reporting
// whether a component was actually present to remove.
func Remove[T any](ctx *Context) bool {
	if ctx.Entity == nil {
		return false
	}
	return ctx.World.RemoveComponent(ctx.Entity, componentType[T]())
}
