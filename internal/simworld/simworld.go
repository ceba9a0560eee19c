// Package simworld is a minimal reference World implementation (see the
// root scripting.World interface), used by this module's own tests and
// as a worked example for hosts wiring their own entity store.
//
// Entities are identified by uuid.UUID (google/uuid), grounded on the
// yanhool-picoclaw and celestiaorg-popsigner example repos' use of
// google/uuid for handle generation — the teacher itself has no entity
// concept to borrow from.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package simworld

import (
	"reflect"
	"sync"

	"github.com/google/uuid"

	scripting "github.com/fuddlesworth/PokeSharp-sub010"
)

// Entity is an opaque per-entity handle.
type Entity uuid.UUID

// String implements fmt.Stringer.
func (e Entity) String() string {
	return uuid.UUID(e).String()
}

// World is a lock-protected map-of-maps component store:
// entity -> reflect.Type -> component value.
type World struct {
	mu         sync.RWMutex
	components map[Entity]map[reflect.Type]interface{}
}

// New creates an empty World.
func New() *World {
	return &World{components: make(map[Entity]map[reflect.Type]interface{})}
}

// Spawn creates a new Entity with no components attached.
func (w *World) Spawn() Entity {
	e := Entity(uuid.New())
	w.mu.Lock()
	w.components[e] = make(map[reflect.Type]interface{})
	w.mu.Unlock()
	return e
}

// Despawn removes an entity and all of its components.
func (w *World) Despawn(e Entity) {
	w.mu.Lock()
	delete(w.components, e)
	w.mu.Unlock()
}

// Component implements scripting.World.
func (w *World) Component(entity scripting.EntityId, t reflect.Type) (interface{}, bool) {
	e, ok := entity.(Entity)
	if !ok {
		return nil, false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	bag, ok := w.components[e]
	if !ok {
		return nil, false
	}
	v, ok := bag[t]
	return v, ok
}

// SetComponent implements scripting.World.
func (w *World) SetComponent(entity scripting.EntityId, component interface{}) {
	e, ok := entity.(Entity)
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	bag, ok := w.components[e]
	if !ok {
		bag = make(map[reflect.Type]interface{})
		w.components[e] = bag
	}
	bag[reflect.TypeOf(component)] = component
}

// RemoveComponent implements scripting.World.
func (w *World) RemoveComponent(entity scripting.EntityId, t reflect.Type) bool {
	e, ok := entity.(Entity)
	if !ok {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	bag, ok := w.components[e]
	if !ok {
		return false
	}
	if _, present := bag[t]; !present {
		return false
	}
	delete(bag, t)
	return true
}
