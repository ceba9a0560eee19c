// script.go: the script lifecycle contract (spec.md §4.5).
//
// Scripts implement whichever of these optional interfaces they need;
// scriptDriver calls each one defensively, recovering a panicking hook
// the same way the teacher's audit writer recovers a panicking
// destination (audit.go's defer/recover around Write), so one
// misbehaving script can never bring the orchestrator down.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"sync/atomic"

	"github.com/agilira/go-errors"
)

// Script is the minimal handle the cache and orchestrator pass around. A
// concrete script implements whichever lifecycle interfaces below apply
// to it; Script itself carries no methods so that a bare data object
// with no lifecycle hooks at all is still a valid Script.
type Script interface{}

// Initializer is called exactly once per script instance, by the first
// Cache.Tick that reaches the instance, before Activator or Ticker run.
type Initializer interface {
	Initialize(ctx *Context) error
}

// Activator is called once per script instance, right after Initialize,
// by the first Cache.Tick that reaches the instance. Every new version
// gets a new instance, so a ticked script sees Activate once per reload
// cycle.
type Activator interface {
	Activate(ctx *Context) error
}

// Ticker is called on every engine tick while this version is current.
type Ticker interface {
	Tick(ctx *Context, dt float64) error
}

// Deactivator is called through Cache.Deactivate, which a host invokes
// explicitly. The cache never calls it on its own when a newer version
// replaces an instance or a rollback abandons one.
type Deactivator interface {
	Deactivate(ctx *Context) error
}

// scriptDriver wraps lifecycle calls to a single Script instance with
// panic recovery and an initialized-once guard, and counts hook failures
// (see Failures). The count is not fed into ReloadStats.
type scriptDriver struct {
	script      Script
	initialized atomic.Bool
	activated   atomic.Bool
	failures    atomic.Int64
}

func newScriptDriver(script Script) *scriptDriver {
	return &scriptDriver{script: script}
}

// runInitialize invokes Initialize exactly once across this driver's
// lifetime; subsequent calls are no-ops that return nil.
func (d *scriptDriver) runInitialize(ctx *Context) (err error) {
	if !d.initialized.CompareAndSwap(false, true) {
		return nil
	}
	init, ok := d.script.(Initializer)
	if !ok {
		return nil
	}
	defer d.recoverInto(&err, "initialize")
	return init.Initialize(ctx)
}

func (d *scriptDriver) runActivate(ctx *Context) (err error) {
	act, ok := d.script.(Activator)
	if !ok {
		return nil
	}
	defer d.recoverInto(&err, "activate")
	return act.Activate(ctx)
}

// runActivateOnce invokes Activate exactly once across this driver's
// lifetime, the moment a version's instance is first touched (the
// closest this package can get to "immediately after a new version
// becomes current" without Cache itself holding a Context — see
// DESIGN.md). Subsequent calls are no-ops that return nil.
func (d *scriptDriver) runActivateOnce(ctx *Context) error {
	if !d.activated.CompareAndSwap(false, true) {
		return nil
	}
	return d.runActivate(ctx)
}

func (d *scriptDriver) runTick(ctx *Context, dt float64) (err error) {
	tick, ok := d.script.(Ticker)
	if !ok {
		return nil
	}
	defer d.recoverInto(&err, "tick")
	return tick.Tick(ctx, dt)
}

func (d *scriptDriver) runDeactivate(ctx *Context) (err error) {
	deact, ok := d.script.(Deactivator)
	if !ok {
		return nil
	}
	defer d.recoverInto(&err, "deactivate")
	return deact.Deactivate(ctx)
}

// recoverInto converts a panic in a script hook into an error instead of
// unwinding past the driver, and bumps the failure counter on any
// non-nil outcome (panic or returned error).
func (d *scriptDriver) recoverInto(errp *error, hook string) {
	if r := recover(); r != nil {
		*errp = errors.New(ErrCodeContractViolation, "script hook panicked").
			WithContext("hook", hook).
			WithContext("panic", r)
	}
	if *errp != nil {
		d.failures.Add(1)
	}
}

// Failures returns the number of hook invocations that panicked or
// returned an error, for diagnostics.
func (d *scriptDriver) Failures() int64 {
	return d.failures.Load()
}
