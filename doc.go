// Package scripting is a hot-reloadable scripting runtime for a game engine:
// it watches source files on disk, compiles them on change through an
// external compiler, and swaps the resulting behaviour objects into a
// running simulation without pausing it or losing per-entity state.
//
// # Architecture
//
// Four pieces do the hard work:
//
//  1. A change detector (Watcher) that emits coalesced FileEvents, picking
//     a native OS-notification adapter or a polling adapter depending on
//     the directory being watched.
//  2. A debounced reload Orchestrator that turns a raw event stream into
//     applied-or-rolled-back artifacts, at most one compile in flight per
//     TypeId at a time.
//  3. A versioned Cache that stores the current and previous artifact per
//     script, lazily constructs the singleton instance, and allows
//     lock-free reads from the simulation's tick threads.
//  4. A Context bridge that gives each script access to the World, the
//     current entity (if any), and a facade of host services. The Context
//     carries no logger of its own. Scripts are expected not to retain it
//     past one call.
//
// # Example
//
//	orch, err := scripting.NewOrchestrator(scripting.OrchestratorConfig{
//		Sink: myNotificationSink,
//	}, myCompiler, backup.NewMemoryStore(), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := orch.Start("/game/scripts"); err != nil {
//		log.Fatal(err)
//	}
//	defer orch.Stop()
//
//	// On the tick thread:
//	if err := orch.Cache().Tick("pikachu", ctx, dt); err != nil {
//		log.Printf("pikachu tick hook failed: %v", err)
//	}
//
// # Non-goals
//
// Sandboxing untrusted scripts, incremental compilation, distributed
// reload, UI, and configuration loading (parsing a script's own config
// file format) are explicitly out of scope. The compiler, the entity
// store, the notification sink, and the raw filesystem primitive are
// treated as external collaborators reachable only through the interfaces
// in this package.
package scripting
