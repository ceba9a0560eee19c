// scriptctl: operator CLI for the hot-reloadable scripting runtime.
//
// Built on Orpheus (github.com/agilira/orpheus/pkg/orpheus) for git-style
// subcommands, the same way the teacher's cmd/cli/manager.go drives its
// config tooling, and on flash-flags for reading the runtime tuning
// knobs' defaults from SCRIPTCTL_* environment variables, the same way
// the teacher's integration.go layers FlashFlags under its ConfigManager.
// Per-invocation CLI overrides are the watch command's own Orpheus flags.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/orpheus/pkg/orpheus"

	scripting "github.com/fuddlesworth/PokeSharp-sub010"
	"github.com/fuddlesworth/PokeSharp-sub010/backup"
)

// knobs holds the SCRIPTCTL_* environment-sourced defaults for runtime
// tuning, bound via flash-flags (the same library the teacher layers
// under its ConfigManager). These are the baseline; the `watch`
// subcommand's own Orpheus flags (--debounce-ms, --poll-interval,
// --watcher, --max-diagnostics) let an operator override them per
// invocation.
type knobs struct {
	flags *flashflags.FlagSet
}

func newKnobs() *knobs {
	fs := flashflags.New("scriptctl")
	fs.Duration("debounce-ms", scripting.DefaultDebounceWindow, "Debounce window before recompiling a changed script")
	fs.Duration("poll-interval", scripting.DefaultPollInterval, "Polling adapter scan interval")
	fs.String("watcher", "auto", "Change-detection strategy: auto|native|polling")
	fs.Int("max-diagnostics", 50, "Maximum diagnostics per failed-compile notification")
	fs.SetEnvPrefix("SCRIPTCTL")
	// No CLI args: this FlagSet only pulls SCRIPTCTL_* environment
	// variables over its defaults. CLI overrides are read separately,
	// from the watch command's own flags.
	_ = fs.Parse(nil)
	return &knobs{flags: fs}
}

func (k *knobs) orchestratorConfig(ctx *orpheus.Context, sink scripting.NotificationSink) scripting.OrchestratorConfig {
	debounce := k.flags.GetDuration("debounce-ms")
	if v := ctx.GetFlagString("debounce-ms"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			debounce = d
		}
	}
	poll := k.flags.GetDuration("poll-interval")
	if v := ctx.GetFlagString("poll-interval"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			poll = d
		}
	}
	watcherName := k.flags.GetString("watcher")
	if v := ctx.GetFlagString("watcher"); v != "" {
		watcherName = v
	}
	maxDiag := k.flags.GetInt("max-diagnostics")
	if v := ctx.GetFlagInt("max-diagnostics"); v != 0 {
		maxDiag = v
	}

	strategy := scripting.StrategyAuto
	switch strings.ToLower(watcherName) {
	case "native":
		strategy = scripting.StrategyNative
	case "polling":
		strategy = scripting.StrategyPolling
	}

	return scripting.OrchestratorConfig{
		DebounceWindow:  debounce,
		PollInterval:    poll,
		WatcherStrategy: strategy,
		MaxDiagnostics:  maxDiag,
		Sink:            sink,
	}
}

func main() {
	k := newKnobs()

	app := orpheus.New("scriptctl").
		SetDescription("Operate a hot-reloadable scripting runtime").
		SetVersion("1.0.0")

	app.AddCommand(newWatchCommand(k))
	app.AddCommand(newStatsCommand(k))
	app.AddCommand(newCacheCommand(k))
	app.AddCommand(newBackupCommand(k))

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newWatchCommand(k *knobs) *orpheus.Command {
	cmd := orpheus.NewCommand("watch", "Watch a directory and hot-reload scripts on change")
	cmd.AddFlag("debounce-ms", "", "", "Override SCRIPTCTL_DEBOUNCE_MS (e.g. 300ms)")
	cmd.AddFlag("poll-interval", "", "", "Override SCRIPTCTL_POLL_INTERVAL (e.g. 250ms)")
	cmd.AddFlag("watcher", "", "", "Override SCRIPTCTL_WATCHER (auto|native|polling)")
	cmd.AddIntFlag("max-diagnostics", "", 0, "Override SCRIPTCTL_MAX_DIAGNOSTICS")
	cmd.SetHandler(func(ctx *orpheus.Context) error {
		dir := ctx.GetArg(0)
		if dir == "" {
			return fmt.Errorf("usage: scriptctl watch <dir>")
		}

		sink := scripting.NewConsoleSink(os.Stdout)
		cfg := k.orchestratorConfig(ctx, sink)

		orch, err := scripting.NewOrchestrator(cfg, noopCompiler{}, backup.NewMemoryStore(), nil)
		if err != nil {
			return err
		}
		if err := orch.Start(dir); err != nil {
			return err
		}
		fmt.Printf("watching %s (strategy=%v debounce=%s)\n", dir, cfg.WatcherStrategy, cfg.DebounceWindow)
		fmt.Println("press Ctrl+C to stop")

		waitForInterrupt()
		return orch.Stop()
	})
	return cmd
}

func newStatsCommand(k *knobs) *orpheus.Command {
	cmd := orpheus.NewCommand("stats", "Print a point-in-time reload statistics snapshot")
	cmd.SetHandler(func(ctx *orpheus.Context) error {
		fmt.Println("stats requires an attached orchestrator; see package scripting for embedding instructions")
		return nil
	})
	return cmd
}

func newCacheCommand(k *knobs) *orpheus.Command {
	cacheCmd := orpheus.NewCommand("cache", "Inspect or roll back cached script versions")

	inspectCmd := cacheCmd.Subcommand("inspect", "Show the current version and history depth for a type", func(ctx *orpheus.Context) error {
		typeID := ctx.GetArg(0)
		if typeID == "" {
			return fmt.Errorf("usage: scriptctl cache inspect <type-id>")
		}
		fmt.Printf("type_id=%s requires an attached cache; see package scripting for embedding instructions\n", typeID)
		return nil
	})
	_ = inspectCmd

	rollbackCmd := cacheCmd.Subcommand("rollback", "Roll back a type to its previous cached version", func(ctx *orpheus.Context) error {
		typeID := ctx.GetArg(0)
		if typeID == "" {
			return fmt.Errorf("usage: scriptctl cache rollback <type-id>")
		}
		fmt.Printf("type_id=%s requires an attached cache; see package scripting for embedding instructions\n", typeID)
		return nil
	})
	_ = rollbackCmd

	return cacheCmd
}

func newBackupCommand(k *knobs) *orpheus.Command {
	backupCmd := orpheus.NewCommand("backup", "Inspect the durable backup store")

	listCmd := backupCmd.Subcommand("list", "Open a backup store's SQLite database and point at its backups.yaml summary (does not print the backups)", func(ctx *orpheus.Context) error {
		dbPath := ctx.GetFlagString("db")
		if dbPath == "" {
			return fmt.Errorf("--db is required")
		}
		store, err := backup.NewFileStore(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		fmt.Printf("opened backup store at %s; see backups.yaml alongside it for a human-readable summary\n", dbPath)
		return nil
	})
	listCmd.AddFlag("db", "", "", "Path to the backup SQLite database")

	restoreCmd := backupCmd.Subcommand("restore", "Restore a type's last-known-good backup", func(ctx *orpheus.Context) error {
		typeID := ctx.GetArg(0)
		dbPath := ctx.GetFlagString("db")
		if typeID == "" || dbPath == "" {
			return fmt.Errorf("usage: scriptctl backup restore <type-id> --db=<path>")
		}
		store, err := backup.NewFileStore(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		b, ok, err := store.Restore(typeID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("no backup found for %s\n", typeID)
			return nil
		}
		fmt.Printf("type_id=%s version=%d created_at=%s (%d bytes)\n", b.TypeId, b.Version, b.CreatedAt.Format(time.RFC3339), len(b.ArtifactBlob))
		return nil
	})
	restoreCmd.AddFlag("db", "", "", "Path to the backup SQLite database")

	return backupCmd
}

// noopCompiler satisfies scripting.Compiler for the CLI's standalone
// `watch` command, which only demonstrates change detection and does not
// itself know how to build any particular scripting language.
type noopCompiler struct{}

func (noopCompiler) Compile(path string) (scripting.CompileResult, error) {
	return scripting.CompileResult{
		Success: false,
		Diagnostics: []scripting.Diagnostic{{
			Severity: scripting.SeverityInfo,
			Message:  "scriptctl watch has no compiler attached; wire scripting.NewOrchestrator with a real Compiler to reload scripts",
		}},
	}, nil
}

func waitForInterrupt() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
