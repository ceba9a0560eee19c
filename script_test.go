package scripting

import "testing"

type lifecycleRecorder struct {
	calls []string
}

func (r *lifecycleRecorder) Initialize(ctx *Context) error {
	r.calls = append(r.calls, "init")
	return nil
}

func (r *lifecycleRecorder) Activate(ctx *Context) error {
	r.calls = append(r.calls, "activate")
	return nil
}

func (r *lifecycleRecorder) Tick(ctx *Context, dt float64) error {
	r.calls = append(r.calls, "tick")
	return nil
}

func (r *lifecycleRecorder) Deactivate(ctx *Context) error {
	r.calls = append(r.calls, "deactivate")
	return nil
}

func TestScriptDriver_InitializeRunsOnce(t *testing.T) {
	rec := &lifecycleRecorder{}
	driver := newScriptDriver(rec)

	if err := driver.runInitialize(nil); err != nil {
		t.Fatalf("runInitialize: %v", err)
	}
	if err := driver.runInitialize(nil); err != nil {
		t.Fatalf("second runInitialize: %v", err)
	}

	count := 0
	for _, c := range rec.calls {
		if c == "init" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("Initialize called %d times, want exactly 1", count)
	}
}

func TestScriptDriver_FullLifecycle(t *testing.T) {
	rec := &lifecycleRecorder{}
	driver := newScriptDriver(rec)

	_ = driver.runInitialize(nil)
	_ = driver.runActivate(nil)
	_ = driver.runTick(nil, 0.016)
	_ = driver.runDeactivate(nil)

	want := []string{"init", "activate", "tick", "deactivate"}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i, c := range want {
		if rec.calls[i] != c {
			t.Fatalf("calls[%d] = %s, want %s", i, rec.calls[i], c)
		}
	}
}

type panickyTicker struct{}

func (panickyTicker) Tick(ctx *Context, dt float64) error {
	panic("boom")
}

func TestScriptDriver_RecoversPanicAndCountsFailure(t *testing.T) {
	driver := newScriptDriver(panickyTicker{})

	err := driver.runTick(nil, 0.016)
	if err == nil {
		t.Fatalf("expected an error recovered from the panic")
	}
	if driver.Failures() != 1 {
		t.Fatalf("Failures() = %d, want 1", driver.Failures())
	}
}

type noHooks struct{}

func TestScriptDriver_OptionalHooksAreNoOps(t *testing.T) {
	driver := newScriptDriver(noHooks{})

	if err := driver.runInitialize(nil); err != nil {
		t.Fatalf("runInitialize on a script with no hooks: %v", err)
	}
	if err := driver.runActivate(nil); err != nil {
		t.Fatalf("runActivate on a script with no hooks: %v", err)
	}
	if err := driver.runTick(nil, 0); err != nil {
		t.Fatalf("runTick on a script with no hooks: %v", err)
	}
	if err := driver.runDeactivate(nil); err != nil {
		t.Fatalf("runDeactivate on a script with no hooks: %v", err)
	}
	if driver.Failures() != 0 {
		t.Fatalf("Failures() = %d, want 0", driver.Failures())
	}
}
