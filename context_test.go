package scripting_test

import (
	"testing"

	scripting "github.com/fuddlesworth/PokeSharp-sub010"
	"github.com/fuddlesworth/PokeSharp-sub010/internal/simworld"
)

type health struct {
	HP int
}

func TestComponentAccessors(t *testing.T) {
	world := simworld.New()
	entity := world.Spawn()
	ctx := &scripting.Context{World: world, Entity: entity}

	if scripting.Has[health](ctx) {
		t.Fatalf("entity should not yet have a health component")
	}

	got := scripting.GetOrAdd[health](ctx)
	if got.HP != 0 {
		t.Fatalf("GetOrAdd should attach the zero value, got %+v", got)
	}

	world.SetComponent(entity, &health{HP: 42})
	if !scripting.Has[health](ctx) {
		t.Fatalf("entity should report having a health component")
	}

	h := scripting.Get[health](ctx)
	if h.HP != 42 {
		t.Fatalf("Get[health] = %+v, want HP=42", h)
	}

	// The pointer returned by Get is the live storage cell: a write
	// through it must be visible to the next accessor call, not lost on
	// a stack copy.
	h.HP -= 10
	if again := scripting.Get[health](ctx); again.HP != 32 {
		t.Fatalf("write through Get[health]'s pointer was not visible to a later Get, got HP=%d", again.HP)
	}

	if !scripting.Remove[health](ctx) {
		t.Fatalf("Remove[health] should report true when a component was present")
	}
	if scripting.Has[health](ctx) {
		t.Fatalf("entity should no longer have a health component after Remove")
	}
	if scripting.Remove[health](ctx) {
		t.Fatalf("Remove[health] should report false when no component is present")
	}
}

func TestTryGet_NoEntity(t *testing.T) {
	world := simworld.New()
	ctx := &scripting.Context{World: world}

	if _, err := scripting.TryGet[health](ctx); err == nil {
		t.Fatalf("expected an error for a context with no bound entity")
	}
}

func TestTryGet_MissingComponent(t *testing.T) {
	world := simworld.New()
	entity := world.Spawn()
	ctx := &scripting.Context{World: world, Entity: entity}

	if _, err := scripting.TryGet[health](ctx); err == nil {
		t.Fatalf("expected an error for a component that was never attached")
	}
}

func TestGet_PanicsOnMissingComponent(t *testing.T) {
	world := simworld.New()
	entity := world.Spawn()
	ctx := &scripting.Context{World: world, Entity: entity}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected Get[T] to panic for a missing component")
		}
	}()
	scripting.Get[health](ctx)
}
