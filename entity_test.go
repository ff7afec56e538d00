package cellar

import (
	"testing"
)

// Test component types
type Position struct {
	X, Y float64
}

type Velocity struct {
	X, Y float64
}

type Health struct {
	Current, Max int32
}

func TestEntityCreation(t *testing.T) {
	tests := []struct {
		name        string
		classes     func(w *World) []ComponentClass
		entityCount int
	}{
		{"Empty entity", func(w *World) []ComponentClass { return nil }, 1},
		{"Single component", func(w *World) []ComponentClass {
			return []ComponentClass{MustRegister[Position](w, "position")}
		}, 10},
		{"Multiple components", func(w *World) []ComponentClass {
			return []ComponentClass{
				MustRegister[Position](w, "position"),
				MustRegister[Velocity](w, "velocity"),
			}
		}, 5},
		{"Large batch", func(w *World) []ComponentClass {
			return []ComponentClass{
				MustRegister[Position](w, "position"),
				MustRegister[Velocity](w, "velocity"),
				MustRegister[Health](w, "health"),
			}
		}, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			world := NewWorld(DefaultConfig())
			classes := tt.classes(world)

			entities, err := world.CreateEntities(tt.entityCount, classes...)
			if err != nil {
				t.Fatalf("CreateEntities() error = %v", err)
			}
			if len(entities) != tt.entityCount {
				t.Errorf("Created %d entities, want %d", len(entities), tt.entityCount)
			}
			if got := world.EntityCount(); got != tt.entityCount {
				t.Errorf("EntityCount() = %d, want %d", got, tt.entityCount)
			}

			for i, eid := range entities {
				if !world.Entity(eid) {
					t.Errorf("Entity %d has no live record", i)
				}
			}

			if len(entities) > 0 {
				components, err := world.Components(entities[0])
				if err != nil {
					t.Fatalf("Components() error = %v", err)
				}
				if len(components) != len(classes) {
					t.Errorf("Entity has %d components, want %d", len(components), len(classes))
				}
			}
		})
	}
}

func TestComponentAddRemove(t *testing.T) {
	tests := []struct {
		name       string
		initial    []string
		add        []string
		remove     []string
		finalCount int
	}{
		{
			name:       "Add component",
			initial:    []string{"position"},
			add:        []string{"velocity"},
			finalCount: 2,
		},
		{
			name:       "Remove component",
			initial:    []string{"position", "velocity"},
			remove:     []string{"velocity"},
			finalCount: 1,
		},
		{
			name:       "Add and remove",
			initial:    []string{"position"},
			add:        []string{"velocity", "health"},
			remove:     []string{"position"},
			finalCount: 2,
		},
		{
			name:       "Remove absent component is a no-op",
			initial:    []string{"position"},
			remove:     []string{"velocity"},
			finalCount: 1,
		},
		{
			name:       "Duplicate add is a no-op",
			initial:    []string{"position"},
			add:        []string{"position"},
			finalCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			world := NewWorld(DefaultConfig())
			classes := map[string]ComponentClass{
				"position": MustRegister[Position](world, "position"),
				"velocity": MustRegister[Velocity](world, "velocity"),
				"health":   MustRegister[Health](world, "health"),
			}

			initial := make([]ComponentClass, 0, len(tt.initial))
			for _, key := range tt.initial {
				initial = append(initial, classes[key])
			}
			eid, err := world.CreateEntity(initial...)
			if err != nil {
				t.Fatalf("CreateEntity() error = %v", err)
			}

			for _, key := range tt.add {
				if err := world.AddComponent(eid, classes[key]); err != nil {
					t.Errorf("AddComponent(%s) error = %v", key, err)
				}
			}
			for _, key := range tt.remove {
				if err := world.RemoveComponent(eid, classes[key]); err != nil {
					t.Errorf("RemoveComponent(%s) error = %v", key, err)
				}
			}

			components, err := world.Components(eid)
			if err != nil {
				t.Fatalf("Components() error = %v", err)
			}
			if len(components) != tt.finalCount {
				listing, _ := world.ComponentsAsString(eid)
				t.Errorf("Entity has %d components (%s), want %d", len(components), listing, tt.finalCount)
			}
		})
	}
}

func TestComponentValues(t *testing.T) {
	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")
	velocity := MustRegister[Velocity](world, "velocity")
	health := MustRegister[Health](world, "health")

	initialPos := Position{X: 1.0, Y: 2.0}
	initialVel := Velocity{X: 3.0, Y: 4.0}

	eid, err := world.CreateEntity(health)
	if err != nil {
		t.Fatalf("CreateEntity() error = %v", err)
	}

	if err := AddComponentWithValue(world, eid, position, initialPos); err != nil {
		t.Fatalf("AddComponentWithValue(position) error = %v", err)
	}
	if err := AddComponentWithValue(world, eid, velocity, initialVel); err != nil {
		t.Fatalf("AddComponentWithValue(velocity) error = %v", err)
	}

	posPtr, err := position.GetFromEntity(world, eid)
	if err != nil {
		t.Fatalf("GetFromEntity(position) error = %v", err)
	}
	velPtr, err := velocity.GetFromEntity(world, eid)
	if err != nil {
		t.Fatalf("GetFromEntity(velocity) error = %v", err)
	}

	if *posPtr != initialPos {
		t.Errorf("Position = %+v, want %+v", *posPtr, initialPos)
	}
	if *velPtr != initialVel {
		t.Errorf("Velocity = %+v, want %+v", *velPtr, initialVel)
	}

	posPtr.X = 5.0
	posPtr.Y = 6.0
	velPtr.X = 7.0
	velPtr.Y = 8.0

	got, err := GetComponentValue(world, eid, position)
	if err != nil {
		t.Fatalf("GetComponentValue(position) error = %v", err)
	}
	if got != (Position{X: 5.0, Y: 6.0}) {
		t.Errorf("Updated Position = %+v, want {5 6}", got)
	}
	gotVel, err := GetComponentValue(world, eid, velocity)
	if err != nil {
		t.Fatalf("GetComponentValue(velocity) error = %v", err)
	}
	if gotVel != (Velocity{X: 7.0, Y: 8.0}) {
		t.Errorf("Updated Velocity = %+v, want {7 8}", gotVel)
	}
}

func TestMigrationPreservesData(t *testing.T) {
	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")
	velocity := MustRegister[Velocity](world, "velocity")
	health := MustRegister[Health](world, "health")

	eid, err := world.CreateEntity(position, velocity)
	if err != nil {
		t.Fatalf("CreateEntity() error = %v", err)
	}
	if err := SetComponentValue(world, eid, position, Position{X: 3.0, Y: 4.0}); err != nil {
		t.Fatalf("SetComponentValue(position) error = %v", err)
	}
	if err := SetComponentValue(world, eid, velocity, Velocity{X: 0.5, Y: -0.5}); err != nil {
		t.Fatalf("SetComponentValue(velocity) error = %v", err)
	}

	if err := world.AddComponent(eid, health); err != nil {
		t.Fatalf("AddComponent(health) error = %v", err)
	}

	pos, err := GetComponentValue(world, eid, position)
	if err != nil {
		t.Fatalf("GetComponentValue(position) error = %v", err)
	}
	if pos != (Position{X: 3.0, Y: 4.0}) {
		t.Errorf("Position after migration = %+v, want {3 4}", pos)
	}
	vel, err := GetComponentValue(world, eid, velocity)
	if err != nil {
		t.Fatalf("GetComponentValue(velocity) error = %v", err)
	}
	if vel != (Velocity{X: 0.5, Y: -0.5}) {
		t.Errorf("Velocity after migration = %+v, want {0.5 -0.5}", vel)
	}
	hp, err := GetComponentValue(world, eid, health)
	if err != nil {
		t.Fatalf("GetComponentValue(health) error = %v", err)
	}
	if hp.Current != 0 || hp.Max != 0 {
		t.Errorf("Health after add = %+v, want zero value", hp)
	}
}

func TestAddRemoveRoundTrip(t *testing.T) {
	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")
	health := MustRegister[Health](world, "health")

	eid, err := world.CreateEntity(position)
	if err != nil {
		t.Fatalf("CreateEntity() error = %v", err)
	}
	if err := SetComponentValue(world, eid, position, Position{X: 9.0, Y: -9.0}); err != nil {
		t.Fatalf("SetComponentValue() error = %v", err)
	}

	if err := world.AddComponent(eid, health); err != nil {
		t.Fatalf("AddComponent() error = %v", err)
	}
	if err := world.RemoveComponent(eid, health); err != nil {
		t.Fatalf("RemoveComponent() error = %v", err)
	}

	pos, err := GetComponentValue(world, eid, position)
	if err != nil {
		t.Fatalf("GetComponentValue() error = %v", err)
	}
	if pos != (Position{X: 9.0, Y: -9.0}) {
		t.Errorf("Position after add/remove round trip = %+v, want {9 -9}", pos)
	}
}

func TestEntityDestruction(t *testing.T) {
	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")

	entities, err := world.CreateEntities(10, position)
	if err != nil {
		t.Fatalf("CreateEntities() error = %v", err)
	}

	for _, i := range []int{0, 2, 4, 6, 8} {
		if err := world.DestroyEntity(entities[i]); err != nil {
			t.Fatalf("DestroyEntity() error = %v", err)
		}
	}

	if got := world.EntityCount(); got != 5 {
		t.Errorf("EntityCount() after destruction = %d, want 5", got)
	}
	if got := world.Query().With(position).Build().Count(); got != 5 {
		t.Errorf("Query count after destruction = %d, want 5", got)
	}

	// Destroying an already-destroyed id is a silent no-op.
	if err := world.DestroyEntity(entities[0]); err != nil {
		t.Errorf("Second DestroyEntity() error = %v, want nil", err)
	}
	if got := world.EntityCount(); got != 5 {
		t.Errorf("EntityCount() after double destroy = %d, want 5", got)
	}
}

func TestManagedComponents(t *testing.T) {
	type Inventory struct {
		Items []string
	}

	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")
	inventory := RegisterManaged[Inventory](world, "inventory")

	eid, err := world.CreateEntity(position, inventory)
	if err != nil {
		t.Fatalf("CreateEntity() error = %v", err)
	}

	if _, err := world.GetManagedComponent(eid, inventory); err == nil {
		t.Error("GetManagedComponent() before set succeeded, want ComponentNotFoundError")
	}

	inv := Inventory{Items: []string{"sword", "shield"}}
	if err := world.SetManagedComponent(eid, inventory, inv); err != nil {
		t.Fatalf("SetManagedComponent() error = %v", err)
	}
	got, err := world.GetManagedComponent(eid, inventory)
	if err != nil {
		t.Fatalf("GetManagedComponent() error = %v", err)
	}
	if len(got.(Inventory).Items) != 2 {
		t.Errorf("Managed component = %+v, want %+v", got, inv)
	}
	if world.ManagedStore().Len() != 1 {
		t.Errorf("ManagedStore().Len() = %d, want 1", world.ManagedStore().Len())
	}

	// The ticket survives a structural migration.
	velocity := MustRegister[Velocity](world, "velocity")
	if err := world.AddComponent(eid, velocity); err != nil {
		t.Fatalf("AddComponent() error = %v", err)
	}
	got, err = world.GetManagedComponent(eid, inventory)
	if err != nil {
		t.Fatalf("GetManagedComponent() after migration error = %v", err)
	}
	if len(got.(Inventory).Items) != 2 {
		t.Errorf("Managed component after migration = %+v, want %+v", got, inv)
	}

	// Destruction releases the ticket.
	if err := world.DestroyEntity(eid); err != nil {
		t.Fatalf("DestroyEntity() error = %v", err)
	}
	if world.ManagedStore().Len() != 0 {
		t.Errorf("ManagedStore().Len() after destroy = %d, want 0", world.ManagedStore().Len())
	}
}

func TestParentChildRelationship(t *testing.T) {
	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")

	parent, err := world.CreateEntity(position)
	if err != nil {
		t.Fatalf("CreateEntity() error = %v", err)
	}
	child, err := world.CreateEntity(position)
	if err != nil {
		t.Fatalf("CreateEntity() error = %v", err)
	}

	destroyed := []EntityID{}
	err = world.SetParent(child, parent, func(eid EntityID) {
		destroyed = append(destroyed, eid)
	})
	if err != nil {
		t.Fatalf("SetParent() error = %v", err)
	}

	if got, ok := world.Parent(child); !ok || got != parent {
		t.Errorf("Parent() = (%d, %v), want (%d, true)", got, ok, parent)
	}

	// A second parent is rejected.
	other, _ := world.CreateEntity(position)
	if err := world.SetParent(child, other, nil); err == nil {
		t.Error("SetParent() with existing parent succeeded, want EntityRelationError")
	}

	if err := world.DestroyEntity(parent); err != nil {
		t.Fatalf("DestroyEntity(parent) error = %v", err)
	}
	if len(destroyed) != 1 || destroyed[0] != parent {
		t.Errorf("destroy callbacks = %v, want [%d]", destroyed, parent)
	}
	if _, ok := world.Parent(child); ok {
		t.Error("Parent() after parent destroyed reported a live parent")
	}
}

func TestWorldClose(t *testing.T) {
	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")

	if _, err := world.CreateEntity(position); err != nil {
		t.Fatalf("CreateEntity() error = %v", err)
	}
	if err := world.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := world.Close(); err == nil {
		t.Error("second Close() succeeded, want InvalidStateAfterCloseError")
	}
	if _, err := world.CreateEntity(position); err == nil {
		t.Error("CreateEntity() after Close succeeded, want InvalidStateAfterCloseError")
	}
}
