package cellar

import (
	"sync"
	"testing"
)

func TestCommandBufferPlayback(t *testing.T) {
	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")
	velocity := MustRegister[Velocity](world, "velocity")

	const n = 100
	if _, err := world.CreateEntities(n, position); err != nil {
		t.Fatalf("CreateEntities() error = %v", err)
	}

	// Record an add for every entity visited by a parallel query, then
	// play the buffer back once iteration is done.
	ecb := NewEntityCommandBuffer()
	err := world.Query().With(position).Build().ForEachParallel(func(it *Iterator) {
		ecb.AddComponents(it.EntityID(), velocity)
	})
	if err != nil {
		t.Fatalf("ForEachParallel() error = %v", err)
	}
	if got := ecb.Len(); got != n {
		t.Errorf("recorded commands = %d, want %d", got, n)
	}

	if err := ecb.Playback(world); err != nil {
		t.Fatalf("Playback() error = %v", err)
	}
	if got := world.Query().With(position, velocity).Build().Count(); got != n {
		t.Errorf("entities with position+velocity = %d, want %d", got, n)
	}
	if got := ecb.Len(); got != 0 {
		t.Errorf("commands after playback = %d, want 0", got)
	}
}

func TestCommandBufferParallelWriters(t *testing.T) {
	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")

	ecb := NewEntityCommandBuffer()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			writer := ecb.AsParallelWriter()
			for j := 0; j < 25; j++ {
				writer.Create(position)
			}
		}()
	}
	wg.Wait()

	if got := ecb.Len(); got != 100 {
		t.Errorf("recorded commands = %d, want 100", got)
	}
	if err := ecb.Playback(world); err != nil {
		t.Fatalf("Playback() error = %v", err)
	}
	if got := world.EntityCount(); got != 100 {
		t.Errorf("EntityCount() after playback = %d, want 100", got)
	}
}

func TestCommandBufferDestroyedEntityIsNoOp(t *testing.T) {
	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")
	velocity := MustRegister[Velocity](world, "velocity")

	eid, err := world.CreateEntity(position)
	if err != nil {
		t.Fatalf("CreateEntity() error = %v", err)
	}

	ecb := NewEntityCommandBuffer()
	ecb.AddComponents(eid, velocity)
	ecb.Destroy(eid)
	ecb.AddComponents(eid, velocity) // recorded after the destroy; must not resurrect

	if err := world.DestroyEntity(eid); err != nil {
		t.Fatalf("DestroyEntity() error = %v", err)
	}
	if err := ecb.Playback(world); err != nil {
		t.Fatalf("Playback() error = %v", err)
	}
	if world.Entity(eid) {
		t.Error("destroyed entity has a record after playback")
	}
}

func TestCommandBufferCreateWith(t *testing.T) {
	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")

	ecb := NewEntityCommandBuffer()
	ecb.CreateWith(func(w *World, eid EntityID) {
		if err := SetComponentValue(w, eid, position, Position{X: 1.5, Y: 2.5}); err != nil {
			t.Errorf("SetComponentValue() error = %v", err)
		}
	}, position)

	if err := ecb.Playback(world); err != nil {
		t.Fatalf("Playback() error = %v", err)
	}

	found := 0
	world.Query().With(position).Build().ForEach(func(it *Iterator) {
		found++
		if got := *Field(it, position); got != (Position{X: 1.5, Y: 2.5}) {
			t.Errorf("created entity position = %+v, want {1.5 2.5}", got)
		}
	})
	if found != 1 {
		t.Errorf("created entities = %d, want 1", found)
	}
}

func TestPlaybackRejectedWhileLocked(t *testing.T) {
	world := NewWorld(DefaultConfig())
	position := MustRegister[Position](world, "position")
	if _, err := world.CreateEntities(2, position); err != nil {
		t.Fatalf("CreateEntities() error = %v", err)
	}

	ecb := NewEntityCommandBuffer()
	ecb.Create(position)

	cursor := newCursor(world.Query().With(position).Build())
	if !cursor.Next() {
		t.Fatal("cursor.Next() found no entities")
	}
	err := ecb.Playback(world)
	if _, ok := err.(LockedStorageError); !ok {
		t.Errorf("Playback() while locked = %v, want LockedStorageError", err)
	}
	cursor.Reset()

	if err := ecb.Playback(world); err != nil {
		t.Fatalf("Playback() after unlock error = %v", err)
	}
	if got := world.EntityCount(); got != 3 {
		t.Errorf("EntityCount() = %d, want 3", got)
	}
}
