/*
Package cellar provides an archetype-based Entity Component System (ECS)
storage and query engine for games and simulations.

Cellar groups entities by component signature into fixed-capacity,
struct-of-arrays chunks so that iterating hundreds of thousands of
entities stays cache-friendly and allocation-free on the hot path.
Structural changes (adding or removing components, re-keying a shared
value) migrate an entity's data between chunks; queries match archetypes
against a mask predicate and can fan iteration across a worker pool.

Core Concepts:

  - World: owns the component registry, the managed/shared value stores,
    and every archetype; the single entry point for entity operations.
  - Component: a registered, laid-out data shape. Unmanaged components
    live as raw bytes in chunk columns; managed components live as
    tickets into the world's object store; shared components live once per
    chunk group instead of once per entity.
  - Archetype: the set of component types a group of entities all have.
  - Chunk: a fixed-capacity struct-of-arrays block within an archetype.
  - Query: an immutable selection predicate over archetypes, iterated
    sequentially or in parallel.
  - EntityCommandBuffer: records structural changes made while a query is
    iterating; played back against the world once iteration is done.

Basic Usage:

	world := cellar.NewWorld(cellar.DefaultConfig())

	position := cellar.MustRegister[Position](world, "position")
	velocity := cellar.MustRegister[Velocity](world, "velocity")

	entities, _ := world.CreateEntities(100, position, velocity)

	q := world.Query().With(position, velocity).Build()
	q.ForEach(func(it *cellar.Iterator) {
		pos := cellar.Field[Position](it, position)
		vel := cellar.Field[Velocity](it, velocity)
		pos.X += vel.X
		pos.Y += vel.Y
	})

Cellar is a standalone storage/query core; the system-lifecycle host,
game-loop scheduling, and code-generated query injection that a full
game framework builds on top of it are outside this package's scope.
*/
package cellar
