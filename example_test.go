package cellar_test

import (
	"fmt"

	"github.com/bitforge/cellar"
)

// Position is a simple component for 2D coordinates
type Position struct {
	X float64
	Y float64
}

// Velocity is a simple component for 2D movement
type Velocity struct {
	X float64
	Y float64
}

// Name is an identification component, stored as a managed object
type Name struct {
	Value string
}

// Example_basic shows entity creation, component access, and queries
func Example_basic() {
	world := cellar.NewWorld(cellar.DefaultConfig())

	// Define components
	position := cellar.MustRegister[Position](world, "position")
	velocity := cellar.MustRegister[Velocity](world, "velocity")
	name := cellar.RegisterManaged[Name](world, "name")

	// Create entities
	world.CreateEntities(5, position)
	world.CreateEntities(3, position, velocity)

	// Create one named entity
	entities, _ := world.CreateEntities(1, position, velocity, name)
	player := entities[0]
	world.SetManagedComponent(player, name, Name{Value: "Player"})

	// Set position and velocity
	cellar.SetComponentValue(world, player, position, Position{X: 10.0, Y: 20.0})
	cellar.SetComponentValue(world, player, velocity, Velocity{X: 1.0, Y: 2.0})

	// Count all entities with position and velocity
	moving := world.Query().With(position, velocity).Build()
	fmt.Printf("Found %d entities with position and velocity\n", moving.Count())

	// Process the named entity
	named := world.Query().With(name).Build()
	named.ForEach(func(it *cellar.Iterator) {
		pos := cellar.Field(it, position)
		vel := cellar.Field(it, velocity)
		nme, _ := it.Managed(name)

		// Update position based on velocity
		pos.X += vel.X
		pos.Y += vel.Y

		fmt.Printf("Updated %s to position (%.1f, %.1f)\n", nme.(Name).Value, pos.X, pos.Y)
	})

	// Output:
	// Found 4 entities with position and velocity
	// Updated Player to position (11.0, 22.0)
}

// Example_queries shows the different query operations
func Example_queries() {
	world := cellar.NewWorld(cellar.DefaultConfig())

	position := cellar.MustRegister[Position](world, "position")
	velocity := cellar.MustRegister[Velocity](world, "velocity")
	name := cellar.RegisterManaged[Name](world, "name")

	// Create different entity types
	world.CreateEntities(3, position)
	world.CreateEntities(3, position, velocity)
	world.CreateEntities(3, position, name)
	world.CreateEntities(3, position, velocity, name)

	// AND query: entities with position AND velocity
	andQuery := world.Query().With(position, velocity).Build()
	fmt.Printf("AND query matched %d entities\n", andQuery.Count())

	// ANY query: entities with velocity OR name
	anyQuery := world.Query().Any(velocity, name).Build()
	fmt.Printf("ANY query matched %d entities\n", anyQuery.Count())

	// WITHOUT query: entities with position but NOT velocity
	withoutQuery := world.Query().With(position).Without(velocity).Build()
	fmt.Printf("WITHOUT query matched %d entities\n", withoutQuery.Count())

	// Output:
	// AND query matched 6 entities
	// ANY query matched 9 entities
	// WITHOUT query matched 6 entities
}

// Example_commandBuffer shows deferred structural changes during iteration
func Example_commandBuffer() {
	world := cellar.NewWorld(cellar.DefaultConfig())

	position := cellar.MustRegister[Position](world, "position")
	velocity := cellar.MustRegister[Velocity](world, "velocity")

	world.CreateEntities(4, position)

	// Record an add for every position-only entity while iterating, then
	// apply the batch once the query has released the world.
	ecb := cellar.NewEntityCommandBuffer()
	world.Query().With(position).Without(velocity).Build().ForEach(func(it *cellar.Iterator) {
		ecb.AddComponents(it.EntityID(), velocity)
	})
	ecb.Playback(world)

	both := world.Query().With(position, velocity).Build()
	fmt.Printf("%d entities now have velocity\n", both.Count())

	// Output:
	// 4 entities now have velocity
}
