package cellar

// factory implements the factory pattern for cellar's top-level objects.
type factory struct{}

// Factory is the global factory instance for creating cellar objects.
var Factory factory

// NewWorld creates a new World with the given configuration.
func (f factory) NewWorld(cfg Config) *World {
	return NewWorld(cfg)
}

// NewQuery creates a new QueryBuilder bound to the given world.
func (f factory) NewQuery(w *World) *QueryBuilder {
	return w.Query()
}

// NewPredicate creates a new composable predicate tree.
func (f factory) NewPredicate() Predicate {
	return NewPredicate()
}

// NewCursor creates a new Cursor over the given query.
func (f factory) NewCursor(q *Query) *Cursor {
	return newCursor(q)
}

// NewCommandBuffer creates a new EntityCommandBuffer.
func (f factory) NewCommandBuffer() *EntityCommandBuffer {
	return NewEntityCommandBuffer()
}
