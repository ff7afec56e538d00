package cellar

import "iter"

// iCursor defines the interface for iterating over entities matching a query
type iCursor interface {
	Entities() iter.Seq2[EntityID, *Iterator]
	Next() bool
}

// Ensure Cursor implements iCursor interface
var _ iCursor = &Cursor{}

// Cursor provides pull-style iteration over the entities matching a
// Query. Initialize locks the world and snapshots the matching chunks;
// Reset (reached when iteration is exhausted or abandoned) releases the
// lock, which also plays back any commands enqueued while it was held.
type Cursor struct {
	query *Query

	items     []chunkWorkItem
	itemIndex int
	nextSlot  int

	it          Iterator
	initialized bool
}

// newCursor creates a new cursor for the given query
func newCursor(query *Query) *Cursor {
	return &Cursor{query: query}
}

// Next advances to the next occupied slot and reports whether one
// exists. When the snapshot is exhausted the cursor resets itself, so a
// completed for-loop leaves the world unlocked.
func (c *Cursor) Next() bool {
	if !c.initialized {
		c.Initialize()
	}

	for c.itemIndex < len(c.items) {
		item := c.items[c.itemIndex]
		slot := item.chunk.NextOccupied(c.nextSlot)
		if slot >= 0 {
			c.it.bind(item, slot)
			c.nextSlot = slot + 1
			return true
		}
		c.itemIndex++
		c.nextSlot = 0
	}

	c.Reset()
	return false
}

// Iterator returns the iterator positioned at the current entity. Valid
// only after Next has returned true.
func (c *Cursor) Iterator() *Iterator {
	return &c.it
}

// EntityID returns the id of the entity at the current cursor position.
func (c *Cursor) EntityID() EntityID {
	return c.it.EntityID()
}

// Entities returns an iterator sequence over entities matching the query
func (c *Cursor) Entities() iter.Seq2[EntityID, *Iterator] {
	return func(yield func(EntityID, *Iterator) bool) {
		for c.Next() {
			if !yield(c.it.EntityID(), &c.it) {
				c.Reset()
				return
			}
		}
	}
}

// Initialize locks the world and snapshots the matching chunks. Idempotent
// until the next Reset.
func (c *Cursor) Initialize() {
	if c.initialized {
		return
	}

	c.query.world.lock()
	c.items = c.query.snapshot()
	c.itemIndex = 0
	c.nextSlot = 0
	c.it = Iterator{world: c.query.world}
	c.initialized = true
}

// Reset clears cursor state and releases the world lock.
func (c *Cursor) Reset() {
	if !c.initialized {
		return
	}
	c.items = nil
	c.itemIndex = 0
	c.nextSlot = 0
	c.it.releaseHandles()
	c.initialized = false
	c.query.world.unlock()
}

// RemainingInChunk returns the number of occupied slots left in the
// current chunk at or after the cursor position.
func (c *Cursor) RemainingInChunk() int {
	if !c.initialized || c.itemIndex >= len(c.items) {
		return 0
	}
	n := 0
	chunk := c.items[c.itemIndex].chunk
	for slot := chunk.NextOccupied(c.nextSlot); slot >= 0; slot = chunk.NextOccupied(slot + 1) {
		n++
	}
	return n
}

// TotalMatched returns the total number of entities matching the query.
// Resets the cursor.
func (c *Cursor) TotalMatched() int {
	if !c.initialized {
		c.Initialize()
	}

	total := 0
	for _, item := range c.items {
		total += item.chunk.Size()
	}

	c.Reset()
	return total
}
