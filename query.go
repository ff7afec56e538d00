package cellar

import (
	"fmt"

	"github.com/TheBitDrifter/bark"
)

// managedSharedFilter restricts a query to entities whose chunk group
// carries the given shared-managed value.
type managedSharedFilter struct {
	id    TypeID
	value any
}

// unmanagedSharedFilter restricts a query to entities whose chunk group
// carries the given shared-unmanaged 64-bit value.
type unmanagedSharedFilter struct {
	id    TypeID
	value uint64
}

// QueryBuilder accumulates selection state and produces an immutable
// Query via Build. The zero with-mask matches every archetype; an empty
// Any list imposes no restriction; duplicate With requests of the same
// component are idempotent (mask bits are sets).
type QueryBuilder struct {
	world           *World
	with            Mask
	without         Mask
	anyMasks        []Mask
	nodes           []QueryNode
	managedShared   []managedSharedFilter
	unmanagedShared []unmanagedSharedFilter
}

// Query returns a new QueryBuilder bound to this world.
func (w *World) Query() *QueryBuilder {
	return &QueryBuilder{world: w}
}

// With requires every listed component to be present.
func (b *QueryBuilder) With(classes ...ComponentClass) *QueryBuilder {
	for _, c := range classes {
		b.with = b.with.With(c.TypeID())
	}
	return b
}

// Without excludes archetypes carrying any of the listed components.
func (b *QueryBuilder) Without(classes ...ComponentClass) *QueryBuilder {
	for _, c := range classes {
		b.without = b.without.With(c.TypeID())
	}
	return b
}

// Any requires at least one of the listed components to be present. Each
// Any call contributes one independent disjunction; an archetype must
// satisfy all of them.
func (b *QueryBuilder) Any(classes ...ComponentClass) *QueryBuilder {
	var m Mask
	for _, c := range classes {
		m = m.With(c.TypeID())
	}
	b.anyMasks = append(b.anyMasks, m)
	return b
}

// Where attaches a custom predicate node (see Predicate) that must also
// hold for an archetype to match.
func (b *QueryBuilder) Where(node QueryNode) *QueryBuilder {
	b.nodes = append(b.nodes, node)
	return b
}

// WithShared restricts iteration to chunk groups keyed by the given
// shared-managed value for class.
func (b *QueryBuilder) WithShared(class ComponentClass, value any) *QueryBuilder {
	b.managedShared = append(b.managedShared, managedSharedFilter{id: class.TypeID(), value: value})
	return b
}

// WithSharedUnmanaged restricts iteration to chunk groups keyed by the
// given shared-unmanaged value for class.
func (b *QueryBuilder) WithSharedUnmanaged(class ComponentClass, value uint64) *QueryBuilder {
	b.unmanagedShared = append(b.unmanagedShared, unmanagedSharedFilter{id: class.TypeID(), value: value})
	return b
}

// Build freezes the builder into an immutable Query. The builder may be
// reused afterwards; the Query keeps its own copies.
func (b *QueryBuilder) Build() *Query {
	return &Query{
		world:           b.world,
		with:            b.with,
		without:         b.without,
		anyMasks:        append([]Mask(nil), b.anyMasks...),
		nodes:           append([]QueryNode(nil), b.nodes...),
		managedShared:   append([]managedSharedFilter(nil), b.managedShared...),
		unmanagedShared: append([]unmanagedSharedFilter(nil), b.unmanagedShared...),
	}
}

// Query is an immutable selection over archetypes: a mask predicate plus
// optional shared-value filters. Iterate with ForEach, ForEachParallel,
// or a Cursor.
type Query struct {
	world           *World
	with            Mask
	without         Mask
	anyMasks        []Mask
	nodes           []QueryNode
	managedShared   []managedSharedFilter
	unmanagedShared []unmanagedSharedFilter
}

// Matches evaluates the mask predicate (with/without/any plus any Where
// nodes) against a, ignoring shared filters.
func (q *Query) Matches(a *Archetype) bool {
	m := a.Mask()
	if !m.ContainsAll(q.with) {
		return false
	}
	if !m.ContainsNone(q.without) {
		return false
	}
	if len(q.anyMasks) > 0 {
		for _, alt := range q.anyMasks {
			if !m.Intersects(alt) {
				return false
			}
		}
	}
	for _, node := range q.nodes {
		if !node.Evaluate(a) {
			return false
		}
	}
	return true
}

// matchGroups returns the chunk groups of a the query iterates. Without
// shared filters that is every group. With filters, a candidate key is
// built over a's shared-slot arrays; an archetype missing a filtered
// slot does not match, a missing group at the candidate key skips the
// archetype entirely, and a managed value unknown to the shared store
// short-circuits to no match.
func (q *Query) matchGroups(a *Archetype) ([]*ChunkGroup, bool) {
	if !q.Matches(a) {
		return nil, false
	}
	if len(q.managedShared) == 0 && len(q.unmanagedShared) == 0 {
		return a.Groups(), true
	}

	key := a.zeroKey()
	for _, f := range q.managedShared {
		idx, managed, ok := a.SharedIndex(f.id)
		if !ok || !managed {
			return nil, false
		}
		ticket, found := q.world.shared.Find(f.value)
		if !found {
			return nil, false
		}
		key.ManagedTickets[idx] = int32(ticket)
	}
	for _, f := range q.unmanagedShared {
		idx, managed, ok := a.SharedIndex(f.id)
		if !ok || managed {
			return nil, false
		}
		key.UnmanagedValues[idx] = f.value
	}

	g, ok := a.FindGroup(key)
	if !ok {
		return nil, false
	}
	return []*ChunkGroup{g}, true
}

// snapshot flattens the matching chunks into dispatchable work items, in
// archetype creation order, then chunk order within each group. The order
// of groups within one archetype is not fixed (Archetype.Groups reads a
// map).
func (q *Query) snapshot() []chunkWorkItem {
	var items []chunkWorkItem
	for _, a := range q.world.Archetypes() {
		groups, ok := q.matchGroups(a)
		if !ok {
			continue
		}
		for _, g := range groups {
			for _, c := range g.snapshot() {
				items = append(items, chunkWorkItem{arch: a, group: g, chunk: c})
			}
		}
	}
	return items
}

// ForEach invokes fn for every matching entity, visiting occupied slots
// in ascending order within a chunk and chunks in snapshot order. The
// world is locked for the duration; structural operations made while
// iterating must go through an EntityCommandBuffer or the Enqueue
// methods. Panics on a closed world.
func (q *Query) ForEach(fn Consumer) {
	if err := q.world.checkOpen(); err != nil {
		panic(bark.AddTrace(err))
	}
	c := newCursor(q)
	for c.Next() {
		fn(c.Iterator())
	}
}

// ForEachParallel dispatches each matching chunk to the world's worker
// pool and invokes fn for every occupied slot, sequentially within a
// chunk. No ordering holds between chunks. fn must be safe for
// concurrent invocation; a panic in fn is recovered and returned as an
// error, and if several chunks fail only the first reported error
// surfaces.
func (q *Query) ForEachParallel(fn Consumer) error {
	if err := q.world.checkOpen(); err != nil {
		return err
	}
	q.world.lock()
	defer q.world.unlock()

	items := q.snapshot()
	return q.world.dispatch.run(items, func(item chunkWorkItem) error {
		it := Iterator{world: q.world, arch: item.arch, group: item.group, chunk: item.chunk}
		defer it.releaseHandles()
		for slot := item.chunk.NextOccupied(0); slot >= 0; slot = item.chunk.NextOccupied(slot + 1) {
			it.slot = slot
			fn(&it)
		}
		return nil
	})
}

// Count returns the number of entities currently matching the query.
func (q *Query) Count() int {
	if err := q.world.checkOpen(); err != nil {
		panic(bark.AddTrace(err))
	}
	q.world.lock()
	defer q.world.unlock()

	total := 0
	for _, item := range q.snapshot() {
		total += item.chunk.Size()
	}
	return total
}

// Iterator is the cursor handed to query consumers: it identifies one
// occupied slot and resolves component access against the archetype that
// owns it. Iterators are reused between consumer invocations; neither
// the Iterator nor any slice or handle obtained from it may be retained
// past the consumer call.
type Iterator struct {
	world *World
	arch  *Archetype
	group *ChunkGroup
	chunk *Chunk
	slot  int

	handles map[TypeID]*ComponentHandle
}

func (it *Iterator) bind(item chunkWorkItem, slot int) {
	it.arch = item.arch
	it.group = item.group
	it.chunk = item.chunk
	it.slot = slot
}

// EntityID returns the id of the entity at the current slot.
func (it *Iterator) EntityID() EntityID {
	return it.chunk.EntityAt(it.slot)
}

// Archetype returns the archetype owning the current slot. Borrowed for
// the iteration only; must not be stored.
func (it *Iterator) Archetype() *Archetype {
	return it.arch
}

// ComponentBytes returns the current entity's column bytes for class, or
// nil if the archetype does not carry it as an unmanaged-instance
// component.
func (it *Iterator) ComponentBytes(class ComponentClass) []byte {
	col := it.arch.ColumnIndex(class.TypeID())
	if col < 0 {
		return nil
	}
	return it.chunk.GetColumnSlice(col, it.slot)
}

// Handle returns a reusable ComponentHandle bound to the current
// entity's bytes for class. One handle per component class is held for
// the iteration's lifetime and rebound on each call; ok is false if the
// archetype lacks the component.
func (it *Iterator) Handle(class ComponentClass) (*ComponentHandle, bool) {
	col := it.arch.ColumnIndex(class.TypeID())
	if col < 0 {
		return nil, false
	}
	desc, ok := it.world.registry.GetDescriptor(class.TypeID())
	if !ok {
		return nil, false
	}
	h, cached := it.handles[class.TypeID()]
	if !cached {
		h = acquireHandle()
		if it.handles == nil {
			it.handles = make(map[TypeID]*ComponentHandle)
		}
		it.handles[class.TypeID()] = h
	}
	h.Bind(it.chunk.GetColumnSlice(col, it.slot), desc)
	return h, true
}

func (it *Iterator) releaseHandles() {
	for _, h := range it.handles {
		releaseHandle(h)
	}
	it.handles = nil
}

// Managed returns the managed-instance object stored for class on the
// current entity.
func (it *Iterator) Managed(class ComponentClass) (any, bool) {
	col := it.arch.ManagedColumnIndex(class.TypeID())
	if col < 0 {
		return nil, false
	}
	ticket := it.chunk.ManagedTicket(col, it.slot)
	if ticket == -1 {
		return nil, false
	}
	return it.world.managed.Get(int(ticket))
}

// SharedUnmanaged returns the shared-unmanaged value the current
// entity's chunk group is keyed by for class.
func (it *Iterator) SharedUnmanaged(class ComponentClass) (uint64, bool) {
	idx, managed, ok := it.arch.SharedIndex(class.TypeID())
	if !ok || managed {
		return 0, false
	}
	return it.group.Key().UnmanagedValues[idx], true
}

// SharedManaged returns the shared-managed value the current entity's
// chunk group is keyed by for class.
func (it *Iterator) SharedManaged(class ComponentClass) (any, bool) {
	idx, managed, ok := it.arch.SharedIndex(class.TypeID())
	if !ok || !managed {
		return nil, false
	}
	ticket := it.group.Key().ManagedTickets[idx]
	if ticket == -1 {
		return nil, false
	}
	return it.world.shared.Value(int(ticket))
}

// QueryOperation defines the logical operations for predicate nodes.
type QueryOperation int

const (
	OpAnd QueryOperation = iota // Logical AND operation
	OpOr                        // Logical OR operation
	OpNot                       // Logical NOT operation
)

// compositeNode implements a compound predicate with child nodes
type compositeNode struct {
	op         QueryOperation
	children   []QueryNode
	components []ComponentClass
}

// leafNode implements a simple predicate with no child nodes
type leafNode struct {
	components []ComponentClass
}

// predicate implements the Predicate interface
type predicate struct {
	root QueryNode
}

// NewPredicate creates a new empty predicate tree. Attach the result of
// And/Or/Not to a QueryBuilder via Where.
func NewPredicate() Predicate {
	return &predicate{}
}

func newCompositeNode(op QueryOperation, components []ComponentClass) *compositeNode {
	return &compositeNode{
		op:         op,
		children:   make([]QueryNode, 0),
		components: components,
	}
}

func newLeafNode(components []ComponentClass) *leafNode {
	return &leafNode{components: components}
}

func classMask(components []ComponentClass) Mask {
	var m Mask
	for _, c := range components {
		m = m.With(c.TypeID())
	}
	return m
}

// Evaluate implements the QueryNode interface for composite nodes
func (n *compositeNode) Evaluate(a *Archetype) bool {
	nodeMask := classMask(n.components)
	archeMask := a.Mask()

	switch n.op {
	case OpAnd:
		if !archeMask.ContainsAll(nodeMask) {
			return false
		}
		for _, child := range n.children {
			if !child.Evaluate(a) {
				return false
			}
		}
		return true
	case OpOr:
		if archeMask.Intersects(nodeMask) {
			return true
		}
		for _, child := range n.children {
			if child.Evaluate(a) {
				return true
			}
		}
		return false
	case OpNot:
		if len(n.children) == 0 {
			return archeMask.ContainsNone(nodeMask)
		}
		if len(n.components) > 0 && !archeMask.ContainsNone(nodeMask) {
			return false
		}
		for _, child := range n.children {
			if child.Evaluate(a) {
				return false
			}
		}
		return true
	}
	return false
}

// Evaluate implements the QueryNode interface for leaf nodes
func (n *leafNode) Evaluate(a *Archetype) bool {
	return a.Mask().ContainsAll(classMask(n.components))
}

// And creates a new AND operation node with the provided items
func (p *predicate) And(items ...any) QueryNode {
	components, children := p.processItems(items...)
	node := newCompositeNode(OpAnd, components)
	node.children = children
	if p.root == nil {
		p.root = node
	}
	return node
}

// Or creates a new OR operation node with the provided items
func (p *predicate) Or(items ...any) QueryNode {
	components, children := p.processItems(items...)
	node := newCompositeNode(OpOr, components)
	node.children = children
	if p.root == nil {
		p.root = node
	}
	return node
}

// Not creates a new NOT operation node with the provided items
func (p *predicate) Not(items ...any) QueryNode {
	components, children := p.processItems(items...)
	node := newCompositeNode(OpNot, components)
	node.children = children
	if p.root == nil {
		p.root = node
	}
	return node
}

// validateItems checks if all items are of valid types for predicates
func (p *predicate) validateItems(items ...any) error {
	for _, item := range items {
		switch item.(type) {
		case ComponentClass, []ComponentClass, QueryNode:
			continue
		default:
			return fmt.Errorf("invalid query item type: %T. Only ComponentClass, []ComponentClass, or QueryNode are allowed", item)
		}
	}
	return nil
}

// processItems converts the input items into components and child nodes
func (p *predicate) processItems(items ...any) ([]ComponentClass, []QueryNode) {
	if err := p.validateItems(items...); err != nil {
		panic(bark.AddTrace(err))
	}
	components := make([]ComponentClass, 0)
	children := make([]QueryNode, 0)
	for _, item := range items {
		switch v := item.(type) {
		case ComponentClass:
			components = append(components, v)
		case []ComponentClass:
			components = append(components, v...)
		case QueryNode:
			children = append(children, v)
		}
	}
	return components, children
}

// Evaluate implements the QueryNode interface for the predicate type
func (p *predicate) Evaluate(a *Archetype) bool {
	if p.root == nil {
		return false
	}
	return p.root.Evaluate(a)
}
