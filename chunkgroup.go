package cellar

import (
	"sync"
	"sync/atomic"
)

// SharedKey is the composite key distinguishing chunk groups within one
// archetype. ManagedTickets holds one entry per shared-managed component
// type registered on the owning archetype (a shared value store index);
// UnmanagedValues holds one entry per shared-unmanaged component type.
// The zero value (both slices nil) is the default key every archetype is
// created with.
type SharedKey struct {
	ManagedTickets  []int32
	UnmanagedValues []uint64
}

// packed returns a comparable representation of the key suitable for use
// as a Go map key. SharedKey equality is value-based but Go slices are
// not comparable, so groups are indexed by this packed string.
func (k SharedKey) packed() string {
	buf := make([]byte, 0, 8*(len(k.ManagedTickets)+len(k.UnmanagedValues)))
	for _, t := range k.ManagedTickets {
		buf = append(buf, byte(t), byte(t>>8), byte(t>>16), byte(t>>24))
	}
	for _, v := range k.UnmanagedValues {
		buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
	}
	return string(buf)
}

// slotLocation identifies a slot within a ChunkGroup's chunk array.
type slotLocation struct {
	chunkIndex int
	slot       int
}

// ChunkGroup holds every chunk of one archetype that shares an identical
// SharedKey. Chunk growth is append-only; snapshot readers only ever see
// a prefix of a monotonically growing slice, so no lock is needed to
// read while another goroutine appends.
type ChunkGroup struct {
	key   SharedKey
	owner *Archetype

	chunks atomic.Pointer[[]*Chunk]
	growMu sync.Mutex
}

// newChunkGroup constructs a group for key with a single freshly
// allocated chunk, so a group is never empty.
func newChunkGroup(owner *Archetype, key SharedKey) *ChunkGroup {
	g := &ChunkGroup{key: key, owner: owner}
	chunks := []*Chunk{owner.newChunk()}
	g.chunks.Store(&chunks)
	return g
}

// snapshot returns the current chunk slice. Callers may iterate it
// directly: append-only growth means indices already read remain valid.
func (g *ChunkGroup) snapshot() []*Chunk {
	return *g.chunks.Load()
}

// ChunkAt returns the chunk at index within the group's current snapshot.
func (g *ChunkGroup) ChunkAt(index int) *Chunk {
	return g.snapshot()[index]
}

// ChunkCount returns the number of chunks currently in the group.
func (g *ChunkGroup) ChunkCount() int {
	return len(g.snapshot())
}

// Key returns the shared-component key identifying this group within its
// archetype.
func (g *ChunkGroup) Key() SharedKey { return g.key }

// AddEntity allocates a slot for eid, appending a new chunk if every
// existing chunk is full.
func (g *ChunkGroup) AddEntity(eid EntityID) slotLocation {
	for {
		chunks := g.snapshot()
		for i, c := range chunks {
			if slot, ok := c.AllocateSlot(eid); ok {
				return slotLocation{chunkIndex: i, slot: slot}
			}
		}

		g.growMu.Lock()
		cur := g.snapshot()
		if len(cur) == len(chunks) {
			grown := append(append([]*Chunk(nil), cur...), g.owner.newChunk())
			g.chunks.Store(&grown)
		}
		g.growMu.Unlock()
	}
}

// RemoveEntity frees the slot at loc.
func (g *ChunkGroup) RemoveEntity(loc slotLocation) {
	g.ChunkAt(loc.chunkIndex).FreeSlot(loc.slot)
}
