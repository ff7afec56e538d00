package cellar

import (
	"sort"
	"strings"
)

// EntityID is the stable, per-world identity of an entity. Ids are
// assigned monotonically starting at 1 and are never recycled; zero is
// never a live id, which lets chunk entity-id columns use 0 as the
// "free slot" sentinel.
type EntityID uint64

// EntityDestroyCallback is invoked when the entity it was registered
// against (via SetDestroyCallback or SetParent) is destroyed.
type EntityDestroyCallback func(EntityID)

// entityLocation pins an entity to its current storage position. The
// shared key is reachable through group, so it is not duplicated here.
type entityLocation struct {
	archetype *Archetype
	group     *ChunkGroup
	chunk     int
	slot      int
}

// entityRecord is the world's per-entity bookkeeping. The world keeps a
// single map from entity id to record, republished in one map update on
// every structural mutation.
type entityRecord struct {
	loc       entityLocation
	parent    EntityID
	hasParent bool
	onDestroy EntityDestroyCallback
}

// componentsAsString formats a sorted list of component names for entity
// introspection.
func componentsAsString(keys []string) string {
	if len(keys) == 0 {
		return "[]"
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return "[" + strings.Join(sorted, ", ") + "]"
}
