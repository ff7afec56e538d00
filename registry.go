package cellar

import (
	"fmt"
	"sync"
)

// Registry assigns stable TypeIDs to component classes and interns their
// descriptors. One Registry is owned per World.
type Registry struct {
	mu          sync.RWMutex
	byKey       map[string]TypeID
	keys        []string
	descriptors []ComponentDescriptor
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]TypeID)}
}

// Register assigns a TypeID to key, interning descriptor. Calling Register
// again with the same key is idempotent and returns the previously
// assigned id; descriptor is ignored on the idempotent path.
//
// Storage-shape constraints on shared components are validated before a
// new id is assigned.
func (r *Registry) Register(key string, descriptor ComponentDescriptor) (TypeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[key]; ok {
		return id, nil
	}

	if descriptor.Kind == KindUnmanagedShared {
		if len(descriptor.Fields) != 1 || descriptor.Fields[0].Size > 8 {
			return 0, InvalidLayoutError{Reason: "unmanaged-shared components must be limited to a single value class of 8 bytes or smaller"}
		}
	}
	if len(r.descriptors) >= maskMaxBits {
		return 0, ResourceExhaustedError{Reason: fmt.Sprintf("component type limit (%d) reached", maskMaxBits)}
	}

	id := TypeID(len(r.descriptors))
	descriptor.TypeID = id
	r.descriptors = append(r.descriptors, descriptor)
	r.keys = append(r.keys, key)
	r.byKey[key] = id
	return id, nil
}

// KeyFor returns the key id was registered under, or "" for an unknown
// id.
func (r *Registry) KeyFor(id TypeID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.keys) {
		return ""
	}
	return r.keys[id]
}

// GetTypeID looks up the TypeID registered for key.
func (r *Registry) GetTypeID(key string) (TypeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key]
	return id, ok
}

// GetDescriptor returns the descriptor for id.
func (r *Registry) GetDescriptor(id TypeID) (ComponentDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.descriptors) {
		return ComponentDescriptor{}, false
	}
	return r.descriptors[id], true
}

// Len returns the number of registered component types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}
