package cellar

import "unsafe"

// Field returns a typed pointer into the chunk column backing the
// iterator's current entity, or nil if the archetype does not carry r.
// The pointer aliases chunk memory: it is valid only until the consumer
// call returns, and never across a structural mutation.
func Field[T any](it *Iterator, r Registered[T]) *T {
	col := it.arch.ColumnIndex(r.id)
	if col < 0 {
		return nil
	}
	b := it.chunk.GetColumnSlice(col, it.slot)
	return (*T)(unsafe.Pointer(&b[0]))
}

// GetFromCursor retrieves a component value for the entity at the cursor position
func (r Registered[T]) GetFromCursor(cursor *Cursor) *T {
	return Field(&cursor.it, r)
}

// GetFromCursorSafe safely retrieves a component value, checking if the component exists
// Returns a boolean indicating success and the component pointer if found
func (r Registered[T]) GetFromCursorSafe(cursor *Cursor) (bool, *T) {
	if cursor.it.arch == nil || cursor.it.arch.ColumnIndex(r.id) < 0 {
		return false, nil
	}
	return true, Field(&cursor.it, r)
}

// CheckCursor determines if the component exists in the archetype at the cursor position
func (r Registered[T]) CheckCursor(cursor *Cursor) bool {
	return cursor.it.arch != nil && cursor.it.arch.ColumnIndex(r.id) >= 0
}

// GetFromEntity retrieves a typed pointer to eid's component bytes. The
// pointer is invalidated by the next structural mutation of the world.
func (r Registered[T]) GetFromEntity(w *World, eid EntityID) (*T, error) {
	b, err := w.GetComponentBytes(eid, r)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(&b[0])), nil
}

// AddComponentWithValue adds r to eid initialized to value. Adding a
// component the entity already carries overwrites its bytes in place.
func AddComponentWithValue[T any](w *World, eid EntityID, r Registered[T], value T) error {
	if has, err := w.HasComponent(eid, r); err != nil {
		return err
	} else if has {
		b, err := w.GetComponentBytes(eid, r)
		if err != nil {
			return err
		}
		*(*T)(unsafe.Pointer(&b[0])) = value
		return nil
	}
	return w.addComponentRaw(eid, r, func(b []byte) {
		*(*T)(unsafe.Pointer(&b[0])) = value
	})
}

// SetComponentValue overwrites eid's bytes for r with value. The entity
// must already carry the component.
func SetComponentValue[T any](w *World, eid EntityID, r Registered[T], value T) error {
	b, err := w.GetComponentBytes(eid, r)
	if err != nil {
		return err
	}
	*(*T)(unsafe.Pointer(&b[0])) = value
	return nil
}

// GetComponentValue copies eid's component bytes for r out as a value.
func GetComponentValue[T any](w *World, eid EntityID, r Registered[T]) (T, error) {
	var zero T
	b, err := w.GetComponentBytes(eid, r)
	if err != nil {
		return zero, err
	}
	return *(*T)(unsafe.Pointer(&b[0])), nil
}
