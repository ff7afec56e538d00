package cellar

import "fmt"

// LockedStorageError is returned when a structural operation is attempted
// while the world is locked by an in-flight query.
type LockedStorageError struct{}

func (e LockedStorageError) Error() string {
	return "cellar: world is currently locked by an active query"
}

// EntityRelationError reports an attempt to give an entity a second parent.
type EntityRelationError struct {
	Child, Parent EntityID
}

func (e EntityRelationError) Error() string {
	return fmt.Sprintf("cellar: entity %d already has parent %d", e.Child, e.Parent)
}

// ComponentExistsError reports a duplicate add of a component an entity
// already carries. Only AddComponentStrict returns it; AddComponent treats
// a duplicate add as a no-op.
type ComponentExistsError struct {
	TypeID TypeID
}

func (e ComponentExistsError) Error() string {
	return fmt.Sprintf("cellar: component type %d already exists on entity", e.TypeID)
}

// ComponentNotFoundError reports that an entity does not carry a component
// type whose bytes were requested.
type ComponentNotFoundError struct {
	TypeID TypeID
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("cellar: component type %d does not exist on entity", e.TypeID)
}

// EntityNotFoundError reports an operation against an entity id that has no
// live record in the world (never created, or already destroyed).
type EntityNotFoundError struct {
	EntityID EntityID
}

func (e EntityNotFoundError) Error() string {
	return fmt.Sprintf("cellar: entity %d not found", e.EntityID)
}

// ComponentNotRegisteredError reports a reference to a component class the
// registry has no type id for.
type ComponentNotRegisteredError struct {
	Key any
}

func (e ComponentNotRegisteredError) Error() string {
	return fmt.Sprintf("cellar: component %v is not registered", e.Key)
}

// InvalidLayoutError reports a descriptor that could not be resolved to a
// valid byte layout: overlapping offsets, a too-small size override, or a
// zero-field descriptor paired with a non-zero size override.
type InvalidLayoutError struct {
	Reason string
}

func (e InvalidLayoutError) Error() string {
	return fmt.Sprintf("cellar: invalid component layout: %s", e.Reason)
}

// InvalidBatchError reports a batch operation that referenced the same
// entity id more than once.
type InvalidBatchError struct {
	EntityID EntityID
}

func (e InvalidBatchError) Error() string {
	return fmt.Sprintf("cellar: entity %d referenced twice in the same batch", e.EntityID)
}

// ResourceExhaustedError reports an allocation failure: an arena that could
// not grow, or an engine-imposed limit (e.g. max registered component
// types) that was reached.
type ResourceExhaustedError struct {
	Reason string
}

func (e ResourceExhaustedError) Error() string {
	return fmt.Sprintf("cellar: resource exhausted: %s", e.Reason)
}

// InvalidStateAfterCloseError reports use of a World after World.Close: a
// second Close, or an operation attempted on the closed World.
type InvalidStateAfterCloseError struct{}

func (e InvalidStateAfterCloseError) Error() string {
	return "cellar: world is closed"
}
