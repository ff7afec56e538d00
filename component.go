package cellar

import "reflect"

// ComponentClass identifies a registered component type to the entity and
// query APIs. Registered[T] is the only implementation; callers obtain
// one from MustRegister / RegisterManaged / RegisterUnmanagedShared /
// RegisterManagedShared and hold onto it. Everything downstream operates
// on the type id, never on reflection over T.
type ComponentClass interface {
	TypeID() TypeID
	Kind() ComponentKind
}

// Registered is the typed handle returned by registration: it pairs a Go
// type T with the TypeID and ComponentDescriptor the registry assigned
// it.
type Registered[T any] struct {
	id   TypeID
	kind ComponentKind
	desc ComponentDescriptor
}

// TypeID returns the component's registered type id.
func (r Registered[T]) TypeID() TypeID { return r.id }

// Kind returns the component's storage kind.
func (r Registered[T]) Kind() ComponentKind { return r.kind }

// Descriptor returns the resolved byte layout backing T.
func (r Registered[T]) Descriptor() ComponentDescriptor { return r.desc }

func primitiveKindOf(t reflect.Type) PrimitiveKind {
	switch t.Kind() {
	case reflect.Int8, reflect.Uint8:
		return PrimitiveByte
	case reflect.Int16, reflect.Uint16:
		return PrimitiveShort
	case reflect.Int32, reflect.Uint32:
		return PrimitiveInt
	case reflect.Int64, reflect.Uint64, reflect.Int, reflect.Uint:
		return PrimitiveLong
	case reflect.Float32:
		return PrimitiveFloat
	case reflect.Float64:
		return PrimitiveDouble
	case reflect.Bool:
		return PrimitiveBool
	default:
		return PrimitiveStruct
	}
}

// deriveFieldSpecs reflects over T's exported struct fields and turns
// them into FieldSpecs carrying Go's own compiler-assigned offset, size,
// and alignment. Runs once at registration time, never on a hot path.
func deriveFieldSpecs[T any]() []FieldSpec {
	t := reflect.TypeFor[T]()
	specs := make([]FieldSpec, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		specs = append(specs, FieldSpec{
			Name:               f.Name,
			Primitive:          primitiveKindOf(f.Type),
			RequestedSize:      int(f.Type.Size()),
			RequestedOffset:    int(f.Offset),
			RequestedAlignment: int(f.Type.Align()),
		})
	}
	return specs
}

// MustRegister registers T as an unmanaged-instance component under key,
// deriving its byte layout from Go's own struct layout (StrategyExplicit
// over the reflected field offsets). Panics on InvalidLayoutError, since a
// malformed component type is a programming error discovered once at
// startup, not a runtime condition callers are expected to recover from.
func MustRegister[T any](w *World, key string) Registered[T] {
	r, err := registerKind[T](w, key, KindUnmanagedInstance)
	if err != nil {
		panic(err)
	}
	return r
}

// RegisterManaged registers T as a managed-instance component: a
// per-entity opaque Go value stored by ticket in the world's Managed
// Object Store rather than as chunk column bytes.
func RegisterManaged[T any](w *World, key string) Registered[T] {
	r, err := registerKind[T](w, key, KindManagedInstance)
	if err != nil {
		panic(err)
	}
	return r
}

// RegisterUnmanagedShared registers T as an unmanaged-shared component: a
// single value of 8 bytes or smaller, stored once per chunk group instead
// of once per entity.
func RegisterUnmanagedShared[T any](w *World, key string) Registered[T] {
	r, err := registerKind[T](w, key, KindUnmanagedShared)
	if err != nil {
		panic(err)
	}
	return r
}

// RegisterManagedShared registers T as a managed-shared component: an
// opaque Go value deduplicated by equality via the world's Shared Value
// Store and referenced by ticket from each chunk group that shares it.
func RegisterManagedShared[T any](w *World, key string) Registered[T] {
	r, err := registerKind[T](w, key, KindManagedShared)
	if err != nil {
		panic(err)
	}
	return r
}

func registerKind[T any](w *World, key string, kind ComponentKind) (Registered[T], error) {
	var fields []FieldSpec
	totalOverride := 0
	if kind == KindUnmanagedInstance || kind == KindUnmanagedShared {
		fields = deriveFieldSpecs[T]()
		totalOverride = int(reflect.TypeFor[T]().Size())
	}

	desc, err := NewDescriptor(0, kind, fields, StrategyExplicit, totalOverride)
	if err != nil {
		return Registered[T]{}, err
	}
	id, err := w.registry.Register(key, desc)
	if err != nil {
		return Registered[T]{}, err
	}
	desc.TypeID = id
	return Registered[T]{id: id, kind: kind, desc: desc}, nil
}
