package cellar

import "fmt"

// TypeID is the stable integer identity assigned to a registered component
// type. Type ids are monotonically increasing starting at 0; the registry
// never produces gaps.
type TypeID uint32

// ComponentKind classifies how a component's data is stored.
type ComponentKind uint8

const (
	// KindUnmanagedInstance is a per-entity byte payload stored in an
	// archetype chunk's column.
	KindUnmanagedInstance ComponentKind = iota
	// KindManagedInstance is a per-entity opaque object stored by ticket
	// in the Managed Object Store.
	KindManagedInstance
	// KindUnmanagedShared is a per-chunk-group 64-bit value shared by every
	// entity in the group.
	KindUnmanagedShared
	// KindManagedShared is a per-chunk-group opaque value held in the
	// Shared Value Store, which deduplicates it by value; the group's key
	// carries its store index.
	KindManagedShared
)

// PrimitiveKind enumerates the field primitive types a component layout
// can be built from.
type PrimitiveKind uint8

const (
	PrimitiveByte PrimitiveKind = iota
	PrimitiveShort
	PrimitiveInt
	PrimitiveLong
	PrimitiveFloat
	PrimitiveDouble
	PrimitiveBool
	PrimitiveChar
	// PrimitiveStruct is a nested fixed-size struct; its size has no
	// "natural" default and must be supplied via RequestedSize. Its
	// alignment is RequestedAlignment, or 1 when that is unset.
	PrimitiveStruct
)

// naturalSize returns the size in bytes a primitive occupies absent an
// explicit override, or 0 for PrimitiveStruct (which has no natural size).
func (p PrimitiveKind) naturalSize() int {
	switch p {
	case PrimitiveByte, PrimitiveBool:
		return 1
	case PrimitiveShort, PrimitiveChar:
		return 2
	case PrimitiveInt, PrimitiveFloat:
		return 4
	case PrimitiveLong, PrimitiveDouble:
		return 8
	default:
		return 0
	}
}

// naturalAlignment mirrors naturalSize: for these primitives, alignment
// equals size.
func (p PrimitiveKind) naturalAlignment() int {
	return p.naturalSize()
}

// LayoutStrategy selects how FieldSpecs are turned into byte offsets.
type LayoutStrategy uint8

const (
	// StrategySequential packs fields tightly in declaration order with no
	// padding; total size is the sum of field sizes.
	StrategySequential LayoutStrategy = iota
	// StrategyPadding rounds each field's offset up to its own alignment
	// and rounds the final total size up to the maximum field alignment.
	StrategyPadding
	// StrategyExplicit uses each field's declared offset verbatim; the
	// resolver only validates non-overlap and containment.
	StrategyExplicit
)

// FieldSpec is the declarative, pre-layout description of one component
// field.
type FieldSpec struct {
	Name               string
	Primitive          PrimitiveKind
	RequestedSize      int // 0 means "use the primitive's natural size"
	RequestedOffset    int // only consulted under StrategyExplicit
	RequestedAlignment int // 0 means "use the primitive's natural alignment"
}

// FieldDescriptor is a FieldSpec after layout resolution: offset, size,
// and alignment are all final.
type FieldDescriptor struct {
	Name      string
	Primitive PrimitiveKind
	Offset    int
	Size      int
	Alignment int
}

// ComponentDescriptor is the frozen, byte-level layout of one registered
// component type, produced once by resolveLayout and never mutated again.
type ComponentDescriptor struct {
	TypeID    TypeID
	Kind      ComponentKind
	TotalSize int
	Fields    []FieldDescriptor
	Strategy  LayoutStrategy
}

// FieldIndex returns the index of the named field, or -1 if absent. Field
// name resolution is meant to happen once at setup time; hot-path code
// should cache the returned index.
func (d ComponentDescriptor) FieldIndex(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func roundUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// resolveLayout turns a list of field specs plus a strategy into concrete
// field offsets and a total component size.
func resolveLayout(fields []FieldSpec, strategy LayoutStrategy, totalSizeOverride int) ([]FieldDescriptor, int, error) {
	if len(fields) == 0 {
		if totalSizeOverride > 0 {
			return nil, 0, InvalidLayoutError{Reason: "zero fields combined with a non-zero total size override"}
		}
		return nil, 0, nil
	}

	resolved := make([]FieldDescriptor, len(fields))
	for i, f := range fields {
		size := f.RequestedSize
		if size <= 0 {
			size = f.Primitive.naturalSize()
		}
		align := f.RequestedAlignment
		if align <= 0 {
			align = f.Primitive.naturalAlignment()
		}
		if size <= 0 {
			return nil, 0, InvalidLayoutError{Reason: fmt.Sprintf("field %q has no size (primitive has no natural size; set RequestedSize)", f.Name)}
		}
		if align <= 0 {
			align = 1
		}
		resolved[i] = FieldDescriptor{Name: f.Name, Primitive: f.Primitive, Size: size, Alignment: align}
	}

	var totalSize int
	switch strategy {
	case StrategyExplicit:
		for i := range resolved {
			resolved[i].Offset = fields[i].RequestedOffset
		}
		maxEnd := 0
		for _, f := range resolved {
			if f.Offset < 0 {
				return nil, 0, InvalidLayoutError{Reason: fmt.Sprintf("field %q has a negative offset", f.Name)}
			}
			end := f.Offset + f.Size
			if end > maxEnd {
				maxEnd = end
			}
		}
		if err := validateNonOverlap(resolved); err != nil {
			return nil, 0, err
		}
		totalSize = maxEnd

	case StrategyPadding:
		offset := 0
		maxAlign := 1
		for i, f := range resolved {
			offset = roundUp(offset, f.Alignment)
			resolved[i].Offset = offset
			offset += f.Size
			if f.Alignment > maxAlign {
				maxAlign = f.Alignment
			}
		}
		totalSize = roundUp(offset, maxAlign)

	case StrategySequential:
		offset := 0
		for i, f := range resolved {
			resolved[i].Offset = offset
			offset += f.Size
		}
		totalSize = offset

	default:
		return nil, 0, InvalidLayoutError{Reason: "unknown layout strategy"}
	}

	if totalSizeOverride > 0 {
		if totalSizeOverride < totalSize {
			return nil, 0, InvalidLayoutError{Reason: fmt.Sprintf("total size override %d is smaller than computed minimum %d", totalSizeOverride, totalSize)}
		}
		totalSize = totalSizeOverride
	}

	return resolved, totalSize, nil
}

// validateNonOverlap confirms every pair of fields has disjoint byte
// ranges, required for StrategyExplicit.
func validateNonOverlap(fields []FieldDescriptor) error {
	for i := 0; i < len(fields); i++ {
		for j := i + 1; j < len(fields); j++ {
			a, b := fields[i], fields[j]
			if a.Offset < b.Offset+b.Size && b.Offset < a.Offset+a.Size {
				return InvalidLayoutError{Reason: fmt.Sprintf("fields %q and %q overlap", a.Name, b.Name)}
			}
		}
	}
	return nil
}

// NewDescriptor resolves fields/strategy/totalSizeOverride into a frozen
// ComponentDescriptor for the given kind. typeID is assigned by the
// Registry; NewDescriptor never assigns one itself.
func NewDescriptor(typeID TypeID, kind ComponentKind, fields []FieldSpec, strategy LayoutStrategy, totalSizeOverride int) (ComponentDescriptor, error) {
	if kind == KindUnmanagedShared {
		if len(fields) != 1 || fields[0].Primitive.naturalSize() == 0 || fields[0].Primitive.naturalSize() > 8 {
			return ComponentDescriptor{}, InvalidLayoutError{Reason: "unmanaged-shared components must be a single value of 8 bytes or smaller"}
		}
	}
	resolved, total, err := resolveLayout(fields, strategy, totalSizeOverride)
	if err != nil {
		return ComponentDescriptor{}, err
	}
	return ComponentDescriptor{
		TypeID:    typeID,
		Kind:      kind,
		TotalSize: total,
		Fields:    resolved,
		Strategy:  strategy,
	}, nil
}
