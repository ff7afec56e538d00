package cellar

import (
	"encoding/binary"
	"math"
	"sync"
)

// ComponentHandle is a reusable cursor bound to a byte slice and the
// ComponentDescriptor describing its layout. Unlike the generic Field[T]
// helper (which casts a whole component to *T via unsafe.Pointer for the
// common case where T is known at compile time), ComponentHandle
// resolves fields by index at the byte level, for callers that only know
// a component's shape through its registered ComponentDescriptor, such
// as generic inspection or editor tooling built on top of cellar.
// Field-name lookup (ComponentDescriptor.FieldIndex) is a setup-time
// operation; hot-path code should cache the index and call the by-index
// getters/setters below.
//
// Handles are pooled via sync.Pool to amortize allocation on the query
// hot path.
type ComponentHandle struct {
	data []byte
	desc ComponentDescriptor
}

// Bind rebinds the handle to a new byte slice/descriptor pair. Calling
// code must not retain a handle's view past the call that bound it.
func (h *ComponentHandle) Bind(data []byte, desc ComponentDescriptor) {
	h.data = data
	h.desc = desc
}

func (h *ComponentHandle) field(index int) FieldDescriptor {
	return h.desc.Fields[index]
}

// GetByte reads the field at index as a single byte.
func (h *ComponentHandle) GetByte(index int) byte {
	f := h.field(index)
	return h.data[f.Offset]
}

// SetByte writes v to the field at index.
func (h *ComponentHandle) SetByte(index int, v byte) {
	f := h.field(index)
	h.data[f.Offset] = v
}

// GetShort reads the field at index as a little-endian int16.
func (h *ComponentHandle) GetShort(index int) int16 {
	f := h.field(index)
	return int16(binary.LittleEndian.Uint16(h.data[f.Offset:]))
}

// SetShort writes v to the field at index.
func (h *ComponentHandle) SetShort(index int, v int16) {
	f := h.field(index)
	binary.LittleEndian.PutUint16(h.data[f.Offset:], uint16(v))
}

// GetInt reads the field at index as a little-endian int32.
func (h *ComponentHandle) GetInt(index int) int32 {
	f := h.field(index)
	return int32(binary.LittleEndian.Uint32(h.data[f.Offset:]))
}

// SetInt writes v to the field at index.
func (h *ComponentHandle) SetInt(index int, v int32) {
	f := h.field(index)
	binary.LittleEndian.PutUint32(h.data[f.Offset:], uint32(v))
}

// GetLong reads the field at index as a little-endian int64.
func (h *ComponentHandle) GetLong(index int) int64 {
	f := h.field(index)
	return int64(binary.LittleEndian.Uint64(h.data[f.Offset:]))
}

// SetLong writes v to the field at index.
func (h *ComponentHandle) SetLong(index int, v int64) {
	f := h.field(index)
	binary.LittleEndian.PutUint64(h.data[f.Offset:], uint64(v))
}

// GetFloat reads the field at index as a little-endian float32.
func (h *ComponentHandle) GetFloat(index int) float32 {
	f := h.field(index)
	return math.Float32frombits(binary.LittleEndian.Uint32(h.data[f.Offset:]))
}

// SetFloat writes v to the field at index.
func (h *ComponentHandle) SetFloat(index int, v float32) {
	f := h.field(index)
	binary.LittleEndian.PutUint32(h.data[f.Offset:], math.Float32bits(v))
}

// GetDouble reads the field at index as a little-endian float64.
func (h *ComponentHandle) GetDouble(index int) float64 {
	f := h.field(index)
	return math.Float64frombits(binary.LittleEndian.Uint64(h.data[f.Offset:]))
}

// SetDouble writes v to the field at index.
func (h *ComponentHandle) SetDouble(index int, v float64) {
	f := h.field(index)
	binary.LittleEndian.PutUint64(h.data[f.Offset:], math.Float64bits(v))
}

// GetBool reads the field at index as a bool.
func (h *ComponentHandle) GetBool(index int) bool {
	f := h.field(index)
	return h.data[f.Offset] != 0
}

// SetBool writes v to the field at index.
func (h *ComponentHandle) SetBool(index int, v bool) {
	f := h.field(index)
	if v {
		h.data[f.Offset] = 1
	} else {
		h.data[f.Offset] = 0
	}
}

// GetChar reads the field at index as a little-endian uint16 (a UTF-16
// code unit).
func (h *ComponentHandle) GetChar(index int) uint16 {
	f := h.field(index)
	return binary.LittleEndian.Uint16(h.data[f.Offset:])
}

// SetChar writes v to the field at index.
func (h *ComponentHandle) SetChar(index int, v uint16) {
	f := h.field(index)
	binary.LittleEndian.PutUint16(h.data[f.Offset:], v)
}

// GetStruct returns the raw bytes backing a PrimitiveStruct field.
func (h *ComponentHandle) GetStruct(index int) []byte {
	f := h.field(index)
	return h.data[f.Offset : f.Offset+f.Size]
}

var handlePool = sync.Pool{New: func() any { return new(ComponentHandle) }}

// acquireHandle returns a pooled, unbound ComponentHandle.
func acquireHandle() *ComponentHandle {
	return handlePool.Get().(*ComponentHandle)
}

// releaseHandle clears and returns h to the pool.
func releaseHandle(h *ComponentHandle) {
	h.data = nil
	handlePool.Put(h)
}
