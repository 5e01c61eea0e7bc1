// Package wasihost adapts internal/syscall.Dispatcher — a typed Go method
// surface — onto engine.ImportProvider, so a compiled module's WASI imports
// actually reach the dispatcher at call time. Grounded on
// imports/wasi_snapshot_preview1/fs.go's per-function host-function shape:
// one Go function per WASI import, guest pointers decoded from the raw
// []uint64 argument cells engine.ImportedFunc.Call receives.
package wasihost

import "encoding/binary"

// ModuleMemory is the exact view internal/memory.Memory exposes that this
// package needs; kept as a local interface rather than importing
// internal/memory directly so tests can supply a plain byte slice.
type ModuleMemory interface {
	Base() []byte
}

// GuestMemory implements syscall.GuestMemory over a ModuleMemory's backing
// slice, so a *memory.Memory can be handed to syscall.NewDispatcher without
// internal/syscall importing internal/memory directly.
// internal/memory.Memory's own ReadAt/WriteAt copy on every call; this
// adapter instead slices Base() directly, since the dispatcher's bounds
// checks here only ever run for the lifetime of one host-function call and
// never retain the slice past it.
type GuestMemory struct {
	mem ModuleMemory
}

// NewGuestMemory wraps mem for use as a Dispatcher's Mem field.
func NewGuestMemory(mem ModuleMemory) *GuestMemory { return &GuestMemory{mem: mem} }

func (m *GuestMemory) Read(offset, length uint32) ([]byte, bool) {
	base := m.mem.Base()
	end := uint64(offset) + uint64(length)
	if end > uint64(len(base)) {
		return nil, false
	}
	out := make([]byte, length)
	copy(out, base[offset:end])
	return out, true
}

func (m *GuestMemory) Write(offset uint32) ([]byte, bool) {
	base := m.mem.Base()
	if uint64(offset) > uint64(len(base)) {
		return nil, false
	}
	return base[offset:], true
}

func (m *GuestMemory) ReadUint32(offset uint32) (uint32, bool) {
	base := m.mem.Base()
	if uint64(offset)+4 > uint64(len(base)) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(base[offset : offset+4]), true
}

func (m *GuestMemory) WriteUint32(offset, value uint32) bool {
	base := m.mem.Base()
	if uint64(offset)+4 > uint64(len(base)) {
		return false
	}
	binary.LittleEndian.PutUint32(base[offset:offset+4], value)
	return true
}

func (m *GuestMemory) ReadUint64(offset uint32) (uint64, bool) {
	base := m.mem.Base()
	if uint64(offset)+8 > uint64(len(base)) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(base[offset : offset+8]), true
}

func (m *GuestMemory) WriteUint64(offset uint32, value uint64) bool {
	base := m.mem.Base()
	if uint64(offset)+8 > uint64(len(base)) {
		return false
	}
	binary.LittleEndian.PutUint64(base[offset:offset+8], value)
	return true
}

// readString decodes a (ptr, len) guest string argument.
func readString(mem *GuestMemory, ptr, length uint32) (string, bool) {
	b, ok := mem.Read(ptr, length)
	if !ok {
		return "", false
	}
	return string(b), true
}
