package engine

import "unsafe"

// wordSize is the pointer width this build targets. Generated code on a
// real backend would pick 4 or 8 per target; this pure-Go engine always
// runs on the host's native pointer width.
const wordSize = unsafe.Sizeof(uintptr(0))

// Offsets is the byte-offset table computed for one module's counts.
// Compiled code embeds these as constants; this engine (which interprets
// rather than JITs) uses them to keep VMContext itself laid out exactly
// as documented here, so that an external code generator targeting this
// runtime can rely on the layout.
type Offsets struct {
	SignatureIDs        uintptr
	ImportedFunctions   uintptr
	ImportedTables      uintptr
	ImportedMemories    uintptr
	ImportedGlobals     uintptr
	LocalTables         uintptr
	LocalMemories       uintptr
	LocalGlobals        uintptr
	BuiltinFunctions    uintptr
	Size                uintptr
}

// importedFunctionSize is sizeof({body_ptr, vmctx_ptr}).
const importedFunctionSize = 2 * wordSize

// importedTableOrMemorySize is sizeof({definition_ptr, from_ptr}).
const importedTableOrMemorySize = 2 * wordSize

// importedGlobalSize is sizeof({definition_ptr}).
const importedGlobalSize = wordSize

// localTableSize is sizeof({base_ptr, current_elements_u32}), padded to
// pointer width.
const localTableSize = wordSize + wordSize

// localMemorySize is sizeof({base_ptr, current_length_usize}).
const localMemorySize = 2 * wordSize

// localGlobalSize is the 16-byte-aligned value slot width.
const localGlobalSize = 16

// ComputeOffsets lays out a VMContext field by field, in order, for a
// module declaring the given counts.
func ComputeOffsets(numImportedFuncs, numImportedTables, numImportedMemories, numImportedGlobals,
	numLocalTables, numLocalMemories, numLocalGlobals int) Offsets {
	var o Offsets
	off := uintptr(0)

	align := func(v uintptr, a uintptr) uintptr {
		if a == 0 {
			return v
		}
		return (v + a - 1) &^ (a - 1)
	}

	o.SignatureIDs = off
	off += uintptr(numImportedFuncs) * 4 // one u32 signature id per imported func, densely packed
	off = align(off, wordSize)

	o.ImportedFunctions = off
	off += uintptr(numImportedFuncs) * importedFunctionSize

	o.ImportedTables = off
	off += uintptr(numImportedTables) * importedTableOrMemorySize

	o.ImportedMemories = off
	off += uintptr(numImportedMemories) * importedTableOrMemorySize

	o.ImportedGlobals = off
	off += uintptr(numImportedGlobals) * importedGlobalSize

	o.LocalTables = off
	off += uintptr(numLocalTables) * localTableSize

	o.LocalMemories = off
	off += uintptr(numLocalMemories) * localMemorySize

	off = align(off, 16)
	o.LocalGlobals = off
	off += uintptr(numLocalGlobals) * localGlobalSize

	off = align(off, wordSize)
	o.BuiltinFunctions = off
	off += wordSize

	o.Size = off
	return o
}

// VMContext is the packed, aligned per-instance record that generated code
// indexes into at the byte offsets produced by ComputeOffsets. This
// engine is an interpreter, not a JIT, so VMContext here is a typed Go
// view rather than a raw byte buffer with pointer arithmetic; the
// Offsets table above documents the layout a real code generator would
// use against the same data.
type VMContext struct {
	Offsets Offsets

	SignatureIDs []uint32

	ImportedFunctions []ImportedFunctionSlot
	ImportedTables    []ImportedTableSlot
	ImportedMemories  []ImportedMemorySlot
	ImportedGlobals   []ImportedGlobalSlot

	LocalTables   []LocalTableSlot
	LocalMemories []LocalMemorySlot
	LocalGlobals  []LocalGlobalSlot

	// BuiltinFunctions is the host-runtime-helper table (memory.grow,
	// table.grow, trap-raising helpers, ...) generated code calls into.
	BuiltinFunctions *BuiltinFunctions
}

// ImportedFunctionSlot is {body_ptr, vmctx_ptr}.
type ImportedFunctionSlot struct {
	BodyPtr uintptr
	VMCtx   *VMContext
}

// ImportedTableSlot is {definition_ptr, from_ptr}.
type ImportedTableSlot struct {
	Definition uintptr
	From       *VMContext
}

// ImportedMemorySlot is {definition_ptr, from_ptr}.
type ImportedMemorySlot struct {
	Definition uintptr
	From       *VMContext
}

// ImportedGlobalSlot is {definition_ptr}.
type ImportedGlobalSlot struct {
	Definition uintptr
}

// LocalTableSlot is {base_ptr, current_elements_u32}.
type LocalTableSlot struct {
	Base            uintptr
	CurrentElements uint32
}

// LocalMemorySlot is {base_ptr, current_length_usize}.
type LocalMemorySlot struct {
	Base          uintptr
	CurrentLength uintptr
}

// LocalGlobalSlot is a 16-byte-aligned value cell, enough to hold any
// Wasm value type (including v128, if enabled) inline.
type LocalGlobalSlot struct {
	Lo, Hi uint64
}

// BuiltinFunctions is the set of host-runtime helpers addressable from
// generated code without a full import-trampoline round trip.
type BuiltinFunctions struct {
	MemoryGrow func(memIdx uint32, deltaPages uint32) (oldPages uint32, ok bool)
	TableGrow  func(tblIdx uint32, delta uint32, init uint64) (oldSize uint32, ok bool)
	Trap       func(code TrapCode)
}

// NewVMContext allocates a VMContext for a module declaring the given
// counts, with all slots zero-valued.
func NewVMContext(offsets Offsets, numImportedFuncs, numImportedTables, numImportedMemories,
	numImportedGlobals, numLocalTables, numLocalMemories, numLocalGlobals int) *VMContext {
	return &VMContext{
		Offsets:           offsets,
		SignatureIDs:      make([]uint32, numImportedFuncs),
		ImportedFunctions: make([]ImportedFunctionSlot, numImportedFuncs),
		ImportedTables:    make([]ImportedTableSlot, numImportedTables),
		ImportedMemories:  make([]ImportedMemorySlot, numImportedMemories),
		ImportedGlobals:   make([]ImportedGlobalSlot, numImportedGlobals),
		LocalTables:       make([]LocalTableSlot, numLocalTables),
		LocalMemories:     make([]LocalMemorySlot, numLocalMemories),
		LocalGlobals:      make([]LocalGlobalSlot, numLocalGlobals),
	}
}
