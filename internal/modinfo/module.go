// Package wasm defines the section-level shape of a compiled module: the
// immutable declaration surface (types, imports, exports, globals, tables,
// memories, element and data segments) that a CompilationArtifact carries
// and that an Instance is materialized from.
package modinfo

import "github.com/wazergo/runtime/api"

// FunctionType is a function signature: zero or more parameter types and
// zero or more result types. Two FunctionTypes with identical Params and
// Results are structurally equal and intern to the same SignatureID in the
// engine's signature registry.
type FunctionType struct {
	Params  []api.ValueType
	Results []api.ValueType
}

// Equal reports whether ft and other declare the same parameter and result
// lists. Used by the signature registry to dedupe structurally-identical
// signatures into one interned index.
func (ft *FunctionType) Equal(other *FunctionType) bool {
	if len(ft.Params) != len(other.Params) || len(ft.Results) != len(other.Results) {
		return false
	}
	for i, p := range ft.Params {
		if other.Params[i] != p {
			return false
		}
	}
	for i, r := range ft.Results {
		if other.Results[i] != r {
			return false
		}
	}
	return true
}

// String renders a signature such as "(i32,i64)->(i32)" for diagnostics.
func (ft *FunctionType) String() string {
	s := "("
	for i, p := range ft.Params {
		if i > 0 {
			s += ","
		}
		s += api.ValueTypeName(p)
	}
	s += ")->("
	for i, r := range ft.Results {
		if i > 0 {
			s += ","
		}
		s += api.ValueTypeName(r)
	}
	return s + ")"
}

// Import describes one imported function, table, memory or global.
type Import struct {
	Module, Name string
	Type         api.ExternType
	// DescFunctionTypeIndex is valid when Type == ExternTypeFunc.
	DescFunctionTypeIndex uint32
	DescTable             *TableType
	DescMemory            *MemoryType
	DescGlobal            *GlobalType
}

// Export describes one exported function, table, memory or global by its
// module-scoped index.
type Export struct {
	Name  string
	Type  api.ExternType
	Index uint32
}

// RefTypeFuncref is the binary encoding of the funcref element type, used
// by TableType.ElemType. api.ValueTypeExternref is the other legal value.
const RefTypeFuncref api.ValueType = 0x70

// TableType declares an element type and size bounds for a Table.
type TableType struct {
	ElemType api.ValueType // RefTypeFuncref or api.ValueTypeExternref
	Min      uint32
	Max      *uint32
}

// MemoryType declares page bounds (64KiB pages) for a LinearMemory, plus
// whether the memory is shared across instances/threads.
type MemoryType struct {
	Min, Max uint32
	IsMaxEncoded bool
	IsShared     bool
	Is64         bool // memory64 proposal: guest pointers are u64, not u32.
}

// GlobalType declares a value type and mutability for a Global.
type GlobalType struct {
	ValType api.ValueType
	Mutable bool
}

// ElementSegment initializes a range of a Table with function indices.
type ElementSegment struct {
	TableIndex uint32
	Offset     ConstExpr
	Init       []uint32
	// Dropped is set by the elem.drop instruction; a dropped segment's
	// length is treated as zero by table.init.
	Dropped bool
}

// DataSegment initializes a range of a LinearMemory with bytes.
type DataSegment struct {
	MemoryIndex uint32
	Offset      ConstExpr
	Init        []byte
	// Dropped is set by the data.drop instruction; a dropped segment's
	// length is treated as zero by memory.init.
	Dropped bool
}

// ConstExpr is a constant initializer expression: either a literal i32/i64
// offset or a reference to an imported global (the only two forms the core
// needs to resolve offset/table-index expressions at instantiation time).
type ConstExpr struct {
	Literal    int64
	IsGlobal   bool
	GlobalIdx  uint32
}

// ModuleInfo is the full declared-shape section set of a compiled module,
// as carried by a CompilationArtifact's metadata blob.
type ModuleInfo struct {
	Types    []FunctionType
	Imports  []Import
	Exports  []Export
	Globals  []GlobalType
	// GlobalInit holds the constant initializer for each locally-defined
	// global; len(GlobalInit) == len(Globals) - (imported global count).
	GlobalInit []ConstExpr
	Tables   []TableType
	Memories []MemoryType
	Elements []ElementSegment
	Data     []DataSegment
	// StartFunc, if non-nil, is the module-scoped function index run
	// exactly once at the end of instantiation.
	StartFunc *uint32
	// FunctionTypeIndices maps each locally-defined function to the index
	// into Types of its signature.
	FunctionTypeIndices []uint32
}

// NumImportedFuncs returns how many Imports declare a function, which is
// also the count of imported_functions slots in VMContext.
func (m *ModuleInfo) NumImportedFuncs() int { return m.numImported(m.Types != nil, 0x00) }

// NumImportedTables returns the imported-table count.
func (m *ModuleInfo) NumImportedTables() int { return m.numImported(true, 0x01) }

// NumImportedMemories returns the imported-memory count.
func (m *ModuleInfo) NumImportedMemories() int { return m.numImported(true, 0x02) }

// NumImportedGlobals returns the imported-global count.
func (m *ModuleInfo) NumImportedGlobals() int { return m.numImported(true, 0x03) }

func (m *ModuleInfo) numImported(_ bool, et api.ExternType) int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Type == et {
			n++
		}
	}
	return n
}
