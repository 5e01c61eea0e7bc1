// Package engine implements the Engine factory, Instance materialization,
// the VMContext layout (vmcontext.go), the call-into-Wasm boundary and
// trap delivery (trap.go, trapguard/), the signature registry
// (signature.go) and in-process exception-table walking (unwind/).
//
// Grounded on internal/engine/compiler (kept unmodified as reference for
// the engine/moduleEngine/callEngine split and the VM-accessed-struct-
// field-offset discipline) — the per-function code generator itself stays
// an external collaborator, so this package is an interpreter over a
// LocalFunc callback rather than a JIT.
package engine

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wazergo/runtime/api"
	"github.com/wazergo/runtime/internal/modinfo"
)

var log = logrus.WithField("component", "engine")

// Errors surfaced at load/instantiate time.
var (
	ErrLinkTypeMismatch       = errors.New("link-type-mismatch")
	ErrLinkResourceExhausted  = errors.New("link-resource-exhausted")
	ErrSegmentOutOfRange      = errors.New("link-time segment range error")
)

// TargetInfo describes the engine's process-wide compilation target: the
// pointer size, endianness, and supported Wasm feature set.
type TargetInfo struct {
	PointerSize    int
	LittleEndian   bool
	CoreFeatures   uint64
}

// DefaultTarget is the host's own pointer size/endianness.
var DefaultTarget = TargetInfo{PointerSize: int(wordSize), LittleEndian: true}

// LocalFunc is the external code generator's product for one local
// function: given the instance's VMContext and raw argument/result cells,
// it runs the function body, raising a Trap via RaiseTrap on failure.
// This stands in for a pointer to executable code, expressed as a Go
// closure since code generation is out of this package's scope.
type LocalFunc func(vmctx *VMContext, args []uint64) (results []uint64)

// ImportedFunc is a host- or other-instance-provided function resolved
// into an Instance's import slots.
type ImportedFunc struct {
	Type modinfo.FunctionType
	Call func(ctx context.Context, args []uint64) (results []uint64, trap *Trap)
}

// Engine is the process-scoped factory: it owns the target
// description, the signature registry, and (conceptually) a table of
// generic call trampolines keyed by signature — represented here simply as
// "any LocalFunc/ImportedFunc matching the signature is callable", since
// this engine does not generate machine code trampolines.
type Engine struct {
	Target     TargetInfo
	Signatures *SignatureRegistry

	mu      sync.Mutex
	modules map[string]*CompiledModule
}

// NewEngine constructs an Engine for one embedder session.
func NewEngine(target TargetInfo) *Engine {
	return &Engine{
		Target:     target,
		Signatures: NewSignatureRegistry(),
		modules:    make(map[string]*CompiledModule),
	}
}

// CompiledModule is this engine's resolved view of a loaded
// CompilationArtifact: its ModuleInfo plus the local function bodies and
// per-signature IDs, ready to instantiate.
type CompiledModule struct {
	Info          modinfo.ModuleInfo
	SignatureIDs  []SignatureID // one per entry in Info.Types, in order
	LocalFuncs    []LocalFunc   // one per locally-defined function
}

// Load registers mi's signatures with the engine and pairs each local
// function index with its LocalFunc body. Object parsing itself is
// internal/artifact's job, and mapping code pages is the external
// loader's.
func (e *Engine) Load(mi modinfo.ModuleInfo, bodies []LocalFunc) (*CompiledModule, error) {
	if len(bodies) != len(mi.FunctionTypeIndices) {
		return nil, errors.Errorf("engine: %d function bodies for %d declared local functions",
			len(bodies), len(mi.FunctionTypeIndices))
	}
	ids := make([]SignatureID, len(mi.Types))
	for i, ft := range mi.Types {
		ids[i] = e.Signatures.Intern(ft)
	}
	return &CompiledModule{Info: mi, SignatureIDs: ids, LocalFuncs: bodies}, nil
}

// ImportProvider resolves one (module, name) import to a concrete value.
// The engine doesn't care what provides imports; a host embedder or
// another Instance's exports both satisfy this.
type ImportProvider interface {
	ResolveFunc(module, name string) (ImportedFunc, bool)
}

// Instance is the runtime materialization of one CompiledModule. It owns
// a VMContext, the resolved import slots, and (via
// Memories/Tables/Globals) the module's own memory/table/global instances,
// which are constructed by internal/memory and wired in by the embedder
// calling Instantiate.
type Instance struct {
	engine   *Engine
	module   *CompiledModule
	vmctx    *VMContext
	imports  []ImportedFunc
	started  bool

	// funcs indexes every callable function (imports first, then locals)
	// by module-scoped function index, matching Wasm's index-space rule.
	funcs []callableFunc
}

type callableFunc struct {
	sigID SignatureID
	typ   modinfo.FunctionType
	local LocalFunc
	imp   *ImportedFunc
}

// Instantiate performs instantiation's allocation, import resolution/
// type-checking, and VMContext fill; table/memory/global
// initialization from element/data segments and the start-function run
// are performed by the embedder via InitSegments and RunStart once it has
// constructed the concrete LinearMemory/Table/Global instances (those are
// internal/memory's and this package's callers' responsibility to wire,
// keeping this package free of a dependency on internal/memory).
func (e *Engine) Instantiate(cm *CompiledModule, imports ImportProvider) (*Instance, error) {
	numImpFuncs := cm.Info.NumImportedFuncs()
	numImpTables := cm.Info.NumImportedTables()
	numImpMemories := cm.Info.NumImportedMemories()
	numImpGlobals := cm.Info.NumImportedGlobals()
	numLocalTables := len(cm.Info.Tables)
	numLocalMemories := len(cm.Info.Memories)
	numLocalGlobals := len(cm.Info.Globals) - numImpGlobals

	offsets := ComputeOffsets(numImpFuncs, numImpTables, numImpMemories, numImpGlobals,
		numLocalTables, numLocalMemories, numLocalGlobals)
	vmctx := NewVMContext(offsets, numImpFuncs, numImpTables, numImpMemories, numImpGlobals,
		numLocalTables, numLocalMemories, numLocalGlobals)

	inst := &Instance{engine: e, module: cm, vmctx: vmctx}

	resolvedImports := make([]ImportedFunc, 0, numImpFuncs)
	funcs := make([]callableFunc, 0, numImpFuncs+len(cm.LocalFuncs))

	funcImportIdx := 0
	for _, imp := range cm.Info.Imports {
		if imp.Type != api.ExternTypeFunc {
			continue
		}
		ft := cm.Info.Types[imp.DescFunctionTypeIndex]
		resolved, ok := imports.ResolveFunc(imp.Module, imp.Name)
		if !ok {
			return nil, errors.Wrapf(ErrLinkResourceExhausted, "missing import %s.%s", imp.Module, imp.Name)
		}
		if !resolved.Type.Equal(&ft) {
			return nil, errors.Wrapf(ErrLinkTypeMismatch, "import %s.%s: declared %s, provided %s",
				imp.Module, imp.Name, ft.String(), resolved.Type.String())
		}
		sigID := e.Signatures.Intern(ft)
		vmctx.SignatureIDs[funcImportIdx] = uint32(sigID)
		resolvedImports = append(resolvedImports, resolved)
		funcs = append(funcs, callableFunc{sigID: sigID, typ: ft, imp: &resolvedImports[len(resolvedImports)-1]})
		funcImportIdx++
	}
	inst.imports = resolvedImports

	for i, localFn := range cm.LocalFuncs {
		typeIdx := cm.Info.FunctionTypeIndices[i]
		funcs = append(funcs, callableFunc{
			sigID: cm.SignatureIDs[typeIdx],
			typ:   cm.Info.Types[typeIdx],
			local: localFn,
		})
	}
	inst.funcs = funcs

	log.WithFields(logrus.Fields{
		"imported_funcs": numImpFuncs,
		"local_funcs":    len(cm.LocalFuncs),
	}).Debug("engine: instance allocated")

	return inst, nil
}

// RunStart runs the module's declared start function exactly once, inside
// a trap catcher. It is a no-op if the module
// declares none. Calling it a second time is a caller bug, not guarded
// against here since the embedder (which alone knows instantiation order)
// is expected to call it exactly once right after segment initialization.
func (inst *Instance) RunStart(ctx context.Context) *Trap {
	if inst.module.Info.StartFunc == nil {
		return nil
	}
	if inst.started {
		return nil
	}
	inst.started = true
	_, trap := inst.Call(ctx, *inst.module.Info.StartFunc, nil)
	return trap
}

// Call is the typed call-into-Wasm boundary: resolve the function,
// install a catch frame, invoke it, and convert any raised trap into a
// returned *Trap rather than letting it unwind past this call.
func (inst *Instance) Call(ctx context.Context, funcIdx uint32, args []uint64) (results []uint64, trap *Trap) {
	if int(funcIdx) >= len(inst.funcs) {
		return nil, NewHostTrap(errors.Errorf("function index %d out of range", funcIdx), nil)
	}
	fn := inst.funcs[funcIdx]

	trap = CallWithCatch(func() {
		if fn.imp != nil {
			r, t := fn.imp.Call(ctx, args)
			if t != nil {
				RaiseTrap(t)
			}
			results = r
			return
		}
		results = fn.local(inst.vmctx, args)
	})
	return results, trap
}

// CallIndirect performs the indirect-call-type-mismatch check: the caller
// supplies the expected signature (from the call_indirect instruction's
// immediate type index) and the table's stored function index; a
// mismatch traps without invoking anything.
func (inst *Instance) CallIndirect(ctx context.Context, expected modinfo.FunctionType, tableFuncIdx uint32, args []uint64) ([]uint64, *Trap) {
	if int(tableFuncIdx) >= len(inst.funcs) {
		return nil, NewCodeTrap(TrapCodeOutOfBounds, nil)
	}
	actual := inst.funcs[tableFuncIdx]
	if inst.engine.Signatures.Intern(expected) != actual.sigID {
		return nil, NewCodeTrap(TrapCodeIndirectCallTypeMismatch, nil)
	}
	return inst.Call(ctx, tableFuncIdx, args)
}

// VMContext exposes the instance's packed VM context, e.g. for a code
// generator or for internal/memory to fill LocalMemories slots after
// growing.
func (inst *Instance) VMContext() *VMContext { return inst.vmctx }

// FuncCount returns the number of callable functions (imports + locals) in
// the instance's index space.
func (inst *Instance) FuncCount() int { return len(inst.funcs) }
