package wasihost

import (
	"github.com/wazergo/runtime/api"
	"github.com/wazergo/runtime/internal/engine"
	"github.com/wazergo/runtime/internal/modinfo"
	"github.com/wazergo/runtime/internal/syscall"
	"github.com/wazergo/runtime/internal/syscall/wasip1"
)

// ModuleNamePreview1 is the import module name WASI preview1 guests declare
// their fd_*/path_*/sock_* imports under.
const ModuleNamePreview1 = "wasi_snapshot_preview1"

// ModuleNameNet is the import module name the connect/listen extensions
// live under: sock_connect and sock_listen take a (network, address)
// string pair rather than the fixed-shape descriptor WASI preview1's own
// sock_accept/send/recv/shutdown expect, so they don't fit that module's
// signature table and are named separately rather than overloaded into it.
const ModuleNameNet = "wazergo_sock"

var i32 = api.ValueTypeI32
var i64 = api.ValueTypeI64

func ft(params, results []api.ValueType) modinfo.FunctionType {
	return modinfo.FunctionType{Params: params, Results: results}
}

// Provider adapts one instance's Dispatcher into an engine.ImportProvider.
// A Provider is scoped to a single Instantiate call: its host functions
// close over the Dispatcher (and, through it, that instance's own memory),
// so a fresh Provider is built per instance the same way a fresh Dispatcher
// is.
type Provider struct {
	d    *syscall.Dispatcher
	mem  *GuestMemory
	fns  map[string]engine.ImportedFunc
}

// New builds the import table for one instance's dispatcher. mem must be
// the same GuestMemory wired into d.Mem; it is kept separately here only
// because Dispatcher.Mem is typed as the syscall package's own interface
// and host functions need the concrete readString/iovec helpers this
// package defines against it.
func New(d *syscall.Dispatcher, mem *GuestMemory) *Provider {
	p := &Provider{d: d, mem: mem}
	p.fns = map[string]engine.ImportedFunc{
		preview1("fd_write"):          {Type: ft([]api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}), Call: p.fdWrite},
		preview1("fd_read"):           {Type: ft([]api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}), Call: p.fdRead},
		preview1("fd_seek"):           {Type: ft([]api.ValueType{i32, i64, i32, i32}, []api.ValueType{i32}), Call: p.fdSeek},
		preview1("fd_close"):          {Type: ft([]api.ValueType{i32}, []api.ValueType{i32}), Call: p.fdClose},
		preview1("path_open"):         {Type: ft([]api.ValueType{i32, i32, i32, i32, i32, i64, i64, i32, i32}, []api.ValueType{i32}), Call: p.pathOpen},
		preview1("path_unlink_file"):  {Type: ft([]api.ValueType{i32, i32, i32}, []api.ValueType{i32}), Call: p.pathUnlinkFile},
		preview1("path_rename"):       {Type: ft([]api.ValueType{i32, i32, i32, i32, i32, i32}, []api.ValueType{i32}), Call: p.pathRename},
		preview1("path_symlink"):      {Type: ft([]api.ValueType{i32, i32, i32, i32, i32}, []api.ValueType{i32}), Call: p.pathSymlink},
		preview1("path_readlink"):     {Type: ft([]api.ValueType{i32, i32, i32, i32, i32, i32}, []api.ValueType{i32}), Call: p.pathReadlink},
		preview1("sock_accept"):       {Type: ft([]api.ValueType{i32, i32, i32}, []api.ValueType{i32}), Call: p.sockAccept},
		preview1("sock_send"):         {Type: ft([]api.ValueType{i32, i32, i32, i32, i32}, []api.ValueType{i32}), Call: p.sockSend},
		preview1("sock_recv"):         {Type: ft([]api.ValueType{i32, i32, i32, i32, i32, i32}, []api.ValueType{i32}), Call: p.sockRecv},
		preview1("sock_shutdown"):     {Type: ft([]api.ValueType{i32, i32}, []api.ValueType{i32}), Call: p.sockShutdown},
		preview1("proc_exit"):         {Type: ft([]api.ValueType{i32}, nil), Call: p.procExit},
		netFn("sock_connect"):         {Type: ft([]api.ValueType{i32, i32, i32, i32, i32}, []api.ValueType{i32}), Call: p.sockConnect},
		netFn("sock_listen"):          {Type: ft([]api.ValueType{i32, i32, i32, i32, i32}, []api.ValueType{i32}), Call: p.sockListen},
	}
	return p
}

func preview1(name string) string { return ModuleNamePreview1 + "." + name }
func netFn(name string) string    { return ModuleNameNet + "." + name }

// ResolveFunc implements engine.ImportProvider.
func (p *Provider) ResolveFunc(module, name string) (engine.ImportedFunc, bool) {
	fn, ok := p.fns[module+"."+name]
	return fn, ok
}

func u32(v uint64) uint32 { return uint32(v) }

func errnoResult(e wasip1.Errno) []uint64 { return []uint64{uint64(e)} }
