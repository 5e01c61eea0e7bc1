package syscall

import (
	"github.com/wazergo/runtime/internal/journal"
	"github.com/wazergo/runtime/internal/netrule"
	"github.com/wazergo/runtime/internal/syscall/wasip1"
	"github.com/wazergo/runtime/internal/vfs"
)

// GuestMemory is the minimal window the dispatcher needs into an instance's
// linear memory: bounds-checked byte access keyed by guest pointer. This
// keeps the package free of a dependency on internal/engine/internal/memory
// concrete types, so it can be exercised with a plain []byte in tests the
// same way a wasitest fake stands in for a real wasm.Module.
type GuestMemory interface {
	Read(offset, length uint32) ([]byte, bool)
	Write(offset uint32) ([]byte, bool)
	ReadUint32(offset uint32) (uint32, bool)
	WriteUint32(offset, value uint32) bool
	ReadUint64(offset uint32) (uint64, bool)
	WriteUint64(offset uint32, value uint64) bool
}

// Dispatcher binds one instance's descriptor table and guest memory to the
// mount table and network admission rules it is allowed to reach.
type Dispatcher struct {
	Mount *vfs.MountTable
	FDs   *Table
	Mem   GuestMemory
	Rules *netrule.RuleSet // nil disables all network syscalls
	Net   Dialer
	// Journal records mutating effects for later replay; nil disables
	// journaling, which still allows a parked instance to be resumed
	// within the same process but not replayed after a restart.
	Journal *journal.Log

	suspend *Suspension
}

// NewDispatcher wires a single instance's syscall surface together.
func NewDispatcher(mount *vfs.MountTable, fds *Table, mem GuestMemory, rules *netrule.RuleSet, net Dialer) *Dispatcher {
	return &Dispatcher{Mount: mount, FDs: fds, Mem: mem, Rules: rules, Net: net, suspend: &Suspension{}}
}

// errno narrows any error to its guest-visible code, ErrnoSuccess for nil.
func errno(err error) wasip1.Errno {
	return wasip1.FromError(err)
}

func badf() wasip1.Errno { return wasip1.ErrnoBadf }

// record appends an effect to the journal if one is attached. A journal
// write failure is not surfaced to the guest: by this point the side
// effect being recorded has already happened against the filesystem or
// network, so failing the syscall retroactively would be worse than a gap
// in the replay log.
func (d *Dispatcher) record(recType journal.RecordType, body any) {
	if d.Journal == nil {
		return
	}
	encoded, err := journal.EncodeBody(body)
	if err != nil {
		return
	}
	_, _ = d.Journal.Append(journal.Entry{Type: recType, Body: encoded})
}
