// Package syscall implements the WASI-preview1-shaped syscall surface: a
// per-instance file-descriptor table plus the fd_*/path_*/poll_oneoff
// operations that translate guest calls into internal/vfs operations.
//
// Grounded on imports/wasi_snapshot_preview1 for the overall shape (one Go
// function per WASI import, guest pointers passed as
// plain uint32 offsets the caller resolves against linear memory) and on
// original_source/lib/wasi/src/state/mod.rs for the descriptor-table/rights
// model (a dense slot table keyed by guest fd, stdio preopened at 0/1/2).
package syscall

import (
	"sync"

	"github.com/wazergo/runtime/internal/vfs"
)

// Fd is a guest-visible file descriptor number.
type Fd = uint32

const (
	FdStdin  Fd = 0
	FdStdout Fd = 1
	FdStderr Fd = 2
)

// Rights is the WASI rights bitset, restricting which operations a
// descriptor accepts regardless of what the underlying node supports.
type Rights uint64

const (
	RightFdRead Rights = 1 << iota
	RightFdWrite
	RightFdSeek
	RightFdReaddir
	RightFdFilestatGet
	RightFdFilestatSetSize
	RightFdFilestatSetTimes
	RightPathOpen
	RightPathCreateFile
	RightPathCreateDirectory
	RightPathUnlinkFile
	RightPathRemoveDirectory
	RightPathRenameSource
	RightPathRenameTarget
	RightPathSymlink
	RightPathReadlink
	RightPollFdReadwrite
	RightSockShutdown
	RightSockAccept
)

// descKind distinguishes what a descriptor slot actually wraps.
type descKind int

const (
	descFile descKind = iota
	descDir
	descSocket
	descStdio
)

// descriptor is one open file-descriptor-table entry.
type descriptor struct {
	kind   descKind
	node   vfs.Node
	handle vfs.Handle // nil for directories and stdio
	conn   *socketState
	rights Rights
	// offset is the fd's read/write cursor for descFile; fd_seek/fd_read/
	// fd_write keep it in sync with the guest's view of the stream.
	offset int64
}

// Table is the per-instance descriptor table: a dense, guest-indexed slice
// of descriptor slots. Slot 0/1/2 are preopened to the host's stdio streams
// (via the StdStream type) so the first user-opened descriptor starts at 3,
// matching every POSIX-descended WASI host.
type Table struct {
	mu    sync.Mutex
	slots []*descriptor
	free  []Fd
}

// StdStream adapts an already-open stream (os.Stdin/Stdout/Stderr, or a test
// double) into the Handle-shaped interface fd_read/fd_write operate against.
type StdStream interface {
	ReadAt(buf []byte, offset int64) (int, error)
	WriteAt(buf []byte, offset int64) (int, error)
}

type stdioHandle struct{ s StdStream }

func (h stdioHandle) ReadAt(buf []byte, offset int64) (int, error)  { return h.s.ReadAt(buf, offset) }
func (h stdioHandle) WriteAt(buf []byte, offset int64) (int, error) { return h.s.WriteAt(buf, offset) }
func (h stdioHandle) Flush() error                                  { return nil }
func (h stdioHandle) Fsync() error                                  { return nil }
func (h stdioHandle) SetLen(int64) error                            { return vfs.NewError(vfs.KindNotSupported, "stdio.set_len") }
func (h stdioHandle) Len() (int64, error)                           { return 0, vfs.NewError(vfs.KindNotSupported, "stdio.len") }
func (h stdioHandle) Dup() (vfs.Handle, error)                      { return h, nil }
func (h stdioHandle) Close() error                                  { return nil }

// NewTable builds a table with stdin/stdout/stderr preopened.
func NewTable(stdin, stdout, stderr StdStream) *Table {
	t := &Table{slots: make([]*descriptor, 3)}
	t.slots[FdStdin] = &descriptor{kind: descStdio, handle: stdioHandle{stdin}, rights: RightFdRead | RightFdSeek}
	t.slots[FdStdout] = &descriptor{kind: descStdio, handle: stdioHandle{stdout}, rights: RightFdWrite}
	t.slots[FdStderr] = &descriptor{kind: descStdio, handle: stdioHandle{stderr}, rights: RightFdWrite}
	return t
}

// reserve allocates a slot, reusing a freed index before growing the slice.
func (t *Table) reserve(d *descriptor) Fd {
	if n := len(t.free); n > 0 {
		fd := t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[fd] = d
		return fd
	}
	t.slots = append(t.slots, d)
	return Fd(len(t.slots) - 1)
}

// Insert installs d at a fresh slot and returns its guest-visible fd.
func (t *Table) Insert(d *descriptor) Fd {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reserve(d)
}

// Get returns the descriptor at fd, or ErrnoBadf's underlying condition if
// fd is out of range, unallocated, or was already closed.
func (t *Table) Get(fd Fd) (*descriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(fd) >= len(t.slots) || t.slots[fd] == nil {
		return nil, false
	}
	return t.slots[fd], true
}

// Remove releases fd's slot for reuse and returns the descriptor that
// occupied it, or false if fd was not open.
func (t *Table) Remove(fd Fd) (*descriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(fd) >= len(t.slots) || t.slots[fd] == nil {
		return nil, false
	}
	d := t.slots[fd]
	t.slots[fd] = nil
	t.free = append(t.free, fd)
	return d, true
}
