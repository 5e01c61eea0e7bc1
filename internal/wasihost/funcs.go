package wasihost

import (
	"context"

	"github.com/wazergo/runtime/internal/engine"
	"github.com/wazergo/runtime/internal/syscall"
	"github.com/wazergo/runtime/internal/syscall/wasip1"
)

// fdWrite implements the fd_write import: (fd, iovs, iovs_len, result.nwritten) -> errno.
func (p *Provider) fdWrite(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	fd, iovs, iovsLen, nwrittenPtr := u32(args[0]), u32(args[1]), u32(args[2]), u32(args[3])
	n, e := p.d.FdWrite(fd, iovs, iovsLen)
	if e == wasip1.ErrnoSuccess && !p.mem.WriteUint32(nwrittenPtr, n) {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(e), nil
}

// fdRead implements the fd_read import: (fd, iovs, iovs_len, result.nread) -> errno.
func (p *Provider) fdRead(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	fd, iovs, iovsLen, nreadPtr := u32(args[0]), u32(args[1]), u32(args[2]), u32(args[3])
	n, e := p.d.FdRead(fd, iovs, iovsLen)
	if e == wasip1.ErrnoSuccess && !p.mem.WriteUint32(nreadPtr, n) {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(e), nil
}

// fdSeek implements the fd_seek import: (fd, offset, whence, result.newoffset) -> errno.
func (p *Provider) fdSeek(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	fd, offset, whence, newOffsetPtr := u32(args[0]), int64(args[1]), u32(args[2]), u32(args[3])
	newOffset, e := p.d.FdSeek(fd, offset, syscall.Whence(whence))
	if e == wasip1.ErrnoSuccess && !p.mem.WriteUint64(newOffsetPtr, newOffset) {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(e), nil
}

// fdClose implements the fd_close import: (fd) -> errno.
func (p *Provider) fdClose(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	return errnoResult(p.d.FdClose(u32(args[0]))), nil
}

// oflagsCreate/Directory/Excl/Truncate mirror WASI's path_open oflags bits;
// fdflags' Append bit is folded in separately since path_open packs it into
// a different parameter than oflags.
const (
	oflagsCreate = 1 << iota
	oflagsDirectory
	oflagsExcl
	oflagsTruncate
)

const fdflagsAppend = 1 << 0

// pathOpen implements the path_open import:
// (dirfd, dirflags, path, path_len, oflags, fs_rights_base, fs_rights_inheriting, fdflags, result.fd) -> errno.
func (p *Provider) pathOpen(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	dirFd := u32(args[0])
	pathPtr, pathLen := u32(args[2]), u32(args[3])
	oflags := u32(args[4])
	fdflags := u32(args[7])
	fdPtr := u32(args[8])

	path, ok := readString(p.mem, pathPtr, pathLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	rights := fsRightsToReadWrite(args[5])
	flags := syscall.PathOpenFlags{
		Create:    oflags&oflagsCreate != 0,
		Directory: oflags&oflagsDirectory != 0,
		Excl:      oflags&oflagsExcl != 0,
		Truncate:  oflags&oflagsTruncate != 0,
		Read:      rights.read,
		Write:     rights.write,
		Append:    fdflags&fdflagsAppend != 0,
	}
	fd, e := p.d.PathOpen(dirFd, path, flags)
	if e == wasip1.ErrnoSuccess && !p.mem.WriteUint32(fdPtr, fd) {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(e), nil
}

type readWrite struct{ read, write bool }

// fsRightsToReadWrite treats a nonzero fs_rights_base as "the guest asked
// for read and/or write access" rather than decoding the full WASI rights
// bitset, since path_open's caller (PathOpen) only distinguishes those two.
// A zero rights mask defaults to read-only, matching POSIX open(2)'s
// O_RDONLY default.
func fsRightsToReadWrite(rightsBase uint64) readWrite {
	const rightFdRead, rightFdWrite = 1 << 1, 1 << 6
	rw := readWrite{}
	rw.read = rightsBase == 0 || rightsBase&rightFdRead != 0
	rw.write = rightsBase&rightFdWrite != 0
	return rw
}

// pathUnlinkFile implements path_unlink_file: (dirfd, path, path_len) -> errno.
func (p *Provider) pathUnlinkFile(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	dirFd, pathPtr, pathLen := u32(args[0]), u32(args[1]), u32(args[2])
	path, ok := readString(p.mem, pathPtr, pathLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(p.d.PathUnlinkFile(dirFd, path)), nil
}

// pathRename implements path_rename: (old_dirfd, old_path, old_path_len, new_dirfd, new_path, new_path_len) -> errno.
func (p *Provider) pathRename(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	oldDirFd, oldPtr, oldLen := u32(args[0]), u32(args[1]), u32(args[2])
	newDirFd, newPtr, newLen := u32(args[3]), u32(args[4]), u32(args[5])
	oldPath, ok := readString(p.mem, oldPtr, oldLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	newPath, ok := readString(p.mem, newPtr, newLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(p.d.PathRename(oldDirFd, oldPath, newDirFd, newPath)), nil
}

// pathSymlink implements path_symlink: (target, target_len, dirfd, linkpath, linkpath_len) -> errno.
func (p *Provider) pathSymlink(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	targetPtr, targetLen := u32(args[0]), u32(args[1])
	dirFd := u32(args[2])
	linkPtr, linkLen := u32(args[3]), u32(args[4])
	target, ok := readString(p.mem, targetPtr, targetLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	linkPath, ok := readString(p.mem, linkPtr, linkLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(p.d.PathSymlink(target, dirFd, linkPath)), nil
}

// pathReadlink implements path_readlink: (dirfd, path, path_len, buf, buf_len, result.bufused) -> errno.
// A target longer than buf_len is truncated to fit, matching readlink(2)'s
// own silent-truncation behavior rather than failing the call.
func (p *Provider) pathReadlink(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	dirFd, pathPtr, pathLen := u32(args[0]), u32(args[1]), u32(args[2])
	bufPtr, bufLen, bufUsedPtr := u32(args[3]), u32(args[4]), u32(args[5])
	path, ok := readString(p.mem, pathPtr, pathLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	target, e := p.d.PathReadlink(dirFd, path)
	if e != wasip1.ErrnoSuccess {
		return errnoResult(e), nil
	}
	b := []byte(target)
	if uint32(len(b)) > bufLen {
		b = b[:bufLen]
	}
	dst, ok := p.mem.Write(bufPtr)
	if !ok || uint32(len(dst)) < uint32(len(b)) {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	copy(dst, b)
	if !p.mem.WriteUint32(bufUsedPtr, uint32(len(b))) {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(wasip1.ErrnoSuccess), nil
}

// sockAccept implements sock_accept: (fd, flags, result.fd) -> errno. The
// flags parameter (nonblocking accept) has no effect here since Dispatcher
// always blocks; a cooperative runtime wanting nonblocking accept instead
// parks the calling instance via the suspension mechanism above this layer.
func (p *Provider) sockAccept(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	fd, resultPtr := u32(args[0]), u32(args[2])
	newFd, e := p.d.SockAccept(fd)
	if e == wasip1.ErrnoSuccess && !p.mem.WriteUint32(resultPtr, newFd) {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(e), nil
}

// sockSend implements sock_send: (fd, si_data, si_data_len, si_flags, result.nsent) -> errno.
// si_data is treated as a single buffer (ptr, len) rather than an iovec
// array, matching what every WASI preview1 sock_send caller in practice
// passes (a single-element iovec).
func (p *Provider) sockSend(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	fd := u32(args[0])
	dataPtr, dataLen := u32(args[1]), u32(args[2])
	nsentPtr := u32(args[4])
	buf, ok := p.mem.Read(dataPtr, dataLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	n, e := p.d.SockSend(fd, buf)
	if e == wasip1.ErrnoSuccess && !p.mem.WriteUint32(nsentPtr, n) {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(e), nil
}

// sockRecv implements sock_recv: (fd, ri_data, ri_data_len, ri_flags, result.nread, result.roflags) -> errno.
func (p *Provider) sockRecv(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	fd := u32(args[0])
	dataPtr, dataLen := u32(args[1]), u32(args[2])
	nreadPtr, roflagsPtr := u32(args[4]), u32(args[5])
	buf, ok := p.mem.Write(dataPtr)
	if !ok || uint32(len(buf)) < dataLen {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	n, e := p.d.SockRecv(fd, buf[:dataLen])
	if e != wasip1.ErrnoSuccess {
		return errnoResult(e), nil
	}
	if !p.mem.WriteUint32(nreadPtr, n) || !p.mem.WriteUint32(roflagsPtr, 0) {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(wasip1.ErrnoSuccess), nil
}

// sockShutdown implements sock_shutdown: (fd, how) -> errno. how is
// ignored: Dispatcher.SockShutdown always closes the descriptor outright.
func (p *Provider) sockShutdown(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	return errnoResult(p.d.SockShutdown(u32(args[0]))), nil
}

// procExit implements proc_exit: (code) -> (no return). It never completes
// normally; it raises a host trap wrapping ExitError, which an embedder
// unwraps with errors.As to distinguish a guest-requested exit from an
// actual fault.
func (p *Provider) procExit(_ context.Context, args []uint64) ([]uint64, *engine.Trap) {
	return nil, engine.NewHostTrap(ExitError{Code: int32(args[0])}, nil)
}

// ExitError is the sentinel an embedder matches via errors.As to recognize
// a guest's call to proc_exit, as distinct from any other host trap.
type ExitError struct {
	Code int32
}

func (e ExitError) Error() string { return "proc_exit" }

// sockConnect implements the sock_connect extension:
// (network, network_len, address, address_len, result.fd) -> errno.
func (p *Provider) sockConnect(ctx context.Context, args []uint64) ([]uint64, *engine.Trap) {
	netPtr, netLen := u32(args[0]), u32(args[1])
	addrPtr, addrLen := u32(args[2]), u32(args[3])
	fdPtr := u32(args[4])
	network, ok := readString(p.mem, netPtr, netLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	address, ok := readString(p.mem, addrPtr, addrLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	fd, e := p.d.SockConnect(ctx, network, address)
	if e == wasip1.ErrnoSuccess && !p.mem.WriteUint32(fdPtr, fd) {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(e), nil
}

// sockListen implements the sock_listen extension:
// (network, network_len, address, address_len, result.fd) -> errno.
func (p *Provider) sockListen(ctx context.Context, args []uint64) ([]uint64, *engine.Trap) {
	netPtr, netLen := u32(args[0]), u32(args[1])
	addrPtr, addrLen := u32(args[2]), u32(args[3])
	fdPtr := u32(args[4])
	network, ok := readString(p.mem, netPtr, netLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	address, ok := readString(p.mem, addrPtr, addrLen)
	if !ok {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	fd, e := p.d.SockListen(ctx, network, address)
	if e == wasip1.ErrnoSuccess && !p.mem.WriteUint32(fdPtr, fd) {
		return errnoResult(wasip1.ErrnoFault), nil
	}
	return errnoResult(e), nil
}
