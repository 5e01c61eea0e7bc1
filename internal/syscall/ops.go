package syscall

import (
	"github.com/wazergo/runtime/internal/journal"
	"github.com/wazergo/runtime/internal/syscall/wasip1"
	"github.com/wazergo/runtime/internal/vfs"
)

// iovec is one WASI ciovec/iovec entry: 8 bytes in guest memory, a pointer
// followed by a length, both little-endian u32s.
const iovecSize = 8

func (d *Dispatcher) readIovecs(iovsPtr, iovsLen uint32) ([][]byte, wasip1.Errno) {
	bufs := make([][]byte, 0, iovsLen)
	for i := uint32(0); i < iovsLen; i++ {
		entry, ok := d.Mem.Read(iovsPtr+i*iovecSize, iovecSize)
		if !ok {
			return nil, wasip1.ErrnoFault
		}
		ptr := le32(entry[0:4])
		length := le32(entry[4:8])
		buf, ok := d.Mem.Write(ptr)
		if !ok && length > 0 {
			return nil, wasip1.ErrnoFault
		}
		if length > 0 {
			if uint32(len(buf)) < length {
				return nil, wasip1.ErrnoFault
			}
			buf = buf[:length]
		} else {
			buf = nil
		}
		bufs = append(bufs, buf)
	}
	return bufs, wasip1.ErrnoSuccess
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// FdWrite implements fd_write: gather every iovec's bytes and write them to
// fd in order, starting at its current cursor, advancing the cursor by the
// total written. Matches fdWriteFn in imports/wasi_snapshot_preview1/fs.go
// for the overall "each iovec is one WriteAt call, offset carried across
// iovecs" shape.
func (d *Dispatcher) FdWrite(fd Fd, iovsPtr, iovsLen uint32) (uint32, wasip1.Errno) {
	desc, ok := d.FDs.Get(fd)
	if !ok {
		return 0, badf()
	}
	if desc.rights&RightFdWrite == 0 {
		return 0, wasip1.ErrnoNotcapable
	}
	bufs, e := d.readIovecs(iovsPtr, iovsLen)
	if e != wasip1.ErrnoSuccess {
		return 0, e
	}

	var total uint32
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		var n int
		var err error
		if desc.kind == descSocket {
			n, err = desc.conn.conn.Write(buf)
		} else {
			n, err = desc.handle.WriteAt(buf, desc.offset)
			desc.offset += int64(n)
		}
		total += uint32(n)
		if err != nil {
			return total, errno(err)
		}
	}
	if desc.kind != descSocket && total > 0 {
		d.record(journal.RecordFileWrite, fileWriteBody{Fd: fd, Bytes: total})
	}
	return total, wasip1.ErrnoSuccess
}

// fileWriteBody is the journaled payload for RecordFileWrite: enough to
// replay "fd was advanced by this many bytes" without re-deriving it from
// the iovec layout, which may not even exist at replay time.
type fileWriteBody struct {
	Fd    Fd
	Bytes uint32
}

// FdRead implements fd_read: fill each iovec in turn from fd's current
// cursor, stopping early (short read) the first time fewer bytes are
// available than the iovec's capacity.
func (d *Dispatcher) FdRead(fd Fd, iovsPtr, iovsLen uint32) (uint32, wasip1.Errno) {
	desc, ok := d.FDs.Get(fd)
	if !ok {
		return 0, badf()
	}
	if desc.rights&RightFdRead == 0 {
		return 0, wasip1.ErrnoNotcapable
	}
	bufs, e := d.readIovecs(iovsPtr, iovsLen)
	if e != wasip1.ErrnoSuccess {
		return 0, e
	}

	var total uint32
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		var n int
		var err error
		if desc.kind == descSocket {
			if len(desc.conn.peeked) > 0 {
				n = copy(buf, desc.conn.peeked)
				desc.conn.peeked = desc.conn.peeked[n:]
			} else {
				n, err = desc.conn.conn.Read(buf)
			}
		} else {
			n, err = desc.handle.ReadAt(buf, desc.offset)
			desc.offset += int64(n)
		}
		total += uint32(n)
		if err != nil {
			return total, errno(err)
		}
		if n < len(buf) {
			break
		}
	}
	return total, wasip1.ErrnoSuccess
}

// Whence matches the POSIX lseek whence values fd_seek accepts.
type Whence uint8

const (
	WhenceSet Whence = iota
	WhenceCur
	WhenceEnd
)

// FdSeek implements fd_seek.
func (d *Dispatcher) FdSeek(fd Fd, offset int64, whence Whence) (uint64, wasip1.Errno) {
	desc, ok := d.FDs.Get(fd)
	if !ok {
		return 0, badf()
	}
	if desc.rights&RightFdSeek == 0 {
		return 0, wasip1.ErrnoNotcapable
	}
	if desc.handle == nil {
		return 0, wasip1.ErrnoSpipe
	}

	var base int64
	switch whence {
	case WhenceSet:
		base = 0
	case WhenceCur:
		base = desc.offset
	case WhenceEnd:
		size, err := desc.handle.Len()
		if err != nil {
			return 0, errno(err)
		}
		base = size
	default:
		return 0, wasip1.ErrnoInval
	}
	newOffset := base + offset
	if newOffset < 0 {
		return 0, wasip1.ErrnoInval
	}
	desc.offset = newOffset
	return uint64(newOffset), wasip1.ErrnoSuccess
}

// FdClose implements fd_close.
func (d *Dispatcher) FdClose(fd Fd) wasip1.Errno {
	desc, ok := d.FDs.Remove(fd)
	if !ok {
		return badf()
	}
	if desc.handle != nil {
		if err := desc.handle.Close(); err != nil {
			return errno(err)
		}
	}
	if desc.conn != nil {
		if desc.conn.conn != nil {
			desc.conn.conn.Close()
		}
		if desc.conn.listener != nil {
			desc.conn.listener.Close()
		}
	}
	return wasip1.ErrnoSuccess
}

// PathOpenFlags mirrors the oflags bitset path_open accepts, layered over
// vfs.OpenFlags/CreateFileOptions once a node has been resolved.
type PathOpenFlags struct {
	Create    bool
	Directory bool
	Excl      bool
	Truncate  bool
	Read      bool
	Write     bool
	Append    bool
}

// PathOpen implements path_open: resolve path under the directory fd's
// mount, creating the file first if requested, then open a handle.
func (d *Dispatcher) PathOpen(dirFd Fd, path string, flags PathOpenFlags) (Fd, wasip1.Errno) {
	dirDesc, ok := d.FDs.Get(dirFd)
	if !ok || dirDesc.node == nil {
		return 0, badf()
	}
	if dirDesc.rights&RightPathOpen == 0 {
		return 0, wasip1.ErrnoNotcapable
	}

	node, err := dirDesc.node.Lookup(path)
	if err != nil {
		if vfs.KindOf(err) != vfs.KindNotFound || !flags.Create {
			return 0, errno(err)
		}
		node, err = dirDesc.node.CreateFile(path, vfs.CreateFileOptions{
			Exclusive: flags.Excl,
			Truncate:  flags.Truncate,
		})
		if err != nil {
			return 0, errno(err)
		}
		d.record(journal.RecordPathCreateFile, pathBody{DirFd: dirFd, Path: path})
	}

	var handle vfs.Handle
	var rights Rights
	kind := descFile
	if node.FileType() == vfs.FileTypeDirectory {
		kind = descDir
		rights = RightFdReaddir
	} else {
		handle, err = node.Open(vfs.OpenFlags{
			Read: flags.Read, Write: flags.Write,
			Truncate: flags.Truncate, Append: flags.Append,
		})
		if err != nil {
			return 0, errno(err)
		}
		if flags.Read {
			rights |= RightFdRead | RightFdSeek
		}
		if flags.Write {
			rights |= RightFdWrite | RightFdSeek
		}
	}

	fd := d.FDs.Insert(&descriptor{kind: kind, node: node, handle: handle, rights: rights})
	return fd, wasip1.ErrnoSuccess
}

// pathBody is the journaled payload shared by RecordPathCreateFile and
// RecordPathUnlink: both only need to know which directory and name were
// affected to replay.
type pathBody struct {
	DirFd Fd
	Path  string
}

// PathUnlinkFile implements path_unlink_file.
func (d *Dispatcher) PathUnlinkFile(dirFd Fd, path string) wasip1.Errno {
	dirDesc, ok := d.FDs.Get(dirFd)
	if !ok || dirDesc.node == nil {
		return badf()
	}
	if dirDesc.rights&RightPathUnlinkFile == 0 {
		return wasip1.ErrnoNotcapable
	}
	if err := dirDesc.node.Unlink(path, vfs.UnlinkOptions{}); err != nil {
		return errno(err)
	}
	d.record(journal.RecordPathUnlink, pathBody{DirFd: dirFd, Path: path})
	return wasip1.ErrnoSuccess
}

// renameBody is the journaled payload for RecordPathRename.
type renameBody struct {
	OldDirFd Fd
	OldPath  string
	NewDirFd Fd
	NewPath  string
}

// PathRename implements path_rename.
func (d *Dispatcher) PathRename(oldDirFd Fd, oldPath string, newDirFd Fd, newPath string) wasip1.Errno {
	oldDesc, ok := d.FDs.Get(oldDirFd)
	if !ok || oldDesc.node == nil {
		return badf()
	}
	newDesc, ok := d.FDs.Get(newDirFd)
	if !ok || newDesc.node == nil {
		return badf()
	}
	if oldDesc.rights&RightPathRenameSource == 0 || newDesc.rights&RightPathRenameTarget == 0 {
		return wasip1.ErrnoNotcapable
	}
	if err := oldDesc.node.Rename(oldPath, newDesc.node, newPath, vfs.RenameOptions{}); err != nil {
		return errno(err)
	}
	d.record(journal.RecordPathRename, renameBody{OldDirFd: oldDirFd, OldPath: oldPath, NewDirFd: newDirFd, NewPath: newPath})
	return wasip1.ErrnoSuccess
}

// PathSymlink implements path_symlink.
func (d *Dispatcher) PathSymlink(target string, dirFd Fd, linkPath string) wasip1.Errno {
	dirDesc, ok := d.FDs.Get(dirFd)
	if !ok || dirDesc.node == nil {
		return badf()
	}
	if dirDesc.rights&RightPathSymlink == 0 {
		return wasip1.ErrnoNotcapable
	}
	return errno(dirDesc.node.Symlink(linkPath, target))
}

// PathReadlink implements path_readlink.
func (d *Dispatcher) PathReadlink(dirFd Fd, path string) (string, wasip1.Errno) {
	dirDesc, ok := d.FDs.Get(dirFd)
	if !ok || dirDesc.node == nil {
		return "", badf()
	}
	if dirDesc.rights&RightPathReadlink == 0 {
		return "", wasip1.ErrnoNotcapable
	}
	node, err := dirDesc.node.Lookup(path)
	if err != nil {
		return "", errno(err)
	}
	target, err := node.Readlink()
	if err != nil {
		return "", errno(err)
	}
	return target, wasip1.ErrnoSuccess
}
