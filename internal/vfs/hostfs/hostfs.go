// Package hostfs implements a vfs.Provider that proxies to an OS directory
// using the `*at` family of syscalls (openat, mkdirat, renameat, unlinkat)
// so every operation is anchored to a directory file descriptor rather than
// a path string, avoiding TOCTOU races and symlink escapes outside the
// mounted root.
//
// Grounded on original_source/vfs/host/src/node.rs's HostNode (a directory
// fd plus a parent-locator used to resolve `name` relative to it for every
// mutating call) and on golang.org/x/sys/unix, the same dependency
// internal/engine/compiler's platform codepaths reach for platform
// primitives.
//
//go:build unix

package hostfs

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/wazergo/runtime/internal/vfs"
)

// Provider registers as "host" in a vfs.ProviderRegistry.
type Provider struct{}

func (Provider) Name() string                   { return "host" }
func (Provider) Capabilities() vfs.Capabilities { return vfs.CapSymlink | vfs.CapHardlink | vfs.CapUtimens | vfs.CapChown }

// Config is the provider_config consulted by Provider.Mount: the OS
// directory to expose as the mount's root.
type Config struct {
	RootPath string
	ReadOnly bool
}

func (p Provider) Mount(req vfs.MountRequest) (vfs.Filesystem, error) {
	cfg, ok := req.Config.(Config)
	if !ok {
		return nil, vfs.NewError(vfs.KindInvalidInput, "hostfs.mount")
	}
	return New(cfg.RootPath, cfg.ReadOnly)
}

// FS is a standalone host-directory filesystem.
type FS struct {
	root *node
}

// New opens rootPath and returns a filesystem rooted there. Every operation
// below the root is resolved relative to the directory fd it's opened
// under (host "host.*at" primitives), so renames/symlinks cannot escape it
// via `..` after the initial open.
func New(rootPath string, readOnly bool) (*FS, error) {
	fd, err := unix.Open(rootPath, unix.O_DIRECTORY|unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, translateErrno(err, "hostfs.open_root")
	}
	return &FS{root: &node{fd: fd, readOnly: readOnly, name: "."}}, nil
}

func (f *FS) ProviderName() string      { return "host" }
func (f *FS) Capabilities() vfs.Capabilities {
	caps := vfs.CapSymlink | vfs.CapHardlink | vfs.CapUtimens | vfs.CapChown
	if f.root.readOnly {
		caps |= vfs.CapReadOnlyProvider
	}
	return caps
}
func (f *FS) Root() vfs.Node { return f.root }

// node wraps an open directory (or file) fd. The host provider serializes
// at the syscall: each node's mutex only guards its own fd (e.g.
// concurrent positional reads vs. a concurrent close), not the whole
// filesystem — the underlying kernel directory entries provide their own
// concurrency control.
type node struct {
	mu       sync.Mutex
	fd       int
	name     string // the node's own name within its parent, for openat(parentFd, name, ...) style re-derivation
	readOnly bool
	isDir    bool
	closed   bool
}

func translateErrno(err error, op string) error {
	errno, ok := err.(unix.Errno)
	if !ok {
		return vfs.NewError(vfs.KindIO, op)
	}
	switch errno {
	case unix.ENOENT:
		return vfs.NewError(vfs.KindNotFound, op)
	case unix.ENOTDIR:
		return vfs.NewError(vfs.KindNotDir, op)
	case unix.EISDIR:
		return vfs.NewError(vfs.KindIsDir, op)
	case unix.EEXIST:
		return vfs.NewError(vfs.KindExists, op)
	case unix.EROFS:
		return vfs.NewError(vfs.KindReadOnly, op)
	case unix.ENOTEMPTY:
		return vfs.NewError(vfs.KindDirNotEmpty, op)
	case unix.EXDEV:
		return vfs.NewError(vfs.KindCrossDevice, op)
	case unix.EACCES, unix.EPERM:
		return vfs.NewError(vfs.KindPermissionDenied, op)
	case unix.ENAMETOOLONG:
		return vfs.NewError(vfs.KindNameTooLong, op)
	case unix.EINVAL:
		return vfs.NewError(vfs.KindInvalidInput, op)
	case unix.ENOSPC:
		return vfs.NewError(vfs.KindNoSpace, op)
	case unix.ENOSYS, unix.EOPNOTSUPP:
		return vfs.NewError(vfs.KindNotSupported, op)
	default:
		return vfs.NewError(vfs.KindIO, op)
	}
}

func (n *node) Inode() vfs.BackendInodeId {
	var st unix.Stat_t
	if err := unix.Fstat(n.fd, &st); err != nil {
		return 0
	}
	return vfs.BackendInodeId(st.Ino)
}

func (n *node) FileType() vfs.FileType {
	var st unix.Stat_t
	if err := unix.Fstat(n.fd, &st); err != nil {
		return vfs.FileTypeRegular
	}
	return fileTypeFromMode(st.Mode)
}

func fileTypeFromMode(mode uint32) vfs.FileType {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return vfs.FileTypeDirectory
	case unix.S_IFLNK:
		return vfs.FileTypeSymlink
	case unix.S_IFREG:
		return vfs.FileTypeRegular
	default:
		return vfs.FileTypeSpecial
	}
}

func (n *node) Metadata() (vfs.Metadata, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var st unix.Stat_t
	if err := unix.Fstat(n.fd, &st); err != nil {
		return vfs.Metadata{}, translateErrno(err, "hostfs.metadata")
	}
	return vfs.Metadata{
		Inode:     vfs.InodeId{Backend: vfs.BackendInodeId(st.Ino)},
		FileType:  fileTypeFromMode(st.Mode),
		Mode:      vfs.FileMode(st.Mode & 0o7777),
		UID:       st.Uid,
		GID:       st.Gid,
		Nlink:     uint64(st.Nlink),
		Size:      uint64(st.Size),
		Atime:     vfs.Timespec{Sec: int64(st.Atim.Sec), Nsec: int64(st.Atim.Nsec)},
		Mtime:     vfs.Timespec{Sec: int64(st.Mtim.Sec), Nsec: int64(st.Mtim.Nsec)},
		Ctime:     vfs.Timespec{Sec: int64(st.Ctim.Sec), Nsec: int64(st.Ctim.Nsec)},
		RdevMajor: uint32(unix.Major(uint64(st.Rdev))),
		RdevMinor: uint32(unix.Minor(uint64(st.Rdev))),
	}, nil
}

func (n *node) SetMetadata(set vfs.SetMetadata) error {
	if n.readOnly {
		return vfs.NewError(vfs.KindReadOnly, "hostfs.set_metadata")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if set.Mode != nil {
		if err := unix.Fchmod(n.fd, uint32(*set.Mode)); err != nil {
			return translateErrno(err, "hostfs.set_metadata")
		}
	}
	if set.UID != nil || set.GID != nil {
		uid, gid := -1, -1
		if set.UID != nil {
			uid = int(*set.UID)
		}
		if set.GID != nil {
			gid = int(*set.GID)
		}
		if err := unix.Fchown(n.fd, uid, gid); err != nil {
			return translateErrno(err, "hostfs.set_metadata")
		}
	}
	if set.Size != nil {
		if err := unix.Ftruncate(n.fd, int64(*set.Size)); err != nil {
			return translateErrno(err, "hostfs.set_metadata")
		}
	}
	if set.Atime != nil || set.Mtime != nil {
		times := [2]unix.Timespec{
			{Sec: 0, Nsec: int64(unix.UTIME_OMIT)},
			{Sec: 0, Nsec: int64(unix.UTIME_OMIT)},
		}
		if set.Atime != nil {
			times[0] = unix.Timespec{Sec: set.Atime.Sec, Nsec: set.Atime.Nsec}
		}
		if set.Mtime != nil {
			times[1] = unix.Timespec{Sec: set.Mtime.Sec, Nsec: set.Mtime.Nsec}
		}
		if err := unix.UtimesNanoAt(n.fd, "", times[:], 0); err != nil {
			return translateErrno(err, "hostfs.set_metadata")
		}
	}
	return nil
}

func (n *node) openChildDirFD(name string, flags int, mode uint32) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fd, err := unix.Openat(n.fd, name, flags, mode)
	if err != nil {
		return -1, translateErrno(err, "hostfs.openat")
	}
	return fd, nil
}

func (n *node) Lookup(name string) (vfs.Node, error) {
	fd, err := n.openChildDirFD(name, unix.O_NOFOLLOW|unix.O_PATH, 0)
	if err != nil {
		// O_PATH may be unsupported; fall back to a regular open for stat purposes.
		fd, err = n.openChildDirFD(name, unix.O_RDONLY, 0)
		if err != nil {
			return nil, err
		}
	}
	child := &node{fd: fd, name: name, readOnly: n.readOnly}
	child.isDir = child.FileType() == vfs.FileTypeDirectory
	return child, nil
}

func (n *node) CreateFile(name string, opts vfs.CreateFileOptions) (vfs.Node, error) {
	if n.readOnly {
		return nil, vfs.NewError(vfs.KindReadOnly, "hostfs.create_file")
	}
	flags := unix.O_RDWR | unix.O_CREAT
	if opts.Exclusive {
		flags |= unix.O_EXCL
	}
	if opts.Truncate {
		flags |= unix.O_TRUNC
	}
	fd, err := n.openChildDirFD(name, flags, uint32(opts.Mode))
	if err != nil {
		return nil, err
	}
	return &node{fd: fd, name: name, readOnly: n.readOnly}, nil
}

func (n *node) Mkdir(name string, opts vfs.MkdirOptions) (vfs.Node, error) {
	if n.readOnly {
		return nil, vfs.NewError(vfs.KindReadOnly, "hostfs.mkdir")
	}
	n.mu.Lock()
	err := unix.Mkdirat(n.fd, name, uint32(opts.Mode))
	n.mu.Unlock()
	if err != nil {
		return nil, translateErrno(err, "hostfs.mkdir")
	}
	return n.Lookup(name)
}

func (n *node) Unlink(name string, opts vfs.UnlinkOptions) error {
	if n.readOnly {
		return vfs.NewError(vfs.KindReadOnly, "hostfs.unlink")
	}
	flags := 0
	if opts.MustBeDir {
		flags = unix.AT_REMOVEDIR
	}
	n.mu.Lock()
	err := unix.Unlinkat(n.fd, name, flags)
	n.mu.Unlock()
	if err != nil {
		return translateErrno(err, "hostfs.unlink")
	}
	return nil
}

func (n *node) Rmdir(name string) error {
	return n.Unlink(name, vfs.UnlinkOptions{MustBeDir: true})
}

func (n *node) ReadDir(cursor *vfs.DirCursor, max int) (vfs.ReadDirBatch, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	dupFD, err := unix.Dup(n.fd)
	if err != nil {
		return vfs.ReadDirBatch{}, translateErrno(err, "hostfs.read_dir")
	}
	defer unix.Close(dupFD)
	if _, err := unix.Seek(dupFD, 0, 0); err != nil {
		return vfs.ReadDirBatch{}, translateErrno(err, "hostfs.read_dir")
	}

	var all []vfs.DirEntry
	buf := make([]byte, 8192)
	for {
		n2, err := unix.ReadDirent(dupFD, buf)
		if err != nil {
			return vfs.ReadDirBatch{}, translateErrno(err, "hostfs.read_dir")
		}
		if n2 == 0 {
			break
		}
		_, _, names := unix.ParseDirent(buf[:n2], -1, nil)
		for _, name := range names {
			if name == "." || name == ".." {
				continue
			}
			all = append(all, vfs.DirEntry{Name: name})
		}
	}

	start := 0
	if cursor != nil {
		start = int(*cursor)
	}
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if max > 0 && start+max < end {
		end = start + max
	}

	var next *vfs.DirCursor
	if end < len(all) {
		c := vfs.DirCursor(end)
		next = &c
	}
	return vfs.ReadDirBatch{Entries: all[start:end], NextCursor: next}, nil
}

func (n *node) Rename(oldName string, newParent vfs.Node, newName string, opts vfs.RenameOptions) error {
	if n.readOnly {
		return vfs.NewError(vfs.KindReadOnly, "hostfs.rename")
	}
	dst, ok := newParent.(*node)
	if !ok {
		return vfs.NewError(vfs.KindCrossDevice, "hostfs.rename")
	}

	flags := uint(0)
	if opts.NoReplace {
		flags |= unix.RENAME_NOREPLACE
	}
	if opts.Exchange {
		flags |= unix.RENAME_EXCHANGE
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	var err error
	if flags != 0 {
		err = unix.Renameat2(n.fd, oldName, dst.fd, newName, int(flags))
	} else {
		err = unix.Renameat(n.fd, oldName, dst.fd, newName)
	}
	if err != nil {
		return translateErrno(err, "hostfs.rename")
	}
	return nil
}

func (n *node) Link(existing vfs.Node, newName string) error {
	if n.readOnly {
		return vfs.NewError(vfs.KindReadOnly, "hostfs.link")
	}
	src, ok := existing.(*node)
	if !ok {
		return vfs.NewError(vfs.KindCrossDevice, "hostfs.link")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := unix.Linkat(src.fd, "", n.fd, newName, unix.AT_EMPTY_PATH); err != nil {
		return translateErrno(err, "hostfs.link")
	}
	return nil
}

func (n *node) Symlink(newName, target string) error {
	if n.readOnly {
		return vfs.NewError(vfs.KindReadOnly, "hostfs.symlink")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := unix.Symlinkat(target, n.fd, newName); err != nil {
		return translateErrno(err, "hostfs.symlink")
	}
	return nil
}

func (n *node) Readlink() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	buf := make([]byte, 4096)
	len, err := unix.Readlinkat(n.fd, "", buf)
	if err != nil {
		return "", translateErrno(err, "hostfs.readlink")
	}
	return string(buf[:len]), nil
}

func (n *node) Open(flags vfs.OpenFlags) (vfs.Handle, error) {
	if n.FileType() == vfs.FileTypeDirectory {
		return nil, vfs.NewError(vfs.KindIsDir, "hostfs.open")
	}
	if flags.Write && n.readOnly {
		return nil, vfs.NewError(vfs.KindReadOnly, "hostfs.open")
	}
	return &fileHandle{n: n}, nil
}

// fileHandle implements vfs.Handle directly in terms of pread/pwrite on
// the node's fd, so positional I/O never races against a concurrent Seek
// of some other reference to the same fd.
type fileHandle struct {
	mu sync.Mutex
	n  *node
}

func (h *fileHandle) ReadAt(buf []byte, offset int64) (int, error) {
	n, err := unix.Pread(h.n.fd, buf, offset)
	if err != nil {
		return n, translateErrno(err, "hostfs.read_at")
	}
	return n, nil
}

func (h *fileHandle) WriteAt(buf []byte, offset int64) (int, error) {
	if h.n.readOnly {
		return 0, vfs.NewError(vfs.KindReadOnly, "hostfs.write_at")
	}
	n, err := unix.Pwrite(h.n.fd, buf, offset)
	if err != nil {
		return n, translateErrno(err, "hostfs.write_at")
	}
	return n, nil
}

func (h *fileHandle) Flush() error { return nil }

func (h *fileHandle) Fsync() error {
	if err := unix.Fsync(h.n.fd); err != nil {
		return translateErrno(err, "hostfs.fsync")
	}
	return nil
}

func (h *fileHandle) SetLen(size int64) error {
	if h.n.readOnly {
		return vfs.NewError(vfs.KindReadOnly, "hostfs.set_len")
	}
	if err := unix.Ftruncate(h.n.fd, size); err != nil {
		return translateErrno(err, "hostfs.set_len")
	}
	return nil
}

func (h *fileHandle) Len() (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(h.n.fd, &st); err != nil {
		return 0, translateErrno(err, "hostfs.len")
	}
	return st.Size, nil
}

func (h *fileHandle) Dup() (vfs.Handle, error) {
	fd, err := unix.Dup(h.n.fd)
	if err != nil {
		return nil, translateErrno(err, "hostfs.dup")
	}
	return &fileHandle{n: &node{fd: fd, readOnly: h.n.readOnly}}, nil
}

func (h *fileHandle) Close() error {
	h.n.mu.Lock()
	defer h.n.mu.Unlock()
	if h.n.closed {
		return nil
	}
	h.n.closed = true
	if err := unix.Close(h.n.fd); err != nil {
		return translateErrno(err, "hostfs.close")
	}
	return nil
}
