// Package vfs implements the capability-typed, mount-aware virtual
// filesystem: a rooted tree whose leaves are nodes supplied by one or more
// providers, responsible for path resolution, mount stacking, capability
// enforcement, and directory pagination.
//
// Grounded on original_source/vfs/core/src/provider_registry.rs for the
// provider registry discipline and on internal/fsapi.File's contract
// (internal/fsapi/file.go) for the Go idiom of returning a typed
// error code from every fallible method rather than sentinel wrapping —
// here expressed as ErrKind plus a *Error carrying it, since this runtime's
// error surface must also carry not-found/exists/cross-device kinds that
// fsapi's Wasm-syscall-shaped syscall.Errno doesn't name directly.
package vfs

import (
	"errors"
	"fmt"
)

// ErrKind enumerates the VFS failure kinds; the syscall dispatcher maps
// each one to a fixed guest errno.
type ErrKind int

const (
	KindUnknown ErrKind = iota
	KindNotFound
	KindNotDir
	KindIsDir
	KindExists
	KindAlreadyExists // provider registration collision, distinct from a node Exists
	KindReadOnly
	KindNotSupported
	KindInvalidInput
	KindDirNotEmpty
	KindCrossDevice
	KindPermissionDenied
	KindNameTooLong
	KindIO
	KindInternal
	KindNoSpace
	KindTimedOut
)

func (k ErrKind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindNotDir:
		return "not-dir"
	case KindIsDir:
		return "is-dir"
	case KindExists:
		return "exists"
	case KindAlreadyExists:
		return "already-exists"
	case KindReadOnly:
		return "read-only"
	case KindNotSupported:
		return "not-supported"
	case KindInvalidInput:
		return "invalid-input"
	case KindDirNotEmpty:
		return "dir-not-empty"
	case KindCrossDevice:
		return "cross-device"
	case KindPermissionDenied:
		return "permission-denied"
	case KindNameTooLong:
		return "name-too-long"
	case KindIO:
		return "io"
	case KindInternal:
		return "internal"
	case KindNoSpace:
		return "no-space"
	case KindTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Error is the uniform VFS error: a kind (for errno mapping) plus the
// operation that failed (for diagnostics).
type Error struct {
	Kind ErrKind
	Op   string
}

func (e *Error) Error() string { return fmt.Sprintf("vfs: %s: %s", e.Op, e.Kind) }

// NewError constructs a *Error; callers almost always want errors.Is against
// one of the Err* sentinels below instead of comparing Kind directly.
func NewError(kind ErrKind, op string) *Error { return &Error{Kind: kind, Op: op} }

// KindOf extracts the ErrKind from err, or KindUnknown if err isn't a *Error.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// FileType identifies what kind of node a Node represents.
type FileType int

const (
	FileTypeRegular FileType = iota
	FileTypeDirectory
	FileTypeSymlink
	FileTypeSpecial
)

// MountId identifies one entry in the mount table.
type MountId uint32

// BackendInodeId is a nonzero, provider-assigned inode identity.
type BackendInodeId uint64

// NewBackendInodeId validates that id is nonzero, matching the source's
// "nonzero u64" invariant for BackendInodeId.
func NewBackendInodeId(id uint64) (BackendInodeId, error) {
	if id == 0 {
		return 0, NewError(KindInvalidInput, "backend_inode_id.new")
	}
	return BackendInodeId(id), nil
}

// InodeId is the composite identity of a node: which mount it was reached
// through, plus the provider's own inode number.
type InodeId struct {
	Mount   MountId
	Backend BackendInodeId
}

// Timespec is a POSIX-style {seconds, nanoseconds} timestamp.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// FileMode mirrors POSIX permission + type bits; the VFS does not interpret
// it beyond passing it through to providers and callers.
type FileMode uint32

// Metadata is the full stat record returned by Node.Metadata.
type Metadata struct {
	Inode      InodeId
	FileType   FileType
	Mode       FileMode
	UID, GID   uint32
	Nlink      uint64
	Size       uint64
	Atime      Timespec
	Mtime      Timespec
	Ctime      Timespec
	RdevMajor  uint32
	RdevMinor  uint32
}

// SetMetadata is the partial-update argument to Node.SetMetadata; a nil
// field leaves that attribute unchanged.
type SetMetadata struct {
	Mode  *FileMode
	UID   *uint32
	GID   *uint32
	Atime *Timespec
	Mtime *Timespec
	Size  *uint64
}

// CreateFileOptions parametrizes Node.CreateFile.
type CreateFileOptions struct {
	Exclusive bool
	Truncate  bool
	Mode      FileMode
}

// MkdirOptions parametrizes Node.Mkdir.
type MkdirOptions struct {
	Mode FileMode
}

// UnlinkOptions parametrizes Node.Unlink.
type UnlinkOptions struct {
	MustBeDir bool
}

// RenameOptions parametrizes Node.Rename.
type RenameOptions struct {
	NoReplace bool
	Exchange  bool
}

// OpenFlags parametrizes Node.Open.
type OpenFlags struct {
	Read, Write, Create, Truncate, Append bool
	Mode                                  FileMode
}

// DirCursor is an opaque pagination token for Node.ReadDir.
type DirCursor uint64

// DirEntry is one row returned from Node.ReadDir.
type DirEntry struct {
	Name     string
	Inode    BackendInodeId
	FileType FileType
}

// ReadDirBatch is Node.ReadDir's result: the page of entries plus a cursor
// for the next page, or NextCursor == nil at end-of-directory.
type ReadDirBatch struct {
	Entries     []DirEntry
	NextCursor  *DirCursor
}

// Node is the capability contract every provider backend implements.
// Operations a backend cannot perform fail with KindNotSupported; read-only
// backends fail every mutator with KindReadOnly.
type Node interface {
	Inode() BackendInodeId
	FileType() FileType
	Metadata() (Metadata, error)
	SetMetadata(set SetMetadata) error

	Lookup(name string) (Node, error)
	CreateFile(name string, opts CreateFileOptions) (Node, error)
	Mkdir(name string, opts MkdirOptions) (Node, error)
	Unlink(name string, opts UnlinkOptions) error
	Rmdir(name string) error
	ReadDir(cursor *DirCursor, max int) (ReadDirBatch, error)
	Rename(oldName string, newParent Node, newName string, opts RenameOptions) error
	Link(existing Node, newName string) error
	Symlink(newName, target string) error
	Readlink() (string, error)
	Open(flags OpenFlags) (Handle, error)
}

// Handle is an open reference to a regular file.
type Handle interface {
	ReadAt(buf []byte, offset int64) (n int, err error)
	WriteAt(buf []byte, offset int64) (n int, err error)
	Flush() error
	Fsync() error
	SetLen(size int64) error
	Len() (int64, error)
	Dup() (Handle, error)
	Close() error
}

// Capabilities is a bitset a provider reports so the mount layer can refuse
// whole operation classes up front (e.g. symlink support) rather than
// relying on every Node call returning KindNotSupported.
type Capabilities uint32

const (
	CapNone Capabilities = 0
	CapSymlink Capabilities = 1 << iota
	CapHardlink
	CapUtimens
	CapChown
	CapReadOnlyProvider
)

// the iota block above starts counting from CapNone's line (iota=0), so
// CapSymlink is 1<<1; that's fine, bit values just need to be distinct.

func (c Capabilities) Has(flag Capabilities) bool { return c&flag != 0 }
