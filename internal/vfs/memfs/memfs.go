// Package memfs implements an in-process, fully in-memory vfs.Provider:
// nodes store their bytes in resizable buffers, used for tests and guest
// scratch space.
//
// Grounded on original_source/vfs/mem/src/lib.rs: a BTreeMap-of-children
// directory kind, a Vec<u8>-backed file kind, and a monotonic inode
// counter — adapted here to a per-node sync.RWMutex guarding each
// directory's children map and each file's byte buffer.
package memfs

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/wazergo/runtime/internal/vfs"
)

// Provider registers as "mem" in a vfs.ProviderRegistry.
type Provider struct{}

func (Provider) Name() string              { return "mem" }
func (Provider) Capabilities() vfs.Capabilities { return vfs.CapSymlink }

func (Provider) Mount(req vfs.MountRequest) (vfs.Filesystem, error) {
	return New(), nil
}

// FS is a standalone in-memory filesystem; construct directly for tests,
// or obtain one via Provider.Mount.
type FS struct {
	nextInode atomic.Uint64
	root      *node
}

// New returns an empty in-memory filesystem rooted at a fresh directory.
func New() *FS {
	fs := &FS{}
	fs.nextInode.Store(2)
	fs.root = &node{fs: fs, inode: 1, kind: kindDir, children: map[string]*node{}}
	return fs
}

func (f *FS) ProviderName() string              { return "mem" }
func (f *FS) Capabilities() vfs.Capabilities     { return vfs.CapSymlink }
func (f *FS) Root() vfs.Node                     { return f.root }

func (f *FS) allocInode() vfs.BackendInodeId {
	return vfs.BackendInodeId(f.nextInode.Add(1) - 1)
}

type nodeKind int

const (
	kindFile nodeKind = iota
	kindDir
	kindSymlink
)

type node struct {
	fs    *FS
	inode vfs.BackendInodeId
	kind  nodeKind

	mu sync.RWMutex
	// file
	data []byte
	// dir
	children map[string]*node
	names    []string // insertion-stable ordering for deterministic ReadDir pagination
	// symlink
	target string

	meta vfs.Metadata
}

func (n *node) Inode() vfs.BackendInodeId { return n.inode }

func (n *node) FileType() vfs.FileType {
	switch n.kind {
	case kindDir:
		return vfs.FileTypeDirectory
	case kindSymlink:
		return vfs.FileTypeSymlink
	default:
		return vfs.FileTypeRegular
	}
}

func (n *node) Metadata() (vfs.Metadata, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	m := n.meta
	m.FileType = n.FileType()
	m.Inode = vfs.InodeId{Backend: n.inode}
	if n.kind == kindFile {
		m.Size = uint64(len(n.data))
	}
	return m, nil
}

func (n *node) SetMetadata(set vfs.SetMetadata) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if set.Mode != nil {
		n.meta.Mode = *set.Mode
	}
	if set.UID != nil {
		n.meta.UID = *set.UID
	}
	if set.GID != nil {
		n.meta.GID = *set.GID
	}
	if set.Atime != nil {
		n.meta.Atime = *set.Atime
	}
	if set.Mtime != nil {
		n.meta.Mtime = *set.Mtime
	}
	if set.Size != nil {
		if n.kind != kindFile {
			return vfs.NewError(vfs.KindInvalidInput, "memfs.set_metadata")
		}
		n.data = resizeBuf(n.data, int(*set.Size))
	}
	return nil
}

func resizeBuf(buf []byte, size int) []byte {
	if size <= len(buf) {
		return buf[:size]
	}
	grown := make([]byte, size)
	copy(grown, buf)
	return grown
}

func (n *node) requireDir(op string) error {
	if n.kind != kindDir {
		return vfs.NewError(vfs.KindNotDir, op)
	}
	return nil
}

func (n *node) Lookup(name string) (vfs.Node, error) {
	if err := n.requireDir("memfs.lookup"); err != nil {
		return nil, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.children[name]
	if !ok {
		return nil, vfs.NewError(vfs.KindNotFound, "memfs.lookup")
	}
	return c, nil
}

func (n *node) CreateFile(name string, opts vfs.CreateFileOptions) (vfs.Node, error) {
	if err := n.requireDir("memfs.create_file"); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if existing, ok := n.children[name]; ok {
		if opts.Exclusive {
			return nil, vfs.NewError(vfs.KindExists, "memfs.create_file")
		}
		if existing.kind != kindFile {
			return nil, vfs.NewError(vfs.KindIsDir, "memfs.create_file")
		}
		if opts.Truncate {
			existing.mu.Lock()
			existing.data = nil
			existing.mu.Unlock()
		}
		return existing, nil
	}

	child := &node{fs: n.fs, inode: n.fs.allocInode(), kind: kindFile}
	child.meta.Mode = opts.Mode
	n.children[name] = child
	n.names = append(n.names, name)
	return child, nil
}

func (n *node) Mkdir(name string, opts vfs.MkdirOptions) (vfs.Node, error) {
	if err := n.requireDir("memfs.mkdir"); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.children[name]; ok {
		return nil, vfs.NewError(vfs.KindExists, "memfs.mkdir")
	}
	child := &node{fs: n.fs, inode: n.fs.allocInode(), kind: kindDir, children: map[string]*node{}}
	child.meta.Mode = opts.Mode
	n.children[name] = child
	n.names = append(n.names, name)
	return child, nil
}

func (n *node) Unlink(name string, opts vfs.UnlinkOptions) error {
	if err := n.requireDir("memfs.unlink"); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	child, ok := n.children[name]
	if !ok {
		return vfs.NewError(vfs.KindNotFound, "memfs.unlink")
	}
	if opts.MustBeDir && child.kind != kindDir {
		return vfs.NewError(vfs.KindNotDir, "memfs.unlink")
	}
	if !opts.MustBeDir && child.kind == kindDir {
		return vfs.NewError(vfs.KindIsDir, "memfs.unlink")
	}
	delete(n.children, name)
	n.names = removeName(n.names, name)
	return nil
}

func (n *node) Rmdir(name string) error {
	if err := n.requireDir("memfs.rmdir"); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	child, ok := n.children[name]
	if !ok {
		return vfs.NewError(vfs.KindNotFound, "memfs.rmdir")
	}
	if child.kind != kindDir {
		return vfs.NewError(vfs.KindNotDir, "memfs.rmdir")
	}
	child.mu.RLock()
	empty := len(child.children) == 0
	child.mu.RUnlock()
	if !empty {
		return vfs.NewError(vfs.KindDirNotEmpty, "memfs.rmdir")
	}
	delete(n.children, name)
	n.names = removeName(n.names, name)
	return nil
}

func removeName(names []string, name string) []string {
	for i, v := range names {
		if v == name {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}

func (n *node) ReadDir(cursor *vfs.DirCursor, max int) (vfs.ReadDirBatch, error) {
	if err := n.requireDir("memfs.read_dir"); err != nil {
		return vfs.ReadDirBatch{}, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()

	sorted := append([]string(nil), n.names...)
	sort.Strings(sorted)

	start := 0
	if cursor != nil {
		start = int(*cursor)
	}
	if start > len(sorted) {
		start = len(sorted)
	}

	end := len(sorted)
	if max > 0 && start+max < end {
		end = start + max
	}

	entries := make([]vfs.DirEntry, 0, end-start)
	for _, name := range sorted[start:end] {
		c := n.children[name]
		entries = append(entries, vfs.DirEntry{Name: name, Inode: c.inode, FileType: c.FileType()})
	}

	var next *vfs.DirCursor
	if end < len(sorted) {
		c := vfs.DirCursor(end)
		next = &c
	}
	return vfs.ReadDirBatch{Entries: entries, NextCursor: next}, nil
}

func (n *node) Rename(oldName string, newParent vfs.Node, newName string, opts vfs.RenameOptions) error {
	dst, ok := newParent.(*node)
	if !ok || dst.fs != n.fs {
		return vfs.NewError(vfs.KindCrossDevice, "memfs.rename")
	}
	if err := n.requireDir("memfs.rename"); err != nil {
		return err
	}

	// Renaming within the same directory only needs one lock; across
	// directories lock by inode order to avoid deadlocking with a
	// concurrent rename in the opposite direction.
	if n == dst {
		n.mu.Lock()
		defer n.mu.Unlock()
	} else if n.inode < dst.inode {
		n.mu.Lock()
		defer n.mu.Unlock()
		dst.mu.Lock()
		defer dst.mu.Unlock()
	} else {
		dst.mu.Lock()
		defer dst.mu.Unlock()
		n.mu.Lock()
		defer n.mu.Unlock()
	}

	child, ok := n.children[oldName]
	if !ok {
		return vfs.NewError(vfs.KindNotFound, "memfs.rename")
	}
	if existing, exists := dst.children[newName]; exists {
		if opts.NoReplace {
			return vfs.NewError(vfs.KindExists, "memfs.rename")
		}
		if !opts.Exchange && existing.kind == kindDir {
			return vfs.NewError(vfs.KindIsDir, "memfs.rename")
		}
	}

	delete(n.children, oldName)
	n.names = removeName(n.names, oldName)
	dst.children[newName] = child
	dst.names = append(dst.names, newName)
	return nil
}

func (n *node) Link(existing vfs.Node, newName string) error {
	return vfs.NewError(vfs.KindNotSupported, "memfs.link")
}

func (n *node) Symlink(newName, target string) error {
	if err := n.requireDir("memfs.symlink"); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.children[newName]; ok {
		return vfs.NewError(vfs.KindExists, "memfs.symlink")
	}
	child := &node{fs: n.fs, inode: n.fs.allocInode(), kind: kindSymlink, target: target}
	n.children[newName] = child
	n.names = append(n.names, newName)
	return nil
}

func (n *node) Readlink() (string, error) {
	if n.kind != kindSymlink {
		return "", vfs.NewError(vfs.KindInvalidInput, "memfs.readlink")
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.target, nil
}

func (n *node) Open(flags vfs.OpenFlags) (vfs.Handle, error) {
	if n.kind == kindDir {
		return nil, vfs.NewError(vfs.KindIsDir, "memfs.open")
	}
	if flags.Truncate {
		n.mu.Lock()
		n.data = nil
		n.mu.Unlock()
	}
	return &handle{n: n}, nil
}

// handle is a memfs.Handle: read/write directly against the node's buffer
// under its mutex, since memfs holds no separate open-file state.
type handle struct{ n *node }

func (h *handle) ReadAt(buf []byte, offset int64) (int, error) {
	h.n.mu.RLock()
	defer h.n.mu.RUnlock()
	if offset < 0 {
		return 0, vfs.NewError(vfs.KindInvalidInput, "memfs.read_at")
	}
	if offset >= int64(len(h.n.data)) {
		return 0, nil
	}
	n := copy(buf, h.n.data[offset:])
	return n, nil
}

func (h *handle) WriteAt(buf []byte, offset int64) (int, error) {
	h.n.mu.Lock()
	defer h.n.mu.Unlock()
	if offset < 0 {
		return 0, vfs.NewError(vfs.KindInvalidInput, "memfs.write_at")
	}
	end := offset + int64(len(buf))
	if end > int64(len(h.n.data)) {
		h.n.data = resizeBuf(h.n.data, int(end))
	}
	n := copy(h.n.data[offset:end], buf)
	return n, nil
}

func (h *handle) Flush() error { return nil }
func (h *handle) Fsync() error { return nil }

func (h *handle) SetLen(size int64) error {
	h.n.mu.Lock()
	defer h.n.mu.Unlock()
	h.n.data = resizeBuf(h.n.data, int(size))
	return nil
}

func (h *handle) Len() (int64, error) {
	h.n.mu.RLock()
	defer h.n.mu.RUnlock()
	return int64(len(h.n.data)), nil
}

func (h *handle) Dup() (vfs.Handle, error) { return &handle{n: h.n}, nil }
func (h *handle) Close() error             { return nil }
