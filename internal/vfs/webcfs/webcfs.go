// Package webcfs implements a read-only, path-segment-addressed immutable
// volume provider: every mutating Node operation fails with
// permission-denied.
//
// Grounded on original_source/lib/virtual-fs/src/webc_volume_fs.rs's
// WebcVolumeFileSystem, which wraps an indexed archive (a webc::Volume) and
// answers read_dir/metadata/open against it while refusing create_dir and
// every other mutator. This package accepts the already-decoded archive (a
// flat path -> content map, as the index format itself is out of scope for
// this runtime core) and builds an immutable tree from it at construction
// time.
package webcfs

import (
	"sort"

	"github.com/wazergo/runtime/internal/vfs"
)

// Provider registers as "webc" in a vfs.ProviderRegistry.
type Provider struct{}

func (Provider) Name() string              { return "webc" }
func (Provider) Capabilities() vfs.Capabilities { return vfs.CapReadOnlyProvider }

// Config carries the decoded archive entries: a path (slash-separated,
// rooted at "/") to file content.
type Config struct {
	Entries map[string][]byte
}

func (p Provider) Mount(req vfs.MountRequest) (vfs.Filesystem, error) {
	cfg, ok := req.Config.(Config)
	if !ok {
		return nil, vfs.NewError(vfs.KindInvalidInput, "webcfs.mount")
	}
	return New(cfg.Entries)
}

// node is an immutable file or directory in the decoded volume.
type node struct {
	inode    vfs.BackendInodeId
	fileType vfs.FileType
	content  []byte
	children map[string]*node
	names    []string
}

// FS is a standalone read-only filesystem built from a decoded volume.
type FS struct {
	root *node
}

// New builds an immutable tree from entries, where each key is a full
// slash-separated path rooted at "/" and each value is that file's bytes.
func New(entries map[string][]byte) (*FS, error) {
	root := &node{inode: 1, fileType: vfs.FileTypeDirectory, children: map[string]*node{}}
	next := vfs.BackendInodeId(2)

	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		segs, err := vfs.SplitPath(path)
		if err != nil {
			return nil, err
		}
		if len(segs) == 0 {
			continue
		}
		dir := root
		for _, seg := range segs[:len(segs)-1] {
			child, ok := dir.children[seg]
			if !ok {
				child = &node{inode: next, fileType: vfs.FileTypeDirectory, children: map[string]*node{}}
				next++
				dir.children[seg] = child
				dir.names = append(dir.names, seg)
			}
			dir = child
		}
		leaf := segs[len(segs)-1]
		file := &node{inode: next, fileType: vfs.FileTypeRegular, content: entries[path]}
		next++
		dir.children[leaf] = file
		dir.names = append(dir.names, leaf)
	}

	return &FS{root: root}, nil
}

func (f *FS) ProviderName() string              { return "webc" }
func (f *FS) Capabilities() vfs.Capabilities    { return vfs.CapReadOnlyProvider }
func (f *FS) Root() vfs.Node                    { return f.root }

var errPermissionDenied = func(op string) error { return vfs.NewError(vfs.KindPermissionDenied, op) }

func (n *node) Inode() vfs.BackendInodeId { return n.inode }
func (n *node) FileType() vfs.FileType    { return n.fileType }

func (n *node) Metadata() (vfs.Metadata, error) {
	return vfs.Metadata{
		Inode:    vfs.InodeId{Backend: n.inode},
		FileType: n.fileType,
		Size:     uint64(len(n.content)),
		Nlink:    1,
	}, nil
}

func (n *node) SetMetadata(vfs.SetMetadata) error { return errPermissionDenied("webcfs.set_metadata") }

func (n *node) Lookup(name string) (vfs.Node, error) {
	if n.fileType != vfs.FileTypeDirectory {
		return nil, vfs.NewError(vfs.KindNotDir, "webcfs.lookup")
	}
	c, ok := n.children[name]
	if !ok {
		return nil, vfs.NewError(vfs.KindNotFound, "webcfs.lookup")
	}
	return c, nil
}

func (n *node) CreateFile(string, vfs.CreateFileOptions) (vfs.Node, error) {
	return nil, errPermissionDenied("webcfs.create_file")
}

func (n *node) Mkdir(string, vfs.MkdirOptions) (vfs.Node, error) {
	return nil, errPermissionDenied("webcfs.mkdir")
}

func (n *node) Unlink(string, vfs.UnlinkOptions) error { return errPermissionDenied("webcfs.unlink") }
func (n *node) Rmdir(string) error                     { return errPermissionDenied("webcfs.rmdir") }

func (n *node) ReadDir(cursor *vfs.DirCursor, max int) (vfs.ReadDirBatch, error) {
	if n.fileType != vfs.FileTypeDirectory {
		return vfs.ReadDirBatch{}, vfs.NewError(vfs.KindNotDir, "webcfs.read_dir")
	}
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
		entries = append(entries, vfs.DirEntry{Name: name, Inode: c.inode, FileType: c.fileType})
	}
	var next *vfs.DirCursor
	if end < len(sorted) {
		c := vfs.DirCursor(end)
		next = &c
	}
	return vfs.ReadDirBatch{Entries: entries, NextCursor: next}, nil
}

func (n *node) Rename(string, vfs.Node, string, vfs.RenameOptions) error {
	return errPermissionDenied("webcfs.rename")
}
func (n *node) Link(vfs.Node, string) error      { return errPermissionDenied("webcfs.link") }
func (n *node) Symlink(string, string) error     { return errPermissionDenied("webcfs.symlink") }
func (n *node) Readlink() (string, error) {
	return "", vfs.NewError(vfs.KindInvalidInput, "webcfs.readlink")
}

func (n *node) Open(flags vfs.OpenFlags) (vfs.Handle, error) {
	if n.fileType == vfs.FileTypeDirectory {
		return nil, vfs.NewError(vfs.KindIsDir, "webcfs.open")
	}
	if flags.Write || flags.Create || flags.Truncate || flags.Append {
		return nil, errPermissionDenied("webcfs.open")
	}
	return &handle{n: n}, nil
}

type handle struct{ n *node }

func (h *handle) ReadAt(buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, vfs.NewError(vfs.KindInvalidInput, "webcfs.read_at")
	}
	if offset >= int64(len(h.n.content)) {
		return 0, nil
	}
	return copy(buf, h.n.content[offset:]), nil
}

func (h *handle) WriteAt([]byte, int64) (int, error) { return 0, errPermissionDenied("webcfs.write_at") }
func (h *handle) Flush() error                       { return nil }
func (h *handle) Fsync() error                        { return nil }
func (h *handle) SetLen(int64) error                 { return errPermissionDenied("webcfs.set_len") }
func (h *handle) Len() (int64, error)                { return int64(len(h.n.content)), nil }
func (h *handle) Dup() (vfs.Handle, error)            { return &handle{n: h.n}, nil }
func (h *handle) Close() error                        { return nil }
