// Package overlayfs composes a single writable upper vfs.Filesystem with
// one or more read-only lowers: reads go to the first layer where the path
// exists (upper first, then lowers in order), writes always target the
// upper, and writes are refused if the upper has no node at that path.
//
// Grounded on original_source/lib/virtual-fs/src/webc_volume_fs.rs's
// OverlayFileSystem composition (an upper plus a Vec of lowers consulted in
// order).
package overlayfs

import "github.com/wazergo/runtime/internal/vfs"

// FS overlays one upper filesystem with zero or more lower filesystems.
type FS struct {
	upper  vfs.Filesystem
	lowers []vfs.Filesystem
}

// New returns an overlay rooted at upper's root directory, falling through
// to lowers (in order) for reads when a path is absent from upper.
func New(upper vfs.Filesystem, lowers ...vfs.Filesystem) *FS {
	return &FS{upper: upper, lowers: lowers}
}

func (f *FS) ProviderName() string { return "overlay" }

func (f *FS) Capabilities() vfs.Capabilities {
	caps := f.upper.Capabilities()
	for _, l := range f.lowers {
		caps |= l.Capabilities()
	}
	return caps
}

func (f *FS) Root() vfs.Node {
	lowerRoots := make([]vfs.Node, len(f.lowers))
	for i, l := range f.lowers {
		lowerRoots[i] = l.Root()
	}
	return &node{upper: f.upper.Root(), lowers: lowerRoots}
}

// node presents the merged view of one path across all layers. upper is
// nil when the path does not exist in the writable layer; lowers holds
// only the layers (in original order) where the path does exist.
type node struct {
	upper  vfs.Node // may be nil
	lowers []vfs.Node
}

// resolved returns the node to read through: upper if present, else the
// first lower that has it.
func (n *node) resolved() vfs.Node {
	if n.upper != nil {
		return n.upper
	}
	if len(n.lowers) > 0 {
		return n.lowers[0]
	}
	return nil
}

func (n *node) requireUpper(op string) (vfs.Node, error) {
	if n.upper == nil {
		return nil, vfs.NewError(vfs.KindReadOnly, op)
	}
	return n.upper, nil
}

func (n *node) Inode() vfs.BackendInodeId { return n.resolved().Inode() }
func (n *node) FileType() vfs.FileType    { return n.resolved().FileType() }
func (n *node) Metadata() (vfs.Metadata, error) { return n.resolved().Metadata() }

func (n *node) SetMetadata(set vfs.SetMetadata) error {
	u, err := n.requireUpper("overlayfs.set_metadata")
	if err != nil {
		return err
	}
	return u.SetMetadata(set)
}

// Lookup queries every layer and keeps only those where the name resolves.
func (n *node) Lookup(name string) (vfs.Node, error) {
	var firstErr error
	child := &node{}
	found := false

	if n.upper != nil {
		if c, err := n.upper.Lookup(name); err == nil {
			child.upper = c
			found = true
		} else {
			firstErr = err
		}
	}
	for _, lower := range n.lowers {
		if c, err := lower.Lookup(name); err == nil {
			child.lowers = append(child.lowers, c)
			found = true
		} else if firstErr == nil {
			firstErr = err
		}
	}

	if !found {
		return nil, firstErr
	}
	return child, nil
}

func (n *node) CreateFile(name string, opts vfs.CreateFileOptions) (vfs.Node, error) {
	u, err := n.requireUpper("overlayfs.create_file")
	if err != nil {
		return nil, err
	}
	c, err := u.CreateFile(name, opts)
	if err != nil {
		return nil, err
	}
	return &node{upper: c}, nil
}

func (n *node) Mkdir(name string, opts vfs.MkdirOptions) (vfs.Node, error) {
	u, err := n.requireUpper("overlayfs.mkdir")
	if err != nil {
		return nil, err
	}
	c, err := u.Mkdir(name, opts)
	if err != nil {
		return nil, err
	}
	return &node{upper: c}, nil
}

func (n *node) Unlink(name string, opts vfs.UnlinkOptions) error {
	u, err := n.requireUpper("overlayfs.unlink")
	if err != nil {
		return err
	}
	return u.Unlink(name, opts)
}

func (n *node) Rmdir(name string) error {
	u, err := n.requireUpper("overlayfs.rmdir")
	if err != nil {
		return err
	}
	return u.Rmdir(name)
}

// ReadDir merges entries across layers, with the upper's entry winning
// when a name appears in more than one layer.
func (n *node) ReadDir(cursor *vfs.DirCursor, max int) (vfs.ReadDirBatch, error) {
	merged := map[string]vfs.DirEntry{}
	var order []string

	collect := func(layer vfs.Node, preferExisting bool) {
		if layer == nil {
			return
		}
		batch, err := layer.ReadDir(nil, 0)
		if err != nil {
			return
		}
		for _, e := range batch.Entries {
			if _, ok := merged[e.Name]; ok {
				if preferExisting {
					continue
				}
			} else {
				order = append(order, e.Name)
			}
			merged[e.Name] = e
		}
	}

	// Collect lowers first (in reverse so the earliest lower wins among
	// lowers), then upper overrides everything.
	for i := len(n.lowers) - 1; i >= 0; i-- {
		collect(n.lowers[i], false)
	}
	collect(n.upper, false)

	start := 0
	if cursor != nil {
		start = int(*cursor)
	}
	if start > len(order) {
		start = len(order)
	}
	end := len(order)
	if max > 0 && start+max < end {
		end = start + max
	}

	entries := make([]vfs.DirEntry, 0, end-start)
	for _, name := range order[start:end] {
		entries = append(entries, merged[name])
	}
	var next *vfs.DirCursor
	if end < len(order) {
		c := vfs.DirCursor(end)
		next = &c
	}
	return vfs.ReadDirBatch{Entries: entries, NextCursor: next}, nil
}

func (n *node) Rename(oldName string, newParent vfs.Node, newName string, opts vfs.RenameOptions) error {
	u, err := n.requireUpper("overlayfs.rename")
	if err != nil {
		return err
	}
	dst, ok := newParent.(*node)
	if !ok {
		return vfs.NewError(vfs.KindCrossDevice, "overlayfs.rename")
	}
	dstUpper, err := dst.requireUpper("overlayfs.rename")
	if err != nil {
		return err
	}
	return u.Rename(oldName, dstUpper, newName, opts)
}

func (n *node) Link(existing vfs.Node, newName string) error {
	u, err := n.requireUpper("overlayfs.link")
	if err != nil {
		return err
	}
	src, ok := existing.(*node)
	if !ok {
		return vfs.NewError(vfs.KindCrossDevice, "overlayfs.link")
	}
	srcUpper, err := src.requireUpper("overlayfs.link")
	if err != nil {
		return err
	}
	return u.Link(srcUpper, newName)
}

func (n *node) Symlink(newName, target string) error {
	u, err := n.requireUpper("overlayfs.symlink")
	if err != nil {
		return err
	}
	return u.Symlink(newName, target)
}

func (n *node) Readlink() (string, error) { return n.resolved().Readlink() }

// Open reads through resolved() (upper first, else the first lower);
// writes require the upper copy to already exist — this overlay does not
// perform copy-up of a lower-only file into the upper on write-open.
func (n *node) Open(flags vfs.OpenFlags) (vfs.Handle, error) {
	if flags.Write || flags.Append {
		u, err := n.requireUpper("overlayfs.open")
		if err != nil {
			return nil, err
		}
		return u.Open(flags)
	}
	resolved := n.resolved()
	if resolved == nil {
		return nil, vfs.NewError(vfs.KindNotFound, "overlayfs.open")
	}
	return resolved.Open(flags)
}
