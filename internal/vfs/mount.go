package vfs

import (
	"strings"
	"sync/atomic"
)

// ResolveFlags controls how Resolve treats a symlink found at the final
// path segment; every intermediate segment is always followed regardless
// of flags, matching openat(2)'s O_NOFOLLOW (which only ever applies to
// the last component).
type ResolveFlags uint32

const (
	ResolveFlagNone ResolveFlags = 0
	// ResolveFlagNoFollow leaves a symlink at the final path segment
	// unresolved, returning the symlink node itself instead of its
	// target — for path_readlink, an exclusive symlink create, or an
	// lstat-style query.
	ResolveFlagNoFollow ResolveFlags = 1 << 0
)

// maxSymlinkDepth bounds recursive symlink resolution the way Linux's
// MAXSYMLINKS does, turning a symlink loop into an error instead of an
// unbounded recursion.
const maxSymlinkDepth = 40

// mountEntry is one attached filesystem subtree.
type mountEntry struct {
	id       MountId
	path     []string // normalized segments the filesystem is attached at
	fs       Filesystem
	readOnly bool
}

// MountTable resolves paths to nodes across the stack of attached
// filesystems. The table is an immutable slice of mounts swapped via
// copy-on-write behind an atomic pointer, so lookups never block a
// concurrent mount/unmount and vice versa.
type MountTable struct {
	mounts atomic.Pointer[[]mountEntry]
	nextID atomic.Uint32
}

// NewMountTable returns a table whose sole entry is root, mounted at "/".
func NewMountTable(root Filesystem) *MountTable {
	t := &MountTable{}
	entries := []mountEntry{{id: 0, path: nil, fs: root}}
	t.mounts.Store(&entries)
	t.nextID.Store(1)
	return t
}

// Mount attaches fs at path, returning the new mount's MountId. Mounting
// is a pure copy-on-write append: readers using a snapshot obtained before
// this call are unaffected.
func (t *MountTable) Mount(path string, fs Filesystem, flags MountFlags) (MountId, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return 0, err
	}

	id := MountId(t.nextID.Add(1) - 1)
	entry := mountEntry{id: id, path: segments, fs: fs, readOnly: flags&MountFlagReadOnly != 0}

	for {
		old := t.mounts.Load()
		next := make([]mountEntry, len(*old)+1)
		copy(next, *old)
		next[len(*old)] = entry
		if t.mounts.CompareAndSwap(old, &next) {
			return id, nil
		}
	}
}

// Unmount removes the mount with the given id.
func (t *MountTable) Unmount(id MountId) error {
	for {
		old := t.mounts.Load()
		idx := -1
		for i, m := range *old {
			if m.id == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return NewError(KindNotFound, "mount_table.unmount")
		}
		next := make([]mountEntry, 0, len(*old)-1)
		next = append(next, (*old)[:idx]...)
		next = append(next, (*old)[idx+1:]...)
		if t.mounts.CompareAndSwap(old, &next) {
			return nil
		}
	}
}

// Resolve walks the longest-matching mount for path and descends via
// Node.Lookup for the remaining segments, following symlinks (including at
// the final segment) as it goes. Equivalent to
// ResolveWithFlags(path, ResolveFlagNone).
func (t *MountTable) Resolve(path string) (Node, MountId, bool, error) {
	return t.resolve(path, ResolveFlagNone, 0)
}

// ResolveWithFlags is Resolve with control over whether a symlink at the
// final path segment is followed; see ResolveFlags.
func (t *MountTable) ResolveWithFlags(path string, flags ResolveFlags) (Node, MountId, bool, error) {
	return t.resolve(path, flags, 0)
}

func (t *MountTable) resolve(path string, flags ResolveFlags, depth int) (Node, MountId, bool, error) {
	if depth > maxSymlinkDepth {
		return nil, 0, false, NewError(KindInvalidInput, "mount_table.resolve_symlink_loop")
	}

	segments, err := SplitPath(path)
	if err != nil {
		return nil, 0, false, err
	}

	mounts := *t.mounts.Load()
	bestIdx := -1
	bestLen := -1
	for i, m := range mounts {
		if len(m.path) > len(segments) {
			continue
		}
		if !hasPrefix(segments, m.path) {
			continue
		}
		if len(m.path) > bestLen {
			bestLen = len(m.path)
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil, 0, false, NewError(KindNotFound, "mount_table.resolve")
	}

	mount := mounts[bestIdx]
	node := mount.fs.Root()
	remaining := segments[len(mount.path):]
	for i, seg := range remaining {
		next, err := node.Lookup(seg)
		if err != nil {
			return nil, 0, false, err
		}

		isLast := i == len(remaining)-1
		if next.FileType() == FileTypeSymlink && (!isLast || flags&ResolveFlagNoFollow == 0) {
			resolved, mid, ro, err := t.resolveSymlink(mount, remaining[:i], next, flags, depth)
			if err != nil {
				return nil, 0, false, err
			}
			if isLast {
				return resolved, mid, ro, nil
			}
			node = resolved
			continue
		}
		node = next
	}
	return node, mount.id, mount.readOnly, nil
}

// resolveSymlink reads target's link target and re-enters resolution from
// it: an absolute target is resolved from the mount table root; a relative
// one is resolved against the directory containing the symlink, i.e. the
// owning mount's own path plus dirSegments (the already-consumed segments
// before the symlink's own name).
func (t *MountTable) resolveSymlink(mount mountEntry, dirSegments []string, symlink Node, flags ResolveFlags, depth int) (Node, MountId, bool, error) {
	target, err := symlink.Readlink()
	if err != nil {
		return nil, 0, false, err
	}

	if strings.HasPrefix(target, "/") {
		return t.resolve(target, flags, depth+1)
	}

	full := make([]string, 0, len(mount.path)+len(dirSegments)+1)
	full = append(full, mount.path...)
	full = append(full, dirSegments...)
	return t.resolve(JoinPath(full)+"/"+target, flags, depth+1)
}

func hasPrefix(segments, prefix []string) bool {
	if len(prefix) > len(segments) {
		return false
	}
	for i, p := range prefix {
		if segments[i] != p {
			return false
		}
	}
	return true
}

// guardReadOnly returns a read-only error for a named op if readOnly is
// set: a read-only mount refuses every mutating operation with this one
// uniform error kind.
func guardReadOnly(readOnly bool, op string) error {
	if readOnly {
		return NewError(KindReadOnly, op)
	}
	return nil
}

// SameBackend reports whether a and b originate from the same provider
// mount; Rename uses this to reject cross-device moves when the source
// and destination parents come from different mounts.
func SameBackend(mountA, mountB MountId) bool { return mountA == mountB }
