package vfs

// SharedFilesystem wraps an existing Filesystem so it can be mounted again
// at a second path: the wrapper forwards every call to the same backend,
// so both mounts observe the same node identities (same BackendInodeId)
// while each gets its own MountId from the mount table.
//
// Grounded on original_source/lib/wasi/src/fs/arc_fs.rs's ArcFileSystem,
// which holds an Arc<dyn FileSystem> and forwards every trait method
// verbatim — the Go equivalent of Arc-based sharing is simply holding the
// same *interface value* twice, since Go's garbage collector keeps the
// backend alive for as long as either wrapper references it.
type SharedFilesystem struct {
	inner Filesystem
}

// NewSharedFilesystem wraps inner for remounting elsewhere in the tree.
func NewSharedFilesystem(inner Filesystem) *SharedFilesystem {
	return &SharedFilesystem{inner: inner}
}

func (s *SharedFilesystem) ProviderName() string  { return s.inner.ProviderName() }
func (s *SharedFilesystem) Capabilities() Capabilities { return s.inner.Capabilities() }
func (s *SharedFilesystem) Root() Node            { return s.inner.Root() }

// Unwrap returns the backend this wrapper shares, e.g. so a caller can
// confirm two mounts share identity with SameBackingFS.
func (s *SharedFilesystem) Unwrap() Filesystem { return s.inner }

// SameBackingFS reports whether two Filesystem values (looking through any
// SharedFilesystem wrapper) are ultimately backed by the same instance,
// i.e. whether nodes reached through either one carry the same
// BackendInodeId space.
func SameBackingFS(a, b Filesystem) bool {
	return unwrapFS(a) == unwrapFS(b)
}

func unwrapFS(fs Filesystem) Filesystem {
	for {
		shared, ok := fs.(*SharedFilesystem)
		if !ok {
			return fs
		}
		fs = shared.inner
	}
}
