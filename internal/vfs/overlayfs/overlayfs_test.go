package overlayfs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wazergo/runtime/internal/vfs"
	"github.com/wazergo/runtime/internal/vfs/memfs"
)

func writeFile(t *testing.T, root vfs.Node, name, content string) {
	t.Helper()
	f, err := root.CreateFile(name, vfs.CreateFileOptions{})
	require.NoError(t, err)
	h, err := f.Open(vfs.OpenFlags{Write: true})
	require.NoError(t, err)
	_, err = h.WriteAt([]byte(content), 0)
	require.NoError(t, err)
}

func readFile(t *testing.T, n vfs.Node) string {
	t.Helper()
	h, err := n.Open(vfs.OpenFlags{Read: true})
	require.NoError(t, err)
	buf := make([]byte, 64)
	c, err := h.ReadAt(buf, 0)
	require.NoError(t, err)
	return string(buf[:c])
}

func TestReadFallsThroughToLower(t *testing.T) {
	upper := memfs.New()
	lower := memfs.New()
	writeFile(t, lower.Root(), "only-in-lower.txt", "from lower")

	ov := New(upper, lower)
	n, err := ov.Root().Lookup("only-in-lower.txt")
	require.NoError(t, err)
	require.Equal(t, "from lower", readFile(t, n))
}

func TestUpperShadowsLower(t *testing.T) {
	upper := memfs.New()
	lower := memfs.New()
	writeFile(t, upper.Root(), "shared.txt", "from upper")
	writeFile(t, lower.Root(), "shared.txt", "from lower")

	ov := New(upper, lower)
	n, err := ov.Root().Lookup("shared.txt")
	require.NoError(t, err)
	require.Equal(t, "from upper", readFile(t, n))
}

func TestWriteTargetsUpperOnly(t *testing.T) {
	upper := memfs.New()
	lower := memfs.New()
	ov := New(upper, lower)

	_, err := ov.Root().CreateFile("new.txt", vfs.CreateFileOptions{})
	require.NoError(t, err)

	_, err = lower.Root().Lookup("new.txt")
	require.Equal(t, vfs.KindNotFound, vfs.KindOf(err))
	_, err = upper.Root().Lookup("new.txt")
	require.NoError(t, err)
}

func TestReadDirMergesLayers(t *testing.T) {
	upper := memfs.New()
	lower := memfs.New()
	writeFile(t, upper.Root(), "a.txt", "1")
	writeFile(t, lower.Root(), "b.txt", "2")

	ov := New(upper, lower)
	batch, err := ov.Root().ReadDir(nil, 0)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range batch.Entries {
		names[e.Name] = true
	}
	require.True(t, names["a.txt"])
	require.True(t, names["b.txt"])
}

func TestOpenForWrite_FailsWhenMissingFromUpper(t *testing.T) {
	upper := memfs.New()
	lower := memfs.New()
	writeFile(t, lower.Root(), "ro.txt", "x")

	ov := New(upper, lower)
	n, err := ov.Root().Lookup("ro.txt")
	require.NoError(t, err)

	_, err = n.Open(vfs.OpenFlags{Write: true})
	require.Equal(t, vfs.KindReadOnly, vfs.KindOf(err))
}
