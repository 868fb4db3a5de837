package mount_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marlowfs/vfscore/pkg/mount"
	"github.com/marlowfs/vfscore/pkg/store/memstore"
	"github.com/marlowfs/vfscore/pkg/storefs"
	"github.com/marlowfs/vfscore/pkg/vfs"
)

func newReadyFS(t *testing.T, name string) vfs.FileSystem {
	t.Helper()
	fs := storefs.New(name, memstore.New())
	require.NoError(t, fs.Ready(context.Background()))
	return fs
}

// TestLongestPrefixWins: a mount at "/" and a more specific mount
// at "/data" must route "/data/x" to the more specific filesystem.
func TestLongestPrefixWins(t *testing.T) {
	router := mount.New()
	root := newReadyFS(t, "root")
	data := newReadyFS(t, "data")
	require.NoError(t, router.Mount("/", root))
	require.NoError(t, router.Mount("/data", data))

	fs, rel, err := router.Resolve("/data/x")
	require.NoError(t, err)
	require.Equal(t, data, fs)
	require.Equal(t, "/x", rel)

	fs, rel, err = router.Resolve("/other")
	require.NoError(t, err)
	require.Equal(t, root, fs)
	require.Equal(t, "/other", rel)
}

// TestPrefixMatchIsComponentAligned: "/data" must not match
// "/database" — that is a different top-level name, not a subpath.
func TestPrefixMatchIsComponentAligned(t *testing.T) {
	router := mount.New()
	root := newReadyFS(t, "root")
	data := newReadyFS(t, "data")
	require.NoError(t, router.Mount("/", root))
	require.NoError(t, router.Mount("/data", data))

	fs, _, err := router.Resolve("/database/x")
	require.NoError(t, err)
	require.Equal(t, root, fs)
}

// TestResolveWithNoMountsIsNotFound: an empty mount table
// reports ENOENT rather than panicking or silently defaulting.
func TestResolveWithNoMountsIsNotFound(t *testing.T) {
	router := mount.New()
	_, _, err := router.Resolve("/anything")
	require.True(t, vfs.IsNotExist(err))
}

func TestMountRejectsRelativePrefix(t *testing.T) {
	router := mount.New()
	err := router.Mount("relative", newReadyFS(t, "x"))
	require.True(t, vfs.IsInvalid(err))
}

func TestMountRejectsDuplicatePrefix(t *testing.T) {
	router := mount.New()
	require.NoError(t, router.Mount("/a", newReadyFS(t, "a")))
	err := router.Mount("/a", newReadyFS(t, "b"))
	require.True(t, vfs.IsExist(err))
}

func TestUmountThenResolveFails(t *testing.T) {
	router := mount.New()
	require.NoError(t, router.Mount("/a", newReadyFS(t, "a")))
	require.NoError(t, router.Umount("/a"))
	err := router.Umount("/a")
	require.True(t, vfs.IsNotExist(err))
}

func TestResetClearsAllMounts(t *testing.T) {
	router := mount.New()
	require.NoError(t, router.Mount("/a", newReadyFS(t, "a")))
	router.Reset()
	require.Empty(t, router.MountedPrefixes())
}

func TestCrossMountRenameCopiesAndUnlinksSource(t *testing.T) {
	ctx := context.Background()
	router := mount.New()
	src := newReadyFS(t, "src")
	dst := newReadyFS(t, "dst")
	require.NoError(t, router.Mount("/src", src))
	require.NoError(t, router.Mount("/dst", dst))

	h, err := src.CreateFile(ctx, "/f.txt", vfs.OpenFlag{Write: true, Create: true}, 0644, vfs.Root())
	require.NoError(t, err)
	_, err = h.Write(ctx, []byte("payload"), 0)
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))

	require.NoError(t, router.Rename(ctx, "/src/f.txt", "/dst/f.txt", vfs.Root()))

	_, err = src.Stat(ctx, "/f.txt", vfs.Root())
	require.True(t, vfs.IsNotExist(err))

	readHandle, err := dst.OpenFile(ctx, "/f.txt", vfs.OpenFlag{Read: true}, vfs.Root())
	require.NoError(t, err)
	buf := make([]byte, 7)
	n, err := readHandle.Read(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "payload", string(buf[:n]))
}
