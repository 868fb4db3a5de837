package storefs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marlowfs/vfscore/pkg/store/memstore"
	"github.com/marlowfs/vfscore/pkg/storefs"
	"github.com/marlowfs/vfscore/pkg/vfs"
	"github.com/marlowfs/vfscore/pkg/vfstest"
)

func TestStoreFSConformance(t *testing.T) {
	suite := &vfstest.Suite{
		NewFS: func() vfs.FileSystem { return storefs.New("t", memstore.New()) },
	}
	suite.Run(t)
}

func TestReadyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fs := storefs.New("t", memstore.New())
	require.NoError(t, fs.Ready(ctx))
	require.NoError(t, fs.Ready(ctx))

	stat, err := fs.Stat(ctx, "/", vfs.Root())
	require.NoError(t, err)
	require.True(t, stat.Mode.IsDir())
}

func TestSymlinkCreateAndRead(t *testing.T) {
	ctx := context.Background()
	fs := storefs.New("t", memstore.New())
	require.NoError(t, fs.Ready(ctx))

	require.NoError(t, fs.CreateSymlink(ctx, "/link", "/target", vfs.Root()))
	target, err := fs.ReadSymlink(ctx, "/link", vfs.Root())
	require.NoError(t, err)
	require.Equal(t, "/target", target)

	stat, err := fs.Stat(ctx, "/link", vfs.Root())
	require.NoError(t, err)
	require.True(t, stat.Mode.IsSymlink())
}

func TestReadSymlinkOnRegularFileFails(t *testing.T) {
	ctx := context.Background()
	fs := storefs.New("t", memstore.New())
	require.NoError(t, fs.Ready(ctx))

	h, err := fs.CreateFile(ctx, "/f", vfs.OpenFlag{Write: true, Create: true}, 0644, vfs.Root())
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))

	_, err = fs.ReadSymlink(ctx, "/f", vfs.Root())
	require.True(t, vfs.IsInvalid(err))
}

func TestRenameCrossTypeConflictsAreRejected(t *testing.T) {
	ctx := context.Background()
	fs := storefs.New("t", memstore.New())
	require.NoError(t, fs.Ready(ctx))

	require.NoError(t, fs.Mkdir(ctx, "/dir", 0755, vfs.Root()))
	h, err := fs.CreateFile(ctx, "/file", vfs.OpenFlag{Write: true, Create: true}, 0644, vfs.Root())
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))

	err = fs.Rename(ctx, "/file", "/dir", vfs.Root())
	require.True(t, vfs.IsDir(err))

	err = fs.Rename(ctx, "/dir", "/file", vfs.Root())
	require.True(t, vfs.IsNotDir(err))
}

func TestUnlinkOnDirectoryFails(t *testing.T) {
	ctx := context.Background()
	fs := storefs.New("t", memstore.New())
	require.NoError(t, fs.Ready(ctx))
	require.NoError(t, fs.Mkdir(ctx, "/d", 0755, vfs.Root()))

	err := fs.Unlink(ctx, "/d", vfs.Root())
	require.True(t, vfs.IsDir(err))
}
