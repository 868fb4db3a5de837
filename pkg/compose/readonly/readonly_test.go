package readonly_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marlowfs/vfscore/pkg/compose/readonly"
	"github.com/marlowfs/vfscore/pkg/store/memstore"
	"github.com/marlowfs/vfscore/pkg/storefs"
	"github.com/marlowfs/vfscore/pkg/vfs"
)

func newInner(t *testing.T) *storefs.FS {
	t.Helper()
	fs := storefs.New("t", memstore.New())
	require.NoError(t, fs.Ready(context.Background()))
	return fs
}

// TestReadonlyRejectsMutators covers S4: every mutating operation on a
// read-only projection fails with EROFS, while reads pass through
// unaffected.
func TestReadonlyRejectsMutators(t *testing.T) {
	ctx := context.Background()
	inner := newInner(t)
	require.NoError(t, inner.Mkdir(ctx, "/existing", 0755, vfs.Root()))

	fs := readonly.New(inner)

	err := fs.Mkdir(ctx, "/d", 0755, vfs.Root())
	require.True(t, vfs.IsReadOnly(err))

	_, err = fs.CreateFile(ctx, "/f", vfs.OpenFlag{Write: true, Create: true}, 0644, vfs.Root())
	require.True(t, vfs.IsReadOnly(err))

	err = fs.Unlink(ctx, "/existing", vfs.Root())
	require.True(t, vfs.IsReadOnly(err))

	err = fs.Rmdir(ctx, "/existing", vfs.Root())
	require.True(t, vfs.IsReadOnly(err))

	err = fs.Rename(ctx, "/existing", "/moved", vfs.Root())
	require.True(t, vfs.IsReadOnly(err))

	err = fs.Link(ctx, "/existing", "/link", vfs.Root())
	require.True(t, vfs.IsReadOnly(err))

	stat, err := fs.Stat(ctx, "/existing", vfs.Root())
	require.NoError(t, err)
	require.True(t, stat.Mode.IsDir())
}

func TestReadonlyMetadataReportsReadonly(t *testing.T) {
	fs := readonly.New(newInner(t))
	md, err := fs.Metadata(context.Background())
	require.NoError(t, err)
	require.True(t, md.Readonly)
}

func TestReadonlyOpenForWriteFails(t *testing.T) {
	ctx := context.Background()
	inner := newInner(t)
	h, err := inner.CreateFile(ctx, "/f", vfs.OpenFlag{Write: true, Create: true}, 0644, vfs.Root())
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))

	fs := readonly.New(inner)
	_, err = fs.OpenFile(ctx, "/f", vfs.OpenFlag{Write: true}, vfs.Root())
	require.True(t, vfs.IsReadOnly(err))
}

func TestReadonlyHandleRejectsWriteEvenIfOpenedForRead(t *testing.T) {
	ctx := context.Background()
	inner := newInner(t)
	h, err := inner.CreateFile(ctx, "/f", vfs.OpenFlag{Write: true, Create: true}, 0644, vfs.Root())
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))

	fs := readonly.New(inner)
	handle, err := fs.OpenFile(ctx, "/f", vfs.OpenFlag{Read: true}, vfs.Root())
	require.NoError(t, err)
	_, err = handle.Write(ctx, []byte("nope"), 0)
	require.True(t, vfs.IsReadOnly(err))
}
