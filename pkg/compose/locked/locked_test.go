package locked_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marlowfs/vfscore/pkg/compose/locked"
	"github.com/marlowfs/vfscore/pkg/store/memstore"
	"github.com/marlowfs/vfscore/pkg/storefs"
	"github.com/marlowfs/vfscore/pkg/vfs"
)

func TestLockedDelegatesToInner(t *testing.T) {
	ctx := context.Background()
	inner := storefs.New("t", memstore.New())
	require.NoError(t, inner.Ready(ctx))
	fs := locked.New(inner)

	require.NoError(t, fs.Mkdir(ctx, "/d", 0755, vfs.Root()))
	stat, err := fs.Stat(ctx, "/d", vfs.Root())
	require.NoError(t, err)
	require.True(t, stat.Mode.IsDir())
}

func TestLockedSerializesConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	inner := storefs.New("t", memstore.New())
	require.NoError(t, inner.Ready(ctx))
	fs := locked.New(inner)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			h, err := fs.CreateFile(ctx, "/f", vfs.OpenFlag{Write: true, Create: true}, 0644, vfs.Root())
			if err != nil {
				return
			}
			_, _ = h.Write(ctx, []byte{byte(n)}, 0)
			_ = h.Close(ctx)
		}(i)
	}
	wg.Wait()

	stat, err := fs.Stat(ctx, "/f", vfs.Root())
	require.NoError(t, err)
	require.Equal(t, uint64(1), stat.Size)
}
