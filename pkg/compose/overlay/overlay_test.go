package overlay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marlowfs/vfscore/pkg/compose/overlay"
	"github.com/marlowfs/vfscore/pkg/store/memstore"
	"github.com/marlowfs/vfscore/pkg/storefs"
	"github.com/marlowfs/vfscore/pkg/vfs"
)

func newLayer(t *testing.T) *storefs.FS {
	t.Helper()
	fs := storefs.New("t", memstore.New())
	require.NoError(t, fs.Ready(context.Background()))
	return fs
}

func writeFile(t *testing.T, fs vfs.FileSystem, path, content string) {
	t.Helper()
	ctx := context.Background()
	h, err := fs.CreateFile(ctx, path, vfs.OpenFlag{Write: true, Create: true}, 0644, vfs.Root())
	require.NoError(t, err)
	_, err = h.Write(ctx, []byte(content), 0)
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))
}

// TestOverlayReadsThroughToLowerLayer covers S3: a file present only on the
// read-only layer is visible through the overlay, and unlinking it there
// masks it without ever mutating R.
func TestOverlayReadsThroughToLowerLayer(t *testing.T) {
	ctx := context.Background()
	r := newLayer(t)
	writeFile(t, r, "/base.txt", "from R")

	w := newLayer(t)
	fs := overlay.New(w, r)
	require.NoError(t, fs.Ready(ctx))

	handle, err := fs.OpenFile(ctx, "/base.txt", vfs.OpenFlag{Read: true}, vfs.Root())
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err := handle.Read(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "from R", string(buf[:n]))
	require.NoError(t, handle.Close(ctx))

	require.NoError(t, fs.Unlink(ctx, "/base.txt", vfs.Root()))
	_, err = fs.Stat(ctx, "/base.txt", vfs.Root())
	require.True(t, vfs.IsNotExist(err))

	_, err = r.Stat(ctx, "/base.txt", vfs.Root())
	require.NoError(t, err, "unlinking through the overlay must not mutate R")
}

func TestOverlayCopyOnWriteDoesNotMutateLowerLayer(t *testing.T) {
	ctx := context.Background()
	r := newLayer(t)
	writeFile(t, r, "/f.txt", "original")

	w := newLayer(t)
	fs := overlay.New(w, r)
	require.NoError(t, fs.Ready(ctx))

	handle, err := fs.OpenFile(ctx, "/f.txt", vfs.OpenFlag{Write: true}, vfs.Root())
	require.NoError(t, err)
	_, err = handle.Write(ctx, []byte("changed"), 0)
	require.NoError(t, err)
	require.NoError(t, handle.Close(ctx))

	rHandle, err := r.OpenFile(ctx, "/f.txt", vfs.OpenFlag{Read: true}, vfs.Root())
	require.NoError(t, err)
	buf := make([]byte, 32)
	n, err := rHandle.Read(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "original", string(buf[:n]))
	require.NoError(t, rHandle.Close(ctx))

	wHandle, err := w.OpenFile(ctx, "/f.txt", vfs.OpenFlag{Read: true}, vfs.Root())
	require.NoError(t, err)
	n, err = wHandle.Read(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "changed", string(buf[:n]))
	require.NoError(t, wHandle.Close(ctx))
}

func TestOverlayReaddirUnionsBothLayersAndHidesDeleted(t *testing.T) {
	ctx := context.Background()
	r := newLayer(t)
	writeFile(t, r, "/a.txt", "a")
	writeFile(t, r, "/b.txt", "b")

	w := newLayer(t)
	fs := overlay.New(w, r)
	require.NoError(t, fs.Ready(ctx))

	writeFile(t, fs, "/c.txt", "c")
	require.NoError(t, fs.Unlink(ctx, "/b.txt", vfs.Root()))

	entries, err := fs.Readdir(ctx, "/", vfs.Root())
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = true
	}
	require.True(t, names["a.txt"])
	require.True(t, names["c.txt"])
	require.False(t, names["b.txt"])
	require.False(t, names[".deleted"])
}

func TestOverlayRejectsAccessToDeletionLogPath(t *testing.T) {
	ctx := context.Background()
	fs := overlay.New(newLayer(t), newLayer(t))
	require.NoError(t, fs.Ready(ctx))

	_, err := fs.Stat(ctx, "/.deleted", vfs.Root())
	require.True(t, vfs.IsPermission(err))
}

func TestOverlayDeletionLogSurvivesReload(t *testing.T) {
	ctx := context.Background()
	r := newLayer(t)
	writeFile(t, r, "/gone.txt", "x")

	w := newLayer(t)
	fs := overlay.New(w, r)
	require.NoError(t, fs.Ready(ctx))
	require.NoError(t, fs.Unlink(ctx, "/gone.txt", vfs.Root()))

	// scheduleFlush runs in a background goroutine; give it a moment to
	// persist the log to w before reconstructing a fresh FS over it.
	require.Eventually(t, func() bool {
		reloaded := overlay.New(w, r)
		if err := reloaded.Ready(ctx); err != nil {
			return false
		}
		_, err := reloaded.Stat(ctx, "/gone.txt", vfs.Root())
		return vfs.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)
}
