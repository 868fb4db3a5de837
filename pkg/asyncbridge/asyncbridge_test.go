package asyncbridge_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marlowfs/vfscore/pkg/asyncbridge"
	"github.com/marlowfs/vfscore/pkg/store/memstore"
	"github.com/marlowfs/vfscore/pkg/storefs"
	"github.com/marlowfs/vfscore/pkg/vfs"
)

// flakyAsync wraps a real storefs.FS but can be told to fail the next
// mutating call, simulating an async transport dropping a request.
type flakyAsync struct {
	*storefs.FS
	mu      sync.Mutex
	failNext bool
}

func newFlakyAsync() *flakyAsync {
	return &flakyAsync{FS: storefs.New("async", memstore.New())}
}

func (f *flakyAsync) shouldFail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return true
	}
	return false
}

func (f *flakyAsync) FailNext() {
	f.mu.Lock()
	f.failNext = true
	f.mu.Unlock()
}

func (f *flakyAsync) Mkdir(ctx context.Context, path string, mode vfs.FileMode, cred vfs.Credential) error {
	if f.shouldFail() {
		return errors.New("simulated transport drop")
	}
	return f.FS.Mkdir(ctx, path, mode, cred)
}

// TestAsyncBridgeServesReadsFromMirror covers invariant 8: mutations land in
// the mirror synchronously, so a caller sees them immediately even though
// the async backend's copy hasn't been written yet.
func TestAsyncBridgeServesReadsFromMirror(t *testing.T) {
	ctx := context.Background()
	async := newFlakyAsync()
	bridge := asyncbridge.New(async, asyncbridge.Config{})
	require.NoError(t, bridge.Ready(ctx))

	require.NoError(t, bridge.Mkdir(ctx, "/d", 0755, vfs.Root()))
	stat, err := bridge.Stat(ctx, "/d", vfs.Root())
	require.NoError(t, err)
	require.True(t, stat.Mode.IsDir())

	require.NoError(t, bridge.QueueDone(ctx))
	asyncStat, err := async.Stat(ctx, "/d", vfs.Root())
	require.NoError(t, err)
	require.True(t, asyncStat.Mode.IsDir())
}

// TestAsyncBridgeTransportFailureBecomesEIO covers S5: any failure from the
// async backend surfaces to the caller as EIO "RPC Failed", not the
// backend's own error.
func TestAsyncBridgeTransportFailureBecomesEIO(t *testing.T) {
	ctx := context.Background()
	async := newFlakyAsync()
	bridge := asyncbridge.New(async, asyncbridge.Config{})
	require.NoError(t, bridge.Ready(ctx))

	async.FailNext()
	require.NoError(t, bridge.Mkdir(ctx, "/will-fail", 0755, vfs.Root()))

	err := bridge.QueueDone(ctx)
	require.Error(t, err)
	require.True(t, vfs.IsIO(err))
	require.Contains(t, err.Error(), "RPC Failed")
}

func TestAsyncBridgeErrorLatchesOnceThenClears(t *testing.T) {
	ctx := context.Background()
	async := newFlakyAsync()
	bridge := asyncbridge.New(async, asyncbridge.Config{})
	require.NoError(t, bridge.Ready(ctx))

	async.FailNext()
	require.NoError(t, bridge.Mkdir(ctx, "/a", 0755, vfs.Root()))
	require.Error(t, bridge.QueueDone(ctx))
	require.NoError(t, bridge.QueueDone(ctx), "the latched error must clear after being surfaced once")
}

func TestAsyncBridgeDisabledCacheReturnsENOTSUP(t *testing.T) {
	ctx := context.Background()
	async := newFlakyAsync()
	bridge := asyncbridge.New(async, asyncbridge.Config{DisableAsyncCache: true})
	require.NoError(t, bridge.Ready(ctx))

	_, err := bridge.Stat(ctx, "/anything", vfs.Root())
	require.True(t, vfs.IsNotSupported(err))
}
