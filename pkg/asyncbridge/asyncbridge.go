// Package asyncbridge lets an inherently async FileSystem be driven from
// synchronous call sites: it mirrors the backend into an in-memory
// storefs-backed mirror, serves reads from the mirror, and pipelines
// mutations back to the async backend in FIFO order, grounded on the
// stopCh/doneCh background-worker shape of dittofs's pkg/gc.Collector,
// generalized from a periodic scan to a drain-on-demand queue.
package asyncbridge

import (
	"context"
	"sync"

	"github.com/marlowfs/vfscore/pkg/store/memstore"
	"github.com/marlowfs/vfscore/pkg/storefs"
	"github.com/marlowfs/vfscore/pkg/vfs"
	"github.com/marlowfs/vfscore/pkg/vfs/vfspath"
)

// op is one queued mutation against the async backend.
type op struct {
	run  func(ctx context.Context) error
	done chan struct{}
}

// Bridge composes an async vfs.FileSystem with an in-memory sync mirror.
type Bridge struct {
	async vfs.FileSystem
	mirror *storefs.FS

	disableAsyncCache bool

	queue     chan op
	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once

	errMu   sync.Mutex
	lastErr error

	pendingMu sync.Mutex
	pending   int
	drained   chan struct{}
}

// Config configures a Bridge.
type Config struct {
	// DisableAsyncCache, if set, disables the mirror entirely: every sync
	// operation then fails with ENOTSUP.
	DisableAsyncCache bool
}

// New wraps async with a sync mirror. Ready must be called before use.
func New(async vfs.FileSystem, cfg Config) *Bridge {
	return &Bridge{
		async:             async,
		mirror:            storefs.New("asyncbridge", memstore.New()),
		disableAsyncCache: cfg.DisableAsyncCache,
		queue:             make(chan op, 256),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
}

// Ready walks the async backend from / and mirrors every inode into the
// sync store (crossCopy), then starts the FIFO write-back driver. It also
// surfaces and clears any latched error from a previous run.
func (b *Bridge) Ready(ctx context.Context) error {
	if err := b.takeError(); err != nil {
		return err
	}
	if b.disableAsyncCache {
		return nil
	}
	if err := b.async.Ready(ctx); err != nil {
		return b.wrapTransport(err)
	}
	if err := b.mirror.Ready(ctx); err != nil {
		return err
	}
	if err := b.crossCopy(ctx, "/"); err != nil {
		return b.wrapTransport(err)
	}
	b.startOnce.Do(func() {
		go b.drive()
	})
	return nil
}

func (b *Bridge) crossCopy(ctx context.Context, path string) error {
	stats, err := b.async.Stat(ctx, path, vfs.Root())
	if err != nil {
		return err
	}
	if stats.Mode.IsDir() {
		if path != "/" {
			if err := b.mirror.Mkdir(ctx, path, stats.Mode.Perm(), vfs.Root()); err != nil && !vfs.IsExist(err) {
				return err
			}
		}
		entries, err := b.async.Readdir(ctx, path, vfs.Root())
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := b.crossCopy(ctx, vfspath.Join(path, entry.Name)); err != nil {
				return err
			}
		}
		return nil
	}
	handle, err := b.async.OpenFile(ctx, path, vfs.OpenFlag{Read: true}, vfs.Root())
	if err != nil {
		return err
	}
	defer handle.Close(ctx)
	buf := make([]byte, stats.Size)
	if _, err := handle.Read(ctx, buf, 0); err != nil {
		return err
	}
	dst, err := b.mirror.CreateFile(ctx, path, vfs.OpenFlag{Write: true, Create: true, Truncate: true}, stats.Mode.Perm(), vfs.Root())
	if err != nil {
		return err
	}
	if _, err := dst.Write(ctx, buf, 0); err != nil {
		_ = dst.Close(ctx)
		return err
	}
	return dst.Close(ctx)
}

func (b *Bridge) wrapTransport(err error) error {
	if err == nil {
		return nil
	}
	return vfs.New(vfs.EIO, "RPC Failed")
}

func (b *Bridge) takeError() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	err := b.lastErr
	b.lastErr = nil
	return err
}

func (b *Bridge) latch(err error) {
	if err == nil {
		return
	}
	b.errMu.Lock()
	if b.lastErr == nil {
		b.lastErr = err
	}
	b.errMu.Unlock()
}

// enqueue submits fn to the FIFO write-back queue, incrementing the
// in-flight count so QueueDone can block until it drains.
func (b *Bridge) enqueue(fn func(ctx context.Context) error) {
	b.pendingMu.Lock()
	b.pending++
	b.pendingMu.Unlock()
	b.queue <- op{run: fn}
}

// drive dequeues operations strictly in FIFO order, awaiting each before
// starting the next.
func (b *Bridge) drive() {
	defer close(b.doneCh)
	for {
		select {
		case o := <-b.queue:
			err := o.run(context.Background())
			b.latch(err)
			b.pendingMu.Lock()
			b.pending--
			if b.pending == 0 && b.drained != nil {
				close(b.drained)
				b.drained = nil
			}
			b.pendingMu.Unlock()
		case <-b.stopCh:
			return
		}
	}
}

// QueueDone resolves when every enqueued async operation has completed.
func (b *Bridge) QueueDone(ctx context.Context) error {
	b.pendingMu.Lock()
	if b.pending == 0 {
		b.pendingMu.Unlock()
		return b.takeError()
	}
	if b.drained == nil {
		b.drained = make(chan struct{})
	}
	ch := b.drained
	b.pendingMu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.takeError()
}

// Stop halts the write-back driver. Pending operations already dequeued
// finish; anything still queued is dropped.
func (b *Bridge) Stop() {
	close(b.stopCh)
	<-b.doneCh
}

func (b *Bridge) Metadata(ctx context.Context) (vfs.Metadata, error) {
	md, err := b.mirror.Metadata(ctx)
	md.NoAsyncCache = b.disableAsyncCache
	return md, err
}

func (b *Bridge) requireCache() error {
	if b.disableAsyncCache {
		return vfs.New(vfs.ENOTSUP, "async cache disabled")
	}
	return nil
}

func (b *Bridge) Stat(ctx context.Context, path string, cred vfs.Credential) (vfs.Stats, error) {
	if err := b.requireCache(); err != nil {
		return vfs.Stats{}, err
	}
	return b.mirror.Stat(ctx, path, cred)
}

func (b *Bridge) Exists(ctx context.Context, path string, cred vfs.Credential) (bool, error) {
	if err := b.requireCache(); err != nil {
		return false, err
	}
	return b.mirror.Exists(ctx, path, cred)
}

func (b *Bridge) Readdir(ctx context.Context, path string, cred vfs.Credential) ([]vfs.DirEntry, error) {
	if err := b.requireCache(); err != nil {
		return nil, err
	}
	return b.mirror.Readdir(ctx, path, cred)
}

func (b *Bridge) OpenFile(ctx context.Context, path string, flag vfs.OpenFlag, cred vfs.Credential) (vfs.FileHandle, error) {
	if err := b.requireCache(); err != nil {
		return nil, err
	}
	inner, err := b.mirror.OpenFile(ctx, path, flag, cred)
	if err != nil {
		return nil, err
	}
	return &bridgeHandle{bridge: b, path: path, inner: inner}, nil
}

func (b *Bridge) CreateFile(ctx context.Context, path string, flag vfs.OpenFlag, mode vfs.FileMode, cred vfs.Credential) (vfs.FileHandle, error) {
	if err := b.requireCache(); err != nil {
		return nil, err
	}
	inner, err := b.mirror.CreateFile(ctx, path, flag, mode, cred)
	if err != nil {
		return nil, err
	}
	b.enqueue(func(ctx context.Context) error {
		h, err := b.async.CreateFile(ctx, path, flag, mode, cred)
		if err != nil {
			return b.wrapTransport(err)
		}
		return h.Close(ctx)
	})
	return &bridgeHandle{bridge: b, path: path, inner: inner}, nil
}

func (b *Bridge) Mkdir(ctx context.Context, path string, mode vfs.FileMode, cred vfs.Credential) error {
	if err := b.requireCache(); err != nil {
		return err
	}
	if err := b.mirror.Mkdir(ctx, path, mode, cred); err != nil {
		return err
	}
	b.enqueue(func(ctx context.Context) error {
		return b.wrapTransport(b.async.Mkdir(ctx, path, mode, cred))
	})
	return nil
}

func (b *Bridge) Unlink(ctx context.Context, path string, cred vfs.Credential) error {
	if err := b.requireCache(); err != nil {
		return err
	}
	if err := b.mirror.Unlink(ctx, path, cred); err != nil {
		return err
	}
	b.enqueue(func(ctx context.Context) error {
		return b.wrapTransport(b.async.Unlink(ctx, path, cred))
	})
	return nil
}

func (b *Bridge) Rmdir(ctx context.Context, path string, cred vfs.Credential) error {
	if err := b.requireCache(); err != nil {
		return err
	}
	if err := b.mirror.Rmdir(ctx, path, cred); err != nil {
		return err
	}
	b.enqueue(func(ctx context.Context) error {
		return b.wrapTransport(b.async.Rmdir(ctx, path, cred))
	})
	return nil
}

func (b *Bridge) Rename(ctx context.Context, oldPath, newPath string, cred vfs.Credential) error {
	if err := b.requireCache(); err != nil {
		return err
	}
	if err := b.mirror.Rename(ctx, oldPath, newPath, cred); err != nil {
		return err
	}
	b.enqueue(func(ctx context.Context) error {
		return b.wrapTransport(b.async.Rename(ctx, oldPath, newPath, cred))
	})
	return nil
}

func (b *Bridge) Link(ctx context.Context, src, dst string, cred vfs.Credential) error {
	if err := b.requireCache(); err != nil {
		return err
	}
	if err := b.mirror.Link(ctx, src, dst, cred); err != nil {
		return err
	}
	b.enqueue(func(ctx context.Context) error {
		return b.wrapTransport(b.async.Link(ctx, src, dst, cred))
	})
	return nil
}

func (b *Bridge) Sync(ctx context.Context, path string, data []byte, stats vfs.Stats) error {
	if err := b.requireCache(); err != nil {
		return err
	}
	if err := b.mirror.Sync(ctx, path, data, stats); err != nil {
		return err
	}
	b.enqueue(func(ctx context.Context) error {
		return b.wrapTransport(b.async.Sync(ctx, path, data, stats))
	})
	return nil
}

// bridgeHandle applies writes to the mirror immediately and enqueues each
// write against the async backend as it is made. Truncate, Chmod, Chown,
// Sync and Close act on the mirror only and enqueue nothing.
type bridgeHandle struct {
	bridge *Bridge
	path   string
	inner  vfs.FileHandle
}

func (h *bridgeHandle) Read(ctx context.Context, buf []byte, position int64) (int, error) {
	return h.inner.Read(ctx, buf, position)
}

func (h *bridgeHandle) Write(ctx context.Context, buf []byte, position int64) (int, error) {
	n, err := h.inner.Write(ctx, buf, position)
	if err != nil {
		return n, err
	}
	data := append([]byte(nil), buf...)
	h.bridge.enqueue(func(ctx context.Context) error {
		async, err := h.bridge.async.OpenFile(ctx, h.path, vfs.OpenFlag{Write: true}, vfs.Root())
		if err != nil {
			return h.bridge.wrapTransport(err)
		}
		if _, err := async.Write(ctx, data, position); err != nil {
			_ = async.Close(ctx)
			return h.bridge.wrapTransport(err)
		}
		return h.bridge.wrapTransport(async.Close(ctx))
	})
	return n, nil
}

func (h *bridgeHandle) Stat(ctx context.Context) (vfs.Stats, error) { return h.inner.Stat(ctx) }

func (h *bridgeHandle) Truncate(ctx context.Context, size uint64) error {
	return h.inner.Truncate(ctx, size)
}

func (h *bridgeHandle) Chmod(ctx context.Context, mode vfs.FileMode) error {
	return h.inner.Chmod(ctx, mode)
}

func (h *bridgeHandle) Chown(ctx context.Context, uid, gid uint32) error {
	return h.inner.Chown(ctx, uid, gid)
}

func (h *bridgeHandle) Sync(ctx context.Context) error {
	return h.inner.Sync(ctx)
}

func (h *bridgeHandle) Close(ctx context.Context) error {
	return h.inner.Close(ctx)
}
