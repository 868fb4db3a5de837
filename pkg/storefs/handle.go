package storefs

import (
	"context"
	"sync"

	"github.com/marlowfs/vfscore/pkg/inode"
	"github.com/marlowfs/vfscore/pkg/store"
	"github.com/marlowfs/vfscore/pkg/vfs"
)

// handle is an open file's in-memory buffer. Writes update the buffer only;
// the data blob is rewritten on Sync/Close, per "the handle buffers in
// memory between explicit syncs".
type handle struct {
	fs         *FS
	ino        vfs.Ino
	mu         sync.Mutex
	buf        []byte
	appendMode bool
	closed     bool
}

func (h *handle) Read(ctx context.Context, dst []byte, position int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if position < 0 || position > int64(len(h.buf)) {
		return 0, nil
	}
	n := copy(dst, h.buf[position:])
	return n, nil
}

func (h *handle) Write(ctx context.Context, src []byte, position int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.appendMode {
		position = int64(len(h.buf))
	}
	end := position + int64(len(src))
	if end > int64(len(h.buf)) {
		grown := make([]byte, end)
		copy(grown, h.buf)
		h.buf = grown
	}
	copy(h.buf[position:end], src)
	return len(src), nil
}

func (h *handle) Stat(ctx context.Context) (vfs.Stats, error) {
	rec, err := h.fs.readRecord(ctx, h.fs.store, h.ino)
	if err != nil {
		return vfs.Stats{}, vfs.Wrap(err, "fstat", "")
	}
	h.mu.Lock()
	rec.Stats.Size = uint64(len(h.buf))
	h.mu.Unlock()
	return rec.Stats, nil
}

func (h *handle) Truncate(ctx context.Context, size uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if uint64(len(h.buf)) == size {
		return nil
	}
	if size < uint64(len(h.buf)) {
		h.buf = h.buf[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, h.buf)
	h.buf = grown
	return nil
}

func (h *handle) Chmod(ctx context.Context, mode vfs.FileMode) error {
	rec, err := h.fs.readRecord(ctx, h.fs.store, h.ino)
	if err != nil {
		return vfs.Wrap(err, "chmod", "")
	}
	rec.Stats.Mode = (rec.Stats.Mode & vfs.S_IFMT) | mode.Perm()
	rec.Stats.Ctime = timeNow()
	_, err = h.fs.store.Put(ctx, store.Key{Ino: h.ino, Kind: store.KindInode}, inode.Record{Ino: h.ino, Stats: rec.Stats}.Encode(), true)
	return vfs.Wrap(err, "chmod", "")
}

func (h *handle) Chown(ctx context.Context, uid, gid uint32) error {
	rec, err := h.fs.readRecord(ctx, h.fs.store, h.ino)
	if err != nil {
		return vfs.Wrap(err, "chown", "")
	}
	rec.Stats.UID = uid
	rec.Stats.GID = gid
	rec.Stats.Ctime = timeNow()
	_, err = h.fs.store.Put(ctx, store.Key{Ino: h.ino, Kind: store.KindInode}, inode.Record{Ino: h.ino, Stats: rec.Stats}.Encode(), true)
	return vfs.Wrap(err, "chown", "")
}

func (h *handle) Sync(ctx context.Context) error {
	h.mu.Lock()
	buf := append([]byte(nil), h.buf...)
	h.mu.Unlock()

	rec, err := h.fs.readRecord(ctx, h.fs.store, h.ino)
	if err != nil {
		return vfs.Wrap(err, "fsync", "")
	}
	rec.Stats.Size = uint64(len(buf))
	rec.Stats.Mtime = timeNow()
	rec.Stats.Ctime = timeNow()

	txn, err := h.fs.store.BeginTransaction(ctx)
	if err != nil {
		return vfs.Wrap(err, "fsync", "")
	}
	if _, err := txn.Put(ctx, store.Key{Ino: h.ino, Kind: store.KindData}, buf, true); err != nil {
		_ = txn.Abort(ctx)
		return vfs.Wrap(err, "fsync", "")
	}
	if _, err := txn.Put(ctx, store.Key{Ino: h.ino, Kind: store.KindInode}, inode.Record{Ino: h.ino, Stats: rec.Stats}.Encode(), true); err != nil {
		_ = txn.Abort(ctx)
		return vfs.Wrap(err, "fsync", "")
	}
	if err := txn.Commit(ctx); err != nil {
		return vfs.Wrap(err, "fsync", "")
	}
	return nil
}

func (h *handle) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	return h.Sync(ctx)
}
