// Package overlay implements a writable-over-readable projection with a
// durable deletion log. It has no direct teacher analog — dittofs has no
// overlay filesystem — so it is written in the teacher's error-handling and
// documentation idiom, composing vfs.Error and the vfs.FileSystem contract
// like every other composer.
package overlay

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/marlowfs/vfscore/pkg/vfs"
	"github.com/marlowfs/vfscore/pkg/vfs/vfspath"
)

// deletionLogPath is the reserved path the deletion log lives at on the
// writable layer; every operation against it returns EPERM.
const deletionLogPath = "/.deleted"

// FS composes a writable layer W over a read-only layer R. Constructing a
// new FS over the same W recovers the same deletedNames set, since the log
// is durable on W.
//
// FS expects a Locked wrapper around it; deletedNames and the flush flags
// below are not themselves synchronized against concurrent callers.
type FS struct {
	w, r vfs.FileSystem

	deletedNames map[string]struct{}

	flushMu      sync.Mutex
	flushing     bool
	dirty        bool
	flushErr     error
}

// New composes w (writable) over r (read-only).
func New(w, r vfs.FileSystem) *FS {
	return &FS{w: w, r: r, deletedNames: make(map[string]struct{})}
}

func (f *FS) Ready(ctx context.Context) error {
	if err := f.w.Ready(ctx); err != nil {
		return err
	}
	if err := f.r.Ready(ctx); err != nil {
		return err
	}
	return f.loadDeletionLog(ctx)
}

func (f *FS) loadDeletionLog(ctx context.Context) error {
	handle, err := f.w.OpenFile(ctx, deletionLogPath, vfs.OpenFlag{Read: true}, vfs.Root())
	if err != nil {
		if vfs.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer handle.Close(ctx)
	stats, err := handle.Stat(ctx)
	if err != nil {
		return err
	}
	buf := make([]byte, stats.Size)
	if _, err := handle.Read(ctx, buf, 0); err != nil {
		return err
	}
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "d") {
			f.deletedNames[line[1:]] = struct{}{}
		}
	}
	return nil
}

func (f *FS) Metadata(ctx context.Context) (vfs.Metadata, error) {
	return f.w.Metadata(ctx)
}

func isProtected(path string) bool {
	return vfspath.Clean(path) == deletionLogPath
}

func (f *FS) Stat(ctx context.Context, path string, cred vfs.Credential) (vfs.Stats, error) {
	if isProtected(path) {
		return vfs.Stats{}, vfs.Newf(vfs.EPERM, "stat", path, "reserved path")
	}
	if exists, _ := f.w.Exists(ctx, path, cred); exists {
		return f.w.Stat(ctx, path, cred)
	}
	if f.isDeleted(path) {
		return vfs.Stats{}, vfs.Newf(vfs.ENOENT, "stat", path, "deleted")
	}
	stats, err := f.r.Stat(ctx, path, cred)
	if err != nil {
		return vfs.Stats{}, err
	}
	stats.Mode |= vfs.S_IWUSR | vfs.S_IWGRP | vfs.S_IWOTH
	return stats, nil
}

func (f *FS) isDeleted(path string) bool {
	_, ok := f.deletedNames[vfspath.Clean(path)]
	return ok
}

func (f *FS) Exists(ctx context.Context, path string, cred vfs.Credential) (bool, error) {
	if isProtected(path) {
		return false, vfs.Newf(vfs.EPERM, "exists", path, "reserved path")
	}
	if exists, _ := f.w.Exists(ctx, path, cred); exists {
		return true, nil
	}
	if f.isDeleted(path) {
		return false, nil
	}
	return f.r.Exists(ctx, path, cred)
}

// copyUpDirs creates every missing ancestor of path on W, copying mode
// bits from R, so a subsequent create on W has somewhere to land.
func (f *FS) copyUpDirs(ctx context.Context, path string, cred vfs.Credential) error {
	dir := vfspath.Dir(path)
	if dir == "/" {
		return nil
	}
	if exists, _ := f.w.Exists(ctx, dir, cred); exists {
		return nil
	}
	if err := f.copyUpDirs(ctx, dir, cred); err != nil {
		return err
	}
	mode := vfs.FileMode(0755)
	if stats, err := f.r.Stat(ctx, dir, cred); err == nil {
		mode = stats.Mode.Perm()
	}
	if err := f.w.Mkdir(ctx, dir, mode, cred); err != nil && !vfs.IsExist(err) {
		return err
	}
	return nil
}

func (f *FS) OpenFile(ctx context.Context, path string, flag vfs.OpenFlag, cred vfs.Credential) (vfs.FileHandle, error) {
	if isProtected(path) {
		return nil, vfs.Newf(vfs.EPERM, "open", path, "reserved path")
	}
	if exists, _ := f.w.Exists(ctx, path, cred); exists {
		return f.w.OpenFile(ctx, path, flag, cred)
	}
	if f.isDeleted(path) {
		if flag.Create {
			return f.CreateFile(ctx, path, flag, 0644, cred)
		}
		return nil, vfs.Newf(vfs.ENOENT, "open", path, "deleted")
	}
	rExists, _ := f.r.Exists(ctx, path, cred)
	if !rExists {
		if flag.Create {
			return f.CreateFile(ctx, path, flag, 0644, cred)
		}
		return nil, vfs.Newf(vfs.ENOENT, "open", path, "no such file or directory")
	}
	rHandle, err := f.r.OpenFile(ctx, path, vfs.OpenFlag{Read: true}, cred)
	if err != nil {
		return nil, err
	}
	stats, err := rHandle.Stat(ctx)
	if err != nil {
		_ = rHandle.Close(ctx)
		return nil, err
	}
	buf := make([]byte, stats.Size)
	if _, err := rHandle.Read(ctx, buf, 0); err != nil {
		_ = rHandle.Close(ctx)
		return nil, err
	}
	_ = rHandle.Close(ctx)
	if flag.Truncate {
		buf = buf[:0]
	}
	return &cowHandle{overlay: f, path: path, cred: cred, buf: buf, mode: stats.Mode, uid: stats.UID, gid: stats.GID}, nil
}

func (f *FS) CreateFile(ctx context.Context, path string, flag vfs.OpenFlag, mode vfs.FileMode, cred vfs.Credential) (vfs.FileHandle, error) {
	if isProtected(path) {
		return nil, vfs.Newf(vfs.EPERM, "create", path, "reserved path")
	}
	if exists, _ := f.Exists(ctx, path, cred); exists {
		if flag.Exclusive {
			return nil, vfs.Newf(vfs.EEXIST, "create", path, "already exists")
		}
	}
	if err := f.copyUpDirs(ctx, path, cred); err != nil {
		return nil, err
	}
	delete(f.deletedNames, vfspath.Clean(path))
	return f.w.CreateFile(ctx, path, flag, mode, cred)
}

func (f *FS) Mkdir(ctx context.Context, path string, mode vfs.FileMode, cred vfs.Credential) error {
	if isProtected(path) {
		return vfs.Newf(vfs.EPERM, "mkdir", path, "reserved path")
	}
	if exists, _ := f.Exists(ctx, path, cred); exists {
		return vfs.Newf(vfs.EEXIST, "mkdir", path, "already exists")
	}
	if err := f.copyUpDirs(ctx, path, cred); err != nil {
		return err
	}
	delete(f.deletedNames, vfspath.Clean(path))
	return f.w.Mkdir(ctx, path, mode, cred)
}

func (f *FS) Readdir(ctx context.Context, path string, cred vfs.Credential) ([]vfs.DirEntry, error) {
	if isProtected(path) {
		return nil, vfs.Newf(vfs.EPERM, "readdir", path, "reserved path")
	}
	seen := make(map[string]struct{})
	var out []vfs.DirEntry

	if wEntries, err := f.w.Readdir(ctx, path, cred); err == nil {
		for _, e := range wEntries {
			if e.Name == ".deleted" && path == "/" {
				continue
			}
			seen[e.Name] = struct{}{}
			out = append(out, e)
		}
	} else if !vfs.IsNotExist(err) {
		return nil, err
	}

	if rEntries, err := f.r.Readdir(ctx, path, cred); err == nil {
		for _, e := range rEntries {
			if _, dup := seen[e.Name]; dup {
				continue
			}
			if f.isDeleted(vfspath.Join(path, e.Name)) {
				continue
			}
			out = append(out, e)
		}
	} else if !vfs.IsNotExist(err) {
		return nil, err
	}

	return out, nil
}

func (f *FS) Unlink(ctx context.Context, path string, cred vfs.Credential) error {
	return f.removeEntry(ctx, path, cred, false)
}

func (f *FS) Rmdir(ctx context.Context, path string, cred vfs.Credential) error {
	return f.removeEntry(ctx, path, cred, true)
}

func (f *FS) removeEntry(ctx context.Context, path string, cred vfs.Credential, wantDir bool) error {
	if isProtected(path) {
		return vfs.Newf(vfs.EPERM, "unlink", path, "reserved path")
	}
	if wantDir {
		entries, err := f.Readdir(ctx, path, cred)
		if err == nil && len(entries) > 0 {
			return vfs.Newf(vfs.ENOTEMPTY, "rmdir", path, "directory not empty")
		}
	}

	wExists, _ := f.w.Exists(ctx, path, cred)
	if wExists {
		if wantDir {
			if err := f.w.Rmdir(ctx, path, cred); err != nil {
				return err
			}
		} else {
			if err := f.w.Unlink(ctx, path, cred); err != nil {
				return err
			}
		}
	}

	rExists, _ := f.r.Exists(ctx, path, cred)
	if rExists && !f.isDeleted(path) {
		clean := vfspath.Clean(path)
		f.deletedNames[clean] = struct{}{}
		f.scheduleFlush(clean)
	}

	if !wExists && !rExists {
		return vfs.Newf(vfs.ENOENT, "unlink", path, "no such file or directory")
	}
	return nil
}

// scheduleFlush appends the deletion to the log on W. At most one flush is
// in flight; concurrent deletions during a flush set dirty and trigger a
// re-flush on completion. This is fire-and-forget from the caller's
// perspective: the unlink/rmdir call returns before the flush completes,
// so a process exit before flush can lose the log entry (best-effort, as
// the spec documents).
func (f *FS) scheduleFlush(deletedPath string) {
	f.flushMu.Lock()
	if f.flushing {
		f.dirty = true
		f.flushMu.Unlock()
		return
	}
	f.flushing = true
	f.flushMu.Unlock()

	go f.runFlush()
}

func (f *FS) runFlush() {
	for {
		err := f.writeDeletionLog(context.Background())

		f.flushMu.Lock()
		if err != nil {
			f.flushErr = err
		}
		if f.dirty {
			f.dirty = false
			f.flushMu.Unlock()
			continue
		}
		f.flushing = false
		f.flushMu.Unlock()
		return
	}
}

func (f *FS) writeDeletionLog(ctx context.Context) error {
	var buf bytes.Buffer
	for name := range f.deletedNames {
		buf.WriteString("d")
		buf.WriteString(name)
		buf.WriteString("\n")
	}
	handle, err := f.w.CreateFile(ctx, deletionLogPath, vfs.OpenFlag{Write: true, Create: true, Truncate: true}, 0600, vfs.Root())
	if err != nil {
		return err
	}
	defer handle.Close(ctx)
	_, err = handle.Write(ctx, buf.Bytes(), 0)
	return err
}

// takeFlushError returns and clears the last deletion-log flush error, per
// "the next user-visible operation throws it once, then clears it".
func (f *FS) takeFlushError() error {
	f.flushMu.Lock()
	defer f.flushMu.Unlock()
	err := f.flushErr
	f.flushErr = nil
	return err
}

func (f *FS) Rename(ctx context.Context, oldPath, newPath string, cred vfs.Credential) error {
	if isProtected(oldPath) || isProtected(newPath) {
		return vfs.Newf(vfs.EPERM, "rename", oldPath, "reserved path")
	}
	if err := f.takeFlushError(); err != nil {
		return err
	}
	if wExists, _ := f.w.Exists(ctx, oldPath, cred); wExists {
		return f.w.Rename(ctx, oldPath, newPath, cred)
	}
	handle, err := f.OpenFile(ctx, oldPath, vfs.OpenFlag{Read: true}, cred)
	if err != nil {
		return err
	}
	stats, err := handle.Stat(ctx)
	if err != nil {
		_ = handle.Close(ctx)
		return err
	}
	buf := make([]byte, stats.Size)
	if _, err := handle.Read(ctx, buf, 0); err != nil {
		_ = handle.Close(ctx)
		return err
	}
	_ = handle.Close(ctx)
	dst, err := f.CreateFile(ctx, newPath, vfs.OpenFlag{Write: true, Create: true, Truncate: true}, stats.Mode.Perm(), cred)
	if err != nil {
		return err
	}
	if _, err := dst.Write(ctx, buf, 0); err != nil {
		_ = dst.Close(ctx)
		return err
	}
	if err := dst.Close(ctx); err != nil {
		return err
	}
	return f.Unlink(ctx, oldPath, cred)
}

func (f *FS) Link(ctx context.Context, src, dst string, cred vfs.Credential) error {
	if isProtected(src) || isProtected(dst) {
		return vfs.Newf(vfs.EPERM, "link", src, "reserved path")
	}
	if wExists, _ := f.w.Exists(ctx, src, cred); wExists {
		return f.w.Link(ctx, src, dst, cred)
	}
	return vfs.Newf(vfs.ENOTSUP, "link", src, "cannot hard-link a read-only layer entry")
}

func (f *FS) Sync(ctx context.Context, path string, data []byte, stats vfs.Stats) error {
	if isProtected(path) {
		return vfs.Newf(vfs.EPERM, "sync", path, "reserved path")
	}
	return f.w.Sync(ctx, path, data, stats)
}

// cowHandle is an in-memory handle over data read wholly from R; its Sync
// copies the buffer back to W on first mutation (copy-on-write).
type cowHandle struct {
	overlay *FS
	path    string
	cred    vfs.Credential
	mu      sync.Mutex
	buf     []byte
	mode    vfs.FileMode
	uid     uint32
	gid     uint32
	dirty   bool
}

func (h *cowHandle) Read(ctx context.Context, dst []byte, position int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if position < 0 || position > int64(len(h.buf)) {
		return 0, nil
	}
	return copy(dst, h.buf[position:]), nil
}

func (h *cowHandle) Write(ctx context.Context, src []byte, position int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	end := position + int64(len(src))
	if end > int64(len(h.buf)) {
		grown := make([]byte, end)
		copy(grown, h.buf)
		h.buf = grown
	}
	copy(h.buf[position:end], src)
	h.dirty = true
	return len(src), nil
}

func (h *cowHandle) Stat(ctx context.Context) (vfs.Stats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return vfs.Stats{Mode: h.mode, Size: uint64(len(h.buf)), UID: h.uid, GID: h.gid, Nlink: 1}, nil
}

func (h *cowHandle) Truncate(ctx context.Context, size uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if size < uint64(len(h.buf)) {
		h.buf = h.buf[:size]
	} else if size > uint64(len(h.buf)) {
		grown := make([]byte, size)
		copy(grown, h.buf)
		h.buf = grown
	}
	h.dirty = true
	return nil
}

func (h *cowHandle) Chmod(ctx context.Context, mode vfs.FileMode) error {
	h.mu.Lock()
	h.mode = (h.mode & vfs.S_IFMT) | mode.Perm()
	h.dirty = true
	h.mu.Unlock()
	return h.Sync(ctx)
}

func (h *cowHandle) Chown(ctx context.Context, uid, gid uint32) error {
	h.mu.Lock()
	h.uid, h.gid = uid, gid
	h.dirty = true
	h.mu.Unlock()
	return h.Sync(ctx)
}

func (h *cowHandle) Sync(ctx context.Context) error {
	h.mu.Lock()
	if !h.dirty {
		h.mu.Unlock()
		return nil
	}
	buf := append([]byte(nil), h.buf...)
	mode := h.mode
	h.mu.Unlock()

	if err := h.overlay.copyUpDirs(ctx, h.path, h.cred); err != nil {
		return err
	}
	wHandle, err := h.overlay.w.CreateFile(ctx, h.path, vfs.OpenFlag{Write: true, Create: true, Truncate: true}, mode.Perm(), h.cred)
	if err != nil {
		return err
	}
	if _, err := wHandle.Write(ctx, buf, 0); err != nil {
		_ = wHandle.Close(ctx)
		return err
	}
	if err := wHandle.Close(ctx); err != nil {
		return err
	}
	delete(h.overlay.deletedNames, vfspath.Clean(h.path))

	h.mu.Lock()
	h.dirty = false
	h.mu.Unlock()
	return nil
}

func (h *cowHandle) Close(ctx context.Context) error {
	return h.Sync(ctx)
}
