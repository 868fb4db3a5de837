// Package locked wraps any vfs.FileSystem with a single sync.Mutex around
// every operation. Go's mutex does not hand the lock to waiting callers
// strictly in arrival order. Grounded on the coarse single-mutex locking dittofs's
// BadgerMetadataStore documents ("All operations are protected by a single
// read-write mutex").
package locked

import (
	"context"
	"sync"

	"github.com/marlowfs/vfscore/pkg/vfs"
)

// FS serializes every call to an inner FileSystem behind one mutex.
// Reentrancy is forbidden: a caller must never invoke FS from inside a
// call it is already making to the same FS.
type FS struct {
	mu    sync.Mutex
	inner vfs.FileSystem
}

// New wraps inner with global mutual exclusion.
func New(inner vfs.FileSystem) *FS {
	return &FS{inner: inner}
}

func (f *FS) Ready(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Ready(ctx)
}

func (f *FS) Metadata(ctx context.Context) (vfs.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Metadata(ctx)
}

func (f *FS) Stat(ctx context.Context, path string, cred vfs.Credential) (vfs.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Stat(ctx, path, cred)
}

func (f *FS) Exists(ctx context.Context, path string, cred vfs.Credential) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Exists(ctx, path, cred)
}

func (f *FS) OpenFile(ctx context.Context, path string, flag vfs.OpenFlag, cred vfs.Credential) (vfs.FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.OpenFile(ctx, path, flag, cred)
}

func (f *FS) CreateFile(ctx context.Context, path string, flag vfs.OpenFlag, mode vfs.FileMode, cred vfs.Credential) (vfs.FileHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.CreateFile(ctx, path, flag, mode, cred)
}

func (f *FS) Readdir(ctx context.Context, path string, cred vfs.Credential) ([]vfs.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Readdir(ctx, path, cred)
}

func (f *FS) Mkdir(ctx context.Context, path string, mode vfs.FileMode, cred vfs.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Mkdir(ctx, path, mode, cred)
}

func (f *FS) Unlink(ctx context.Context, path string, cred vfs.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Unlink(ctx, path, cred)
}

func (f *FS) Rmdir(ctx context.Context, path string, cred vfs.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Rmdir(ctx, path, cred)
}

func (f *FS) Rename(ctx context.Context, oldPath, newPath string, cred vfs.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Rename(ctx, oldPath, newPath, cred)
}

func (f *FS) Link(ctx context.Context, src, dst string, cred vfs.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Link(ctx, src, dst, cred)
}

func (f *FS) Sync(ctx context.Context, path string, data []byte, stats vfs.Stats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner.Sync(ctx, path, data, stats)
}
