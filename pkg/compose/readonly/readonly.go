// Package readonly wraps a vfs.FileSystem to reject every mutator with
// EROFS, grounded on the ShareOptions.ReadOnly enforcement referenced in
// dittofs's pkg/registry/access.go.
package readonly

import (
	"context"

	"github.com/marlowfs/vfscore/pkg/vfs"
)

// FS overrides every mutating operation of an inner FileSystem to fail with
// EROFS, and reports Metadata().Readonly = true.
type FS struct {
	inner vfs.FileSystem
}

// New wraps inner as a read-only projection.
func New(inner vfs.FileSystem) *FS {
	return &FS{inner: inner}
}

func (f *FS) Ready(ctx context.Context) error { return f.inner.Ready(ctx) }

func (f *FS) Metadata(ctx context.Context) (vfs.Metadata, error) {
	md, err := f.inner.Metadata(ctx)
	md.Readonly = true
	return md, err
}

func (f *FS) Stat(ctx context.Context, path string, cred vfs.Credential) (vfs.Stats, error) {
	return f.inner.Stat(ctx, path, cred)
}

func (f *FS) Exists(ctx context.Context, path string, cred vfs.Credential) (bool, error) {
	return f.inner.Exists(ctx, path, cred)
}

func (f *FS) OpenFile(ctx context.Context, path string, flag vfs.OpenFlag, cred vfs.Credential) (vfs.FileHandle, error) {
	if flag.Write {
		return nil, vfs.Newf(vfs.EROFS, "open", path, "read-only filesystem")
	}
	inner, err := f.inner.OpenFile(ctx, path, flag, cred)
	if err != nil {
		return nil, err
	}
	return &readonlyHandle{inner: inner}, nil
}

func (f *FS) CreateFile(ctx context.Context, path string, flag vfs.OpenFlag, mode vfs.FileMode, cred vfs.Credential) (vfs.FileHandle, error) {
	return nil, vfs.Newf(vfs.EROFS, "create", path, "read-only filesystem")
}

func (f *FS) Readdir(ctx context.Context, path string, cred vfs.Credential) ([]vfs.DirEntry, error) {
	return f.inner.Readdir(ctx, path, cred)
}

func (f *FS) Mkdir(ctx context.Context, path string, mode vfs.FileMode, cred vfs.Credential) error {
	return vfs.Newf(vfs.EROFS, "mkdir", path, "read-only filesystem")
}

func (f *FS) Unlink(ctx context.Context, path string, cred vfs.Credential) error {
	return vfs.Newf(vfs.EROFS, "unlink", path, "read-only filesystem")
}

func (f *FS) Rmdir(ctx context.Context, path string, cred vfs.Credential) error {
	return vfs.Newf(vfs.EROFS, "rmdir", path, "read-only filesystem")
}

func (f *FS) Rename(ctx context.Context, oldPath, newPath string, cred vfs.Credential) error {
	return vfs.Newf(vfs.EROFS, "rename", oldPath, "read-only filesystem")
}

func (f *FS) Link(ctx context.Context, src, dst string, cred vfs.Credential) error {
	return vfs.Newf(vfs.EROFS, "link", src, "read-only filesystem")
}

func (f *FS) Sync(ctx context.Context, path string, data []byte, stats vfs.Stats) error {
	return vfs.Newf(vfs.EROFS, "sync", path, "read-only filesystem")
}

// readonlyHandle rejects writes on a handle opened through a read-only
// filesystem, so an already-open handle cannot be used to bypass the
// filesystem-level EROFS check.
type readonlyHandle struct {
	inner vfs.FileHandle
}

func (h *readonlyHandle) Read(ctx context.Context, buf []byte, position int64) (int, error) {
	return h.inner.Read(ctx, buf, position)
}

func (h *readonlyHandle) Write(ctx context.Context, buf []byte, position int64) (int, error) {
	return 0, vfs.New(vfs.EROFS, "read-only filesystem")
}

func (h *readonlyHandle) Stat(ctx context.Context) (vfs.Stats, error) {
	return h.inner.Stat(ctx)
}

func (h *readonlyHandle) Truncate(ctx context.Context, size uint64) error {
	return vfs.New(vfs.EROFS, "read-only filesystem")
}

func (h *readonlyHandle) Chmod(ctx context.Context, mode vfs.FileMode) error {
	return vfs.New(vfs.EROFS, "read-only filesystem")
}

func (h *readonlyHandle) Chown(ctx context.Context, uid, gid uint32) error {
	return vfs.New(vfs.EROFS, "read-only filesystem")
}

func (h *readonlyHandle) Sync(ctx context.Context) error {
	return nil
}

func (h *readonlyHandle) Close(ctx context.Context) error {
	return h.inner.Close(ctx)
}
