// Package mount implements the process-wide mount table and path router,
// grounded on the thread-safe named-resource map in dittofs's
// pkg/registry.Registry, generalized from named shares to longest-prefix
// path mounts.
package mount

import (
	"context"
	"sync"

	"github.com/marlowfs/vfscore/pkg/vfs"
	"github.com/marlowfs/vfscore/pkg/vfs/vfspath"
)

// Router is a mapping from absolute-path prefix to FileSystem, at most one
// entry per prefix.
type Router struct {
	mu     sync.RWMutex
	mounts map[string]vfs.FileSystem
}

// New returns an empty Router.
func New() *Router {
	return &Router{mounts: make(map[string]vfs.FileSystem)}
}

// Mount installs fs at prefix. EINVAL if prefix is not absolute, EEXIST if
// the prefix is already mounted.
func (r *Router) Mount(prefix string, fs vfs.FileSystem) error {
	if !vfspath.IsAbs(prefix) {
		return vfs.Newf(vfs.EINVAL, "mount", prefix, "prefix must be absolute")
	}
	prefix = vfspath.Clean(prefix)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mounts[prefix]; exists {
		return vfs.Newf(vfs.EEXIST, "mount", prefix, "already mounted")
	}
	r.mounts[prefix] = fs
	return nil
}

// Umount removes the mount at prefix. ENOENT if absent.
func (r *Router) Umount(prefix string) error {
	prefix = vfspath.Clean(prefix)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mounts[prefix]; !exists {
		return vfs.Newf(vfs.ENOENT, "umount", prefix, "not mounted")
	}
	delete(r.mounts, prefix)
	return nil
}

// Resolve returns the FileSystem mounted at the longest prefix of absPath,
// and the remainder path beginning with "/".
func (r *Router) Resolve(absPath string) (vfs.FileSystem, string, error) {
	absPath = vfspath.Clean(absPath)
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best string
	var bestFS vfs.FileSystem
	found := false
	for prefix, fs := range r.mounts {
		if !vfspath.HasPrefix(absPath, prefix) {
			continue
		}
		if !found || len(prefix) > len(best) {
			best = prefix
			bestFS = fs
			found = true
		}
	}
	if !found {
		return nil, "", vfs.Newf(vfs.ENOENT, "resolve", absPath, "no mount covers path")
	}
	return bestFS, vfspath.TrimPrefix(absPath, best), nil
}

// MountedPrefixes returns the current mount prefixes, useful for tests that
// need to reset the table between cases.
func (r *Router) MountedPrefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.mounts))
	for p := range r.mounts {
		out = append(out, p)
	}
	return out
}

// Reset clears every mount, matching the spec's note that the global mount
// table is process-wide state tests must reset between cases.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mounts = make(map[string]vfs.FileSystem)
}

// Rename implements the cross-mount rename policy: if old and new resolve
// to different FileSystems, copy then unlink the source, recursing into
// directories; a mid-way failure leaves the partial destination in place
// and surfaces the original error (best-effort, not atomic across mounts).
func (r *Router) Rename(ctx context.Context, oldPath, newPath string, cred vfs.Credential) error {
	oldFS, oldRel, err := r.Resolve(oldPath)
	if err != nil {
		return err
	}
	newFS, newRel, err := r.Resolve(newPath)
	if err != nil {
		return err
	}
	if oldFS == newFS {
		return oldFS.Rename(ctx, oldRel, newRel, cred)
	}
	return crossMountMove(ctx, oldFS, oldRel, newFS, newRel, cred)
}

func crossMountMove(ctx context.Context, srcFS vfs.FileSystem, srcPath string, dstFS vfs.FileSystem, dstPath string, cred vfs.Credential) error {
	stats, err := srcFS.Stat(ctx, srcPath, cred)
	if err != nil {
		return err
	}
	if stats.Mode.IsDir() {
		if err := dstFS.Mkdir(ctx, dstPath, stats.Mode.Perm(), cred); err != nil && !vfs.IsExist(err) {
			return err
		}
		entries, err := srcFS.Readdir(ctx, srcPath, cred)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := crossMountMove(ctx, srcFS, vfspath.Join(srcPath, entry.Name), dstFS, vfspath.Join(dstPath, entry.Name), cred); err != nil {
				return err
			}
		}
		return srcFS.Rmdir(ctx, srcPath, cred)
	}

	src, err := srcFS.OpenFile(ctx, srcPath, vfs.OpenFlag{Read: true}, cred)
	if err != nil {
		return err
	}
	defer src.Close(ctx)
	buf := make([]byte, stats.Size)
	if _, err := src.Read(ctx, buf, 0); err != nil {
		return err
	}
	dst, err := dstFS.CreateFile(ctx, dstPath, vfs.OpenFlag{Write: true, Create: true, Truncate: true}, stats.Mode.Perm(), cred)
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
	return srcFS.Unlink(ctx, srcPath, cred)
}
