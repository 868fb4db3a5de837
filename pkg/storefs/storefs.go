// Package storefs materializes a POSIX-like FileSystem on top of a
// store.Store, grounded on the traversal and mutation methods of dittofs's
// pkg/store/metadata.MetadataStore interface (Lookup, Create, Move,
// ReadDirectory, RemoveFile, RemoveDirectory, SetFileAttributes), adapted
// from an NFS-handle model to the spec's path/ino model.
package storefs

import (
	"context"
	"sync"

	"github.com/marlowfs/vfscore/pkg/inode"
	"github.com/marlowfs/vfscore/pkg/store"
	"github.com/marlowfs/vfscore/pkg/vfs"
	"github.com/marlowfs/vfscore/pkg/vfs/vfspath"
)

// FS is a vfs.FileSystem backed by a store.Store.
type FS struct {
	name  string
	store store.Store

	mu       sync.Mutex // guards root creation, not required operation-by-operation
	rootOnce bool
}

// New wraps s as a FileSystem, using name for Metadata().Name.
func New(name string, s store.Store) *FS {
	return &FS{name: name, store: s}
}

// Ready ensures the root directory (Ino 0) exists, creating it with
// 0755 permissions if this is a fresh store.
func (fs *FS) Ready(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.rootOnce {
		return nil
	}
	_, exists, err := fs.store.Get(ctx, store.Key{Ino: vfs.RootIno, Kind: store.KindInode})
	if err != nil {
		return vfs.Wrap(err, "ready", "/")
	}
	if !exists {
		stats := vfs.NewStats(vfs.RootIno, vfs.S_IFDIR|0755, 0, 0)
		txn, err := fs.store.BeginTransaction(ctx)
		if err != nil {
			return vfs.Wrap(err, "ready", "/")
		}
		if _, err := txn.Put(ctx, store.Key{Ino: vfs.RootIno, Kind: store.KindInode}, inode.Record{Ino: vfs.RootIno, Stats: stats}.Encode(), true); err != nil {
			_ = txn.Abort(ctx)
			return vfs.Wrap(err, "ready", "/")
		}
		if _, err := txn.Put(ctx, store.Key{Ino: vfs.RootIno, Kind: store.KindData}, inode.EncodeDirectory(inode.Directory{}), true); err != nil {
			_ = txn.Abort(ctx)
			return vfs.Wrap(err, "ready", "/")
		}
		if err := txn.Commit(ctx); err != nil {
			return vfs.Wrap(err, "ready", "/")
		}
	}
	fs.rootOnce = true
	return nil
}

// Metadata reports static filesystem properties; space/node accounting is
// not tracked precisely by a generic Store, so totals mirror what the
// backend can cheaply answer.
func (fs *FS) Metadata(ctx context.Context) (vfs.Metadata, error) {
	keys, err := fs.store.Keys(ctx)
	if err != nil {
		return vfs.Metadata{}, vfs.Wrap(err, "statfs", "/")
	}
	nodes := uint64(0)
	seen := make(map[vfs.Ino]struct{})
	for _, k := range keys {
		if k.Kind == store.KindInode {
			seen[k.Ino] = struct{}{}
		}
	}
	nodes = uint64(len(seen))
	return vfs.Metadata{
		Name:      fs.name,
		BlockSize: vfs.Blksize,
		Type:      vfs.FilesystemType,
		TotalNodes: nodes,
	}, nil
}

func (fs *FS) readRecord(ctx context.Context, r store.Reader, ino vfs.Ino) (inode.Record, error) {
	data, ok, err := r.Get(ctx, store.Key{Ino: ino, Kind: store.KindInode})
	if err != nil {
		return inode.Record{}, vfs.Wrap(err, "", "")
	}
	if !ok {
		return inode.Record{}, vfs.New(vfs.ENOENT, "no such inode")
	}
	return inode.Decode(data)
}

func (fs *FS) readDir(ctx context.Context, r store.Reader, ino vfs.Ino) (inode.Directory, error) {
	data, ok, err := r.Get(ctx, store.Key{Ino: ino, Kind: store.KindData})
	if err != nil {
		return nil, vfs.Wrap(err, "", "")
	}
	if !ok {
		return inode.Directory{}, nil
	}
	return inode.DecodeDirectory(data)
}

// resolve walks path from the root, returning the ino of the final
// component. Symlink traversal is not
// performed: symlinks resolve as themselves, matching the "stat returns
// symlinks as-is" contract.
func (fs *FS) resolve(ctx context.Context, r store.Reader, path string) (vfs.Ino, error) {
	comps := vfspath.Components(path)
	cur := vfs.RootIno
	for i, name := range comps {
		rec, err := fs.readRecord(ctx, r, cur)
		if err != nil {
			return 0, err
		}
		if !rec.Stats.Mode.IsDir() {
			return 0, vfs.New(vfs.ENOTDIR, "not a directory")
		}
		dir, err := fs.readDir(ctx, r, cur)
		if err != nil {
			return 0, err
		}
		child, ok := dir[name]
		if !ok {
			return 0, vfs.New(vfs.ENOENT, "no such file or directory")
		}
		cur = child
		_ = i
	}
	return cur, nil
}

func (fs *FS) resolveParent(ctx context.Context, r store.Reader, path string, cred vfs.Credential, want vfs.FileMode) (parentIno vfs.Ino, name string, err error) {
	dir, name := vfspath.Split(path)
	if name == "" {
		return 0, "", vfs.New(vfs.EINVAL, "path has no final component")
	}
	parentIno, err = fs.resolve(ctx, r, dir)
	if err != nil {
		return 0, "", err
	}
	rec, err := fs.readRecord(ctx, r, parentIno)
	if err != nil {
		return 0, "", err
	}
	if !rec.Stats.Mode.IsDir() {
		return 0, "", vfs.New(vfs.ENOTDIR, "not a directory")
	}
	if want != 0 && !rec.Stats.HasAccess(want, cred) {
		return 0, "", vfs.New(vfs.EACCES, "permission denied")
	}
	return parentIno, name, nil
}

func (fs *FS) Stat(ctx context.Context, path string, cred vfs.Credential) (vfs.Stats, error) {
	ino, err := fs.resolve(ctx, fs.store, path)
	if err != nil {
		return vfs.Stats{}, vfs.Wrap(err, "stat", path)
	}
	rec, err := fs.readRecord(ctx, fs.store, ino)
	if err != nil {
		return vfs.Stats{}, vfs.Wrap(err, "stat", path)
	}
	return rec.Stats, nil
}

func (fs *FS) Exists(ctx context.Context, path string, cred vfs.Credential) (bool, error) {
	_, err := fs.resolve(ctx, fs.store, path)
	if err != nil {
		if vfs.IsNotExist(err) || vfs.IsNotDir(err) {
			return false, nil
		}
		return false, vfs.Wrap(err, "exists", path)
	}
	return true, nil
}

func (fs *FS) Readdir(ctx context.Context, path string, cred vfs.Credential) ([]vfs.DirEntry, error) {
	ino, err := fs.resolve(ctx, fs.store, path)
	if err != nil {
		return nil, vfs.Wrap(err, "readdir", path)
	}
	rec, err := fs.readRecord(ctx, fs.store, ino)
	if err != nil {
		return nil, vfs.Wrap(err, "readdir", path)
	}
	if !rec.Stats.Mode.IsDir() {
		return nil, vfs.Newf(vfs.ENOTDIR, "readdir", path, "not a directory")
	}
	if !rec.Stats.HasAccess(vfs.S_IROTH|vfs.S_IXOTH, cred) {
		return nil, vfs.Newf(vfs.EACCES, "readdir", path, "permission denied")
	}
	dir, err := fs.readDir(ctx, fs.store, ino)
	if err != nil {
		return nil, vfs.Wrap(err, "readdir", path)
	}
	entries := make([]vfs.DirEntry, 0, len(dir))
	for name, childIno := range dir {
		childRec, err := fs.readRecord(ctx, fs.store, childIno)
		if err != nil {
			continue
		}
		entries = append(entries, vfs.DirEntry{Name: name, Ino: childIno, Mode: childRec.Stats.Mode})
	}
	return entries, nil
}

// Mkdir implements the spec's mkdir(p, mode, cred) sequence: traverse the
// parent, allocate an ino, write the new inode and empty directory, rewrite
// the parent listing, update the parent's mtime/ctime, commit as one
// transaction.
func (fs *FS) Mkdir(ctx context.Context, path string, mode vfs.FileMode, cred vfs.Credential) error {
	txn, err := fs.store.BeginTransaction(ctx)
	if err != nil {
		return vfs.Wrap(err, "mkdir", path)
	}
	commitErr := func() error {
		parentIno, name, err := fs.resolveParent(ctx, txn, path, cred, vfs.S_IWOTH|vfs.S_IXOTH)
		if err != nil {
			return err
		}
		parentDir, err := fs.readDir(ctx, txn, parentIno)
		if err != nil {
			return err
		}
		if _, exists := parentDir[name]; exists {
			return vfs.Newf(vfs.EEXIST, "mkdir", path, "already exists")
		}
		newIno, err := store.AllocateIno(ctx, txn)
		if err != nil {
			return err
		}
		newStats := vfs.NewStats(newIno, mode|vfs.S_IFDIR, cred.EUID, cred.EGID)
		if _, err := txn.Put(ctx, store.Key{Ino: newIno, Kind: store.KindInode}, inode.Record{Ino: newIno, Stats: newStats}.Encode(), true); err != nil {
			return err
		}
		if _, err := txn.Put(ctx, store.Key{Ino: newIno, Kind: store.KindData}, inode.EncodeDirectory(inode.Directory{}), true); err != nil {
			return err
		}
		parentDir[name] = newIno
		if _, err := txn.Put(ctx, store.Key{Ino: parentIno, Kind: store.KindData}, inode.EncodeDirectory(parentDir), true); err != nil {
			return err
		}
		return fs.touchParent(ctx, txn, parentIno)
	}()
	if commitErr != nil {
		_ = txn.Abort(ctx)
		return vfs.Wrap(commitErr, "mkdir", path)
	}
	if err := txn.Commit(ctx); err != nil {
		return vfs.Wrap(err, "mkdir", path)
	}
	return nil
}

func (fs *FS) touchParent(ctx context.Context, txn store.Transaction, parentIno vfs.Ino) error {
	rec, err := fs.readRecord(ctx, txn, parentIno)
	if err != nil {
		return err
	}
	rec.Stats.Mtime = timeNow()
	rec.Stats.Ctime = timeNow()
	_, err = txn.Put(ctx, store.Key{Ino: parentIno, Kind: store.KindInode}, inode.Record{Ino: parentIno, Stats: rec.Stats}.Encode(), true)
	return err
}

func (fs *FS) CreateFile(ctx context.Context, path string, flag vfs.OpenFlag, mode vfs.FileMode, cred vfs.Credential) (vfs.FileHandle, error) {
	txn, err := fs.store.BeginTransaction(ctx)
	if err != nil {
		return nil, vfs.Wrap(err, "create", path)
	}
	var newIno vfs.Ino
	commitErr := func() error {
		parentIno, name, err := fs.resolveParent(ctx, txn, path, cred, vfs.S_IWOTH|vfs.S_IXOTH)
		if err != nil {
			return err
		}
		parentDir, err := fs.readDir(ctx, txn, parentIno)
		if err != nil {
			return err
		}
		if existing, exists := parentDir[name]; exists {
			if flag.Exclusive {
				return vfs.Newf(vfs.EEXIST, "create", path, "already exists")
			}
			newIno = existing
			return nil
		}
		newIno, err = store.AllocateIno(ctx, txn)
		if err != nil {
			return err
		}
		newStats := vfs.NewStats(newIno, mode|vfs.S_IFREG, cred.EUID, cred.EGID)
		if _, err := txn.Put(ctx, store.Key{Ino: newIno, Kind: store.KindInode}, inode.Record{Ino: newIno, Stats: newStats}.Encode(), true); err != nil {
			return err
		}
		if _, err := txn.Put(ctx, store.Key{Ino: newIno, Kind: store.KindData}, nil, true); err != nil {
			return err
		}
		parentDir[name] = newIno
		if _, err := txn.Put(ctx, store.Key{Ino: parentIno, Kind: store.KindData}, inode.EncodeDirectory(parentDir), true); err != nil {
			return err
		}
		return fs.touchParent(ctx, txn, parentIno)
	}()
	if commitErr != nil {
		_ = txn.Abort(ctx)
		return nil, vfs.Wrap(commitErr, "create", path)
	}
	if err := txn.Commit(ctx); err != nil {
		return nil, vfs.Wrap(err, "create", path)
	}
	return fs.openHandle(ctx, newIno, flag)
}

func (fs *FS) OpenFile(ctx context.Context, path string, flag vfs.OpenFlag, cred vfs.Credential) (vfs.FileHandle, error) {
	ino, err := fs.resolve(ctx, fs.store, path)
	if err != nil {
		if vfs.IsNotExist(err) && flag.Create {
			return fs.CreateFile(ctx, path, flag, 0644, cred)
		}
		return nil, vfs.Wrap(err, "open", path)
	}
	rec, err := fs.readRecord(ctx, fs.store, ino)
	if err != nil {
		return nil, vfs.Wrap(err, "open", path)
	}
	if rec.Stats.Mode.IsDir() {
		return nil, vfs.Newf(vfs.EISDIR, "open", path, "is a directory")
	}
	want := vfs.FileMode(0)
	if flag.Read {
		want |= vfs.S_IROTH
	}
	if flag.Write {
		want |= vfs.S_IWOTH
	}
	if !rec.Stats.HasAccess(want, cred) {
		return nil, vfs.Newf(vfs.EACCES, "open", path, "permission denied")
	}
	return fs.openHandle(ctx, ino, flag)
}

func (fs *FS) openHandle(ctx context.Context, ino vfs.Ino, flag vfs.OpenFlag) (vfs.FileHandle, error) {
	data, _, err := fs.store.Get(ctx, store.Key{Ino: ino, Kind: store.KindData})
	if err != nil {
		return nil, vfs.Wrap(err, "open", "")
	}
	buf := append([]byte(nil), data...)
	if flag.Truncate {
		buf = buf[:0]
	}
	return &handle{fs: fs, ino: ino, buf: buf, appendMode: flag.Append}, nil
}

func (fs *FS) Unlink(ctx context.Context, path string, cred vfs.Credential) error {
	return fs.removeEntry(ctx, path, cred, false)
}

func (fs *FS) Rmdir(ctx context.Context, path string, cred vfs.Credential) error {
	return fs.removeEntry(ctx, path, cred, true)
}

func (fs *FS) removeEntry(ctx context.Context, path string, cred vfs.Credential, wantDir bool) error {
	syscall := "unlink"
	if wantDir {
		syscall = "rmdir"
	}
	txn, err := fs.store.BeginTransaction(ctx)
	if err != nil {
		return vfs.Wrap(err, syscall, path)
	}
	commitErr := func() error {
		parentIno, name, err := fs.resolveParent(ctx, txn, path, cred, vfs.S_IWOTH|vfs.S_IXOTH)
		if err != nil {
			return err
		}
		parentDir, err := fs.readDir(ctx, txn, parentIno)
		if err != nil {
			return err
		}
		targetIno, ok := parentDir[name]
		if !ok {
			return vfs.New(vfs.ENOENT, "no such file or directory")
		}
		rec, err := fs.readRecord(ctx, txn, targetIno)
		if err != nil {
			return err
		}
		if wantDir && !rec.Stats.Mode.IsDir() {
			return vfs.New(vfs.ENOTDIR, "not a directory")
		}
		if !wantDir && rec.Stats.Mode.IsDir() {
			return vfs.New(vfs.EISDIR, "is a directory")
		}
		if wantDir {
			childDir, err := fs.readDir(ctx, txn, targetIno)
			if err != nil {
				return err
			}
			if len(childDir) > 0 {
				return vfs.New(vfs.ENOTEMPTY, "directory not empty")
			}
		}
		delete(parentDir, name)
		if _, err := txn.Put(ctx, store.Key{Ino: parentIno, Kind: store.KindData}, inode.EncodeDirectory(parentDir), true); err != nil {
			return err
		}
		if err := txn.Delete(ctx, store.Key{Ino: targetIno, Kind: store.KindInode}); err != nil {
			return err
		}
		if err := txn.Delete(ctx, store.Key{Ino: targetIno, Kind: store.KindData}); err != nil {
			return err
		}
		return fs.touchParent(ctx, txn, parentIno)
	}()
	if commitErr != nil {
		_ = txn.Abort(ctx)
		return vfs.Wrap(commitErr, syscall, path)
	}
	if err := txn.Commit(ctx); err != nil {
		return vfs.Wrap(err, syscall, path)
	}
	return nil
}

// Rename implements the single-Store atomic parent-mutation described in
// the spec: same-parent renames write one directory, cross-parent renames
// write two, both inside one transaction. Overwriting a destination of the
// same type is permitted; overwriting a non-empty directory is ENOTEMPTY;
// cross-type overwrite is EISDIR/ENOTDIR.
func (fs *FS) Rename(ctx context.Context, oldPath, newPath string, cred vfs.Credential) error {
	txn, err := fs.store.BeginTransaction(ctx)
	if err != nil {
		return vfs.Wrap(err, "rename", oldPath)
	}
	commitErr := func() error {
		oldParentIno, oldName, err := fs.resolveParent(ctx, txn, oldPath, cred, vfs.S_IWOTH|vfs.S_IXOTH)
		if err != nil {
			return err
		}
		newParentIno, newName, err := fs.resolveParent(ctx, txn, newPath, cred, vfs.S_IWOTH|vfs.S_IXOTH)
		if err != nil {
			return err
		}
		oldParentDir, err := fs.readDir(ctx, txn, oldParentIno)
		if err != nil {
			return err
		}
		srcIno, ok := oldParentDir[oldName]
		if !ok {
			return vfs.New(vfs.ENOENT, "no such file or directory")
		}
		srcRec, err := fs.readRecord(ctx, txn, srcIno)
		if err != nil {
			return err
		}

		var newParentDir inode.Directory
		if oldParentIno == newParentIno {
			newParentDir = oldParentDir
		} else {
			newParentDir, err = fs.readDir(ctx, txn, newParentIno)
			if err != nil {
				return err
			}
		}

		if dstIno, exists := newParentDir[newName]; exists {
			dstRec, err := fs.readRecord(ctx, txn, dstIno)
			if err != nil {
				return err
			}
			switch {
			case dstRec.Stats.Mode.IsDir() && !srcRec.Stats.Mode.IsDir():
				return vfs.New(vfs.EISDIR, "destination is a directory")
			case !dstRec.Stats.Mode.IsDir() && srcRec.Stats.Mode.IsDir():
				return vfs.New(vfs.ENOTDIR, "destination is not a directory")
			case dstRec.Stats.Mode.IsDir():
				dstDir, err := fs.readDir(ctx, txn, dstIno)
				if err != nil {
					return err
				}
				if len(dstDir) > 0 {
					return vfs.New(vfs.ENOTEMPTY, "destination directory not empty")
				}
				if err := txn.Delete(ctx, store.Key{Ino: dstIno, Kind: store.KindInode}); err != nil {
					return err
				}
				if err := txn.Delete(ctx, store.Key{Ino: dstIno, Kind: store.KindData}); err != nil {
					return err
				}
			default:
				if err := txn.Delete(ctx, store.Key{Ino: dstIno, Kind: store.KindInode}); err != nil {
					return err
				}
				if err := txn.Delete(ctx, store.Key{Ino: dstIno, Kind: store.KindData}); err != nil {
					return err
				}
			}
		}

		delete(oldParentDir, oldName)
		newParentDir[newName] = srcIno

		if _, err := txn.Put(ctx, store.Key{Ino: newParentIno, Kind: store.KindData}, inode.EncodeDirectory(newParentDir), true); err != nil {
			return err
		}
		if oldParentIno != newParentIno {
			if _, err := txn.Put(ctx, store.Key{Ino: oldParentIno, Kind: store.KindData}, inode.EncodeDirectory(oldParentDir), true); err != nil {
				return err
			}
			if err := fs.touchParent(ctx, txn, oldParentIno); err != nil {
				return err
			}
		}
		return fs.touchParent(ctx, txn, newParentIno)
	}()
	if commitErr != nil {
		_ = txn.Abort(ctx)
		return vfs.Wrap(commitErr, "rename", oldPath)
	}
	if err := txn.Commit(ctx); err != nil {
		return vfs.Wrap(err, "rename", oldPath)
	}
	return nil
}

// Link writes a new directory entry pointing at src's ino. The core does
// not maintain nlink refcounts (Nlink stays fixed at 1, per spec.md's open
// question on link accounting).
func (fs *FS) Link(ctx context.Context, src, dst string, cred vfs.Credential) error {
	txn, err := fs.store.BeginTransaction(ctx)
	if err != nil {
		return vfs.Wrap(err, "link", src)
	}
	commitErr := func() error {
		srcIno, err := fs.resolve(ctx, txn, src)
		if err != nil {
			return err
		}
		srcRec, err := fs.readRecord(ctx, txn, srcIno)
		if err != nil {
			return err
		}
		if srcRec.Stats.Mode.IsDir() {
			return vfs.New(vfs.EPERM, "cannot hard-link a directory")
		}
		parentIno, name, err := fs.resolveParent(ctx, txn, dst, cred, vfs.S_IWOTH|vfs.S_IXOTH)
		if err != nil {
			return err
		}
		parentDir, err := fs.readDir(ctx, txn, parentIno)
		if err != nil {
			return err
		}
		if _, exists := parentDir[name]; exists {
			return vfs.New(vfs.EEXIST, "already exists")
		}
		parentDir[name] = srcIno
		if _, err := txn.Put(ctx, store.Key{Ino: parentIno, Kind: store.KindData}, inode.EncodeDirectory(parentDir), true); err != nil {
			return err
		}
		return fs.touchParent(ctx, txn, parentIno)
	}()
	if commitErr != nil {
		_ = txn.Abort(ctx)
		return vfs.Wrap(commitErr, "link", src)
	}
	if err := txn.Commit(ctx); err != nil {
		return vfs.Wrap(err, "link", src)
	}
	return nil
}

// Sync flushes an already-open handle's buffered data and stats to the
// backing store outside of a handle's own Sync call, matching the
// FileSystem contract's standalone sync(p, data, stats) entry point.
func (fs *FS) Sync(ctx context.Context, path string, data []byte, stats vfs.Stats) error {
	ino, err := fs.resolve(ctx, fs.store, path)
	if err != nil {
		return vfs.Wrap(err, "sync", path)
	}
	txn, err := fs.store.BeginTransaction(ctx)
	if err != nil {
		return vfs.Wrap(err, "sync", path)
	}
	if data != nil {
		if _, err := txn.Put(ctx, store.Key{Ino: ino, Kind: store.KindData}, data, true); err != nil {
			_ = txn.Abort(ctx)
			return vfs.Wrap(err, "sync", path)
		}
	}
	stats.Ino = ino
	if _, err := txn.Put(ctx, store.Key{Ino: ino, Kind: store.KindInode}, inode.Record{Ino: ino, Stats: stats}.Encode(), true); err != nil {
		_ = txn.Abort(ctx)
		return vfs.Wrap(err, "sync", path)
	}
	if err := txn.Commit(ctx); err != nil {
		return vfs.Wrap(err, "sync", path)
	}
	return nil
}
