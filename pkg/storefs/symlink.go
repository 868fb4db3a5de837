package storefs

import (
	"context"

	"github.com/marlowfs/vfscore/pkg/inode"
	"github.com/marlowfs/vfscore/pkg/store"
	"github.com/marlowfs/vfscore/pkg/vfs"
)

// CreateSymlink creates a symlink at path whose data blob holds target as
// raw bytes. The core never resolves symlinks during traversal; stat
// returns them as-is, matching dittofs's CreateSymlink/ReadSymlink split.
func (fs *FS) CreateSymlink(ctx context.Context, path, target string, cred vfs.Credential) error {
	txn, err := fs.store.BeginTransaction(ctx)
	if err != nil {
		return vfs.Wrap(err, "symlink", path)
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
			return vfs.New(vfs.EEXIST, "already exists")
		}
		newIno, err := store.AllocateIno(ctx, txn)
		if err != nil {
			return err
		}
		stats := vfs.NewStats(newIno, vfs.S_IFLNK|0777, cred.EUID, cred.EGID)
		stats.Size = uint64(len(target))
		if _, err := txn.Put(ctx, store.Key{Ino: newIno, Kind: store.KindInode}, inode.Record{Ino: newIno, Stats: stats}.Encode(), true); err != nil {
			return err
		}
		if _, err := txn.Put(ctx, store.Key{Ino: newIno, Kind: store.KindData}, []byte(target), true); err != nil {
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
		return vfs.Wrap(commitErr, "symlink", path)
	}
	return vfs.Wrap(txn.Commit(ctx), "symlink", path)
}

// ReadSymlink returns the raw target bytes stored at path's data blob.
func (fs *FS) ReadSymlink(ctx context.Context, path string, cred vfs.Credential) (string, error) {
	ino, err := fs.resolve(ctx, fs.store, path)
	if err != nil {
		return "", vfs.Wrap(err, "readlink", path)
	}
	rec, err := fs.readRecord(ctx, fs.store, ino)
	if err != nil {
		return "", vfs.Wrap(err, "readlink", path)
	}
	if !rec.Stats.Mode.IsSymlink() {
		return "", vfs.Newf(vfs.EINVAL, "readlink", path, "not a symlink")
	}
	data, _, err := fs.store.Get(ctx, store.Key{Ino: ino, Kind: store.KindData})
	if err != nil {
		return "", vfs.Wrap(err, "readlink", path)
	}
	return string(data), nil
}
