// Package store defines the minimal byte key/value contract StoreFS builds
// a filesystem on top of, grounded on the two-repository (metadata/content)
// split in dittofs's pkg/store, fused here per the "two logical keys per
// inode, implementations may fuse them" data model.
package store

import (
	"context"

	"github.com/marlowfs/vfscore/pkg/vfs"
)

// KeyKind distinguishes the two logical keys an inode occupies.
type KeyKind uint8

const (
	// KindInode addresses the fixed-width inode record.
	KindInode KeyKind = iota
	// KindData addresses the inode's data blob (directory encoding or
	// file content).
	KindData
)

// Key names one of the two logical values stored per inode.
type Key struct {
	Ino  vfs.Ino
	Kind KeyKind
}

// Reader is the read-only subset of Store, also satisfied by Transaction.
type Reader interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Keys(ctx context.Context) ([]Key, error)
}

// Writer is the mutating subset of Store, also satisfied by Transaction.
type Writer interface {
	// Put writes data under key. If overwrite is false and the key already
	// has a value, Put returns (false, nil) without writing.
	Put(ctx context.Context, key Key, data []byte, overwrite bool) (bool, error)
	Delete(ctx context.Context, key Key) error
}

// Store is the minimal key/value substrate StoreFS materializes a
// filesystem on top of.
type Store interface {
	Reader
	Writer
	// BeginTransaction opens a transaction spanning multiple keys; all
	// writes made through it are invisible to Store until Commit.
	BeginTransaction(ctx context.Context) (Transaction, error)
}

// Transaction groups a set of reads and writes that commit or abort
// atomically.
type Transaction interface {
	Reader
	Writer
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// AllocateIno returns the next free inode number for a Store, scanning its
// key space for the current maximum and returning one more than it. Keys
// already deleted (including deletes made earlier in the same transaction,
// when r is a Transaction) are not counted, so once the highest-numbered
// inode is deleted its number can be handed out again; allocation is not
// monotonic across deletions.
func AllocateIno(ctx context.Context, r Reader) (vfs.Ino, error) {
	keys, err := r.Keys(ctx)
	if err != nil {
		return 0, err
	}
	max := vfs.RootIno
	for _, k := range keys {
		if k.Ino > max {
			max = k.Ino
		}
	}
	return max + 1, nil
}
