// Package badgerstore is a store.Store backed by BadgerDB, grounded on
// dittofs's pkg/metadata/badger.BadgerMetadataStore: same options.WithLoggingLevel
// / options.WithCompression tuning, same "close the db on shutdown" contract,
// generalized from dittofs's split metadata/content key encoding to the
// fused inode+data key space.
package badgerstore

import (
	"context"
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marlowfs/vfscore/pkg/store"
	"github.com/marlowfs/vfscore/pkg/vfs"
)

// Config configures a badger-backed Store.
type Config struct {
	// Path is the on-disk directory for the badger database.
	Path string
	// InMemory runs badger with no on-disk footprint, useful in tests.
	InMemory bool
}

// Store is a store.Store backed by a *badger.DB. Because badger provides
// native ACID transactions, BeginTransaction here yields real
// serializable, all-or-nothing commits rather than the simple adapter's
// in-memory critical section.
type Store struct {
	db *badger.DB
}

// Open opens or creates the badger database described by cfg.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeKey(key store.Key) []byte {
	buf := make([]byte, 9)
	binary.BigEndian.PutUint64(buf, uint64(key.Ino))
	buf[8] = byte(key.Kind)
	return buf
}

func decodeKey(raw []byte) (store.Key, error) {
	if len(raw) != 9 {
		return store.Key{}, fmt.Errorf("badgerstore: malformed key")
	}
	ino := binary.BigEndian.Uint64(raw[:8])
	return store.Key{Ino: vfs.Ino(ino), Kind: store.KeyKind(raw[8])}, nil
}

func (s *Store) Get(_ context.Context, key store.Key) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *Store) Put(_ context.Context, key store.Key, data []byte, overwrite bool) (bool, error) {
	wrote := false
	err := s.db.Update(func(txn *badger.Txn) error {
		if !overwrite {
			_, err := txn.Get(encodeKey(key))
			if err == nil {
				return nil
			}
			if err != badger.ErrKeyNotFound {
				return err
			}
		}
		if err := txn.Set(encodeKey(key), data); err != nil {
			return err
		}
		wrote = true
		return nil
	})
	return wrote, err
}

func (s *Store) Delete(_ context.Context, key store.Key) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(encodeKey(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (s *Store) Keys(_ context.Context) ([]store.Key, error) {
	var keys []store.Key
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k, err := decodeKey(it.Item().KeyCopy(nil))
			if err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return nil
	})
	return keys, err
}

func (s *Store) BeginTransaction(_ context.Context) (store.Transaction, error) {
	return &txn{db: s.db, txn: s.db.NewTransaction(true)}, nil
}

// txn wraps a native *badger.Txn, giving StoreFS real ACID semantics when
// running over badgerstore.
type txn struct {
	db   *badger.DB
	txn  *badger.Txn
	done bool
}

func (t *txn) Get(_ context.Context, key store.Key) ([]byte, bool, error) {
	item, err := t.txn.Get(encodeKey(key))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []byte
	err = item.Value(func(val []byte) error {
		out = append([]byte(nil), val...)
		return nil
	})
	return out, true, err
}

func (t *txn) Put(_ context.Context, key store.Key, data []byte, overwrite bool) (bool, error) {
	if !overwrite {
		_, err := t.txn.Get(encodeKey(key))
		if err == nil {
			return false, nil
		}
		if err != badger.ErrKeyNotFound {
			return false, err
		}
	}
	if err := t.txn.Set(encodeKey(key), data); err != nil {
		return false, err
	}
	return true, nil
}

func (t *txn) Delete(_ context.Context, key store.Key) error {
	err := t.txn.Delete(encodeKey(key))
	if err == badger.ErrKeyNotFound {
		return nil
	}
	return err
}

func (t *txn) Keys(_ context.Context) ([]store.Key, error) {
	var keys []store.Key
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		k, err := decodeKey(it.Item().KeyCopy(nil))
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (t *txn) Commit(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return t.txn.Commit()
}

func (t *txn) Abort(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.txn.Discard()
	return nil
}
