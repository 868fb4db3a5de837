// Package simplestore adapts a non-transactional key/value backend into a
// store.Store by buffering writes in memory until Commit and discarding
// them on Abort, grounded on the copy-on-write write buffering dittofs's
// pkg/content memory chunk store uses for staged writes.
package simplestore

import (
	"context"
	"sync"

	"github.com/marlowfs/vfscore/pkg/store"
)

// Backend is the non-transactional interface a raw store (S3, badger used
// without its native transactions, ...) must expose to be wrapped.
type Backend interface {
	Get(ctx context.Context, key store.Key) ([]byte, bool, error)
	Put(ctx context.Context, key store.Key, data []byte) error
	Delete(ctx context.Context, key store.Key) error
	Keys(ctx context.Context) ([]store.Key, error)
}

// Store wraps a Backend, adding the BeginTransaction contract by
// serializing all transactions through a single mutex — the "simple
// adapter" of the spec.
type Store struct {
	mu      sync.Mutex
	backend Backend
}

// New wraps backend as a store.Store.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) Get(ctx context.Context, key store.Key) ([]byte, bool, error) {
	return s.backend.Get(ctx, key)
}

func (s *Store) Put(ctx context.Context, key store.Key, data []byte, overwrite bool) (bool, error) {
	if !overwrite {
		_, exists, err := s.backend.Get(ctx, key)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}
	if err := s.backend.Put(ctx, key, data); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key store.Key) error {
	return s.backend.Delete(ctx, key)
}

func (s *Store) Keys(ctx context.Context) ([]store.Key, error) {
	return s.backend.Keys(ctx)
}

func (s *Store) BeginTransaction(ctx context.Context) (store.Transaction, error) {
	s.mu.Lock()
	return &txn{ctx: ctx, store: s}, nil
}

// txn buffers writes/deletes until Commit and never touches the backend
// before then, so a mid-transaction failure leaves the backend untouched.
type txn struct {
	ctx     context.Context
	store   *Store
	writes  map[store.Key][]byte
	deletes map[store.Key]struct{}
	done    bool
}

func (t *txn) Get(ctx context.Context, key store.Key) ([]byte, bool, error) {
	if _, deleted := t.deletes[key]; deleted {
		return nil, false, nil
	}
	if v, ok := t.writes[key]; ok {
		return v, true, nil
	}
	return t.store.backend.Get(ctx, key)
}

func (t *txn) Put(ctx context.Context, key store.Key, data []byte, overwrite bool) (bool, error) {
	if !overwrite {
		if _, deleted := t.deletes[key]; !deleted {
			if _, ok := t.writes[key]; ok {
				return false, nil
			}
			if _, exists, err := t.store.backend.Get(ctx, key); err != nil {
				return false, err
			} else if exists {
				return false, nil
			}
		}
	}
	if t.writes == nil {
		t.writes = make(map[store.Key][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	t.writes[key] = cp
	delete(t.deletes, key)
	return true, nil
}

func (t *txn) Delete(_ context.Context, key store.Key) error {
	if t.deletes == nil {
		t.deletes = make(map[store.Key]struct{})
	}
	t.deletes[key] = struct{}{}
	delete(t.writes, key)
	return nil
}

func (t *txn) Keys(ctx context.Context) ([]store.Key, error) {
	base, err := t.store.backend.Keys(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[store.Key]struct{}, len(base))
	out := make([]store.Key, 0, len(base)+len(t.writes))
	for _, k := range base {
		if _, deleted := t.deletes[k]; deleted {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for k := range t.writes {
		if _, ok := seen[k]; ok {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (t *txn) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	defer t.store.mu.Unlock()
	t.done = true
	for k := range t.deletes {
		if err := t.store.backend.Delete(ctx, k); err != nil {
			return err
		}
	}
	for k, v := range t.writes {
		if err := t.store.backend.Put(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Abort(_ context.Context) error {
	if t.done {
		return nil
	}
	defer t.store.mu.Unlock()
	t.done = true
	return nil
}
