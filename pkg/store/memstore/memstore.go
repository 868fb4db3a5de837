// Package memstore is an in-memory Store implementation, grounded on
// dittofs's pkg/metadata/memory in-process map store, generalized from the
// metadata/content split to the fused inode+data key space.
package memstore

import (
	"context"
	"sync"

	"github.com/marlowfs/vfscore/pkg/store"
)

// Store is a map-backed store.Store guarded by a single mutex. It satisfies
// the "simple adapter" role for a non-transactional store: BeginTransaction
// returns a transaction that buffers writes until Commit and coalesces
// concurrent mutations into a single in-memory critical section.
type Store struct {
	mu   sync.Mutex
	data map[store.Key][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[store.Key][]byte)}
}

func (s *Store) Get(_ context.Context, key store.Key) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *Store) Put(_ context.Context, key store.Key, data []byte, overwrite bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists && !overwrite {
		return false, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.data[key] = cp
	return true, nil
}

func (s *Store) Delete(_ context.Context, key store.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) Keys(_ context.Context) ([]store.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]store.Key, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *Store) BeginTransaction(_ context.Context) (store.Transaction, error) {
	s.mu.Lock()
	return &txn{store: s}, nil
}

// txn holds Store's lock for its lifetime, giving it the serializable
// single-critical-section semantics the spec requires of the simple
// adapter, and buffers writes so Abort leaves no trace.
type txn struct {
	store   *Store
	writes  map[store.Key][]byte
	deletes map[store.Key]struct{}
	done    bool
}

func (t *txn) Get(_ context.Context, key store.Key) ([]byte, bool, error) {
	if _, deleted := t.deletes[key]; deleted {
		return nil, false, nil
	}
	if v, ok := t.writes[key]; ok {
		out := make([]byte, len(v))
		copy(out, v)
		return out, true, nil
	}
	v, ok := t.store.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t *txn) Put(_ context.Context, key store.Key, data []byte, overwrite bool) (bool, error) {
	_, existsWrite := t.writes[key]
	_, existsBase := t.store.data[key]
	_, deleted := t.deletes[key]
	exists := (existsWrite || existsBase) && !deleted
	if exists && !overwrite {
		return false, nil
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

func (t *txn) Keys(_ context.Context) ([]store.Key, error) {
	seen := make(map[store.Key]struct{})
	keys := make([]store.Key, 0, len(t.store.data)+len(t.writes))
	for k := range t.store.data {
		if _, deleted := t.deletes[k]; deleted {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for k := range t.writes {
		if _, ok := seen[k]; ok {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (t *txn) Commit(_ context.Context) error {
	if t.done {
		return nil
	}
	defer t.store.mu.Unlock()
	t.done = true
	for k := range t.deletes {
		delete(t.store.data, k)
	}
	for k, v := range t.writes {
		t.store.data[k] = v
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
