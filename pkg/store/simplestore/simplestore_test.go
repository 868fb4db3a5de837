package simplestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marlowfs/vfscore/pkg/store"
)

// fakeBackend is a minimal in-memory Backend, standing in for a raw
// non-transactional store such as s3store.Store.
type fakeBackend struct {
	data map[store.Key][]byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[store.Key][]byte)}
}

func (b *fakeBackend) Get(_ context.Context, key store.Key) ([]byte, bool, error) {
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *fakeBackend) Put(_ context.Context, key store.Key, data []byte) error {
	b.data[key] = data
	return nil
}

func (b *fakeBackend) Delete(_ context.Context, key store.Key) error {
	delete(b.data, key)
	return nil
}

func (b *fakeBackend) Keys(_ context.Context) ([]store.Key, error) {
	keys := make([]store.Key, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func TestPutWithoutOverwriteRejectsExisting(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeBackend())
	key := store.Key{Ino: 1, Kind: store.KindInode}

	ok, err := s.Put(ctx, key, []byte("a"), false)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Put(ctx, key, []byte("b"), false)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransactionBuffersUntilCommit(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := New(backend)
	key := store.Key{Ino: 1, Kind: store.KindData}

	txn, err := s.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = txn.Put(ctx, key, []byte("staged"), true)
	require.NoError(t, err)

	_, found, err := backend.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, found, "writes must not reach the backend before Commit")

	require.NoError(t, txn.Commit(ctx))
	v, found, err := backend.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "staged", string(v))
}

func TestTransactionAbortDiscardsBuffer(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := New(backend)
	key := store.Key{Ino: 2, Kind: store.KindData}

	txn, err := s.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = txn.Put(ctx, key, []byte("v"), true)
	require.NoError(t, err)
	require.NoError(t, txn.Abort(ctx))

	_, found, err := backend.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, found)
}

func TestTransactionGetSeesOwnUncommittedWrites(t *testing.T) {
	ctx := context.Background()
	s := New(newFakeBackend())
	key := store.Key{Ino: 3, Kind: store.KindInode}

	txn, err := s.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = txn.Put(ctx, key, []byte("pending"), true)
	require.NoError(t, err)

	v, found, err := txn.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "pending", string(v))
	require.NoError(t, txn.Abort(ctx))
}
