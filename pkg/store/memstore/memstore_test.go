package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marlowfs/vfscore/pkg/store"
)

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := store.Key{Ino: 1, Kind: store.KindInode}

	ok, err := s.Put(ctx, key, []byte("a"), false)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Put(ctx, key, []byte("b"), false)
	require.NoError(t, err)
	require.False(t, ok, "put without overwrite must not clobber an existing key")

	v, found, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a", string(v))

	require.NoError(t, s.Delete(ctx, key))
	_, found, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetCopiesOnRead(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := store.Key{Ino: 1, Kind: store.KindData}
	_, err := s.Put(ctx, key, []byte("hello"), true)
	require.NoError(t, err)

	v, _, err := s.Get(ctx, key)
	require.NoError(t, err)
	v[0] = 'X'

	v2, _, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "hello", string(v2), "mutating a returned slice must not affect stored data")
}

func TestTransactionAbortLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := store.Key{Ino: 2, Kind: store.KindInode}

	txn, err := s.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = txn.Put(ctx, key, []byte("v"), true)
	require.NoError(t, err)
	require.NoError(t, txn.Abort(ctx))

	_, found, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, found)
}

func TestTransactionCommitAppliesWritesAndDeletes(t *testing.T) {
	ctx := context.Background()
	s := New()
	keyA := store.Key{Ino: 3, Kind: store.KindInode}
	keyB := store.Key{Ino: 4, Kind: store.KindInode}
	_, err := s.Put(ctx, keyB, []byte("stale"), true)
	require.NoError(t, err)

	txn, err := s.BeginTransaction(ctx)
	require.NoError(t, err)
	_, err = txn.Put(ctx, keyA, []byte("new"), true)
	require.NoError(t, err)
	require.NoError(t, txn.Delete(ctx, keyB))
	require.NoError(t, txn.Commit(ctx))

	v, found, err := s.Get(ctx, keyA)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "new", string(v))

	_, found, err = s.Get(ctx, keyB)
	require.NoError(t, err)
	require.False(t, found)
}

func TestKeysReflectsCurrentState(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Put(ctx, store.Key{Ino: 1, Kind: store.KindInode}, []byte("a"), true)
	require.NoError(t, err)
	_, err = s.Put(ctx, store.Key{Ino: 2, Kind: store.KindInode}, []byte("b"), true)
	require.NoError(t, err)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
}
