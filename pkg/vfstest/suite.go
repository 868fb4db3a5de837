// Package vfstest is a comprehensive test suite for vfs.FileSystem
// implementations, grounded on the reusable-across-backends suite pattern
// in dittofs's pkg/content/testing.StoreTestSuite ("tests the interface
// contract, not implementation details").
package vfstest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marlowfs/vfscore/pkg/vfs"
)

// Suite runs a set of FileSystem contract checks (write/read round-trip,
// idempotent stat, mkdir/rmdir, directory rename, permission checks and
// hard links) against any FileSystem factory.
//
// Usage:
//
//	suite := &vfstest.Suite{
//	    NewFS: func() vfs.FileSystem { return storefs.New("t", memstore.New()) },
//	}
//	suite.Run(t)
type Suite struct {
	// NewFS returns a fresh, unready FileSystem for each test.
	NewFS func() vfs.FileSystem
}

// Run executes every test in the suite.
func (s *Suite) Run(t *testing.T) {
	t.Run("RoundTrip", s.RunRoundTrip)
	t.Run("IdempotentStat", s.RunIdempotentStat)
	t.Run("MkdirRmdir", s.RunMkdirRmdir)
	t.Run("RenameDirectoryTree", s.RunRenameDirectoryTree)
	t.Run("PermissionChecks", s.RunPermissionChecks)
	t.Run("LinkSharesIno", s.RunLinkSharesIno)
}

func (s *Suite) ready(t *testing.T) vfs.FileSystem {
	t.Helper()
	fs := s.NewFS()
	require.NoError(t, fs.Ready(context.Background()))
	return fs
}

// RunRoundTrip asserts invariant 1: for any sequence of writes followed by
// a read, the returned bytes equal the last write's contents at each
// offset.
func (s *Suite) RunRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := s.ready(t)
	handle, err := fs.CreateFile(ctx, "/a.txt", vfs.OpenFlag{Write: true, Create: true}, 0644, vfs.Root())
	require.NoError(t, err)
	_, err = handle.Write(ctx, []byte("hello"), 0)
	require.NoError(t, err)
	_, err = handle.Write(ctx, []byte("world"), 5)
	require.NoError(t, err)
	require.NoError(t, handle.Close(ctx))

	readHandle, err := fs.OpenFile(ctx, "/a.txt", vfs.OpenFlag{Read: true}, vfs.Root())
	require.NoError(t, err)
	buf := make([]byte, 10)
	n, err := readHandle.Read(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "helloworld", string(buf[:n]))
	require.NoError(t, readHandle.Close(ctx))
}

// RunIdempotentStat asserts invariant 2: two consecutive stats with no
// intervening mutation are byte-equal.
func (s *Suite) RunIdempotentStat(t *testing.T) {
	ctx := context.Background()
	fs := s.ready(t)
	require.NoError(t, fs.Mkdir(ctx, "/d", 0755, vfs.Root()))
	first, err := fs.Stat(ctx, "/d", vfs.Root())
	require.NoError(t, err)
	second, err := fs.Stat(ctx, "/d", vfs.Root())
	require.NoError(t, err)
	require.Equal(t, first, second)
}

// RunMkdirRmdir exercises mkdir/rmdir edge cases: EEXIST on duplicate
// names, ENOTEMPTY on a non-empty directory.
func (s *Suite) RunMkdirRmdir(t *testing.T) {
	ctx := context.Background()
	fs := s.ready(t)
	require.NoError(t, fs.Mkdir(ctx, "/a", 0755, vfs.Root()))
	err := fs.Mkdir(ctx, "/a", 0755, vfs.Root())
	require.True(t, vfs.IsExist(err))

	require.NoError(t, fs.Mkdir(ctx, "/a/b", 0755, vfs.Root()))
	err = fs.Rmdir(ctx, "/a", vfs.Root())
	require.True(t, vfs.IsNotEmpty(err))

	require.NoError(t, fs.Rmdir(ctx, "/a/b", vfs.Root()))
	require.NoError(t, fs.Rmdir(ctx, "/a", vfs.Root()))
}

// RunRenameDirectoryTree covers S6-style rename semantics: renaming a
// directory tree preserves its children, and the source path stops
// existing.
func (s *Suite) RunRenameDirectoryTree(t *testing.T) {
	ctx := context.Background()
	fs := s.ready(t)
	require.NoError(t, fs.Mkdir(ctx, "/a", 0755, vfs.Root()))
	require.NoError(t, fs.Mkdir(ctx, "/a/b", 0755, vfs.Root()))
	require.NoError(t, fs.Rename(ctx, "/a", "/c", vfs.Root()))

	_, err := fs.Stat(ctx, "/c/b", vfs.Root())
	require.NoError(t, err)
	_, err = fs.Stat(ctx, "/a", vfs.Root())
	require.True(t, vfs.IsNotExist(err))
}

// RunPermissionChecks asserts that a non-owning, non-root credential
// cannot write to a mode-0644 file owned by someone else.
func (s *Suite) RunPermissionChecks(t *testing.T) {
	ctx := context.Background()
	fs := s.ready(t)
	owner := vfs.Credential{UID: 1, GID: 1, EUID: 1, EGID: 1}
	other := vfs.Credential{UID: 2, GID: 2, EUID: 2, EGID: 2}

	handle, err := fs.CreateFile(ctx, "/f", vfs.OpenFlag{Write: true, Create: true}, 0644, owner)
	require.NoError(t, err)
	require.NoError(t, handle.Close(ctx))

	_, err = fs.OpenFile(ctx, "/f", vfs.OpenFlag{Write: true}, other)
	require.True(t, vfs.IsPermission(err))
}

// RunLinkSharesIno asserts that link(src,dst) creates a second name
// pointing at the same inode: stat of both paths reports the same ino.
func (s *Suite) RunLinkSharesIno(t *testing.T) {
	ctx := context.Background()
	fs := s.ready(t)
	h, err := fs.CreateFile(ctx, "/x", vfs.OpenFlag{Write: true, Create: true}, 0644, vfs.Root())
	require.NoError(t, err)
	_, err = h.Write(ctx, []byte("shared"), 0)
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))

	require.NoError(t, fs.Link(ctx, "/x", "/y", vfs.Root()))
	statX, err := fs.Stat(ctx, "/x", vfs.Root())
	require.NoError(t, err)
	statY, err := fs.Stat(ctx, "/y", vfs.Root())
	require.NoError(t, err)
	require.Equal(t, statX.Ino, statY.Ino)
}
