package vfs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapNilIsTrueNil(t *testing.T) {
	var err error = Wrap(nil, "stat", "/x")
	require.NoError(t, err)
}

func TestWrapPreservesExistingCode(t *testing.T) {
	original := New(ENOENT, "no such file")
	wrapped := Wrap(original, "stat", "/missing")
	require.True(t, IsNotExist(wrapped))
	require.Equal(t, "/missing", wrapped.(*Error).Path)
	require.Equal(t, "stat", wrapped.(*Error).Syscall)
}

func TestWrapOpaqueErrorBecomesEIO(t *testing.T) {
	wrapped := Wrap(errors.New("disk fell over"), "sync", "/f")
	require.True(t, IsIO(wrapped))
	require.Contains(t, wrapped.Error(), "disk fell over")
}

func TestIsPermissionMatchesBothCodes(t *testing.T) {
	require.True(t, IsPermission(New(EPERM, "")))
	require.True(t, IsPermission(New(EACCES, "")))
	require.False(t, IsPermission(New(EIO, "")))
}

func TestErrorStringIncludesPathAndSyscall(t *testing.T) {
	err := Newf(ENOTDIR, "mkdir", "/a/b", "not a directory")
	require.Equal(t, "ENOTDIR mkdir: not a directory [/a/b]", err.Error())
}
