package vfspath

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanCollapsesDotAndDotDot(t *testing.T) {
	require.Equal(t, "/a/c", Clean("/a/b/../c"))
	require.Equal(t, "/", Clean(""))
	require.Equal(t, "/", Clean("/../.."))
	require.Equal(t, "/a", Clean("a/"))
}

func TestSplitOfRoot(t *testing.T) {
	dir, name := Split("/")
	require.Equal(t, "/", dir)
	require.Equal(t, "", name)
}

func TestSplitOfNestedPath(t *testing.T) {
	dir, name := Split("/a/b/c")
	require.Equal(t, "/a/b", dir)
	require.Equal(t, "c", name)
}

func TestComponents(t *testing.T) {
	require.Nil(t, Components("/"))
	require.Equal(t, []string{"a", "b"}, Components("/a/b/"))
}

func TestHasPrefixIsComponentAligned(t *testing.T) {
	require.True(t, HasPrefix("/a/bc", "/a"))
	require.False(t, HasPrefix("/a/bc", "/a/b"))
	require.True(t, HasPrefix("/a/b", "/a/b"))
	require.True(t, HasPrefix("/anything", "/"))
}

func TestTrimPrefix(t *testing.T) {
	require.Equal(t, "/c", TrimPrefix("/a/b/c", "/a/b"))
	require.Equal(t, "/", TrimPrefix("/a/b", "/a/b"))
	require.Equal(t, "/a/b", TrimPrefix("/a/b", "/"))
}
