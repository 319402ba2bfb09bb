package vfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOSVFSWriteReadRenameRemove(t *testing.T) {
	v, err := NewOSVFS(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, v.CreateDirAll("a/b"))
	require.NoError(t, v.Write("a/b/c.txt", []byte("hello"), SyncAll))

	data, err := v.Read("a/b/c.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)

	require.NoError(t, v.RenameFile("a/b/c.txt", "a/b/d.txt"))
	_, err = v.Read("a/b/c.txt")
	require.ErrorIs(t, err, ErrNotExist)

	require.True(t, v.Exists("a/b/d.txt"))
	require.True(t, v.IsDir("a/b"))

	require.NoError(t, v.RemoveFile("a/b/d.txt"))
	require.NoError(t, v.RemoveFile("a/b/d.txt"))

	require.NoError(t, v.RemoveEmptyDirAll("a/b"))
	require.False(t, v.Exists("a"))
}

func TestOSVFSLockExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()
	v1, err := NewOSVFS(dir)
	require.NoError(t, err)
	v2, err := NewOSVFS(dir)
	require.NoError(t, err)

	require.NoError(t, v1.Lock("db.lock"))
	require.ErrorIs(t, v2.Lock("db.lock"), ErrAlreadyLocked)

	require.NoError(t, v1.Unlock("db.lock"))
	require.NoError(t, v2.Lock("db.lock"))
	require.NoError(t, v2.Unlock("db.lock"))
}

func TestReadOnlyVFSRejectsMutation(t *testing.T) {
	inner := NewMemVFS()
	require.NoError(t, inner.Write("f", []byte("x"), SyncNone))

	ro := &ReadOnlyVFS{Inner: inner}

	data, err := ro.Read("f")
	require.NoError(t, err)
	require.Equal(t, []byte("x"), data)

	require.ErrorIs(t, ro.Write("g", nil, SyncNone), ErrReadOnly)
	require.ErrorIs(t, ro.RenameFile("f", "g"), ErrReadOnly)
	require.ErrorIs(t, ro.RemoveFile("f"), ErrReadOnly)
	require.ErrorIs(t, ro.CreateDirAll("d"), ErrReadOnly)
}
