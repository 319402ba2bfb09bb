package grebedb

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/grebedb/grebedb/pkg/errs"
	"github.com/grebedb/grebedb/pkg/vfs"
	"github.com/stretchr/testify/require"
)

func TestCreateReopen(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions()
	opts.OpenMode = OpenModeCreateOnly
	db, err := Open(dir, opts)
	require.NoError(t, err)

	require.NoError(t, db.Put([]byte("key1"), []byte("hello")))
	require.NoError(t, db.Put([]byte("key2"), []byte("world")))
	require.NoError(t, db.Flush())
	require.NoError(t, db.Close())

	reopenOpts := DefaultOptions()
	reopenOpts.OpenMode = OpenModeLoadOnly
	db2, err := Open(dir, reopenOpts)
	require.NoError(t, err)
	defer db2.Close()

	val, found, err := db2.Get([]byte("key1"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("hello"), val)

	val, found, err = db2.Get([]byte("key2"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("world"), val)

	_, found, err = db2.Get([]byte("key3"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestDenseSequentialInsertAndCursorWalk(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OpenMode = OpenModeCreateOnly
	opts.KeysPerNode = 16
	db, err := Open(dir, opts)
	require.NoError(t, err)
	defer db.Close()

	const n = 3000
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("%08x", i))
		val := []byte(fmt.Sprintf("hello world %d", i))
		require.NoError(t, db.Put(key, val))
	}
	require.NoError(t, db.Verify(nil))
	require.Equal(t, uint64(n), db.KeyValueCount())

	cur := db.NewCursor()
	count := 0
	for {
		key, val, ok, err := cur.Next(nil)
		require.NoError(t, err)
		if !ok {
			break
		}
		require.Equal(t, []byte(fmt.Sprintf("%08x", count)), key)
		require.Equal(t, []byte(fmt.Sprintf("hello world %d", count)), val)
		count++
	}
	require.Equal(t, n, count)
}

func TestOverwriteThenDelete(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OpenMode = OpenModeCreateOnly
	db, err := Open(dir, opts)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("a")))
	require.NoError(t, db.Put([]byte("k"), []byte("b")))

	val, found, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("b"), val)

	require.NoError(t, db.Remove([]byte("k")))
	found, err = db.ContainsKey([]byte("k"))
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, uint64(0), db.KeyValueCount())
}

func TestRandomizedDeleteWithPeriodicVerify(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OpenMode = OpenModeCreateOnly
	opts.KeysPerNode = 8
	db, err := Open(dir, opts)
	require.NoError(t, err)
	defer db.Close()

	const n = 800
	keys := make([][]byte, n)
	for i := 0; i < n; i++ {
		keys[i] = []byte(fmt.Sprintf("%08x", i))
		require.NoError(t, db.Put(keys[i], keys[i]))
	}

	rng := rand.New(rand.NewSource(7))
	order := rng.Perm(n)
	removed := make(map[int]bool)

	for step, idx := range order {
		require.NoError(t, db.Remove(keys[idx]))
		removed[idx] = true

		found, err := db.ContainsKey(keys[idx])
		require.NoError(t, err)
		require.False(t, found)

		if (step+1)%100 == 0 {
			require.NoError(t, db.Verify(nil))
			for i, k := range keys {
				_, found, err := db.Get(k)
				require.NoError(t, err)
				require.Equal(t, !removed[i], found)
			}
		}
	}
	require.NoError(t, db.Verify(nil))
	require.Equal(t, uint64(0), db.KeyValueCount())
}

func TestReadOnlyHandleRejectsMutation(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OpenMode = OpenModeCreateOnly
	db, err := Open(dir, opts)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Close())

	roOpts := DefaultOptions()
	roOpts.OpenMode = OpenModeReadOnly
	ro, err := Open(dir, roOpts)
	require.NoError(t, err)
	defer ro.Close()

	val, found, err := ro.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), val)

	err = ro.Put([]byte("k2"), []byte("v2"))
	require.Error(t, err)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions()
	opts.KeysPerNode = 1
	_, err := Open(dir, opts)
	require.ErrorIs(t, err, errs.New(errs.InvalidConfig, "", nil))

	opts = DefaultOptions()
	opts.PageCacheSize = 0
	_, err = Open(dir, opts)
	require.ErrorIs(t, err, errs.New(errs.InvalidConfig, "", nil))
}

func TestSecondHandleFailsWithLocked(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions()
	opts.OpenMode = OpenModeCreateOnly
	db, err := Open(dir, opts)
	require.NoError(t, err)
	require.NoError(t, db.Flush())
	defer db.Close()

	loadOpts := DefaultOptions()
	loadOpts.OpenMode = OpenModeLoadOnly
	_, err = Open(dir, loadOpts)
	require.ErrorIs(t, err, errs.ErrLocked)
}

func TestGetBufReusesBuffer(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OpenMode = OpenModeCreateOnly
	db, err := Open(dir, opts)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k1"), []byte("first value")))
	require.NoError(t, db.Put([]byte("k2"), []byte("second")))

	var buf []byte
	found, err := db.GetBuf([]byte("k1"), &buf)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("first value"), buf)

	found, err = db.GetBuf([]byte("k2"), &buf)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("second"), buf)

	found, err = db.GetBuf([]byte("missing"), &buf)
	require.NoError(t, err)
	require.False(t, found)
}

func TestCompressedDatabaseReopens(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OpenMode = OpenModeCreateOnly
	opts.CompressionLevel = CompressionLow

	db, err := Open(dir, opts)
	require.NoError(t, err)

	const n = 200
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("%08x", i))
		require.NoError(t, db.Put(key, []byte(fmt.Sprintf("compressible value %d", i))))
	}
	require.NoError(t, db.Flush())
	require.NoError(t, db.Close())

	reopenOpts := DefaultOptions()
	reopenOpts.OpenMode = OpenModeLoadOnly
	reopenOpts.CompressionLevel = CompressionLow
	db2, err := Open(dir, reopenOpts)
	require.NoError(t, err)
	defer db2.Close()

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("%08x", i))
		val, found, err := db2.Get(key)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte(fmt.Sprintf("compressible value %d", i)), val)
	}
}

func TestAutomaticFlushTriggersAtMutationEntry(t *testing.T) {
	v := vfs.NewMemVFS()
	opts := DefaultOptions()
	opts.OpenMode = OpenModeCreateOnly
	opts.AutomaticFlushThreshold = 4

	db, err := open(v, opts)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, db.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v")))
	}
	// Nothing has been committed yet: no metadata document on disk.
	require.False(t, v.Exists("grebedb_meta.grebedb"))

	// Past double the threshold and more than a minute since the last
	// flush, the next mutation flushes first.
	db.lastFlush = time.Now().Add(-2 * time.Minute)
	require.NoError(t, db.Put([]byte("trigger"), []byte("v")))
	require.True(t, v.Exists("grebedb_meta.grebedb"))
}
