package grebedb

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/grebedb/grebedb/pkg/errs"
	"github.com/grebedb/grebedb/pkg/vfs"
	"github.com/stretchr/testify/require"
)

func newExportTestDB(t *testing.T) *Database {
	t.Helper()
	opts := DefaultOptions()
	opts.OpenMode = OpenModeCreateOnly
	db, err := open(vfs.NewMemVFS(), opts)
	require.NoError(t, err)
	return db
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newExportTestDB(t)

	const n = 500
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("%08x", i))
		val := []byte(fmt.Sprintf("payload %d", i))
		require.NoError(t, src.Put(key, val))
	}
	require.NoError(t, src.Flush())

	var dump bytes.Buffer
	var exported uint64
	require.NoError(t, Export(src, &dump, func(count uint64) { exported = count }))
	require.Equal(t, uint64(n), exported)

	dst := newExportTestDB(t)
	var imported uint64
	require.NoError(t, Import(dst, bytes.NewReader(dump.Bytes()), func(count uint64) { imported = count }))
	require.Equal(t, uint64(n), imported)
	require.Equal(t, uint64(n), dst.KeyValueCount())

	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("%08x", i))
		val, found, err := dst.Get(key)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte(fmt.Sprintf("payload %d", i)), val)
	}
}

func TestImportRejectsBadChecksum(t *testing.T) {
	src := newExportTestDB(t)
	require.NoError(t, src.Put([]byte("k"), []byte("v")))

	var dump bytes.Buffer
	require.NoError(t, Export(src, &dump, nil))

	// Flip the stored value without touching its recorded checksum.
	corrupted := strings.Replace(dump.String(), `"value":"76"`, `"value":"77"`, 1)
	require.NotEqual(t, dump.String(), corrupted)

	dst := newExportTestDB(t)
	err := Import(dst, strings.NewReader(corrupted), nil)
	require.ErrorIs(t, err, errs.New(errs.BadChecksum, "", nil))
}

func TestImportRejectsTruncatedDump(t *testing.T) {
	src := newExportTestDB(t)
	require.NoError(t, src.Put([]byte("k"), []byte("v")))

	var dump bytes.Buffer
	require.NoError(t, Export(src, &dump, nil))

	// Cut the dump before the footer record.
	raw := dump.Bytes()
	cut := bytes.LastIndexByte(raw[:len(raw)-1], recordSeparator)
	require.Greater(t, cut, 0)

	dst := newExportTestDB(t)
	err := Import(dst, bytes.NewReader(raw[:cut]), nil)
	require.ErrorIs(t, err, ErrFooterNotFound)
}

func TestImportRejectsMissingSeparator(t *testing.T) {
	dst := newExportTestDB(t)
	err := Import(dst, strings.NewReader(`{"type":"metadata"}`+"\n"), nil)
	require.ErrorIs(t, err, ErrMissingRecordSeparator)
}

func TestImportRejectsPairsBeforeHeader(t *testing.T) {
	dst := newExportTestDB(t)
	record := string(rune(recordSeparator)) + `{"type":"key_value","key":"6B","value":"76","index":0,"key_crc32c":0,"value_crc32c":0}` + "\n"
	err := Import(dst, strings.NewReader(record), nil)
	require.ErrorIs(t, err, ErrHeaderNotFound)
}
