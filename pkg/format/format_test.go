package format

import (
	"testing"

	"github.com/grebedb/grebedb/pkg/errs"
	"github.com/grebedb/grebedb/pkg/vfs"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTripUncompressed(t *testing.T) {
	v := vfs.NewMemVFS()
	c := NewCodec(nil, GobSerializer{})

	require.NoError(t, c.WriteFile(v, "my_file", "hello world", vfs.SyncAll))

	var out string
	require.NoError(t, c.ReadFile(v, "my_file", &out))
	require.Equal(t, "hello world", out)
}

func TestCodecRoundTripCompressed(t *testing.T) {
	v := vfs.NewMemVFS()
	comp, err := NewCompressor(CompressionMedium)
	require.NoError(t, err)
	c := NewCodec(comp, GobSerializer{})

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 7)
	}
	require.NoError(t, c.WriteFile(v, "p", payload, vfs.SyncAll))

	var out []byte
	require.NoError(t, c.ReadFile(v, "p", &out))
	require.Equal(t, payload, out)
}

func TestCodecBadMagic(t *testing.T) {
	v := vfs.NewMemVFS()
	require.NoError(t, v.Write("bad", []byte("not a database at all"), vfs.SyncAll))

	c := NewCodec(nil, GobSerializer{})
	var out string
	err := c.ReadFile(v, "bad", &out)
	require.Error(t, err)
	var fe *errs.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, errs.InvalidFileFormat, fe.Kind)
}

func TestCodecBadChecksum(t *testing.T) {
	v := vfs.NewMemVFS()
	c := NewCodec(nil, GobSerializer{})
	require.NoError(t, c.WriteFile(v, "p", "hello", vfs.SyncAll))

	raw, err := v.Read("p")
	require.NoError(t, err)
	corrupt := append([]byte{}, raw...)
	corrupt[len(corrupt)-1] ^= 0xFF
	require.NoError(t, v.Write("p", corrupt, vfs.SyncAll))

	var out string
	err = c.ReadFile(v, "p", &out)
	require.Error(t, err)
	var fe *errs.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, errs.BadChecksum, fe.Kind)
}

func TestDirCacheSkipsRedundantCreates(t *testing.T) {
	v := vfs.NewMemVFS()
	c := NewCodec(nil, GobSerializer{})

	require.NoError(t, c.WriteFile(v, "ab/cd/ef.grebedb", "x", vfs.SyncAll))
	require.True(t, c.dirs.seen("ab/cd"))
}
