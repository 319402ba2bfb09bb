// ABOUTME: Tests for on-disk page path derivation

package pagestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPagePathDerivation(t *testing.T) {
	require.Equal(t,
		"00/00/00/00/00/00/00/grebedb_0000000000000001_0.grebedb",
		pagePath(1, flagCurrent))

	require.Equal(t,
		"00/00/00/00/00/00/01/grebedb_0000000000000100_1.grebedb",
		pagePath(0x100, flagNew))

	require.Equal(t,
		"01/23/45/67/89/ab/cd/grebedb_0123456789abcdef_2.grebedb",
		pagePath(0x0123456789abcdef, flagNewUnsynced))
}

func TestMetadataFilenames(t *testing.T) {
	require.Equal(t, "grebedb_meta.grebedb.tmp", metadataTmpFilename())
	require.Equal(t, "grebedb_meta_prev.grebedb", metadataPrevFilename())
	require.Equal(t, "grebedb_meta_copy.grebedb", metadataCopyFilename())
}
