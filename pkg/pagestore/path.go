// ABOUTME: On-disk path derivation for page and metadata files
// ABOUTME: Seven-level hex directory tree plus revision-flag filenames

package pagestore

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// revisionFlag selects which of the three files for a page ID is being
// addressed: the current (promoted) copy, the new unpromoted copy, or the
// new copy pending fsync.
type revisionFlag int

const (
	flagCurrent     revisionFlag = 0
	flagNew         revisionFlag = 1
	flagNewUnsynced revisionFlag = 2
)

const (
	lockFilename       = "grebedb_lock.lock"
	metadataFilename   = "grebedb_meta.grebedb"
	metadataTmpSuffix  = ".tmp"
	metadataPrevSuffix = "_prev"
	metadataCopySuffix = "_copy"
)

func metadataTmpFilename() string  { return metadataFilename + metadataTmpSuffix }
func metadataPrevFilename() string { return "grebedb_meta_prev.grebedb" }
func metadataCopyFilename() string { return "grebedb_meta_copy.grebedb" }

// pagePath derives a page's on-disk path from its ID: the upper seven
// bytes of the big-endian ID form a seven-level directory tree, and the
// filename carries the full ID plus flag.
func pagePath(id uint64, flag revisionFlag) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)

	parts := make([]string, 0, 8)
	for i := 0; i < 7; i++ {
		parts = append(parts, fmt.Sprintf("%02x", b[i]))
	}
	parts = append(parts, fmt.Sprintf("grebedb_%016x_%d.grebedb", id, int(flag)))
	return strings.Join(parts, "/")
}
