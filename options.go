package grebedb

import (
	"github.com/grebedb/grebedb/internal/logger"
	"github.com/grebedb/grebedb/pkg/errs"
	"github.com/grebedb/grebedb/pkg/format"
	"github.com/grebedb/grebedb/pkg/pagestore"
	"github.com/grebedb/grebedb/pkg/vfs"
)

// OpenMode gates the existence check performed at Open and whether the
// resulting Database can mutate the underlying files.
type OpenMode = pagestore.OpenMode

const (
	OpenModeLoadOnly     = pagestore.OpenModeLoadOnly
	OpenModeCreateOnly   = pagestore.OpenModeCreateOnly
	OpenModeLoadOrCreate = pagestore.OpenModeLoadOrCreate
	OpenModeReadOnly     = pagestore.OpenModeReadOnly
)

// SyncMode selects the durability of a write: no flush, a data-only flush,
// or a full flush of data and metadata.
type SyncMode = vfs.SyncMode

const (
	SyncNone = vfs.SyncNone
	SyncData = vfs.SyncData
	SyncAll  = vfs.SyncAll
)

// CompressionLevel selects the zstd level used to compress page and
// metadata files, or disables compression entirely.
type CompressionLevel = format.CompressionLevel

const (
	CompressionNone    = format.CompressionNone
	CompressionVeryLow = format.CompressionVeryLow
	CompressionLow     = format.CompressionLow
	CompressionMedium  = format.CompressionMedium
	CompressionHigh    = format.CompressionHigh
)

// Options configures a Database at Open.
type Options struct {
	OpenMode OpenMode

	// KeysPerNode bounds the number of separator keys in an internal
	// B+tree node and key-value pairs in a leaf. Must be >= 2.
	KeysPerNode int

	// PageCacheSize is the page cache's capacity, in pages. Must be >= 1.
	PageCacheSize int

	FileLocking bool
	FileSync    SyncMode

	CompressionLevel CompressionLevel

	// AutomaticFlush enables the background-free auto-commit policy: a
	// flush is attempted synchronously at
	// the start of the next mutating call once the modification count and
	// elapsed time since the last flush both cross one of two thresholds.
	AutomaticFlush          bool
	AutomaticFlushThreshold int

	// Logger receives structured logs for commits and evictions. Defaults
	// to a no-op logger.
	Logger *logger.Logger
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		OpenMode:                OpenModeLoadOrCreate,
		KeysPerNode:             1024,
		PageCacheSize:           64,
		FileLocking:             true,
		FileSync:                SyncAll,
		CompressionLevel:        CompressionNone,
		AutomaticFlush:          true,
		AutomaticFlushThreshold: 2048,
	}
}

func (o Options) validate() error {
	if o.KeysPerNode < 2 {
		return errs.New(errs.InvalidConfig, "keys_per_node must be >= 2", nil)
	}
	if o.PageCacheSize < 1 {
		return errs.New(errs.InvalidConfig, "page_cache_size must be >= 1", nil)
	}
	return nil
}

func (o Options) pagestoreOptions() (pagestore.Options, error) {
	compressor, err := format.NewCompressor(o.CompressionLevel)
	if err != nil {
		return pagestore.Options{}, err
	}
	return pagestore.Options{
		OpenMode:      o.OpenMode,
		PageCacheSize: o.PageCacheSize,
		FileLocking:   o.FileLocking,
		FileSync:      o.FileSync,
		Compressor:    compressor,
	}, nil
}
