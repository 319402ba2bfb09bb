// ABOUTME: Store configuration: open mode, cache size, sync and locking
// ABOUTME: Validation rejects configurations the store cannot run under

package pagestore

import (
	"github.com/grebedb/grebedb/pkg/errs"
	"github.com/grebedb/grebedb/pkg/format"
	"github.com/grebedb/grebedb/pkg/vfs"
)

// OpenMode gates the existence check performed at Open and whether the
// resulting handle can mutate the database.
type OpenMode int

const (
	OpenModeLoadOnly OpenMode = iota
	OpenModeCreateOnly
	OpenModeLoadOrCreate
	OpenModeReadOnly
)

// Options configures a Store at Open.
type Options struct {
	OpenMode      OpenMode
	PageCacheSize int
	FileLocking   bool
	FileSync      vfs.SyncMode
	Compressor    format.Compressor
	Serializer    format.Serializer
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		OpenMode:      OpenModeLoadOrCreate,
		PageCacheSize: 64,
		FileLocking:   true,
		FileSync:      vfs.SyncAll,
	}
}

// Validate rejects configurations the store cannot operate under.
func (o Options) Validate() error {
	if o.PageCacheSize < 1 {
		return errs.New(errs.InvalidConfig, "page_cache_size must be >= 1", nil)
	}
	return nil
}
