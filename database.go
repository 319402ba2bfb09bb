package grebedb

import (
	"time"

	"github.com/grebedb/grebedb/internal/logger"
	"github.com/grebedb/grebedb/internal/metrics"
	"github.com/grebedb/grebedb/pkg/btree"
	"github.com/grebedb/grebedb/pkg/pagestore"
	"github.com/grebedb/grebedb/pkg/vfs"
)

// Database is an embedded, single-process, ordered key-value store: a page
// store providing durable revisioned storage, and a B+tree index on top of
// it. A Database is not safe for concurrent use; every operation, including
// cursors derived from it, requires the caller's exclusive access.
type Database struct {
	store *pagestore.Store
	tree  *btree.Tree

	opts    Options
	log     *logger.Logger
	metrics *metrics.Metrics

	lastFlush time.Time
}

// Open opens or creates a database rooted at path on the local file system.
// Callers should start from DefaultOptions and override only what they need.
func Open(path string, opts Options) (*Database, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	v, err := vfs.NewOSVFS(path)
	if err != nil {
		return nil, err
	}
	return open(v, opts)
}

func open(v vfs.VFS, opts Options) (*Database, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	met := metrics.New()

	psOpts, err := opts.pagestoreOptions()
	if err != nil {
		return nil, err
	}

	store, err := pagestore.Open(v, psOpts, log.StoreLogger("open"), met)
	if err != nil {
		return nil, err
	}

	tree, err := btree.Open(store, opts.KeysPerNode, log.TreeLogger("open"), met)
	if err != nil {
		return nil, err
	}

	return &Database{
		store:     store,
		tree:      tree,
		opts:      opts,
		log:       log,
		metrics:   met,
		lastFlush: time.Now(),
	}, nil
}

// Metrics returns the Prometheus collectors for this Database; their
// registry is the Registry field. Callers that want to expose it register
// it into their own HTTP exporter; this module does not open a listener
// itself.
func (db *Database) Metrics() *metrics.Metrics {
	return db.metrics
}

// maybeAutoFlush implements the auto-flush policy: a flush is attempted at
// the start of a mutating call once the modification count and elapsed
// time since the last flush both cross one of two thresholds.
func (db *Database) maybeAutoFlush() error {
	if !db.opts.AutomaticFlush || db.store.ReadOnly() {
		return nil
	}
	mods := db.store.ModCount()
	threshold := db.opts.AutomaticFlushThreshold
	elapsed := time.Since(db.lastFlush)

	due := (mods >= threshold && elapsed >= 300*time.Second) ||
		(mods >= 2*threshold && elapsed >= 60*time.Second)
	if !due {
		return nil
	}
	return db.Flush()
}

// Put inserts or overwrites (key, value).
func (db *Database) Put(key, value []byte) error {
	if err := db.maybeAutoFlush(); err != nil {
		return err
	}
	return db.tree.Put(key, value)
}

// Get returns the value for key and whether it was found.
func (db *Database) Get(key []byte) ([]byte, bool, error) {
	return db.tree.Get(key)
}

// GetBuf looks up key and, when found, replaces the contents of *buf with
// its value, reusing the buffer's capacity across calls. It reports whether
// the key was present.
func (db *Database) GetBuf(key []byte, buf *[]byte) (bool, error) {
	return db.tree.GetBuf(key, buf)
}

// ContainsKey reports whether key is present.
func (db *Database) ContainsKey(key []byte) (bool, error) {
	return db.tree.ContainsKey(key)
}

// Remove deletes key if present.
func (db *Database) Remove(key []byte) error {
	if err := db.maybeAutoFlush(); err != nil {
		return err
	}
	return db.tree.Remove(key)
}

// NewCursor creates a cursor for an ordered walk of the database.
func (db *Database) NewCursor() *btree.Cursor {
	return db.tree.NewCursor()
}

// Flush durably commits all pending changes.
func (db *Database) Flush() error {
	if err := db.tree.Flush(); err != nil {
		return err
	}
	db.lastFlush = time.Now()
	return nil
}

// Verify walks the tree checking structural invariants, reporting progress
// via progress if non-nil.
func (db *Database) Verify(progress btree.ProgressFunc) error {
	return db.tree.Verify(progress)
}

// Upgrade is idempotent and currently writes nothing: absent auxiliary
// metadata already reads as its default value.
func (db *Database) Upgrade() error {
	return db.tree.Upgrade()
}

// KeyValueCount returns the live key-value pair count, including changes
// not yet flushed; it is maintained on every Put and Remove, not
// recomputed by traversal.
func (db *Database) KeyValueCount() uint64 {
	return db.store.AuxiliaryMetadata().KeyValueCount
}

// Closed reports whether the database has failed a mutating operation and
// is refusing further writes.
func (db *Database) Closed() bool {
	return db.store.Closed()
}

// Close releases the advisory file lock. If auto-flush is enabled and the
// handle is not read-only, it attempts a best-effort flush first; flush
// errors are swallowed, matching the drop semantics of the store beneath
// it.
func (db *Database) Close() error {
	if db.opts.AutomaticFlush && !db.store.ReadOnly() {
		_ = db.Flush()
	}
	return db.store.Close()
}
