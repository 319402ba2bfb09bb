// ABOUTME: Page store with revision-stamped pages and two-phase commit
// ABOUTME: Implements write-ahead flag files, promotion, and crash recovery

package pagestore

import (
	"errors"
	"time"

	"github.com/grebedb/grebedb/internal/dbid"
	"github.com/grebedb/grebedb/internal/logger"
	"github.com/grebedb/grebedb/internal/metrics"
	"github.com/grebedb/grebedb/pkg/errs"
	"github.com/grebedb/grebedb/pkg/format"
	"github.com/grebedb/grebedb/pkg/vfs"
)

func metadataExists(v vfs.VFS) bool {
	return v.Exists(metadataFilename) || v.Exists(metadataCopyFilename()) || v.Exists(metadataPrevFilename())
}

// Store owns the VFS handle, the page cache, and the database metadata
// document. It is the only component with direct knowledge of on-disk
// layout and the revision/commit protocol.
type Store struct {
	vfs   vfs.VFS
	codec *format.Codec
	opts  Options

	meta      *Metadata
	metaDirty bool

	cache            *cache
	pendingPromotion map[uint64]struct{}

	closed   bool
	readOnly bool
	locked   bool
	modCount int

	log     *logger.Logger
	metrics *metrics.Metrics
}

// Open validates options against the mode and on-disk state, acquires the
// advisory lock if requested, and loads or initializes metadata.
func Open(v vfs.VFS, opts Options, log *logger.Logger, met *metrics.Metrics) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Default()
	}

	readOnly := opts.OpenMode == OpenModeReadOnly
	exists := metadataExists(v)

	switch opts.OpenMode {
	case OpenModeCreateOnly:
		if exists {
			return nil, errs.New(errs.InvalidMetadata, "database already exists", nil)
		}
	case OpenModeLoadOnly, OpenModeReadOnly:
		if !exists {
			return nil, errs.New(errs.InvalidMetadata, "database does not exist", nil)
		}
	case OpenModeLoadOrCreate:
		// either state is fine
	}

	var activeVFS vfs.VFS = v
	if readOnly {
		activeVFS = &vfs.ReadOnlyVFS{Inner: v}
	}

	s := &Store{
		vfs:              activeVFS,
		codec:            format.NewCodec(opts.Compressor, opts.Serializer),
		opts:             opts,
		cache:            newCache(opts.PageCacheSize),
		pendingPromotion: make(map[uint64]struct{}),
		readOnly:         readOnly,
		log:              log,
		metrics:          met,
	}

	if opts.FileLocking && !readOnly {
		if err := v.Lock(lockFilename); err != nil {
			return nil, errs.New(errs.Locked, "failed to acquire database lock", err)
		}
		s.locked = true
	}

	if exists {
		meta, err := s.loadMetadata()
		if err != nil {
			if s.locked {
				_ = v.Unlock(lockFilename)
			}
			return nil, err
		}
		s.meta = meta
	} else {
		// A brand-new database has no on-disk metadata yet; the first
		// commit must write it even if no pages were touched.
		s.meta = &Metadata{UUID: dbid.New()}
		s.metaDirty = true
	}

	return s, nil
}

func (s *Store) loadMetadata() (*Metadata, error) {
	candidates := []string{metadataFilename, metadataCopyFilename(), metadataPrevFilename()}
	var lastErr error
	for _, name := range candidates {
		var m Metadata
		if err := s.codec.ReadFile(s.vfs, name, &m); err == nil {
			return &m, nil
		} else if !errors.Is(err, vfs.ErrNotExist) {
			lastErr = err
		}
	}
	return nil, errs.New(errs.InvalidMetadata, "no valid metadata file could be read", lastErr)
}

// NewPageID allocates a page ID, reusing the free list's oldest entry
// before extending the counter.
func (s *Store) NewPageID() uint64 {
	if len(s.meta.FreeIDList) > 0 {
		id := s.meta.FreeIDList[0]
		s.meta.FreeIDList = s.meta.FreeIDList[1:]
		s.metaDirty = true
		return id
	}
	s.meta.IDCounter++
	s.metaDirty = true
	return s.meta.IDCounter
}

// Get returns the page for id, loading it from disk on a cache miss. It
// returns (nil, nil) if the page has never been written or carries a
// removal tombstone.
func (s *Store) Get(id uint64) (*Page, error) {
	if s.closed {
		return nil, errs.ErrClosed
	}
	if id == 0 {
		return nil, nil
	}
	if page, ok := s.cache.get(id); ok {
		if s.metrics != nil {
			s.metrics.CacheHitsTotal.Inc()
		}
		if page.Deleted {
			return nil, nil
		}
		return page, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMissesTotal.Inc()
	}

	page, flag, err := s.loadPageFromDisk(id)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}
	if flag != flagCurrent {
		s.pendingPromotion[id] = struct{}{}
	}

	evID, evPage, evicted := s.cache.insert(id, page, false)
	if evicted {
		if err := s.evictWriteBack(evID, evPage); err != nil {
			s.closed = true
			return nil, err
		}
	}
	if page.Deleted {
		return nil, nil
	}
	return page, nil
}

// loadPageFromDisk resolves flag-2, then flag-1, then flag-0, accepting a
// file iff its uuid and id match and its revision is committed (or, for a
// flag left by this session's own eviction write-back, already tracked in
// pendingPromotion).
func (s *Store) loadPageFromDisk(id uint64) (*Page, revisionFlag, error) {
	_, ownWrite := s.pendingPromotion[id]

	for _, flag := range []revisionFlag{flagNewUnsynced, flagNew, flagCurrent} {
		p := pagePath(id, flag)
		if !s.vfs.Exists(p) {
			continue
		}
		var page Page
		if err := s.codec.ReadFile(s.vfs, p, &page); err != nil {
			if flag == flagCurrent {
				return nil, 0, err
			}
			continue
		}
		if page.UUID != s.meta.UUID || page.ID != id {
			continue
		}
		if flag != flagCurrent && page.Revision > s.meta.Revision && !ownWrite {
			continue
		}
		return &page, flag, nil
	}
	return nil, 0, nil
}

// Update returns the page for id already marked dirty, for the caller to
// mutate in place. The returned pointer must not be retained past the next
// mutating call on the store.
func (s *Store) Update(id uint64) (*Page, error) {
	if s.closed {
		return nil, errs.ErrClosed
	}
	if s.readOnly {
		return nil, errs.ErrReadOnly
	}
	page, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}
	s.cache.markDirty(id)
	s.modCount++
	return page, nil
}

// Put installs content as the page for id, overwriting whatever was there.
func (s *Store) Put(id uint64, content NodeContent) error {
	if s.closed {
		return errs.ErrClosed
	}
	if s.readOnly {
		return errs.ErrReadOnly
	}
	page := &Page{UUID: s.meta.UUID, ID: id, Content: content}
	evID, evPage, evicted := s.cache.insert(id, page, true)
	s.modCount++
	if evicted {
		if err := s.evictWriteBack(evID, evPage); err != nil {
			s.closed = true
			return err
		}
	}
	return nil
}

// Remove installs a tombstone for id and enqueues it on the free list.
func (s *Store) Remove(id uint64) error {
	if s.closed {
		return errs.ErrClosed
	}
	if s.readOnly {
		return errs.ErrReadOnly
	}
	page := &Page{UUID: s.meta.UUID, ID: id, Deleted: true}
	evID, evPage, evicted := s.cache.insert(id, page, true)
	s.meta.FreeIDList = append(s.meta.FreeIDList, id)
	s.metaDirty = true
	s.modCount++
	if evicted {
		if err := s.evictWriteBack(evID, evPage); err != nil {
			s.closed = true
			return err
		}
	}
	return nil
}

// evictWriteBack durably writes a dirty page evicted outside a commit,
// stamping it with the next (uncommitted) revision. It becomes visible
// only once a later commit advances the metadata's committed revision.
func (s *Store) evictWriteBack(id uint64, page *Page) error {
	page.Revision = s.meta.Revision + 1
	page.UUID = s.meta.UUID
	if err := s.writePageDurable(page); err != nil {
		return err
	}
	if s.log != nil {
		s.log.LogEviction(id, page.Revision)
	}
	if s.metrics != nil {
		s.metrics.CacheEvictionsTotal.Inc()
	}
	return nil
}

// writePageDurable writes page to flag-1 directly (no sync requested) or
// to flag-2 then fsyncs and renames to flag-1 (sync requested), and
// records the id for promotion at the next successful commit.
func (s *Store) writePageDurable(page *Page) error {
	if s.opts.FileSync != vfs.SyncNone {
		p2 := pagePath(page.ID, flagNewUnsynced)
		if err := s.codec.WriteFile(s.vfs, p2, page, s.opts.FileSync); err != nil {
			return err
		}
		if err := s.vfs.SyncFile(p2, s.opts.FileSync); err != nil {
			return err
		}
		p1 := pagePath(page.ID, flagNew)
		if err := s.vfs.RenameFile(p2, p1); err != nil {
			return err
		}
	} else {
		p1 := pagePath(page.ID, flagNew)
		if err := s.codec.WriteFile(s.vfs, p1, page, vfs.SyncNone); err != nil {
			return err
		}
	}
	if s.metrics != nil {
		s.metrics.PagesWrittenTotal.Inc()
	}
	s.pendingPromotion[page.ID] = struct{}{}
	return nil
}

func (s *Store) writeMetadataDurable(meta *Metadata) error {
	tmp := metadataTmpFilename()
	if err := s.codec.WriteFile(s.vfs, tmp, meta, s.opts.FileSync); err != nil {
		return err
	}

	if raw, err := s.vfs.Read(metadataFilename); err == nil {
		_ = s.vfs.Write(metadataPrevFilename(), raw, vfs.SyncNone)
	}

	if err := s.vfs.RenameFile(tmp, metadataFilename); err != nil {
		return err
	}

	return s.codec.WriteFile(s.vfs, metadataCopyFilename(), meta, s.opts.FileSync)
}

func (s *Store) promotePending() error {
	for id := range s.pendingPromotion {
		oldPath := pagePath(id, flagNew)
		newPath := pagePath(id, flagCurrent)
		if err := s.vfs.RenameFile(oldPath, newPath); err != nil {
			if errors.Is(err, vfs.ErrNotExist) {
				delete(s.pendingPromotion, id)
				continue
			}
			return err
		}
		delete(s.pendingPromotion, id)
	}
	return nil
}

// Commit durably promotes every dirty page and the metadata document to a
// new revision. A no-op commit (nothing changed since the last one)
// returns nil without touching the revision.
func (s *Store) Commit() error {
	if s.closed {
		return errs.ErrClosed
	}
	if s.readOnly {
		return errs.ErrReadOnly
	}

	dirty := s.cache.dirtyIDs()
	if len(dirty) == 0 && !s.metaDirty && len(s.pendingPromotion) == 0 {
		return nil
	}

	start := time.Now()
	newRevision := s.meta.Revision + 1

	for _, id := range dirty {
		page, ok := s.cache.get(id)
		if !ok {
			continue
		}
		page.Revision = newRevision
		page.UUID = s.meta.UUID
		if err := s.writePageDurable(page); err != nil {
			s.closed = true
			s.recordCommit(newRevision, len(dirty), start, err)
			return errs.Wrap(err)
		}
	}

	s.meta.Revision = newRevision
	if err := s.writeMetadataDurable(s.meta); err != nil {
		s.closed = true
		s.recordCommit(newRevision, len(dirty), start, err)
		return errs.Wrap(err)
	}

	if err := s.promotePending(); err != nil {
		s.closed = true
		s.recordCommit(newRevision, len(dirty), start, err)
		return errs.Wrap(err)
	}

	for _, id := range dirty {
		s.cache.clearDirty(id)
	}
	s.metaDirty = false
	s.modCount = 0
	s.recordCommit(newRevision, len(dirty), start, nil)
	return nil
}

// recordCommit logs and instruments the outcome of one commit attempt.
func (s *Store) recordCommit(revision uint64, pagesWritten int, start time.Time, err error) {
	duration := time.Since(start)
	if s.log != nil {
		s.log.LogCommit(revision, pagesWritten, duration, err)
	}
	if s.metrics != nil {
		s.metrics.RecordCommit(err == nil, duration)
		if err == nil {
			s.metrics.KeyValueCount.Set(float64(s.meta.Auxiliary.KeyValueCount))
		}
	}
}

// RootID returns the tree root page ID, or 0 if none.
func (s *Store) RootID() uint64 { return s.meta.RootID }

// SetRootID updates the tree root pointer.
func (s *Store) SetRootID(id uint64) {
	s.meta.RootID = id
	s.metaDirty = true
}

// AuxiliaryMetadata returns a copy of the opaque auxiliary document.
func (s *Store) AuxiliaryMetadata() AuxMetadata { return s.meta.Auxiliary }

// SetAuxiliaryMetadata replaces the opaque auxiliary document.
func (s *Store) SetAuxiliaryMetadata(aux AuxMetadata) {
	s.meta.Auxiliary = aux
	s.metaDirty = true
}

// ModCount returns the number of mutations since the last successful
// commit, used by the auto-flush policy.
func (s *Store) ModCount() int { return s.modCount }

// Closed reports whether the store has failed a mutating operation and is
// refusing further writes.
func (s *Store) Closed() bool { return s.closed }

// ReadOnly reports whether the store was opened read-only.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Close releases the advisory lock. It does not flush; callers that want a
// best-effort final commit must call Commit first.
func (s *Store) Close() error {
	if s.locked {
		err := s.vfs.Unlock(lockFilename)
		s.locked = false
		return err
	}
	return nil
}
