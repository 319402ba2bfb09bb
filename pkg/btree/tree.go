// Package btree implements a disk-friendly B+tree whose nodes are pages of
// a pagestore.Store. Keys and values are opaque byte strings ordered
// lexicographically. Parent links are never stored on disk: insertion and
// removal pass the ancestor path explicitly down the call stack instead.
package btree

import (
	"github.com/grebedb/grebedb/internal/logger"
	"github.com/grebedb/grebedb/internal/metrics"
	"github.com/grebedb/grebedb/pkg/errs"
	"github.com/grebedb/grebedb/pkg/pagestore"
)

// maxDepth bounds tree descent so a corrupted cyclic page graph fails
// loudly instead of spinning forever.
const maxDepth = 65535

// ancestor records one step taken while descending toward a leaf: the
// internal page visited and the index of the child pointer followed.
type ancestor struct {
	id         uint64
	childIndex int
}

// Tree is a B+tree index backed by a page store.
type Tree struct {
	store       *pagestore.Store
	keysPerNode int
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// Open wraps store as a B+tree index with the given node fullness bound.
func Open(store *pagestore.Store, keysPerNode int, log *logger.Logger, met *metrics.Metrics) (*Tree, error) {
	if keysPerNode < 2 {
		return nil, errs.New(errs.InvalidConfig, "keys_per_node must be >= 2", nil)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Tree{store: store, keysPerNode: keysPerNode, log: log, metrics: met}, nil
}

// loadRoot returns the root page, or nil if the tree has no root yet or the
// root is the EmptyRoot sentinel. Both cases mean "no keys".
func (t *Tree) loadRoot() (*pagestore.Page, error) {
	rootID := t.store.RootID()
	if rootID == 0 {
		return nil, nil
	}
	page, err := t.store.Get(rootID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, errs.New(errs.InvalidPageData, "root page missing", nil)
	}
	if page.Content.Kind == pagestore.KindEmptyRoot {
		return nil, nil
	}
	return page, nil
}

// findLeaf descends from root to the leaf that would contain key.
func (t *Tree) findLeaf(rootID uint64, root *pagestore.Page, key []byte) (uint64, error) {
	id := rootID
	page := root
	for depth := 0; ; depth++ {
		if depth > maxDepth {
			return 0, errs.ErrLimitExceeded
		}
		switch page.Content.Kind {
		case pagestore.KindLeaf:
			return id, nil
		case pagestore.KindInternal:
			childIdx := searchInternal(page.Content.Internal.Keys, key)
			id = page.Content.Internal.Children[childIdx]
			next, err := t.store.Get(id)
			if err != nil {
				return 0, err
			}
			if next == nil {
				return 0, errs.New(errs.InvalidPageData, "child page missing", nil)
			}
			page = next
		default:
			return 0, errs.New(errs.InvalidPageData, "unexpected node kind", nil)
		}
	}
}

// descendWithPath is findLeaf plus the ancestor path needed by Put/Remove.
func (t *Tree) descendWithPath(rootID uint64, root *pagestore.Page, key []byte) ([]ancestor, uint64, error) {
	var path []ancestor
	id := rootID
	page := root
	for depth := 0; ; depth++ {
		if depth > maxDepth {
			return nil, 0, errs.ErrLimitExceeded
		}
		switch page.Content.Kind {
		case pagestore.KindLeaf:
			return path, id, nil
		case pagestore.KindInternal:
			childIdx := searchInternal(page.Content.Internal.Keys, key)
			path = append(path, ancestor{id: id, childIndex: childIdx})
			id = page.Content.Internal.Children[childIdx]
			next, err := t.store.Get(id)
			if err != nil {
				return nil, 0, err
			}
			if next == nil {
				return nil, 0, errs.New(errs.InvalidPageData, "child page missing", nil)
			}
			page = next
		default:
			return nil, 0, errs.New(errs.InvalidPageData, "unexpected node kind in path", nil)
		}
	}
}

// ContainsKey reports whether key is present.
func (t *Tree) ContainsKey(key []byte) (bool, error) {
	_, found, err := t.Get(key)
	return found, err
}

// Get returns the value for key.
func (t *Tree) Get(key []byte) ([]byte, bool, error) {
	rootID := t.store.RootID()
	root, err := t.loadRoot()
	if err != nil {
		return nil, false, err
	}
	if root == nil {
		return nil, false, nil
	}

	leafID, err := t.findLeaf(rootID, root, key)
	if err != nil {
		return nil, false, err
	}
	page, err := t.store.Get(leafID)
	if err != nil {
		return nil, false, err
	}
	if page == nil || page.Content.Kind != pagestore.KindLeaf {
		return nil, false, errs.New(errs.InvalidPageData, "expected leaf page", nil)
	}

	idx, found := searchLeaf(page.Content.Leaf.Keys, key)
	if !found {
		return nil, false, nil
	}
	// Copy out of the cache: the page may be evicted or mutated after this
	// call returns.
	return cloneBytes(page.Content.Leaf.Values[idx]), true, nil
}

// GetBuf looks up key and, when found, replaces the contents of *buf with
// its value, reusing the buffer's capacity; *buf is left unchanged when the
// key is absent. It reports whether the key was present.
func (t *Tree) GetBuf(key []byte, buf *[]byte) (bool, error) {
	value, found, err := t.Get(key)
	if err != nil || !found {
		return false, err
	}
	*buf = append((*buf)[:0], value...)
	return true, nil
}

// Put inserts or overwrites (key, value).
func (t *Tree) Put(key, value []byte) error {
	rootID := t.store.RootID()

	if rootID == 0 {
		id := t.store.NewPageID()
		leaf := &pagestore.LeafNode{Keys: [][]byte{cloneBytes(key)}, Values: [][]byte{cloneBytes(value)}}
		if err := t.store.Put(id, pagestore.NodeContent{Kind: pagestore.KindLeaf, Leaf: leaf}); err != nil {
			return err
		}
		t.store.SetRootID(id)
		t.bumpCount(1)
		return nil
	}

	root, err := t.store.Get(rootID)
	if err != nil {
		return err
	}
	if root == nil {
		return errs.New(errs.InvalidPageData, "root page missing", nil)
	}

	if root.Content.Kind == pagestore.KindEmptyRoot {
		leaf := &pagestore.LeafNode{Keys: [][]byte{cloneBytes(key)}, Values: [][]byte{cloneBytes(value)}}
		if err := t.store.Put(rootID, pagestore.NodeContent{Kind: pagestore.KindLeaf, Leaf: leaf}); err != nil {
			return err
		}
		t.bumpCount(1)
		return nil
	}

	path, leafID, err := t.descendWithPath(rootID, root, key)
	if err != nil {
		return err
	}

	leafPage, err := t.store.Update(leafID)
	if err != nil {
		return err
	}
	if leafPage == nil || leafPage.Content.Kind != pagestore.KindLeaf {
		return errs.New(errs.InvalidPageData, "expected leaf page", nil)
	}
	leaf := leafPage.Content.Leaf

	idx, found := searchLeaf(leaf.Keys, key)
	if found {
		leaf.Values[idx] = cloneBytes(value)
		return nil
	}

	leaf.Keys = insertAt(leaf.Keys, idx, cloneBytes(key))
	leaf.Values = insertAt(leaf.Values, idx, cloneBytes(value))
	t.bumpCount(1)

	if len(leaf.Keys) > t.keysPerNode {
		return t.splitLeaf(path, leafID, leaf)
	}
	return nil
}

// splitLeaf splits an overfull leaf and promotes its right half's first key
// into the parent (creating a new root if the leaf was the root).
func (t *Tree) splitLeaf(path []ancestor, leafID uint64, leaf *pagestore.LeafNode) error {
	n := len(leaf.Keys)
	leftCount := n / 2

	rightKeys := append([][]byte(nil), leaf.Keys[leftCount:]...)
	rightValues := append([][]byte(nil), leaf.Values[leftCount:]...)
	leaf.Keys = leaf.Keys[:leftCount:leftCount]
	leaf.Values = leaf.Values[:leftCount:leftCount]

	rightID := t.store.NewPageID()
	rightNext := leaf.NextLeaf
	leaf.NextLeaf = rightID

	right := &pagestore.LeafNode{Keys: rightKeys, Values: rightValues, NextLeaf: rightNext}
	if err := t.store.Put(rightID, pagestore.NodeContent{Kind: pagestore.KindLeaf, Leaf: right}); err != nil {
		return err
	}

	if t.metrics != nil {
		t.metrics.TreeSplitsTotal.Inc()
	}
	return t.insertIntoParent(path, leafID, rightID, rightKeys[0])
}

// insertIntoParent records a new (promotedKey, rightID) pair in the parent
// named by the tail of path, splitting the parent in turn if it overflows,
// and creates a new root if path is empty.
func (t *Tree) insertIntoParent(path []ancestor, leftID, rightID uint64, promotedKey []byte) error {
	if len(path) == 0 {
		rootID := t.store.NewPageID()
		root := &pagestore.InternalNode{Keys: [][]byte{cloneBytes(promotedKey)}, Children: []uint64{leftID, rightID}}
		if err := t.store.Put(rootID, pagestore.NodeContent{Kind: pagestore.KindInternal, Internal: root}); err != nil {
			return err
		}
		t.store.SetRootID(rootID)
		return nil
	}

	last := len(path) - 1
	parentID := path[last].id
	ci := path[last].childIndex

	parentPage, err := t.store.Update(parentID)
	if err != nil {
		return err
	}
	if parentPage == nil || parentPage.Content.Kind != pagestore.KindInternal {
		return errs.New(errs.InvalidPageData, "expected internal page", nil)
	}
	internal := parentPage.Content.Internal

	internal.Keys = insertAt(internal.Keys, ci, cloneBytes(promotedKey))
	internal.Children = insertAt(internal.Children, ci+1, rightID)

	if len(internal.Keys) <= t.keysPerNode {
		return nil
	}

	n := len(internal.Keys)
	leftKeyCount := (n+1)/2 - 1
	leftChildCount := (n + 1) / 2
	promoted := internal.Keys[leftKeyCount]

	newRightKeys := append([][]byte(nil), internal.Keys[leftKeyCount+1:]...)
	newRightChildren := append([]uint64(nil), internal.Children[leftChildCount:]...)
	internal.Keys = internal.Keys[:leftKeyCount:leftKeyCount]
	internal.Children = internal.Children[:leftChildCount:leftChildCount]

	newRightID := t.store.NewPageID()
	newRight := &pagestore.InternalNode{Keys: newRightKeys, Children: newRightChildren}
	if err := t.store.Put(newRightID, pagestore.NodeContent{Kind: pagestore.KindInternal, Internal: newRight}); err != nil {
		return err
	}

	if t.metrics != nil {
		t.metrics.TreeSplitsTotal.Inc()
	}
	return t.insertIntoParent(path[:last], parentID, newRightID, promoted)
}

// Remove deletes key if present.
func (t *Tree) Remove(key []byte) error {
	rootID := t.store.RootID()
	if rootID == 0 {
		return nil
	}

	root, err := t.store.Get(rootID)
	if err != nil {
		return err
	}
	if root == nil || root.Content.Kind == pagestore.KindEmptyRoot {
		return nil
	}

	path, leafID, err := t.descendWithPath(rootID, root, key)
	if err != nil {
		return err
	}

	leafPage, err := t.store.Update(leafID)
	if err != nil {
		return err
	}
	if leafPage == nil || leafPage.Content.Kind != pagestore.KindLeaf {
		return errs.New(errs.InvalidPageData, "expected leaf page", nil)
	}
	leaf := leafPage.Content.Leaf

	idx, found := searchLeaf(leaf.Keys, key)
	if !found {
		return nil
	}

	leaf.Keys = removeAt(leaf.Keys, idx)
	leaf.Values = removeAt(leaf.Values, idx)
	t.bumpCount(-1)

	if len(leaf.Keys) > 0 {
		return nil
	}
	return t.collapseEmptyLeaf(path, leafID, leaf.NextLeaf)
}

// collapseEmptyLeaf asks the parent named by the tail of path to drop its
// pointer to the now-empty leaf, rewires the left neighbor's leaf link, and
// propagates upward if the parent becomes a degenerate single-child node.
//
// The leaf is only removed when it is not its parent's first child: its
// global predecessor is then the rightmost leaf under the previous child of
// the same parent (that child itself, or a deeper leaf when an earlier
// collapse spliced this leaf up a level), so the predecessor's next-leaf
// link can be rewired past it. When the empty leaf is its parent's first
// child the predecessor lives in another subtree and cannot be reached
// through the ancestor path; the leaf stays in place empty, which cursors
// tolerate.
func (t *Tree) collapseEmptyLeaf(path []ancestor, leafID uint64, leafNext uint64) error {
	if len(path) == 0 {
		return t.store.Put(leafID, pagestore.NodeContent{Kind: pagestore.KindEmptyRoot})
	}

	last := len(path) - 1
	parentID := path[last].id
	ci := path[last].childIndex

	if ci == 0 {
		return nil
	}

	parentPage, err := t.store.Update(parentID)
	if err != nil {
		return err
	}
	if parentPage == nil || parentPage.Content.Kind != pagestore.KindInternal {
		return errs.New(errs.InvalidPageData, "expected internal page", nil)
	}
	internal := parentPage.Content.Internal

	keyIdx := ci
	if keyIdx >= len(internal.Keys) {
		keyIdx = ci - 1
	}

	predID := internal.Children[ci-1]
	for depth := 0; depth <= maxDepth; depth++ {
		page, err := t.store.Get(predID)
		if err != nil {
			return err
		}
		if page == nil || page.Content.Kind != pagestore.KindInternal {
			break
		}
		predID = page.Content.Internal.Children[len(page.Content.Internal.Children)-1]
	}
	if err := t.relinkLeafNext(predID, leafNext); err != nil {
		return err
	}
	// Loading the predecessor may have evicted the parent; fetch it again.
	if parentPage, err = t.store.Update(parentID); err != nil {
		return err
	}
	internal = parentPage.Content.Internal

	internal.Children = removeAt(internal.Children, ci)
	internal.Keys = removeAt(internal.Keys, keyIdx)

	if err := t.store.Remove(leafID); err != nil {
		return err
	}

	if len(internal.Children) != 1 {
		return nil
	}

	onlyChild := internal.Children[0]
	if err := t.store.Remove(parentID); err != nil {
		return err
	}
	if t.metrics != nil {
		t.metrics.TreeRemovePropagated.Inc()
	}
	return t.propagateCollapse(path[:last], onlyChild)
}

func (t *Tree) relinkLeafNext(id uint64, next uint64) error {
	page, err := t.store.Update(id)
	if err != nil {
		return err
	}
	if page == nil || page.Content.Kind != pagestore.KindLeaf {
		return errs.New(errs.InvalidPageData, "expected leaf page for relink", nil)
	}
	page.Content.Leaf.NextLeaf = next
	return nil
}

// propagateCollapse splices a degenerate internal node's only child directly
// into its own slot in the grandparent (or makes it the new root).
func (t *Tree) propagateCollapse(path []ancestor, onlyChild uint64) error {
	if len(path) == 0 {
		t.store.SetRootID(onlyChild)
		return nil
	}

	last := len(path) - 1
	parentID := path[last].id
	ci := path[last].childIndex

	parentPage, err := t.store.Update(parentID)
	if err != nil {
		return err
	}
	if parentPage == nil || parentPage.Content.Kind != pagestore.KindInternal {
		return errs.New(errs.InvalidPageData, "expected internal page", nil)
	}
	parentPage.Content.Internal.Children[ci] = onlyChild
	return nil
}

func (t *Tree) bumpCount(delta int) {
	aux := t.store.AuxiliaryMetadata()
	if delta > 0 {
		aux.KeyValueCount += uint64(delta)
	} else if d := uint64(-delta); aux.KeyValueCount >= d {
		aux.KeyValueCount -= d
	} else {
		aux.KeyValueCount = 0
	}
	t.store.SetAuxiliaryMetadata(aux)
}

// Flush durably commits the underlying page store.
func (t *Tree) Flush() error {
	return t.store.Commit()
}

// Upgrade writes nothing and returns nil. The auxiliary document always
// decodes to its zero value when absent, so default auxiliary metadata is
// already in place; this exists for interface parity with older on-disk
// layouts.
func (t *Tree) Upgrade() error {
	return nil
}
