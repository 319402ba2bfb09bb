// ABOUTME: Forward cursor over the leaf chain with optional range bounds
// ABOUTME: Holds a cloned leaf snapshot, never a pointer into the cache

package btree

import (
	"bytes"

	"github.com/grebedb/grebedb/pkg/errs"
	"github.com/grebedb/grebedb/pkg/pagestore"
)

// Bound is an upper range bound for a cursor walk.
type Bound struct {
	Key       []byte
	Inclusive bool
}

// Cursor walks key-value pairs in ascending order. It holds a cloned
// snapshot of the current leaf and an index, never a reference into the
// page cache, so it survives eviction of the leaf it was seeked into (but
// not a mutation of the tree itself, which the caller must not interleave
// with cursor use).
type Cursor struct {
	tree    *Tree
	leaf    *pagestore.LeafNode
	index   int
	started bool
	err     error
}

// NewCursor creates a cursor over tree. Call Start to seek, or call Next
// directly to implicitly start from the lexicographically smallest key.
func (t *Tree) NewCursor() *Cursor {
	return &Cursor{tree: t}
}

// Start seeks the cursor to the leaf that would contain key, positioned at
// key's insertion point (at-or-after key).
func (c *Cursor) Start(key []byte) error {
	c.started = true
	root, err := c.tree.loadRoot()
	if err != nil {
		c.err = err
		return err
	}
	if root == nil {
		c.leaf = nil
		return nil
	}

	leafID, err := c.tree.findLeaf(c.tree.store.RootID(), root, key)
	if err != nil {
		c.err = err
		return err
	}
	page, err := c.tree.store.Get(leafID)
	if err != nil {
		c.err = err
		return err
	}
	if page == nil || page.Content.Kind != pagestore.KindLeaf {
		err := errs.New(errs.InvalidPageData, "expected leaf page", nil)
		c.err = err
		return err
	}

	c.leaf = cloneLeaf(page.Content.Leaf)
	idx, _ := searchLeaf(c.leaf.Keys, key)
	c.index = idx
	return nil
}

// Next returns the next (key, value) pair, or ok=false once the walk is
// exhausted or upper is reached. upper may be nil for no bound.
func (c *Cursor) Next(upper *Bound) (key, value []byte, ok bool, err error) {
	if c.err != nil {
		return nil, nil, false, c.err
	}
	if !c.started {
		if err := c.Start(nil); err != nil {
			return nil, nil, false, err
		}
	}

	for c.leaf != nil && c.index >= len(c.leaf.Keys) {
		next := c.leaf.NextLeaf
		if next == 0 {
			c.leaf = nil
			return nil, nil, false, nil
		}
		page, err := c.tree.store.Get(next)
		if err != nil {
			c.err = err
			return nil, nil, false, err
		}
		if page == nil || page.Content.Kind != pagestore.KindLeaf {
			err := errs.New(errs.InvalidPageData, "expected leaf page in cursor walk", nil)
			c.err = err
			return nil, nil, false, err
		}
		c.leaf = cloneLeaf(page.Content.Leaf)
		c.index = 0
	}
	if c.leaf == nil {
		return nil, nil, false, nil
	}

	candidate := c.leaf.Keys[c.index]
	if upper != nil {
		cmp := bytes.Compare(candidate, upper.Key)
		if (upper.Inclusive && cmp > 0) || (!upper.Inclusive && cmp >= 0) {
			c.leaf = nil
			return nil, nil, false, nil
		}
	}

	v := c.leaf.Values[c.index]
	c.index++
	return candidate, v, true, nil
}
