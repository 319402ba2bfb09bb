// ABOUTME: Breadth-first structural verification of the whole tree
// ABOUTME: Checks child counts, key ordering, and ancestor-derived bounds

package btree

import (
	"bytes"
	"fmt"

	"github.com/grebedb/grebedb/pkg/errs"
	"github.com/grebedb/grebedb/pkg/pagestore"
)

// ProgressFunc receives the number of pages verified so far and a rough
// estimate of the total, for callers reporting verify progress on large
// trees.
type ProgressFunc func(current, estimatedTotal int)

type verifyItem struct {
	id    uint64
	lower []byte // inclusive lower bound imposed by the parent, nil = none
	upper []byte // exclusive upper bound imposed by the parent, nil = none
}

// Verify walks the tree breadth-first, checking the internal-node
// child/key count invariant, key ordering, and that every node's keys fall
// within the bounds implied by its ancestors. It reports the first
// violation found.
func (t *Tree) Verify(progress ProgressFunc) error {
	root, err := t.loadRoot()
	if err != nil {
		return err
	}
	if root == nil {
		return nil
	}

	estimatedTotal := t.estimateNodeCount()
	current := 0
	queue := []verifyItem{{id: t.store.RootID()}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		current++
		if progress != nil {
			progress(current, estimatedTotal)
		}

		page, err := t.store.Get(item.id)
		if err != nil {
			return err
		}
		if page == nil {
			return errs.New(errs.InvalidPageData, fmt.Sprintf("page %d: missing", item.id), nil)
		}

		switch page.Content.Kind {
		case pagestore.KindInternal:
			internal := page.Content.Internal
			if len(internal.Children) != len(internal.Keys)+1 {
				return errs.New(errs.InvalidPageData, fmt.Sprintf("page %d: |children| != |keys|+1", item.id), nil)
			}
			if !sortedStrict(internal.Keys) {
				return errs.New(errs.InvalidPageData, fmt.Sprintf("page %d: keys not strictly ascending", item.id), nil)
			}
			if err := checkBounds(item.id, internal.Keys, item.lower, item.upper); err != nil {
				return err
			}
			for i, childID := range internal.Children {
				next := verifyItem{id: childID}
				if i > 0 {
					next.lower = internal.Keys[i-1]
				}
				if i < len(internal.Keys) {
					next.upper = internal.Keys[i]
				}
				queue = append(queue, next)
			}
		case pagestore.KindLeaf:
			leaf := page.Content.Leaf
			if len(leaf.Keys) != len(leaf.Values) {
				return errs.New(errs.InvalidPageData, fmt.Sprintf("page %d: |keys| != |values|", item.id), nil)
			}
			if !sortedStrict(leaf.Keys) {
				return errs.New(errs.InvalidPageData, fmt.Sprintf("page %d: keys not strictly ascending", item.id), nil)
			}
			if err := checkBounds(item.id, leaf.Keys, item.lower, item.upper); err != nil {
				return err
			}
		case pagestore.KindEmptyRoot:
			return errs.New(errs.InvalidPageData, fmt.Sprintf("page %d: EmptyRoot below the root", item.id), nil)
		default:
			return errs.New(errs.InvalidPageData, fmt.Sprintf("page %d: unknown node kind", item.id), nil)
		}
	}
	return nil
}

func checkBounds(id uint64, keys [][]byte, lower, upper []byte) error {
	if len(keys) == 0 {
		return nil
	}
	if lower != nil && bytes.Compare(keys[0], lower) < 0 {
		return errs.New(errs.InvalidPageData, fmt.Sprintf("page %d: key below parent-imposed bound", id), nil)
	}
	if upper != nil && bytes.Compare(keys[len(keys)-1], upper) >= 0 {
		return errs.New(errs.InvalidPageData, fmt.Sprintf("page %d: key above parent-imposed bound", id), nil)
	}
	return nil
}

// estimateNodeCount gives Verify's progress callback a rough total without
// a separate counting pass.
func (t *Tree) estimateNodeCount() int {
	if t.keysPerNode == 0 {
		return 1
	}
	aux := t.store.AuxiliaryMetadata()
	est := int(aux.KeyValueCount)/t.keysPerNode + 1
	if est < 1 {
		est = 1
	}
	return est
}
