// ABOUTME: Binary search helpers over sorted key slices
// ABOUTME: Shared by lookup, insertion and cursor seek paths

package btree

import (
	"bytes"
	"sort"
)

// searchInternal returns the child index to descend into for key: the
// count of separator keys that are <= key.
func searchInternal(keys [][]byte, key []byte) int {
	return sort.Search(len(keys), func(i int) bool {
		return bytes.Compare(keys[i], key) > 0
	})
}

// searchLeaf returns the insertion point for key and whether it is already
// present at that index.
func searchLeaf(keys [][]byte, key []byte) (int, bool) {
	idx := sort.Search(len(keys), func(i int) bool {
		return bytes.Compare(keys[i], key) >= 0
	})
	if idx < len(keys) && bytes.Equal(keys[idx], key) {
		return idx, true
	}
	return idx, false
}

func sortedStrict(keys [][]byte) bool {
	for i := 1; i < len(keys); i++ {
		if bytes.Compare(keys[i-1], keys[i]) >= 0 {
			return false
		}
	}
	return true
}
