// ABOUTME: Tests for the LRU page cache eviction order and dirty set

package pagestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheEvictsLRUTail(t *testing.T) {
	c := newCache(2)

	p1 := &Page{ID: 1}
	p2 := &Page{ID: 2}
	p3 := &Page{ID: 3}

	_, _, evicted := c.insert(1, p1, true)
	require.False(t, evicted)
	_, _, evicted = c.insert(2, p2, false)
	require.False(t, evicted)

	// touch 1 so it's no longer the LRU tail
	_, _ = c.get(1)

	evID, evPage, evicted := c.insert(3, p3, false)
	require.True(t, evicted)
	require.Equal(t, uint64(2), evID)
	require.Equal(t, p2, evPage)

	_, ok := c.get(2)
	require.False(t, ok)
}

func TestCacheDirtySet(t *testing.T) {
	c := newCache(4)
	c.insert(1, &Page{ID: 1}, false)
	require.Empty(t, c.dirtyIDs())

	c.markDirty(1)
	require.Equal(t, []uint64{1}, c.dirtyIDs())

	c.clearDirty(1)
	require.Empty(t, c.dirtyIDs())
}
