// ABOUTME: Small generic slice helpers for node key/value vectors
// ABOUTME: Insert and remove in place; clone into freshly allocated slices

package btree

import "github.com/grebedb/grebedb/pkg/pagestore"

func insertAt[T any](s []T, idx int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[idx+1:], s[idx:])
	s[idx] = v
	return s
}

func removeAt[T any](s []T, idx int) []T {
	return append(s[:idx], s[idx+1:]...)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneLeaf(l *pagestore.LeafNode) *pagestore.LeafNode {
	return &pagestore.LeafNode{
		Keys:     append([][]byte(nil), l.Keys...),
		Values:   append([][]byte(nil), l.Values...),
		NextLeaf: l.NextLeaf,
	}
}
