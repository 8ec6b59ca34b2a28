// Package canvas assembles the root canvas snapshot — dimensions,
// background, the layer tree, annotations, and metadata — and the tile
// and property diffing used to tell embedders what changed between two
// snapshots (spec.md §3 "Canvas state", §4.2, §4.5).
package canvas

import "sync/atomic"

// Node is a generic persistent/transient container for the top-level
// canvas fields that don't need tile-level structural sharing — the
// annotation list and the metadata map (spec.md's design note calling
// for "a persistent/transient container generic over its payload").
// Unlike proptree.Node, T is an opaque value: Transient is only safe
// when the caller treats the cloned value as the new exclusive owner
// (callers pass already-copied slices/maps into Set).
type Node[T any] struct {
	value T
	refs  atomic.Int32
}

// NewNode wraps an initial value with one reference.
func NewNode[T any](v T) *Node[T] {
	n := &Node[T]{value: v}
	n.refs.Store(1)
	return n
}

func (n *Node[T]) Retain() *Node[T] {
	if n == nil {
		return nil
	}
	n.refs.Add(1)
	return n
}

func (n *Node[T]) Release() {
	if n == nil {
		return
	}
	n.refs.Add(-1)
}

// Value returns the wrapped value. Callers must not mutate it in place;
// go through Transient/Set/Persist instead.
func (n *Node[T]) Value() T { return n.value }

// Transient produces a mutable builder seeded with n's current value.
func (n *Node[T]) Transient() *TransientNode[T] {
	return &TransientNode[T]{value: n.value}
}

// TransientNode is the exclusively-owned, mutable counterpart of Node.
type TransientNode[T any] struct {
	value T
}

func (t *TransientNode[T]) Value() T    { return t.value }
func (t *TransientNode[T]) Set(v T)     { t.value = v }
func (t *TransientNode[T]) Persist() *Node[T] {
	n := &Node[T]{value: t.value}
	n.refs.Store(1)
	return n
}
