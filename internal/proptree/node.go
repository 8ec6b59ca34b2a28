// Package proptree implements the layer tree: an ordered tree of layer
// content leaves and layer groups, each node carrying both its drawable
// content and its per-node properties, plus the flattened id→path route
// index (spec.md §3, §4.2, §4.3).
//
// The distilled spec describes "layers" and "props" as two parallel
// trees that must mirror each other in shape at all times (spec.md §3:
// "layers and props mirror each other in shape"). This implementation
// keeps one tree whose nodes carry both a Props record and either leaf
// content or children, so the mirroring invariant holds by construction
// instead of needing to be checked — the same adaptation direction the
// spec's own design notes take for the transient/persistent duality
// (spec.md §9: "implement as an immutable node plus an editable builder
// variant"). Recorded as a design decision in DESIGN.md.
package proptree

import (
	"sync/atomic"

	"github.com/inkstream/paintcore/internal/layer"
	"github.com/inkstream/paintcore/internal/wire"
)

// Props is the per-node properties record of spec.md §3.
type Props struct {
	ID       wire.LayerID
	Opacity  uint16 // u15
	Blend    wire.BlendMode
	Hidden   bool
	Isolated bool
	Censored bool
	Title    string
}

// Node is the persistent, immutable form of one layer-tree node: either
// a leaf (Leaf != nil) or a group (Children != nil).
type Node struct {
	Props    Props
	Leaf     *layer.Content // non-nil for leaves
	Children []*Node        // non-nil for groups

	refs atomic.Int32
}

// NewLeaf creates a persistent leaf node wrapping an existing content.
// Ownership of one reference on content transfers to the node.
func NewLeaf(props Props, content *layer.Content) *Node {
	n := &Node{Props: props, Leaf: content}
	n.refs.Store(1)
	return n
}

// NewGroup creates a persistent group node. Ownership of one reference
// on each child transfers to the node.
func NewGroup(props Props, children []*Node) *Node {
	n := &Node{Props: props, Children: children}
	n.refs.Store(1)
	return n
}

func (n *Node) IsGroup() bool { return n.Children != nil || n.Leaf == nil }

// Retain increments the reference count and returns n.
func (n *Node) Retain() *Node {
	if n == nil {
		return nil
	}
	n.refs.Add(1)
	return n
}

// Release decrements the reference count, releasing the leaf content or
// every child on the last reference.
func (n *Node) Release() {
	if n == nil {
		return
	}
	if n.refs.Add(-1) == 0 {
		n.Leaf.Release()
		for _, c := range n.Children {
			c.Release()
		}
	}
}

// Transient clones n's top level into a uniquely-owned, mutable
// TransientNode (spec.md §4.2). Children are shared by retaining their
// pointers; the leaf content (if any) is fully converted to a
// TransientContent since a leaf node has no further sharing to do below
// it.
func (n *Node) Transient() *TransientNode {
	tn := &TransientNode{props: n.Props}
	if n.IsGroup() {
		tn.children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			tn.children[i] = c.Retain()
		}
	} else {
		tn.leaf = n.Leaf.Transient()
	}
	return tn
}

// Walk finds the node at a path (sequence of child indices from the
// root), returning nil if the path is invalid for this tree's current
// shape (spec.md §4.3, route validity).
func (n *Node) Walk(path []int) *Node {
	cur := n
	for _, idx := range path {
		if cur == nil || !cur.IsGroup() || idx < 0 || idx >= len(cur.Children) {
			return nil
		}
		cur = cur.Children[idx]
	}
	return cur
}

// TransientNode is the exclusively-owned, mutable form of Node.
type TransientNode struct {
	props    Props
	leaf     *layer.TransientContent // set iff this node is a leaf
	children []*Node                 // set iff this node is a group
	dirty    map[int]*TransientNode  // in-progress mutated children, keyed by index
}

// NewTransientLeaf creates a brand-new transient leaf (spec.md §3,
// "born empty").
func NewTransientLeaf(props Props, tilesX, tilesY int) *TransientNode {
	return &TransientNode{props: props, leaf: layer.NewTransient(tilesX, tilesY)}
}

// NewTransientGroup creates a brand-new transient group with no children.
func NewTransientGroup(props Props) *TransientNode {
	return &TransientNode{props: props, children: nil}
}

func (tn *TransientNode) IsGroup() bool    { return tn.leaf == nil }
func (tn *TransientNode) Props() Props     { return tn.props }
func (tn *TransientNode) SetProps(p Props) { tn.props = p }

// Leaf returns the transient leaf content, or nil if this is a group.
func (tn *TransientNode) Leaf() *layer.TransientContent { return tn.leaf }

// NumChildren returns the number of children, or 0 for a leaf.
func (tn *TransientNode) NumChildren() int { return len(tn.children) }

// Child returns the (still shared, persistent) child at index i without
// making it mutable. Returns nil if that slot currently has an
// in-progress mutation (use MutateChild to see its live contents).
func (tn *TransientNode) Child(i int) *Node {
	if i < 0 || i >= len(tn.children) {
		return nil
	}
	if _, ok := tn.dirty[i]; ok {
		return nil
	}
	return tn.children[i]
}

// MutateChild converts the child at index i into a transient builder
// (making a fresh copy-on-write clone the first time it's touched), and
// returns it for further mutation. Subsequent calls for the same index
// return the same in-progress builder (spec.md §4.2: "no transient node
// may be aliased" — exactly one builder per slot at a time).
func (tn *TransientNode) MutateChild(i int) *TransientNode {
	if i < 0 || i >= len(tn.children) {
		return nil
	}
	if d, ok := tn.dirty[i]; ok {
		return d
	}
	d := tn.children[i].Transient()
	if tn.dirty == nil {
		tn.dirty = make(map[int]*TransientNode)
	}
	tn.dirty[i] = d
	return d
}

// InsertChild inserts a persistent child at index i, taking ownership
// of one reference on it.
func (tn *TransientNode) InsertChild(i int, child *Node) {
	if i < 0 || i > len(tn.children) {
		i = len(tn.children)
	}
	tn.children = append(tn.children, nil)
	copy(tn.children[i+1:], tn.children[i:])
	tn.children[i] = child
}

// RemoveChild removes and releases the child at index i.
func (tn *TransientNode) RemoveChild(i int) {
	if i < 0 || i >= len(tn.children) {
		return
	}
	tn.children[i].Release()
	tn.children = append(tn.children[:i], tn.children[i+1:]...)
	if tn.dirty != nil {
		delete(tn.dirty, i)
	}
}

// ReorderChildren replaces the child order given a permutation of the
// current indices (spec.md §3, LAYER_ORDER). perm[i] is the old index
// that should now be at position i.
func (tn *TransientNode) ReorderChildren(perm []int) {
	newChildren := make([]*Node, len(perm))
	for i, old := range perm {
		newChildren[i] = tn.children[old]
	}
	tn.children = newChildren
}

// ResizeAll recursively resizes every leaf's tile grid under tn,
// shifting tiles by the given tile offset (spec.md §4.1, CANVAS_RESIZE
// applied across the whole layer tree).
func (tn *TransientNode) ResizeAll(newTilesX, newTilesY, tileOffsetX, tileOffsetY int) {
	if tn.IsGroup() {
		for i := 0; i < len(tn.children); i++ {
			tn.MutateChild(i).ResizeAll(newTilesX, newTilesY, tileOffsetX, tileOffsetY)
		}
		return
	}
	tn.leaf.Resize(newTilesX, newTilesY, tileOffsetX, tileOffsetY)
}

// Persist converts tn into an immutable, refcounted Node, recursively
// persisting any in-progress child builders first (spec.md §4.2).
func (tn *TransientNode) Persist() *Node {
	for i, d := range tn.dirty {
		tn.children[i].Release()
		tn.children[i] = d.Persist()
	}
	tn.dirty = nil

	if tn.IsGroup() {
		return NewGroup(tn.props, tn.children)
	}
	return NewLeaf(tn.props, tn.leaf.Persist())
}
