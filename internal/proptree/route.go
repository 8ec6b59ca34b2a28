package proptree

import "github.com/inkstream/paintcore/internal/wire"

// LeafKind distinguishes what a route's terminal node is, so callers can
// dispatch without re-walking the tree (spec.md §4.3).
type LeafKind uint8

const (
	LeafKindGroup LeafKind = iota
	LeafKindLayer
)

// Route is one entry of the flattened id→path index (spec.md §4.3):
// "u16 → (depth, path[], leaf_kind)". Path is the sequence of child
// indices from the tree root to the named node.
type Route struct {
	Depth    int
	Path     []int
	LeafKind LeafKind
}

// BuildRoutes walks root depth-first and returns every node's route
// keyed by its layer ID, rebuilt from scratch whenever the tree's shape
// changes (spec.md §4.3: "rebuilt on structural change").
func BuildRoutes(root *Node) map[wire.LayerID]Route {
	routes := make(map[wire.LayerID]Route)
	if root == nil {
		return routes
	}
	var walk func(n *Node, path []int)
	walk = func(n *Node, path []int) {
		kind := LeafKindLayer
		if n.IsGroup() {
			kind = LeafKindGroup
		}
		p := make([]int, len(path))
		copy(p, path)
		routes[n.Props.ID] = Route{Depth: len(p), Path: p, LeafKind: kind}
		for i, c := range n.Children {
			walk(c, append(path, i))
		}
	}
	walk(root, nil)
	return routes
}

// ResolveContent finds the route for id and returns the read-only
// persistent node at that path, or nil if the route is stale (the
// tree's shape changed since the route table was built — spec.md §4.3
// route validity).
func ResolveContent(root *Node, routes map[wire.LayerID]Route, id wire.LayerID) *Node {
	route, ok := routes[id]
	if !ok {
		return nil
	}
	n := root.Walk(route.Path)
	if n == nil || n.Props.ID != id {
		return nil
	}
	return n
}

// EntryTransientContent walks from a transient root down a stored route,
// converting each node along the path to a mutable builder via
// MutateChild, and returns the builder at the end of the path — the
// adapter spec.md §4.3 calls entry_transient_content / entry_transient_props,
// merged here into one walk since this implementation keeps content and
// props on the same node (see node.go's package doc).
func EntryTransientContent(root *TransientNode, path []int) *TransientNode {
	cur := root
	for _, idx := range path {
		if cur == nil || !cur.IsGroup() || idx < 0 || idx >= cur.NumChildren() {
			return nil
		}
		cur = cur.MutateChild(idx)
	}
	return cur
}
