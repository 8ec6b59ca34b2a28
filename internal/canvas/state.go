package canvas

import (
	"github.com/inkstream/paintcore/internal/cache"
	"github.com/inkstream/paintcore/internal/proptree"
	"github.com/inkstream/paintcore/internal/tile"
	"github.com/inkstream/paintcore/internal/wire"
)

// routeCache memoizes BuildRoutes by root pointer: a layer tree's shape
// (and therefore its route index) only changes on a structural command,
// so most Routes() calls within a burst of attribute/paint commands
// against the same root hit this cache instead of re-walking the tree.
// Bounded to a small soft limit since stale roots are cheap to rebuild
// and we don't want this cache to pin old, unreferenced tree revisions
// in memory indefinitely.
var routeCache = cache.New[*proptree.Node, map[wire.LayerID]proptree.Route](32)

// State is the persistent, immutable root snapshot of a canvas
// (spec.md §3 "Canvas state": width, height, offset, background tile,
// layer tree, annotations, metadata).
type State struct {
	Width, Height int
	OffsetX       int32
	OffsetY       int32
	Background    *tile.Tile
	Root          *proptree.Node
	Annotations   *Node[[]Annotation]
	Metadata      *Node[map[string]string]
	Seq           uint64 // logical timestamp, spec.md §4.6 fork reconciliation
}

// TilesX and TilesY give the sparse tile-grid dimensions for this
// canvas (spec.md §3 invariant: ceil(width/64) × ceil(height/64)).
func (s *State) TilesX() int { return (s.Width + tile.Size - 1) / tile.Size }
func (s *State) TilesY() int { return (s.Height + tile.Size - 1) / tile.Size }

// Routes returns the id→path route index over the current layer tree,
// rebuilding it only the first time a given root is seen (spec.md §4.3).
func (s *State) Routes() map[wire.LayerID]proptree.Route {
	if r, ok := routeCache.Get(s.Root); ok {
		return r
	}
	r := proptree.BuildRoutes(s.Root)
	routeCache.Set(s.Root, r)
	return r
}

// Transient clones s's top level into a uniquely-owned, mutable builder
// (spec.md §4.2).
func (s *State) Transient() *TransientState {
	return &TransientState{
		Width:       s.Width,
		Height:      s.Height,
		OffsetX:     s.OffsetX,
		OffsetY:     s.OffsetY,
		Background:  s.Background.Retain(),
		Root:        s.Root.Transient(),
		annotations: s.Annotations.Transient(),
		metadata:    s.Metadata.Transient(),
		Seq:         s.Seq,
	}
}

// Retain increments the reference count of every field s owns and
// returns s, for callers that want to keep a snapshot alive across a
// later mutation (e.g. history.History's periodic snapshots).
func (s *State) Retain() *State {
	if s == nil {
		return nil
	}
	s.Background.Retain()
	s.Root.Retain()
	s.Annotations.Retain()
	s.Metadata.Retain()
	return s
}

// Release drops the references this snapshot holds.
func (s *State) Release() {
	if s == nil {
		return
	}
	s.Background.Release()
	s.Root.Release()
	s.Annotations.Release()
	s.Metadata.Release()
}

// TransientState is the exclusively-owned, mutable form of State.
type TransientState struct {
	Width, Height int
	OffsetX       int32
	OffsetY       int32
	Background    *tile.Tile
	Root          *proptree.TransientNode

	annotations *TransientNode[[]Annotation]
	metadata    *TransientNode[map[string]string]

	Seq uint64
}

// TilesX and TilesY mirror State's, computed from the builder's current
// (possibly just-resized) dimensions.
func (ts *TransientState) TilesX() int { return (ts.Width + tile.Size - 1) / tile.Size }
func (ts *TransientState) TilesY() int { return (ts.Height + tile.Size - 1) / tile.Size }

func (ts *TransientState) Annotations() []Annotation { return ts.annotations.Value() }

// SetAnnotations replaces the annotation list outright; callers build
// the new slice themselves (LASER_TRAIL/MOVE_POINTER handlers typically
// filter-then-append, spec.md §4.4).
func (ts *TransientState) SetAnnotations(a []Annotation) { ts.annotations.Set(a) }

func (ts *TransientState) Metadata() map[string]string { return ts.metadata.Value() }
func (ts *TransientState) SetMetadata(m map[string]string) { ts.metadata.Set(m) }

// Persist flips ts into an immutable, refcounted State.
func (ts *TransientState) Persist() *State {
	return &State{
		Width:       ts.Width,
		Height:      ts.Height,
		OffsetX:     ts.OffsetX,
		OffsetY:     ts.OffsetY,
		Background:  ts.Background,
		Root:        ts.Root.Persist(),
		Annotations: ts.annotations.Persist(),
		Metadata:    ts.metadata.Persist(),
		Seq:         ts.Seq,
	}
}

// New creates a brand-new, empty canvas of the given pixel dimensions
// with a fully transparent background and an empty root group
// (spec.md §3, §4.1 CANVAS_RESIZE / construction).
func New(width, height int) *State {
	root := proptree.NewTransientGroup(proptree.Props{ID: 0, Opacity: 0x8000, Blend: wire.BlendNormal}).Persist()
	return &State{
		Width:       width,
		Height:      height,
		Background:  tile.Transparent(),
		Root:        root,
		Annotations: NewNode[[]Annotation](nil),
		Metadata:    NewNode(map[string]string{}),
	}
}
