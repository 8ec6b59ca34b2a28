// Package layer implements layer content: the sparse grid of 64×64
// tiles that backs one drawable layer, plus its stack of sublayers used
// for indirect drawing (spec.md §3, §4.4).
//
// Grounded on the teacher's internal/parallel.TileGrid (flat
// row-major []*Tile slice sized ceil(w/64)×ceil(h/64), spec.md §3's
// invariant verbatim), generalized from a grid of mutable pooled byte
// tiles to a grid of immutable refcounted tile.Tile pointers where a nil
// entry denotes "fully transparent" (spec.md §3).
package layer

import (
	"sync/atomic"

	"github.com/inkstream/paintcore/internal/pixelops"
	"github.com/inkstream/paintcore/internal/tile"
	"github.com/inkstream/paintcore/internal/wire"
)

// Content is the persistent, immutable form of one layer's tile grid
// plus its sublayer stack (spec.md §3, §4.2).
type Content struct {
	tilesX, tilesY int
	tiles          []*tile.Tile // row-major, nil = transparent
	sublayers      []*Sublayer

	refs atomic.Int32
}

// Sublayer is one entry of the indirect-drawing stack (spec.md §4.4):
// a layer content overlaid on its parent until PEN_UP merges it in.
type Sublayer struct {
	OwnerContext wire.ContextID
	Blend        wire.BlendMode
	Opacity      uint16 // u15
	Content      *Content
}

// New creates an empty persistent Content sized for a tilesX×tilesY grid
// (spec.md §3 invariant: tilesX = ceil(width/64), tilesY = ceil(height/64)).
func New(tilesX, tilesY int) *Content {
	c := &Content{tilesX: tilesX, tilesY: tilesY, tiles: make([]*tile.Tile, tilesX*tilesY)}
	c.refs.Store(1)
	return c
}

func (c *Content) TilesX() int { return c.tilesX }
func (c *Content) TilesY() int { return c.tilesY }

// Retain increments the reference count and returns c, for the
// `child = parent.Retain()` structural-sharing idiom (spec.md §4.2).
func (c *Content) Retain() *Content {
	if c == nil {
		return nil
	}
	c.refs.Add(1)
	return c
}

// Release decrements the reference count and, on the last reference,
// releases every tile and sublayer it owns (spec.md §3, lifecycle).
func (c *Content) Release() {
	if c == nil {
		return
	}
	if c.refs.Add(-1) == 0 {
		for _, t := range c.tiles {
			t.Release()
		}
		for _, sl := range c.sublayers {
			sl.Content.Release()
		}
	}
}

func (c *Content) index(tx, ty int) (int, bool) {
	if tx < 0 || ty < 0 || tx >= c.tilesX || ty >= c.tilesY {
		return 0, false
	}
	return ty*c.tilesX + tx, true
}

// TileAt returns the tile at the given tile coordinate without
// incrementing its reference count (spec.md §4.2, "_noinc accessor").
// The caller must not retain the pointer beyond c's own lifetime.
func (c *Content) TileAt(tx, ty int) *tile.Tile {
	i, ok := c.index(tx, ty)
	if !ok {
		return nil
	}
	return c.tiles[i]
}

// Sublayers returns the ordered sublayer stack, outermost (oldest)
// first. The returned slice must not be mutated.
func (c *Content) Sublayers() []*Sublayer {
	return c.sublayers
}

// Transient clones c's top level (the tiles slice and sublayer slice)
// into a uniquely-owned, mutable TransientContent. Both pointer slices
// are copied, while the tiles themselves are shared by retaining them
// (spec.md §4.2, "converted to transient by cloning its top level
// only").
func (c *Content) Transient() *TransientContent {
	tiles := make([]*tile.Tile, len(c.tiles))
	for i, t := range c.tiles {
		tiles[i] = t.Retain()
	}
	sublayers := make([]*Sublayer, len(c.sublayers))
	for i, sl := range c.sublayers {
		sublayers[i] = &Sublayer{OwnerContext: sl.OwnerContext, Blend: sl.Blend, Opacity: sl.Opacity, Content: sl.Content.Retain()}
	}
	return &TransientContent{tilesX: c.tilesX, tilesY: c.tilesY, tiles: tiles, sublayers: sublayers}
}

// TransientContent is the exclusively-owned, mutable form of Content
// (spec.md §4.2). It is never aliased; Persist converts it back to a
// Content in O(1).
type TransientContent struct {
	tilesX, tilesY int
	tiles          []*tile.Tile
	sublayers      []*Sublayer
}

// NewTransient creates an empty transient content grid directly
// (used when constructing a brand-new layer, spec.md §3 "born empty").
func NewTransient(tilesX, tilesY int) *TransientContent {
	return &TransientContent{tilesX: tilesX, tilesY: tilesY, tiles: make([]*tile.Tile, tilesX*tilesY)}
}

func (tc *TransientContent) TilesX() int { return tc.tilesX }
func (tc *TransientContent) TilesY() int { return tc.tilesY }

func (tc *TransientContent) index(tx, ty int) (int, bool) {
	if tx < 0 || ty < 0 || tx >= tc.tilesX || ty >= tc.tilesY {
		return 0, false
	}
	return ty*tc.tilesX + tx, true
}

// TileAt returns the tile pointer at (tx, ty) without copying it.
func (tc *TransientContent) TileAt(tx, ty int) *tile.Tile {
	i, ok := tc.index(tx, ty)
	if !ok {
		return nil
	}
	return tc.tiles[i]
}

// EnsureOwnedTile returns a uniquely-owned, mutable tile at (tx, ty),
// cloning the shared persistent tile in place the first time this slot
// is touched (spec.md §4.2: "Mutating operations take a transient... a
// read-only persistent node is converted to transient by cloning").
// Returns nil if (tx, ty) is out of bounds.
func (tc *TransientContent) EnsureOwnedTile(tx, ty int) *tile.Tile {
	i, ok := tc.index(tx, ty)
	if !ok {
		return nil
	}
	cur := tc.tiles[i]
	if cur == nil {
		nt := tile.Clone(nil)
		tc.tiles[i] = nt
		return nt
	}
	if cur.RefCount() == 1 {
		return cur
	}
	nt := tile.Clone(cur)
	cur.Release()
	tc.tiles[i] = nt
	return nt
}

// SetTile replaces the tile at (tx, ty). The caller transfers ownership
// of one reference on t to the grid.
func (tc *TransientContent) SetTile(tx, ty int, t *tile.Tile) {
	i, ok := tc.index(tx, ty)
	if !ok {
		t.Release()
		return
	}
	tc.tiles[i].Release()
	tc.tiles[i] = t
}

// Persist flips tc into an immutable, refcounted Content. tc must not be
// used afterward (spec.md §4.2, "persist(transient) ... valid only when
// the transient is unique").
func (tc *TransientContent) Persist() *Content {
	c := &Content{tilesX: tc.tilesX, tilesY: tc.tilesY, tiles: tc.tiles, sublayers: tc.sublayers}
	c.refs.Store(1)
	return c
}

// Sublayers returns the mutable sublayer stack.
func (tc *TransientContent) Sublayers() []*Sublayer {
	return tc.sublayers
}

// PushSublayer creates a sublayer for indirect drawing from the given
// context, or returns the existing one for that context if already
// present (spec.md §4.4: "created lazily on the target layer").
func (tc *TransientContent) PushSublayer(ctx wire.ContextID, blend wire.BlendMode, opacity uint16) *Sublayer {
	for _, sl := range tc.sublayers {
		if sl.OwnerContext == ctx {
			return sl
		}
	}
	sl := &Sublayer{
		OwnerContext: ctx,
		Blend:        blend,
		Opacity:      opacity,
		Content:      NewTransient(tc.tilesX, tc.tilesY).Persist(),
	}
	tc.sublayers = append(tc.sublayers, sl)
	return sl
}

// TakeSublayer removes and returns the sublayer owned by ctx, or nil if
// none exists.
func (tc *TransientContent) TakeSublayer(ctx wire.ContextID) *Sublayer {
	for i, sl := range tc.sublayers {
		if sl.OwnerContext == ctx {
			tc.sublayers = append(tc.sublayers[:i], tc.sublayers[i+1:]...)
			return sl
		}
	}
	return nil
}

// MergeSublayerInto blends every tile of a sublayer into tc at the
// sublayer's stroke opacity and blend mode, then releases the
// sublayer's content (spec.md §4.4, "merged into its parent on PEN_UP").
func (tc *TransientContent) MergeSublayerInto(sl *Sublayer) {
	for ty := 0; ty < tc.tilesY; ty++ {
		for tx := 0; tx < tc.tilesX; tx++ {
			src := sl.Content.TileAt(tx, ty)
			if tile.IsTransparent(src) {
				continue
			}
			dst := tc.EnsureOwnedTile(tx, ty)
			pixelops.MergeTile(dst, src, sl.Opacity, sl.Blend)
		}
	}
	sl.Content.Release()
}
