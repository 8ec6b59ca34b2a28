package canvas

import "github.com/inkstream/paintcore/internal/proptree"

// Diff is a bitset of changed tiles plus a layer-properties-changed
// flag, computed between two canvas snapshots (spec.md §4.5, grounded
// on the teacher's internal/parallel.DirtyRegion bitset-over-tile-grid
// design, generalized from GPU-surface invalidation to canvas-diff
// reporting for embedders).
type Diff struct {
	TilesX, TilesY int
	bits           []uint64
	PropsChanged   bool
}

// NewDiff creates an all-clean diff sized for a tilesX×tilesY grid.
func NewDiff(tilesX, tilesY int) *Diff {
	n := (tilesX*tilesY + 63) / 64
	return &Diff{TilesX: tilesX, TilesY: tilesY, bits: make([]uint64, n)}
}

func (d *Diff) bitIndex(tx, ty int) (word, bit int, ok bool) {
	if tx < 0 || ty < 0 || tx >= d.TilesX || ty >= d.TilesY {
		return 0, 0, false
	}
	i := ty*d.TilesX + tx
	return i / 64, i % 64, true
}

// MarkTile flags the tile at (tx, ty) as changed.
func (d *Diff) MarkTile(tx, ty int) {
	w, b, ok := d.bitIndex(tx, ty)
	if !ok {
		return
	}
	d.bits[w] |= 1 << uint(b)
}

// IsTileDirty reports whether (tx, ty) was flagged changed.
func (d *Diff) IsTileDirty(tx, ty int) bool {
	w, b, ok := d.bitIndex(tx, ty)
	if !ok {
		return false
	}
	return d.bits[w]&(1<<uint(b)) != 0
}

// MarkAllDirty flags every tile in the grid — used when the layer tree's
// shape changed enough that per-tile comparison isn't meaningful.
func (d *Diff) MarkAllDirty() {
	for i := range d.bits {
		d.bits[i] = ^uint64(0)
	}
}

// DirtyTiles returns the list of changed tile coordinates.
func (d *Diff) DirtyTiles() [][2]int {
	var out [][2]int
	for ty := 0; ty < d.TilesY; ty++ {
		for tx := 0; tx < d.TilesX; tx++ {
			if d.IsTileDirty(tx, ty) {
				out = append(out, [2]int{tx, ty})
			}
		}
	}
	return out
}

// IsEmpty reports whether nothing changed at all (no dirty tiles and no
// property change).
func (d *Diff) IsEmpty() bool {
	if d.PropsChanged {
		return false
	}
	for _, w := range d.bits {
		if w != 0 {
			return false
		}
	}
	return true
}

// Merge ORs other's dirty bits and PropsChanged flag into d.
func (d *Diff) Merge(other *Diff) {
	if other == nil {
		return
	}
	for i := range d.bits {
		if i < len(other.bits) {
			d.bits[i] |= other.bits[i]
		}
	}
	d.PropsChanged = d.PropsChanged || other.PropsChanged
}

// Compute diffs two layer-tree snapshots sharing the same tile-grid
// dimensions, using pointer-identity on leaf tiles to cheaply detect
// "unchanged" (spec.md §4.2's structural sharing makes this exact: an
// untouched tile keeps the same *tile.Tile pointer across a persist).
// If the two trees' shapes diverge (different child counts or layer
// IDs at some node), the whole grid is marked dirty and PropsChanged is
// set, since a structural change also always changes what's visible.
func Compute(oldRoot, newRoot *proptree.Node, tilesX, tilesY int) *Diff {
	d := NewDiff(tilesX, tilesY)
	if !diffNode(oldRoot, newRoot, d) {
		d.MarkAllDirty()
		d.PropsChanged = true
	}
	return d
}

func diffNode(a, b *proptree.Node, d *Diff) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Props.ID != b.Props.ID || a.IsGroup() != b.IsGroup() {
		return false
	}
	if a.Props != b.Props {
		d.PropsChanged = true
	}
	if a.IsGroup() {
		if len(a.Children) != len(b.Children) {
			return false
		}
		for i := range a.Children {
			if !diffNode(a.Children[i], b.Children[i], d) {
				return false
			}
		}
		return true
	}
	return diffLeaf(a.Leaf, b.Leaf, d)
}
