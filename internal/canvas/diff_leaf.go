package canvas

import "github.com/inkstream/paintcore/internal/layer"

// diffLeaf marks every tile where a's and b's tile pointers differ. It
// assumes both contents share the same grid dimensions (true for any
// two layer contents belonging to the same canvas).
func diffLeaf(a, b *layer.Content, d *Diff) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.TilesX() != b.TilesX() || a.TilesY() != b.TilesY() {
		return false
	}
	for ty := 0; ty < a.TilesY(); ty++ {
		for tx := 0; tx < a.TilesX(); tx++ {
			if a.TileAt(tx, ty) != b.TileAt(tx, ty) {
				d.MarkTile(tx, ty)
			}
		}
	}
	return true
}
