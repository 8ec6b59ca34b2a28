package layer

import (
	"github.com/inkstream/paintcore/internal/pixelops"
	"github.com/inkstream/paintcore/internal/tile"
	"github.com/inkstream/paintcore/internal/wire"
)

// FillRect blends a solid premultiplied RGBA15 color into the pixel
// rectangle [x, x+w) × [y, y+h), clipped to the grid's pixel bounds
// (spec.md §4.4, FILL_RECT).
func (tc *TransientContent) FillRect(x, y, w, h int, r, g, b, a uint16, mode wire.BlendMode) {
	if w <= 0 || h <= 0 {
		return
	}
	x1, y1 := x+w, y+h

	tx0, ty0 := x/tile.Size, y/tile.Size
	tx1, ty1 := (x1-1)/tile.Size, (y1-1)/tile.Size
	if x1 <= x {
		return
	}

	for ty := max0(ty0); ty <= ty1 && ty < tc.tilesY; ty++ {
		for tx := max0(tx0); tx <= tx1 && tx < tc.tilesX; tx++ {
			dst := tc.EnsureOwnedTile(tx, ty)
			if dst == nil {
				continue
			}
			baseX, baseY := tx*tile.Size, ty*tile.Size
			for py := 0; py < tile.Size; py++ {
				gy := baseY + py
				if gy < y || gy >= y1 {
					continue
				}
				for px := 0; px < tile.Size; px++ {
					gx := baseX + px
					if gx < x || gx >= x1 {
						continue
					}
					o := (py*tile.Size + px) * 4
					pixelops.MergePixel(&dst.Pix[o], &dst.Pix[o+1], &dst.Pix[o+2], &dst.Pix[o+3], r, g, b, a, pixelops.Full15, mode)
				}
			}
		}
	}
}

// PutPixel blends a single premultiplied RGBA15 pixel at (x, y).
func (tc *TransientContent) PutPixel(x, y int, r, g, b, a uint16, mode wire.BlendMode) {
	if x < 0 || y < 0 {
		return
	}
	tx, ty := x/tile.Size, y/tile.Size
	dst := tc.EnsureOwnedTile(tx, ty)
	if dst == nil {
		return
	}
	lx, ly := x%tile.Size, y%tile.Size
	o := (ly*tile.Size + lx) * 4
	pixelops.MergePixel(&dst.Pix[o], &dst.Pix[o+1], &dst.Pix[o+2], &dst.Pix[o+3], r, g, b, a, pixelops.Full15, mode)
}

// PutPixelOpacity blends a single premultiplied RGBA15 pixel at (x, y)
// scaled by an explicit u15 opacity, used by dab rasterization where
// per-pixel coverage and overall stroke opacity both scale the
// contribution (spec.md §4.4).
func (tc *TransientContent) PutPixelOpacity(x, y int, r, g, b, a uint16, opacity uint16, mode wire.BlendMode) {
	if x < 0 || y < 0 {
		return
	}
	tx, ty := x/tile.Size, y/tile.Size
	dst := tc.EnsureOwnedTile(tx, ty)
	if dst == nil {
		return
	}
	lx, ly := x%tile.Size, y%tile.Size
	o := (ly*tile.Size + lx) * 4
	pixelops.MergePixel(&dst.Pix[o], &dst.Pix[o+1], &dst.Pix[o+2], &dst.Pix[o+3], r, g, b, a, opacity, mode)
}

// PutImage blends an RGBA15 image (row-major, w*h*4 uint16) into the
// grid at top-left (x, y), clipped to grid bounds (spec.md §4.4,
// PUT_IMAGE).
func (tc *TransientContent) PutImage(x, y, w, h int, pix []uint16, mode wire.BlendMode) {
	for iy := 0; iy < h; iy++ {
		gy := y + iy
		if gy < 0 {
			continue
		}
		for ix := 0; ix < w; ix++ {
			gx := x + ix
			if gx < 0 {
				continue
			}
			o := (iy*w + ix) * 4
			tc.PutPixel(gx, gy, pix[o], pix[o+1], pix[o+2], pix[o+3], mode)
		}
	}
}

// Resize changes the grid's tile dimensions to newTilesX×newTilesY,
// shifting existing tiles by (tileOffsetX, tileOffsetY) tiles and
// dropping any that fall outside the new bounds (spec.md §4.1,
// CANVAS_RESIZE).
func (tc *TransientContent) Resize(newTilesX, newTilesY, tileOffsetX, tileOffsetY int) {
	newTiles := make([]*tile.Tile, newTilesX*newTilesY)
	for ty := 0; ty < tc.tilesY; ty++ {
		for tx := 0; tx < tc.tilesX; tx++ {
			t := tc.tiles[ty*tc.tilesX+tx]
			if t == nil {
				continue
			}
			nx, ny := tx+tileOffsetX, ty+tileOffsetY
			if nx < 0 || ny < 0 || nx >= newTilesX || ny >= newTilesY {
				t.Release()
				continue
			}
			newTiles[ny*newTilesX+nx] = t
		}
	}
	tc.tiles = newTiles
	tc.tilesX, tc.tilesY = newTilesX, newTilesY
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
