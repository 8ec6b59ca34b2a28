package engine

import (
	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/pixelops"
	"github.com/inkstream/paintcore/internal/proptree"
	"github.com/inkstream/paintcore/internal/tile"
)

// RenderTileFunc receives one rendered tile's RGBA8 pixels, tile.Size
// by tile.Size, row-major (spec.md §4.6 "render_tile_cb").
type RenderTileFunc func(tx, ty int, pixels []byte)

// PrepareRender announces the canvas's current pixel dimensions to
// sizeCB (spec.md §4.6 "prepare_render(size_cb)"), letting a GUI
// (re)allocate its backing texture before the first Render call.
func (e *Engine) PrepareRender(sizeCB func(width, height int)) {
	s := e.history.Current()
	sizeCB(s.Width, s.Height)
}

// Render composites and converts every tile the last Tick marked dirty,
// invoking renderTileCB once per tile, then consumes (clears) that
// dirty mask so a second Render call with no intervening Tick is a
// no-op (spec.md §4.6 "render(render_tile_cb)"). The hidden-layer
// override and any live preview are baked into the composited pixels,
// since Render always renders the same view Tick diffed against.
func (e *Engine) Render(renderTileCB RenderTileFunc) {
	e.mu.Lock()
	diff := e.pendingDiff
	e.pendingDiff = nil
	view := e.lastView
	e.mu.Unlock()

	if diff == nil || view == nil {
		return
	}
	for _, xy := range diff.DirtyTiles() {
		renderTileCB(xy[0], xy[1], renderTile(view, xy[0], xy[1]))
	}
}

// renderTile composites the background, a checkerboard (visible through
// any transparency), and every visible layer for one tile, converting
// the 15-bit premultiplied result to non-premultiplied RGBA8 (spec.md
// §4.6 "merge checker behind", "convert 15→8").
func renderTile(s *canvas.State, tx, ty int) []byte {
	pixels := make([]byte, tile.Size*tile.Size*4)
	baseX, baseY := tx*tile.Size, ty*tile.Size
	for py := 0; py < tile.Size; py++ {
		for px := 0; px < tile.Size; px++ {
			o := (py*tile.Size + px) * 4
			r, g, b, a := checkerColor(baseX+px, baseY+py)
			pixels[o], pixels[o+1], pixels[o+2], pixels[o+3] = r, g, b, a
		}
	}
	blitTileBytes(pixels, s.Background, pixelops.Full15)
	compositeNodeTile(pixels, s.Root, tx, ty)
	return pixels
}

// checkerColor returns the light/dark checkerboard color for the pixel
// at global coordinates (gx, gy), an 8px cell gray-on-gray pattern.
func checkerColor(gx, gy int) (r, g, b, a uint8) {
	const cell = 8
	if ((gx/cell)+(gy/cell))%2 == 0 {
		return 204, 204, 204, 255
	}
	return 153, 153, 153, 255
}

func compositeNodeTile(dst []byte, n *proptree.Node, tx, ty int) {
	if n == nil || n.Props.Hidden {
		return
	}
	if n.IsGroup() {
		for _, c := range n.Children {
			compositeNodeTile(dst, c, tx, ty)
		}
		return
	}
	blitTileBytes(dst, n.Leaf.TileAt(tx, ty), n.Props.Opacity)
}

// blitTileBytes Porter-Duff-overs one tile onto a tile.Size×tile.Size
// RGBA8 byte buffer, scaling source contribution by opacity (mirrors
// format/flatpng's blitTile, retargeted at a raw byte buffer instead of
// an image.RGBA since the tile renderer emits one tile at a time rather
// than compositing onto a whole-canvas image).
func blitTileBytes(dst []byte, t *tile.Tile, opacity uint16) {
	if tile.IsTransparent(t) {
		return
	}
	for py := 0; py < tile.Size; py++ {
		for px := 0; px < tile.Size; px++ {
			o := (py*tile.Size + px) * 4
			sr, sg, sb, sa := t.At(px, py)
			sr, sg, sb, sa = scale15(sr, opacity), scale15(sg, opacity), scale15(sb, opacity), scale15(sa, opacity)

			dr8, dg8, db8, da8 := dst[o], dst[o+1], dst[o+2], dst[o+3]
			dr, dg, db, da := pixelops.To15(dr8), pixelops.To15(dg8), pixelops.To15(db8), pixelops.To15(da8)
			dr, dg, db = premulFrom8(dr, da), premulFrom8(dg, da), premulFrom8(db, da)

			invSa := uint32(pixelops.Full15) - uint32(sa)
			nr := uint16(uint32(sr) + uint32(dr)*invSa/uint32(pixelops.Full15))
			ng := uint16(uint32(sg) + uint32(dg)*invSa/uint32(pixelops.Full15))
			nb := uint16(uint32(sb) + uint32(db)*invSa/uint32(pixelops.Full15))
			na := uint16(uint32(sa) + uint32(da)*invSa/uint32(pixelops.Full15))

			dst[o] = unmul(nr, na)
			dst[o+1] = unmul(ng, na)
			dst[o+2] = unmul(nb, na)
			dst[o+3] = pixelops.To8(na)
		}
	}
}

func scale15(c, opacity uint16) uint16 {
	return uint16(uint32(c) * uint32(opacity) / uint32(pixelops.Full15))
}

func premulFrom8(c, a uint16) uint16 {
	return uint16(uint32(c) * uint32(a) / uint32(pixelops.Full15))
}

func unmul(c, a uint16) uint8 {
	if a == 0 {
		return 0
	}
	v := uint32(c) * uint32(pixelops.Full15) / uint32(a)
	if v > uint32(pixelops.Full15) {
		v = uint32(pixelops.Full15)
	}
	return pixelops.To8(uint16(v))
}
