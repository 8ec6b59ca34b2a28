// Package flatpng flattens a canvas into a single composited PNG —
// the simplest export path for embedders that only need a rendered
// thumbnail or screenshot rather than the full layered OpenRaster
// document (spec.md §6).
package flatpng

import (
	"image"
	"image/png"
	"io"

	"github.com/inkstream/paintcore/internal/canvas"
	"github.com/inkstream/paintcore/internal/engerr"
	"github.com/inkstream/paintcore/internal/pixelops"
	"github.com/inkstream/paintcore/internal/proptree"
	"github.com/inkstream/paintcore/internal/tile"
)

// Encode flattens s top-to-bottom and writes the result to w as a PNG.
// Hidden groups and layers are skipped, and each leaf layer is
// composited with plain source-over at its own opacity; layer blend
// modes and group opacity are not applied.
func Encode(w io.Writer, s *canvas.State) error {
	out := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	flattenInto(out, s.Background, s.TilesX(), s.TilesY())
	compositeNode(out, s.Root, s.TilesX(), s.TilesY())

	if err := png.Encode(w, out); err != nil {
		return engerr.New(engerr.WriteError, err.Error())
	}
	return nil
}

func flattenInto(out *image.RGBA, bg *tile.Tile, tilesX, tilesY int) {
	if tile.IsTransparent(bg) {
		return
	}
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			blitTile(out, bg, tx, ty, pixelops.Full15)
		}
	}
}

func compositeNode(out *image.RGBA, n *proptree.Node, tilesX, tilesY int) {
	if n == nil || n.Props.Hidden {
		return
	}
	if n.IsGroup() {
		for _, c := range n.Children {
			compositeNode(out, c, tilesX, tilesY)
		}
		return
	}
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			t := n.Leaf.TileAt(tx, ty)
			if tile.IsTransparent(t) {
				continue
			}
			blitTile(out, t, tx, ty, n.Props.Opacity)
		}
	}
}

// blitTile Porter-Duff-overs one tile onto out, scaling source
// contribution by opacity and converting premultiplied RGBA15 down to
// non-premultiplied RGBA8 as it lands in the output image.
func blitTile(out *image.RGBA, t *tile.Tile, tx, ty int, opacity uint16) {
	baseX, baseY := tx*tile.Size, ty*tile.Size
	bounds := out.Bounds()
	for py := 0; py < tile.Size; py++ {
		gy := baseY + py
		if gy >= bounds.Dy() {
			continue
		}
		for px := 0; px < tile.Size; px++ {
			gx := baseX + px
			if gx >= bounds.Dx() {
				continue
			}
			sr, sg, sb, sa := t.At(px, py)
			sr, sg, sb, sa = scale15(sr, opacity), scale15(sg, opacity), scale15(sb, opacity), scale15(sa, opacity)

			o := out.PixOffset(gx, gy)
			dr8, dg8, db8, da8 := out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3]
			dr, dg, db, da := pixelops.To15(dr8), pixelops.To15(dg8), pixelops.To15(db8), pixelops.To15(da8)
			dr, dg, db = premulFrom8(dr, da), premulFrom8(dg, da), premulFrom8(db, da)

			invSa := uint32(pixelops.Full15) - uint32(sa)
			nr := uint16((uint32(sr) + uint32(dr)*invSa/uint32(pixelops.Full15)))
			ng := uint16((uint32(sg) + uint32(dg)*invSa/uint32(pixelops.Full15)))
			nb := uint16((uint32(sb) + uint32(db)*invSa/uint32(pixelops.Full15)))
			na := uint16((uint32(sa) + uint32(da)*invSa/uint32(pixelops.Full15)))

			out.Pix[o] = unmul(nr, na)
			out.Pix[o+1] = unmul(ng, na)
			out.Pix[o+2] = unmul(nb, na)
			out.Pix[o+3] = pixelops.To8(na)
		}
	}
}

func scale15(c, opacity uint16) uint16 {
	return uint16((uint32(c) * uint32(opacity)) / uint32(pixelops.Full15))
}

// premulFrom8 re-premultiplies a channel that was stored non-premultiplied
// in the output buffer (its dr/dg/db were read via To15 on non-premultiplied
// 8-bit values) so it can be combined with the premultiplied source.
func premulFrom8(c, a uint16) uint16 {
	return uint16((uint32(c) * uint32(a)) / uint32(pixelops.Full15))
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
