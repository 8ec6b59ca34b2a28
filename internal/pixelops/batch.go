package pixelops

import (
	"github.com/inkstream/paintcore/internal/tile"
	"github.com/inkstream/paintcore/internal/wire"
)

// batchLanes is the number of pixels processed per Batch16, matching
// the teacher's SIMD-friendly batch width (internal/wide.BatchState).
const batchLanes = 16

// Batch16 holds batchLanes premultiplied RGBA15 pixels in
// struct-of-arrays layout, grounded on the teacher's internal/wide
// Batch16 (16 pixels, SoA channels) but rescaled from 8-bit to 15-bit
// lanes. SoA layout lets the per-channel blend formula operate on a
// whole lane at once instead of interleaved R,G,B,A per pixel.
type Batch16 struct {
	SR, SG, SB, SA [batchLanes]uint16
	DR, DG, DB, DA [batchLanes]uint16
}

// loadSrc reads batchLanes consecutive pixels starting at pixel
// offset `off` from a tile into the batch's source lanes.
func (b *Batch16) loadSrc(t *tile.Tile, off int) {
	for i := 0; i < batchLanes; i++ {
		o := (off + i) * 4
		b.SR[i], b.SG[i], b.SB[i], b.SA[i] = t.Pix[o], t.Pix[o+1], t.Pix[o+2], t.Pix[o+3]
	}
}

func (b *Batch16) loadDst(t *tile.Tile, off int) {
	for i := 0; i < batchLanes; i++ {
		o := (off + i) * 4
		b.DR[i], b.DG[i], b.DB[i], b.DA[i] = t.Pix[o], t.Pix[o+1], t.Pix[o+2], t.Pix[o+3]
	}
}

// MergeTile blends src (persistent, read-only) into dst (transient,
// mutated in place) at the given opacity and blend mode (spec.md
// §4.1's `merge(dst_transient, src_persistent, opacity, mode)`).
//
// The tile is processed in batchLanes-wide chunks (256 batches of 16 for
// a full 64×64 tile) purely as an implementation strategy; each lane
// still calls the same scalar blendOne formula used by MergePixel, so
// the batch and scalar paths can never disagree.
func MergeTile(dst *tile.Tile, src *tile.Tile, opacity uint16, mode wire.BlendMode) {
	if dst == nil {
		return
	}
	if src == nil {
		src = tile.Transparent()
		defer src.Release()
	}

	behavior := BehaviorFor(mode)
	if behavior == Skip && tile.IsTransparent(src) {
		return
	}

	var batch Batch16
	for off := 0; off < tile.Pixels; off += batchLanes {
		batch.loadSrc(src, off)
		batch.loadDst(dst, off)

		for i := 0; i < batchLanes; i++ {
			s := pixel15{batch.SR[i], batch.SG[i], batch.SB[i], batch.SA[i]}
			d := pixel15{batch.DR[i], batch.DG[i], batch.DB[i], batch.DA[i]}
			s = applyOpacity(s, opacity)
			res := blendOne(mode, s, d)

			o := (off + i) * 4
			dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2], dst.Pix[o+3] = res.r, res.g, res.b, res.a
		}
	}
}

// MergePixel blends a single premultiplied source pixel into a single
// destination pixel, for callers outside the tile grid (e.g. dab
// rasterization writing one coverage-weighted pixel at a time).
func MergePixel(dr, dg, db, da *uint16, sr, sg, sb, sa, opacity uint16, mode wire.BlendMode) {
	s := applyOpacity(pixel15{sr, sg, sb, sa}, opacity)
	d := pixel15{*dr, *dg, *db, *da}
	if BehaviorFor(mode) == Skip && s.a == 0 {
		return
	}
	res := blendOne(mode, s, d)
	*dr, *dg, *db, *da = res.r, res.g, res.b, res.a
}
