package paintops

import (
	"math"

	"github.com/inkstream/paintcore/internal/layer"
	"github.com/inkstream/paintcore/internal/pixelops"
	"github.com/inkstream/paintcore/internal/wire"
)

// dabKind selects the coverage formula used to rasterize one dab
// (spec.md §4.4: DRAW_DABS_CLASSIC / DRAW_DABS_PIXEL /
// DRAW_DABS_PIXEL_SQUARE / DRAW_DABS_MYPAINT each place stamps
// differently along a stroke's dab burst).
type dabKind uint8

const (
	dabClassic dabKind = iota
	dabPixel
	dabPixelSquare
	dabMyPaint
)

// rasterizeDab stamps one dab into tc, blending the given premultiplied
// RGBA15 color through each covered pixel's coverage fraction and the
// stroke's overall opacity (spec.md §4.4).
func rasterizeDab(tc *layer.TransientContent, dab wire.Dab, r, g, b, a uint16, strokeOpacity uint16, mode wire.BlendMode, kind dabKind) {
	radius := float64(dab.Size) / 2
	if radius <= 0 {
		return
	}
	aspect := float64(dab.AspectRatio)
	if aspect <= 0 {
		aspect = 1
	}
	hardness := float64(dab.Hardness) / 255
	angle := float64(dab.Angle) * math.Pi / 180
	sinA, cosA := math.Sin(angle), math.Cos(angle)

	// dab.X/Y are 1/256px fixed-point sub-pixel coordinates (spec.md
	// Glossary).
	cx, cy := float64(dab.X)/256, float64(dab.Y)/256
	// Bounding box large enough to contain the rotated ellipse.
	extent := radius * aspect
	if radius > extent {
		extent = radius
	}
	x0, x1 := int(math.Floor(cx-extent))-1, int(math.Ceil(cx+extent))+1
	y0, y1 := int(math.Floor(cy-extent))-1, int(math.Ceil(cy+extent))+1

	dabOpacity := float64(dab.Opacity) / 255

	for py := y0; py <= y1; py++ {
		for px := x0; px <= x1; px++ {
			dx, dy := float64(px)-cx, float64(py)-cy
			coverage := dabCoverage(dx, dy, radius, aspect, hardness, sinA, cosA, kind)
			if coverage <= 0 {
				continue
			}
			eff := coverage * dabOpacity * (float64(strokeOpacity) / float64(pixelops.Full15))
			opacity15 := uint16(eff * float64(pixelops.Full15))
			if opacity15 == 0 {
				continue
			}
			tc.PutPixelOpacity(px, py, r, g, b, a, opacity15, mode)
		}
	}
}

// dabCoverage returns the [0,1] coverage fraction of the pixel offset
// (dx, dy) from a dab's center, given its kind-specific falloff.
func dabCoverage(dx, dy, radius, aspect, hardness, sinA, cosA float64, kind dabKind) float64 {
	// Rotate into the dab's own frame, then normalize by its aspect ratio
	// so the dab's ellipse becomes a unit circle (spec.md §4.4, MyPaint
	// dab formula).
	rx := dx*cosA + dy*sinA
	ry := (-dx*sinA + dy*cosA) / aspect
	rr := (rx*rx + ry*ry) / (radius * radius)

	switch kind {
	case dabPixel:
		if rr <= 1 {
			return 1
		}
		return 0
	case dabPixelSquare:
		if math.Abs(rx) <= radius && math.Abs(ry) <= radius*aspect {
			return 1
		}
		return 0
	case dabClassic:
		if rr >= 1 {
			return 0
		}
		// Soft anti-aliased edge over the outer ring of the circle.
		r := math.Sqrt(rr)
		const edge = 0.15
		if r < 1-edge {
			return 1
		}
		return (1 - r) / edge
	default: // dabMyPaint
		return myPaintFalloff(rr, hardness)
	}
}

// myPaintFalloff implements the MyPaint radial hardness curve: full
// opacity out to the hardness radius, then a linear ramp down to zero
// at the dab's outer edge (rr == 1). hardness == 1 degenerates to a
// hard disc; hardness == 0 degenerates to a fully linear ramp from
// center to edge.
func myPaintFalloff(rr, hardness float64) float64 {
	if rr >= 1 {
		return 0
	}
	if hardness >= 1 {
		return 1
	}
	r := math.Sqrt(rr)
	if r <= hardness {
		return 1
	}
	if hardness >= 1 {
		return 0
	}
	return 1 - (r-hardness)/(1-hardness)
}
