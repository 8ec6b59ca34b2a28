package pixelops

import "github.com/inkstream/paintcore/internal/wire"

// Behavior selects how a blend mode treats a fully-transparent source
// pixel (spec.md §4.1).
type Behavior uint8

const (
	// Skip leaves the destination untouched when the source is blank
	// (the identity shortcut; default for most modes).
	Skip Behavior = iota
	// Blend always applies the formula, even against a transparent
	// source (required so BEHIND and REPLACE can erase/no-op correctly).
	Blend
)

// BehaviorFor returns the tile-behavior variant for a blend mode
// (spec.md §4.1: "BEHIND and REPLACE are always BLEND; the remainder
// default to SKIP").
func BehaviorFor(mode wire.BlendMode) Behavior {
	switch mode {
	case wire.BlendBehind, wire.BlendReplace:
		return Blend
	default:
		return Skip
	}
}

// pixel15 is one premultiplied RGBA15 pixel used as the scalar
// currency of every blend formula.
type pixel15 struct {
	r, g, b, a uint16
}

// mulFull multiplies a 15-bit channel by a 15-bit factor (opacity or
// another channel) and rescales back to 15-bit range, rounding to
// nearest-even (spec.md §4.1). Grounded on the teacher's mulDiv255,
// rescaled from a divide-by-255 approximation to an exact
// divide-by-0x8000 (a power-of-two shift, so no approximation is
// needed at this scale).
func mulFull(a, b uint16) uint16 {
	return uint16(roundDivEven(uint32(a)*uint32(b), Full15))
}

func invFull(a uint16) uint16 {
	return uint16(Full15) - a
}

// separable applies a per-channel blend function B(s, d) operating on
// unmultiplied channel values, composited with the standard
// Porter-Duff-over alpha formula. Grounded on the teacher's
// separableBlend (internal/blend/advanced.go), rescaled to 15-bit.
func separable(src, dst pixel15, blendChan func(s, d uint16) uint16) pixel15 {
	if src.a == 0 {
		return dst
	}
	if dst.a == 0 {
		return src
	}

	unmul := func(c, a uint16) uint16 {
		return uint16(roundDivEven(uint32(c)*Full15, uint32(a)))
	}
	sur, sug, sub := unmul(src.r, src.a), unmul(src.g, src.a), unmul(src.b, src.a)
	dur, dug, dub := unmul(dst.r, dst.a), unmul(dst.g, dst.a), unmul(dst.b, dst.a)

	br := blendChan(sur, dur)
	bg := blendChan(sug, dug)
	bb := blendChan(sub, dub)

	invSa, invDa := invFull(src.a), invFull(dst.a)
	finalA := clamp15(int32(src.a) + int32(mulFull(dst.a, invSa)))

	saDa := mulFull(src.a, dst.a)
	mix := func(dc, sc, bc uint16) uint16 {
		v := int32(mulFull(dc, invSa)) + int32(mulFull(sc, invDa)) + int32(mulFull(saDa, bc))
		return clamp15(v)
	}
	return pixel15{
		r: mix(dst.r, src.r, br),
		g: mix(dst.g, src.g, bg),
		b: mix(dst.b, src.b, bb),
		a: finalA,
	}
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

func maxU16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}

// blendOne maps every spec.md §4.1 mode to a (src, dst) -> result
// function operating on premultiplied 15-bit pixels.
func blendOne(mode wire.BlendMode, src, dst pixel15) pixel15 {
	switch mode {
	case wire.BlendErase:
		// Erase: subtract source alpha coverage from destination,
		// scaling every premultiplied channel down with it.
		factor := invFull(src.a)
		return pixel15{
			r: mulFull(dst.r, factor),
			g: mulFull(dst.g, factor),
			b: mulFull(dst.b, factor),
			a: mulFull(dst.a, factor),
		}

	case wire.BlendNormal:
		return separable(src, dst, func(s, d uint16) uint16 { return s })

	case wire.BlendMultiply:
		return separable(src, dst, mulFull)

	case wire.BlendDivide:
		return separable(src, dst, func(s, d uint16) uint16 {
			if s == 0 {
				return Full15
			}
			return clamp15(int32(roundDivEven(uint32(d)*Full15, uint32(s))))
		})

	case wire.BlendBurn: // color burn
		return separable(src, dst, func(s, d uint16) uint16 {
			if s == 0 {
				return 0
			}
			invD := invFull(d)
			res := roundDivEven(uint32(invD)*Full15, uint32(s))
			if res > Full15 {
				return 0
			}
			return invFull(uint16(res))
		})

	case wire.BlendDodge: // color dodge
		return separable(src, dst, func(s, d uint16) uint16 {
			if s == uint16(Full15) {
				return Full15
			}
			invS := invFull(s)
			res := roundDivEven(uint32(d)*Full15, uint32(invS))
			return clamp15(int32(res))
		})

	case wire.BlendDarken:
		return separable(src, dst, minU16)

	case wire.BlendLighten:
		return separable(src, dst, maxU16)

	case wire.BlendSubtract:
		return separable(src, dst, func(s, d uint16) uint16 {
			if s >= d {
				return 0
			}
			return d - s
		})

	case wire.BlendAdd:
		return separable(src, dst, func(s, d uint16) uint16 {
			return clamp15(int32(s) + int32(d))
		})

	case wire.BlendRecolor:
		// Recolor: replace destination hue/saturation/luminosity with
		// source color but keep destination alpha coverage.
		invSa := invFull(src.a)
		return pixel15{
			r: clamp15(int32(mulFull(src.r, dst.a)) + int32(mulFull(dst.r, invSa))),
			g: clamp15(int32(mulFull(src.g, dst.a)) + int32(mulFull(dst.g, invSa))),
			b: clamp15(int32(mulFull(src.b, dst.a)) + int32(mulFull(dst.b, invSa))),
			a: dst.a,
		}

	case wire.BlendBehind:
		// Behind: composite source under destination (paint only into
		// transparent regions of the destination).
		return separable(dst, src, func(s, d uint16) uint16 { return s })

	case wire.BlendColorErase:
		// Color erase: erase destination only where it matches source
		// color; approximate by eraser scaled by source/destination
		// channel similarity.
		match := Full15 - (absDiff(src.r, dst.r)+absDiff(src.g, dst.g)+absDiff(src.b, dst.b))/3
		factor := invFull(mulFull(src.a, uint16(match)))
		return pixel15{
			r: mulFull(dst.r, factor),
			g: mulFull(dst.g, factor),
			b: mulFull(dst.b, factor),
			a: mulFull(dst.a, factor),
		}

	case wire.BlendNormalAndEraser:
		return separable(src, dst, func(s, d uint16) uint16 { return s })

	case wire.BlendReplace:
		return src

	default:
		return separable(src, dst, func(s, d uint16) uint16 { return s })
	}
}

func absDiff(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return b - a
}

// applyOpacity scales a source pixel's channels by a u15 opacity factor
// before blending, so the blend formulas themselves never need to know
// about stroke/layer opacity separately from alpha.
func applyOpacity(p pixel15, opacity uint16) pixel15 {
	if opacity >= Full15 {
		return p
	}
	return pixel15{
		r: mulFull(p.r, opacity),
		g: mulFull(p.g, opacity),
		b: mulFull(p.b, opacity),
		a: mulFull(p.a, opacity),
	}
}
