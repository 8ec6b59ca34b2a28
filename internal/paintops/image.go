package paintops

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/inkstream/paintcore/internal/pixelops"
)

// decodeImagePixels converts a PUT_IMAGE command's raw non-premultiplied
// RGBA8 payload into row-major premultiplied RGBA15 (spec.md §4.4,
// PUT_IMAGE). It does not resize: applyPutImage first resamples the
// payload with ResizeRGBA8 when the command's ScaleW/ScaleH differ
// from W/H.
func decodeImagePixels(raw []byte, w, h int) ([]uint16, error) {
	if len(raw) != w*h*4 {
		return nil, fmt.Errorf("paintops: PUT_IMAGE payload is %d bytes, want %d for %dx%d", len(raw), w*h*4, w, h)
	}
	out := make([]uint16, w*h*4)
	for i := 0; i < w*h; i++ {
		o := i * 4
		r, g, b, a := raw[o], raw[o+1], raw[o+2], raw[o+3]
		pr, pg, pb := premultiply8(r, a), premultiply8(g, a), premultiply8(b, a)
		out[o] = pixelops.To15(pr)
		out[o+1] = pixelops.To15(pg)
		out[o+2] = pixelops.To15(pb)
		out[o+3] = pixelops.To15(a)
	}
	return out, nil
}

func premultiply8(c, a uint8) uint8 {
	return uint8((uint16(c)*uint16(a) + 127) / 255)
}

// ResizeRGBA8 resamples a non-premultiplied RGBA8 buffer from (srcW,
// srcH) to (dstW, dstH) using bilinear interpolation, used when a
// PUT_IMAGE command's scale_w/scale_h differ from its source dimensions
// (spec.md §4.4).
func ResizeRGBA8(src []byte, srcW, srcH, dstW, dstH int) []byte {
	if srcW == dstW && srcH == dstH {
		return src
	}
	srcImg := &image.RGBA{Pix: src, Stride: srcW * 4, Rect: image.Rect(0, 0, srcW, srcH)}
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), srcImg, srcImg.Bounds(), xdraw.Over, nil)
	return dst.Pix
}
