package pixelops

import (
	"testing"

	"github.com/inkstream/paintcore/internal/tile"
	"github.com/inkstream/paintcore/internal/wire"
)

func TestMergeTile_NormalOverOpaqueSource(t *testing.T) {
	dst := tile.Clone(tile.Transparent())
	src := tile.Solid(Full15, 0, 0, Full15) // opaque red

	MergeTile(dst, src, Full15, wire.BlendNormal)

	r, g, b, a := dst.At(10, 10)
	if r != Full15 || g != 0 || b != 0 || a != Full15 {
		t.Fatalf("NORMAL over transparent = (%d,%d,%d,%d), want (%d,0,0,%d)", r, g, b, a, Full15, Full15)
	}
}

func TestMergeTile_SkipBehaviorNoOpOnTransparentSource(t *testing.T) {
	dst := tile.Solid(100, 200, 300, Full15)
	before := dst.Pix

	MergeTile(dst, nil, Full15, wire.BlendMultiply)

	if dst.Pix != before {
		t.Error("SKIP-behavior mode should not modify dst when source is transparent")
	}
}

func TestMergeTile_ReplaceIsAlwaysBlend(t *testing.T) {
	dst := tile.Solid(100, 200, 300, Full15)
	MergeTile(dst, nil, Full15, wire.BlendReplace)

	r, g, b, a := dst.At(0, 0)
	if r != 0 || g != 0 || b != 0 || a != 0 {
		t.Fatalf("REPLACE with transparent source should clear dst, got (%d,%d,%d,%d)", r, g, b, a)
	}
}

func TestMergeTile_EraseReducesDestinationAlpha(t *testing.T) {
	dst := tile.Solid(Full15, Full15, Full15, Full15)
	src := tile.Solid(0, 0, 0, Full15) // full eraser coverage

	MergeTile(dst, src, Full15, wire.BlendErase)

	_, _, _, a := dst.At(5, 5)
	if a != 0 {
		t.Fatalf("full-strength ERASE should zero destination alpha, got %d", a)
	}
}

func TestMergeTile_OpacityScalesContribution(t *testing.T) {
	dst := tile.Clone(tile.Transparent())
	src := tile.Solid(Full15, Full15, Full15, Full15)

	MergeTile(dst, src, Full15/2, wire.BlendNormal)

	_, _, _, a := dst.At(0, 0)
	if a == 0 || a >= Full15 {
		t.Fatalf("half-opacity NORMAL over transparent dst should give partial alpha, got %d", a)
	}
}
