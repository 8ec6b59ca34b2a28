package tile

import "testing"

func TestTransparent_IsSharedAndEmpty(t *testing.T) {
	a := Transparent()
	defer a.Release()
	b := Transparent()
	defer b.Release()

	if a != b {
		t.Fatal("Transparent() should return the canonical shared tile")
	}
	r, g, bl, al := a.At(0, 0)
	if r != 0 || g != 0 || bl != 0 || al != 0 {
		t.Errorf("transparent tile pixel = (%d,%d,%d,%d), want all zero", r, g, bl, al)
	}
	if !IsTransparent(a) {
		t.Error("IsTransparent(Transparent()) = false, want true")
	}
}

func TestSolid_FillsEveryPixel(t *testing.T) {
	tl := Solid(0x4000, 0x2000, 0x1000, 0x8000)
	for y := 0; y < Size; y += 7 {
		for x := 0; x < Size; x += 7 {
			r, g, b, a := tl.At(x, y)
			if r != 0x4000 || g != 0x2000 || b != 0x1000 || a != 0x8000 {
				t.Fatalf("At(%d,%d) = (%x,%x,%x,%x), want (4000,2000,1000,8000)", x, y, r, g, b, a)
			}
		}
	}
}

func TestChecker_Alternates8x8(t *testing.T) {
	tl := Checker(0x8000, 0, 0, 0x8000, 0, 0x8000, 0, 0x8000)
	r00, _, _, _ := tl.At(0, 0)
	if r00 != 0x8000 {
		t.Fatalf("At(0,0).R = %x, want 8000", r00)
	}
	_, g8, _, _ := tl.At(8, 0)
	if g8 != 0x8000 {
		t.Fatalf("At(8,0).G = %x, want 8000 (second checker cell)", g8)
	}
}

func TestRetainRelease_RefCounting(t *testing.T) {
	tl := Solid(1, 1, 1, 1)
	if tl.RefCount() != 1 {
		t.Fatalf("RefCount() = %d, want 1", tl.RefCount())
	}
	tl.Retain()
	if tl.RefCount() != 2 {
		t.Fatalf("RefCount() after Retain = %d, want 2", tl.RefCount())
	}
	tl.Release()
	if tl.RefCount() != 1 {
		t.Fatalf("RefCount() after Release = %d, want 1", tl.RefCount())
	}
}

func TestClone_CopiesPixelsIndependently(t *testing.T) {
	src := Solid(0x1111, 0x2222, 0x3333, 0x4444)
	dst := Clone(src)

	dst.Pix[0] = 0x7777
	r, _, _, _ := src.At(0, 0)
	if r != 0x1111 {
		t.Error("mutating clone's pixels affected the source tile")
	}
}
