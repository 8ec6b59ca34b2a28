package layer

import (
	"testing"

	"github.com/inkstream/paintcore/internal/wire"
)

func TestTransient_Persist_RoundTrip(t *testing.T) {
	tc := NewTransient(2, 2)
	tc.FillRect(10, 10, 20, 20, 0x8000, 0, 0, 0x8000, wire.BlendNormal)
	c := tc.Persist()
	defer c.Release()

	tx, ty := 10/64, 10/64
	tl := c.TileAt(tx, ty)
	if tl == nil {
		t.Fatal("expected tile (0,0) to be populated after FillRect")
	}
	r, _, _, a := tl.At(10, 10)
	if r != 0x8000 || a != 0x8000 {
		t.Fatalf("filled pixel = (r=%x,a=%x), want (8000,8000)", r, a)
	}
}

func TestContent_TransientStructuralSharing(t *testing.T) {
	tc := NewTransient(2, 2)
	tc.FillRect(0, 0, 64, 64, 0x4000, 0, 0, 0x8000, wire.BlendNormal)
	c := tc.Persist()
	defer c.Release()

	tile00 := c.TileAt(0, 0)
	tile01 := c.TileAt(1, 0)
	if tile01 != nil {
		t.Fatal("untouched tile (1,0) should remain nil (missing = transparent)")
	}

	tc2 := c.Transient()
	// Untouched tile (0,0) should be the same shared pointer until mutated.
	if tc2.TileAt(0, 0) != tile00 {
		t.Error("Transient() should share unchanged tile pointers with the persistent source")
	}

	// Mutating a tile in tc2 must not affect the original persistent state.
	tc2.FillRect(0, 0, 64, 64, 0, 0x8000, 0, 0x8000, wire.BlendReplace)
	r, _, _, _ := c.TileAt(0, 0).At(5, 5)
	if r != 0x4000 {
		t.Error("mutating the transient clone mutated the original persistent content")
	}
}

func TestSublayer_PushMergeLifecycle(t *testing.T) {
	tc := NewTransient(1, 1)
	sl := tc.PushSublayer(7, wire.BlendNormal, 0x8000)
	slTC := sl.Content.Transient()
	slTC.FillRect(0, 0, 64, 64, 0, 0, 0x8000, 0x8000, wire.BlendNormal)
	sl.Content.Release()
	sl.Content = slTC.Persist()

	taken := tc.TakeSublayer(7)
	if taken == nil {
		t.Fatal("expected to take back the sublayer pushed for context 7")
	}
	tc.MergeSublayerInto(taken)

	r, g, b, a := tc.TileAt(0, 0).At(0, 0)
	if b != 0x8000 || a != 0x8000 || r != 0 || g != 0 {
		t.Fatalf("merged sublayer pixel = (%x,%x,%x,%x), want (0,0,8000,8000)", r, g, b, a)
	}
}
