package pixelops

import "testing"

func TestRoundTrip_8To15To8(t *testing.T) {
	for x := 0; x <= 255; x++ {
		got := To8(To15(uint8(x)))
		if int(got) != x {
			t.Fatalf("To8(To15(%d)) = %d, want %d (round-trip must be exact)", x, got, x)
		}
	}
}

func TestTo15_FullScale(t *testing.T) {
	if To15(255) != Full15 {
		t.Errorf("To15(255) = %d, want %d", To15(255), Full15)
	}
	if To15(0) != 0 {
		t.Errorf("To15(0) = %d, want 0", To15(0))
	}
}

func TestClamp15(t *testing.T) {
	if clamp15(-5) != 0 {
		t.Error("clamp15(-5) should clamp to 0")
	}
	if clamp15(Full15+100) != Full15 {
		t.Error("clamp15(Full15+100) should clamp to Full15")
	}
}
