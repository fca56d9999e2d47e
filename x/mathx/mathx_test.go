package mathx

import "testing"

func TestAlign(t *testing.T) {
	cases := []struct {
		v, a, down, up uint32
	}{
		{0, 8, 0, 0},
		{1, 8, 0, 8},
		{8, 8, 8, 8},
		{65, 64, 64, 128},
		{0x1000_0003, 4, 0x1000_0000, 0x1000_0004},
	}
	for _, c := range cases {
		if got := AlignDown(c.v, c.a); got != c.down {
			t.Errorf("AlignDown(%#x,%d) = %#x, want %#x", c.v, c.a, got, c.down)
		}
		if got := AlignUp(c.v, c.a); got != c.up {
			t.Errorf("AlignUp(%#x,%d) = %#x, want %#x", c.v, c.a, got, c.up)
		}
		if got := IsAligned(c.v, c.a); got != (c.v == c.down) {
			t.Errorf("IsAligned(%#x,%d) = %v", c.v, c.a, got)
		}
	}
}

func TestPow2AndLog2(t *testing.T) {
	for _, x := range []uint{1, 2, 4, 8, 16, 1 << 20} {
		if !IsPow2(x) {
			t.Errorf("IsPow2(%d) = false", x)
		}
		if got := uint(1) << Log2(x); got != x {
			t.Errorf("1<<Log2(%d) = %d", x, got)
		}
	}
	for _, x := range []uint{0, 3, 6, 12} {
		if IsPow2(x) {
			t.Errorf("IsPow2(%d) = true", x)
		}
	}
}
