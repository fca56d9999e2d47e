package dmareg

import "testing"

func TestPackUnpackRoundTripPerFamily(t *testing.T) {
	for _, l := range []*Layout{&V1, &V2} {
		maxW := uint32(3)
		if l.Rev == RevV2 {
			maxW = 4
		}
		src := Side{Port: 0, Burst: 2, Mode: 0, Width: 2}
		dst := Side{Port: 0x2A, Burst: 3, Mode: 1, Width: maxW}
		cfg := l.Pack(false, src) | l.Pack(true, dst)
		if got := l.Unpack(cfg, false); got != src {
			t.Errorf("%s: src = %+v, want %+v", l.Rev, got, src)
		}
		if got := l.Unpack(cfg, true); got != dst {
			t.Errorf("%s: dst = %+v, want %+v", l.Rev, got, dst)
		}
	}
}

func TestV1ShiftsMatchHardware(t *testing.T) {
	// 16-beat bursts, 4-byte width, linear, DRAM on both sides.
	cfg := V1.Pack(false, Side{Burst: 3, Width: 2}) | V1.Pack(true, Side{Burst: 3, Width: 2})
	want := uint32(3<<22 | 3<<6 | 2<<25 | 2<<9)
	if cfg != want {
		t.Fatalf("cfg = %#x, want %#x", cfg, want)
	}
}

func TestV2ShiftsMatchHardware(t *testing.T) {
	cfg := V2.Pack(false, Side{Burst: 3, Mode: TypeMemory, Width: 4}) |
		V2.Pack(true, Side{Burst: 3, Mode: TypeMemory, Width: 4})
	want := uint32(3<<6 | 2<<8 | 4<<12 | 3<<22 | 2<<24 | 4<<28)
	if cfg != want {
		t.Fatalf("cfg = %#x, want %#x", cfg, want)
	}
}

func TestEncodeDecode(t *testing.T) {
	in := Task{
		LinkID: LinkIDDefault, Cfg: 0x1234, BlockLen: 0x100, Src: 0x4000_0000,
		Dst: 0x4000_1000, Len: 256, Cfg2: 0, Next: 0xFFFFFFFC, Mode: ModeDstHandshake,
	}
	buf := make([]byte, SlotSize)
	V2.Encode(buf, &in)
	if got := V2.Decode(buf); got != in {
		t.Fatalf("v2 decode = %+v, want %+v", got, in)
	}

	// v1 drops the v2-only words.
	V1.Encode(buf, &in)
	got := V1.Decode(buf)
	if got.LinkID != 0 || got.BlockLen != 0 {
		t.Fatalf("v1 image carried v2 words: %+v", got)
	}
	if got.Src != in.Src || got.Next != in.Next || got.Mode != in.Mode {
		t.Fatalf("v1 decode = %+v", got)
	}
	// v1 Next lives in word 5.
	if buf[20] != 0xFC || buf[23] != 0xFF {
		t.Fatalf("v1 next word misplaced: % x", buf[20:24])
	}
}

func TestIRQPos(t *testing.T) {
	cases := []struct {
		l       *Layout
		ch, reg int
		shift   uint
	}{
		{&V1, 0, 0, 0},
		{&V1, 7, 0, 28},
		{&V2, 3, 0, 24},
		{&V2, 5, 1, 8},
	}
	for _, c := range cases {
		reg, shift := c.l.IRQPos(c.ch)
		if reg != c.reg || shift != c.shift {
			t.Errorf("%s ch%d: (%d,%d), want (%d,%d)", c.l.Rev, c.ch, reg, shift, c.reg, c.shift)
		}
	}
	if got := V2.IRQSta(1); got != 0x44 {
		t.Errorf("V2.IRQSta(1) = %#x", got)
	}
	if got := V1.Chan(2); got != 0x180 {
		t.Errorf("V1.Chan(2) = %#x", got)
	}
}
