package dma

import (
	"testing"

	"dmaengine-go/drivers/dma/dmareg"
	"dmaengine-go/errcode"
)

func TestNegotiate(t *testing.T) {
	v10, _ := LookupPlatform("d21x")
	v11, _ := LookupPlatform("d13x")
	v20, _ := LookupPlatform("g73x")

	cases := []struct {
		name     string
		plat     Platform
		cfg      SlaveConfig
		dir      Direction
		want     negotiated // word ignored
		wantCode errcode.Code
	}{
		{
			name: "memcpy defaults v1",
			plat: v11,
			dir:  MemToMem,
			want: negotiated{srcWidth: 4, dstWidth: 4, srcBurst: 8, dstBurst: 8},
		},
		{
			name: "memcpy defaults v2",
			plat: v20,
			dir:  MemToMem,
			want: negotiated{srcWidth: 16, dstWidth: 16, srcBurst: 16, dstBurst: 16},
		},
		{
			name: "spi burst snaps on 1.1",
			plat: v11,
			dir:  MemToDev,
			cfg:  SlaveConfig{SlaveID: SlaveSPI0, DstWidth: 1, DstBurst: 4},
			want: negotiated{srcWidth: 4, srcBurst: 8, dstWidth: 4, dstBurst: 8},
		},
		{
			name: "spi burst kept on 1.0",
			plat: v10,
			dir:  DevToMem,
			cfg:  SlaveConfig{SlaveID: SlaveSPI2, SrcWidth: 4, SrcBurst: 1},
			want: negotiated{srcWidth: 4, srcBurst: 1, dstWidth: 4, dstBurst: 8},
		},
		{
			name: "i2s accepts 2 bytes",
			plat: v10,
			dir:  MemToDev,
			cfg:  SlaveConfig{SlaveID: SlaveI2S0, DstWidth: 2, DstBurst: 16},
			want: negotiated{srcWidth: 4, srcBurst: 8, dstWidth: 2, dstBurst: 1},
		},
		{
			name: "no table on 2.0",
			plat: v20,
			dir:  MemToDev,
			cfg:  SlaveConfig{SlaveID: SlaveSPI0, DstWidth: 1, DstBurst: 4},
			want: negotiated{srcWidth: 16, srcBurst: 16, dstWidth: 1, dstBurst: 4},
		},
		{
			name:     "16 byte width needs 2.0",
			plat:     v11,
			dir:      MemToDev,
			cfg:      SlaveConfig{SlaveID: 50, DstWidth: 16, DstBurst: 1},
			wantCode: errcode.UnsupportedConfig,
		},
		{
			name:     "odd burst",
			plat:     v20,
			dir:      DevToMem,
			cfg:      SlaveConfig{SrcWidth: 4, SrcBurst: 3},
			wantCode: errcode.UnsupportedConfig,
		},
		{
			name:     "device side has no default",
			plat:     v20,
			dir:      MemToDev,
			cfg:      SlaveConfig{SlaveID: SlaveSPI0},
			wantCode: errcode.UnsupportedConfig,
		},
		{
			name:     "dev to dev",
			plat:     v11,
			dir:      DevToDev,
			wantCode: errcode.InvalidParams,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			be := newBackend(tc.plat.Revision)
			got, err := negotiate(be, tc.plat.Slaves, tc.cfg, tc.dir)
			if tc.wantCode != "" {
				if errcode.Of(err) != tc.wantCode {
					t.Fatalf("err = %v, want %q", err, tc.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("negotiate: %v", err)
			}
			word := got.word
			got.word = 0
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			l := be.layout()
			d := l.Unpack(word, true)
			if dmareg.BurstBeats(d.Burst) != got.dstBurst || d.Width != be.widthCode(got.dstWidth) {
				t.Fatalf("packed dst side %+v does not match %+v", d, got)
			}
		})
	}
}

func TestSnap(t *testing.T) {
	if snap([]uint32{8}, 1) != 8 || snap([]uint32{1, 8}, 8) != 8 || snap(nil, 3) != 3 {
		t.Fatal("snap picked the wrong value")
	}
}

func TestWidthCodes(t *testing.T) {
	for bytes, want := range map[uint32]uint32{1: 0, 2: 1, 4: 2, 8: 3} {
		if got := widthCodeOf(bytes, false); got != want {
			t.Errorf("widthCodeOf(%d) = %d, want %d", bytes, got, want)
		}
	}
	if widthCodeOf(16, true) != 4 || widthCodeOf(16, false) != 0 {
		t.Fatal("16-byte width code wrong")
	}
}
