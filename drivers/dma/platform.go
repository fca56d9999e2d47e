package dma

import "dmaengine-go/drivers/dma/dmareg"

// Revision of the controller IP.
type Revision uint8

const (
	RevV10 Revision = 10
	RevV11 Revision = 11
	RevV12 Revision = 12
	RevV20 Revision = 20
)

// Family returns the register family of r.
func (r Revision) Family() dmareg.Rev {
	if r >= RevV20 {
		return dmareg.RevV2
	}
	return dmareg.RevV1
}

func (r Revision) String() string {
	switch r {
	case RevV10:
		return "1.0"
	case RevV11:
		return "1.1"
	case RevV12:
		return "1.2"
	case RevV20:
		return "2.0"
	}
	return "?"
}

// SlaveCaps lists the bursts (beats) and widths (bytes) a peripheral accepts.
// The first entry of each list is the default.
type SlaveCaps struct {
	Bursts []uint32
	Widths []uint32
}

// Platform is the fixed description of one SoC's controller.
type Platform struct {
	Name      string
	Revision  Revision
	Channels  int
	Tasks     int
	Align     uint32 // required address/length alignment
	CacheLine uint32
	ClockID   uint32
	Slaves    map[uint32]SlaveCaps // nil = no per-slave snapping
}

// ---------------- Slave ids ----------------

// Slave ids double as the controller's DRQ port numbers (low 6 bits).
const (
	SlaveDRAM uint32 = iota
	SlaveSRAM
	SlaveSPI0
	SlaveSPI1
	SlaveSPI2
	SlaveSPI3
	SlaveI2S0
	SlaveI2S1
	SlaveAudioDMIC
	SlaveAudioADC
	SlaveUART0
	SlaveUART1
	SlaveUART2
	SlaveUART3
	SlaveUART4
	SlaveUART5
	SlaveUART6
	SlaveUART7
	SlaveXSPI
	SlavePSADCQ1
	SlavePSADCQ2
)

var (
	width1   = []uint32{1}
	width4   = []uint32{4}
	width2_4 = []uint32{2, 4}

	burst1   = []uint32{1}
	burst8   = []uint32{8}
	burst16  = []uint32{16}
	burst1_8 = []uint32{1, 8}
)

func uarts(m map[uint32]SlaveCaps, n int) map[uint32]SlaveCaps {
	for i := 0; i < n; i++ {
		m[SlaveUART0+uint32(i)] = SlaveCaps{Bursts: burst1, Widths: width1}
	}
	return m
}

func slavesV10() map[uint32]SlaveCaps {
	m := map[uint32]SlaveCaps{
		SlavePSADCQ1:   {burst1, width4},
		SlavePSADCQ2:   {burst1, width4},
		SlaveSPI0:      {burst1_8, width4},
		SlaveSPI1:      {burst1_8, width4},
		SlaveSPI2:      {burst1_8, width4},
		SlaveSPI3:      {burst1_8, width4},
		SlaveI2S0:      {burst1, width2_4},
		SlaveI2S1:      {burst1, width2_4},
		SlaveAudioDMIC: {burst1, width2_4},
		SlaveAudioADC:  {burst1, width2_4},
	}
	return uarts(m, 8)
}

func slavesV11() map[uint32]SlaveCaps {
	m := map[uint32]SlaveCaps{
		SlavePSADCQ1:   {burst1, width4},
		SlavePSADCQ2:   {burst1, width4},
		SlaveSPI0:      {burst8, width4},
		SlaveSPI1:      {burst8, width4},
		SlaveSPI2:      {burst8, width4},
		SlaveSPI3:      {burst8, width4},
		SlaveI2S0:      {burst1, width2_4},
		SlaveI2S1:      {burst1, width2_4},
		SlaveAudioDMIC: {burst1, width2_4},
		SlaveXSPI:      {burst16, width1},
	}
	return uarts(m, 8)
}

func slavesV12() map[uint32]SlaveCaps {
	m := map[uint32]SlaveCaps{
		SlaveSPI0:      {burst8, width4},
		SlaveSPI1:      {burst8, width4},
		SlaveAudioDMIC: {burst1, width2_4},
		SlaveXSPI:      {burst16, width1},
	}
	return uarts(m, 4)
}

// ---------------- Profiles ----------------

// ClockDMA is the conventional clock id of the controller.
const ClockDMA uint32 = 1

var platforms = map[string]Platform{
	"d21x": {Name: "d21x", Revision: RevV10, Channels: 8, Tasks: 24, Align: 8, CacheLine: 64, ClockID: ClockDMA, Slaves: slavesV10()},
	"d13x": {Name: "d13x", Revision: RevV11, Channels: 8, Tasks: 24, Align: 8, CacheLine: 64, ClockID: ClockDMA, Slaves: slavesV11()},
	"d12x": {Name: "d12x", Revision: RevV12, Channels: 8, Tasks: 24, Align: 8, CacheLine: 64, ClockID: ClockDMA, Slaves: slavesV12()},
	"g73x": {Name: "g73x", Revision: RevV20, Channels: 8, Tasks: 24, Align: 8, CacheLine: 64, ClockID: ClockDMA},
}

// LookupPlatform returns a built-in profile by name.
func LookupPlatform(name string) (Platform, bool) {
	p, ok := platforms[name]
	return p, ok
}

// PlatformNames lists the built-in profiles.
func PlatformNames() []string {
	out := make([]string, 0, len(platforms))
	for k := range platforms {
		out = append(out, k)
	}
	return out
}
