package dmareg

// Rev identifies a register family.
type Rev uint8

const (
	RevV1 Rev = 1
	RevV2 Rev = 2
)

func (r Rev) String() string {
	switch r {
	case RevV1:
		return "v1x"
	case RevV2:
		return "v2x"
	}
	return "unknown"
}

// shifts of one side (source or destination) inside the packed config word.
type sideShifts struct {
	port, burst, mode, width uint
	modeBits, widthBits      uint
}

// Layout describes where a register family keeps things.
type Layout struct {
	Rev         Rev
	ChStride    uint32
	IRQStaBase  uint32
	ChSta       uint32
	IRQChWidth  uint   // bits per channel field
	IRQChPerReg int    // channel fields per IRQ register
	IRQField    uint32 // mask of one channel field (unshifted)
	LinkEnd     uint32
	MaxLen      uint32 // 0 = no single-descriptor limit

	ChEnable uint32
	ChPause  uint32
	ChTask   uint32
	ChFill   uint32
	ChLeft   uint32

	src, dst sideShifts
}

// V1 is the v1.x register family (revisions 1.0, 1.1, 1.2).
var V1 = Layout{
	Rev:         RevV1,
	ChStride:    0x40,
	IRQStaBase:  0x10,
	ChSta:       V1ChSta,
	IRQChWidth:  4,
	IRQChPerReg: 8,
	IRQField:    0x7,
	LinkEnd:     0xFFFFF800,
	MaxLen:      0x2000000,
	ChEnable:    V1ChEnable,
	ChPause:     V1ChPause,
	ChTask:      V1ChTask,
	ChFill:      V1ChFillVal,
	ChLeft:      V1ChLeft,
	src:         sideShifts{port: 0, burst: 6, mode: 8, width: 9, modeBits: 1, widthBits: 2},
	dst:         sideShifts{port: 16, burst: 22, mode: 24, width: 25, modeBits: 1, widthBits: 2},
}

// V2 is the v2.x register family (revision 2.0).
var V2 = Layout{
	Rev:         RevV2,
	ChStride:    0x80,
	IRQStaBase:  0x40,
	ChSta:       V2ChSta,
	IRQChWidth:  8,
	IRQChPerReg: 4,
	IRQField:    0xFF,
	LinkEnd:     0xFFFFFFFC,
	ChEnable:    V2ChCtl1,
	ChPause:     V2ChCtl2,
	ChTask:      V2ChTaskAdd1,
	ChFill:      V2ChFill,
	ChLeft:      V2ChByteCnt,
	src:         sideShifts{port: 0, burst: 6, mode: 8, width: 12, modeBits: 2, widthBits: 3},
	dst:         sideShifts{port: 16, burst: 22, mode: 24, width: 28, modeBits: 2, widthBits: 3},
}

// For returns the layout of rev, or nil.
func For(rev Rev) *Layout {
	switch rev {
	case RevV1:
		return &V1
	case RevV2:
		return &V2
	}
	return nil
}

// Chan returns the window offset of channel i.
func (l *Layout) Chan(i int) uint32 { return ChannelBase + uint32(i)*l.ChStride }

// IRQSta returns the offset of interrupt status register x.
func (l *Layout) IRQSta(x int) uint32 { return l.IRQStaBase + uint32(x)*4 }

// IRQRegs returns how many IRQ registers serve n channels.
func (l *Layout) IRQRegs(n int) int { return (n + l.IRQChPerReg - 1) / l.IRQChPerReg }

// IRQPos returns the register index and bit shift of channel ch's field.
func (l *Layout) IRQPos(ch int) (reg int, shift uint) {
	return ch / l.IRQChPerReg, uint(ch%l.IRQChPerReg) * l.IRQChWidth
}

// Side is the decoded half of a config word. Burst and Width are codes.
// Mode is the address mode on v1.x and the transfer type on v2.x.
type Side struct {
	Port, Burst, Mode, Width uint32
}

func (l *Layout) shifts(dst bool) *sideShifts {
	if dst {
		return &l.dst
	}
	return &l.src
}

// Pack returns s placed in the source or destination half of a config word.
func (l *Layout) Pack(dst bool, s Side) uint32 {
	sh := l.shifts(dst)
	return (s.Port&DRQPortMask)<<sh.port |
		(s.Burst&0x3)<<sh.burst |
		(s.Mode&(1<<sh.modeBits-1))<<sh.mode |
		(s.Width&(1<<sh.widthBits-1))<<sh.width
}

// Unpack extracts one half of a config word.
func (l *Layout) Unpack(cfg uint32, dst bool) Side {
	sh := l.shifts(dst)
	return Side{
		Port:  cfg >> sh.port & DRQPortMask,
		Burst: cfg >> sh.burst & 0x3,
		Mode:  cfg >> sh.mode & (1<<sh.modeBits - 1),
		Width: cfg >> sh.width & (1<<sh.widthBits - 1),
	}
}

// BurstBeats maps a burst code to beats.
func BurstBeats(code uint32) uint32 {
	return [...]uint32{1, 4, 8, 16}[code&0x3]
}

// WidthBytes maps a width code to bytes.
func WidthBytes(code uint32) uint32 { return 1 << code }
