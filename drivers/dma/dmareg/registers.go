// Package dmareg holds the register map and descriptor image layout of the
// ArtInChip-style system DMA controller, for both the v1.x and v2.x register
// families. It has no behaviour beyond packing and unpacking.
package dmareg

// Controller-relative offsets shared by every revision.
const (
	ChannelBase = 0x100

	// Slot size of one descriptor image in DMA-visible memory. Equal to the
	// cache line so cleaning a slot never touches a neighbour.
	SlotSize = 64

	FIFOSize     = 0x200
	DRQPortMask  = 0x3F
	DelayDefault = 0x40
)

// IRQEn returns the offset of interrupt enable register x.
func IRQEn(x int) uint32 { return uint32(x) * 4 }

// Channel mode register values (v1 only; stored in the image on v2).
const (
	ModeWaitWait     = 0
	ModeSrcHandshake = 1 << 2 // source handshakes, destination waits
	ModeDstHandshake = 1 << 3 // source waits, destination handshakes
)

// Pause register values.
const (
	Resume    = 0x00
	PauseBit  = 0x01
	FillStart = 0x10 // v1: starts the channel in fill mode
)

// v1.x global registers.
const (
	V1MemCfg = 0x20
	V1Gate   = 0x28
	V1ChSta  = 0x30
)

// v1.x channel registers (relative to the channel window).
const (
	V1ChEnable  = 0x00
	V1ChPause   = 0x04
	V1ChTask    = 0x08
	V1ChCfg     = 0x0C
	V1ChSrc     = 0x10
	V1ChSink    = 0x14
	V1ChLeft    = 0x18
	V1ChMode    = 0x28
	V1ChPkgNum  = 0x30
	V1ChFillVal = 0x34
)

// v1.x interrupt bits (per channel field).
const (
	V1IRQHalf = 1 << 0
	V1IRQOne  = 1 << 1
	V1IRQAll  = 1 << 2
)

// v2.x global registers.
const (
	V2BusCfg    = 0x80
	V2SetLinkID = 0x88
	V2FIFOSize  = 0x90
	V2ChSta     = 0xA0
)

// v2.x channel registers (relative to the channel window).
const (
	V2ChCtl1     = 0x00 // enable
	V2ChCtl2     = 0x04 // pause
	V2ChTaskAdd1 = 0x08
	V2ChTaskAdd2 = 0x0C
	V2ChFill     = 0x18
	V2ChByteCnt  = 0x1C
	V2ChLinkID   = 0x20
	V2ChCfg1     = 0x24
	V2ChBlockLen = 0x28
	V2ChSrc      = 0x2C
	V2ChDst      = 0x30
	V2ChTaskLen  = 0x34
	V2ChCfg2     = 0x38
	V2ChNext     = 0x3C
)

// v2.x interrupt bits (per channel field).
const (
	V2IRQHalf    = 1 << 0
	V2IRQOne     = 1 << 1
	V2IRQLink    = 1 << 2
	V2IRQIDErr   = 1 << 3
	V2IRQAddrErr = 1 << 4
	V2IRQRdAHB   = 1 << 5
	V2IRQWtAHB   = 1 << 6
	V2IRQWtAXI   = 1 << 7

	V2IRQErrors = V2IRQIDErr | V2IRQAddrErr | V2IRQRdAHB | V2IRQWtAHB | V2IRQWtAXI
)

// LinkIDDefault is the tag the v2.x controller expects in every descriptor.
const LinkIDDefault = 0xA1C86688

// v2.x transfer types.
const (
	TypeIOSingle  = 0
	TypeBurst     = 1
	TypeMemory    = 2
	TypeMemorySet = 3
)

// v1.x address modes.
const (
	AddrLinear = 0
	AddrFixed  = 1
)
