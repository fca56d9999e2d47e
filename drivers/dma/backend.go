package dma

import "dmaengine-go/drivers/dma/dmareg"

// caps is what a register family accepts.
type caps struct {
	widths   uint64 // bit n set: n-byte width supported
	bursts   uint64 // bit n set: n-beat burst supported
	memWidth uint32 // memory-side default width (bytes)
	memBurst uint32 // memory-side default burst (beats)
	maxLen   uint32 // 0 = unlimited
}

// backend isolates what differs between register families.
type backend interface {
	layout() *dmareg.Layout
	caps() *caps
	widthCode(bytes uint32) uint32
	hasFill() bool

	// memTask builds a DRAM to DRAM descriptor; fill selects the memset variant.
	memTask(dst, src, n uint32, fill bool) dmareg.Task
	// deviceTask builds one descriptor of a device transfer from a negotiated word.
	deviceTask(nc negotiated, port uint32, dir Direction, dst, src, n uint32) dmareg.Task

	// interest is the IRQ field a started chain listens to.
	interest(cyclic bool, dir Direction) uint32
	// program writes the head pointer and enables the channel.
	program(r Regs, base uint32, head *dmareg.Task, headPhys uint32, fill bool)
	// resumeValue is what clears the pause bit without dropping fill mode.
	resumeValue(fill bool) uint32
	classify(bits uint32) EventKind
}

func newBackend(rev Revision) backend {
	if rev.Family() == dmareg.RevV2 {
		return &v2x{}
	}
	return &v1x{rev: rev}
}

func bit(n uint32) uint64 {
	if n >= 64 {
		return 0
	}
	return 1 << n
}

// burstCode maps beats to the 2-bit burst field.
func burstCode(beats uint32) uint32 {
	switch beats {
	case 4:
		return 1
	case 8:
		return 2
	case 16:
		return 3
	}
	return 0
}

// widthCodeOf maps bytes to the width field; 1-byte or unknown maps to 0.
func widthCodeOf(bytes uint32, max16 bool) uint32 {
	switch bytes {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	case 16:
		if max16 {
			return 4
		}
	}
	return 0
}
