package dma

// ---------------- Collaborators ----------------

// Regs is the 32-bit register window of the controller.
type Regs interface {
	Read32(off uint32) uint32
	Write32(off, v uint32)
}

// Cache maintains data cache coherency over physical address ranges.
type Cache interface {
	Clean(addr, size uint32)
	Invalidate(addr, size uint32)
	CleanInvalidate(addr, size uint32)
}

// Clock gates the controller's bus clock and reset line.
type Clock interface {
	IsEnabled(id uint32) bool
	Enable(id uint32) error
	EnableDeassertReset(id uint32) error
	Disable(id uint32) error
	DisableAssertReset(id uint32) error
}

// IRQLine is the controller's interrupt line.
type IRQLine interface {
	Request(handler func()) error
	Free()
}

// DescMem is DMA-visible memory holding descriptor images.
// Bytes is the CPU view; PhysAddr is what the controller sees.
type DescMem interface {
	Bytes() []byte
	PhysAddr() uint32
}
