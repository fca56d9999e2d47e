package dmasim

import "dmaengine-go/drivers/dma/dmareg"

// Default RAM window of a simulated SoC.
const (
	RAMBase = 0x4000_0000
	RAMSize = 1 << 20
)

// SoC bundles a controller with its memory system.
type SoC struct {
	Mem   *Memory
	Cache *Cache
	Clock *Clock
	IRQ   *IRQ
	Ctrl  *Controller
}

// NewSoC builds a controller of family rev with n channels over fresh RAM.
func NewSoC(rev dmareg.Rev, n int, cacheLine uint32) *SoC {
	mem := NewMemory(RAMBase, RAMSize)
	irq := &IRQ{}
	return &SoC{
		Mem:   mem,
		Cache: NewCache(mem, cacheLine),
		Clock: NewClock(),
		IRQ:   irq,
		Ctrl:  NewController(rev, n, mem, irq),
	}
}
