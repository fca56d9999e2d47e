// Package dmasim is a host-side model of the DMA controller and the memory
// system around it: physical RAM with a separate CPU (cached) view, cache
// maintenance, the clock/reset gate and the interrupt line.
//
// The controller only sees the physical view. Data the CPU writes is
// invisible to it until cleaned, and data it writes is invisible to the CPU
// until invalidated.
package dmasim

import (
	"errors"
	"sync"

	"dmaengine-go/x/mathx"
)

var ErrOutOfMemory = errors.New("dmasim: out of memory")

// Memory is a flat physical RAM window starting at Base.
type Memory struct {
	Base uint32

	mu   sync.Mutex
	phys []byte
	cpu  []byte
	next uint32
}

// NewMemory returns size bytes of RAM at base.
func NewMemory(base uint32, size int) *Memory {
	return &Memory{Base: base, phys: make([]byte, size), cpu: make([]byte, size), next: base}
}

// Buffer is an allocated region. It satisfies dma.DescMem.
type Buffer struct {
	m    *Memory
	phys uint32
	size uint32
}

// Alloc carves size bytes aligned to align (power of two) from the window.
func (m *Memory) Alloc(size, align uint32) (*Buffer, error) {
	if align == 0 {
		align = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	start := mathx.AlignUp(m.next, align)
	if uint64(start-m.Base)+uint64(size) > uint64(len(m.phys)) {
		return nil, ErrOutOfMemory
	}
	m.next = start + size
	return &Buffer{m: m, phys: start, size: size}, nil
}

// Bytes is the CPU view of the buffer.
func (b *Buffer) Bytes() []byte { return b.m.CPU(b.phys, b.size) }

// PhysAddr is the address the controller uses.
func (b *Buffer) PhysAddr() uint32 { return b.phys }

// Len returns the buffer size.
func (b *Buffer) Len() uint32 { return b.size }

func (m *Memory) span(addr, n uint32) (int, int, bool) {
	if addr < m.Base {
		return 0, 0, false
	}
	off := uint64(addr - m.Base)
	if off+uint64(n) > uint64(len(m.phys)) {
		return 0, 0, false
	}
	return int(off), int(off) + int(n), true
}

// CPU returns the cached view of [addr, addr+n), or nil if out of range.
func (m *Memory) CPU(addr, n uint32) []byte {
	lo, hi, ok := m.span(addr, n)
	if !ok {
		return nil
	}
	return m.cpu[lo:hi:hi]
}

// Phys returns the bus view of [addr, addr+n), or nil if out of range.
func (m *Memory) Phys(addr, n uint32) []byte {
	lo, hi, ok := m.span(addr, n)
	if !ok {
		return nil
	}
	return m.phys[lo:hi:hi]
}
