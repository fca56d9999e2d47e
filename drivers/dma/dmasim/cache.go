package dmasim

import (
	"sync"

	"dmaengine-go/x/mathx"
)

// CacheOpKind names a maintenance operation.
type CacheOpKind uint8

const (
	OpClean CacheOpKind = iota
	OpInvalidate
	OpCleanInvalidate
)

func (k CacheOpKind) String() string {
	return [...]string{"clean", "invalidate", "clean_invalidate"}[k]
}

// CacheOp is one logged maintenance call, as requested (not line-rounded).
type CacheOp struct {
	Kind CacheOpKind
	Addr uint32
	Size uint32
}

// Cache models a write-back data cache over Memory with every line dirty.
type Cache struct {
	mem  *Memory
	line uint32

	mu  sync.Mutex
	log []CacheOp
}

// NewCache returns a cache with the given line size (power of two).
func NewCache(mem *Memory, line uint32) *Cache {
	if line == 0 {
		line = 64
	}
	return &Cache{mem: mem, line: line}
}

func (c *Cache) lines(addr, size uint32) (uint32, uint32) {
	lo := mathx.AlignDown(addr, c.line)
	hi := mathx.AlignUp(addr+size, c.line)
	return lo, hi - lo
}

func (c *Cache) record(k CacheOpKind, addr, size uint32) {
	c.mu.Lock()
	c.log = append(c.log, CacheOp{Kind: k, Addr: addr, Size: size})
	c.mu.Unlock()
}

// Clean writes CPU lines back to RAM.
func (c *Cache) Clean(addr, size uint32) {
	c.record(OpClean, addr, size)
	lo, n := c.lines(addr, size)
	if dst, src := c.mem.Phys(lo, n), c.mem.CPU(lo, n); dst != nil {
		copy(dst, src)
	}
}

// Invalidate drops CPU lines so the next read sees RAM.
func (c *Cache) Invalidate(addr, size uint32) {
	c.record(OpInvalidate, addr, size)
	lo, n := c.lines(addr, size)
	if dst, src := c.mem.CPU(lo, n), c.mem.Phys(lo, n); dst != nil {
		copy(dst, src)
	}
}

// CleanInvalidate writes lines back and drops them.
func (c *Cache) CleanInvalidate(addr, size uint32) {
	c.record(OpCleanInvalidate, addr, size)
	lo, n := c.lines(addr, size)
	if dst, src := c.mem.Phys(lo, n), c.mem.CPU(lo, n); dst != nil {
		copy(dst, src)
	}
}

// Log returns a copy of the maintenance calls so far.
func (c *Cache) Log() []CacheOp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CacheOp(nil), c.log...)
}

// ResetLog forgets logged calls.
func (c *Cache) ResetLog() {
	c.mu.Lock()
	c.log = c.log[:0]
	c.mu.Unlock()
}
