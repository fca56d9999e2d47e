package dmasim

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"dmaengine-go/drivers/dma/dmareg"

	"periph.io/x/periph/conn/physic"
)

// Device is a peripheral FIFO behind a DRQ port.
type Device interface {
	// Push takes bytes the controller writes to the port.
	Push(p []byte)
	// Pull fills p with bytes the controller reads from the port.
	Pull(p []byte)
}

type simChan struct {
	running bool
	cur     uint32 // physical address of the current descriptor
	inject  uint32 // error bits to raise on the next step (v2.x)
}

// Controller is the register-level model. It implements dma.Regs.
type Controller struct {
	lay *dmareg.Layout
	mem *Memory
	irq *IRQ

	mu   sync.Mutex
	regs map[uint32]uint32
	ch   []simChan
	dev  map[uint32]Device

	fetches int
}

// NewController models a controller of family rev with n channels.
func NewController(rev dmareg.Rev, n int, mem *Memory, irq *IRQ) *Controller {
	c := &Controller{
		lay:  dmareg.For(rev),
		mem:  mem,
		irq:  irq,
		regs: map[uint32]uint32{},
		ch:   make([]simChan, n),
		dev:  map[uint32]Device{},
	}
	if rev == dmareg.RevV2 {
		c.regs[dmareg.V2SetLinkID] = dmareg.LinkIDDefault
	}
	return c
}

// Attach connects d to DRQ port.
func (c *Controller) Attach(port uint32, d Device) {
	c.mu.Lock()
	c.dev[port&dmareg.DRQPortMask] = d
	c.mu.Unlock()
}

// Fetches returns how many descriptors have been executed.
func (c *Controller) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

// Running reports whether channel i is enabled and not finished.
func (c *Controller) Running(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch[i].running
}

// InjectError makes channel i fail its next descriptor with bits (v2.x error bits).
func (c *Controller) InjectError(i int, bits uint32) {
	c.mu.Lock()
	c.ch[i].inject = bits
	c.mu.Unlock()
}

// chanReg splits off into (channel, register) if it lies in a channel window.
func (c *Controller) chanReg(off uint32) (int, uint32, bool) {
	if off < dmareg.ChannelBase {
		return 0, 0, false
	}
	i := int((off - dmareg.ChannelBase) / c.lay.ChStride)
	if i >= len(c.ch) {
		return 0, 0, false
	}
	return i, (off - dmareg.ChannelBase) % c.lay.ChStride, true
}

func (c *Controller) isIRQSta(off uint32) bool {
	for r := 0; r < c.lay.IRQRegs(len(c.ch)); r++ {
		if off == c.lay.IRQSta(r) {
			return true
		}
	}
	return false
}

func (c *Controller) Read32(off uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if off == c.lay.ChSta {
		var v uint32
		for i := range c.ch {
			if c.ch[i].running {
				v |= 1 << uint(i)
			}
		}
		return v
	}
	if i, reg, ok := c.chanReg(off); ok && reg == c.lay.ChLeft {
		if !c.ch[i].running {
			return 0
		}
		if img := c.mem.Phys(c.ch[i].cur, dmareg.SlotSize); img != nil {
			return c.lay.Decode(img).Len
		}
		return 0
	}
	return c.regs[off]
}

func (c *Controller) Write32(off, v uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isIRQSta(off) {
		c.regs[off] &^= v
		return
	}
	c.regs[off] = v
	i, reg, ok := c.chanReg(off)
	if !ok || reg != c.lay.ChEnable {
		return
	}
	ch := &c.ch[i]
	switch {
	case v&1 != 0 && !ch.running:
		ch.running = true
		ch.cur = c.regs[c.lay.Chan(i)+c.lay.ChTask]
	case v&1 == 0:
		ch.running = false
	}
}

// irqBits returns the family's half, one and whole-chain bits.
func (c *Controller) irqBits() (half, one, all uint32) {
	if c.lay.Rev == dmareg.RevV2 {
		return dmareg.V2IRQHalf, dmareg.V2IRQOne, dmareg.V2IRQLink
	}
	return dmareg.V1IRQHalf, dmareg.V1IRQOne, dmareg.V1IRQAll
}

func isMemPort(port uint32) bool { return port <= 1 } // DRAM, SRAM

// exec runs the current descriptor of channel i. Caller holds c.mu.
func (c *Controller) exec(i int) uint32 {
	ch := &c.ch[i]
	base := c.lay.Chan(i)
	v2 := c.lay.Rev == dmareg.RevV2
	fail := func(bits uint32) uint32 {
		ch.running = false
		if !v2 {
			return 0
		}
		return bits
	}

	if ch.inject != 0 {
		bits := ch.inject
		ch.inject = 0
		return fail(bits)
	}
	img := c.mem.Phys(ch.cur, dmareg.SlotSize)
	if img == nil {
		return fail(dmareg.V2IRQAddrErr)
	}
	t := c.lay.Decode(img)
	if v2 && t.LinkID != c.regs[dmareg.V2SetLinkID] {
		return fail(dmareg.V2IRQIDErr)
	}
	src, dst := c.lay.Unpack(t.Cfg, false), c.lay.Unpack(t.Cfg, true)

	data := make([]byte, t.Len)
	fill := c.regs[base+c.lay.ChPause]&dmareg.FillStart != 0
	if v2 {
		fill = dst.Mode == dmareg.TypeMemorySet
	}
	switch {
	case fill:
		pat := c.regs[base+c.lay.ChFill]
		for k := range data {
			data[k] = byte(pat >> (8 * uint(k%4)))
		}
	case isMemPort(src.Port):
		from := c.mem.Phys(t.Src, t.Len)
		if from == nil {
			return fail(dmareg.V2IRQAddrErr)
		}
		copy(data, from)
	default:
		if d := c.dev[src.Port]; d != nil {
			d.Pull(data)
		}
	}
	if isMemPort(dst.Port) {
		to := c.mem.Phys(t.Dst, t.Len)
		if to == nil {
			return fail(dmareg.V2IRQAddrErr)
		}
		copy(to, data)
	} else if d := c.dev[dst.Port]; d != nil {
		d.Push(data)
	}
	c.fetches++

	half, one, all := c.irqBits()
	bits := half | one
	if t.Next == c.lay.LinkEnd {
		bits |= all
		ch.running = false
	} else {
		ch.cur = t.Next
	}
	return bits
}

// latch sets the enabled subset of bits pending for channel i.
func (c *Controller) latch(i int, bits uint32) bool {
	reg, shift := c.lay.IRQPos(i)
	en := c.regs[dmareg.IRQEn(reg)] >> shift & c.lay.IRQField
	pending := bits & en
	if pending == 0 {
		return false
	}
	c.regs[c.lay.IRQSta(reg)] |= pending << shift
	return true
}

// Step executes one descriptor on every running, unpaused channel and
// raises the interrupt if anything enabled became pending. It reports
// whether any channel is still running.
func (c *Controller) Step() bool {
	c.mu.Lock()
	raised := false
	for i := range c.ch {
		if !c.ch[i].running {
			continue
		}
		if c.regs[c.lay.Chan(i)+c.lay.ChPause]&dmareg.PauseBit != 0 {
			continue
		}
		if c.latch(i, c.exec(i)) {
			raised = true
		}
	}
	active := false
	for i := range c.ch {
		active = active || c.ch[i].running
	}
	c.mu.Unlock()
	if raised {
		c.irq.Fire()
	}
	return active
}

// RunUntilIdle steps until no channel runs or limit steps pass.
func (c *Controller) RunUntilIdle(limit int) int {
	n := 0
	for n < limit {
		n++
		if !c.Step() {
			break
		}
	}
	return n
}

// Run steps once per period of rate until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, rate physic.Frequency) {
	period := rate.Period()
	if period <= 0 {
		period = time.Millisecond
	}
	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			c.Step()
		}
	}
}

// Word reads a little-endian word from the physical view (test helper).
func (c *Controller) Word(addr uint32) uint32 {
	b := c.mem.Phys(addr, 4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}
