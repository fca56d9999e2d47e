package dma

import (
	"dmaengine-go/drivers/dma/dmareg"
	"dmaengine-go/errcode"
)

// Start hands the prepared chain to the controller.
func (c Chan) Start() error {
	return c.with("start", c.e.startLocked)
}

func (e *Engine) startLocked(ch *channel) error {
	if ch.state != Prepared || ch.chain.empty() {
		return errf(errcode.NotReady, "start", "nothing prepared")
	}

	// Publish every descriptor image before the controller can fetch it.
	var head *dmareg.Task
	e.walk(&ch.chain, func(id taskID, t *task) {
		if head == nil {
			head = &t.hw
		}
		e.lay.Encode(e.slotBytes(id), &t.hw)
		e.cache.Clean(e.slotPhys(id), dmareg.SlotSize)
	})

	irq := e.be.interest(ch.chain.cyclic, ch.dir)
	ch.interest.Store(irq)
	ch.run.Add(1)

	reg, shift := e.lay.IRQPos(ch.nr)
	en := e.regs.Read32(dmareg.IRQEn(reg))
	en &^= e.lay.IRQField << shift
	en |= irq << shift
	e.regs.Write32(dmareg.IRQEn(reg), en)

	e.be.program(e.regs, ch.base, head, e.slotPhys(ch.chain.head), ch.fill)
	ch.state = Running
	return nil
}

// Stop halts the channel and frees its chain and callback. Stopping an idle
// channel succeeds, so a second Stop is harmless.
func (c Chan) Stop() error {
	return c.with("stop", c.e.stopLocked)
}

// TerminateAll is Stop under its dmaengine name.
func (c Chan) TerminateAll() error { return c.Stop() }

func (e *Engine) stopLocked(ch *channel) error {
	switch ch.state {
	case Idle:
		return nil
	case Running, Paused:
		reg, shift := e.lay.IRQPos(ch.nr)
		en := e.regs.Read32(dmareg.IRQEn(reg))
		e.regs.Write32(dmareg.IRQEn(reg), en&^(e.lay.IRQField<<shift))
		ch.interest.Store(0)

		e.setPause(ch)
		e.regs.Write32(ch.base+e.lay.ChEnable, 0)
		e.regs.Write32(ch.base+e.lay.ChPause, dmareg.Resume)
	}
	err := e.releaseChain(&ch.chain)
	ch.state = Idle
	ch.fill = false
	ch.cb, ch.cbArg = nil, nil
	return err
}

func (e *Engine) setPause(ch *channel) {
	off := ch.base + e.lay.ChPause
	e.regs.Write32(off, e.regs.Read32(off)|dmareg.PauseBit)
}

// Pause freezes a started transfer.
func (c Chan) Pause() error {
	return c.with("pause", func(ch *channel) error {
		if ch.state != Running && ch.state != Paused {
			return errf(errcode.NotReady, "pause", "channel not started")
		}
		c.e.setPause(ch)
		ch.state = Paused
		return nil
	})
}

// Resume continues a paused transfer. Resuming a running channel is a no-op.
func (c Chan) Resume() error {
	return c.with("resume", func(ch *channel) error {
		switch ch.state {
		case Running:
			return nil
		case Paused:
			c.e.regs.Write32(ch.base+c.e.lay.ChPause, c.e.be.resumeValue(ch.fill))
			ch.state = Running
			return nil
		}
		return errf(errcode.NotReady, "resume", "channel not started")
	})
}

// Status reports whether the controller still runs the channel and, if so,
// how many bytes remain in the current descriptor.
func (c Chan) Status() (Status, uint32, error) {
	st, left := Complete, uint32(0)
	err := c.with("status", func(ch *channel) error {
		e := c.e
		if e.regs.Read32(e.lay.ChSta)&(1<<uint(ch.nr)) == 0 {
			return nil
		}
		st = InProgress
		left = e.regs.Read32(ch.base + e.lay.ChLeft)
		return nil
	})
	return st, left, err
}
