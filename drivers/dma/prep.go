package dma

import (
	"dmaengine-go/drivers/dma/dmareg"
	"dmaengine-go/errcode"
	"dmaengine-go/x/mathx"
)

// checkPrep holds the preconditions shared by every preparer.
func (e *Engine) checkPrep(op string, ch *channel, n uint32, addrs ...uint32) error {
	if !ch.chain.empty() || ch.state != Idle {
		return errf(errcode.NotReady, op, "chain already attached")
	}
	if n == 0 {
		return errf(errcode.InvalidParams, op, "zero length")
	}
	if limit := e.be.caps().maxLen; limit != 0 && n > limit {
		return errf(errcode.InvalidParams, op, "length exceeds descriptor limit")
	}
	for _, a := range addrs {
		if a == 0 {
			return errf(errcode.InvalidParams, op, "null address")
		}
		if !mathx.IsAligned(a, e.plat.Align) {
			return errf(errcode.InvalidParams, op, "address not aligned")
		}
	}
	return nil
}

// attach makes c the channel's chain and moves it to Prepared.
func (ch *channel) attach(c chain, dir Direction, fill bool) {
	ch.chain = c
	ch.dir = dir
	ch.fill = fill
	ch.state = Prepared
}

// single allocates one descriptor holding t.
func (e *Engine) single(t dmareg.Task) (chain, error) {
	c := emptyChain()
	id, err := e.allocTask()
	if err != nil {
		return c, err
	}
	e.tasks[id].hw = t
	e.link(&c, id)
	return c, nil
}

// PrepMemcpy builds a one-descriptor DRAM copy of n bytes from src to dst.
func (c Chan) PrepMemcpy(dst, src, n uint32) error {
	const op = "prep_memcpy"
	return c.with(op, func(ch *channel) error {
		return c.e.prepMemcpy(op, ch, dst, src, n)
	})
}

func (e *Engine) prepMemcpy(op string, ch *channel, dst, src, n uint32) error {
	if err := e.checkPrep(op, ch, n, dst, src); err != nil {
		return err
	}
	cc, err := e.single(e.be.memTask(dst, src, n, false))
	if err != nil {
		return err
	}
	e.cache.Clean(src, n)
	e.cache.CleanInvalidate(dst, n)
	ch.attach(cc, MemToMem, false)
	return nil
}

// PrepMemset builds a one-descriptor fill of n bytes at dst with value.
func (c Chan) PrepMemset(dst, value, n uint32) error {
	const op = "prep_memset"
	return c.with(op, func(ch *channel) error {
		e := c.e
		if !e.be.hasFill() {
			return errf(errcode.Unsupported, op, "no fill engine on revision "+e.plat.Revision.String())
		}
		if err := e.checkPrep(op, ch, n, dst); err != nil {
			return err
		}
		cc, err := e.single(e.be.memTask(dst, dst, n, true))
		if err != nil {
			return err
		}
		e.cache.CleanInvalidate(dst, n)
		e.regs.Write32(ch.base+e.lay.ChFill, value)
		ch.attach(cc, MemToMem, true)
		return nil
	})
}

// PrepDevice builds a one-descriptor transfer between memory and the
// configured peripheral. Exactly one of dst/src is the device address.
func (c Chan) PrepDevice(dst, src, n uint32, dir Direction) error {
	const op = "prep_device"
	return c.with(op, func(ch *channel) error {
		return c.e.prepDevice(op, ch, dst, src, n, dir)
	})
}

func (e *Engine) prepDevice(op string, ch *channel, dst, src, n uint32, dir Direction) error {
	if dir != MemToDev && dir != DevToMem {
		return errf(errcode.InvalidParams, op, "direction must involve one device")
	}
	if err := e.checkPrep(op, ch, n, dst, src); err != nil {
		return err
	}
	nc, err := negotiate(e.be, e.plat.Slaves, ch.cfg, dir)
	if err != nil {
		return err
	}
	cc, err := e.single(e.be.deviceTask(nc, ch.cfg.SlaveID, dir, dst, src, n))
	if err != nil {
		return err
	}
	if dir == MemToDev {
		e.cache.Clean(src, n)
	} else {
		e.cache.CleanInvalidate(dst, n)
	}
	ch.attach(cc, dir, false)
	return nil
}

// PrepCyclic builds a ring of bufLen/periodLen descriptors over buf. The
// device address comes from the stored configuration. bufLen must be a
// multiple of periodLen.
func (c Chan) PrepCyclic(buf, bufLen, periodLen uint32, dir Direction) error {
	const op = "prep_cyclic"
	return c.with(op, func(ch *channel) error {
		e := c.e
		if dir != MemToDev && dir != DevToMem {
			return errf(errcode.InvalidParams, op, "direction must involve one device")
		}
		if periodLen == 0 {
			return errf(errcode.InvalidParams, op, "zero period")
		}
		dev := ch.cfg.SrcAddr
		if dir == MemToDev {
			dev = ch.cfg.DstAddr
		}
		// Every period start must be aligned, so periodLen is checked too.
		if err := e.checkPrep(op, ch, periodLen, buf, bufLen, periodLen, dev); err != nil {
			return err
		}
		if bufLen < periodLen || bufLen%periodLen != 0 {
			return errf(errcode.InvalidParams, op, "buffer is not a whole number of periods")
		}
		nc, err := negotiate(e.be, e.plat.Slaves, ch.cfg, dir)
		if err != nil {
			return err
		}

		cc := emptyChain()
		periods := bufLen / periodLen
		for i := uint32(0); i < periods; i++ {
			id, err := e.allocTask()
			if err != nil {
				// Only this call's descriptors go back; the callback stays.
				_ = e.releaseChain(&cc)
				return err
			}
			mem := buf + periodLen*i
			var t dmareg.Task
			if dir == MemToDev {
				t = e.be.deviceTask(nc, ch.cfg.SlaveID, dir, ch.cfg.DstAddr, mem, periodLen)
			} else {
				t = e.be.deviceTask(nc, ch.cfg.SlaveID, dir, mem, ch.cfg.SrcAddr, periodLen)
			}
			e.tasks[id].hw = t
			e.link(&cc, id)
		}
		if dir == MemToDev {
			e.cache.Clean(buf, bufLen)
		} else {
			e.cache.CleanInvalidate(buf, bufLen)
		}
		e.closeRing(&cc)
		ch.attach(cc, dir, false)
		return nil
	})
}

// Transfer prepares n bytes in the configured direction and starts at once.
func (c Chan) Transfer(dst, src, n uint32) error {
	const op = "transfer"
	return c.with(op, func(ch *channel) error {
		e := c.e
		var err error
		if ch.cfg.Direction == MemToMem {
			err = e.prepMemcpy(op, ch, dst, src, n)
		} else {
			err = e.prepDevice(op, ch, dst, src, n, ch.cfg.Direction)
		}
		if err != nil {
			return err
		}
		return e.startLocked(ch)
	})
}
