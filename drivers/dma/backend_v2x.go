package dma

import "dmaengine-go/drivers/dma/dmareg"

// v2x drives revision 2.0.
type v2x struct{}

var v2Caps = caps{
	widths:   bit(1) | bit(2) | bit(4) | bit(8) | bit(16),
	bursts:   bit(1) | bit(4) | bit(8) | bit(16),
	memWidth: 16,
	memBurst: 16,
}

func (*v2x) layout() *dmareg.Layout {
	return &dmareg.V2
}

func (*v2x) caps() *caps {
	return &v2Caps
}

func (*v2x) widthCode(bytes uint32) uint32 {
	return widthCodeOf(bytes, true)
}

func (*v2x) hasFill() bool {
	return true
}

func (*v2x) memTask(dst, src, n uint32, fill bool) dmareg.Task {
	typ := uint32(dmareg.TypeMemory)
	if fill {
		typ = dmareg.TypeMemorySet
		src = dst
	}
	side := dmareg.Side{Port: SlaveDRAM, Burst: 3, Mode: typ, Width: 4}
	return dmareg.Task{
		LinkID:   dmareg.LinkIDDefault,
		Cfg:      dmareg.V2.Pack(false, side) | dmareg.V2.Pack(true, side),
		BlockLen: dmareg.FIFOSize / 2,
		Src:      src,
		Dst:      dst,
		Len:      n,
		Mode:     dmareg.ModeWaitWait,
	}
}

func deviceType(beats uint32) uint32 {
	if beats != 1 {
		return dmareg.TypeBurst
	}
	return dmareg.TypeIOSingle
}

func (*v2x) deviceTask(nc negotiated, port uint32, dir Direction, dst, src, n uint32) dmareg.Task {
	l := &dmareg.V2
	t := dmareg.Task{LinkID: dmareg.LinkIDDefault, Src: src, Dst: dst, Len: n, Cfg: nc.word}
	if dir == MemToDev {
		t.BlockLen = nc.dstWidth * nc.dstBurst
		t.Cfg |= l.Pack(false, dmareg.Side{Port: SlaveDRAM, Mode: dmareg.TypeMemory}) |
			l.Pack(true, dmareg.Side{Port: port, Mode: deviceType(nc.dstBurst)})
		t.Mode = dmareg.ModeDstHandshake
	} else {
		t.BlockLen = nc.srcWidth * nc.srcBurst
		t.Cfg |= l.Pack(true, dmareg.Side{Port: SlaveDRAM, Mode: dmareg.TypeMemory}) |
			l.Pack(false, dmareg.Side{Port: port, Mode: deviceType(nc.srcBurst)})
		t.Mode = dmareg.ModeSrcHandshake
	}
	return t
}

func (*v2x) interest(cyclic bool, dir Direction) uint32 {
	irq := uint32(dmareg.V2IRQLink)
	if cyclic {
		irq = dmareg.V2IRQOne
		if dir == MemToDev {
			irq = dmareg.V2IRQHalf
		}
	}
	return irq | dmareg.V2IRQErrors
}

func (v *v2x) program(r Regs, base uint32, _ *dmareg.Task, headPhys uint32, fill bool) {
	r.Write32(base+dmareg.V2ChTaskAdd1, headPhys)
	r.Write32(base+dmareg.V2ChCtl2, v.resumeValue(fill))
	r.Write32(base+dmareg.V2ChCtl1, 1)
}

func (*v2x) resumeValue(bool) uint32 { return dmareg.Resume }

func (*v2x) classify(bits uint32) EventKind {
	switch {
	case bits&dmareg.V2IRQErrors != 0:
		return EventError
	case bits&dmareg.V2IRQLink != 0:
		return EventDone
	case bits&dmareg.V2IRQOne != 0:
		return EventPeriod
	}
	return EventHalf
}
