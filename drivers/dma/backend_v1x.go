package dma

import "dmaengine-go/drivers/dma/dmareg"

// v1x drives revisions 1.0, 1.1 and 1.2.
type v1x struct{ rev Revision }

var v1Caps = caps{
	widths:   bit(1) | bit(2) | bit(4) | bit(8),
	bursts:   bit(1) | bit(4) | bit(8) | bit(16),
	memWidth: 4,
	memBurst: 8,
	maxLen:   dmareg.V1.MaxLen,
}

func (*v1x) layout() *dmareg.Layout {
	return &dmareg.V1
}

func (*v1x) caps() *caps {
	return &v1Caps
}

func (*v1x) widthCode(bytes uint32) uint32 {
	return widthCodeOf(bytes, false)
}

// Revision 1.0 has no fill engine.
func (v *v1x) hasFill() bool { return v.rev != RevV10 }

func (*v1x) memTask(dst, src, n uint32, fill bool) dmareg.Task {
	side := dmareg.Side{Port: SlaveDRAM, Burst: 3, Mode: dmareg.AddrLinear, Width: 2}
	if fill {
		src = dst
	}
	return dmareg.Task{
		Cfg:   dmareg.V1.Pack(false, side) | dmareg.V1.Pack(true, side),
		Src:   src,
		Dst:   dst,
		Len:   n,
		Delay: dmareg.DelayDefault,
		Mode:  dmareg.ModeWaitWait,
	}
}

func (*v1x) deviceTask(nc negotiated, port uint32, dir Direction, dst, src, n uint32) dmareg.Task {
	l := &dmareg.V1
	t := dmareg.Task{Src: src, Dst: dst, Len: n, Delay: dmareg.DelayDefault, Cfg: nc.word}
	if dir == MemToDev {
		t.Cfg |= l.Pack(false, dmareg.Side{Port: SlaveDRAM, Mode: dmareg.AddrLinear}) |
			l.Pack(true, dmareg.Side{Port: port, Mode: dmareg.AddrFixed})
		t.Mode = dmareg.ModeDstHandshake
	} else {
		t.Cfg |= l.Pack(true, dmareg.Side{Port: SlaveDRAM, Mode: dmareg.AddrLinear}) |
			l.Pack(false, dmareg.Side{Port: port, Mode: dmareg.AddrFixed})
		t.Mode = dmareg.ModeSrcHandshake
	}
	return t
}

func (*v1x) interest(cyclic bool, dir Direction) uint32 {
	switch {
	case !cyclic:
		return dmareg.V1IRQAll
	case dir == MemToDev:
		return dmareg.V1IRQHalf
	}
	return dmareg.V1IRQOne
}

func (v *v1x) program(r Regs, base uint32, head *dmareg.Task, headPhys uint32, fill bool) {
	r.Write32(base+dmareg.V1ChMode, head.Mode)
	r.Write32(base+dmareg.V1ChTask, headPhys)
	r.Write32(base+dmareg.V1ChPause, v.resumeValue(fill))
	r.Write32(base+dmareg.V1ChEnable, 1)
}

func (*v1x) resumeValue(fill bool) uint32 {
	if fill {
		return dmareg.FillStart
	}
	return dmareg.Resume
}

func (*v1x) classify(bits uint32) EventKind {
	switch {
	case bits&dmareg.V1IRQAll != 0:
		return EventDone
	case bits&dmareg.V1IRQOne != 0:
		return EventPeriod
	}
	return EventHalf
}
