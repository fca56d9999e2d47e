package dma

import (
	"dmaengine-go/drivers/dma/dmareg"
	"dmaengine-go/errcode"
)

// negotiated holds the effective widths (bytes) and bursts (beats) of both
// sides and the packed width/burst bits of the config word.
type negotiated struct {
	srcWidth, dstWidth uint32
	srcBurst, dstBurst uint32
	word               uint32
}

// snap returns v if the list holds it, else the list's first entry.
func snap(list []uint32, v uint32) uint32 {
	if len(list) == 0 {
		return v
	}
	for _, x := range list {
		if x == v {
			return v
		}
	}
	return list[0]
}

// negotiate resolves cfg for dir against the backend and the optional
// per-slave table. It has no side effects.
func negotiate(be backend, slaves map[uint32]SlaveCaps, cfg SlaveConfig, dir Direction) (negotiated, error) {
	const op = "negotiate"
	c := be.caps()
	n := negotiated{
		srcWidth: cfg.SrcWidth, dstWidth: cfg.DstWidth,
		srcBurst: cfg.SrcBurst, dstBurst: cfg.DstBurst,
	}
	orDefault := func(v, d uint32) uint32 {
		if v == 0 {
			return d
		}
		return v
	}

	// Defaults on the memory side.
	switch dir {
	case MemToDev:
		n.srcWidth = orDefault(n.srcWidth, c.memWidth)
		n.srcBurst = orDefault(n.srcBurst, c.memBurst)
	case DevToMem:
		n.dstWidth = orDefault(n.dstWidth, c.memWidth)
		n.dstBurst = orDefault(n.dstBurst, c.memBurst)
	case MemToMem:
		n.srcWidth = orDefault(n.srcWidth, c.memWidth)
		n.srcBurst = orDefault(n.srcBurst, c.memBurst)
		n.dstWidth = orDefault(n.dstWidth, c.memWidth)
		n.dstBurst = orDefault(n.dstBurst, c.memBurst)
	default:
		return negotiated{}, errf(errcode.InvalidParams, op, "unsupported direction "+dir.String())
	}

	// Snap the device side to what the peripheral accepts.
	if sc, ok := slaves[cfg.SlaveID]; ok {
		switch dir {
		case MemToDev:
			n.dstBurst = snap(sc.Bursts, n.dstBurst)
			n.dstWidth = snap(sc.Widths, n.dstWidth)
		case DevToMem:
			n.srcBurst = snap(sc.Bursts, n.srcBurst)
			n.srcWidth = snap(sc.Widths, n.srcWidth)
		}
	}

	if bit(n.srcWidth)&c.widths == 0 || bit(n.dstWidth)&c.widths == 0 {
		return negotiated{}, errf(errcode.UnsupportedConfig, op, "bus width not supported")
	}
	if bit(n.srcBurst)&c.bursts == 0 || bit(n.dstBurst)&c.bursts == 0 {
		return negotiated{}, errf(errcode.UnsupportedConfig, op, "burst length not supported")
	}

	l := be.layout()
	n.word = l.Pack(false, dmareg.Side{Burst: burstCode(n.srcBurst), Width: be.widthCode(n.srcWidth)}) |
		l.Pack(true, dmareg.Side{Burst: burstCode(n.dstBurst), Width: be.widthCode(n.dstWidth)})
	return n, nil
}
