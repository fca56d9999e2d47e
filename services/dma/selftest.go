package dma

import (
	"bytes"
	"encoding/binary"
	"time"

	dmaeng "dmaengine-go/drivers/dma"
	"dmaengine-go/errcode"
	"dmaengine-go/types"
)

// selftest runs one memcpy or memset through a fresh channel and checks the
// destination.
func (s *Service) selftest(op string, req types.SelfTest) types.SelfTestResult {
	res := types.SelfTestResult{Op: op, Len: req.Len}
	fail := func(err error) types.SelfTestResult {
		res.Error = err.Error()
		return res
	}
	if req.Len == 0 {
		req.Len = 1024
		res.Len = req.Len
	}
	switch {
	case s.src == nil:
		return fail(errcode.New(errcode.NotReady, op, "no self-test buffers"))
	case req.Len > selftestMax || req.Len%s.eng.Platform().Align != 0:
		return fail(errcode.New(errcode.InvalidParams, op, "length out of range or unaligned"))
	}

	ch, err := s.eng.RequestChannel()
	if err != nil {
		return fail(err)
	}
	defer func() {
		_ = ch.Stop()
		_ = ch.Release()
	}()

	n := req.Len
	src, dst := s.src.Bytes()[:n], s.dst.Bytes()[:n]
	clear(dst)
	want := make([]byte, n)
	if op == CtrlSelftestMemset {
		var pat [4]byte
		binary.LittleEndian.PutUint32(pat[:], req.Value)
		for i := range want {
			want[i] = pat[i%4]
		}
		err = ch.PrepMemset(s.dst.PhysAddr(), req.Value, n)
	} else {
		for i := range src {
			src[i] = byte(i*13 + 1)
		}
		copy(want, src)
		err = ch.PrepMemcpy(s.dst.PhysAddr(), s.src.PhysAddr(), n)
	}
	if err != nil {
		return fail(err)
	}

	t0 := time.Now()
	if err := ch.Start(); err != nil {
		return fail(err)
	}
	if err := waitDone(ch, selftestTimeout); err != nil {
		return fail(err)
	}
	elapsed := time.Since(t0)

	s.res.Cache.Invalidate(s.dst.PhysAddr(), n)
	if !bytes.Equal(dst, want) {
		return fail(errcode.New(errcode.Error, op, "destination mismatch"))
	}
	res.OK = true
	res.ElapsedUs = elapsed.Microseconds()
	if us := res.ElapsedUs; us > 0 {
		res.MBps = float64(n) / float64(us)
	}
	return res
}

func waitDone(ch dmaeng.Chan, d time.Duration) error {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	for {
		select {
		case ev := <-ch.Events():
			switch ev.Kind {
			case dmaeng.EventDone:
				return nil
			case dmaeng.EventError:
				return errcode.New(errcode.Error, "selftest", "dma error event")
			}
		case <-deadline.C:
			return errcode.New(errcode.Timeout, "selftest", "no completion")
		}
	}
}
