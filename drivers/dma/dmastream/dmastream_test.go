package dmastream

import (
	"bytes"
	"context"
	"testing"
	"time"

	"dmaengine-go/drivers/dma"
	"dmaengine-go/drivers/dma/dmareg"
	"dmaengine-go/drivers/dma/dmasim"
	"dmaengine-go/x/shmring"
)

type fixture struct {
	soc *dmasim.SoC
	eng *dma.Engine
	mic *dmasim.FIFO
	cap *Capture
}

func newFixture(t *testing.T, ringSize int) *fixture {
	t.Helper()
	p, _ := dma.LookupPlatform("d13x")
	soc := dmasim.NewSoC(p.Revision.Family(), p.Channels, p.CacheLine)
	desc, _ := soc.Mem.Alloc(uint32(p.Tasks*dmareg.SlotSize), dmareg.SlotSize)
	cfg := dma.DefaultConfig()
	cfg.Platform = p
	cfg.Regs, cfg.Cache, cfg.Clock, cfg.IRQ, cfg.Desc = soc.Ctrl, soc.Cache, soc.Clock, soc.IRQ, desc
	eng, err := dma.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Init(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	eng.Start(ctx)

	mic := dmasim.NewFIFO(4096)
	soc.Ctrl.Attach(dma.SlaveAudioDMIC, mic)
	buf, _ := soc.Mem.Alloc(256, 64)
	c, err := New(eng, Config{
		Slave:    dma.SlaveConfig{SrcAddr: 0x1860_0000, SlaveID: dma.SlaveAudioDMIC, SrcWidth: 2},
		Buf:      buf,
		Period:   64,
		Cache:    soc.Cache,
		RingSize: ringSize,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return &fixture{soc: soc, eng: eng, mic: mic, cap: c}
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(d)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not met before timeout")
		case <-time.After(time.Millisecond):
		}
	}
}

// stepPeriod runs one descriptor and waits until the copier has seen it, so
// the controller never overwrites a period that has not been taken yet.
func stepPeriod(t *testing.T, f *fixture) {
	t.Helper()
	got, lost := f.cap.Periods()
	f.soc.Ctrl.Step()
	waitFor(t, time.Second, func() bool {
		g, l := f.cap.Periods()
		return g+l == got+lost+1
	})
}

func TestCaptureStreamsPeriodsInOrder(t *testing.T) {
	f := newFixture(t, 1024)
	in := make([]byte, 512)
	for i := range in {
		in[i] = byte(i * 3)
	}
	_, _ = f.mic.Write(in)

	if err := f.cap.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 8; i++ { // twice round the 4-period ring
		stepPeriod(t, f)
	}

	out := make([]byte, len(in))
	if n := f.cap.Ring().TryReadInto(out); n != len(in) || !bytes.Equal(out, in) {
		t.Fatalf("stream mismatch (n=%d)", n)
	}
	if got, lost := f.cap.Periods(); got != 8 || lost != 0 {
		t.Fatalf("periods = %d/%d", got, lost)
	}
	if shmring.Get(f.cap.Handle()) != f.cap.Ring() || shmring.Owner(f.cap.Handle()) != f.cap.Channel().String() {
		t.Fatal("ring not registered under its channel")
	}
}

func TestCaptureDropsWholePeriodsWhenFull(t *testing.T) {
	f := newFixture(t, 128)
	_, _ = f.mic.Write(make([]byte, 256))
	if err := f.cap.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		stepPeriod(t, f)
	}
	if got, lost := f.cap.Periods(); got != 2 || lost != 2 {
		t.Fatalf("periods = %d/%d, want 2/2", got, lost)
	}
	if f.cap.Ring().Available() != 128 {
		t.Fatalf("ring holds %d bytes", f.cap.Ring().Available())
	}
}

func TestStopAndRestart(t *testing.T) {
	f := newFixture(t, 1024)
	if err := f.cap.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.cap.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded")
	}
	if err := f.cap.Stop(); err != nil {
		t.Fatal(err)
	}
	if f.soc.Ctrl.Running(f.cap.Channel().Index()) {
		t.Fatal("controller still running")
	}
	if err := f.cap.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if err := f.cap.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestNewRejectsPartialPeriods(t *testing.T) {
	soc := dmasim.NewSoC(dmareg.RevV1, 8, 64)
	buf, _ := soc.Mem.Alloc(100, 64)
	if _, err := New(nil, Config{Buf: buf, Cache: soc.Cache, Period: 64}); err == nil {
		t.Fatal("expected error")
	}
}
