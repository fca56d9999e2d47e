package dma

import (
	"context"
	"errors"
	"testing"
	"time"

	"dmaengine-go/drivers/dma/dmareg"
	"dmaengine-go/drivers/dma/dmasim"
	"dmaengine-go/errcode"
)

// rig is an engine wired to a simulated SoC.
type rig struct {
	soc *dmasim.SoC
	e   *Engine
	p   Platform
}

func newEngine(t *testing.T, name string, tweak func(*Config)) *rig {
	t.Helper()
	p, ok := LookupPlatform(name)
	if !ok {
		t.Fatalf("no platform %q", name)
	}
	soc := dmasim.NewSoC(p.Revision.Family(), p.Channels, p.CacheLine)
	desc, err := soc.Mem.Alloc(uint32(p.Tasks*dmareg.SlotSize), dmareg.SlotSize)
	if err != nil {
		t.Fatalf("desc alloc: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Platform = p
	cfg.Regs, cfg.Cache, cfg.Clock, cfg.IRQ, cfg.Desc = soc.Ctrl, soc.Cache, soc.Clock, soc.IRQ, desc
	if tweak != nil {
		tweak(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &rig{soc: soc, e: e, p: p}
}

func newRig(t *testing.T, name string) *rig {
	t.Helper()
	r := newEngine(t, name, nil)
	if err := r.e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func (r *rig) buf(t *testing.T, n uint32) *dmasim.Buffer {
	t.Helper()
	b, err := r.soc.Mem.Alloc(n, 64)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	return b
}

func (r *rig) request(t *testing.T) Chan {
	t.Helper()
	c, err := r.e.RequestChannel()
	if err != nil {
		t.Fatalf("RequestChannel: %v", err)
	}
	return c
}

// nextEvent takes a queued event without blocking.
func nextEvent(t *testing.T, c Chan) Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	default:
		t.Fatalf("%s: no event queued", c)
		return Event{}
	}
}

func wantCode(t *testing.T, err error, c errcode.Code) {
	t.Helper()
	if !errors.Is(err, c) {
		t.Fatalf("err = %v, want code %q", err, c)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	r := newEngine(t, "d13x", nil)
	good := DefaultConfig()
	good.Platform = r.p
	good.Regs, good.Cache, good.Clock, good.IRQ = r.soc.Ctrl, r.soc.Cache, r.soc.Clock, r.soc.IRQ
	desc, _ := r.soc.Mem.Alloc(uint32(r.p.Tasks*dmareg.SlotSize), dmareg.SlotSize)
	good.Desc = desc
	if err := good.Validate(); err != nil {
		t.Fatalf("good config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"no regs":     func(c *Config) { c.Regs = nil },
		"no channels": func(c *Config) { c.Platform.Channels = 0 },
		"v1 too many": func(c *Config) { c.Platform.Channels = 9 },
		"bad align":   func(c *Config) { c.Platform.Align = 6 },
		"small arena": func(c *Config) { c.Platform.Tasks = 1000 },
		"unknown rev": func(c *Config) { c.Platform.Revision = 3 },
	}
	for name, mut := range cases {
		c := good
		mut(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	v2 := good
	v2.Platform.Revision = RevV20
	v2.Platform.Channels = 16
	v2.Platform.Tasks = 8
	if err := v2.Validate(); err != nil {
		t.Fatalf("16 channels on v2 rejected: %v", err)
	}
	v2.Platform.Channels = 17
	wantCode(t, v2.Validate(), errcode.InvalidParams)
}

func TestInitCyclesRunningClock(t *testing.T) {
	r := newEngine(t, "d13x", nil)
	_ = r.soc.Clock.Enable(ClockDMA)
	if err := r.e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if r.soc.Clock.Cycles != 1 {
		t.Fatalf("clock cycles = %d, want 1", r.soc.Clock.Cycles)
	}
	if !r.soc.Clock.IsEnabled(ClockDMA) || r.soc.Clock.InReset(ClockDMA) {
		t.Fatal("clock not left running out of reset")
	}
	if !r.soc.IRQ.Requested() {
		t.Fatal("irq handler not installed")
	}
	// second Init is a no-op
	if err := r.e.Init(); err != nil || r.soc.Clock.Cycles != 1 {
		t.Fatalf("second Init: err=%v cycles=%d", err, r.soc.Clock.Cycles)
	}
}

func TestInitClockFailure(t *testing.T) {
	r := newEngine(t, "d21x", nil)
	r.soc.Clock.FailEnable = true
	err := r.e.Init()
	wantCode(t, err, errcode.Error)
	if !errors.Is(err, dmasim.ErrClockStuck) {
		t.Fatalf("cause lost: %v", err)
	}
	if _, err := r.e.RequestChannel(); err != ErrNotInit {
		t.Fatalf("RequestChannel before init: %v", err)
	}

	r.soc.Clock.FailEnable = false
	r.soc.Clock.FailDeassert = true
	wantCode(t, r.e.Init(), errcode.Error)
}

func TestInitIRQFailureGatesClock(t *testing.T) {
	r := newEngine(t, "g73x", nil)
	r.soc.IRQ.FailRequest = errors.New("line busy")
	if err := r.e.Init(); err == nil {
		t.Fatal("expected Init to fail")
	}
	if r.soc.Clock.IsEnabled(ClockDMA) || !r.soc.Clock.InReset(ClockDMA) {
		t.Fatal("clock left on after failed Init")
	}
}

func TestDeinitStopsAndStalesHandles(t *testing.T) {
	r := newRig(t, "d13x")
	c := r.request(t)
	src, dst := r.buf(t, 64), r.buf(t, 64)
	if err := c.PrepMemcpy(dst.PhysAddr(), src.PhysAddr(), 64); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := r.e.Deinit(); err != nil {
		t.Fatalf("Deinit: %v", err)
	}
	if r.soc.Ctrl.Running(c.Index()) {
		t.Fatal("channel still running after Deinit")
	}
	if r.soc.IRQ.Requested() || r.soc.Clock.IsEnabled(ClockDMA) {
		t.Fatal("irq or clock left up")
	}
	if _, err := c.State(); err != ErrNotInit {
		t.Fatalf("State after Deinit: %v", err)
	}

	if err := r.e.Init(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.State(); err == nil {
		t.Fatal("handle survived Deinit/Init")
	}
	if s := r.e.Stats(); s.ChannelsUsed != 0 || s.TasksFree != s.TasksTotal {
		t.Fatalf("pools not reset: %+v", s)
	}
}

func TestSetLinkID(t *testing.T) {
	v1 := newRig(t, "d13x")
	wantCode(t, v1.e.SetLinkID(1), errcode.Unsupported)

	r := newRig(t, "g73x")
	if err := r.e.SetLinkID(0x1234); err != nil {
		t.Fatal(err)
	}
	if got := r.soc.Ctrl.Read32(dmareg.V2SetLinkID); got != 0x1234 {
		t.Fatalf("link id register = %#x", got)
	}
	// Descriptors still carry the default tag, so the controller rejects them.
	c := r.request(t)
	src, dst := r.buf(t, 64), r.buf(t, 64)
	_ = c.PrepMemcpy(dst.PhysAddr(), src.PhysAddr(), 64)
	_ = c.Start()
	r.soc.Ctrl.RunUntilIdle(4)
	r.e.DeliverPending()
	ev := nextEvent(t, c)
	if ev.Kind != EventError || ev.Bits&dmareg.V2IRQIDErr == 0 {
		t.Fatalf("event = %+v, want id error", ev)
	}

	if err := r.e.ResetLinkID(); err != nil {
		t.Fatal(err)
	}
	if got := r.soc.Ctrl.Read32(dmareg.V2SetLinkID); got != dmareg.LinkIDDefault {
		t.Fatalf("link id after reset = %#x", got)
	}
}

func TestWorkerDeliversEvents(t *testing.T) {
	sink := make(chan Event, 4)
	r := newEngine(t, "g73x", func(c *Config) { c.Events = sink })
	if err := r.e.Init(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.e.Start(ctx)

	c := r.request(t)
	src, dst := r.buf(t, 128), r.buf(t, 128)
	_ = c.PrepMemcpy(dst.PhysAddr(), src.PhysAddr(), 128)
	_ = c.Start()
	r.soc.Ctrl.RunUntilIdle(4)

	select {
	case ev := <-sink:
		if ev.Channel != c.Index() || ev.Kind != EventDone {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event from worker")
	}
}
