package dma

import (
	"testing"

	"dmaengine-go/drivers/dma/dmareg"
)

// startMemcpy prepares and starts a small copy on a fresh channel.
func startMemcpy(t *testing.T, r *rig) Chan {
	t.Helper()
	c := r.request(t)
	src, dst := r.buf(t, 64), r.buf(t, 64)
	if err := c.PrepMemcpy(dst.PhysAddr(), src.PhysAddr(), 64); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestISRQueueOverflowCountsDrops(t *testing.T) {
	r := newEngine(t, "d13x", func(c *Config) { c.ISRQueue = 1 })
	if err := r.e.Init(); err != nil {
		t.Fatal(err)
	}
	startMemcpy(t, r)
	startMemcpy(t, r)
	startMemcpy(t, r)
	r.soc.Ctrl.Step() // all three finish in one interrupt

	if s := r.e.Stats(); s.ISRDrops != 2 {
		t.Fatalf("ISRDrops = %d, want 2", s.ISRDrops)
	}
	if got := r.e.DeliverPending(); got != 1 {
		t.Fatalf("DeliverPending = %d, want 1", got)
	}
	if sta := r.soc.Ctrl.Read32(dmareg.V1.IRQSta(0)); sta != 0 {
		t.Fatalf("status not acknowledged: %#x", sta)
	}
}

func TestEventsAfterStopAreDropped(t *testing.T) {
	r := newRig(t, "d13x")
	c := startMemcpy(t, r)
	called := false
	_ = c.RegisterCallback(func(any) { called = true }, nil)
	r.soc.Ctrl.Step()

	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if got := r.e.DeliverPending(); got != 1 {
		t.Fatalf("DeliverPending = %d", got)
	}
	if called {
		t.Fatal("callback ran for a stopped channel")
	}
	if s := r.e.Stats(); s.Delivered != 0 {
		t.Fatalf("Delivered = %d", s.Delivered)
	}
}

func TestEventsFromReleasedChannelDoNotReachNewOwner(t *testing.T) {
	r := newRig(t, "g73x")
	c := startMemcpy(t, r)
	r.soc.Ctrl.Step()
	_ = c.Stop()
	_ = c.Release()

	next := startMemcpy(t, r)
	if next.Index() != c.Index() {
		t.Fatal("expected slot reuse")
	}
	r.e.DeliverPending()
	select {
	case ev := <-next.Events():
		t.Fatalf("stale event leaked: %+v", ev)
	default:
	}
}

func TestV2ErrorEvent(t *testing.T) {
	r := newRig(t, "g73x")
	c := r.request(t)
	src, dst := r.buf(t, 64), r.buf(t, 64)
	_ = c.PrepMemcpy(dst.PhysAddr(), src.PhysAddr(), 64)
	r.soc.Ctrl.InjectError(c.Index(), dmareg.V2IRQWtAXI)
	_ = c.Start()
	r.soc.Ctrl.RunUntilIdle(4)
	r.e.DeliverPending()

	ev := nextEvent(t, c)
	if ev.Kind != EventError || ev.Bits != dmareg.V2IRQWtAXI {
		t.Fatalf("event = %+v", ev)
	}
}

func TestUninterestingBitsAreIgnored(t *testing.T) {
	r := newRig(t, "d13x")
	c := startMemcpy(t, r)
	// Half and one are not enabled for a one-shot chain.
	reg, shift := dmareg.V1.IRQPos(c.Index())
	r.soc.Ctrl.Write32(dmareg.IRQEn(reg), dmareg.V1IRQHalf<<shift)
	r.soc.Ctrl.RunUntilIdle(4)
	r.e.DeliverPending()
	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestEventQueueDropsOldest(t *testing.T) {
	q := make(chan Event, 2)
	for i := 0; i < 3; i++ {
		pushEvent(q, Event{Channel: i})
	}
	if a, b := <-q, <-q; a.Channel != 1 || b.Channel != 2 {
		t.Fatalf("queue kept %d,%d", a.Channel, b.Channel)
	}
}

func TestSinkNeverBlocks(t *testing.T) {
	sink := make(chan Event) // unbuffered, nobody reading
	r := newEngine(t, "d13x", func(c *Config) { c.Events = sink })
	if err := r.e.Init(); err != nil {
		t.Fatal(err)
	}
	c := startMemcpy(t, r)
	r.soc.Ctrl.Step()
	r.e.DeliverPending()
	if ev := nextEvent(t, c); ev.Kind != EventDone {
		t.Fatalf("event = %+v", ev)
	}
}

func TestStopKeepsSiblingIRQEnables(t *testing.T) {
	for _, name := range []string{"d13x", "g73x"} {
		t.Run(name, func(t *testing.T) {
			r := newRig(t, name)
			lay := dmareg.For(r.p.Revision.Family())
			var chans []Chan
			for i := 0; i < 3; i++ {
				chans = append(chans, startMemcpy(t, r))
			}
			reg, shift := lay.IRQPos(chans[1].Index())
			field := lay.IRQField << shift
			before := r.soc.Ctrl.Read32(dmareg.IRQEn(reg))
			if before&field == 0 {
				t.Fatalf("channel 1 not enabled: %#x", before)
			}

			if err := chans[1].Stop(); err != nil {
				t.Fatal(err)
			}
			if got, want := r.soc.Ctrl.Read32(dmareg.IRQEn(reg)), before&^field; got != want {
				t.Fatalf("IRQ enable after Stop = %#x, want %#x", got, want)
			}
		})
	}
}

func TestV2ChannelsInSecondIRQRegister(t *testing.T) {
	r := newRig(t, "g73x")
	lay := &dmareg.V2
	var chans []Chan
	for i := 0; i < 6; i++ {
		chans = append(chans, startMemcpy(t, r))
	}
	hi := chans[5]
	if reg, _ := lay.IRQPos(hi.Index()); reg != 1 {
		t.Fatalf("channel %d sits in IRQ register %d", hi.Index(), reg)
	}
	en1 := r.soc.Ctrl.Read32(dmareg.IRQEn(1))
	_, s4 := lay.IRQPos(4)
	_, s5 := lay.IRQPos(5)
	want := uint32(dmareg.V2IRQLink | dmareg.V2IRQErrors)
	if en1>>s4&lay.IRQField != want || en1>>s5&lay.IRQField != want {
		t.Fatalf("second enable register = %#x", en1)
	}

	r.soc.Ctrl.RunUntilIdle(4)
	if sta := r.soc.Ctrl.Read32(lay.IRQSta(1)); sta != 0 {
		t.Fatalf("second status register not acknowledged: %#x", sta)
	}
	if got := r.e.DeliverPending(); got != len(chans) {
		t.Fatalf("delivered %d events, want %d", got, len(chans))
	}
	for _, c := range chans[4:] {
		if ev := nextEvent(t, c); ev.Kind != EventDone || ev.Channel != c.Index() {
			t.Fatalf("%s: event = %+v", c, ev)
		}
	}

	if err := chans[4].Stop(); err != nil {
		t.Fatal(err)
	}
	if got := r.soc.Ctrl.Read32(dmareg.IRQEn(1)); got != en1&^(lay.IRQField<<s4) {
		t.Fatalf("stopping channel 4 changed channel 5: %#x -> %#x", en1, got)
	}
}
