package dma

import (
	"context"
	"sync"
	"sync/atomic"

	"dmaengine-go/drivers/dma/dmareg"
	"dmaengine-go/errcode"
	"dmaengine-go/x/mathx"
)

// ---------------- Configuration ----------------

// Config wires an Engine to its platform and hardware collaborators.
type Config struct {
	Platform Platform

	Regs  Regs
	Cache Cache
	Clock Clock
	IRQ   IRQLine
	Desc  DescMem

	ISRQueue   int // interrupt events buffered for the worker; 0 = 32
	EventQueue int // events kept per channel; 0 = 8

	// Events, if set, receives every delivered event (non-blocking).
	Events chan<- Event
}

// DefaultConfig provides queue defaults; caller must set Platform and hardware.
func DefaultConfig() Config {
	return Config{ISRQueue: 32, EventQueue: 8}
}

const (
	maxChannelsV1 = 8
	maxChannelsV2 = 16
)

// Validate checks the fields New relies on.
func (c Config) Validate() error {
	const op = "config"
	switch {
	case c.Regs == nil || c.Cache == nil || c.Clock == nil || c.IRQ == nil || c.Desc == nil:
		return errf(errcode.InvalidParams, op, "missing hardware collaborator")
	case c.Platform.Channels <= 0:
		return errf(errcode.InvalidParams, op, "no channels")
	case c.Platform.Tasks <= 0 || c.Platform.Tasks > 1<<14:
		return errf(errcode.InvalidParams, op, "descriptor count out of range")
	case c.Platform.Align == 0 || !mathx.IsPow2(c.Platform.Align):
		return errf(errcode.InvalidParams, op, "alignment must be a power of two")
	case len(c.Desc.Bytes()) < c.Platform.Tasks*dmareg.SlotSize:
		return errf(errcode.InvalidParams, op, "descriptor memory too small")
	case !mathx.IsAligned(c.Desc.PhysAddr(), dmareg.SlotSize):
		return errf(errcode.InvalidParams, op, "descriptor memory misaligned")
	}
	limit := maxChannelsV1
	switch c.Platform.Revision {
	case RevV10, RevV11, RevV12:
	case RevV20:
		limit = maxChannelsV2
	default:
		return errf(errcode.Unsupported, op, "unknown revision")
	}
	if c.Platform.Channels > limit {
		return errf(errcode.InvalidParams, op, "too many channels for revision")
	}
	return nil
}

// ---------------- Engine ----------------

// Engine owns one controller: its channel pool, descriptor arena and IRQ path.
type Engine struct {
	plat Platform
	be   backend
	lay  *dmareg.Layout

	regs  Regs
	cache Cache
	clk   Clock
	irq   IRQLine

	descBuf  []byte
	descPhys uint32

	// Guards everything below except the atomics in channel.
	mu       sync.Mutex
	inited   bool
	chans    []channel
	tasks    []task
	freeHead taskID
	nfree    int

	// Written by the ISR; MUST NOT block the ISR.
	isrQ      chan irqEvent
	sink      chan<- Event
	drops     atomic.Uint32
	delivered atomic.Uint32
}

// New builds an Engine. The hardware is not touched until Init.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ISRQueue <= 0 {
		cfg.ISRQueue = 32
	}
	if cfg.EventQueue <= 0 {
		cfg.EventQueue = 8
	}
	be := newBackend(cfg.Platform.Revision)
	e := &Engine{
		plat:     cfg.Platform,
		be:       be,
		lay:      be.layout(),
		regs:     cfg.Regs,
		cache:    cfg.Cache,
		clk:      cfg.Clock,
		irq:      cfg.IRQ,
		descBuf:  cfg.Desc.Bytes(),
		descPhys: cfg.Desc.PhysAddr(),
		chans:    make([]channel, cfg.Platform.Channels),
		tasks:    make([]task, cfg.Platform.Tasks),
		isrQ:     make(chan irqEvent, cfg.ISRQueue),
		sink:     cfg.Events,
	}
	for i := range e.chans {
		ch := &e.chans[i]
		ch.nr = i
		ch.base = e.lay.Chan(i)
		ch.events = make(chan Event, cfg.EventQueue)
		ch.reset()
	}
	e.resetArena()
	return e, nil
}

// Platform returns the profile the engine was built for.
func (e *Engine) Platform() Platform { return e.plat }

// Init brings the clock up, resets the controller and installs the IRQ handler.
// A clock that is already running is cycled first. Calling Init twice is a no-op.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inited {
		return nil
	}
	id := e.plat.ClockID
	if e.clk.IsEnabled(id) {
		e.clockDown()
	}
	if err := e.clk.Enable(id); err != nil {
		println("[dma] bus clock enable failed:", err.Error())
		return errcode.Wrap(errcode.Error, "init", err)
	}
	if err := e.clk.EnableDeassertReset(id); err != nil {
		println("[dma] reset deassert failed:", err.Error())
		return errcode.Wrap(errcode.Error, "init", err)
	}

	for i := range e.chans {
		e.chans[i].release()
	}
	e.resetArena()
	for r := 0; r < e.lay.IRQRegs(len(e.chans)); r++ {
		e.regs.Write32(dmareg.IRQEn(r), 0)
		e.regs.Write32(e.lay.IRQSta(r), 0xFFFFFFFF)
	}

	if err := e.irq.Request(e.HandleIRQ); err != nil {
		e.clockDown()
		return errcode.Wrap(errcode.Error, "init", err)
	}
	e.inited = true
	println("[dma] loaded", e.plat.Name, "rev", e.plat.Revision.String(), "channels", len(e.chans))
	return nil
}

// Deinit stops every channel, frees the IRQ and gates the clock.
// Outstanding handles become stale.
func (e *Engine) Deinit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited {
		return nil
	}
	var first error
	for i := range e.chans {
		ch := &e.chans[i]
		if !ch.used.Load() {
			continue
		}
		if err := e.stopLocked(ch); err != nil && first == nil {
			first = err
		}
		ch.release()
	}
	e.irq.Free()
	e.clockDown()
	e.inited = false
	return first
}

func (e *Engine) clockDown() {
	id := e.plat.ClockID
	_ = e.clk.DisableAssertReset(id)
	_ = e.clk.Disable(id)
}

// Start runs the delivery worker until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-e.isrQ:
				e.deliver(ev)
			}
		}
	}()
}

// DeliverPending drains queued interrupt events on the caller's goroutine and
// returns how many were taken. For polled use without Start.
func (e *Engine) DeliverPending() int {
	n := 0
	for {
		select {
		case ev := <-e.isrQ:
			e.deliver(ev)
			n++
		default:
			return n
		}
	}
}

// Stats returns a snapshot of pool usage and IRQ counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{
		Channels:   len(e.chans),
		TasksFree:  e.nfree,
		TasksTotal: len(e.tasks),
		ISRDrops:   e.drops.Load(),
		Delivered:  e.delivered.Load(),
	}
	for i := range e.chans {
		if e.chans[i].used.Load() {
			s.ChannelsUsed++
		}
	}
	return s
}

// SetLinkID programs the descriptor tag the controller checks (v2.x only).
func (e *Engine) SetLinkID(id uint32) error {
	if e.lay.Rev != dmareg.RevV2 {
		return errf(errcode.Unsupported, "set_link_id", "no link id on "+e.lay.Rev.String())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited {
		return ErrNotInit
	}
	e.regs.Write32(dmareg.V2SetLinkID, id)
	return nil
}

// ResetLinkID restores the default descriptor tag (v2.x only).
func (e *Engine) ResetLinkID() error { return e.SetLinkID(dmareg.LinkIDDefault) }
