// Package dmastream turns a cyclic dev→mem DMA ring into a byte stream.
//
// Each period-complete event copies one period out of the DMA buffer into
// an shmring.Ring. The reader drains the ring at its own pace; if it falls
// behind, whole periods are dropped and counted.
package dmastream

import (
	"context"
	"sync"

	"dmaengine-go/drivers/dma"
	"dmaengine-go/errcode"
	"dmaengine-go/x/shmring"
)

type Config struct {
	Slave  dma.SlaveConfig // Direction is forced to DevToMem
	Buf    dma.DescMem     // DMA ring buffer; length a multiple of Period
	Period uint32
	Cache  dma.Cache

	RingSize int // power of two; 0 = 4 x len(Buf), rounded up
}

// Capture owns one channel running a cyclic capture.
type Capture struct {
	ch      dma.Chan
	cfg     Config
	periods int
	ring    *shmring.Ring
	handle  shmring.Handle

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	next    int // period the controller fills next
	got     uint32
	lost    uint32
}

func ringSize(n int) int {
	s := 2
	for s < n {
		s <<= 1
	}
	return s
}

// New claims a channel and configures it. The ring is registered in the
// shmring registry so other components can find it by Handle.
func New(eng *dma.Engine, cfg Config) (*Capture, error) {
	if cfg.Buf == nil || cfg.Cache == nil || cfg.Period == 0 {
		return nil, errcode.New(errcode.InvalidParams, "stream", "buffer, cache and period required")
	}
	n := len(cfg.Buf.Bytes())
	if n == 0 || n%int(cfg.Period) != 0 {
		return nil, errcode.New(errcode.InvalidParams, "stream", "buffer is not a whole number of periods")
	}
	cfg.Slave.Direction = dma.DevToMem
	if cfg.RingSize <= 0 {
		cfg.RingSize = 4 * n
	}
	ch, err := eng.RequestChannel()
	if err != nil {
		return nil, err
	}
	if err := ch.Config(cfg.Slave); err != nil {
		_ = ch.Release()
		return nil, err
	}
	h, ring := shmring.NewRegistered(ringSize(cfg.RingSize), ch.String())
	return &Capture{ch: ch, cfg: cfg, periods: n / int(cfg.Period), ring: ring, handle: h}, nil
}

// Ring is the consumer side of the stream.
func (c *Capture) Ring() *shmring.Ring { return c.ring }

// Handle identifies the ring in the shmring registry.
func (c *Capture) Handle() shmring.Handle { return c.handle }

// Channel returns the DMA channel in use.
func (c *Capture) Channel() dma.Chan { return c.ch }

// Start arms the ring and begins copying periods until ctx ends or Stop.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errcode.New(errcode.Busy, "stream_start", "already running")
	}
	for evs := c.ch.Events(); len(evs) > 0; {
		<-evs
	}
	buf := c.cfg.Buf
	if err := c.ch.PrepCyclic(buf.PhysAddr(), uint32(len(buf.Bytes())), c.cfg.Period, dma.DevToMem); err != nil {
		return err
	}
	if err := c.ch.Start(); err != nil {
		_ = c.ch.Stop()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	c.running, c.cancel, c.done, c.next = true, cancel, make(chan struct{}), 0
	go c.pump(ctx, c.done)
	println("[dmastream] capture started on", c.ch.String())
	return nil
}

func (c *Capture) pump(ctx context.Context, done chan struct{}) {
	defer close(done)
	evs := c.ch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-evs:
			switch ev.Kind {
			case dma.EventPeriod:
				c.take()
			case dma.EventError:
				println("[dmastream] dma error on", c.ch.String())
				return
			}
		}
	}
}

// take copies the period the controller just finished into the ring.
func (c *Capture) take() {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.cfg.Period
	off := uint32(c.next) * p
	addr := c.cfg.Buf.PhysAddr() + off
	c.next = (c.next + 1) % c.periods
	if c.ring.Space() < int(p) {
		c.lost++
		return
	}
	c.cfg.Cache.Invalidate(addr, p)
	c.ring.WriteAll(c.cfg.Buf.Bytes()[off : off+p])
	c.got++
}

// Stop halts the channel and waits for the copier to exit.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	return c.ch.Stop()
}

// Close stops the capture, frees the channel and unregisters the ring.
func (c *Capture) Close() error {
	err := c.Stop()
	if rerr := c.ch.Release(); err == nil {
		err = rerr
	}
	shmring.Close(c.handle)
	return err
}

// Periods returns how many periods were copied and how many were dropped
// because the ring was full.
func (c *Capture) Periods() (copied, dropped uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.got, c.lost
}
