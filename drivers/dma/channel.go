package dma

import (
	"sync/atomic"

	"dmaengine-go/errcode"
	"dmaengine-go/x/conv"

	"periph.io/x/periph/conn"
)

// channel is one pool slot. used, gen, run and interest are read by the
// interrupt handler; everything else is guarded by Engine.mu.
type channel struct {
	nr   int
	base uint32

	used     atomic.Bool
	gen      atomic.Uint32 // bumped on release
	run      atomic.Uint32 // bumped on every start
	interest atomic.Uint32

	state  State
	cfg    SlaveConfig
	chain  chain
	dir    Direction // direction of the attached chain
	fill   bool
	cb     Callback
	cbArg  any
	events chan Event
}

func (ch *channel) reset() {
	ch.state = Idle
	ch.cfg = SlaveConfig{}
	ch.chain = emptyChain()
	ch.dir = MemToMem
	ch.fill = false
	ch.cb, ch.cbArg = nil, nil
	ch.interest.Store(0)
	for {
		select {
		case <-ch.events:
			continue
		default:
		}
		return
	}
}

func (ch *channel) release() {
	ch.reset()
	ch.used.Store(false)
	ch.gen.Add(1)
}

// Chan is a handle to an acquired channel. The zero value is invalid.
type Chan struct {
	e   *Engine
	nr  int
	gen uint32
}

var _ conn.Resource = Chan{}

// RequestChannel claims the lowest-indexed free channel.
func (e *Engine) RequestChannel() (Chan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inited {
		return Chan{}, ErrNotInit
	}
	for i := range e.chans {
		ch := &e.chans[i]
		if ch.used.Load() {
			continue
		}
		ch.reset()
		ch.used.Store(true)
		return Chan{e: e, nr: i, gen: ch.gen.Load()}, nil
	}
	return Chan{}, ErrNoChannel
}

// slot resolves the handle. Caller holds e.mu.
func (c Chan) slot(op string) (*channel, error) {
	if c.e == nil {
		return nil, errf(errcode.InvalidParams, op, "nil channel")
	}
	if !c.e.inited {
		return nil, ErrNotInit
	}
	ch := &c.e.chans[c.nr]
	if !ch.used.Load() || ch.gen.Load() != c.gen {
		return nil, errf(errcode.InvalidParams, op, "stale channel handle")
	}
	return ch, nil
}

// with runs fn on the resolved slot under the engine lock.
func (c Chan) with(op string, fn func(*channel) error) error {
	if c.e == nil {
		return errf(errcode.InvalidParams, op, "nil channel")
	}
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	ch, err := c.slot(op)
	if err != nil {
		return err
	}
	return fn(ch)
}

// Index returns the hardware channel number.
func (c Chan) Index() int { return c.nr }

// String implements conn.Resource.
func (c Chan) String() string {
	var buf [20]byte
	return "dma" + string(conv.Itoa(buf[:], int64(c.nr)))
}

// Halt implements conn.Resource; it stops any transfer in flight.
func (c Chan) Halt() error { return c.Stop() }

// Release returns the channel to the pool. A chain must not be attached.
// Releasing an already released handle succeeds.
func (c Chan) Release() error {
	if c.e == nil {
		return errf(errcode.InvalidParams, "release", "nil channel")
	}
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := &e.chans[c.nr]
	if !ch.used.Load() || ch.gen.Load() != c.gen {
		return nil
	}
	if !ch.chain.empty() {
		return errf(errcode.NotReady, "release", "chain attached; stop first")
	}
	ch.release()
	return nil
}

// Config validates and stores the slave configuration. On failure the
// previous configuration is kept.
func (c Chan) Config(cfg SlaveConfig) error {
	return c.with("config", func(ch *channel) error {
		if _, err := negotiate(c.e.be, c.e.plat.Slaves, cfg, cfg.Direction); err != nil {
			return err
		}
		ch.cfg = cfg
		return nil
	})
}

// SlaveConfig returns the stored configuration.
func (c Chan) SlaveConfig() (SlaveConfig, error) {
	var out SlaveConfig
	err := c.with("config", func(ch *channel) error {
		out = ch.cfg
		return nil
	})
	return out, err
}

// RegisterCallback sets the completion callback. Stop clears it.
func (c Chan) RegisterCallback(cb Callback, arg any) error {
	if cb == nil {
		return errf(errcode.InvalidParams, "register_cb", "nil callback")
	}
	return c.with("register_cb", func(ch *channel) error {
		ch.cb, ch.cbArg = cb, arg
		return nil
	})
}

// Events returns the channel's bounded event queue (oldest dropped when full).
func (c Chan) Events() <-chan Event {
	if c.e == nil {
		return nil
	}
	return c.e.chans[c.nr].events
}

// State returns the lifecycle state.
func (c Chan) State() (State, error) {
	var s State
	err := c.with("state", func(ch *channel) error {
		s = ch.state
		return nil
	})
	return s, err
}

// Chain returns the attached descriptors in order.
func (c Chan) Chain() ([]TaskInfo, error) {
	var out []TaskInfo
	err := c.with("chain", func(ch *channel) error {
		c.e.walk(&ch.chain, func(id taskID, t *task) {
			out = append(out, TaskInfo{
				ID: int(id), Phys: c.e.slotPhys(id),
				Cfg: t.hw.Cfg, Src: t.hw.Src, Dst: t.hw.Dst, Len: t.hw.Len,
				Next: t.hw.Next, Mode: t.hw.Mode, BlockLen: t.hw.BlockLen,
			})
		})
		return nil
	})
	return out, err
}

// Cyclic reports whether the attached chain is a ring.
func (c Chan) Cyclic() (bool, error) {
	var cyc bool
	err := c.with("cyclic", func(ch *channel) error {
		cyc = ch.chain.cyclic
		return nil
	})
	return cyc, err
}
