package dmasim

import (
	"errors"
	"sync"
)

var ErrClockStuck = errors.New("dmasim: clock operation failed")

// Clock models bus clock gates and reset lines, with failure injection.
type Clock struct {
	mu      sync.Mutex
	on      map[uint32]bool
	inReset map[uint32]bool

	FailEnable   bool
	FailDeassert bool

	Cycles int // completed disable/enable cycles
}

func NewClock() *Clock {
	return &Clock{on: map[uint32]bool{}, inReset: map[uint32]bool{}}
}

func (c *Clock) IsEnabled(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on[id]
}

func (c *Clock) Enable(id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailEnable {
		return ErrClockStuck
	}
	c.on[id] = true
	return nil
}

func (c *Clock) EnableDeassertReset(id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailDeassert {
		return ErrClockStuck
	}
	c.inReset[id] = false
	return nil
}

func (c *Clock) Disable(id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.on[id] {
		c.Cycles++
	}
	c.on[id] = false
	return nil
}

func (c *Clock) DisableAssertReset(id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inReset[id] = true
	return nil
}

// InReset reports the reset line state.
func (c *Clock) InReset(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inReset[id]
}

// IRQ models one interrupt line.
type IRQ struct {
	mu      sync.Mutex
	handler func()

	FailRequest error
}

func (q *IRQ) Request(handler func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.FailRequest != nil {
		return q.FailRequest
	}
	q.handler = handler
	return nil
}

func (q *IRQ) Free() {
	q.mu.Lock()
	q.handler = nil
	q.mu.Unlock()
}

// Requested reports whether a handler is installed.
func (q *IRQ) Requested() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.handler != nil
}

// Fire runs the installed handler, if any, on the caller's goroutine.
func (q *IRQ) Fire() {
	q.mu.Lock()
	h := q.handler
	q.mu.Unlock()
	if h != nil {
		h()
	}
}
