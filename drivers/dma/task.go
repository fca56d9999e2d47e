package dma

import (
	"dmaengine-go/drivers/dma/dmareg"
	"dmaengine-go/errcode"
)

// taskID indexes the descriptor arena.
type taskID int16

const noTask taskID = -1

// task is one descriptor record. hw is what gets encoded into the slot;
// next is the software link the controller never reads.
type task struct {
	hw   dmareg.Task
	next taskID
	free bool
}

// chain is a circular-buffer style view of a channel's descriptors.
type chain struct {
	head   taskID
	tail   taskID
	n      int
	cyclic bool
}

func emptyChain() chain { return chain{head: noTask, tail: noTask} }

func (c *chain) empty() bool { return c.head == noTask }

// ---------------- Arena (caller holds e.mu) ----------------

func (e *Engine) resetArena() {
	e.freeHead = noTask
	e.nfree = 0
	for i := len(e.tasks) - 1; i >= 0; i-- {
		e.tasks[i] = task{next: e.freeHead, free: true}
		e.freeHead = taskID(i)
		e.nfree++
	}
}

// allocTask pops a zeroed descriptor, or fails without side effects.
func (e *Engine) allocTask() (taskID, error) {
	id := e.freeHead
	if id == noTask {
		return noTask, ErrNoTask
	}
	e.freeHead = e.tasks[id].next
	e.nfree--
	e.tasks[id] = task{next: noTask}
	return id, nil
}

// freeTask pushes id back; freeing a free descriptor is an error.
func (e *Engine) freeTask(id taskID) error {
	if id < 0 || int(id) >= len(e.tasks) {
		return errf(errcode.InvalidParams, "free", "descriptor out of range")
	}
	t := &e.tasks[id]
	if t.free {
		return errf(errcode.Error, "free", "descriptor already free")
	}
	*t = task{next: e.freeHead, free: true}
	e.freeHead = id
	e.nfree++
	return nil
}

func (e *Engine) slotPhys(id taskID) uint32 {
	return e.descPhys + uint32(id)*dmareg.SlotSize
}

func (e *Engine) slotBytes(id taskID) []byte {
	off := int(id) * dmareg.SlotSize
	return e.descBuf[off : off+dmareg.SlotSize]
}

// link appends id to c. The new tail terminates the hardware chain.
func (e *Engine) link(c *chain, id taskID) {
	t := &e.tasks[id]
	t.hw.Next = e.lay.LinkEnd
	t.next = noTask
	if c.empty() {
		c.head = id
	} else {
		prev := &e.tasks[c.tail]
		prev.hw.Next = e.slotPhys(id)
		prev.next = id
	}
	c.tail = id
	c.n++
}

// closeRing points the tail back at the head.
func (e *Engine) closeRing(c *chain) {
	t := &e.tasks[c.tail]
	t.hw.Next = e.slotPhys(c.head)
	t.next = c.head
	c.cyclic = true
}

// releaseChain returns every descriptor of c to the pool. The walk stops at
// the head of a ring and never exceeds the recorded length.
func (e *Engine) releaseChain(c *chain) error {
	var first error
	id := c.head
	for i := 0; i < c.n && id != noTask; i++ {
		next := e.tasks[id].next
		if err := e.freeTask(id); err != nil && first == nil {
			first = err
		}
		id = next
		if id == c.head {
			break
		}
	}
	*c = emptyChain()
	return first
}

// walk visits the descriptors of c in order.
func (e *Engine) walk(c *chain, fn func(taskID, *task)) {
	id := c.head
	for i := 0; i < c.n && id != noTask; i++ {
		t := &e.tasks[id]
		fn(id, t)
		id = t.next
		if id == c.head {
			return
		}
	}
}
