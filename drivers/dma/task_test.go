package dma

import (
	"testing"

	"dmaengine-go/errcode"
)

func TestArenaAllocFree(t *testing.T) {
	r := newRig(t, "d13x")
	e := r.e
	e.mu.Lock()
	defer e.mu.Unlock()

	var ids []taskID
	for i := 0; i < len(e.tasks); i++ {
		id, err := e.allocTask()
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	if _, err := e.allocTask(); err != ErrNoTask {
		t.Fatalf("alloc on empty pool: %v", err)
	}
	if e.nfree != 0 {
		t.Fatalf("nfree = %d", e.nfree)
	}
	if err := e.freeTask(ids[5]); err != nil {
		t.Fatal(err)
	}
	if err := e.freeTask(ids[5]); errcode.Of(err) != errcode.Error {
		t.Fatalf("double free: %v", err)
	}
	if err := e.freeTask(taskID(len(e.tasks))); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("out of range free: %v", err)
	}
	id, _ := e.allocTask()
	if id != ids[5] {
		t.Fatalf("freed slot not reused: %d", id)
	}
}

func TestChainLinkAndRelease(t *testing.T) {
	r := newRig(t, "g73x")
	e := r.e
	e.mu.Lock()
	defer e.mu.Unlock()

	c := emptyChain()
	for i := 0; i < 3; i++ {
		id, _ := e.allocTask()
		e.link(&c, id)
	}
	if c.n != 3 || e.tasks[c.tail].hw.Next != e.lay.LinkEnd {
		t.Fatalf("linear chain malformed: %+v", c)
	}
	e.closeRing(&c)
	if e.tasks[c.tail].hw.Next != e.slotPhys(c.head) || !c.cyclic {
		t.Fatal("ring not closed")
	}
	seen := 0
	e.walk(&c, func(taskID, *task) { seen++ })
	if seen != 3 {
		t.Fatalf("walk visited %d", seen)
	}
	if err := e.releaseChain(&c); err != nil {
		t.Fatal(err)
	}
	if !c.empty() || e.nfree != len(e.tasks) {
		t.Fatalf("release left chain=%+v nfree=%d", c, e.nfree)
	}
}
