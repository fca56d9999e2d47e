// Package dma drives the system DMA controller of ArtInChip-style SoCs.
//
// Design notes:
//
//   - One Engine per controller, built once at boot with New and brought up with Init.
//   - Fixed channel pool and fixed descriptor arena; nothing is allocated per transfer.
//   - Channels are value handles (Chan) carrying a generation, so a handle kept
//     after Release is rejected instead of touching a reused slot.
//   - The interrupt handler is lock-free: it reads atomics and posts to a bounded queue.
//     Callbacks and per-channel events are delivered by the worker started with Start.
//   - Register families v1.x (1.0, 1.1, 1.2) and v2.x (2.0) are selected at run time
//     from Platform.Revision.
package dma

import "dmaengine-go/errcode"

// ---------------- Top level vars ----------------

// Sentinel-style errors for the common failure modes.
var (
	ErrNoChannel = errcode.New(errcode.ResourceExhausted, "request", "no free channel")
	ErrNoTask    = errcode.New(errcode.ResourceExhausted, "alloc", "descriptor pool empty")
	ErrNotInit   = errcode.New(errcode.NotReady, "init", "engine not initialised")
)

func errf(c errcode.Code, op, msg string) error { return errcode.New(c, op, msg) }

// ---------------- Types ----------------

// Direction of a transfer.
type Direction uint8

const (
	MemToMem Direction = iota
	MemToDev
	DevToMem
	DevToDev
)

func (d Direction) String() string {
	switch d {
	case MemToMem:
		return "mem_to_mem"
	case MemToDev:
		return "mem_to_dev"
	case DevToMem:
		return "dev_to_mem"
	case DevToDev:
		return "dev_to_dev"
	}
	return "unknown"
}

// Status of a channel's transfer as reported by the controller.
type Status uint8

const (
	Complete Status = iota
	InProgress
)

func (s Status) String() string {
	if s == InProgress {
		return "in_progress"
	}
	return "complete"
}

// State is the software lifecycle of an acquired channel.
type State uint8

const (
	Idle     State = iota // no chain attached
	Prepared              // chain built, not started
	Running
	Paused
)

func (s State) String() string {
	return [...]string{"idle", "prepared", "running", "paused"}[s&3]
}

// SlaveConfig describes the peripheral side of device transfers.
// Widths are in bytes and bursts in beats; zero selects the backend default
// for the memory side.
type SlaveConfig struct {
	Direction Direction
	SrcAddr   uint32
	DstAddr   uint32
	SrcWidth  uint32
	DstWidth  uint32
	SrcBurst  uint32
	DstBurst  uint32
	SlaveID   uint32
}

// Callback is invoked from the delivery worker, never from the interrupt handler.
type Callback func(arg any)

// EventKind classifies a channel interrupt.
type EventKind uint8

const (
	EventHalf   EventKind = iota // half of a descriptor moved
	EventPeriod                  // one descriptor finished
	EventDone                    // whole chain finished
	EventError                   // bus or descriptor error (v2.x)
)

func (k EventKind) String() string {
	return [...]string{"half", "period", "done", "error"}[k&3]
}

// Event is one delivered channel interrupt.
type Event struct {
	Channel int
	Kind    EventKind
	Bits    uint32 // raw status field of the channel
	AtMs    int64
}

// TaskInfo is a read-only view of one descriptor in a channel's chain.
type TaskInfo struct {
	ID       int
	Phys     uint32
	Cfg      uint32
	Src      uint32
	Dst      uint32
	Len      uint32
	Next     uint32
	Mode     uint32
	BlockLen uint32
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Channels     int
	ChannelsUsed int
	TasksFree    int
	TasksTotal   int
	ISRDrops     uint32
	Delivered    uint32
}
