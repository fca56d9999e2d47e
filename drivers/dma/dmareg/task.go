package dmareg

import "encoding/binary"

// Task is the revision-neutral content of one descriptor image.
// v1.x uses Cfg, Src, Dst, Len, Delay, Next, Mode.
// v2.x additionally uses LinkID, BlockLen, Cfg2, DataSrc, DataDst.
type Task struct {
	LinkID   uint32
	Cfg      uint32
	BlockLen uint32
	Src      uint32
	Dst      uint32
	Len      uint32
	Delay    uint32
	Cfg2     uint32
	Next     uint32
	DataSrc  uint32
	DataDst  uint32
	Mode     uint32
}

// word places one Task field at a 32-bit word index of the image.
type word struct {
	idx int
	get func(*Task) *uint32
}

var (
	v1Image = []word{
		{0, func(t *Task) *uint32 { return &t.Cfg }},
		{1, func(t *Task) *uint32 { return &t.Src }},
		{2, func(t *Task) *uint32 { return &t.Dst }},
		{3, func(t *Task) *uint32 { return &t.Len }},
		{4, func(t *Task) *uint32 { return &t.Delay }},
		{5, func(t *Task) *uint32 { return &t.Next }},
		{6, func(t *Task) *uint32 { return &t.Mode }},
	}
	v2Image = []word{
		{0, func(t *Task) *uint32 { return &t.LinkID }},
		{1, func(t *Task) *uint32 { return &t.Cfg }},
		{2, func(t *Task) *uint32 { return &t.BlockLen }},
		{3, func(t *Task) *uint32 { return &t.Src }},
		{4, func(t *Task) *uint32 { return &t.Dst }},
		{5, func(t *Task) *uint32 { return &t.Len }},
		{6, func(t *Task) *uint32 { return &t.Cfg2 }},
		{7, func(t *Task) *uint32 { return &t.Next }},
		{8, func(t *Task) *uint32 { return &t.DataSrc }},
		{9, func(t *Task) *uint32 { return &t.DataDst }},
		{14, func(t *Task) *uint32 { return &t.Mode }},
	}
)

func (l *Layout) image() []word {
	if l.Rev == RevV2 {
		return v2Image
	}
	return v1Image
}

// Encode writes t into b (little-endian). b must hold SlotSize bytes.
func (l *Layout) Encode(b []byte, t *Task) {
	b = b[:SlotSize]
	clear(b)
	for _, w := range l.image() {
		binary.LittleEndian.PutUint32(b[w.idx*4:], *w.get(t))
	}
}

// Decode reads a descriptor image from b.
func (l *Layout) Decode(b []byte) Task {
	b = b[:SlotSize]
	var t Task
	for _, w := range l.image() {
		*w.get(&t) = binary.LittleEndian.Uint32(b[w.idx*4:])
	}
	return t
}
