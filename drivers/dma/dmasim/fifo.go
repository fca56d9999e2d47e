package dmasim

import "sync"

// FIFO is a bounded byte queue usable as a Device. Reads from an empty
// FIFO return zeros and count an underrun.
type FIFO struct {
	mu   sync.Mutex
	buf  []byte
	cap  int
	over int
	unde int
}

func NewFIFO(capacity int) *FIFO { return &FIFO{cap: capacity} }

func (f *FIFO) Push(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room := f.cap - len(f.buf)
	if len(p) > room {
		f.over += len(p) - room
		p = p[:room]
	}
	f.buf = append(f.buf, p...)
}

func (f *FIFO) Pull(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(p, f.buf)
	f.buf = f.buf[n:]
	if n < len(p) {
		clear(p[n:])
		f.unde += len(p) - n
	}
}

// Write feeds bytes as if the peripheral produced them.
func (f *FIFO) Write(p []byte) (int, error) {
	f.Push(p)
	return len(p), nil
}

// Drain returns and clears the queued bytes.
func (f *FIFO) Drain() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.buf
	f.buf = nil
	return out
}

func (f *FIFO) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buf)
}

// Counters returns overflowed and underrun byte counts.
func (f *FIFO) Counters() (overflow, underrun int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.over, f.unde
}
