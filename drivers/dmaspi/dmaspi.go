// Package dmaspi drives an SPI controller's FIFOs through two DMA channels
// and exposes the result as a tinygo drivers.SPI.
//
// Design notes:
//
//   - TX is a mem→dev descriptor into the controller's TX FIFO, RX a dev→mem
//     descriptor out of its RX FIFO. Both are armed for every chunk.
//   - Data is staged through fixed bounce buffers in DMA-visible memory, so
//     callers may pass any slice. Transfers longer than a buffer are chunked.
//   - A write-only Tx clocks out the buffer and skips RX; a read-only Tx
//     clocks out zeros.
package dmaspi

import (
	"sync"
	"time"

	"dmaengine-go/drivers/dma"
	"dmaengine-go/errcode"
	"dmaengine-go/x/conv"

	"tinygo.org/x/drivers"
)

// ---------------- Top level vars ----------------

var ErrTimeout = errcode.New(errcode.Timeout, "spi_tx", "dma completion timed out")

var _ drivers.SPI = (*Bus)(nil)

// ---------------- Configuration ----------------

type Config struct {
	SlaveID uint32 // DRQ port of the SPI controller, e.g. dma.SlaveSPI0
	TxFIFO  uint32 // physical address of the TX data register
	RxFIFO  uint32 // physical address of the RX data register

	TxBuf dma.DescMem // bounce buffers, equal size
	RxBuf dma.DescMem
	Cache dma.Cache

	Timeout time.Duration // per chunk; 0 = 100ms
}

func (c Config) Validate() error {
	switch {
	case c.TxBuf == nil || c.RxBuf == nil || c.Cache == nil:
		return errcode.New(errcode.InvalidParams, "spi_config", "missing buffer or cache")
	case len(c.TxBuf.Bytes()) == 0 || len(c.TxBuf.Bytes()) != len(c.RxBuf.Bytes()):
		return errcode.New(errcode.InvalidParams, "spi_config", "bounce buffers must be non-empty and equal")
	}
	return nil
}

// ---------------- Bus ----------------

type Bus struct {
	mu      sync.Mutex
	cfg     Config
	tx, rx  dma.Chan
	chunk   int
	timeout time.Duration
}

// New claims two channels from eng and configures them for the SPI slave.
func New(eng *dma.Engine, cfg Config) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tx, err := eng.RequestChannel()
	if err != nil {
		return nil, err
	}
	rx, err := eng.RequestChannel()
	if err != nil {
		_ = tx.Release()
		return nil, err
	}
	b := &Bus{cfg: cfg, tx: tx, rx: rx, chunk: len(cfg.TxBuf.Bytes()), timeout: cfg.Timeout}
	if b.timeout <= 0 {
		b.timeout = 100 * time.Millisecond
	}
	err = tx.Config(dma.SlaveConfig{Direction: dma.MemToDev, DstAddr: cfg.TxFIFO, SlaveID: cfg.SlaveID, DstWidth: 1, DstBurst: 1})
	if err == nil {
		err = rx.Config(dma.SlaveConfig{Direction: dma.DevToMem, SrcAddr: cfg.RxFIFO, SlaveID: cfg.SlaveID, SrcWidth: 1, SrcBurst: 1})
	}
	if err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Close stops and releases both channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range []dma.Chan{b.tx, b.rx} {
		_ = c.Stop()
		_ = c.Release()
	}
}

// Transfer writes one byte and returns the byte clocked in.
func (b *Bus) Transfer(w byte) (byte, error) {
	var in [1]byte
	if err := b.Tx([]byte{w}, in[:]); err != nil {
		return 0, err
	}
	return in[0], nil
}

// Tx runs a full-duplex transfer. w or r may be nil; if both are set they
// must have the same length.
func (b *Bus) Tx(w, r []byte) error {
	n := len(w)
	if n == 0 {
		n = len(r)
	}
	if w != nil && r != nil && len(w) != len(r) {
		return errcode.New(errcode.InvalidParams, "spi_tx", "w and r differ in length")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for off := 0; off < n; off += b.chunk {
		end := min(off+b.chunk, n)
		var wc, rc []byte
		if w != nil {
			wc = w[off:end]
		}
		if r != nil {
			rc = r[off:end]
		}
		if err := b.run(wc, rc, end-off); err != nil {
			return err
		}
	}
	return nil
}

// run moves one chunk of n bytes.
func (b *Bus) run(w, r []byte, n int) error {
	txb := b.cfg.TxBuf.Bytes()[:n]
	if w != nil {
		copy(txb, w)
	} else {
		clear(txb)
	}
	u := uint32(n)
	if err := b.tx.PrepDevice(b.cfg.TxFIFO, b.cfg.TxBuf.PhysAddr(), u, dma.MemToDev); err != nil {
		return err
	}
	withRx := r != nil
	if withRx {
		if err := b.rx.PrepDevice(b.cfg.RxBuf.PhysAddr(), b.cfg.RxFIFO, u, dma.DevToMem); err != nil {
			_ = b.tx.Stop()
			return err
		}
	}
	err := b.startAndWait(withRx)
	_ = b.tx.Stop()
	if withRx {
		_ = b.rx.Stop()
	}
	if err != nil {
		return err
	}
	if withRx {
		b.cfg.Cache.Invalidate(b.cfg.RxBuf.PhysAddr(), u)
		copy(r, b.cfg.RxBuf.Bytes()[:n])
	}
	return nil
}

func (b *Bus) startAndWait(withRx bool) error {
	// TX first: RX must never pull from a FIFO the TX side has not fed.
	if err := b.tx.Start(); err != nil {
		return err
	}
	if withRx {
		if err := b.rx.Start(); err != nil {
			return err
		}
	}
	txDone, rxDone := false, !withRx
	deadline := time.NewTimer(b.timeout)
	defer deadline.Stop()
	for !txDone || !rxDone {
		select {
		case ev := <-b.tx.Events():
			if err := check(ev); err != nil {
				return err
			}
			txDone = txDone || ev.Kind == dma.EventDone
		case ev := <-b.rx.Events():
			if err := check(ev); err != nil {
				return err
			}
			rxDone = rxDone || ev.Kind == dma.EventDone
		case <-deadline.C:
			println("[dmaspi] chunk timed out")
			return ErrTimeout
		}
	}
	return nil
}

func check(ev dma.Event) error {
	if ev.Kind == dma.EventError {
		println("[dmaspi] dma error on channel", ev.Channel)
		var buf [8]byte
		return errcode.New(errcode.Error, "spi_tx", "dma status 0x"+string(conv.U32Hex(buf[:], ev.Bits)))
	}
	return nil
}
