// Command dmatest is an interactive shell over a simulated DMA controller.
//
//	memcpy <len>                   copy len bytes and verify
//	memset <len> <value>           fill len bytes with a 32-bit pattern and verify
//	cyclic <buf> <period> <events> capture from a device FIFO through a ring
//	stats                          pool and interrupt counters
//	quit
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"flag"
	"io"
	"os"
	"strconv"
	"time"

	"dmaengine-go/drivers/dma"
	"dmaengine-go/drivers/dma/dmareg"
	"dmaengine-go/drivers/dma/dmasim"
	"dmaengine-go/drivers/dma/dmastream"
	"dmaengine-go/errcode"

	"github.com/google/shlex"
	"periph.io/x/periph/conn/physic"
)

const waitTimeout = time.Second

type shell struct {
	ctx context.Context
	soc *dmasim.SoC
	eng *dma.Engine
	out io.Writer
}

type command struct {
	args int
	help string
	run  func(sh *shell, args []uint32) error
}

var commands = map[string]command{
	"memcpy": {1, "memcpy <len>", (*shell).memcpy},
	"memset": {2, "memset <len> <value>", (*shell).memset},
	"cyclic": {3, "cyclic <buf> <period> <events>", (*shell).cyclic},
	"stats":  {0, "stats", (*shell).stats},
}

func main() {
	platform := flag.String("platform", "d13x", "platform profile")
	rate := flag.Int64("rate", 1000, "controller step rate in Hz")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sh, err := boot(ctx, *platform, physic.Frequency(*rate)*physic.Hertz, os.Stdout)
	if err != nil {
		println("[dmatest] boot failed:", err.Error())
		os.Exit(1)
	}
	sh.loop(os.Stdin)
}

func boot(ctx context.Context, name string, rate physic.Frequency, out io.Writer) (*shell, error) {
	p, ok := dma.LookupPlatform(name)
	if !ok {
		return nil, errcode.New(errcode.InvalidParams, "boot", "unknown platform "+name)
	}
	soc := dmasim.NewSoC(p.Revision.Family(), p.Channels, p.CacheLine)
	desc, err := soc.Mem.Alloc(uint32(p.Tasks*dmareg.SlotSize), dmareg.SlotSize)
	if err != nil {
		return nil, err
	}
	cfg := dma.DefaultConfig()
	cfg.Platform = p
	cfg.Regs, cfg.Cache, cfg.Clock, cfg.IRQ, cfg.Desc = soc.Ctrl, soc.Cache, soc.Clock, soc.IRQ, desc
	eng, err := dma.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := eng.Init(); err != nil {
		return nil, err
	}
	eng.Start(ctx)
	go soc.Ctrl.Run(ctx, rate)
	return &shell{ctx: ctx, soc: soc, eng: eng, out: out}, nil
}

func (sh *shell) say(s string) { _, _ = io.WriteString(sh.out, s+"\n") }

func (sh *shell) loop(in io.Reader) {
	sc := bufio.NewScanner(in)
	for {
		_, _ = io.WriteString(sh.out, "dma> ")
		if !sc.Scan() {
			return
		}
		quit, err := sh.exec(sc.Text())
		if err != nil {
			sh.say("error: " + err.Error())
		}
		if quit {
			return
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (sh *shell) exec(line string) (bool, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return false, err
	}
	if len(words) == 0 {
		return false, nil
	}
	switch words[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		for _, c := range commands {
			sh.say("  " + c.help)
		}
		sh.say("  quit")
		return false, nil
	}
	c, ok := commands[words[0]]
	if !ok {
		return false, errcode.New(errcode.InvalidParams, words[0], "unknown command")
	}
	if len(words)-1 != c.args {
		return false, errcode.New(errcode.InvalidParams, words[0], "usage: "+c.help)
	}
	args := make([]uint32, c.args)
	for i, w := range words[1:] {
		v, err := strconv.ParseUint(w, 0, 32)
		if err != nil {
			return false, errcode.New(errcode.InvalidParams, words[0], "bad number "+w)
		}
		args[i] = uint32(v)
	}
	return false, c.run(sh, args)
}

// ---------------- Commands ----------------

func (sh *shell) memcpy(a []uint32) error {
	n := a[0]
	src, dst, err := sh.buffers(n)
	if err != nil {
		return err
	}
	for i := range src.Bytes() {
		src.Bytes()[i] = byte(i*31 + 7)
	}
	return sh.oneShot("memcpy", n, dst, src.Bytes(), func(c dma.Chan) error {
		return c.PrepMemcpy(dst.PhysAddr(), src.PhysAddr(), n)
	})
}

func (sh *shell) memset(a []uint32) error {
	n, val := a[0], a[1]
	_, dst, err := sh.buffers(n)
	if err != nil {
		return err
	}
	want := make([]byte, n)
	for i := range want {
		want[i] = byte(val >> (8 * (i % 4)))
	}
	return sh.oneShot("memset", n, dst, want, func(c dma.Chan) error {
		return c.PrepMemset(dst.PhysAddr(), val, n)
	})
}

func (sh *shell) buffers(n uint32) (src, dst *dmasim.Buffer, err error) {
	if n == 0 {
		return nil, nil, errcode.New(errcode.InvalidParams, "alloc", "zero length")
	}
	line := sh.eng.Platform().CacheLine
	if src, err = sh.soc.Mem.Alloc(n, line); err != nil {
		return nil, nil, err
	}
	dst, err = sh.soc.Mem.Alloc(n, line)
	return src, dst, err
}

func (sh *shell) oneShot(op string, n uint32, dst *dmasim.Buffer, want []byte, prep func(dma.Chan) error) error {
	c, err := sh.eng.RequestChannel()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Stop()
		_ = c.Release()
	}()
	if err := prep(c); err != nil {
		return err
	}
	t0 := time.Now()
	if err := c.Start(); err != nil {
		return err
	}
	if err := waitKind(c, dma.EventDone); err != nil {
		return err
	}
	elapsed := time.Since(t0)
	sh.soc.Cache.Invalidate(dst.PhysAddr(), n)
	if !bytes.Equal(dst.Bytes(), want) {
		sh.say(op + ": FAIL (data mismatch)")
		return nil
	}
	sh.say(op + ": PASS " + strconv.FormatUint(uint64(n), 10) + " bytes in " + elapsed.String() +
		" (" + strconv.FormatFloat(float64(n)/elapsed.Seconds()/1e6, 'f', 2, 64) + " MB/s)")
	return nil
}

func waitKind(c dma.Chan, kind dma.EventKind) error {
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == dma.EventError {
				return errcode.New(errcode.Error, "wait", "dma error event")
			}
			if ev.Kind == kind {
				return nil
			}
		case <-deadline:
			return errcode.New(errcode.Timeout, "wait", "no completion")
		}
	}
}

func (sh *shell) cyclic(a []uint32) error {
	bufLen, period, events := a[0], a[1], a[2]
	if period == 0 || bufLen%period != 0 {
		return errcode.New(errcode.InvalidParams, "cyclic", "buffer is not a whole number of periods")
	}
	buf, err := sh.soc.Mem.Alloc(bufLen, sh.eng.Platform().CacheLine)
	if err != nil {
		return err
	}
	// A counting pattern stands in for the microphone.
	mic := dmasim.NewFIFO(int(period * (events + 1)))
	feed := make([]byte, period*events)
	for i := 0; i < len(feed); i += 4 {
		binary.LittleEndian.PutUint32(feed[i:], uint32(i/4))
	}
	_, _ = mic.Write(feed)
	sh.soc.Ctrl.Attach(dma.SlaveAudioDMIC, mic)

	capt, err := dmastream.New(sh.eng, dmastream.Config{
		Slave:  dma.SlaveConfig{SrcAddr: 0x1860_0000, SlaveID: dma.SlaveAudioDMIC, SrcWidth: 4, SrcBurst: 1},
		Buf:    buf,
		Period: period,
		Cache:  sh.soc.Cache,
	})
	if err != nil {
		return err
	}
	defer capt.Close()
	if err := capt.Start(sh.ctx); err != nil {
		return err
	}

	got := make([]byte, 0, len(feed))
	chunk := make([]byte, period)
	deadline := time.After(waitTimeout * time.Duration(events+1))
	for len(got) < len(feed) {
		select {
		case <-capt.Ring().Readable():
		case <-time.After(time.Millisecond):
		case <-deadline:
			return errcode.New(errcode.Timeout, "cyclic", "stream stalled")
		}
		for n := capt.Ring().TryReadInto(chunk); n > 0; n = capt.Ring().TryReadInto(chunk) {
			got = append(got, chunk[:n]...)
		}
	}
	copied, dropped := capt.Periods()
	verdict := "PASS"
	if !bytes.Equal(got[:len(feed)], feed) {
		verdict = "FAIL"
	}
	sh.say("cyclic: " + verdict + " periods " + strconv.FormatUint(uint64(copied), 10) +
		" dropped " + strconv.FormatUint(uint64(dropped), 10))
	return nil
}

func (sh *shell) stats(_ []uint32) error {
	s := sh.eng.Stats()
	sh.say("channels " + strconv.Itoa(s.ChannelsUsed) + "/" + strconv.Itoa(s.Channels) +
		" tasks " + strconv.Itoa(s.TasksFree) + "/" + strconv.Itoa(s.TasksTotal) + " free" +
		" delivered " + strconv.FormatUint(uint64(s.Delivered), 10) +
		" isr_drops " + strconv.FormatUint(uint64(s.ISRDrops), 10))
	return nil
}
