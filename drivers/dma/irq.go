package dma

import "time"

// irqEvent is what the handler hands to the worker.
type irqEvent struct {
	nr   int
	gen  uint32
	run  uint32
	bits uint32
}

// HandleIRQ is the controller's interrupt handler. It acknowledges every
// pending status register and queues one event per interested channel. It
// takes no locks and never touches the descriptor pool.
func (e *Engine) HandleIRQ() {
	l := e.lay
	for r := 0; r < l.IRQRegs(len(e.chans)); r++ {
		off := l.IRQSta(r)
		sta := e.regs.Read32(off)
		if sta == 0 {
			continue
		}
		e.regs.Write32(off, sta) // write-1-to-clear

		for j := 0; j < l.IRQChPerReg && sta != 0; j, sta = j+1, sta>>l.IRQChWidth {
			nr := r*l.IRQChPerReg + j
			if nr >= len(e.chans) {
				break
			}
			ch := &e.chans[nr]
			bits := sta & l.IRQField
			if !ch.used.Load() || bits&ch.interest.Load() == 0 {
				continue
			}
			select {
			case e.isrQ <- irqEvent{nr: nr, gen: ch.gen.Load(), run: ch.run.Load(), bits: bits}:
			default:
				e.drops.Add(1) // protect ISR path
			}
		}
	}
}

// deliver runs in task context. Events from a released or restarted
// channel are discarded.
func (e *Engine) deliver(ev irqEvent) {
	e.mu.Lock()
	ch := &e.chans[ev.nr]
	live := ch.used.Load() && ch.gen.Load() == ev.gen && ch.run.Load() == ev.run &&
		(ch.state == Running || ch.state == Paused)
	cb, arg, out := ch.cb, ch.cbArg, ch.events
	e.mu.Unlock()
	if !live {
		return
	}

	evt := Event{Channel: ev.nr, Kind: e.be.classify(ev.bits), Bits: ev.bits, AtMs: time.Now().UnixMilli()}
	if cb != nil {
		cb(arg)
	}
	pushEvent(out, evt)
	if e.sink != nil {
		select {
		case e.sink <- evt:
		default:
		}
	}
	e.delivered.Add(1)
}

// pushEvent never blocks; a full queue loses its oldest event.
func pushEvent(q chan Event, ev Event) {
	select {
	case q <- ev:
		return
	default:
	}
	select {
	case <-q:
	default:
	}
	select {
	case q <- ev:
	default:
	}
}
