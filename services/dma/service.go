// Package dma is the bus-facing owner of the board's DMA engine.
//
// It waits for config/dma, builds and initialises the engine from the
// platform resources, then publishes channel events and serves control
// requests until its context ends.
package dma

import (
	"context"
	"time"

	"dmaengine-go/bus"
	dmaeng "dmaengine-go/drivers/dma"
	"dmaengine-go/drivers/dma/dmareg"
	"dmaengine-go/errcode"
	"dmaengine-go/types"
	"dmaengine-go/x/jsonx"
)

// ---------------- Topics ----------------

const (
	TokConfig = "config"
	TokDMA    = "dma"
	TokState  = "state"
	TokChan   = "chan"
	TokEvent  = "event"
	TokCtrl   = "ctrl"

	CtrlStats          = "stats"
	CtrlSelftestMemcpy = "selftest_memcpy"
	CtrlSelftestMemset = "selftest_memset"
)

var (
	topicConfigDMA = bus.Topic{TokConfig, TokDMA}
	topicCtrl      = bus.Topic{TokDMA, TokCtrl, "+"}
	topicState     = bus.Topic{TokDMA, TokState}
)

// EventTopic is where events of channel n are published.
func EventTopic(n int) bus.Topic { return bus.Topic{TokDMA, TokChan, n, TokEvent} }

// CtrlTopic is the request topic of verb.
func CtrlTopic(verb string) bus.Topic { return bus.Topic{TokDMA, TokCtrl, verb} }

// ---------------- Resources ----------------

// Resources are the platform pieces the engine is built from. Alloc hands
// out DMA-visible memory for descriptors and self-test buffers.
type Resources struct {
	Regs  dmaeng.Regs
	Cache dmaeng.Cache
	Clock dmaeng.Clock
	IRQ   dmaeng.IRQLine

	// DescMem, if set, is used for descriptors instead of allocating.
	DescMem dmaeng.DescMem
	Alloc   func(size, align uint32) (dmaeng.DescMem, error)
}

const (
	selftestMax     = 4096
	selftestTimeout = 200 * time.Millisecond
	sinkDepth       = 64
)

// ---------------- Service ----------------

type Service struct {
	conn *bus.Connection
	res  Resources

	eng      *dmaeng.Engine
	stop     context.CancelFunc // ends the engine worker
	sink     chan dmaeng.Event
	desc     dmaeng.DescMem // allocated descriptor region, reused across configs
	src, dst dmaeng.DescMem
}

func New(conn *bus.Connection, res Resources) *Service {
	return &Service{conn: conn, res: res, sink: make(chan dmaeng.Event, sinkDepth)}
}

// Engine returns the running engine, or nil before configuration.
func (s *Service) Engine() *dmaeng.Engine { return s.eng }

// Start runs the service loop in a goroutine.
func (s *Service) Start(ctx context.Context) { go s.Run(ctx) }

func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfigDMA)
	ctrlSub := s.conn.Subscribe(topicCtrl)
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			var cfg types.DMAConfig
			if err := jsonx.Decode(msg.Payload, &cfg); err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			if err := s.apply(ctx, cfg); err != nil {
				println("[dmasvc] configure failed:", err.Error())
				s.publishState("error", "apply_config_failed", err)
				continue
			}
			s.publishState("ready", "configured", nil)
			if cfg.Selftest {
				s.bootSelftest()
			}

		case ev := <-s.sink:
			s.conn.Publish(s.conn.NewMessage(EventTopic(ev.Channel), types.ChannelEvent{
				Channel: ev.Channel, Kind: ev.Kind.String(), Bits: ev.Bits, TS: ev.AtMs,
			}, false))

		case msg := <-ctrlSub.Channel():
			s.handleCtrl(msg)
		}
	}
}

// apply (re)builds the engine for cfg.
func (s *Service) apply(ctx context.Context, cfg types.DMAConfig) error {
	const op = "apply_config"
	plat, ok := dmaeng.LookupPlatform(cfg.Platform)
	if !ok {
		return errcode.New(errcode.InvalidParams, op, "unknown platform "+cfg.Platform)
	}
	s.teardown()

	need := plat.Tasks * dmareg.SlotSize
	desc := s.res.DescMem
	if desc == nil || len(desc.Bytes()) < need {
		if s.desc == nil || len(s.desc.Bytes()) < need {
			if s.res.Alloc == nil {
				return errcode.New(errcode.InvalidParams, op, "no descriptor memory")
			}
			d, err := s.res.Alloc(uint32(need), dmareg.SlotSize)
			if err != nil {
				return errcode.Wrap(errcode.ResourceExhausted, op, err)
			}
			s.desc = d
		}
		desc = s.desc
	}
	if s.src == nil && s.res.Alloc != nil {
		var err error
		if s.src, err = s.res.Alloc(selftestMax, plat.CacheLine); err == nil {
			s.dst, err = s.res.Alloc(selftestMax, plat.CacheLine)
		}
		if err != nil {
			s.src, s.dst = nil, nil
			println("[dmasvc] no self-test buffers:", err.Error())
		}
	}

	ecfg := dmaeng.DefaultConfig()
	ecfg.Platform = plat
	ecfg.Regs, ecfg.Cache, ecfg.Clock, ecfg.IRQ, ecfg.Desc = s.res.Regs, s.res.Cache, s.res.Clock, s.res.IRQ, desc
	if cfg.ISRQueue > 0 {
		ecfg.ISRQueue = cfg.ISRQueue
	}
	if cfg.EventQueue > 0 {
		ecfg.EventQueue = cfg.EventQueue
	}
	ecfg.Events = s.sink

	eng, err := dmaeng.New(ecfg)
	if err != nil {
		return err
	}
	if err := eng.Init(); err != nil {
		return err
	}
	wctx, cancel := context.WithCancel(ctx)
	eng.Start(wctx)
	s.eng, s.stop = eng, cancel
	return nil
}

func (s *Service) teardown() {
	if s.eng == nil {
		return
	}
	if err := s.eng.Deinit(); err != nil {
		println("[dmasvc] deinit:", err.Error())
	}
	s.stop()
	s.eng, s.stop = nil, nil
}

func (s *Service) bootSelftest() {
	for _, op := range []string{CtrlSelftestMemcpy, CtrlSelftestMemset} {
		r := s.selftest(op, types.SelfTest{Len: 1024, Value: 0x5AA55AA5})
		if r.OK {
			println("[dmasvc]", op, "ok", r.Len, "bytes in", r.ElapsedUs, "us")
		} else {
			println("[dmasvc]", op, "failed:", r.Error)
		}
	}
}

func (s *Service) handleCtrl(msg *bus.Message) {
	if len(msg.Topic) < 3 {
		return
	}
	verb, _ := msg.Topic[2].(string)
	if s.eng == nil {
		s.replyErr(msg, string(errcode.NotReady))
		return
	}
	switch verb {
	case CtrlStats:
		st := s.eng.Stats()
		s.conn.Reply(msg, types.EngineStats{
			Channels: st.Channels, ChannelsUsed: st.ChannelsUsed,
			TasksFree: st.TasksFree, TasksTotal: st.TasksTotal,
			ISRDrops: st.ISRDrops, Delivered: st.Delivered,
		}, false)
	case CtrlSelftestMemcpy, CtrlSelftestMemset:
		var req types.SelfTest
		if msg.Payload != nil {
			if err := jsonx.Decode(msg.Payload, &req); err != nil {
				s.replyErr(msg, string(errcode.InvalidPayload))
				return
			}
		}
		s.conn.Reply(msg, s.selftest(verb, req), false)
	default:
		s.replyErr(msg, string(errcode.InvalidTopic))
	}
}

func (s *Service) publishState(level, status string, err error) {
	pl := types.DMAState{ServiceState: types.ServiceState{Level: level, Status: status, TS: time.Now().UnixMilli()}}
	if err != nil {
		pl.Error = err.Error()
	}
	if s.eng != nil {
		p := s.eng.Platform()
		pl.Platform, pl.Revision, pl.Channels = p.Name, p.Revision.String(), p.Channels
	}
	s.conn.Publish(s.conn.NewMessage(topicState, pl, true))
}

func (s *Service) replyErr(req *bus.Message, code string) {
	if len(req.ReplyTo) == 0 {
		return
	}
	if code == "" {
		code = "error"
	}
	s.conn.Reply(req, types.ErrorReply{OK: false, Error: code}, false)
}
