package heartbeat

import (
	"context"
	"time"

	"dmaengine-go/bus"
	"dmaengine-go/types"
	"dmaengine-go/x/conv"
	"dmaengine-go/x/jsonx"
)

var (
	topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
	topicStats           = bus.Topic{"dma", "ctrl", "stats"}
)

const statsTimeout = 50 * time.Millisecond

type Service struct{}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case t := <-tick.C:
			println("[heartbeat]", t.Format("15:04:05"), s.beat(ctx, conn))
		case msg := <-cfgSub.Channel():
			if d, ok := interval(msg.Payload); ok {
				tick.Reset(d)
				println("[heartbeat] interval set to", d.String())
			}
		}
	}
}

// interval extracts a positive tick period from a config/heartbeat payload.
func interval(payload any) (time.Duration, bool) {
	var cfg types.HeartbeatConfig
	if err := jsonx.Decode(payload, &cfg); err != nil || cfg.Interval <= 0 {
		return 0, false
	}
	return time.Duration(cfg.Interval * float64(time.Second)), true
}

// beat asks the DMA service for its counters and formats one status line.
func (s *Service) beat(ctx context.Context, conn *bus.Connection) string {
	rctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()
	reply, err := conn.RequestWait(rctx, conn.NewMessage(topicStats, nil, false))
	if err != nil {
		return "dma: no reply"
	}
	st, ok := reply.Payload.(types.EngineStats)
	if !ok {
		return "dma: not ready"
	}
	var buf [20]byte
	line := "dma: chans " + string(conv.Itoa(buf[:], int64(st.ChannelsUsed)))
	line += "/" + string(conv.Itoa(buf[:], int64(st.Channels)))
	line += " tasks_free " + string(conv.Itoa(buf[:], int64(st.TasksFree)))
	line += " delivered " + string(conv.Utoa(buf[:], uint64(st.Delivered)))
	line += " isr_drops " + string(conv.Utoa(buf[:], uint64(st.ISRDrops)))
	return line
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
