package main

import (
	"context"

	"dmaengine-go/bus"
	"dmaengine-go/drivers/dma"
	"dmaengine-go/drivers/dma/dmasim"
	"dmaengine-go/services/config"
	dmasvc "dmaengine-go/services/dma"
	"dmaengine-go/services/heartbeat"
	"dmaengine-go/types"
	"dmaengine-go/x/jsonx"

	"periph.io/x/periph/conn/physic"
)

const (
	device   = "d13x-demo"
	stepRate = 10 * physic.KiloHertz
)

// boardPlatform reads the platform profile out of the embedded board config
// so the simulated controller is built with the matching register family.
func boardPlatform(id string) (dma.Platform, bool) {
	raw, ok := config.EmbeddedConfigLookup(id)
	if !ok {
		return dma.Platform{}, false
	}
	var board struct {
		DMA types.DMAConfig `json:"dma"`
	}
	if err := jsonx.Decode(raw, &board); err != nil {
		return dma.Platform{}, false
	}
	return dma.LookupPlatform(board.DMA.Platform)
}

func main() {
	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, device)

	p, ok := boardPlatform(device)
	if !ok {
		println("[main] no dma platform for", device)
		return
	}
	println("[main] booting", device, "platform", p.Name, "rev", p.Revision.String())

	soc := dmasim.NewSoC(p.Revision.Family(), p.Channels, p.CacheLine)
	go soc.Ctrl.Run(ctx, stepRate)

	b := bus.NewBus(16)

	svc := dmasvc.New(b.NewConnection("dma"), dmasvc.Resources{
		Regs: soc.Ctrl, Cache: soc.Cache, Clock: soc.Clock, IRQ: soc.IRQ,
		Alloc: func(size, align uint32) (dma.DescMem, error) {
			buf, err := soc.Mem.Alloc(size, align)
			if err != nil {
				return nil, err
			}
			return buf, nil
		},
	})
	svc.Start(ctx)

	hb := &heartbeat.Service{}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	// Mirror state and channel events to the console.
	mon := b.NewConnection("monitor")
	state := mon.Subscribe(bus.T("dma", "state"))
	events := mon.Subscribe(bus.T("dma", "chan", "+", "event"))
	for {
		select {
		case m := <-state.Channel():
			if st, ok := m.Payload.(types.DMAState); ok {
				println("[main] dma", st.Level, st.Status, st.Error)
			}
		case m := <-events.Channel():
			if ev, ok := m.Payload.(types.ChannelEvent); ok {
				println("[main] chan", ev.Channel, ev.Kind)
			}
		}
	}
}
