package types

// ---- Common service state (retained) ----

type ServiceState struct {
	Level  string `json:"level"`  // "idle", "ready", "error", "stopped"
	Status string `json:"status"` // freeform short code
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ---- Configuration payloads (config/<key>) ----

// DMAConfig selects the platform profile and queue depths of the engine.
type DMAConfig struct {
	Platform   string `json:"platform"`              // "d21x", "d13x", "d12x", "g73x"
	ISRQueue   int    `json:"isr_queue,omitempty"`   // 0 = engine default
	EventQueue int    `json:"event_queue,omitempty"` // 0 = engine default
	Selftest   bool   `json:"selftest,omitempty"`    // run memcpy/memset once at boot
}

type HeartbeatConfig struct {
	Interval float64 `json:"interval"` // seconds
}

// ---- DMA engine payloads ----

// DMAState is published retained on dma/state.
type DMAState struct {
	ServiceState
	Platform string `json:"platform,omitempty"`
	Revision string `json:"revision,omitempty"`
	Channels int    `json:"channels,omitempty"`
}

// ChannelEvent is published on dma/chan/<n>/event.
type ChannelEvent struct {
	Channel int    `json:"channel"`
	Kind    string `json:"kind"` // "half", "period", "done", "error"
	Bits    uint32 `json:"bits"`
	TS      int64  `json:"ts_ms"`
}

// EngineStats is the reply to dma/ctrl/stats.
type EngineStats struct {
	Channels     int    `json:"channels"`
	ChannelsUsed int    `json:"channels_used"`
	TasksFree    int    `json:"tasks_free"`
	TasksTotal   int    `json:"tasks_total"`
	ISRDrops     uint32 `json:"isr_drops"`
	Delivered    uint32 `json:"delivered"`
}

// SelfTest is the request payload of dma/ctrl/selftest_memcpy and
// dma/ctrl/selftest_memset.
type SelfTest struct {
	Len   uint32 `json:"len"`
	Value uint32 `json:"value,omitempty"` // fill pattern for memset
}

type SelfTestResult struct {
	OK        bool    `json:"ok"`
	Op        string  `json:"op"`
	Len       uint32  `json:"len"`
	ElapsedUs int64   `json:"elapsed_us"`
	MBps      float64 `json:"mbps"`
	Error     string  `json:"error,omitempty"`
}
