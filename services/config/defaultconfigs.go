package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgD21x = `{
  "dma": {
      "platform": "d21x",
      "selftest": true
  },
  "heartbeat": {
      "interval": 2
  }
}`

const cfgD13x = `{
  "dma": {
      "platform": "d13x",
      "isr_queue": 32,
      "event_queue": 8,
      "selftest": true
  },
  "heartbeat": {
      "interval": 2
  }
}`

const cfgD12x = `{
  "dma": {
      "platform": "d12x"
  },
  "heartbeat": {
      "interval": 5
  }
}`

const cfgG73x = `{
  "dma": {
      "platform": "g73x",
      "isr_queue": 64,
      "selftest": true
  },
  "heartbeat": {
      "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"d21x-demo": []byte(cfgD21x),
	"d13x-demo": []byte(cfgD13x),
	"d12x-demo": []byte(cfgD12x),
	"g73x-demo": []byte(cfgG73x),
}
