package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

// Pico: byte-wise Modbus RTU on both UARTs.
const cfgPico = `{
  "rtu": {
    "ports": [
      {"id": "uart0", "transport": "uart", "baud": 19200, "parity": "even"},
      {"id": "uart1", "transport": "uart", "baud": 9600, "parity": "none", "stop_bits": 2}
    ]
  },
  "heartbeat": {
    "interval": 2,
    "frames": true
  }
}`

// Host simulation: one port of each transport.
const cfgSim = `{
  "rtu": {
    "ports": [
      {"id": "uart1", "transport": "uart", "baud": 9600, "parity": "even", "buffer_size": 256},
      {"id": "uart2", "transport": "uart_dma", "baud": 115200, "buffer_size": 256, "arm_retries": 8},
      {"id": "usb0", "transport": "usb", "buffer_size": 64}
    ]
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"sim":  []byte(cfgSim),
}
