package types

import (
	"time"

	"rtuframe-go/x/mathx"
	"rtuframe-go/x/timex"
)

// ------------------------
// RTU receive configuration (config/rtu)
// ------------------------

// Transport names as they appear in configuration.
const (
	TransportUART    = "uart"     // byte-wise, silence-timer framed
	TransportUARTDMA = "uart_dma" // buffered receive-until-idle
	TransportUSB     = "usb"      // USB CDC bulk transfers
)

// Defaults and limits applied by Normalised.
const (
	DefaultBaud       = 19200
	DefaultBufferSize = 256
	MinBufferSize     = 16
	MaxBufferSize     = 1024
	DefaultArmRetries = 8
	MaxArmRetries     = 64
)

type RTUConfig struct {
	Ports []PortConfig `json:"ports"`
}

type PortConfig struct {
	ID        string `json:"id"`
	Transport string `json:"transport"`

	Baud     uint32 `json:"baud,omitempty"`
	DataBits uint8  `json:"data_bits,omitempty"`
	StopBits uint8  `json:"stop_bits,omitempty"`
	Parity   Parity `json:"parity,omitempty"`

	// Receive buffer / ring capacity in bytes; rounded up to a power of two.
	BufferSize int `json:"buffer_size,omitempty"`
	// Inter-frame silence override in microseconds; 0 derives it from baud.
	SilenceUS int `json:"silence_us,omitempty"`
	// Arm attempts before a DMA port is declared failed.
	ArmRetries int `json:"arm_retries,omitempty"`
}

// Normalised returns a copy with defaults filled and limits applied.
func (p PortConfig) Normalised() PortConfig {
	p.Baud = mathx.Default(p.Baud, DefaultBaud)
	p.DataBits = mathx.Clamp(mathx.Default(p.DataBits, 8), 5, 8)
	p.StopBits = mathx.Clamp(mathx.Default(p.StopBits, 1), 1, 2)

	size := mathx.Clamp(mathx.Default(p.BufferSize, DefaultBufferSize), MinBufferSize, MaxBufferSize)
	p.BufferSize = int(mathx.CeilPow2(uint(size)))

	p.ArmRetries = mathx.Clamp(mathx.Default(p.ArmRetries, DefaultArmRetries), 1, MaxArmRetries)
	if p.SilenceUS < 0 {
		p.SilenceUS = 0
	}
	return p
}

// Silence is the end-of-frame gap for byte-wise ports.
func (p PortConfig) Silence() time.Duration {
	if p.SilenceUS > 0 {
		return time.Duration(p.SilenceUS) * time.Microsecond
	}
	bits := timex.CharBits(p.DataBits, p.StopBits, p.Parity != ParityNone)
	return timex.SilenceInterval(p.Baud, bits)
}

// ------------------------
// Published payloads
// ------------------------

// Frame is one frame attempt handed to the protocol layer (rtu/<port>/frame).
// Nothing here is validated: CRC and PDU checks belong to the consumer.
type Frame struct {
	Port      string `json:"port"`
	Transport string `json:"transport"`
	Data      []byte `json:"data"`
	Overflow  bool   `json:"overflow,omitempty"` // bytes were dropped
	Overlap   bool   `json:"overlap,omitempty"`  // bytes arrived after the frame boundary, before consumption
	Error     string `json:"error,omitempty"`    // last recorded error kind since the previous frame
	Seq       uint32 `json:"seq"`
	TSms      int64  `json:"ts_ms"`
}

// Port states.
const (
	PortUp       = "up"
	PortDegraded = "degraded" // errors recorded, still receiving
	PortFailed   = "failed"   // cannot be re-armed
)

// PortStatus is the retained per-port state (rtu/<port>/status).
type PortStatus struct {
	Port             string `json:"port"`
	Transport        string `json:"transport"`
	State            string `json:"state"`
	InCount          uint32 `json:"in_count"`
	ErrCount         uint32 `json:"err_count"`
	DeviceErrors     uint32 `json:"device_errors"`
	OverflowEpisodes uint32 `json:"overflow_episodes"`
	Dropped          uint32 `json:"dropped"` // bytes dropped on a full ring
	LastError        string `json:"last_error,omitempty"`
	TSms             int64  `json:"ts_ms"`
}

// TxDone is published on rtu/<port>/tx_done when a transmission completes.
type TxDone struct {
	Port string `json:"port"`
	TSms int64  `json:"ts_ms"`
}
