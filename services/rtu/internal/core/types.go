package core

import (
	"time"

	"rtuframe-go/errcode"
	"rtuframe-go/types"
)

// PortID is the opaque identity of a physical port ("uart1", "usb0").
type PortID string

// Transport selects the ingestion path a handler runs.
type Transport uint8

const (
	TransportUART    Transport = iota // byte-wise, silence-timer framed
	TransportUARTDMA                  // buffered receive-until-idle
	TransportUSB                      // USB bulk transfers
)

func (t Transport) String() string {
	switch t {
	case TransportUART:
		return types.TransportUART
	case TransportUARTDMA:
		return types.TransportUARTDMA
	case TransportUSB:
		return types.TransportUSB
	default:
		return "unknown"
	}
}

// ParseTransport maps a configuration name to a Transport.
func ParseTransport(s string) (Transport, bool) {
	switch s {
	case types.TransportUART:
		return TransportUART, true
	case types.TransportUARTDMA:
		return TransportUARTDMA, true
	case types.TransportUSB:
		return TransportUSB, true
	default:
		return 0, false
	}
}

// ErrKind is the last error recorded on a handler. Stored atomically from
// interrupt context, so it is a small integer rather than an error value.
type ErrKind uint32

const (
	ErrNone ErrKind = iota
	ErrBufferOverflow
	ErrDeviceError
	ErrArmFailure
)

// Code maps the kind onto the bus-facing error code.
func (k ErrKind) Code() errcode.Code {
	switch k {
	case ErrBufferOverflow:
		return errcode.BufferOverflow
	case ErrDeviceError:
		return errcode.DeviceError
	case ErrArmFailure:
		return errcode.ArmFailure
	default:
		return errcode.OK
	}
}

// ---------------- Collaborators ----------------

// ByteDevice is a UART receiving one byte per interrupt.
type ByteDevice interface {
	// ArmByte starts a single-byte interrupt-mode receive.
	ArmByte() error
}

// IdleDevice is a UART that receives into a buffer until the line goes idle
// or the buffer fills.
type IdleDevice interface {
	// ReceiveToIdle starts buffered reception into dst. A non-nil error
	// (conventionally errcode.Busy) means the request was not accepted.
	ReceiveToIdle(dst []byte) error
	StopReceive() error
	// DisableHalfTransfer masks the half-transfer interrupt, which this
	// layer never uses.
	DisableHalfTransfer()
}

// USBDevice optionally re-arms the bulk OUT endpoint once the task has
// consumed a transfer.
type USBDevice interface {
	ArmReceive() error
}

// Timer is a one-shot countdown. Reset must be safe from interrupt context.
type Timer interface {
	Reset(d time.Duration)
	Stop()
}

// TimerFactory builds a Timer that calls fire on expiry.
type TimerFactory func(fire func()) Timer

// PortSpec is everything needed to build one Handler.
type PortSpec struct {
	ID        PortID
	Transport Transport

	// BufferSize is the ring / receive buffer capacity (power of two).
	BufferSize int
	// Silence is the end-of-frame gap (byte-wise only).
	Silence time.Duration
	// ArmRetries bounds consecutive arm attempts (byte-wise and DMA).
	ArmRetries int

	Byte   ByteDevice   // TransportUART
	Idle   IdleDevice   // TransportUARTDMA
	USB    USBDevice    // TransportUSB, optional
	Timers TimerFactory // TransportUART
}
