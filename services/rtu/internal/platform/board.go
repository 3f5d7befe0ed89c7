package platform

import (
	"context"
	"io"
	"sync"

	"tinygo.org/x/drivers"

	"rtuframe-go/errcode"
	"rtuframe-go/services/rtu/internal/core"
	"rtuframe-go/types"
)

// Binding is what a board supplies for one configured port.
type Binding struct {
	Byte   core.ByteDevice
	Idle   core.IdleDevice
	USB    core.USBDevice
	Timers core.TimerFactory

	// Attach connects the port's interrupt source to the sink.
	Attach func(Sink)
	// Run, when set, pumps the port and must get its own goroutine.
	Run func(ctx context.Context)
	// Tx, when set, transmits on the port.
	Tx io.Writer
}

// Board binds configured ports to hardware (or a simulation of it).
type Board interface {
	Bind(pc types.PortConfig) (Binding, error)
}

// ---------------- simulated board ----------------

// SimBoard binds every port to a SimPort, creating it on first use.
type SimBoard struct {
	mu    sync.Mutex
	ports map[string]*SimPort
}

func NewSimBoard() *SimBoard { return &SimBoard{ports: map[string]*SimPort{}} }

// Port returns the SimPort for id, creating it if needed, so callers can
// drive the line side.
func (b *SimBoard) Port(id string) *SimPort {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.ports[id]
	if !ok {
		p = NewSimPort(id)
		b.ports[id] = p
	}
	return p
}

func (b *SimBoard) Bind(pc types.PortConfig) (Binding, error) {
	p := b.Port(pc.ID)
	bd := Binding{Attach: p.Attach, Tx: p}
	switch pc.Transport {
	case types.TransportUART:
		bd.Byte = p
		bd.Timers = NewTimer
	case types.TransportUARTDMA:
		bd.Idle = p
	case types.TransportUSB:
		bd.USB = p
	default:
		return Binding{}, &errcode.E{C: errcode.InvalidParams, Op: "bind " + pc.ID, Msg: "transport " + pc.Transport}
	}
	return bd, nil
}

// ---------------- driver-backed board ----------------

// StreamBoard binds byte-wise ports to buffered driver UARTs. Buffered
// drivers have no idle-line or USB receive, so only "uart" is supported.
type StreamBoard struct {
	uarts     map[string]drivers.UART
	configure func(id string, pc types.PortConfig) error
}

// NewStreamBoard serves the given UARTs. configure, if set, applies line
// settings before a port is bound.
func NewStreamBoard(uarts map[string]drivers.UART, configure func(id string, pc types.PortConfig) error) *StreamBoard {
	return &StreamBoard{uarts: uarts, configure: configure}
}

func (b *StreamBoard) Bind(pc types.PortConfig) (Binding, error) {
	if pc.Transport != types.TransportUART {
		return Binding{}, &errcode.E{C: errcode.Unsupported, Op: "bind " + pc.ID, Msg: "transport " + pc.Transport}
	}
	u, ok := b.uarts[pc.ID]
	if !ok {
		return Binding{}, &errcode.E{C: errcode.UnknownPort, Op: "bind " + pc.ID}
	}
	if b.configure != nil {
		if err := b.configure(pc.ID, pc); err != nil {
			return Binding{}, errcode.Wrap(errcode.MapDriverErr(err), "configure "+pc.ID, err)
		}
	}
	sp := NewStreamPort(pc.ID, u)
	return Binding{
		Byte:   sp,
		Timers: NewTimer,
		Attach: sp.Attach,
		Run:    sp.Run,
		Tx:     sp,
	}, nil
}
