package core

import (
	"errors"
	"sync/atomic"

	"rtuframe-go/errcode"
	"rtuframe-go/x/mathx"
)

// Coordinator owns the registry and is the single entry point for every
// receive interrupt. Each On* method resolves the port, selects the path for
// its transport and returns without blocking. Interrupts for ports outside
// the registry, or of a kind the port does not run, are ignored.
type Coordinator struct {
	reg   *Registry
	stray atomic.Uint32
}

// NewCoordinator builds one handler per configured port.
func NewCoordinator(specs []PortSpec) (*Coordinator, error) {
	hs := make([]*Handler, 0, len(specs))
	for _, s := range specs {
		if err := validate(s); err != nil {
			return nil, err
		}
		hs = append(hs, newHandler(s))
	}
	reg, err := NewRegistry(hs...)
	if err != nil {
		return nil, err
	}
	return &Coordinator{reg: reg}, nil
}

func validate(s PortSpec) error {
	bad := func(msg string) error {
		return &errcode.E{C: errcode.InvalidParams, Op: "port " + string(s.ID), Msg: msg}
	}
	if s.ID == "" {
		return bad("empty id")
	}
	if !mathx.IsPow2(uint(s.BufferSize)) || s.BufferSize < 2 {
		return bad("buffer size must be a power of two")
	}
	switch s.Transport {
	case TransportUART:
		if s.Byte == nil || s.Timers == nil {
			return bad("byte-wise port needs a device and a timer")
		}
		if s.Silence <= 0 {
			return bad("silence interval must be positive")
		}
		if s.ArmRetries < 1 {
			return bad("arm retries must be >= 1")
		}
	case TransportUARTDMA:
		if s.Idle == nil {
			return bad("dma port needs an idle-line device")
		}
		if s.ArmRetries < 1 {
			return bad("arm retries must be >= 1")
		}
	case TransportUSB:
	default:
		return bad("unknown transport")
	}
	return nil
}

func (c *Coordinator) Registry() *Registry { return c.reg }

// Handler resolves a port for task-side use.
func (c *Coordinator) Handler(port PortID) (*Handler, bool) { return c.reg.Resolve(port) }

// Stray counts interrupts that did not belong to a registered port/kind.
func (c *Coordinator) Stray() uint32 { return c.stray.Load() }

// Arm starts reception on every handler. Task context, before interrupts
// are enabled. Ports that fail stay registered and report failed.
func (c *Coordinator) Arm() error {
	var errs []error
	for _, h := range c.reg.hs {
		if err := h.path.arm(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops the frame timers. Interrupts must be disabled first.
func (c *Coordinator) Close() {
	for _, h := range c.reg.hs {
		if p, ok := h.path.(*bytePath); ok {
			p.timer.stop()
		}
	}
}

// ---------------- interrupt entry points ----------------

// OnByte: a single-byte receive completed with b.
func (c *Coordinator) OnByte(port PortID, b byte) {
	h, ok := c.reg.Resolve(port)
	if !ok {
		c.stray.Add(1)
		return
	}
	switch p := h.path.(type) {
	case *bytePath:
		p.onByte(b)
	default:
		c.stray.Add(1)
	}
}

// OnRxEvent: buffered reception completed with n bytes (idle line or full).
func (c *Coordinator) OnRxEvent(port PortID, n int) {
	h, ok := c.reg.Resolve(port)
	if !ok {
		c.stray.Add(1)
		return
	}
	switch p := h.path.(type) {
	case *dmaPath:
		p.onEvent(n)
	default:
		c.stray.Add(1)
	}
}

// OnRxError: the device reported a framing, overrun or parity fault.
func (c *Coordinator) OnRxError(port PortID) {
	h, ok := c.reg.Resolve(port)
	if !ok {
		c.stray.Add(1)
		return
	}
	switch p := h.path.(type) {
	case *dmaPath:
		p.onError()
	case *bytePath:
		p.onError()
	default:
		c.stray.Add(1)
	}
}

// OnUSBReceive: a bulk OUT transfer arrived. An empty port selects the
// first USB handler, matching CDC stacks whose receive callback carries no
// port identity.
func (c *Coordinator) OnUSBReceive(port PortID, data []byte) {
	var (
		h  *Handler
		ok bool
	)
	if port == "" {
		h, ok = c.reg.FirstOf(TransportUSB)
	} else {
		h, ok = c.reg.Resolve(port)
	}
	if !ok {
		c.stray.Add(1)
		return
	}
	switch p := h.path.(type) {
	case *usbPath:
		p.onTransfer(data)
	default:
		c.stray.Add(1)
	}
}

// OnTxComplete: a transmission finished. Wakes the task without changing
// the frame notification.
func (c *Coordinator) OnTxComplete(port PortID) {
	h, ok := c.reg.Resolve(port)
	if !ok {
		c.stray.Add(1)
		return
	}
	h.slot.Poke()
}
