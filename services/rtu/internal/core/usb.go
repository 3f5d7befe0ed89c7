package core

import (
	"sync/atomic"

	"rtuframe-go/errcode"
	"rtuframe-go/x/mathx"
)

// usbPath copies one complete bulk OUT transfer into the receive buffer.
type usbPath struct {
	h       *Handler
	dev     USBDevice // may be nil
	retries int
	armed   atomic.Bool
}

func newUSBPath(h *Handler, s PortSpec) *usbPath {
	return &usbPath{h: h, dev: s.USB, retries: mathx.Default(s.ArmRetries, 1)}
}

// onTransfer runs in interrupt context. An oversize transfer is dropped
// without touching the buffer or waking the task; the endpoint is re-armed
// at once since no Consume will follow.
func (p *usbPath) onTransfer(data []byte) {
	h := p.h
	p.armed.Store(false)
	if len(data) > len(h.rx) {
		h.record(ErrBufferOverflow)
		_ = p.arm()
		return
	}
	n := copy(h.rx, data)
	h.avail.Store(uint32(n))
	h.overflow.Store(false)
	h.inCnt.Add(1)
	h.slot.Overwrite(uint32(n))
}

// arm makes the endpoint ready for the next transfer. Exhausting the
// retries fails the port.
func (p *usbPath) arm() error {
	if p.dev == nil {
		return nil
	}
	var err error
	for i := 0; i < p.retries; i++ {
		if err = p.dev.ArmReceive(); err == nil {
			p.armed.Store(true)
			return nil
		}
	}
	p.h.fail()
	return errcode.Wrap(errcode.ArmFailure, "arm "+string(p.h.id), err)
}

func (p *usbPath) rearm() error {
	if p.dev == nil || p.armed.Load() {
		return nil
	}
	return p.arm()
}
