package core

import (
	"rtuframe-go/errcode"
)

// dmaPath is idle-line reception: the device fills the receive buffer until
// the line goes quiet or the buffer is full, then reports the byte count.
type dmaPath struct {
	h       *Handler
	dev     IdleDevice
	retries int
}

func newDMAPath(h *Handler, s PortSpec) *dmaPath {
	return &dmaPath{h: h, dev: s.Idle, retries: s.ArmRetries}
}

// start arms buffered reception, stopping the device between failed
// attempts. It gives up after p.retries attempts.
func (p *dmaPath) start() error {
	for i := 0; i < p.retries; i++ {
		if err := p.dev.ReceiveToIdle(p.h.rx); err == nil {
			p.dev.DisableHalfTransfer()
			return nil
		}
		_ = p.dev.StopReceive()
	}
	return errcode.ArmFailure
}

// onEvent runs in interrupt context when reception completes with n bytes.
func (p *dmaPath) onEvent(n int) {
	if n <= 0 {
		return // spurious
	}
	h := p.h
	clamped := n > len(h.rx)
	if clamped {
		n = len(h.rx)
		h.record(ErrBufferOverflow)
	}
	h.avail.Store(uint32(n))
	h.overflow.Store(clamped)

	if p.start() != nil {
		h.fail()
		return
	}
	h.inCnt.Add(1)
	h.slot.Overwrite(uint32(n))
}

// onError runs in interrupt context on a transport fault. In-flight data is
// discarded and reception restarted; the task is not woken unless the
// restart fails.
func (p *dmaPath) onError() {
	h := p.h
	h.devErrCnt.Add(1)
	h.record(ErrDeviceError)
	_ = p.dev.StopReceive()
	if p.start() != nil {
		h.fail()
	}
}

func (p *dmaPath) arm() error {
	if err := p.start(); err != nil {
		p.h.fail()
		return errcode.Wrap(errcode.ArmFailure, "arm "+string(p.h.id), err)
	}
	return nil
}

// rearm is a no-op: the completion path re-arms in interrupt context.
func (p *dmaPath) rearm() error { return nil }
