package core

import (
	"rtuframe-go/errcode"
)

// bytePath is the byte-wise UART ingestion: one interrupt per byte, pushed
// into the ring, framed by the silence timer.
type bytePath struct {
	h       *Handler
	dev     ByteDevice
	retries int
	timer   *silence
}

func newBytePath(h *Handler, s PortSpec) *bytePath {
	p := &bytePath{h: h, dev: s.Byte, retries: s.ArmRetries}
	p.timer = newSilence(s.Silence, s.Timers, p.onSilence)
	return p
}

// onByte runs in interrupt context for every received byte.
func (p *bytePath) onByte(b byte) {
	h := p.h
	wasOverflow := h.ring.Overflow()
	if !h.ring.Push(b) && !wasOverflow {
		h.record(ErrBufferOverflow)
	}
	if uint32(h.mark.Load()>>32) != h.consumed.Load() {
		h.overlap.Store(true)
	}

	p.armByte()
	if !h.failed.Load() {
		p.timer.onByte()
	}
}

// onSilence runs when the gap after the last byte has elapsed.
func (p *bytePath) onSilence() {
	h := p.h
	// Count and cursor move together so Wait never pairs one boundary's
	// cursor with another's count.
	for {
		old := h.mark.Load()
		next := (old>>32+1)<<32 | uint64(h.ring.WriteCursor())
		if h.mark.CompareAndSwap(old, next) {
			break
		}
	}
	h.inCnt.Add(1)
	h.slot.Accumulate()
}

// onError handles a framing/overrun/parity fault: the single-byte receive
// was aborted, so start another one.
func (p *bytePath) onError() {
	p.h.devErrCnt.Add(1)
	p.h.record(ErrDeviceError)
	p.armByte()
}

// start requests the next single-byte receive, giving up after p.retries
// attempts.
func (p *bytePath) start() error {
	for i := 0; i < p.retries; i++ {
		if p.dev.ArmByte() == nil {
			return nil
		}
	}
	return errcode.ArmFailure
}

// armByte re-arms from interrupt context. A port that cannot be re-armed
// would never receive again, so exhaustion fails it.
func (p *bytePath) armByte() {
	if p.h.failed.Load() {
		return
	}
	if p.start() != nil {
		p.timer.stop()
		p.h.fail()
	}
}

func (p *bytePath) arm() error {
	if err := p.start(); err != nil {
		p.h.fail()
		return errcode.Wrap(errcode.ArmFailure, "arm "+string(p.h.id), err)
	}
	return nil
}

// rearm is a no-op: every byte and every fault re-arms in interrupt
// context, and a port that could not be re-armed there has failed.
func (p *bytePath) rearm() error { return nil }
