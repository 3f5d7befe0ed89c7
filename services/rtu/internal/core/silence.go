package core

import (
	"sync/atomic"
	"time"
)

// SilenceState is the frame-delimiting timer state.
type SilenceState uint32

const (
	SilenceIdle    SilenceState = iota // nothing received since the last boundary
	SilenceRunning                     // countdown armed by the latest byte
	SilenceExpired                     // gap elapsed; boundary being signalled
)

func (s SilenceState) String() string {
	switch s {
	case SilenceIdle:
		return "idle"
	case SilenceRunning:
		return "running"
	case SilenceExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// silence re-arms a one-shot countdown on every received byte; expiry with
// no intervening byte is the end-of-frame signal for byte-wise transports.
//
// The countdown restarts on every byte whether or not the task consumed
// the previous frame, so a byte landing between expiry and consumption
// starts a new frame in the same ring. Handler.Frame.Overlap reports it.
type silence struct {
	d        time.Duration
	t        Timer
	state    atomic.Uint32
	expiries atomic.Uint32
	onExpire func()
}

func newSilence(d time.Duration, timers TimerFactory, onExpire func()) *silence {
	s := &silence{d: d, onExpire: onExpire}
	s.t = timers(s.fire)
	return s
}

// onByte (re)starts the countdown. Interrupt context.
func (s *silence) onByte() {
	s.state.Store(uint32(SilenceRunning))
	s.t.Reset(s.d)
}

// fire is the timer expiry callback.
func (s *silence) fire() {
	if !s.state.CompareAndSwap(uint32(SilenceRunning), uint32(SilenceExpired)) {
		return // stopped or already expired
	}
	s.expiries.Add(1)
	s.onExpire()
	s.state.CompareAndSwap(uint32(SilenceExpired), uint32(SilenceIdle))
}

func (s *silence) stop() {
	s.t.Stop()
	s.state.Store(uint32(SilenceIdle))
}

func (s *silence) State() SilenceState { return SilenceState(s.state.Load()) }
