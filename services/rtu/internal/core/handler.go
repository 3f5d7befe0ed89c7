package core

import (
	"context"
	"sync/atomic"

	"rtuframe-go/errcode"
	"rtuframe-go/services/rtu/internal/notify"
	"rtuframe-go/types"
	"rtuframe-go/x/ringbuf"
	"rtuframe-go/x/timex"
)

// Handler is the per-port state shared by the interrupt paths and the one
// task that consumes its frames.
//
// Ingestion fields are written only from interrupt context and read and
// cleared only by the owning task, after a notification. No other goroutine
// may touch them.
type Handler struct {
	id   PortID
	kind Transport
	slot *notify.Slot
	path path // one of *bytePath, *dmaPath, *usbPath

	ring *ringbuf.Ring // byte-wise
	rx   []byte        // DMA / USB receive buffer, fixed capacity

	avail    atomic.Uint32
	overflow atomic.Bool
	overlap  atomic.Bool   // bytes arrived after a boundary, before Consume
	mark     atomic.Uint64 // boundary count << 32 | ring write cursor at it
	consumed atomic.Uint32 // boundary count as of the last consumed frame

	inCnt     atomic.Uint32 // frames / transfers delivered
	errCnt    atomic.Uint32
	devErrCnt atomic.Uint32
	lastErr   atomic.Uint32 // ErrKind
	failed    atomic.Bool

	// Task-owned.
	scratch []byte
	seq     uint32
	taken   int    // ring bytes handed out by the last Wait
	seenIn  uint32 // inCnt observed by the last Wait
	seenB   uint32 // boundary count observed by the last Wait
}

func newHandler(s PortSpec) *Handler {
	h := &Handler{
		id:      s.ID,
		kind:    s.Transport,
		slot:    notify.New(),
		scratch: make([]byte, s.BufferSize),
	}
	switch s.Transport {
	case TransportUART:
		h.ring = ringbuf.New(s.BufferSize)
		h.path = newBytePath(h, s)
	case TransportUARTDMA:
		h.rx = make([]byte, s.BufferSize)
		h.path = newDMAPath(h, s)
	case TransportUSB:
		h.rx = make([]byte, s.BufferSize)
		h.path = newUSBPath(h, s)
	}
	return h
}

func (h *Handler) ID() PortID           { return h.id }
func (h *Handler) Transport() Transport { return h.kind }
func (h *Handler) Cap() int             { return len(h.scratch) }

// Failed reports whether the port could not be re-armed and no longer
// receives.
func (h *Handler) Failed() bool { return h.failed.Load() }

// LastError returns the most recent error kind since the last Consume.
func (h *Handler) LastError() ErrKind { return ErrKind(h.lastErr.Load()) }

// Available is the byte count of the pending frame attempt.
func (h *Handler) Available() int {
	if h.ring != nil {
		return h.ring.Available()
	}
	return int(h.avail.Load())
}

// Overflow reports whether bytes were dropped for the pending frame.
func (h *Handler) Overflow() bool {
	if h.ring != nil {
		return h.ring.Overflow()
	}
	return h.overflow.Load()
}

// SilenceState is the frame timer state; always idle for non byte-wise ports.
func (h *Handler) SilenceState() SilenceState {
	if p, ok := h.path.(*bytePath); ok {
		return p.timer.State()
	}
	return SilenceIdle
}

// InCount is the number of frames or transfers delivered.
func (h *Handler) InCount() uint32 { return h.inCnt.Load() }

// ErrCount is the number of recorded errors.
func (h *Handler) ErrCount() uint32 { return h.errCnt.Load() }

// ---------------- interrupt side ----------------

func (h *Handler) record(k ErrKind) {
	h.lastErr.Store(uint32(k))
	h.errCnt.Add(1)
}

// fail marks the port dead and wakes the task so it sees the failure.
func (h *Handler) fail() {
	h.record(ErrArmFailure)
	h.failed.Store(true)
	h.slot.Overwrite(0)
}

// ---------------- task side ----------------

// Frame is the task's view of one notification. Data aliases a task-owned
// buffer and is valid until the next Wait.
type Frame struct {
	Port      PortID
	Transport Transport
	Data      []byte
	Overflow  bool
	Overlap   bool
	LastErr   ErrKind
	Failed    bool
	TxDone    bool   // a transmission finished; may come without data
	Signals   uint32 // boundaries signalled since the previous Wait
	Seq       uint32
}

// Wait blocks until the handler is notified, then snapshots its ingestion
// fields. The fields stay as read until Consume.
func (h *Handler) Wait(ctx context.Context) (Frame, error) {
	note, err := h.slot.Wait(ctx)
	if err != nil {
		return Frame{}, err
	}
	f := Frame{
		Port:      h.id,
		Transport: h.kind,
		LastErr:   h.LastError(),
		Failed:    h.failed.Load(),
		TxDone:    note.Poked,
		Overlap:   h.overlap.Load(),
		Signals:   note.Count,
	}
	if note.HasValue {
		f.Signals += 1 + note.Replaced
	}
	if f.Signals == 0 {
		// TX completion only: nothing to read.
		return f, nil
	}

	var n int
	h.seenIn = h.inCnt.Load()
	if h.ring != nil {
		// Only bytes up to the boundary; later ones start the next frame.
		m := h.mark.Load()
		h.seenB = uint32(m >> 32)
		n = h.ring.Peek(h.scratch[:h.ring.Since(uint32(m))])
		h.taken = n
		f.Overflow = h.ring.Overflow()
	} else {
		n = copy(h.scratch, h.rx[:h.avail.Load()])
		f.Overflow = h.overflow.Load()
	}
	h.seq++
	f.Seq = h.seq
	f.Data = h.scratch[:n]
	return f, nil
}

// Consume releases the frame returned by Wait: availability, overflow and
// error state are cleared and reception is re-armed where the task owns
// re-arming. Calling it twice in a row is the same as calling it once. A
// failed port reports errcode.ArmFailure.
//
// Byte-wise ports drop only the bytes handed out, so a frame that started
// between the boundary and Consume is kept. DMA and USB ports keep a
// completion that landed after Wait.
func (h *Handler) Consume() error {
	h.overlap.Store(false)
	if h.ring != nil {
		h.ring.Discard(h.taken)
		h.taken = 0
		// A boundary signalled after Wait stays pending, and so do bytes
		// that followed it.
		h.consumed.Store(h.seenB)
		if m := h.mark.Load(); uint32(m>>32) != h.seenB && h.ring.Available() > h.ring.Since(uint32(m)) {
			h.overlap.Store(true)
		}
	} else if h.inCnt.Load() == h.seenIn {
		h.avail.Store(0)
		h.overflow.Store(false)
	}
	h.lastErr.Store(uint32(ErrNone))
	if h.failed.Load() {
		return errcode.Wrap(errcode.ArmFailure, "consume "+string(h.id), nil)
	}
	return h.path.rearm()
}

// Status snapshots counters for publication.
func (h *Handler) Status() types.PortStatus {
	st := types.PortStatus{
		Port:         string(h.id),
		Transport:    h.kind.String(),
		State:        types.PortUp,
		InCount:      h.inCnt.Load(),
		ErrCount:     h.errCnt.Load(),
		DeviceErrors: h.devErrCnt.Load(),
		TSms:         timex.NowMs(),
	}
	if h.ring != nil {
		st.OverflowEpisodes = h.ring.Episodes()
		st.Dropped = h.ring.Dropped()
	}
	if k := h.LastError(); k != ErrNone {
		st.LastError = string(k.Code())
		st.State = types.PortDegraded
	}
	if h.failed.Load() {
		st.State = types.PortFailed
		st.LastError = string(errcode.ArmFailure)
	}
	return st
}

// path is the tagged variant over ingestion kinds.
type path interface {
	// arm starts reception for the first time (task context).
	arm() error
	// rearm restores reception after the task consumed a frame. It must
	// be a no-op when reception is already armed.
	rearm() error
}
