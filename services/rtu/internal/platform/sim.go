package platform

import (
	"sync"

	"rtuframe-go/errcode"
	"rtuframe-go/services/rtu/internal/core"
)

// SimPort is an in-memory port usable as any of the three device kinds.
// Feed, Idle, Fault and Transfer play the part of the hardware and call
// the attached sink the way an interrupt handler would.
type SimPort struct {
	id core.PortID

	mu       sync.Mutex
	sink     Sink
	byteArm  bool
	dst      []byte // armed idle-line buffer
	failArms int

	// Counters, guarded by mu.
	arms    int
	stops   int
	htOff   int
	usbArms int
	lost    int
	sent    [][]byte
}

func NewSimPort(id string) *SimPort { return &SimPort{id: core.PortID(id)} }

func (p *SimPort) ID() core.PortID { return p.id }

// Attach sets the event sink. Call before enabling "interrupts".
func (p *SimPort) Attach(s Sink) {
	p.mu.Lock()
	p.sink = s
	p.mu.Unlock()
}

// FailArms makes the next n arm requests fail with errcode.Busy.
func (p *SimPort) FailArms(n int) {
	p.mu.Lock()
	p.failArms = n
	p.mu.Unlock()
}

func (p *SimPort) takeFailure() bool {
	if p.failArms > 0 {
		p.failArms--
		return true
	}
	return false
}

// ---------------- core.ByteDevice ----------------

func (p *SimPort) ArmByte() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arms++
	if p.takeFailure() {
		return errcode.Busy
	}
	p.byteArm = true
	return nil
}

// ---------------- core.IdleDevice ----------------

func (p *SimPort) ReceiveToIdle(dst []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arms++
	if p.takeFailure() {
		return errcode.Busy
	}
	p.dst = dst
	return nil
}

func (p *SimPort) StopReceive() error {
	p.mu.Lock()
	p.stops++
	p.dst = nil
	p.mu.Unlock()
	return nil
}

func (p *SimPort) DisableHalfTransfer() {
	p.mu.Lock()
	p.htOff++
	p.mu.Unlock()
}

// ---------------- core.USBDevice ----------------

func (p *SimPort) ArmReceive() error {
	p.mu.Lock()
	p.usbArms++
	p.mu.Unlock()
	return nil
}

// ---------------- line side ----------------

// Feed delivers bytes one interrupt at a time. A byte arriving while no
// single-byte receive is armed is lost, as on hardware.
func (p *SimPort) Feed(bs ...byte) {
	for _, b := range bs {
		p.mu.Lock()
		s, armed := p.sink, p.byteArm
		p.byteArm = false
		if !armed {
			p.lost++
		}
		p.mu.Unlock()
		if armed && s != nil {
			s.OnByte(p.id, b)
		}
	}
}

// Idle completes an idle-line reception carrying data. Bytes beyond the
// armed buffer are cut off but still counted, like a DMA counter would.
func (p *SimPort) Idle(data []byte) {
	p.mu.Lock()
	s, dst := p.sink, p.dst
	p.dst = nil
	if dst == nil {
		p.lost += len(data)
	}
	p.mu.Unlock()
	if dst == nil || s == nil {
		return
	}
	copy(dst, data)
	s.OnRxEvent(p.id, len(data))
}

// Fault raises a framing/overrun/parity error.
func (p *SimPort) Fault() {
	p.mu.Lock()
	s := p.sink
	p.byteArm = false
	p.dst = nil
	p.mu.Unlock()
	if s != nil {
		s.OnRxError(p.id)
	}
}

// Transfer delivers one USB bulk OUT transfer.
func (p *SimPort) Transfer(data []byte) {
	p.mu.Lock()
	s := p.sink
	p.mu.Unlock()
	if s != nil {
		s.OnUSBReceive(p.id, data)
	}
}

// Write records the outgoing bytes and signals transmit completion.
func (p *SimPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.sent = append(p.sent, append([]byte(nil), b...))
	s := p.sink
	p.mu.Unlock()
	if s != nil {
		s.OnTxComplete(p.id)
	}
	return len(b), nil
}

// SimStats is a snapshot of a SimPort's counters.
type SimStats struct {
	Arms            int
	Stops           int
	HalfTransferOff int
	USBArms         int
	Lost            int // bytes that arrived with nothing armed
	Sent            [][]byte
}

func (p *SimPort) Stats() SimStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return SimStats{
		Arms:            p.arms,
		Stops:           p.stops,
		HalfTransferOff: p.htOff,
		USBArms:         p.usbArms,
		Lost:            p.lost,
		Sent:            append([][]byte(nil), p.sent...),
	}
}

var (
	_ core.ByteDevice = (*SimPort)(nil)
	_ core.IdleDevice = (*SimPort)(nil)
	_ core.USBDevice  = (*SimPort)(nil)
)
