package platform

import (
	"context"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers"

	"rtuframe-go/services/rtu/internal/core"
	"rtuframe-go/x/timex"
)

// readable is implemented by drivers that signal RX data on a channel
// (uartx does).
type readable interface {
	Readable() <-chan struct{}
}

// StreamPort turns a buffered driver UART into a byte-wise device. Run
// drains the driver's RX buffer and hands bytes to the sink one at a time,
// standing in for the per-byte receive interrupt.
type StreamPort struct {
	id   core.PortID
	u    drivers.UART
	poll time.Duration

	sink  atomic.Pointer[sinkBox]
	armed atomic.Bool
}

type sinkBox struct{ s Sink }

const defaultPoll = time.Millisecond

func NewStreamPort(id string, u drivers.UART) *StreamPort {
	return &StreamPort{id: core.PortID(id), u: u, poll: defaultPoll}
}

func (p *StreamPort) ID() core.PortID { return p.id }

func (p *StreamPort) Attach(s Sink) { p.sink.Store(&sinkBox{s: s}) }

// ArmByte implements core.ByteDevice.
func (p *StreamPort) ArmByte() error {
	p.armed.Store(true)
	return nil
}

// Write transmits b and reports completion to the sink.
func (p *StreamPort) Write(b []byte) (int, error) {
	n, err := p.u.Write(b)
	if box := p.sink.Load(); box != nil && err == nil {
		box.s.OnTxComplete(p.id)
	}
	return n, err
}

// Run pumps received bytes until ctx is done.
func (p *StreamPort) Run(ctx context.Context) {
	var wake <-chan struct{}
	if r, ok := p.u.(readable); ok {
		wake = r.Readable()
	}
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		timex.DrainTimer(t)
	}
	defer t.Stop()

	buf := make([]byte, 64)
	for {
		for p.u.Buffered() > 0 {
			n, err := p.u.Read(buf)
			if err != nil || n == 0 {
				break
			}
			p.deliver(buf[:n])
		}

		timex.ResetTimer(t, p.poll)
		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-t.C:
		}
	}
}

func (p *StreamPort) deliver(bs []byte) {
	box := p.sink.Load()
	for _, b := range bs {
		// Nothing armed: the byte is lost, as on hardware.
		if box == nil || !p.armed.Swap(false) {
			continue
		}
		box.s.OnByte(p.id, b)
	}
}

var _ core.ByteDevice = (*StreamPort)(nil)
