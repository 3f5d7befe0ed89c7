// Command rtu-sim runs the rtu service against a simulated board and plays
// traffic on one port of each transport.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/golang/glog"

	"rtuframe-go/bus"
	"rtuframe-go/services/config"
	"rtuframe-go/services/rtu"
	"rtuframe-go/types"
)

var (
	device = flag.String("device", "sim", "embedded config to load")
	settle = flag.Duration("settle", 50*time.Millisecond, "pause between scripted steps")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), config.CtxDeviceKey, *device))
	defer cancel()

	b := bus.NewBus(32)
	ui := b.NewConnection("ui")
	board := rtu.NewSimBoard()

	state := ui.Subscribe(bus.T("rtu", "state"))
	frames := ui.Subscribe(bus.T("rtu", "+", "frame"))
	status := ui.Subscribe(bus.T("rtu", "+", "status"))
	txDone := ui.Subscribe(bus.T("rtu", "+", "tx_done"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		rtu.Run(ctx, b.NewConnection("rtu"), board)
	}()
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	if !waitReady(state, 2*time.Second) {
		glog.Errorf("[sim] rtu service never became ready")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-frames.Channel():
				if !ok {
					return
				}
				f := m.Payload.(types.Frame)
				glog.Infof("[sim] frame %s #%d len=%d overflow=%v err=%q: % x",
					f.Port, f.Seq, len(f.Data), f.Overflow, f.Error, f.Data)
			case m, ok := <-status.Channel():
				if !ok {
					return
				}
				st := m.Payload.(types.PortStatus)
				glog.Infof("[sim] status %s %s in=%d err=%d", st.Port, st.State, st.InCount, st.ErrCount)
			case m, ok := <-txDone.Channel():
				if !ok {
					return
				}
				glog.Infof("[sim] tx done %s", m.Payload.(types.TxDone).Port)
			}
		}
	}()

	step := func(name string, fn func()) {
		glog.Infof("[sim] %s", name)
		fn()
		time.Sleep(*settle)
	}

	// Read holding registers, slave 17.
	req := []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03, 0x76, 0x87}
	resp := []byte{0x11, 0x03, 0x06, 0xAE, 0x41, 0x56, 0x52, 0x43, 0x40, 0x49, 0xAD}

	step("uart1: byte-wise request", func() { board.Port("uart1").Feed(req...) })
	step("uart1: transmit response", func() {
		ui.Publish(ui.NewMessage(bus.T("rtu", "uart1", "send"), resp, false))
	})
	step("uart1: line fault", func() { board.Port("uart1").Fault() })
	step("uart1: 300-byte burst into 256-byte ring", func() {
		burst := make([]byte, 300)
		for i := range burst {
			burst[i] = byte(i)
		}
		board.Port("uart1").Feed(burst...)
	})
	step("uart2: idle-line response", func() { board.Port("uart2").Idle(resp) })
	step("uart2: spurious zero-length event", func() { board.Port("uart2").Idle(nil) })
	step("usb0: bulk transfer", func() { board.Port("usb0").Transfer(req) })
	step("usb0: oversize transfer dropped", func() { board.Port("usb0").Transfer(make([]byte, 100)) })
	step("uart2: arm failure after completion", func() {
		board.Port("uart2").FailArms(1000)
		board.Port("uart2").Idle(resp)
	})

	cancel()
	<-done
}

func waitReady(sub *bus.Subscription, d time.Duration) bool {
	deadline := time.After(d)
	for {
		select {
		case m := <-sub.Channel():
			if p, ok := m.Payload.(map[string]any); ok && p["status"] == "configured" {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
