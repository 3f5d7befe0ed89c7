package rtu

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtuframe-go/bus"
	"rtuframe-go/services/rtu/internal/platform"
	"rtuframe-go/types"
)

const testConfig = `{"ports":[
	{"id":"uart1","transport":"uart","baud":19200,"silence_us":2000},
	{"id":"uart2","transport":"uart_dma","arm_retries":3},
	{"id":"usb0","transport":"usb","buffer_size":64}
]}`

type harness struct {
	t     *testing.T
	board *platform.SimBoard
	conn  *bus.Connection
	done  chan struct{}
}

func start(t *testing.T, cfg any, prep func(*platform.SimBoard)) *harness {
	t.Helper()
	b := bus.NewBus(32)
	h := &harness{
		t:     t,
		board: platform.NewSimBoard(),
		conn:  b.NewConnection("test"),
		done:  make(chan struct{}),
	}
	if prep != nil {
		prep(h.board)
	}
	h.conn.Publish(h.conn.NewMessage(bus.T("config", "rtu"), cfg, true))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(h.done)
		Run(ctx, b.NewConnection("rtu"), h.board)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("service did not stop")
		}
	})
	return h
}

// next returns the next payload on sub, failing after a timeout.
func next(t *testing.T, sub *bus.Subscription) *bus.Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("no message on %v", sub.Topic())
		return nil
	}
}

func (h *harness) waitState(want string) map[string]any {
	h.t.Helper()
	sub := h.conn.Subscribe(bus.T("rtu", "state"))
	defer h.conn.Unsubscribe(sub)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sub.Channel():
			p := m.Payload.(map[string]any)
			if p["status"] == want {
				return p
			}
		case <-deadline:
			h.t.Fatalf("state %q not reached", want)
			return nil
		}
	}
}

func (h *harness) waitStatus(port string, ok func(types.PortStatus) bool) types.PortStatus {
	h.t.Helper()
	sub := h.conn.Subscribe(bus.T("rtu", port, "status"))
	defer h.conn.Unsubscribe(sub)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sub.Channel():
			st := m.Payload.(types.PortStatus)
			if ok(st) {
				return st
			}
		case <-deadline:
			h.t.Fatalf("%s: expected status not reached", port)
			return types.PortStatus{}
		}
	}
}

func TestService_PublishesFramesPerTransport(t *testing.T) {
	h := start(t, json.RawMessage(testConfig), nil)
	frames := h.conn.Subscribe(bus.T("rtu", "+", "frame"))
	h.waitState("configured")

	h.board.Port("uart1").Feed(0x01, 0x03, 0x00, 0x10, 0x00, 0x02)
	f := next(t, frames).Payload.(types.Frame)
	assert.Equal(t, "uart1", f.Port)
	assert.Equal(t, types.TransportUART, f.Transport)
	assert.Equal(t, []byte{0x01, 0x03, 0x00, 0x10, 0x00, 0x02}, f.Data)
	assert.Equal(t, uint32(1), f.Seq)

	h.board.Port("uart2").Idle([]byte{0x02, 0x06})
	f = next(t, frames).Payload.(types.Frame)
	assert.Equal(t, "uart2", f.Port)
	assert.Equal(t, []byte{0x02, 0x06}, f.Data)

	h.board.Port("usb0").Transfer([]byte{0x11, 0x04})
	f = next(t, frames).Payload.(types.Frame)
	assert.Equal(t, "usb0", f.Port)
	assert.Equal(t, types.TransportUSB, f.Transport)
	assert.Equal(t, []byte{0x11, 0x04}, f.Data)
	assert.Empty(t, f.Error)
}

func TestService_ArmFailureMarksPortFailed(t *testing.T) {
	h := start(t, testConfig, func(b *platform.SimBoard) {
		b.Port("uart2").FailArms(100)
	})
	h.waitState("configured")

	st := h.waitStatus("uart2", func(st types.PortStatus) bool { return st.State == types.PortFailed })
	assert.Equal(t, "arm_failure", st.LastError)
	assert.Equal(t, 3, h.board.Port("uart2").Stats().Arms)

	// Other ports keep working.
	frames := h.conn.Subscribe(bus.T("rtu", "usb0", "frame"))
	h.board.Port("usb0").Transfer([]byte{1})
	f := next(t, frames).Payload.(types.Frame)
	assert.Equal(t, []byte{1}, f.Data)
}

func TestService_OversizeUSBCountedThenRecovers(t *testing.T) {
	h := start(t, testConfig, nil)
	h.waitState("configured")
	// The task's first status must be out before the transfers, or it
	// would already count them while the error is still unconsumed.
	h.waitStatus("usb0", func(st types.PortStatus) bool { return st.InCount == 0 })

	h.board.Port("usb0").Transfer(make([]byte, 65))
	h.board.Port("usb0").Transfer([]byte{9})
	st := h.waitStatus("usb0", func(st types.PortStatus) bool { return st.InCount == 1 })
	assert.Equal(t, types.PortUp, st.State)
	assert.Equal(t, uint32(1), st.ErrCount)
}

func TestService_SendPublishesTxDone(t *testing.T) {
	h := start(t, testConfig, nil)
	h.waitState("configured")
	done := h.conn.Subscribe(bus.T("rtu", "uart1", "tx_done"))

	h.conn.Publish(h.conn.NewMessage(bus.T("rtu", "uart1", "send"), []byte{0x01, 0x06}, false))
	td := next(t, done).Payload.(types.TxDone)
	assert.Equal(t, "uart1", td.Port)
	assert.Equal(t, [][]byte{{0x01, 0x06}}, h.board.Port("uart1").Stats().Sent)
}

func TestService_BadConfig(t *testing.T) {
	h := start(t, `{"ports":[{"id":"x","transport":"spi"}]}`, nil)
	p := h.waitState("apply_config_failed")
	assert.Equal(t, "invalid_params", p["code"])
}

func TestService_ConfigIsAppliedOnce(t *testing.T) {
	h := start(t, testConfig, nil)
	h.waitState("configured")
	h.conn.Publish(h.conn.NewMessage(bus.T("config", "rtu"), `{"ports":[{"id":"usb9","transport":"usb"}]}`, true))

	frames := h.conn.Subscribe(bus.T("rtu", "+", "frame"))
	h.board.Port("usb0").Transfer([]byte{5})
	f := next(t, frames).Payload.(types.Frame)
	assert.Equal(t, "usb0", f.Port)
}

func TestDecodeJSON(t *testing.T) {
	var cfg types.RTUConfig
	require.NoError(t, DecodeJSON(map[string]any{
		"ports": []any{map[string]any{"id": "u", "transport": "usb"}},
	}, &cfg))
	require.Len(t, cfg.Ports, 1)
	assert.Equal(t, "u", cfg.Ports[0].ID)

	var direct types.RTUConfig
	require.NoError(t, DecodeJSON(cfg, &direct))
	assert.Equal(t, cfg, direct)

	assert.Error(t, DecodeJSON("{", &cfg))
}

func TestSendPayload(t *testing.T) {
	b, err := sendPayload(map[string]any{"data": "AQI="})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)

	_, err = sendPayload(map[string]any{})
	assert.Error(t, err)
}
