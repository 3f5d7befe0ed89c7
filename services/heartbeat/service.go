// Package heartbeat prints a periodic one-line summary of every rtu port
// and, when enabled, a hex dump of each received frame. It only uses
// println so it works on the bare console of an MCU build.
package heartbeat

import (
	"context"
	"sort"
	"time"

	"rtuframe-go/bus"
	"rtuframe-go/types"
	"rtuframe-go/x/conv"
	"rtuframe-go/x/mathx"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicStatus          = bus.T("rtu", "+", "status")
	topicFrame           = bus.T("rtu", "+", "frame")
)

const (
	defaultInterval = 2 * time.Second
	maxDump         = 32 // bytes shown per frame
)

type Service struct {
	status map[string]types.PortStatus
	frames bool
	buf    []byte
}

func New() *Service {
	return &Service{status: map[string]types.PortStatus{}, buf: make([]byte, 0, 160)}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	stSub := conn.Subscribe(topicStatus)
	frSub := conn.Subscribe(topicFrame)
	defer conn.Unsubscribe(cfgSub)
	defer conn.Unsubscribe(stSub)
	defer conn.Unsubscribe(frSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case <-tick.C:
			s.summary()
		case msg := <-stSub.Channel():
			if st, ok := msg.Payload.(types.PortStatus); ok {
				s.status[st.Port] = st
			}
		case msg := <-frSub.Channel():
			if f, ok := msg.Payload.(types.Frame); ok && s.frames {
				println(s.frameLine(f))
			}
		case msg := <-cfgSub.Channel():
			m, ok := msg.Payload.(map[string]any)
			if !ok {
				continue
			}
			if iv, ok := m["interval"].(float64); ok && iv > 0 {
				d := time.Duration(mathx.Clamp(iv, 0.1, 3600) * float64(time.Second))
				tick.Reset(d)
				println("[heartbeat] interval", d.String())
			}
			if fr, ok := m["frames"].(bool); ok {
				s.frames = fr
			}
		}
	}
}

func (s *Service) summary() {
	if len(s.status) == 0 {
		println("[heartbeat] no ports")
		return
	}
	ports := make([]string, 0, len(s.status))
	for p := range s.status {
		ports = append(ports, p)
	}
	sort.Strings(ports)
	for _, p := range ports {
		println(s.statusLine(s.status[p]))
	}
}

// statusLine renders "[heartbeat] uart1 up in=12 err=0".
func (s *Service) statusLine(st types.PortStatus) string {
	b := append(s.buf[:0], "[heartbeat] "...)
	b = append(b, st.Port...)
	b = append(b, ' ')
	b = append(b, st.State...)
	b = append(b, " in="...)
	b = conv.AppendUint(b, uint64(st.InCount))
	b = append(b, " err="...)
	b = conv.AppendUint(b, uint64(st.ErrCount))
	if st.Dropped > 0 {
		b = append(b, " drop="...)
		b = conv.AppendUint(b, uint64(st.Dropped))
	}
	if st.LastError != "" {
		b = append(b, ' ')
		b = append(b, st.LastError...)
	}
	s.buf = b
	return string(b)
}

// frameLine renders "[frame] uart1 #3 [8] 11 03 00 6B ...".
func (s *Service) frameLine(f types.Frame) string {
	b := append(s.buf[:0], "[frame] "...)
	b = append(b, f.Port...)
	b = append(b, " #"...)
	b = conv.AppendUint(b, uint64(f.Seq))
	b = append(b, " ["...)
	b = conv.AppendUint(b, uint64(len(f.Data)))
	b = append(b, "] "...)
	data := f.Data
	if len(data) > maxDump {
		data = data[:maxDump]
	}
	b = conv.AppendHex(b, data)
	if len(f.Data) > maxDump {
		b = append(b, " ..."...)
	}
	if f.Overflow {
		b = append(b, " overflow"...)
	}
	s.buf = b
	return string(b)
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
