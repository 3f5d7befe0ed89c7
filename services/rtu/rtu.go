// Package rtu runs the receive side of every configured Modbus RTU port:
// it builds the port handlers from config/rtu, runs one consuming task per
// port and publishes what each task receives on the bus.
package rtu

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	"rtuframe-go/bus"
	"rtuframe-go/errcode"
	"rtuframe-go/services/rtu/internal/core"
	"rtuframe-go/services/rtu/internal/platform"
	"rtuframe-go/types"
	"rtuframe-go/x/timex"
)

const (
	topicRoot = "rtu"
	topicCfg  = "config"
)

// Board binds configured ports to hardware.
type Board = platform.Board

// SimBoard is a host board whose ports are driven in-process.
type SimBoard = platform.SimBoard

func NewSimBoard() *SimBoard { return platform.NewSimBoard() }

// Service owns the coordinator and the per-port tasks.
type Service struct {
	board Board
	conn  *bus.Connection

	coord *core.Coordinator
	tx    map[core.PortID]io.Writer
	wg    sync.WaitGroup
}

// New returns a service binding ports through board. A nil board selects
// the platform default.
func New(board Board) *Service {
	if board == nil {
		board = platform.Default()
	}
	return &Service{board: board, tx: map[core.PortID]io.Writer{}}
}

// Run blocks until ctx is done.
func Run(ctx context.Context, conn *bus.Connection, board Board) {
	New(board).Run(ctx, conn)
}

func (s *Service) Run(ctx context.Context, conn *bus.Connection) {
	s.conn = conn
	cfgSub := conn.Subscribe(bus.T(topicCfg, topicRoot))
	sendSub := conn.Subscribe(bus.T(topicRoot, "+", "send"))
	defer conn.Unsubscribe(cfgSub)
	defer conn.Unsubscribe(sendSub)

	tctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		if s.coord != nil {
			s.coord.Close()
		}
		s.wg.Wait()
	}()

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.publishState("stopped", "context_cancelled", nil)
			return

		case msg := <-cfgSub.Channel():
			if s.coord != nil {
				glog.Warningf("[rtu] config update ignored: ports are fixed after start")
				continue
			}
			var cfg types.RTUConfig
			if err := DecodeJSON(msg.Payload, &cfg); err != nil {
				glog.Errorf("[rtu] config decode: %v", err)
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			if err := s.apply(tctx, cfg); err != nil {
				glog.Errorf("[rtu] config apply: %v", err)
				s.publishState("error", "apply_config_failed", err)
				continue
			}
			s.publishState("ready", "configured", nil)

		case msg := <-sendSub.Channel():
			s.handleSend(msg)
		}
	}
}

// apply builds and arms every port, then starts the port tasks. Ports that
// fail to arm still get a task, which reports the failure and exits.
func (s *Service) apply(ctx context.Context, cfg types.RTUConfig) error {
	if len(cfg.Ports) == 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "apply", Msg: "no ports"}
	}
	specs := make([]core.PortSpec, 0, len(cfg.Ports))
	binds := make([]platform.Binding, 0, len(cfg.Ports))
	for _, raw := range cfg.Ports {
		pc := raw.Normalised()
		kind, ok := core.ParseTransport(pc.Transport)
		if !ok {
			return &errcode.E{C: errcode.InvalidParams, Op: "port " + pc.ID, Msg: "transport " + pc.Transport}
		}
		bd, err := s.board.Bind(pc)
		if err != nil {
			return err
		}
		specs = append(specs, core.PortSpec{
			ID:         core.PortID(pc.ID),
			Transport:  kind,
			BufferSize: pc.BufferSize,
			Silence:    pc.Silence(),
			ArmRetries: pc.ArmRetries,
			Byte:       bd.Byte,
			Idle:       bd.Idle,
			USB:        bd.USB,
			Timers:     bd.Timers,
		})
		binds = append(binds, bd)
		glog.Infof("[rtu] port %s: %s baud=%d buf=%d silence=%v", pc.ID, pc.Transport, pc.Baud, pc.BufferSize, pc.Silence())
	}

	coord, err := core.NewCoordinator(specs)
	if err != nil {
		return err
	}
	for i, bd := range binds {
		if bd.Attach != nil {
			bd.Attach(coord)
		}
		if bd.Tx != nil {
			s.tx[specs[i].ID] = bd.Tx
		}
		if bd.Run != nil {
			s.wg.Add(1)
			go func(run func(context.Context)) {
				defer s.wg.Done()
				run(ctx)
			}(bd.Run)
		}
	}
	s.coord = coord

	if err := coord.Arm(); err != nil {
		glog.Errorf("[rtu] arm: %v", err)
	}
	for _, h := range coord.Registry().Handlers() {
		s.wg.Add(1)
		go func(h *core.Handler) {
			defer s.wg.Done()
			s.portTask(ctx, h)
		}(h)
	}
	return nil
}

// portTask is the consuming task for one port.
func (s *Service) portTask(ctx context.Context, h *core.Handler) {
	port := string(h.ID())
	s.publishStatus(h)
	if h.Failed() {
		glog.Errorf("[rtu] %s: failed to arm", port)
		return
	}
	for {
		f, err := h.Wait(ctx)
		if err != nil {
			return
		}
		if f.TxDone {
			s.conn.Publish(s.conn.NewMessage(bus.T(topicRoot, port, "tx_done"),
				types.TxDone{Port: port, TSms: timex.NowMs()}, false))
		}
		if f.Signals == 0 && !f.Failed {
			continue
		}
		if len(f.Data) > 0 {
			s.publishFrame(f)
		}
		err = h.Consume()
		s.publishStatus(h)
		if errcode.Of(err) == errcode.ArmFailure {
			glog.Errorf("[rtu] %s: receive stopped: %v", port, err)
			return
		}
		if err != nil {
			glog.Warningf("[rtu] %s: re-arm: %v", port, err)
		}
	}
}

func (s *Service) publishFrame(f core.Frame) {
	out := types.Frame{
		Port:      string(f.Port),
		Transport: f.Transport.String(),
		Data:      append([]byte(nil), f.Data...),
		Overflow:  f.Overflow,
		Overlap:   f.Overlap,
		Seq:       f.Seq,
		TSms:      timex.NowMs(),
	}
	if f.LastErr != core.ErrNone {
		out.Error = string(f.LastErr.Code())
	}
	if glog.V(2) {
		glog.Infof("[rtu] %s frame #%d: % x", out.Port, out.Seq, out.Data)
	}
	s.conn.Publish(s.conn.NewMessage(bus.T(topicRoot, out.Port, "frame"), out, false))
}

func (s *Service) publishStatus(h *core.Handler) {
	st := h.Status()
	s.conn.Publish(s.conn.NewMessage(bus.T(topicRoot, st.Port, "status"), st, true))
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{"level": level, "status": status, "ts_ms": timex.NowMs()}
	if err != nil {
		payload["error"] = err.Error()
		payload["code"] = string(errcode.Of(err))
	}
	s.conn.Publish(s.conn.NewMessage(bus.T(topicRoot, "state"), payload, true))
}

// handleSend writes the payload of rtu/<port>/send to the port. The
// matching tx_done is published by the port task.
func (s *Service) handleSend(msg *bus.Message) {
	if len(msg.Topic) != 3 {
		return
	}
	port, _ := msg.Topic[1].(string)
	w, ok := s.tx[core.PortID(port)]
	if !ok {
		glog.Warningf("[rtu] send to unknown port %q", port)
		return
	}
	data, err := sendPayload(msg.Payload)
	if err != nil {
		glog.Warningf("[rtu] send %s: %v", port, err)
		return
	}
	if _, err := w.Write(data); err != nil {
		glog.Errorf("[rtu] send %s: %v", port, err)
	}
}

func sendPayload(p any) ([]byte, error) {
	switch v := p.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		var req struct {
			Data []byte `json:"data"`
		}
		if err := DecodeJSON(p, &req); err != nil {
			return nil, err
		}
		if len(req.Data) == 0 {
			return nil, errors.New("empty send")
		}
		return req.Data, nil
	}
}

// DecodeJSON accepts raw JSON or any JSON-marshalable value and decodes it
// into dst.
func DecodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case json.RawMessage:
		return json.Unmarshal(v, dst)
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case T:
		*dst = v
		return nil
	case *T:
		if v == nil {
			return errors.New("nil payload")
		}
		*dst = *v
		return nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
