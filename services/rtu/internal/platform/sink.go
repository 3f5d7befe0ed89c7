package platform

import "rtuframe-go/services/rtu/internal/core"

// Sink receives interrupt-context events from a port. *core.Coordinator is
// the production sink.
type Sink interface {
	OnByte(port core.PortID, b byte)
	OnRxEvent(port core.PortID, n int)
	OnRxError(port core.PortID)
	OnUSBReceive(port core.PortID, data []byte)
	OnTxComplete(port core.PortID)
}

var _ Sink = (*core.Coordinator)(nil)
