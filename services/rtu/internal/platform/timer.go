package platform

import (
	"sync"
	"time"

	"rtuframe-go/services/rtu/internal/core"
)

// afterTimer is a one-shot core.Timer over time.AfterFunc. Each Reset
// starts a new generation so an expiry already in flight for an older
// countdown is discarded.
type afterTimer struct {
	mu   sync.Mutex
	t    *time.Timer
	gen  uint64
	fire func()
}

// NewTimer is a core.TimerFactory backed by the Go runtime timer.
func NewTimer(fire func()) core.Timer {
	return &afterTimer{fire: fire}
}

func (a *afterTimer) Reset(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.t != nil {
		a.t.Stop()
	}
	a.gen++
	gen := a.gen
	a.t = time.AfterFunc(d, func() {
		a.mu.Lock()
		live := a.gen == gen
		a.mu.Unlock()
		if live {
			a.fire()
		}
	})
}

func (a *afterTimer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	if a.t != nil {
		a.t.Stop()
	}
}
