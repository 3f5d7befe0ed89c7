// Package notify is the interrupt-to-task handoff: one single-slot signal
// per handler, raised from interrupt context and waited on by the owning
// task.
//
// Three raising primitives are kept distinct:
//   - Accumulate counts: every call is observed by the next Take, none are lost.
//   - Overwrite carries a value: a newer value replaces an untaken one.
//   - Poke wakes the task and leaves the count and value alone.
//
// None of them block or allocate. The wake channel holds at most one token;
// state lives in atomics, so coalesced wakes lose nothing.
package notify

import (
	"context"
	"sync/atomic"
)

// Note is what a task observes when it takes the slot.
type Note struct {
	Count    uint32 // accumulate signals since the last take
	Value    uint32 // latest overwrite value (valid when HasValue)
	HasValue bool
	Replaced uint32 // overwrite values superseded before being taken
	Poked    bool
}

// Slot is a single-slot notification.
type Slot struct {
	wake chan struct{}

	count    atomic.Uint32
	value    atomic.Uint32
	fresh    atomic.Bool
	replaced atomic.Uint32
	poked    atomic.Bool
}

func New() *Slot {
	return &Slot{wake: make(chan struct{}, 1)}
}

// Accumulate records one occurrence and wakes the task.
func (s *Slot) Accumulate() {
	s.count.Add(1)
	s.kick()
}

// Overwrite publishes v as the latest value and wakes the task. An untaken
// earlier value is replaced, not queued.
func (s *Slot) Overwrite(v uint32) {
	s.value.Store(v)
	if s.fresh.Swap(true) {
		s.replaced.Add(1)
	}
	s.kick()
}

// Poke wakes the task without touching the count or value.
func (s *Slot) Poke() {
	s.poked.Store(true)
	s.kick()
}

func (s *Slot) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether a take would return a note.
func (s *Slot) Pending() bool {
	return s.count.Load() > 0 || s.fresh.Load() || s.poked.Load()
}

// TryTake consumes pending state without blocking.
func (s *Slot) TryTake() (Note, bool) {
	if !s.Pending() {
		return Note{}, false
	}
	var n Note
	n.Count = s.count.Swap(0)
	if s.fresh.Swap(false) {
		n.HasValue = true
		n.Value = s.value.Load()
	}
	n.Replaced = s.replaced.Swap(0)
	n.Poked = s.poked.Swap(false)
	return n, true
}

// Wait blocks until the slot is raised and takes it. There is no timeout:
// frame timing belongs to the silence timer or idle-line detection. ctx
// only ends the wait on shutdown.
func (s *Slot) Wait(ctx context.Context) (Note, error) {
	for {
		if n, ok := s.TryTake(); ok {
			return n, nil
		}
		select {
		case <-s.wake:
			// coalesced wake-up; re-check state
		case <-ctx.Done():
			return Note{}, ctx.Err()
		}
	}
}
