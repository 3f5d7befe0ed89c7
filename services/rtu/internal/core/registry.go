package core

import (
	"rtuframe-go/errcode"
)

// Registry maps port identities to handlers. It is fixed at construction
// and only read afterwards, so interrupt-side lookups take no lock.
type Registry struct {
	hs []*Handler
}

// NewRegistry builds a registry in insertion order. Port identities must be
// unique.
func NewRegistry(hs ...*Handler) (*Registry, error) {
	for i, h := range hs {
		if h == nil {
			return nil, errcode.Wrap(errcode.InvalidParams, "registry", nil)
		}
		for _, prev := range hs[:i] {
			if prev.id == h.id {
				return nil, &errcode.E{C: errcode.DuplicatePort, Op: "registry", Msg: string(h.id)}
			}
		}
	}
	out := make([]*Handler, len(hs))
	copy(out, hs)
	return &Registry{hs: out}, nil
}

// Resolve returns the handler owning port. Linear, allocation-free.
func (r *Registry) Resolve(port PortID) (*Handler, bool) {
	for _, h := range r.hs {
		if h.id == port {
			return h, true
		}
	}
	return nil, false
}

// FirstOf returns the first handler of the given transport.
func (r *Registry) FirstOf(kind Transport) (*Handler, bool) {
	for _, h := range r.hs {
		if h.kind == kind {
			return h, true
		}
	}
	return nil, false
}

func (r *Registry) Len() int { return len(r.hs) }

// Handlers returns the handlers in insertion order.
func (r *Registry) Handlers() []*Handler {
	out := make([]*Handler, len(r.hs))
	copy(out, r.hs)
	return out
}
