// Package ringbuf provides the fixed-capacity byte ring a byte-wise UART
// handler accumulates one frame attempt into.
//
// One producer (the receive interrupt) and one consumer (the owning task).
// Push is O(1), never blocks and never allocates. When the ring is full the
// incoming byte is dropped; bytes already stored are never overwritten.
package ringbuf

import (
	"sync/atomic"
)

// Ring is a single-producer, single-consumer byte ring.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	overflow atomic.Bool   // set on first dropped byte, cleared by Reset
	episodes atomic.Uint32 // false->true transitions of overflow
	dropped  atomic.Uint32 // bytes dropped since construction
}

// New allocates a ring of the given power-of-two size (>= 2).
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("ringbuf: size must be power of two >= 2")
	}
	return &Ring{
		buf:  make([]byte, size),
		mask: uint32(size - 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Cap returns the fixed capacity in bytes.
func (r *Ring) Cap() int { return len(r.buf) }

// Producer side

// Push stores one byte. On a full ring it drops b, raises the overflow flag
// and returns false.
func (r *Ring) Push(b byte) bool {
	rd := r.rd.Load()
	wr := r.wr.Load()
	if wr-rd >= r.size() {
		if r.overflow.CompareAndSwap(false, true) {
			r.episodes.Add(1)
		}
		r.dropped.Add(1)
		return false
	}
	r.buf[wr&r.mask] = b // 1) write data
	r.wr.Store(wr + 1)   // 2) publish
	return true
}

// Consumer side

// Available returns the number of stored bytes. It never exceeds Cap.
func (r *Ring) Available() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(wr - rd)
}

// Overflow reports whether a byte was dropped since the last Reset.
func (r *Ring) Overflow() bool { return r.overflow.Load() }

// Episodes returns how many times the overflow flag has been raised.
func (r *Ring) Episodes() uint32 { return r.episodes.Load() }

// Dropped returns the total number of bytes dropped on a full ring.
func (r *Ring) Dropped() uint32 { return r.dropped.Load() }

// Peek copies up to len(dst) stored bytes, oldest first, without consuming.
func (r *Ring) Peek(dst []byte) (n int) {
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	avail := int(wr - rd)
	if avail <= 0 || len(dst) == 0 {
		return 0
	}
	if len(dst) < avail {
		avail = len(dst)
	}
	n = avail

	size := r.size()
	rdIdx := rd & r.mask
	first := int(size - rdIdx)
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	return n
}

// WriteCursor is the monotonic count of bytes ever stored. A value taken
// now marks the end of what is stored now, whatever the consumer does later.
func (r *Ring) WriteCursor() uint32 { return r.wr.Load() }

// ReadCursor is the monotonic count of bytes ever consumed.
func (r *Ring) ReadCursor() uint32 { return r.rd.Load() }

// Since returns how many stored bytes lie before the write cursor mark. A
// mark the consumer has already passed yields 0.
func (r *Ring) Since(mark uint32) int {
	n := int32(mark - r.rd.Load())
	if n <= 0 {
		return 0
	}
	if avail := r.Available(); int(n) > avail {
		return avail
	}
	return int(n)
}

// Discard consumes up to n bytes without copying and clears the overflow
// flag. Bytes pushed after the first n survive.
func (r *Ring) Discard(n int) int {
	avail := r.Available()
	if n > avail {
		n = avail
	}
	if n > 0 {
		r.rd.Add(uint32(n))
	}
	r.overflow.Store(false)
	return n
}

// Reset discards every stored byte and clears the overflow flag. Only the
// consumer moves rd, so a Push racing with Reset lands after the discarded
// bytes and survives.
func (r *Ring) Reset() {
	r.rd.Store(r.wr.Load())
	r.overflow.Store(false)
}
