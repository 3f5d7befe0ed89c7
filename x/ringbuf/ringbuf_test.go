package ringbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain copies and consumes up to len(dst) bytes.
func drain(r *Ring, dst []byte) int {
	return r.Discard(r.Peek(dst))
}

func TestNew_RejectsNonPowerOfTwo(t *testing.T) {
	assert.Panics(t, func() { New(300) })
	assert.Panics(t, func() { New(1) })
	assert.NotPanics(t, func() { New(256) })
}

func TestPush_CountNeverExceedsCap(t *testing.T) {
	r := New(8)
	for i := 0; i < 20; i++ {
		r.Push(byte(i))
		require.LessOrEqual(t, r.Available(), r.Cap())
	}
	assert.Equal(t, 8, r.Available())
}

func TestPush_DropsIncomingAndKeepsStored(t *testing.T) {
	r := New(4)
	for i := byte(1); i <= 4; i++ {
		require.True(t, r.Push(i))
	}
	assert.False(t, r.Overflow())

	assert.False(t, r.Push(5))
	assert.False(t, r.Push(6))
	assert.True(t, r.Overflow())
	assert.Equal(t, uint32(1), r.Episodes(), "one episode for consecutive drops")
	assert.Equal(t, uint32(2), r.Dropped())

	got := make([]byte, 8)
	n := r.Peek(got)
	assert.Equal(t, []byte{1, 2, 3, 4}, got[:n])
}

func TestOverflow_OneEpisodePerReset(t *testing.T) {
	r := New(2)
	for ep := 1; ep <= 3; ep++ {
		r.Push(0)
		r.Push(0)
		r.Push(0)
		r.Push(0)
		assert.Equal(t, uint32(ep), r.Episodes())
		r.Reset()
		assert.False(t, r.Overflow())
		assert.Equal(t, 0, r.Available())
	}
}

func TestReset_Idempotent(t *testing.T) {
	r := New(8)
	r.Push('a')
	r.Reset()
	r.Reset()
	assert.Equal(t, 0, r.Available())
	assert.True(t, r.Push('b'))

	got := make([]byte, 1)
	drain(r, got)
	assert.Equal(t, byte('b'), got[0])
}

func TestOrderAcrossWrapWithPartialProgress(t *testing.T) {
	r := New(64)

	const N = 2000
	src := make([]byte, N)
	for i := range src {
		src[i] = byte(i)
	}

	dst := make([]byte, 0, N)
	p := src
	for len(dst) < N {
		// producer step: up to 7 bytes
		for k := 0; k < 7 && len(p) > 0; k++ {
			if !r.Push(p[0]) {
				break
			}
			p = p[1:]
		}
		// consumer step: up to 17 bytes
		var tmp [17]byte
		n := drain(r, tmp[:])
		dst = append(dst, tmp[:n]...)
	}
	assert.Equal(t, src, dst)
	assert.False(t, r.Overflow())
}

func TestConcurrentProducerConsumer(t *testing.T) {
	r := New(16)
	const N = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < N; {
			if r.Push(byte(i)) {
				i++
			}
		}
	}()

	got := 0
	var tmp [5]byte
	for got < N {
		n := drain(r, tmp[:])
		for i := 0; i < n; i++ {
			require.Equal(t, byte(got+i), tmp[i])
		}
		got += n
	}
	wg.Wait()
}

func TestDiscard_KeepsLaterBytes(t *testing.T) {
	r := New(4)
	for _, b := range []byte{1, 2, 3, 4, 5} {
		r.Push(b)
	}
	require.True(t, r.Overflow())

	assert.Equal(t, 3, r.Discard(3))
	assert.False(t, r.Overflow())
	assert.Equal(t, 1, r.Available())

	got := make([]byte, 4)
	n := drain(r, got)
	assert.Equal(t, []byte{4}, got[:n])
	assert.Equal(t, 0, r.Discard(10))
}

func TestSince_CountsUpToMark(t *testing.T) {
	r := New(8)
	r.Push(1)
	r.Push(2)
	mark := r.WriteCursor()
	r.Push(3)
	assert.Equal(t, 2, r.Since(mark))

	// Consuming past the mark never yields a wrapped count.
	r.Discard(3)
	assert.Equal(t, 0, r.Since(mark))
	assert.Equal(t, uint32(3), r.ReadCursor())

	r.Push(4)
	assert.Equal(t, 1, r.Since(r.WriteCursor()))
}

func TestSince_AcrossCursorWrap(t *testing.T) {
	r := New(4)
	r.rd.Store(^uint32(0) - 1)
	r.wr.Store(^uint32(0) - 1)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	mark := r.WriteCursor()
	assert.Equal(t, uint32(1), mark, "write cursor wrapped")
	assert.Equal(t, 3, r.Since(mark))
}
