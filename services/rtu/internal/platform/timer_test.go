package platform

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer_FiresOnce(t *testing.T) {
	var n atomic.Int32
	tm := NewTimer(func() { n.Add(1) })
	tm.Reset(5 * time.Millisecond)
	assert.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), n.Load())
}

func TestTimer_ResetPostpones(t *testing.T) {
	var n atomic.Int32
	tm := NewTimer(func() { n.Add(1) })
	for i := 0; i < 5; i++ {
		tm.Reset(30 * time.Millisecond)
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, int32(0), n.Load())
	assert.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)
}

func TestTimer_StopCancels(t *testing.T) {
	var n atomic.Int32
	tm := NewTimer(func() { n.Add(1) })
	tm.Reset(5 * time.Millisecond)
	tm.Stop()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), n.Load())
}
