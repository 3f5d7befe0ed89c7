package timex

import (
	"time"

	"rtuframe-go/x/mathx"
)

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Modbus serial line recommendation: above this rate the inter-frame gap
// is fixed rather than scaled with the character time.
const (
	fixedSilenceAbove = 19200
	fixedSilence      = 1750 * time.Microsecond
)

// CharBits is the number of bit times one character occupies on the line:
// start bit, data bits, optional parity bit and stop bits.
func CharBits(dataBits, stopBits uint8, parity bool) uint32 {
	n := 1 + uint32(dataBits) + uint32(stopBits)
	if parity {
		n++
	}
	return n
}

// CharTime is the duration of one character at baud.
func CharTime(baud, charBits uint32) time.Duration {
	if baud == 0 {
		return 0
	}
	ns := mathx.CeilDiv(uint64(charBits)*uint64(time.Second), uint64(baud))
	return time.Duration(ns)
}

// SilenceInterval returns the RTU end-of-frame gap: 3.5 character times,
// or the fixed 1.75 ms when baud exceeds 19200.
func SilenceInterval(baud, charBits uint32) time.Duration {
	if baud == 0 {
		return 0
	}
	if baud > fixedSilenceAbove {
		return fixedSilence
	}
	// 3.5 chars == 35 * bits / (10 * baud) seconds.
	ns := mathx.CeilDiv(35*uint64(charBits)*uint64(time.Second), 10*uint64(baud))
	return time.Duration(ns)
}

// ResetTimer stops t, drains a pending expiry and re-arms it for d.
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

// DrainTimer discards a pending expiry without blocking.
func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
