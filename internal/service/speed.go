package service

import "time"

// Speed computes instantaneous throughput in bytes per second from two
// (offset, timestamp) samples. ok is false when no time has elapsed, which
// also guards against clock skew; a negative result is returned as-is so an
// offset regression stays visible to callers instead of crashing anything.
func Speed(prevOffset int64, prevTime time.Time, newOffset int64, newTime time.Time) (bytesPerSec float64, ok bool) {
	if !newTime.After(prevTime) {
		return 0, false
	}

	elapsedMs := float64(newTime.Sub(prevTime).Microseconds()) / 1000
	return float64(newOffset-prevOffset) / elapsedMs * 1000, true
}
