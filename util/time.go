package util

import "time"

// Sleep waits for the duration, but returns false early if stop closes.
// Loops must use this rather than time.Sleep so shutdown latency is bounded
// by the shortest interval, not the longest.
func Sleep(stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}
