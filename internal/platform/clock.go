package platform

import "time"

// clockBase anchors Now's readings; time.Since reads the monotonic clock.
var clockBase = time.Now()

// Now returns nanoseconds from the monotonic clock. Callers treat the
// result as an opaque, non-decreasing tick count, never as wall time.
func (SystemClock) Now() uint64 {
	return uint64(time.Since(clockBase))
}
