package looper

import (
	"time"
)

// epoch anchors the monotonic clock. time.Since uses the monotonic reading
// embedded in epoch, so wall clock changes do not affect Now.
var epoch = time.Now()

// Now returns the current monotonic time in microseconds, the unit of
// Message.When. Values are only meaningful relative to each other, within
// the current process.
func Now() int64 {
	return time.Since(epoch).Microseconds()
}

// deadlineAfter converts a delay to an absolute scheduled time, relative to
// now. Negative delays are treated as zero.
func deadlineAfter(now int64, delay time.Duration) int64 {
	if delay <= 0 {
		return now
	}
	return now + delay.Microseconds()
}

// untilDeadline returns the duration to wait, from now, until when.
func untilDeadline(now, when int64) time.Duration {
	if when <= now {
		return 0
	}
	return time.Duration(when-now) * time.Microsecond
}
