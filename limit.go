package looper

import (
	"sync/atomic"
)

// DefaultMaxLoopers is the initial process-wide limit on live loopers.
const DefaultMaxLoopers = 30

var (
	maxLoopers  atomic.Int64
	liveLoopers atomic.Int64
)

func init() {
	maxLoopers.Store(DefaultMaxLoopers)
}

// SetMaxLoopers sets the process-wide limit on live loopers, returning the
// previous limit. Lowering it below the current live count does not affect
// existing loopers, but New fails until enough have stopped.
func SetMaxLoopers(n int) (int, error) {
	if n <= 0 {
		return 0, wrapError(ErrInvalidParameter, "max loopers must be positive, got %d", n)
	}
	return int(maxLoopers.Swap(int64(n))), nil
}

// MaxLoopers returns the process-wide limit on live loopers.
func MaxLoopers() int {
	return int(maxLoopers.Load())
}

// LiveLoopers returns the number of loopers that have been created and not
// yet fully stopped.
func LiveLoopers() int {
	return int(liveLoopers.Load())
}

// acquireSlot reserves capacity for a new looper, failing if the limit has
// been reached.
func acquireSlot() bool {
	for {
		live := liveLoopers.Load()
		if live >= maxLoopers.Load() {
			return false
		}
		if liveLoopers.CompareAndSwap(live, live+1) {
			return true
		}
	}
}

func releaseSlot() {
	liveLoopers.Add(-1)
}
