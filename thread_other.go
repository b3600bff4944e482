//go:build !linux

package looper

import (
	"runtime"
)

// lockThread wires the calling goroutine to its OS thread. Thread naming is
// only supported on linux.
func lockThread(string) error {
	runtime.LockOSThread()
	return nil
}
