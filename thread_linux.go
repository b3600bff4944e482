//go:build linux

package looper

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxThreadNameLen is the limit imposed by PR_SET_NAME, excluding the NUL.
const maxThreadNameLen = 15

// lockThread wires the calling goroutine to its OS thread, and names the
// thread. The goroutine must exit without unlocking, so the thread (and its
// name) is discarded with it.
func lockThread(name string) error {
	runtime.LockOSThread()
	if len(name) > maxThreadNameLen {
		name = name[:maxThreadNameLen]
	}
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(p)), 0, 0, 0)
}
