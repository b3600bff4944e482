// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrInvalidParameter is returned (or logged) when a nil looper, handler
	// or message is supplied, or a role is out of range.
	ErrInvalidParameter = errors.New("looper: invalid parameter")

	// ErrAlreadyInitialized is returned by Registry.Init on a registry that
	// is already initialized.
	ErrAlreadyInitialized = errors.New("looper: registry already initialized")

	// ErrNotInitialized is returned by Registry.Deinit on a registry that was
	// never initialized, or has already been torn down.
	ErrNotInitialized = errors.New("looper: registry not initialized")

	// ErrCapacityExceeded is returned by New when the process-wide limit on
	// live loopers has been reached. See SetMaxLoopers.
	ErrCapacityExceeded = errors.New("looper: live looper limit reached")

	// ErrThreadCreate is returned by New when the worker thread could not be
	// started.
	ErrThreadCreate = errors.New("looper: failed to start looper thread")

	// ErrReentrantShutdown is returned by Shutdown and Close when called from
	// the looper's own thread. The stop is still requested.
	ErrReentrantShutdown = errors.New("looper: cannot wait for shutdown from the looper thread")

	// ErrStopped indicates that a looper no longer accepts messages. It is
	// only ever logged, posting never returns an error.
	ErrStopped = errors.New("looper: looper is stopped")

	// ErrForeignHandler indicates that a message was posted to a looper
	// other than the one its handler is bound to. It is only ever logged.
	ErrForeignHandler = errors.New("looper: handler is bound to another looper")

	// ErrMessageInUse indicates that a message was posted while already
	// queued, or after it was freed.
	ErrMessageInUse = errors.New("looper: message is already in use")
)

// wrapError annotates a sentinel, preserving errors.Is matching.
func wrapError(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
