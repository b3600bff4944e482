package looper

import (
	"context"
	"errors"
	"sync"
)

// Role identifies a well-known looper within a Registry.
type Role int

const (
	// RoleDefault is the general purpose looper.
	RoleDefault Role = iota
	// RoleLog is the looper that performs log output, see package logsink.
	RoleLog

	roleCount
)

// String returns the name of the role, which is also the name given to the
// looper Registry.Init creates for it.
func (r Role) String() string {
	switch r {
	case RoleDefault:
		return "default"
	case RoleLog:
		return "log"
	default:
		return "unknown"
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r >= 0 && r < roleCount
}

// Registry maps roles to loopers.
//
// Loopers created by Init, or installed using SetLooper, are owned by the
// registry, and are stopped by Deinit. The registry is safe for concurrent
// use.
type Registry struct {
	loopers     [roleCount]*Looper
	mu          sync.RWMutex
	initialized bool
}

// NewRegistry returns an empty, uninitialized registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Init creates a looper for each role that has not been populated using
// SetLooper, with the given options. If any creation fails, the loopers
// created so far are stopped, and the error is returned.
func (r *Registry) Init(opts ...Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return ErrAlreadyInitialized
	}

	var created []Role
	for role := Role(0); role < roleCount; role++ {
		if r.loopers[role] != nil {
			continue
		}
		l, err := New(role.String(), opts...)
		if err != nil {
			for _, c := range created {
				_ = r.loopers[c].Close()
				r.loopers[c] = nil
			}
			return err
		}
		r.loopers[role] = l
		created = append(created, role)
	}

	r.initialized = true
	return nil
}

// Deinit removes every registered looper, then stops each of them, in role
// order, returning any errors joined. Once Deinit returns, no handler bound
// to those loopers will be called, unless Deinit was called from one of
// their threads (see ErrReentrantShutdown).
//
// Loopers installed using SetLooper are stopped even if Init was never
// called. ErrNotInitialized is returned only if there was nothing to tear
// down.
func (r *Registry) Deinit() error {
	r.mu.Lock()
	if !r.initialized && r.loopers == ([roleCount]*Looper{}) {
		r.mu.Unlock()
		return ErrNotInitialized
	}
	loopers := r.loopers
	r.loopers = [roleCount]*Looper{}
	r.initialized = false
	r.mu.Unlock()

	// shut down outside the lock, as handlers may call GetLooper
	var errs []error
	for _, l := range loopers {
		if l == nil {
			continue
		}
		if err := l.Shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Initialized reports whether Init has been called, without a subsequent
// Deinit.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// GetLooper returns the looper registered for role, or nil if role is
// invalid or has no looper. It never creates loopers.
func (r *Registry) GetLooper(role Role) *Looper {
	if !role.Valid() {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loopers[role]
}

// SetLooper registers l for role, transferring ownership of l to the
// registry. A nil l clears the role. The previously registered looper, if
// any, is returned, and is then owned by the caller.
func (r *Registry) SetLooper(role Role, l *Looper) (*Looper, error) {
	if !role.Valid() {
		return nil, wrapError(ErrInvalidParameter, "invalid role %d", int(role))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.loopers[role]
	r.loopers[role] = l
	return prev, nil
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by the package
// level Init, Deinit, GetLooper and SetLooper functions.
func DefaultRegistry() *Registry { return defaultRegistry }

// Init initializes the default registry. See Registry.Init.
func Init(opts ...Option) error { return defaultRegistry.Init(opts...) }

// Deinit tears down the default registry. See Registry.Deinit.
func Deinit() error { return defaultRegistry.Deinit() }

// GetLooper returns a looper from the default registry. See
// Registry.GetLooper.
func GetLooper(role Role) *Looper { return defaultRegistry.GetLooper(role) }

// SetLooper registers a looper in the default registry. See
// Registry.SetLooper.
func SetLooper(role Role, l *Looper) (*Looper, error) { return defaultRegistry.SetLooper(role, l) }
