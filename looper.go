// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// defaultName is used for loopers created with an empty name.
const defaultName = "looper"

// Looper is a named message loop, backed by a dedicated OS thread, which
// dispatches messages to their handlers one at a time, in order of scheduled
// time (ties in post order).
//
// All methods are safe to call from any goroutine, including from within a
// handler running on the looper itself, with the exception that Shutdown and
// Close cannot wait for the looper from its own thread.
type Looper struct {
	// Prevent copying
	_ [0]func()

	logger      *logiface.Logger[logiface.Event]
	dropLimiter *catrate.Limiter
	metrics     *looperMetrics
	tracer      trace.Tracer

	// current is the message being dispatched, if any, guarded by mu.
	current *Message

	// wake has capacity 1, and is signalled on post and stop.
	wake chan struct{}

	// done is closed once the worker has exited and the queue is drained.
	done chan struct{}

	name string

	// queue is guarded by mu.
	queue messageQueue

	state stateValue

	goroutineID atomic.Uint64

	// seq orders messages scheduled for the same time, guarded by mu.
	seq uint64

	mu sync.Mutex

	id uuid.UUID
}

// New creates a looper and starts its worker thread. On linux, the thread
// is named after the looper (truncated to 15 bytes).
//
// New fails with ErrCapacityExceeded if MaxLoopers loopers are already live,
// or ErrThreadCreate if the worker thread could not be set up. No resources
// remain allocated on failure.
//
// The looper runs until Shutdown or Close is called.
func New(name string, opts ...Option) (*Looper, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = defaultName
	}

	if !acquireSlot() {
		err := wrapError(ErrCapacityExceeded, "%d loopers live, creating %q", MaxLoopers(), name)
		cfg.logger.Err().
			Str("looper", name).
			Err(err).
			Log("looper: create failed")
		return nil, err
	}

	l := &Looper{
		logger:      cfg.logger,
		dropLimiter: cfg.newDropLimiter(),
		tracer:      cfg.tracerProvider.Tracer(instrumentationName),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		name:        name,
		id:          uuid.New(),
	}
	l.metrics = l.newMetrics(cfg.meterProvider)

	started := make(chan error, 1)
	go l.run(started)
	if err := <-started; err != nil {
		// the worker has exited, without touching the slot
		l.state.Store(StateStopped)
		close(l.done)
		releaseSlot()
		err = fmt.Errorf("%w: %q: %w", ErrThreadCreate, name, err)
		l.withLooper(l.logger.Err()).
			Err(err).
			Log("looper: create failed")
		return nil, err
	}

	l.withLooper(l.logger.Debug()).
		Log("looper: started")

	return l, nil
}

// Name returns the name of the looper.
func (l *Looper) Name() string { return l.name }

// ID returns a unique identifier for this looper instance.
func (l *Looper) ID() uuid.UUID { return l.id }

// State returns the current lifecycle state.
func (l *Looper) State() State { return l.state.Load() }

// Done returns a channel that is closed once the looper has fully stopped.
func (l *Looper) Done() <-chan struct{} { return l.done }

// IsLooperThread reports whether the caller is running on the looper's
// thread, i.e. within a handler dispatched by it.
func (l *Looper) IsLooperThread() bool {
	id := l.goroutineID.Load()
	return id != 0 && id == getGoroutineID()
}

// Len returns the number of queued messages, excluding any message being
// dispatched.
func (l *Looper) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Idle reports whether the queue is empty and no message is being
// dispatched.
func (l *Looper) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) == 0 && l.current == nil
}

// Post enqueues m for dispatch as soon as possible, after any queued
// messages scheduled at or before now.
//
// Ownership of m passes to the looper. Post never fails loudly: if m cannot
// be queued (nil handler, handler bound to another looper, stopped looper,
// m already in use), the reason is logged, m is freed where the looper owns
// it, and false is returned.
func (l *Looper) Post(m *Message) bool {
	if l == nil {
		freeRejected(m)
		return false
	}
	return l.postAt(m, 0)
}

// PostDelay is like Post, but m is not dispatched until delay has elapsed.
// Negative delays are treated as zero.
func (l *Looper) PostDelay(m *Message, delay time.Duration) bool {
	if l == nil {
		freeRejected(m)
		return false
	}
	return l.postAt(m, delay)
}

// freeRejected frees a message rejected by a nil looper.
func freeRejected(m *Message) {
	if m != nil && m.state.Load() == messageIdle {
		m.free()
	}
}

// postAt queues m, scheduled delay after the time it is inserted. Reading
// the clock under the lock keeps scheduled times of later insertions at or
// after those of messages already dispatched.
func (l *Looper) postAt(m *Message, delay time.Duration) bool {
	if m == nil {
		l.metrics.recordRejected(reasonNilMessage)
		l.logDrop(nil, reasonNilMessage, ErrInvalidParameter)
		return false
	}

	if !m.markQueued() {
		// owned elsewhere (queued) or already freed, so not ours to touch
		l.metrics.recordRejected(reasonInUse)
		l.logDrop(nil, reasonInUse, ErrMessageInUse)
		return false
	}

	if m.Handler == nil {
		l.rejectQueued(m, reasonNilHandler, ErrInvalidParameter)
		return false
	}

	if m.Handler.looper != l {
		l.rejectQueued(m, reasonForeignHandler, ErrForeignHandler)
		return false
	}

	l.mu.Lock()
	if !l.state.IsRunning() {
		l.mu.Unlock()
		l.rejectQueued(m, reasonStopped, ErrStopped)
		return false
	}
	when := deadlineAfter(Now(), delay)
	m.when = when
	l.seq++
	l.queue.push(entry{msg: m, when: when, seq: l.seq})
	l.mu.Unlock()

	l.metrics.recordPosted()
	l.signal()

	return true
}

// rejectQueued frees a message claimed by postAt but never queued.
func (l *Looper) rejectQueued(m *Message, reason string, err error) {
	l.metrics.recordRejected(reason)
	l.logDrop(m, reason, err)
	l.free(m)
}

// signal wakes the worker, if it is not already due to wake.
func (l *Looper) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// free frees m, logging double frees.
func (l *Looper) free(m *Message) {
	if !m.free() {
		withMessage(l.withLooper(l.logger.Err()), m).
			Log("looper: message freed more than once")
	}
}

// Remove removes every queued message for h with the given tag, returning
// the number removed. Removed messages are freed, and never dispatched. A
// message already being dispatched is not affected. Remove does nothing
// unless the looper is running, and is a no-op on a nil looper.
func (l *Looper) Remove(h *Handler, tag int) int {
	if l == nil {
		return 0
	}
	if h == nil {
		l.logInvalid("remove", "nil handler")
		return 0
	}
	return l.removeMatching(func(e *entry) bool {
		return e.msg.Handler == h && e.msg.Tag == tag
	})
}

// RemoveAll removes every queued message for h, returning the number
// removed. See Remove.
func (l *Looper) RemoveAll(h *Handler) int {
	if l == nil {
		return 0
	}
	if h == nil {
		l.logInvalid("remove", "nil handler")
		return 0
	}
	return l.removeMatching(func(e *entry) bool {
		return e.msg.Handler == h
	})
}

// RemoveFunc removes every queued message for h for which match returns
// true, returning the number removed. See Remove.
//
// The match func is called without holding the looper's lock, over copies
// of h's queued messages, so it may safely post to, or remove from, this
// looper. Messages dispatched while match runs are not removed.
func (l *Looper) RemoveFunc(h *Handler, match func(m *Message) bool) int {
	if l == nil {
		return 0
	}
	if h == nil || match == nil {
		l.logInvalid("remove", "nil handler or match func")
		return 0
	}

	type candidate struct {
		view *Message
		seq  uint64
	}

	l.mu.Lock()
	if !l.state.IsRunning() {
		l.mu.Unlock()
		return 0
	}
	var candidates []candidate
	for _, e := range l.queue {
		if e.msg.Handler == h {
			candidates = append(candidates, candidate{view: e.msg.copy(), seq: e.seq})
		}
	}
	l.mu.Unlock()

	selected := make(map[uint64]struct{})
	for _, c := range candidates {
		if match(c.view) {
			selected[c.seq] = struct{}{}
		}
	}
	if len(selected) == 0 {
		return 0
	}

	return l.removeMatching(func(e *entry) bool {
		_, ok := selected[e.seq]
		return ok
	})
}

// removeMatching detaches matching entries under the lock, then frees them.
func (l *Looper) removeMatching(match func(e *entry) bool) int {
	l.mu.Lock()
	if !l.state.IsRunning() {
		l.mu.Unlock()
		return 0
	}
	removed := l.queue.detach(match)
	l.mu.Unlock()

	l.metrics.recordDequeued(len(removed), true, "")
	for _, m := range removed {
		l.free(m)
	}
	return len(removed)
}

// Has reports whether any message for h with the given tag is queued.
func (l *Looper) Has(h *Handler, tag int) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.queue {
		if e.msg.Handler == h && e.msg.Tag == tag {
			return true
		}
	}
	return false
}

func (l *Looper) logInvalid(op, detail string) {
	l.withLooper(l.logger.Warning()).
		Str("op", op).
		Err(wrapError(ErrInvalidParameter, "%s", detail)).
		Log("looper: invalid parameter")
}

// Shutdown stops the looper, and waits until its worker has exited, or ctx
// is done.
//
// A message being dispatched when Shutdown is called runs to completion.
// Messages still queued are freed without being dispatched, and messages
// posted after Shutdown are dropped. Shutdown may be called any number of
// times. If ctx is done first, ctx.Err() is returned, but the looper still
// stops.
//
// Called from the looper's own thread, Shutdown requests the stop, and
// returns ErrReentrantShutdown without waiting.
func (l *Looper) Shutdown(ctx context.Context) error {
	if l == nil {
		return wrapError(ErrInvalidParameter, "nil looper")
	}

	if l.requestStop() {
		l.withLooper(l.logger.Debug()).
			Log("looper: stop requested")
	}

	if l.IsLooperThread() {
		return ErrReentrantShutdown
	}

	// Wait for termination via channel, NOT polling
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the looper, blocking until its worker has exited. It is
// equivalent to Shutdown with a context that is never done.
func (l *Looper) Close() error {
	return l.Shutdown(context.Background())
}

// requestStop sets the stop flag and wakes the worker, reporting whether
// this call was the one to set it.
func (l *Looper) requestStop() bool {
	l.mu.Lock()
	ok := l.state.TryTransition(StateRunning, StateStopRequested)
	l.mu.Unlock()
	if ok {
		l.signal()
	}
	return ok
}

// run is the worker goroutine.
func (l *Looper) run(started chan<- error) {
	if err := lockThread(l.name); err != nil {
		started <- err
		return
	}

	l.goroutineID.Store(getGoroutineID())
	defer l.goroutineID.Store(0)

	l.mu.Lock()
	l.state.Store(StateRunning)
	l.mu.Unlock()
	started <- nil

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		m, wait, ok := l.next()
		if !ok {
			break
		}

		if m != nil {
			l.dispatch(m)
			continue
		}

		if wait < 0 {
			<-l.wake
			continue
		}

		timer.Reset(wait)
		select {
		case <-l.wake:
			timer.Stop()
		case <-timer.C:
		}
	}

	l.exit()
}

// next returns the message to dispatch, if one is due. Otherwise it returns
// how long to wait for the head of the queue, or a negative wait if the
// queue is empty. It returns false once a stop has been requested.
func (l *Looper) next() (*Message, time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.state.IsRunning() {
		return nil, 0, false
	}

	if len(l.queue) == 0 {
		return nil, -1, true
	}

	now := Now()
	head := l.queue.peek()
	if now < head.when {
		return nil, untilDeadline(now, head.when), true
	}

	l.queue.pop()
	l.current = head.msg
	l.metrics.recordDispatch(untilDeadline(head.when, now))

	return head.msg, 0, true
}

// dispatch calls the message's handler, without holding the lock, then frees
// the message.
func (l *Looper) dispatch(m *Message) {
	h := m.Handler

	_, span := l.tracer.Start(context.Background(), "looper.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			l.metrics.name,
			attribute.String("looper.handler", h.name),
			attribute.Int("looper.message.tag", m.Tag),
		),
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("looper: handler panic: %v", r)
				span.RecordError(err)
				span.SetStatus(codes.Error, "handler panic")
				withMessage(l.withLooper(l.logger.Err()), m).
					Err(err).
					Log("looper: recovered panic in handler")
			}
		}()
		h.dispatch(m)
	}()

	span.End()

	l.mu.Lock()
	l.current = nil
	l.mu.Unlock()

	l.free(m)
}

// exit drains the queue once the worker has observed the stop flag, then
// releases the looper's slot and signals completion.
func (l *Looper) exit() {
	l.mu.Lock()
	l.state.Store(StateStopped)
	drained := l.queue.drain()
	l.mu.Unlock()

	l.metrics.recordDequeued(len(drained), false, reasonDrained)
	for _, m := range drained {
		l.free(m)
	}

	releaseSlot()

	l.withLooper(l.logger.Debug()).
		Int("drained", len(drained)).
		Log("looper: stopped")

	close(l.done)
}
