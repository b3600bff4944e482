package looper

import (
	"sync"
	"sync/atomic"
)

const (
	messageIdle uint32 = iota
	messageQueued
	messageFreed
)

// Message is a unit of deferred work, dispatched to Handler on the looper it
// was posted to.
//
// Ownership of a Message transfers to the looper once posted successfully,
// after which it must not be modified. Every message handed to a looper is
// freed exactly once: after dispatch, on removal, when the looper drains its
// queue at shutdown, or immediately if the post is rejected.
type Message struct {
	// Obj is an arbitrary payload, owned by the message.
	Obj any

	// Handler is the dispatch target. Messages without a handler are
	// rejected.
	Handler *Handler

	// Destructor, if set, is called instead of the default free.
	Destructor func(m *Message)

	// Arg1 and Arg2 are opaque payload words.
	Arg1 uint64
	Arg2 uint64

	// when is the scheduled time, in Now microseconds, set when posted.
	when int64

	// Tag categorizes the message, e.g. for Looper.Remove.
	Tag int

	state atomic.Uint32

	// pooled marks messages from Obtain, which are recycled on free.
	pooled bool
}

var messagePool = sync.Pool{New: func() any { return new(Message) }}

// Obtain returns a zeroed Message from a shared pool. Unless it has a
// Destructor, it is returned to the pool once freed, so it must not be
// referenced after posting.
func Obtain() *Message {
	m := messagePool.Get().(*Message)
	m.pooled = true
	m.state.Store(messageIdle)
	return m
}

// When returns the scheduled delivery time, in microseconds on the Now
// clock. It is zero until the message is posted.
func (m *Message) When() int64 {
	return m.when
}

// copy returns a detached copy of m's public fields and schedule, which
// cannot be posted.
func (m *Message) copy() *Message {
	c := &Message{
		Obj:        m.Obj,
		Handler:    m.Handler,
		Destructor: m.Destructor,
		Arg1:       m.Arg1,
		Arg2:       m.Arg2,
		when:       m.when,
		Tag:        m.Tag,
	}
	c.state.Store(messageFreed)
	return c
}

// markQueued claims the message for a queue, failing if it is already queued
// or freed.
func (m *Message) markQueued() bool {
	return m.state.CompareAndSwap(messageIdle, messageQueued)
}

// free releases the message. It reports false, doing nothing, if the
// message was already freed.
func (m *Message) free() bool {
	if m.state.Swap(messageFreed) == messageFreed {
		return false
	}
	if m.Destructor != nil {
		m.Destructor(m)
		return true
	}
	if m.pooled {
		m.Obj = nil
		m.Handler = nil
		m.Arg1 = 0
		m.Arg2 = 0
		m.Tag = 0
		m.when = 0
		messagePool.Put(m)
	}
	return true
}
