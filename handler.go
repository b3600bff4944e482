package looper

import (
	"time"
)

// Handler is a named dispatch target, bound to one Looper for its lifetime.
//
// Handlers are owned by whoever creates them, the looper only references
// them via queued messages.
type Handler struct {
	looper   *Looper
	dispatch func(m *Message)
	name     string
}

// NewHandler creates a handler bound to l, which calls dispatch, on l's
// thread, for each message delivered to it.
func NewHandler(l *Looper, name string, dispatch func(m *Message)) (*Handler, error) {
	if l == nil {
		return nil, wrapError(ErrInvalidParameter, "nil looper")
	}
	if dispatch == nil {
		return nil, wrapError(ErrInvalidParameter, "nil dispatch func")
	}
	return &Handler{
		looper:   l,
		dispatch: dispatch,
		name:     name,
	}, nil
}

// Name returns the diagnostic name of the handler.
func (h *Handler) Name() string { return h.name }

// Looper returns the looper the handler is bound to.
func (h *Handler) Looper() *Looper { return h.looper }

// Obtain returns a pooled message targeting h, with the given tag.
func (h *Handler) Obtain(tag int) *Message {
	m := Obtain()
	m.Handler = h
	m.Tag = tag
	return m
}

// Post sets m's handler to h, then posts it to h's looper. A message that
// is already queued keeps its handler, and is rejected. See Looper.Post.
func (h *Handler) Post(m *Message) bool {
	h.claim(m)
	return h.looper.Post(m)
}

// PostDelay is like Post, but see Looper.PostDelay.
func (h *Handler) PostDelay(m *Message, delay time.Duration) bool {
	h.claim(m)
	return h.looper.PostDelay(m, delay)
}

// claim targets m at h, unless m is owned by a looper.
func (h *Handler) claim(m *Message) {
	if m != nil && m.state.Load() == messageIdle {
		m.Handler = h
	}
}

// Remove is an alias of Looper.Remove, on h's looper.
func (h *Handler) Remove(tag int) int { return h.looper.Remove(h, tag) }

// RemoveFunc is an alias of Looper.RemoveFunc, on h's looper.
func (h *Handler) RemoveFunc(match func(m *Message) bool) int {
	return h.looper.RemoveFunc(h, match)
}

// RemoveAll is an alias of Looper.RemoveAll, on h's looper.
func (h *Handler) RemoveAll() int { return h.looper.RemoveAll(h) }

// Has is an alias of Looper.Has, on h's looper.
func (h *Handler) Has(tag int) bool { return h.looper.Has(h, tag) }
