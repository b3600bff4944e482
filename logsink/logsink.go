// Package logsink moves log output onto a looper, normally the one
// registered for [looper.RoleLog], so that producers never block on the
// underlying writer.
package logsink

import (
	"io"
	"sync"

	"github.com/joeycumines/go-looper"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Writer is an io.Writer that performs each write on a looper, in order.
//
// Writes still queued when the looper stops are performed as the looper
// drains its queue, and writes made after it stops are performed
// synchronously, so output is never lost.
type Writer struct {
	out     io.Writer
	looper  *looper.Looper
	handler *looper.Handler
	mu      sync.Mutex
}

// New returns a Writer that writes to out on l.
func New(l *looper.Looper, out io.Writer) (*Writer, error) {
	if out == nil {
		return nil, looper.ErrInvalidParameter
	}
	w := &Writer{
		out:    out,
		looper: l,
	}
	h, err := looper.NewHandler(l, "logsink", w.dispatch)
	if err != nil {
		return nil, err
	}
	w.handler = h
	return w, nil
}

// FromRegistry returns a Writer on the looper registered for
// looper.RoleLog, in the default registry.
func FromRegistry(out io.Writer) (*Writer, error) {
	return New(looper.GetLooper(looper.RoleLog), out)
}

// Looper returns the looper the writer performs writes on.
func (w *Writer) Looper() *looper.Looper { return w.looper }

// Write copies p, then queues it to be written. It always reports success
// for the full length of p, unless the looper has stopped, in which case
// the result of writing synchronously is returned.
func (w *Writer) Write(p []byte) (int, error) {
	var (
		n   int
		err error
	)
	m := w.handler.Obtain(0)
	m.Obj = append([]byte(nil), p...)
	// a rejected post frees m before returning, writing it synchronously
	m.Destructor = func(m *looper.Message) { n, err = w.writeUnsent(m) }
	if w.handler.Post(m) {
		return len(p), nil
	}
	return n, err
}

// writeUnsent performs a write that was never dispatched, i.e. rejected or
// drained at shutdown.
func (w *Writer) writeUnsent(m *looper.Message) (int, error) {
	b, ok := m.Obj.([]byte)
	if !ok || b == nil {
		return 0, nil
	}
	m.Obj = nil
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Write(b)
}

// Flush blocks until every write queued before it has been performed, or
// the looper stops. It must not be called from the looper's own thread.
func (w *Writer) Flush() {
	done := make(chan struct{})
	m := w.handler.Obtain(flushTag)
	m.Obj = done
	if !w.handler.Post(m) {
		return
	}
	select {
	case <-done:
	case <-w.looper.Done():
	}
}

const flushTag = 1

func (w *Writer) dispatch(m *looper.Message) {
	switch v := m.Obj.(type) {
	case []byte:
		w.mu.Lock()
		_, _ = w.out.Write(v)
		w.mu.Unlock()
		m.Obj = nil
	case chan struct{}:
		if m.Tag == flushTag {
			close(v)
		}
	}
}

// NewLogger returns a JSON logger, which writes through w. Additional
// options are applied after those configuring the output.
func NewLogger(w *Writer, options ...logiface.Option[*stumpy.Event]) *logiface.Logger[*stumpy.Event] {
	return stumpy.L.New(append([]logiface.Option[*stumpy.Event]{
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
	}, options...)...)
}
