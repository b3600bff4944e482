package looper

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// newTestLooper creates a looper that is closed when the test ends.
func newTestLooper(t *testing.T, name string, opts ...Option) *Looper {
	t.Helper()
	l, err := New(name, opts...)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", name, err)
	}
	t.Cleanup(func() {
		if err := l.Close(); err != nil {
			t.Errorf("Close(%q) failed: %v", name, err)
		}
	})
	return l
}

// dispatchRecord captures a single dispatch.
type dispatchRecord struct {
	Tag        int
	Arg1       uint64
	When       int64
	Dispatched int64
}

// recorder is a handler callback that records dispatches.
type recorder struct {
	onDispatch func(m *Message)
	records    []dispatchRecord
	notify     chan struct{}
	mu         sync.Mutex
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 1)}
}

func (r *recorder) dispatch(m *Message) {
	rec := dispatchRecord{
		Tag:        m.Tag,
		Arg1:       m.Arg1,
		When:       m.When(),
		Dispatched: Now(),
	}
	if r.onDispatch != nil {
		r.onDispatch(m)
	}
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder) snapshot() []dispatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatchRecord(nil), r.records...)
}

func (r *recorder) tags() []int {
	var tags []int
	for _, rec := range r.snapshot() {
		tags = append(tags, rec.Tag)
	}
	return tags
}

// waitFor blocks until at least n dispatches have been recorded.
func (r *recorder) waitFor(t *testing.T, n int) []dispatchRecord {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if records := r.snapshot(); len(records) >= n {
			return records
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d dispatches, got %d", n, len(r.snapshot()))
		}
	}
}

// newTestHandler creates a handler recording to a new recorder.
func newTestHandler(t *testing.T, l *Looper, name string) (*Handler, *recorder) {
	t.Helper()
	r := newRecorder()
	h, err := NewHandler(l, name, r.dispatch)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	return h, r
}

// freeCounter counts destructor calls, for allocation parity checks.
type freeCounter struct {
	n atomic.Int64
}

func (c *freeCounter) message(h *Handler, tag int) *Message {
	return &Message{
		Handler:    h,
		Tag:        tag,
		Destructor: func(*Message) { c.n.Add(1) },
	}
}

func (c *freeCounter) count() int { return int(c.n.Load()) }

// blockLooper occupies the worker with an in-flight message until the
// returned func is called.
func blockLooper(t *testing.T, l *Looper) (release func()) {
	t.Helper()
	entered := make(chan struct{})
	unblock := make(chan struct{})
	h, err := NewHandler(l, "blocker", func(*Message) {
		close(entered)
		<-unblock
	})
	if err != nil {
		t.Fatal(err)
	}
	if !l.Post(&Message{Handler: h}) {
		t.Fatal("failed to post blocker")
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for blocker")
	}
	var once sync.Once
	release = func() { once.Do(func() { close(unblock) }) }
	t.Cleanup(release)
	return release
}

// syncBuffer is a bytes.Buffer safe for concurrent writes.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newTestLogger returns a JSON logger, at debug level, writing to buf.
func newTestLogger(buf *syncBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(buf)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
}
