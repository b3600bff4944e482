// Package looper provides named, thread-backed message loops ("loopers"),
// which serialize deferred work ("messages") for callback targets
// ("handlers"), with immediate and delayed scheduling, removal of pending
// work, and cooperative shutdown.
//
// # Architecture
//
// Each [Looper] owns a time-ordered queue and a worker goroutine, locked to
// its own OS thread (named after the looper, on linux). Producers on any
// goroutine call [Looper.Post] or [Looper.PostDelay]; the worker dispatches
// due messages to their [Handler], one at a time, without holding the queue
// lock, so handlers may post to or remove from any looper, including their
// own.
//
// A [Registry] binds well-known roles ([RoleDefault], [RoleLog]) to loopers.
// The package level [Init], [Deinit], [GetLooper] and [SetLooper] functions
// operate on a process-wide registry.
//
// # Ordering
//
//   - Messages dispatch in ascending scheduled time, see [Message.When].
//   - Messages scheduled for the same time dispatch in post order.
//   - No message dispatches before its scheduled time.
//   - A removed message never dispatches; a message whose dispatch has begun
//     cannot be removed.
//
// # Message Lifecycle
//
// Posting a [Message] transfers ownership of it to the looper. Each message
// is freed exactly once: after dispatch, on removal, when a stopped looper
// drains its queue, or immediately if the post is rejected. Freeing calls
// [Message.Destructor] if set, otherwise messages from [Obtain] are
// returned to a pool.
//
// Posting is fire-and-forget: problems such as a stopped looper or a
// message without a handler are logged (see [WithLogger]) and the message
// discarded, but never reported as errors.
//
// # Limits
//
// At most [MaxLoopers] loopers may be live at once, see [SetMaxLoopers].
//
// # Usage
//
//	l, err := looper.New("worker")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Close()
//
//	h, _ := looper.NewHandler(l, "greeter", func(m *looper.Message) {
//	    fmt.Println("hello", m.Obj)
//	})
//
//	m := h.Obtain(1)
//	m.Obj = "world"
//	h.PostDelay(m, 100*time.Millisecond)
package looper
