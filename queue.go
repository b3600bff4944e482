package looper

import (
	"container/heap"
)

// entry is a queued message, with the sequence number that orders messages
// scheduled for the same time.
type entry struct {
	msg  *Message
	when int64
	seq  uint64
}

// messageQueue is a min-heap of entries, ordered by when, then seq.
type messageQueue []entry

// Implement heap.Interface for messageQueue
func (q messageQueue) Len() int { return len(q) }
func (q messageQueue) Less(i, j int) bool {
	if q[i].when != q[j].when {
		return q[i].when < q[j].when
	}
	return q[i].seq < q[j].seq
}
func (q messageQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *messageQueue) Push(x any) {
	*q = append(*q, x.(entry))
}

func (q *messageQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = entry{}
	*q = old[:n-1]
	return x
}

// push inserts an entry, restoring heap order.
func (q *messageQueue) push(e entry) {
	heap.Push(q, e)
}

// peek returns the earliest entry. The queue must not be empty.
func (q messageQueue) peek() entry {
	return q[0]
}

// pop removes and returns the earliest entry. The queue must not be empty.
func (q *messageQueue) pop() entry {
	return heap.Pop(q).(entry)
}

// detach removes every entry for which match returns true, returning the
// removed messages in dispatch order.
func (q *messageQueue) detach(match func(e *entry) bool) []*Message {
	old := *q
	kept := old[:0]
	var removed []entry
	for i := range old {
		if match(&old[i]) {
			removed = append(removed, old[i])
		} else {
			kept = append(kept, old[i])
		}
	}
	if len(removed) == 0 {
		return nil
	}
	for i := len(kept); i < len(old); i++ {
		old[i] = entry{}
	}
	*q = kept
	heap.Init(q)
	return sortedMessages(removed)
}

// drain empties the queue, returning every message in dispatch order.
func (q *messageQueue) drain() []*Message {
	old := *q
	*q = nil
	if len(old) == 0 {
		return nil
	}
	return sortedMessages(old)
}

// sortedMessages orders entries as they would have been dispatched.
func sortedMessages(entries []entry) []*Message {
	h := messageQueue(entries)
	heap.Init(&h)
	msgs := make([]*Message, 0, len(h))
	for h.Len() != 0 {
		msgs = append(msgs, h.pop().msg)
	}
	return msgs
}
