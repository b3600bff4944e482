package looper

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooper_ConcurrentProducers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}

	l := newTestLooper(t, "stress")
	h, rec := newTestHandler(t, l, "h")
	var frees freeCounter

	const (
		producers = 8
		perWorker = 500
	)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				m := frees.message(h, p)
				m.Arg1 = uint64(i)
				var ok bool
				if i%4 == 0 {
					ok = l.PostDelay(m, time.Duration(i%7)*time.Millisecond)
				} else {
					ok = l.Post(m)
				}
				if !ok {
					t.Errorf("producer %d: post %d rejected", p, i)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	records := rec.waitFor(t, producers*perWorker)
	require.Len(t, records, producers*perWorker)

	seen := make(map[int]int)
	for i, r := range records {
		if i > 0 {
			require.GreaterOrEqual(t, r.When, records[i-1].When, "dispatch %d out of time order", i)
		}
		require.GreaterOrEqual(t, r.Dispatched, r.When, "dispatch %d early", i)
		seen[r.Tag]++
	}
	for p := 0; p < producers; p++ {
		assert.Equal(t, perWorker, seen[p], "producer %d", p)
	}

	require.Eventually(t, func() bool { return frees.count() == producers*perWorker }, 5*time.Second, time.Millisecond)
	assert.True(t, l.Idle())
}

func TestLooper_ConcurrentRemoveAndPost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}

	l := newTestLooper(t, "stress-remove")
	h, rec := newTestHandler(t, l, "h")
	var frees freeCounter

	const n = 2000
	var removed int
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			l.PostDelay(frees.message(h, i%2), time.Millisecond)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n/10; i++ {
			removed += h.Remove(1)
		}
	}()
	wg.Wait()
	removed += h.Remove(1)

	require.Eventually(t, func() bool { return len(rec.snapshot())+removed == n }, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return frees.count() == n }, 5*time.Second, time.Millisecond)
	assert.True(t, l.Idle())
}
