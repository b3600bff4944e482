package looper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setMaxLoopers sets the limit for the duration of the test.
func setMaxLoopers(t *testing.T, n int) {
	t.Helper()
	prev, err := SetMaxLoopers(n)
	require.NoError(t, err)
	t.Cleanup(func() {
		if _, err := SetMaxLoopers(prev); err != nil {
			t.Error(err)
		}
	})
}

func TestSetMaxLoopers_Invalid(t *testing.T) {
	before := MaxLoopers()
	for _, n := range []int{0, -1} {
		prev, err := SetMaxLoopers(n)
		assert.ErrorIs(t, err, ErrInvalidParameter)
		assert.Zero(t, prev)
	}
	assert.Equal(t, before, MaxLoopers())
}

func TestSetMaxLoopers_ReturnsPrevious(t *testing.T) {
	setMaxLoopers(t, 17)
	prev, err := SetMaxLoopers(18)
	require.NoError(t, err)
	assert.Equal(t, 17, prev)
	assert.Equal(t, 18, MaxLoopers())
}

func TestDefaultMaxLoopers(t *testing.T) {
	assert.Equal(t, 30, DefaultMaxLoopers)
}

func TestNew_CapacityExceeded(t *testing.T) {
	base := LiveLoopers()
	setMaxLoopers(t, base+2)

	a := newTestLooper(t, "cap-a")
	newTestLooper(t, "cap-b")
	require.Equal(t, base+2, LiveLoopers())

	var buf syncBuffer
	l, err := New("cap-c", WithLogger(newTestLogger(&buf)))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Nil(t, l)
	assert.Equal(t, base+2, LiveLoopers())
	assert.Contains(t, buf.String(), `"msg":"looper: create failed"`)

	// existing loopers are unaffected
	h, rec := newTestHandler(t, a, "h")
	require.True(t, h.Post(h.Obtain(1)))
	rec.waitFor(t, 1)

	// capacity returns once a looper stops
	require.NoError(t, a.Close())
	assert.Equal(t, base+1, LiveLoopers())
	newTestLooper(t, "cap-d")
}

func TestSetMaxLoopers_BelowLive(t *testing.T) {
	base := LiveLoopers()
	a := newTestLooper(t, "below-a")
	setMaxLoopers(t, base+1)
	setMaxLoopers(t, 1)
	_, err := New("below-b")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, StateRunning, a.State())
	assert.Equal(t, base+1, LiveLoopers())
}
