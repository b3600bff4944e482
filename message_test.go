package looper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObtain_Zeroed(t *testing.T) {
	m := Obtain()
	require.NotNil(t, m)
	assert.Nil(t, m.Obj)
	assert.Nil(t, m.Handler)
	assert.Nil(t, m.Destructor)
	assert.Zero(t, m.Tag)
	assert.Zero(t, m.Arg1)
	assert.Zero(t, m.Arg2)
	assert.Zero(t, m.When())
	assert.True(t, m.pooled)
	assert.True(t, m.markQueued())
}

func TestMessage_FreeResetsPooled(t *testing.T) {
	m := Obtain()
	m.Obj = "payload"
	m.Tag = 7
	m.Arg1 = 1
	m.Arg2 = 2
	m.when = 99
	require.True(t, m.markQueued())

	require.True(t, m.free())
	assert.Nil(t, m.Obj)
	assert.Zero(t, m.Tag)
	assert.Zero(t, m.Arg1)
	assert.Zero(t, m.Arg2)
	assert.Zero(t, m.When())
}

func TestMessage_FreeCallsDestructorOnce(t *testing.T) {
	var calls int
	var got *Message
	m := &Message{Obj: "payload", Destructor: func(m *Message) {
		calls++
		got = m
	}}
	require.True(t, m.markQueued())

	assert.True(t, m.free())
	assert.False(t, m.free())
	assert.Equal(t, 1, calls)
	assert.Same(t, m, got)
	// destructor messages are left alone
	assert.Equal(t, "payload", m.Obj)
}

func TestMessage_MarkQueued(t *testing.T) {
	m := &Message{}
	assert.True(t, m.markQueued())
	assert.False(t, m.markQueued(), "already queued")
	require.True(t, m.free())
	assert.False(t, m.markQueued(), "freed")
}

func TestMessage_UnpooledLiteralFree(t *testing.T) {
	m := &Message{Obj: 1}
	assert.True(t, m.free())
	assert.False(t, m.free())
	assert.Equal(t, 1, m.Obj)
}

func TestMessage_CopyIsDetached(t *testing.T) {
	h := &Handler{name: "h"}
	var destroyed int
	m := &Message{Obj: "x", Handler: h, Arg1: 1, Arg2: 2, Tag: 3, when: 4, Destructor: func(*Message) { destroyed++ }}
	require.True(t, m.markQueued())

	c := m.copy()
	assert.NotSame(t, m, c)
	assert.Equal(t, "x", c.Obj)
	assert.Same(t, h, c.Handler)
	assert.Equal(t, uint64(1), c.Arg1)
	assert.Equal(t, uint64(2), c.Arg2)
	assert.Equal(t, 3, c.Tag)
	assert.Equal(t, int64(4), c.When())

	// copies can be neither posted nor freed
	assert.False(t, c.markQueued())
	assert.False(t, c.free())
	assert.Zero(t, destroyed)
}
