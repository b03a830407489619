package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpusBuffer_FIFOAndEOS(t *testing.T) {
	ob := newOpusBuffer(4)
	require.True(t, ob.Push([]byte{1}))
	require.True(t, ob.Push([]byte{2}))
	ob.MarkEOS()
	assert.False(t, ob.Push([]byte{3}), "no pushes after end of stream")

	p, ok := ob.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte{1}, p)
	p, ok = ob.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte{2}, p)
	_, ok = ob.Pop()
	assert.False(t, ok)
}

func TestOpusBuffer_PushBlocksWhileFull(t *testing.T) {
	ob := newOpusBuffer(1)
	require.True(t, ob.Push([]byte{1}))

	pushed := make(chan bool)
	go func() { pushed <- ob.Push([]byte{2}) }()

	select {
	case <-pushed:
		t.Fatal("push on a full buffer returned early")
	case <-time.After(50 * time.Millisecond):
	}

	p, ok := ob.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte{1}, p)
	assert.True(t, <-pushed)
	assert.Equal(t, 1, ob.BufferedCount())
}

func TestOpusBuffer_CloseWakesWaiters(t *testing.T) {
	ob := newOpusBuffer(2)
	done := make(chan bool)
	go func() {
		_, ok := ob.Pop()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	ob.Close()
	assert.False(t, <-done)
}
