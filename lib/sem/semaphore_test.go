package sem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	s := New(1, 0)

	assert.False(t, s.TryAcquire())
	assert.True(t, s.Release())
	assert.True(t, s.TryAcquire())
	assert.False(t, s.TryAcquire())
}

func TestReleaseBounded(t *testing.T) {
	s := New(1, 0)

	assert.True(t, s.Release())
	// already full - extra releases are dropped
	assert.False(t, s.Release())
	assert.False(t, s.Release())

	assert.True(t, s.TryAcquire())
	assert.False(t, s.TryAcquire())
}

func TestAcquireTimeout(t *testing.T) {
	s := New(1, 0)

	start := time.Now()
	ok := s.Acquire(10 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestAcquireWakes(t *testing.T) {
	s := New(1, 0)

	done := make(chan bool)
	go func() {
		done <- s.Acquire(5 * time.Second)
	}()
	time.Sleep(time.Millisecond)
	s.Release()
	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestAcquireForever(t *testing.T) {
	s := New(2, 2)
	require.True(t, s.Acquire(-1))
	require.True(t, s.Acquire(-1))
	assert.False(t, s.TryAcquire())
}

func TestNewBadCounts(t *testing.T) {
	assert.Panics(t, func() { New(0, 0) })
	assert.Panics(t, func() { New(1, 2) })
	assert.Panics(t, func() { New(1, -1) })
}
