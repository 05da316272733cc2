package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vfsmux/vfsmux/vfs/vfscommon"
)

func TestFdSet(t *testing.T) {
	var s FdSet
	assert.True(t, s.IsZero())

	s.Set(0)
	s.Set(5)
	s.Set(vfscommon.FdsMax - 1)
	assert.True(t, s.IsSet(0))
	assert.True(t, s.IsSet(5))
	assert.True(t, s.IsSet(vfscommon.FdsMax-1))
	assert.False(t, s.IsSet(1))
	assert.False(t, s.IsZero())

	s.Clr(5)
	assert.False(t, s.IsSet(5))

	s.Zero()
	assert.True(t, s.IsZero())
}

func TestFdSetOutOfRange(t *testing.T) {
	var s FdSet
	s.Set(-1)
	s.Set(vfscommon.FdsMax)
	assert.True(t, s.IsZero())
	assert.False(t, s.IsSet(-1))
	assert.False(t, s.IsSet(vfscommon.FdsMax))
	s.Clr(-1) // must not panic
}

func TestFdIsSetNil(t *testing.T) {
	assert.False(t, fdIsSet(3, nil))
	var s FdSet
	s.Set(3)
	assert.True(t, fdIsSet(3, &s))
}
