package vfs

import "github.com/vfsmux/vfsmux/vfs/vfscommon"

const fdSetWords = (vfscommon.FdsMax + 63) / 64

// FdSet is a fixed bitset over the descriptor table, the select analogue of
// the POSIX fd_set. The zero value is the empty set.
type FdSet struct {
	bits [fdSetWords]uint64
}

// Set adds fd to the set. Out of range fds are ignored.
func (s *FdSet) Set(fd int) {
	if fd >= 0 && fd < vfscommon.FdsMax {
		s.bits[fd/64] |= 1 << (uint(fd) % 64)
	}
}

// Clr removes fd from the set. Out of range fds are ignored.
func (s *FdSet) Clr(fd int) {
	if fd >= 0 && fd < vfscommon.FdsMax {
		s.bits[fd/64] &^= 1 << (uint(fd) % 64)
	}
}

// IsSet reports whether fd is in the set.
func (s *FdSet) IsSet(fd int) bool {
	if fd < 0 || fd >= vfscommon.FdsMax {
		return false
	}
	return s.bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

// Zero empties the set.
func (s *FdSet) Zero() {
	s.bits = [fdSetWords]uint64{}
}

// IsZero reports whether no fd is in the set.
func (s *FdSet) IsZero() bool {
	for _, w := range s.bits {
		if w != 0 {
			return false
		}
	}
	return true
}

// fdIsSet is the nil tolerant IsSet used by select, where any of the three
// input sets may be absent.
func fdIsSet(fd int, s *FdSet) bool {
	return s != nil && s.IsSet(fd)
}
