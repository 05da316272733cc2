// Package vfs multiplexes POSIX style file I/O over pluggable filesystem
// backends selected by path prefix.
//
// Backends register an operation set under a prefix such as "/data" or
// "/dev"; application code then works with one uniform descriptor space
// through Open, Read, Write, the directory ops and Select. The dispatcher
// keeps a fixed size mount table and a fixed size descriptor table mapping
// each global fd onto (backend, backend local fd).
package vfs

import (
	"sync"
	"sync/atomic"

	"github.com/vfsmux/vfsmux/vfs/vfscommon"
)

// prefixLenIgnored marks a mount that takes no part in path resolution; it
// services only descriptors claimed through the fd registration APIs.
const prefixLenIgnored = -1

// mount is one registered backend.
type mount struct {
	prefix    string
	prefixLen int // len(prefix), or prefixLenIgnored
	flags     atomic.Int32
	ops       *Ops
	ctx       any
	index     int // self index into the mount table, stable until unregister
}

// Flags returns the mount flags. SetReadonlyFlag may add bits after
// registration so reads go through an atomic.
func (m *mount) Flags() Flags {
	return Flags(m.flags.Load())
}

func (m *mount) useCtx() bool {
	return m.Flags()&FlagContextPtr != 0
}

// fdState is the lifecycle of one descriptor row. Transitions happen only
// under the fd-table lock.
type fdState uint8

const (
	fdUnused fdState = iota
	fdTransient
	fdPermanent
	// fdTransientClosePending is a transient row that was closed while a
	// select call was waiting on it; the owning select frees it.
	fdTransientClosePending
)

// fdRow is one descriptor table row. vfsIndex and localFd are atomics so
// the hot dispatch path can read them without taking the lock; they are
// only written under the lock, and unregistration clears the mount slot and
// then resets them under the lock.
type fdRow struct {
	vfsIndex      atomic.Int32 // -1 when unused
	localFd       atomic.Int32
	state         fdState // guarded by VFS.mu
	pendingSelect bool    // guarded by VFS.mu
}

// VFS is a dispatcher instance: one mount table, one descriptor table and
// the lock guarding descriptor mutation. The zero value is not usable; call
// New.
type VFS struct {
	opt    vfscommon.Options
	mu     sync.Mutex // the fd-table lock
	mounts [vfscommon.MaxCount]atomic.Pointer[mount]
	count  atomic.Int32 // high-water mark of ever used mount slots
	fds    [vfscommon.FdsMax]fdRow
}

// New creates a dispatcher. A nil opt uses vfscommon.DefaultOpt.
func New(opt *vfscommon.Options) *VFS {
	if opt == nil {
		o := vfscommon.DefaultOpt
		opt = &o
	}
	v := &VFS{opt: *opt}
	for i := range v.fds {
		v.fds[i].vfsIndex.Store(-1)
		v.fds[i].localFd.Store(-1)
	}
	return v
}

// clearRowLocked resets a descriptor row to unused. Call with mu held.
func (v *VFS) clearRowLocked(fd int) {
	row := &v.fds[fd]
	row.state = fdUnused
	row.pendingSelect = false
	row.vfsIndex.Store(-1)
	row.localFd.Store(-1)
}

func fdValid(fd int) bool {
	return fd >= 0 && fd < vfscommon.FdsMax
}

// mountForIndex returns the mount registered at index, or nil.
func (v *VFS) mountForIndex(index int) *mount {
	if index < 0 || index >= int(v.count.Load()) {
		return nil
	}
	return v.mounts[index].Load()
}

// mountForFd resolves a global fd to its mount and backend local fd.
// The two row columns are single atomic reads so no locking is required.
func (v *VFS) mountForFd(fd int) (*mount, int) {
	if !fdValid(fd) {
		return nil, -1
	}
	m := v.mountForIndex(int(v.fds[fd].vfsIndex.Load()))
	if m == nil {
		return nil, -1
	}
	return m, int(v.fds[fd].localFd.Load())
}
