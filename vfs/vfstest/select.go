package vfstest

import (
	"sync"
	"time"

	"github.com/vfsmux/vfsmux/lib/sem"
	"github.com/vfsmux/vfsmux/vfs"
)

// Driver is a select capable fake backend in the driver role: it arms
// readiness notification in StartSelect and signals the dispatcher's
// semaphore when told a local fd became ready.
type Driver struct {
	*Backend

	// StartErr, when non-nil, is returned by StartSelect.
	StartErr error

	mu         sync.Mutex
	armed      bool
	readfds    *vfs.FdSet
	writefds   *vfs.FdSet
	errorfds   *vfs.FdSet
	armedRead  vfs.FdSet
	armedWrite vfs.FdSet
	sem        vfs.SelectSem
	endCalls   int
	lastArgs   any
	endedWith  any
}

// NewDriver creates a recording driver backend.
func NewDriver() *Driver {
	return &Driver{Backend: New()}
}

// Ops returns the recorder ops plus the driver select sub-record.
func (d *Driver) Ops() *vfs.Ops {
	ops := d.Backend.Ops()
	ops.Select = &vfs.SelectOps{
		StartSelect: func(nfds int, readfds, writefds, errorfds *vfs.FdSet, s vfs.SelectSem) (any, error) {
			d.record("start_select", nfds)
			if d.StartErr != nil {
				return nil, d.StartErr
			}
			d.mu.Lock()
			d.armed = true
			d.readfds, d.writefds, d.errorfds = readfds, writefds, errorfds
			d.sem = s
			d.lastArgs = d
			// like a real driver: remember what was asked for, then
			// clear the sets and report only fds that become ready
			if readfds != nil {
				d.armedRead = *readfds
				readfds.Zero()
			}
			if writefds != nil {
				d.armedWrite = *writefds
				writefds.Zero()
			}
			if errorfds != nil {
				errorfds.Zero()
			}
			d.mu.Unlock()
			return d, nil
		},
		EndSelect: func(args any) error {
			d.record("end_select")
			d.mu.Lock()
			d.armed = false
			d.endCalls++
			d.endedWith = args
			d.mu.Unlock()
			return nil
		},
	}
	return ops
}

// ReadyRead marks localFd readable, if it was armed, and wakes the waiting
// select through the dispatcher.
func (d *Driver) ReadyRead(v *vfs.VFS, localFd int) {
	d.mu.Lock()
	if d.armed && d.readfds != nil && d.armedRead.IsSet(localFd) {
		d.readfds.Set(localFd)
	}
	s := d.sem
	d.mu.Unlock()
	v.SelectTriggered(s)
}

// ReadyWrite is ReadyRead for the write set.
func (d *Driver) ReadyWrite(v *vfs.VFS, localFd int) {
	d.mu.Lock()
	if d.armed && d.writefds != nil && d.armedWrite.IsSet(localFd) {
		d.writefds.Set(localFd)
	}
	s := d.sem
	d.mu.Unlock()
	v.SelectTriggered(s)
}

// EndCalls returns how many times EndSelect ran.
func (d *Driver) EndCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.endCalls
}

// EndedWith returns the driver args the last EndSelect received.
func (d *Driver) EndedWith() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.endedWith
}

// Armed reports whether a StartSelect is currently outstanding.
func (d *Driver) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Socket is a fake backend in the socket role: its fds are permanent, its
// SocketSelect waits on its own readiness semaphore and other backends
// interrupt it through StopSocketSelect.
type Socket struct {
	*Backend

	sem *sem.Semaphore

	mu        sync.Mutex
	readyRead vfs.FdSet
	stopCalls int
	isrCalls  int
}

// NewSocket creates a recording socket backend.
func NewSocket() *Socket {
	return &Socket{Backend: New(), sem: sem.New(1, 0)}
}

// Ops returns the recorder ops plus the socket select sub-record.
func (s *Socket) Ops() *vfs.Ops {
	ops := s.Backend.Ops()
	ops.Select = &vfs.SelectOps{
		SocketSelect: func(nfds int, readfds, writefds, errorfds *vfs.FdSet, timeout *time.Duration) (int, error) {
			s.record("socket_select", nfds)
			wait := time.Duration(-1)
			if timeout != nil {
				wait = *timeout
			}
			s.sem.Acquire(wait)
			return s.collect(nfds, readfds, writefds, errorfds), nil
		},
		GetSocketSelectSemaphore: func() *sem.Semaphore {
			s.record("get_socket_select_semaphore")
			return s.sem
		},
		StopSocketSelect: func(sm *sem.Semaphore) {
			s.record("stop_socket_select")
			s.mu.Lock()
			s.stopCalls++
			s.mu.Unlock()
			if sm == nil {
				sm = s.sem
			}
			sm.Release()
		},
		StopSocketSelectISR: func(sm *sem.Semaphore, woken *bool) {
			s.record("stop_socket_select_isr")
			s.mu.Lock()
			s.isrCalls++
			s.mu.Unlock()
			if sm == nil {
				sm = s.sem
			}
			released := sm.Release()
			if woken != nil {
				*woken = released
			}
		},
	}
	return ops
}

// collect intersects the ready state with the input sets, rewrites them to
// the ready fds only and returns the POSIX style count.
func (s *Socket) collect(nfds int, readfds, writefds, errorfds *vfs.FdSet) int {
	s.mu.Lock()
	ready := s.readyRead
	s.mu.Unlock()

	count := 0
	if writefds != nil {
		writefds.Zero()
	}
	if errorfds != nil {
		errorfds.Zero()
	}
	if readfds == nil {
		return 0
	}
	out := vfs.FdSet{}
	for fd := 0; fd < nfds; fd++ {
		if readfds.IsSet(fd) && ready.IsSet(fd) {
			out.Set(fd)
			count++
		}
	}
	*readfds = out
	return count
}

// MarkReadable flags fd as readable and wakes a waiting SocketSelect.
func (s *Socket) MarkReadable(fd int) {
	s.mu.Lock()
	s.readyRead.Set(fd)
	s.mu.Unlock()
	s.sem.Release()
}

// StopCalls returns how many times StopSocketSelect ran.
func (s *Socket) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

// ISRCalls returns how many times StopSocketSelectISR ran.
func (s *Socket) ISRCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isrCalls
}
