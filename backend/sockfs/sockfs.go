// Package sockfs provides an in-process socket backend. Its descriptors
// are permanent rows claimed at creation, and a select call involving them
// is delegated to SocketSelect, the way a network stack integrates with
// the dispatcher.
package sockfs

import (
	"sync"
	"time"

	"github.com/vfsmux/vfsmux/lib/sem"
	"github.com/vfsmux/vfsmux/vfs"
)

// socket is one endpoint of a connected pair. Data written here lands in
// the peer's buffer.
type socket struct {
	peer   *socket
	buf    []byte
	closed bool
}

// SockFS is the socket namespace. It has no path prefix; sockets come from
// Pair and are addressed purely by fd.
type SockFS struct {
	v     *vfs.VFS
	index int

	mu    sync.Mutex
	socks map[int]*socket // keyed by fd (local == global for permanent rows)

	readySem *sem.Semaphore
}

// Mount registers a socket backend on v.
func Mount(v *vfs.VFS) (*SockFS, error) {
	s := &SockFS{
		v:        v,
		socks:    map[int]*socket{},
		readySem: sem.New(1, 0),
	}
	index, err := v.RegisterWithID(s.ops(), nil)
	if err != nil {
		return nil, err
	}
	s.index = index
	return s, nil
}

// Pair creates a connected socket pair and returns the two fds.
func (s *SockFS) Pair() (int, int, error) {
	fd1, err := s.v.RegisterFd(s.index)
	if err != nil {
		return -1, -1, err
	}
	fd2, err := s.v.RegisterFd(s.index)
	if err != nil {
		_ = s.v.UnregisterFd(s.index, fd1)
		return -1, -1, err
	}
	a := &socket{}
	b := &socket{}
	a.peer, b.peer = b, a
	s.mu.Lock()
	s.socks[fd1] = a
	s.socks[fd2] = b
	s.mu.Unlock()
	return fd1, fd2, nil
}

// CloseSocket tears one endpoint down and releases its descriptor row.
func (s *SockFS) CloseSocket(fd int) error {
	s.mu.Lock()
	sock, ok := s.socks[fd]
	if !ok {
		s.mu.Unlock()
		return vfs.EBADF
	}
	sock.closed = true
	if sock.peer != nil {
		sock.peer.closed = true
	}
	delete(s.socks, fd)
	s.mu.Unlock()
	s.readySem.Release() // peers blocked in select must re-check
	return s.v.UnregisterFd(s.index, fd)
}

func (s *SockFS) socket(fd int) (*socket, error) {
	sock, ok := s.socks[fd]
	if !ok {
		return nil, vfs.EBADF
	}
	return sock, nil
}

func (s *SockFS) read(fd int, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sock, err := s.socket(fd)
	if err != nil {
		return -1, err
	}
	if len(sock.buf) == 0 {
		if sock.closed {
			return 0, nil // orderly shutdown
		}
		return 0, vfs.EAGAIN
	}
	n := copy(p, sock.buf)
	sock.buf = sock.buf[n:]
	return n, nil
}

func (s *SockFS) write(fd int, p []byte) (int, error) {
	s.mu.Lock()
	sock, err := s.socket(fd)
	if err != nil {
		s.mu.Unlock()
		return -1, err
	}
	if sock.closed || sock.peer == nil {
		s.mu.Unlock()
		return -1, vfs.EBADF
	}
	sock.peer.buf = append(sock.peer.buf, p...)
	s.mu.Unlock()
	s.readySem.Release() // data arrived for the peer
	return len(p), nil
}

func (s *SockFS) close(fd int) error {
	// the descriptor row is permanent; tearing the socket down is
	// CloseSocket's job
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.socket(fd)
	return err
}

func (s *SockFS) fstat(fd int) (vfs.Stat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.socket(fd); err != nil {
		return vfs.Stat{}, err
	}
	return vfs.Stat{Mode: 0}, nil
}

// readable reports whether a read on fd would make progress. Call with mu
// held.
func (s *SockFS) readable(fd int) bool {
	sock, ok := s.socks[fd]
	if !ok {
		return false
	}
	return len(sock.buf) > 0 || sock.closed
}

// collect rewrites the sets to the fds ready right now and returns the
// count. Writes are always possible on an in-process pair.
func (s *SockFS) collect(nfds int, readfds, writefds, errorfds *vfs.FdSet) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	var rout, wout vfs.FdSet
	for fd := 0; fd < nfds; fd++ {
		if readfds != nil && readfds.IsSet(fd) && s.readable(fd) {
			rout.Set(fd)
			count++
		}
		if writefds != nil && writefds.IsSet(fd) {
			if sock, ok := s.socks[fd]; ok && !sock.closed {
				wout.Set(fd)
				count++
			}
		}
	}
	if readfds != nil {
		*readfds = rout
	}
	if writefds != nil {
		*writefds = wout
	}
	if errorfds != nil {
		errorfds.Zero()
	}
	return count
}

// socketSelect waits until one of the requested sockets is ready, another
// backend interrupts us through StopSocketSelect, or the timeout expires.
func (s *SockFS) socketSelect(nfds int, readfds, writefds, errorfds *vfs.FdSet, timeout *time.Duration) (int, error) {
	var rin, win vfs.FdSet
	if readfds != nil {
		rin = *readfds
	}
	if writefds != nil {
		win = *writefds
	}

	r, w := rin, win
	var rp, wp *vfs.FdSet
	if readfds != nil {
		rp = &r
	}
	if writefds != nil {
		wp = &w
	}
	if n := s.collect(nfds, rp, wp, errorfds); n > 0 {
		if readfds != nil {
			*readfds = r
		}
		if writefds != nil {
			*writefds = w
		}
		return n, nil
	}

	wait := time.Duration(-1)
	if timeout != nil {
		wait = *timeout
	}
	if !s.readySem.Acquire(wait) {
		// timed out, nothing ready
		if readfds != nil {
			readfds.Zero()
		}
		if writefds != nil {
			writefds.Zero()
		}
		if errorfds != nil {
			errorfds.Zero()
		}
		return 0, nil
	}

	// woken: either a socket became ready or a driver level backend has
	// results - report the current socket state either way
	r, w = rin, win
	n := s.collect(nfds, rp, wp, errorfds)
	if readfds != nil {
		*readfds = r
	}
	if writefds != nil {
		*writefds = w
	}
	return n, nil
}

func (s *SockFS) ops() *vfs.Ops {
	return &vfs.Ops{
		Read:  s.read,
		Write: s.write,
		Close: s.close,
		Fstat: s.fstat,
		Select: &vfs.SelectOps{
			SocketSelect: s.socketSelect,
			GetSocketSelectSemaphore: func() *sem.Semaphore {
				return s.readySem
			},
			StopSocketSelect: func(sm *sem.Semaphore) {
				sm.Release()
			},
			StopSocketSelectISR: func(sm *sem.Semaphore, woken *bool) {
				released := sm.Release()
				if woken != nil {
					*woken = released
				}
			},
		},
	}
}
