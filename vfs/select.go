package vfs

import (
	"errors"
	"time"

	"github.com/vfsmux/vfsmux/lib/sem"
	"github.com/vfsmux/vfsmux/vfs/vfscommon"
)

// fdsTriple holds the fd sets handed to one backend's StartSelect.
type fdsTriple struct {
	isset    bool // at least one bit is set in the three sets below
	readfds  FdSet
	writefds FdSet
	errorfds FdSet
}

// selectTick is the wait quantum for the private semaphore. The wait is
// rounded up to it, plus one more, so the call blocks for at least the
// requested timeout.
const selectTick = time.Millisecond

// Select waits until one of the fds in the three sets becomes ready or the
// timeout expires, emulating POSIX select across every involved backend.
//
// Permanent (socket like) fds are delegated as a group to their backend's
// SocketSelect; each other backend gets a StartSelect/EndSelect round over
// its own local fds and signals readiness through the supplied semaphore.
// On return the sets contain the ready global fds and the count of set
// bits is returned. A nil timeout waits forever.
func (v *VFS) Select(nfds int, readfds, writefds, errorfds *FdSet, timeout *time.Duration) (int, error) {
	countOp("select")
	if !v.opt.EnableSelect {
		return -1, failOp("select", ENOSYS)
	}
	Debugf(nil, "select starts with nfds = %d", nfds)
	if nfds > vfscommon.FdsMax || nfds < 0 {
		return -1, failOp("select", EINVAL)
	}

	// Snapshot the mount high-water mark so backends registered while we
	// wait stay invisible to this call. It cannot sit under the fd-table
	// lock for the duration - the wait may be unbounded and registration
	// must not block on it.
	vfsCount := int(v.count.Load())
	triples := make([]fdsTriple, vfsCount)
	driverArgs := make([]any, vfsCount)
	started := make([]bool, vfsCount)

	selSem := SelectSem{}
	var socketSelect func(int, *FdSet, *FdSet, *FdSet, *time.Duration) (int, error)

	for fd := 0; fd < nfds; fd++ {
		v.mu.Lock()
		row := &v.fds[fd]
		isSocket := row.state == fdPermanent
		vfsIndex := int(row.vfsIndex.Load())
		localFd := int(row.localFd.Load())
		if fdIsSet(fd, errorfds) {
			row.pendingSelect = true
		}
		v.mu.Unlock()

		if vfsIndex < 0 {
			continue
		}

		if isSocket {
			if socketSelect == nil &&
				(fdIsSet(fd, readfds) || fdIsSet(fd, writefds) || fdIsSet(fd, errorfds)) {
				// first armed socket fd elects the socket backend
				m := v.mountForIndex(vfsIndex)
				if m != nil && m.ops.Select != nil &&
					m.ops.Select.SocketSelect != nil &&
					m.ops.Select.GetSocketSelectSemaphore != nil {
					socketSelect = m.ops.Select.SocketSelect
					selSem.Sem = m.ops.Select.GetSocketSelectSemaphore()
				}
			}
			continue
		}

		if vfsIndex >= vfsCount {
			continue
		}
		item := &triples[vfsIndex]
		if fdIsSet(fd, readfds) {
			item.isset = true
			item.readfds.Set(localFd)
			readfds.Clr(fd)
			Debugf(nil, "moved fd %d to mount %d readfds as local fd %d", fd, vfsIndex, localFd)
		}
		if fdIsSet(fd, writefds) {
			item.isset = true
			item.writefds.Set(localFd)
			writefds.Clr(fd)
			Debugf(nil, "moved fd %d to mount %d writefds as local fd %d", fd, vfsIndex, localFd)
		}
		if fdIsSet(fd, errorfds) {
			item.isset = true
			item.errorfds.Set(localFd)
			errorfds.Clr(fd)
			Debugf(nil, "moved fd %d to mount %d errorfds as local fd %d", fd, vfsIndex, localFd)
		}
	}

	// All non-socket fds now sit in their per-mount triple; the global
	// sets hold only socket fds.

	if socketSelect == nil {
		// no socket backend involved, use our own signalling
		selSem.Local = true
		selSem.Sem = sem.New(1, 0)
	}

	for i := 0; i < vfsCount; i++ {
		m := v.mountForIndex(i)
		item := &triples[i]
		if !item.isset {
			continue
		}
		if m == nil || m.ops.Select == nil || m.ops.Select.StartSelect == nil {
			Debugf(nil, "mount %d has fds armed but no start_select", i)
			continue
		}
		args, err := m.ops.Select.StartSelect(nfds, &item.readfds, &item.writefds, &item.errorfds, selSem)
		if err != nil {
			if errors.Is(err, ErrNotSupported) {
				// the backend sat this round out; it reports nothing
				item.readfds.Zero()
				item.writefds.Zero()
				item.errorfds.Zero()
				continue
			}
			v.endSelects(driverArgs, started)
			_ = v.mergeFdSets(triples, readfds, writefds, errorfds)
			Debugf(nil, "start_select failed: %v", err)
			return -1, failOp("select", EINTR)
		}
		driverArgs[i] = args
		started[i] = true
	}

	ret := 0
	var selErr error
	if socketSelect != nil {
		Debugf(nil, "delegating socket fds to socket_select")
		ret, selErr = socketSelect(nfds, readfds, writefds, errorfds, timeout)
		Debugf(nil, "socket_select returned %d (%v)", ret, selErr)
	} else {
		if readfds != nil {
			readfds.Zero()
		}
		if writefds != nil {
			writefds.Zero()
		}
		if errorfds != nil {
			errorfds.Zero()
		}
		wait := time.Duration(-1)
		if timeout != nil {
			ticks := (*timeout + selectTick - 1) / selectTick
			wait = (ticks + 1) * selectTick
			Debugf(nil, "waiting on the select semaphore for %v", wait)
		}
		selSem.Sem.Acquire(wait)
	}

	v.endSelects(driverArgs, started)

	if ret >= 0 && selErr == nil {
		ret += v.mergeFdSets(triples, readfds, writefds, errorfds)
	}

	if selSem.Sem != nil {
		if !selSem.Local && socketSelect != nil {
			// The select may have been triggered from both the socket
			// backend and a driver at the same time; take the pending
			// permit so the next call does not wake spuriously.
			selSem.Sem.TryAcquire()
		}
		selSem.Sem = nil
	}

	v.mu.Lock()
	for fd := 0; fd < nfds; fd++ {
		row := &v.fds[fd]
		if row.state == fdTransientClosePending {
			v.clearRowLocked(fd)
		}
		row.pendingSelect = false
	}
	v.mu.Unlock()

	Debugf(nil, "select returns %d (%v)", ret, selErr)
	if selErr != nil {
		return -1, selErr
	}
	return ret, nil
}

// endSelects disarms every backend whose StartSelect succeeded.
func (v *VFS) endSelects(driverArgs []any, started []bool) {
	for i := range started {
		if !started[i] {
			continue
		}
		m := v.mountForIndex(i)
		if m == nil || m.ops.Select == nil || m.ops.Select.EndSelect == nil {
			continue
		}
		if err := m.ops.Select.EndSelect(driverArgs[i]); err != nil {
			Debugf(nil, "end_select failed: %v", err)
		}
	}
}

// mergeFdSets folds the per-mount results back into the global sets,
// translating each backend local fd to its global fd, and returns the
// number of bits added.
func (v *VFS) mergeFdSets(triples []fdsTriple, readfds, writefds, errorfds *FdSet) int {
	ret := 0
	for i := range triples {
		item := &triples[i]
		if !item.isset {
			continue
		}
		for fd := 0; fd < vfscommon.FdsMax; fd++ {
			if int(v.fds[fd].vfsIndex.Load()) != i {
				continue
			}
			localFd := int(v.fds[fd].localFd.Load()) // single read, no locking required
			if readfds != nil && item.readfds.IsSet(localFd) {
				Debugf(nil, "fd %d in readfds was set by mount %d", fd, i)
				readfds.Set(fd)
				ret++
			}
			if writefds != nil && item.writefds.IsSet(localFd) {
				Debugf(nil, "fd %d in writefds was set by mount %d", fd, i)
				writefds.Set(fd)
				ret++
			}
			if errorfds != nil && item.errorfds.IsSet(localFd) {
				Debugf(nil, "fd %d in errorfds was set by mount %d", fd, i)
				errorfds.Set(fd)
				ret++
			}
		}
	}
	return ret
}

// SelectTriggered is called by a backend whose wait condition became
// satisfied. For a dispatcher allocated semaphore it releases a permit;
// otherwise the socket backend owns the wait, so its StopSocketSelect is
// asked to interrupt it.
func (v *VFS) SelectTriggered(s SelectSem) {
	if s.Local {
		s.Sem.Release()
		return
	}
	// Walk the mount table rather than the descriptor table so no lock is
	// needed.
	count := int(v.count.Load())
	for i := 0; i < count; i++ {
		m := v.mounts[i].Load()
		if m != nil && m.ops.Select != nil && m.ops.Select.StopSocketSelect != nil {
			m.ops.Select.StopSocketSelect(s.Sem)
			break
		}
	}
}

// SelectTriggeredISR is the interrupt context variant of SelectTriggered.
// woken, if non-nil, reports whether a waiter was made runnable.
func (v *VFS) SelectTriggeredISR(s SelectSem, woken *bool) {
	if s.Local {
		released := s.Sem.Release()
		if woken != nil {
			*woken = released
		}
		return
	}
	count := int(v.count.Load())
	for i := 0; i < count; i++ {
		m := v.mounts[i].Load()
		if m != nil && m.ops.Select != nil && m.ops.Select.StopSocketSelectISR != nil {
			m.ops.Select.StopSocketSelectISR(s.Sem, woken)
			break
		}
	}
}
