package vfs

import (
	"errors"

	"github.com/vfsmux/vfsmux/vfs/vfscommon"
)

// ErrInvalidState is returned when an unregister call names a prefix or
// index that is not registered, or when a registration loses the race for
// its chosen slot.
var ErrInvalidState = errors.New("invalid state")

// registerCommon validates the prefix, claims the lowest free mount slot
// and publishes the entry. The slot pointer is written last so a non-nil
// read always observes a fully initialised mount.
func (v *VFS) registerCommon(prefix string, prefixLen int, ops *Ops, ctx any, flags Flags) (int, error) {
	if ops == nil {
		Errorf(nil, "ops is nil")
		return -1, EINVAL
	}
	if prefixLen != prefixLenIgnored {
		// the empty prefix is allowed (fallback mount), "/" is not
		if prefixLen == 1 || prefixLen > vfscommon.PathMax {
			return -1, EINVAL
		}
		// a prefix has to start with "/" and not end with "/"
		if prefixLen >= 2 && (prefix[0] != '/' || prefix[prefixLen-1] == '/') {
			return -1, EINVAL
		}
	} else {
		prefix = ""
	}

	if flags&FlagStatic == 0 {
		ops = ops.clone()
	}

	index := -1
	for i := range v.mounts {
		if v.mounts[i].Load() == nil {
			index = i
			break
		}
	}
	if index < 0 {
		return -1, ENOMEM
	}

	m := &mount{
		prefix:    prefix,
		prefixLen: prefixLen,
		ops:       ops,
		ctx:       ctx,
		index:     index,
	}
	m.flags.Store(int32(flags))

	if !v.mounts[index].CompareAndSwap(nil, m) {
		return -1, ErrInvalidState
	}
	for {
		count := v.count.Load()
		if int32(index) != count || v.count.CompareAndSwap(count, count+1) {
			break
		}
	}
	Debugf(nil, "registered %q as mount %d", prefix, index)
	return index, nil
}

// Register adds a backend under a path prefix. The operation set is deep
// copied unless FlagStatic is given. It returns the mount index.
func (v *VFS) Register(prefix string, ops *Ops, ctx any, flags Flags) (int, error) {
	return v.registerCommon(prefix, len(prefix), ops, ctx, flags)
}

// RegisterWithID adds a backend that takes no part in path resolution.
// Descriptors are attached to it later with RegisterFd.
func (v *VFS) RegisterWithID(ops *Ops, ctx any) (int, error) {
	return v.registerCommon("", prefixLenIgnored, ops, ctx, FlagDefault)
}

// RegisterFdRange adds a backend without a path prefix and claims the
// descriptor rows [minFd, maxFd) as permanent, with each local fd equal to
// the global fd. If any row in the range is already in use the whole
// registration is rolled back.
func (v *VFS) RegisterFdRange(ops *Ops, ctx any, minFd, maxFd int) error {
	if minFd < 0 || maxFd < 0 || minFd > vfscommon.FdsMax || maxFd > vfscommon.FdsMax || minFd > maxFd {
		Debugf(nil, "invalid arguments: RegisterFdRange(%d, %d)", minFd, maxFd)
		return EINVAL
	}

	index, err := v.registerCommon("", prefixLenIgnored, ops, ctx, FlagDefault)
	if err != nil {
		return err
	}

	v.mu.Lock()
	for fd := minFd; fd < maxFd; fd++ {
		if v.fds[fd].vfsIndex.Load() != -1 {
			v.mounts[index].Store(nil)
			for j := minFd; j < fd; j++ {
				if int(v.fds[j].vfsIndex.Load()) == index {
					v.clearRowLocked(j)
				}
			}
			v.mu.Unlock()
			Debugf(nil, "RegisterFdRange cannot claim fd %d (used by another mount)", fd)
			return EINVAL
		}
		row := &v.fds[fd]
		row.state = fdPermanent
		row.vfsIndex.Store(int32(index))
		row.localFd.Store(int32(fd))
	}
	v.mu.Unlock()

	Logf(nil, "RegisterFdRange claimed <%d; %d) for mount %d", minFd, maxFd, index)
	return nil
}

// RegisterFd claims the lowest unused descriptor row for the mount at
// index, permanent, with the local fd equal to the global fd.
func (v *VFS) RegisterFd(index int) (int, error) {
	return v.RegisterFdWithLocalFd(index, -1, true)
}

// RegisterFdWithLocalFd claims the lowest unused descriptor row for the
// mount at index. A negative localFd means "use the global fd". It returns
// the global fd, or ENOMEM when the table is full.
func (v *VFS) RegisterFdWithLocalFd(index, localFd int, permanent bool) (int, error) {
	if index < 0 || index >= int(v.count.Load()) {
		Debugf(nil, "invalid arguments for RegisterFdWithLocalFd(%d, %d, %v)", index, localFd, permanent)
		return -1, EINVAL
	}

	fd, err := -1, error(ENOMEM)
	v.mu.Lock()
	for i := range v.fds {
		if v.fds[i].vfsIndex.Load() != -1 {
			continue
		}
		row := &v.fds[i]
		if permanent {
			row.state = fdPermanent
		} else {
			row.state = fdTransient
		}
		row.vfsIndex.Store(int32(index))
		if localFd >= 0 {
			row.localFd.Store(int32(localFd))
		} else {
			row.localFd.Store(int32(i))
		}
		fd, err = i, nil
		break
	}
	v.mu.Unlock()

	Debugf(nil, "RegisterFdWithLocalFd(%d, %d, %v) finished with fd %d (%v)", index, localFd, permanent, fd, err)
	return fd, err
}

// UnregisterFd releases a permanent descriptor row previously claimed for
// the mount at index.
func (v *VFS) UnregisterFd(index, fd int) error {
	if index < 0 || index >= int(v.count.Load()) || !fdValid(fd) {
		Debugf(nil, "invalid arguments for UnregisterFd(%d, %d)", index, fd)
		return EINVAL
	}

	err := error(EINVAL)
	v.mu.Lock()
	row := &v.fds[fd]
	if row.state == fdPermanent && int(row.vfsIndex.Load()) == index && int(row.localFd.Load()) == fd {
		v.clearRowLocked(fd)
		err = nil
	}
	v.mu.Unlock()

	Debugf(nil, "UnregisterFd(%d, %d) finished (%v)", index, fd, err)
	return err
}

// UnregisterWithID removes the mount at index and resets every descriptor
// row that referenced it.
func (v *VFS) UnregisterWithID(index int) error {
	if index < 0 || index >= vfscommon.MaxCount || v.mounts[index].Load() == nil {
		return ErrInvalidState
	}
	v.mounts[index].Store(nil)

	v.mu.Lock()
	for fd := range v.fds {
		if int(v.fds[fd].vfsIndex.Load()) == index {
			v.clearRowLocked(fd)
		}
	}
	v.mu.Unlock()

	Debugf(nil, "unregistered mount %d", index)
	return nil
}

// Unregister removes the mount registered under exactly this prefix.
func (v *VFS) Unregister(prefix string) error {
	count := int(v.count.Load())
	for i := 0; i < count; i++ {
		m := v.mounts[i].Load()
		if m == nil {
			continue
		}
		if m.prefixLen == len(prefix) && m.prefix == prefix {
			return v.UnregisterWithID(i)
		}
	}
	return ErrInvalidState
}

// SetReadonlyFlag adds FlagReadOnlyFS to the mount registered under exactly
// this prefix. It is meant for mount helpers which no longer have the
// registration flags at hand.
func (v *VFS) SetReadonlyFlag(prefix string) error {
	count := int(v.count.Load())
	for i := 0; i < count; i++ {
		m := v.mounts[i].Load()
		if m == nil {
			continue
		}
		if m.prefixLen == len(prefix) && m.prefix == prefix {
			for {
				old := m.flags.Load()
				if m.flags.CompareAndSwap(old, old|int32(FlagReadOnlyFS)) {
					return nil
				}
			}
		}
	}
	return ErrInvalidState
}
