package vfs

import "os"

// Open opens path on the mount that resolves it and returns a global fd.
//
// The backend fd is recorded in the lowest unused descriptor row; if the
// table is full the backend fd is closed again (best effort) and ENOMEM is
// returned.
func (v *VFS) Open(path string, flags int, mode os.FileMode) (int, error) {
	countOp("open")
	if !v.opt.EnableIO {
		return -1, failOp("open", ENOSYS)
	}
	m := v.mountForPath(path)
	if m == nil {
		return -1, failOp("open", ENOENT)
	}
	if flags&accModeMask != os.O_RDONLY && m.Flags()&FlagReadOnlyFS != 0 {
		return -1, failOp("open", EROFS)
	}
	sub := translatePath(m, path)

	var backendFd int
	var err error
	if m.useCtx() {
		if op := m.ops.OpenCtx; op != nil {
			backendFd, err = op(m.ctx, sub, flags, mode)
		} else {
			return -1, failOp("open", ENOSYS)
		}
	} else if op := m.ops.Open; op != nil {
		backendFd, err = op(sub, flags, mode)
	} else {
		return -1, failOp("open", ENOSYS)
	}
	if err != nil || backendFd < 0 {
		return -1, err
	}

	v.mu.Lock()
	for fd := range v.fds {
		if v.fds[fd].vfsIndex.Load() != -1 {
			continue
		}
		row := &v.fds[fd]
		row.state = fdTransient
		row.vfsIndex.Store(int32(m.index))
		row.localFd.Store(int32(backendFd))
		v.mu.Unlock()
		return fd, nil
	}
	v.mu.Unlock()

	// descriptor table full - give the backend fd back, best effort
	if m.useCtx() {
		if op := m.ops.CloseCtx; op != nil {
			_ = op(m.ctx, backendFd)
		}
	} else if op := m.ops.Close; op != nil {
		_ = op(backendFd)
	}
	return -1, failOp("open", ENOMEM)
}

// Close closes a global fd. Permanent rows survive; a transient row being
// waited on by a select call is marked close pending and freed when that
// select finishes.
func (v *VFS) Close(fd int) error {
	countOp("close")
	if !v.opt.EnableIO {
		return failOp("close", ENOSYS)
	}
	m, localFd := v.mountForFd(fd)
	if m == nil || localFd < 0 {
		return failOp("close", EBADF)
	}

	var err error
	if m.useCtx() {
		if op := m.ops.CloseCtx; op != nil {
			err = op(m.ctx, localFd)
		} else {
			return failOp("close", ENOSYS)
		}
	} else if op := m.ops.Close; op != nil {
		err = op(localFd)
	} else {
		return failOp("close", ENOSYS)
	}

	v.mu.Lock()
	row := &v.fds[fd]
	if row.state == fdTransient {
		if row.pendingSelect {
			row.state = fdTransientClosePending
		} else {
			v.clearRowLocked(fd)
		}
	}
	v.mu.Unlock()
	return err
}

// Read reads from fd into p.
func (v *VFS) Read(fd int, p []byte) (int, error) {
	countOp("read")
	if !v.opt.EnableIO {
		return -1, failOp("read", ENOSYS)
	}
	m, localFd := v.mountForFd(fd)
	if m == nil || localFd < 0 {
		return -1, failOp("read", EBADF)
	}
	if m.useCtx() {
		if op := m.ops.ReadCtx; op != nil {
			return op(m.ctx, localFd, p)
		}
	} else if op := m.ops.Read; op != nil {
		return op(localFd, p)
	}
	return -1, failOp("read", ENOSYS)
}

// Write writes p to fd.
func (v *VFS) Write(fd int, p []byte) (int, error) {
	countOp("write")
	if !v.opt.EnableIO {
		return -1, failOp("write", ENOSYS)
	}
	m, localFd := v.mountForFd(fd)
	if m == nil || localFd < 0 {
		return -1, failOp("write", EBADF)
	}
	if m.useCtx() {
		if op := m.ops.WriteCtx; op != nil {
			return op(m.ctx, localFd, p)
		}
	} else if op := m.ops.Write; op != nil {
		return op(localFd, p)
	}
	return -1, failOp("write", ENOSYS)
}

// Pread reads from fd at offset without moving the file position.
func (v *VFS) Pread(fd int, p []byte, offset int64) (int, error) {
	countOp("pread")
	if !v.opt.EnableIO {
		return -1, failOp("pread", ENOSYS)
	}
	m, localFd := v.mountForFd(fd)
	if m == nil || localFd < 0 {
		return -1, failOp("pread", EBADF)
	}
	if m.useCtx() {
		if op := m.ops.PreadCtx; op != nil {
			return op(m.ctx, localFd, p, offset)
		}
	} else if op := m.ops.Pread; op != nil {
		return op(localFd, p, offset)
	}
	return -1, failOp("pread", ENOSYS)
}

// Pwrite writes to fd at offset without moving the file position.
func (v *VFS) Pwrite(fd int, p []byte, offset int64) (int, error) {
	countOp("pwrite")
	if !v.opt.EnableIO {
		return -1, failOp("pwrite", ENOSYS)
	}
	m, localFd := v.mountForFd(fd)
	if m == nil || localFd < 0 {
		return -1, failOp("pwrite", EBADF)
	}
	if m.useCtx() {
		if op := m.ops.PwriteCtx; op != nil {
			return op(m.ctx, localFd, p, offset)
		}
	} else if op := m.ops.Pwrite; op != nil {
		return op(localFd, p, offset)
	}
	return -1, failOp("pwrite", ENOSYS)
}

// Lseek moves the file position of fd.
func (v *VFS) Lseek(fd int, offset int64, whence int) (int64, error) {
	countOp("lseek")
	if !v.opt.EnableIO {
		return -1, failOp("lseek", ENOSYS)
	}
	m, localFd := v.mountForFd(fd)
	if m == nil || localFd < 0 {
		return -1, failOp("lseek", EBADF)
	}
	if m.useCtx() {
		if op := m.ops.LseekCtx; op != nil {
			return op(m.ctx, localFd, offset, whence)
		}
	} else if op := m.ops.Lseek; op != nil {
		return op(localFd, offset, whence)
	}
	return -1, failOp("lseek", ENOSYS)
}

// Fstat describes the open file fd.
func (v *VFS) Fstat(fd int) (Stat, error) {
	countOp("fstat")
	if !v.opt.EnableIO {
		return Stat{}, failOp("fstat", ENOSYS)
	}
	m, localFd := v.mountForFd(fd)
	if m == nil || localFd < 0 {
		return Stat{}, failOp("fstat", EBADF)
	}
	if m.useCtx() {
		if op := m.ops.FstatCtx; op != nil {
			return op(m.ctx, localFd)
		}
	} else if op := m.ops.Fstat; op != nil {
		return op(localFd)
	}
	return Stat{}, failOp("fstat", ENOSYS)
}

// Fcntl performs a descriptor control operation on fd.
func (v *VFS) Fcntl(fd int, cmd int, arg int) (int, error) {
	countOp("fcntl")
	if !v.opt.EnableIO {
		return -1, failOp("fcntl", ENOSYS)
	}
	m, localFd := v.mountForFd(fd)
	if m == nil || localFd < 0 {
		return -1, failOp("fcntl", EBADF)
	}
	if m.useCtx() {
		if op := m.ops.FcntlCtx; op != nil {
			return op(m.ctx, localFd, cmd, arg)
		}
	} else if op := m.ops.Fcntl; op != nil {
		return op(localFd, cmd, arg)
	}
	return -1, failOp("fcntl", ENOSYS)
}

// Ioctl forwards a device control request to the backend. The argument
// list is opaque to the dispatcher.
func (v *VFS) Ioctl(fd int, cmd int, args ...any) (int, error) {
	countOp("ioctl")
	if !v.opt.EnableIO {
		return -1, failOp("ioctl", ENOSYS)
	}
	m, localFd := v.mountForFd(fd)
	if m == nil || localFd < 0 {
		return -1, failOp("ioctl", EBADF)
	}
	if m.useCtx() {
		if op := m.ops.IoctlCtx; op != nil {
			return op(m.ctx, localFd, cmd, args...)
		}
	} else if op := m.ops.Ioctl; op != nil {
		return op(localFd, cmd, args...)
	}
	return -1, failOp("ioctl", ENOSYS)
}

// Fsync flushes fd to stable storage.
func (v *VFS) Fsync(fd int) error {
	countOp("fsync")
	if !v.opt.EnableIO {
		return failOp("fsync", ENOSYS)
	}
	m, localFd := v.mountForFd(fd)
	if m == nil || localFd < 0 {
		return failOp("fsync", EBADF)
	}
	if m.useCtx() {
		if op := m.ops.FsyncCtx; op != nil {
			return op(m.ctx, localFd)
		}
	} else if op := m.ops.Fsync; op != nil {
		return op(localFd)
	}
	return failOp("fsync", ENOSYS)
}
