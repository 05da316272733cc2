package vfs

import (
	"os"
	"time"
)

// Stat describes the file at path.
func (v *VFS) Stat(path string) (Stat, error) {
	countOp("stat")
	m, sub, err := v.resolveDir("stat", path)
	if err != nil {
		return Stat{}, err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.StatCtx; op != nil {
			return op(m.ctx, sub)
		}
	} else if op := d.Stat; op != nil {
		return op(sub)
	}
	return Stat{}, failOp("stat", ENOSYS)
}

// Utime sets the access and modification times of the file at path.
func (v *VFS) Utime(path string, atime, mtime time.Time) error {
	countOp("utime")
	m, sub, err := v.resolveDir("utime", path)
	if err != nil {
		return err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.UtimeCtx; op != nil {
			return op(m.ctx, sub, atime, mtime)
		}
	} else if op := d.Utime; op != nil {
		return op(sub, atime, mtime)
	}
	return failOp("utime", ENOSYS)
}

// Link creates newpath as a hard link to oldpath. Both paths must resolve
// to the same mount.
func (v *VFS) Link(oldpath, newpath string) error {
	countOp("link")
	if !v.opt.EnableDir {
		return failOp("link", ENOSYS)
	}
	m := v.mountForPath(oldpath)
	if m == nil {
		return failOp("link", ENOENT)
	}
	if v.mountForPath(newpath) != m {
		return failOp("link", EXDEV)
	}
	if m.Flags()&FlagReadOnlyFS != 0 {
		return failOp("link", EROFS)
	}
	if m.ops.Dir == nil {
		return failOp("link", ENOSYS)
	}
	oldSub := translatePath(m, oldpath)
	newSub := translatePath(m, newpath)
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.LinkCtx; op != nil {
			return op(m.ctx, oldSub, newSub)
		}
	} else if op := d.Link; op != nil {
		return op(oldSub, newSub)
	}
	return failOp("link", ENOSYS)
}

// Unlink removes the file at path.
func (v *VFS) Unlink(path string) error {
	countOp("unlink")
	m, sub, err := v.resolveDirMutating("unlink", path)
	if err != nil {
		return err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.UnlinkCtx; op != nil {
			return op(m.ctx, sub)
		}
	} else if op := d.Unlink; op != nil {
		return op(sub)
	}
	return failOp("unlink", ENOSYS)
}

// Rename moves src to dst. Both paths must resolve to the same mount.
func (v *VFS) Rename(src, dst string) error {
	countOp("rename")
	if !v.opt.EnableDir {
		return failOp("rename", ENOSYS)
	}
	m := v.mountForPath(src)
	if m == nil {
		return failOp("rename", ENOENT)
	}
	if m.Flags()&FlagReadOnlyFS != 0 {
		return failOp("rename", EROFS)
	}
	if v.mountForPath(dst) != m {
		return failOp("rename", EXDEV)
	}
	if m.ops.Dir == nil {
		return failOp("rename", ENOSYS)
	}
	srcSub := translatePath(m, src)
	dstSub := translatePath(m, dst)
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.RenameCtx; op != nil {
			return op(m.ctx, srcSub, dstSub)
		}
	} else if op := d.Rename; op != nil {
		return op(srcSub, dstSub)
	}
	return failOp("rename", ENOSYS)
}

// Opendir opens a directory stream for path. The returned stream remembers
// its owning mount, so the readdir family needs no path.
func (v *VFS) Opendir(path string) (*Dir, error) {
	countOp("opendir")
	m, sub, err := v.resolveDir("opendir", path)
	if err != nil {
		return nil, err
	}
	var dir *Dir
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.OpendirCtx; op != nil {
			dir, err = op(m.ctx, sub)
		} else {
			return nil, failOp("opendir", ENOSYS)
		}
	} else if op := d.Opendir; op != nil {
		dir, err = op(sub)
	} else {
		return nil, failOp("opendir", ENOSYS)
	}
	if err != nil {
		return nil, err
	}
	if dir != nil {
		dir.vfsIndex = m.index
	}
	return dir, nil
}

// Readdir returns the next entry of the stream, or nil at the end.
func (v *VFS) Readdir(dir *Dir) (*Dirent, error) {
	countOp("readdir")
	m, err := v.mountForDir("readdir", dir)
	if err != nil {
		return nil, err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.ReaddirCtx; op != nil {
			return op(m.ctx, dir)
		}
	} else if op := d.Readdir; op != nil {
		return op(dir)
	}
	return nil, failOp("readdir", ENOSYS)
}

// ReaddirR is the caller-buffered variant of Readdir: the next entry is
// stored into ent and returned, or nil is returned at the end.
func (v *VFS) ReaddirR(dir *Dir, ent *Dirent) (*Dirent, error) {
	countOp("readdir_r")
	m, err := v.mountForDir("readdir_r", dir)
	if err != nil {
		return nil, err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.ReaddirRCtx; op != nil {
			return op(m.ctx, dir, ent)
		}
	} else if op := d.ReaddirR; op != nil {
		return op(dir, ent)
	}
	return nil, failOp("readdir_r", ENOSYS)
}

// Telldir returns the current position of the stream.
func (v *VFS) Telldir(dir *Dir) (int64, error) {
	countOp("telldir")
	m, err := v.mountForDir("telldir", dir)
	if err != nil {
		return -1, err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.TelldirCtx; op != nil {
			return op(m.ctx, dir)
		}
	} else if op := d.Telldir; op != nil {
		return op(dir)
	}
	return -1, failOp("telldir", ENOSYS)
}

// Seekdir moves the stream to a position previously returned by Telldir.
func (v *VFS) Seekdir(dir *Dir, loc int64) error {
	countOp("seekdir")
	m, err := v.mountForDir("seekdir", dir)
	if err != nil {
		return err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.SeekdirCtx; op != nil {
			return op(m.ctx, dir, loc)
		}
	} else if op := d.Seekdir; op != nil {
		return op(dir, loc)
	}
	return failOp("seekdir", ENOSYS)
}

// Rewinddir moves the stream back to its start.
func (v *VFS) Rewinddir(dir *Dir) error {
	return v.Seekdir(dir, 0)
}

// Closedir releases the stream.
func (v *VFS) Closedir(dir *Dir) error {
	countOp("closedir")
	m, err := v.mountForDir("closedir", dir)
	if err != nil {
		return err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.ClosedirCtx; op != nil {
			return op(m.ctx, dir)
		}
	} else if op := d.Closedir; op != nil {
		return op(dir)
	}
	return failOp("closedir", ENOSYS)
}

// Mkdir creates a directory at path.
func (v *VFS) Mkdir(path string, mode os.FileMode) error {
	countOp("mkdir")
	m, sub, err := v.resolveDirMutating("mkdir", path)
	if err != nil {
		return err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.MkdirCtx; op != nil {
			return op(m.ctx, sub, mode)
		}
	} else if op := d.Mkdir; op != nil {
		return op(sub, mode)
	}
	return failOp("mkdir", ENOSYS)
}

// Rmdir removes the directory at path.
func (v *VFS) Rmdir(path string) error {
	countOp("rmdir")
	m, sub, err := v.resolveDirMutating("rmdir", path)
	if err != nil {
		return err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.RmdirCtx; op != nil {
			return op(m.ctx, sub)
		}
	} else if op := d.Rmdir; op != nil {
		return op(sub)
	}
	return failOp("rmdir", ENOSYS)
}

// Access checks whether the file at path is reachable with the given
// access mode.
func (v *VFS) Access(path string, amode int) error {
	countOp("access")
	m, sub, err := v.resolveDir("access", path)
	if err != nil {
		return err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.AccessCtx; op != nil {
			return op(m.ctx, sub, amode)
		}
	} else if op := d.Access; op != nil {
		return op(sub, amode)
	}
	return failOp("access", ENOSYS)
}

// Truncate resizes the file at path.
func (v *VFS) Truncate(path string, length int64) error {
	countOp("truncate")
	m, sub, err := v.resolveDirMutating("truncate", path)
	if err != nil {
		return err
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.TruncateCtx; op != nil {
			return op(m.ctx, sub, length)
		}
	} else if op := d.Truncate; op != nil {
		return op(sub, length)
	}
	return failOp("truncate", ENOSYS)
}

// Ftruncate resizes the open file fd.
func (v *VFS) Ftruncate(fd int, length int64) error {
	countOp("ftruncate")
	if !v.opt.EnableDir {
		return failOp("ftruncate", ENOSYS)
	}
	m, localFd := v.mountForFd(fd)
	if m == nil || localFd < 0 {
		return failOp("ftruncate", EBADF)
	}
	if m.Flags()&FlagReadOnlyFS != 0 {
		return failOp("ftruncate", EROFS)
	}
	if m.ops.Dir == nil {
		return failOp("ftruncate", ENOSYS)
	}
	d := m.ops.Dir
	if m.useCtx() {
		if op := d.FtruncateCtx; op != nil {
			return op(m.ctx, localFd, length)
		}
	} else if op := d.Ftruncate; op != nil {
		return op(localFd, length)
	}
	return failOp("ftruncate", ENOSYS)
}

// resolveDir resolves a path-taking directory op to its mount and backend
// relative path.
func (v *VFS) resolveDir(op, path string) (*mount, string, error) {
	if !v.opt.EnableDir {
		return nil, "", failOp(op, ENOSYS)
	}
	m := v.mountForPath(path)
	if m == nil {
		return nil, "", failOp(op, ENOENT)
	}
	if m.ops.Dir == nil {
		return nil, "", failOp(op, ENOSYS)
	}
	return m, translatePath(m, path), nil
}

// resolveDirMutating is resolveDir plus the read-only mount policy check.
func (v *VFS) resolveDirMutating(op, path string) (*mount, string, error) {
	if !v.opt.EnableDir {
		return nil, "", failOp(op, ENOSYS)
	}
	m := v.mountForPath(path)
	if m == nil {
		return nil, "", failOp(op, ENOENT)
	}
	if m.Flags()&FlagReadOnlyFS != 0 {
		return nil, "", failOp(op, EROFS)
	}
	if m.ops.Dir == nil {
		return nil, "", failOp(op, ENOSYS)
	}
	return m, translatePath(m, path), nil
}

// mountForDir resolves a directory stream back to its owning mount. A
// stream whose mount has been unregistered yields EBADF.
func (v *VFS) mountForDir(op string, dir *Dir) (*mount, error) {
	if !v.opt.EnableDir {
		return nil, failOp(op, ENOSYS)
	}
	if dir == nil {
		return nil, failOp(op, EBADF)
	}
	m := v.mountForIndex(dir.vfsIndex)
	if m == nil {
		return nil, failOp(op, EBADF)
	}
	return m, nil
}
