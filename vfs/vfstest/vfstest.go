// Package vfstest provides scriptable fake backends for exercising the
// dispatcher from the outside.
package vfstest

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vfsmux/vfsmux/vfs"
)

// Call is one recorded backend invocation.
type Call struct {
	Op   string
	Args []any
}

// Backend records every op the dispatcher sends to it and hands out
// sequential local fds from Open. The zero value is not usable; call New.
type Backend struct {
	mu     sync.Mutex
	calls  []Call
	nextFd int

	// Err, when non-nil, is returned by every file and directory op.
	Err error
	// OpenFd, when >= 0, is returned by Open instead of a sequential fd.
	OpenFd int
}

// New creates a recording backend.
func New() *Backend {
	return &Backend{OpenFd: -1}
}

func (b *Backend) record(op string, args ...any) {
	b.mu.Lock()
	b.calls = append(b.calls, Call{Op: op, Args: args})
	b.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallNames returns just the op names of the recorded calls, in order.
func (b *Backend) CallNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.calls))
	for i := range b.calls {
		names[i] = b.calls[i].Op
	}
	return names
}

// Reset forgets the recorded calls.
func (b *Backend) Reset() {
	b.mu.Lock()
	b.calls = nil
	b.mu.Unlock()
}

func (b *Backend) open(path string, flags int, mode os.FileMode) (int, error) {
	b.record("open", path, flags, mode)
	if b.Err != nil {
		return -1, b.Err
	}
	if b.OpenFd >= 0 {
		return b.OpenFd, nil
	}
	b.mu.Lock()
	fd := b.nextFd
	b.nextFd++
	b.mu.Unlock()
	return fd, nil
}

// Ops returns a full operation set in the bare calling convention wired to
// the recorder.
func (b *Backend) Ops() *vfs.Ops {
	return &vfs.Ops{
		Open: b.open,
		Close: func(fd int) error {
			b.record("close", fd)
			return b.Err
		},
		Read: func(fd int, p []byte) (int, error) {
			b.record("read", fd, len(p))
			if b.Err != nil {
				return -1, b.Err
			}
			return 0, nil
		},
		Write: func(fd int, p []byte) (int, error) {
			b.record("write", fd, string(p))
			if b.Err != nil {
				return -1, b.Err
			}
			return len(p), nil
		},
		Pread: func(fd int, p []byte, offset int64) (int, error) {
			b.record("pread", fd, len(p), offset)
			if b.Err != nil {
				return -1, b.Err
			}
			return 0, nil
		},
		Pwrite: func(fd int, p []byte, offset int64) (int, error) {
			b.record("pwrite", fd, string(p), offset)
			if b.Err != nil {
				return -1, b.Err
			}
			return len(p), nil
		},
		Lseek: func(fd int, offset int64, whence int) (int64, error) {
			b.record("lseek", fd, offset, whence)
			if b.Err != nil {
				return -1, b.Err
			}
			return offset, nil
		},
		Fstat: func(fd int) (vfs.Stat, error) {
			b.record("fstat", fd)
			return vfs.Stat{}, b.Err
		},
		Fcntl: func(fd int, cmd int, arg int) (int, error) {
			b.record("fcntl", fd, cmd, arg)
			if b.Err != nil {
				return -1, b.Err
			}
			return 0, nil
		},
		Ioctl: func(fd int, cmd int, args ...any) (int, error) {
			b.record("ioctl", fd, cmd, args)
			if b.Err != nil {
				return -1, b.Err
			}
			return 0, nil
		},
		Fsync: func(fd int) error {
			b.record("fsync", fd)
			return b.Err
		},
		Dir: b.dirOps(),
	}
}

func (b *Backend) dirOps() *vfs.DirOps {
	return &vfs.DirOps{
		Stat: func(path string) (vfs.Stat, error) {
			b.record("stat", path)
			return vfs.Stat{}, b.Err
		},
		Link: func(oldpath, newpath string) error {
			b.record("link", oldpath, newpath)
			return b.Err
		},
		Unlink: func(path string) error {
			b.record("unlink", path)
			return b.Err
		},
		Rename: func(src, dst string) error {
			b.record("rename", src, dst)
			return b.Err
		},
		Opendir: func(path string) (*vfs.Dir, error) {
			b.record("opendir", path)
			if b.Err != nil {
				return nil, b.Err
			}
			return &vfs.Dir{Handle: path}, nil
		},
		Readdir: func(dir *vfs.Dir) (*vfs.Dirent, error) {
			b.record("readdir", dir.Handle)
			return nil, b.Err
		},
		ReaddirR: func(dir *vfs.Dir, ent *vfs.Dirent) (*vfs.Dirent, error) {
			b.record("readdir_r", dir.Handle)
			return nil, b.Err
		},
		Telldir: func(dir *vfs.Dir) (int64, error) {
			b.record("telldir", dir.Handle)
			if b.Err != nil {
				return -1, b.Err
			}
			return 0, nil
		},
		Seekdir: func(dir *vfs.Dir, loc int64) error {
			b.record("seekdir", dir.Handle, loc)
			return b.Err
		},
		Closedir: func(dir *vfs.Dir) error {
			b.record("closedir", dir.Handle)
			return b.Err
		},
		Mkdir: func(path string, mode os.FileMode) error {
			b.record("mkdir", path, mode)
			return b.Err
		},
		Rmdir: func(path string) error {
			b.record("rmdir", path)
			return b.Err
		},
		Access: func(path string, amode int) error {
			b.record("access", path, amode)
			return b.Err
		},
		Truncate: func(path string, length int64) error {
			b.record("truncate", path, length)
			return b.Err
		},
		Ftruncate: func(fd int, length int64) error {
			b.record("ftruncate", fd, length)
			return b.Err
		},
		Utime: func(path string, atime, mtime time.Time) error {
			b.record("utime", path, atime, mtime)
			return b.Err
		},
	}
}

// CtxOps returns the same recorder in the context aware calling
// convention. Every op checks that the dispatcher forwarded wantCtx and
// records "<op>_ctx" so tests can tell the variants apart.
func (b *Backend) CtxOps(wantCtx any) *vfs.Ops {
	check := func(op string, ctx any) error {
		if ctx != wantCtx {
			return fmt.Errorf("op %s: ctx = %v, want %v", op, ctx, wantCtx)
		}
		return nil
	}
	return &vfs.Ops{
		OpenCtx: func(ctx any, path string, flags int, mode os.FileMode) (int, error) {
			if err := check("open", ctx); err != nil {
				return -1, err
			}
			b.record("open_ctx", path, flags, mode)
			if b.Err != nil {
				return -1, b.Err
			}
			if b.OpenFd >= 0 {
				return b.OpenFd, nil
			}
			b.mu.Lock()
			fd := b.nextFd
			b.nextFd++
			b.mu.Unlock()
			return fd, nil
		},
		CloseCtx: func(ctx any, fd int) error {
			if err := check("close", ctx); err != nil {
				return err
			}
			b.record("close_ctx", fd)
			return b.Err
		},
		ReadCtx: func(ctx any, fd int, p []byte) (int, error) {
			if err := check("read", ctx); err != nil {
				return -1, err
			}
			b.record("read_ctx", fd, len(p))
			return 0, b.Err
		},
		WriteCtx: func(ctx any, fd int, p []byte) (int, error) {
			if err := check("write", ctx); err != nil {
				return -1, err
			}
			b.record("write_ctx", fd, string(p))
			if b.Err != nil {
				return -1, b.Err
			}
			return len(p), nil
		},
	}
}
