package vfs

import (
	"os"
	"time"

	"github.com/vfsmux/vfsmux/lib/sem"
)

// Stat describes a file in a backend independent way.
type Stat struct {
	Size  int64
	Mode  os.FileMode
	Ino   uint64
	Nlink int
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// Dirent is one directory entry as produced by Readdir. Name is bounded by
// vfscommon.DirentNameSize.
type Dirent struct {
	Ino  uint64
	Type os.FileMode // type bits only, e.g. 0 for a regular file, os.ModeDir for a directory
	Name string
}

// Dir is an open directory stream as returned by Opendir.
//
// The owning mount index is recorded by the dispatcher when the stream is
// opened and is not writable by backends; Handle carries the backend's
// private state.
type Dir struct {
	vfsIndex int
	Handle   any
}

// SelectSem is the semaphore a backend signals when its wait condition is
// satisfied during a select call. Local is true when the dispatcher
// allocated the semaphore for this call; otherwise it came from the socket
// backend.
type SelectSem struct {
	Local bool
	Sem   *sem.Semaphore
}

// Ops is the operation set a backend registers with the dispatcher.
//
// Each operation is an optional slot; a nil slot makes the corresponding
// call fail with ENOSYS. Every file and directory op comes in two variants:
// the bare form, and a context aware form taking the opaque value that was
// passed to registration. FlagContextPtr on the mount selects which variant
// is consulted - the other one is ignored.
type Ops struct {
	Write    func(fd int, p []byte) (int, error)
	WriteCtx func(ctx any, fd int, p []byte) (int, error)

	Lseek    func(fd int, offset int64, whence int) (int64, error)
	LseekCtx func(ctx any, fd int, offset int64, whence int) (int64, error)

	Read    func(fd int, p []byte) (int, error)
	ReadCtx func(ctx any, fd int, p []byte) (int, error)

	Pread    func(fd int, p []byte, offset int64) (int, error)
	PreadCtx func(ctx any, fd int, p []byte, offset int64) (int, error)

	Pwrite    func(fd int, p []byte, offset int64) (int, error)
	PwriteCtx func(ctx any, fd int, p []byte, offset int64) (int, error)

	Open    func(path string, flags int, mode os.FileMode) (int, error)
	OpenCtx func(ctx any, path string, flags int, mode os.FileMode) (int, error)

	Close    func(fd int) error
	CloseCtx func(ctx any, fd int) error

	Fstat    func(fd int) (Stat, error)
	FstatCtx func(ctx any, fd int) (Stat, error)

	Fcntl    func(fd int, cmd int, arg int) (int, error)
	FcntlCtx func(ctx any, fd int, cmd int, arg int) (int, error)

	Ioctl    func(fd int, cmd int, args ...any) (int, error)
	IoctlCtx func(ctx any, fd int, cmd int, args ...any) (int, error)

	Fsync    func(fd int) error
	FsyncCtx func(ctx any, fd int) error

	// Dir holds the directory and path metadata ops, if the backend has any.
	Dir *DirOps

	// Select holds the I/O multiplexing ops, if the backend has any.
	Select *SelectOps
}

// DirOps is the optional directory operation sub-record of an Ops.
type DirOps struct {
	Stat    func(path string) (Stat, error)
	StatCtx func(ctx any, path string) (Stat, error)

	Link    func(oldpath, newpath string) error
	LinkCtx func(ctx any, oldpath, newpath string) error

	Unlink    func(path string) error
	UnlinkCtx func(ctx any, path string) error

	Rename    func(src, dst string) error
	RenameCtx func(ctx any, src, dst string) error

	Opendir    func(path string) (*Dir, error)
	OpendirCtx func(ctx any, path string) (*Dir, error)

	Readdir    func(dir *Dir) (*Dirent, error)
	ReaddirCtx func(ctx any, dir *Dir) (*Dirent, error)

	ReaddirR    func(dir *Dir, ent *Dirent) (*Dirent, error)
	ReaddirRCtx func(ctx any, dir *Dir, ent *Dirent) (*Dirent, error)

	Telldir    func(dir *Dir) (int64, error)
	TelldirCtx func(ctx any, dir *Dir) (int64, error)

	Seekdir    func(dir *Dir, loc int64) error
	SeekdirCtx func(ctx any, dir *Dir, loc int64) error

	Closedir    func(dir *Dir) error
	ClosedirCtx func(ctx any, dir *Dir) error

	Mkdir    func(path string, mode os.FileMode) error
	MkdirCtx func(ctx any, path string, mode os.FileMode) error

	Rmdir    func(path string) error
	RmdirCtx func(ctx any, path string) error

	Access    func(path string, amode int) error
	AccessCtx func(ctx any, path string, amode int) error

	Truncate    func(path string, length int64) error
	TruncateCtx func(ctx any, path string, length int64) error

	Ftruncate    func(fd int, length int64) error
	FtruncateCtx func(ctx any, fd int, length int64) error

	Utime    func(path string, atime, mtime time.Time) error
	UtimeCtx func(ctx any, path string, atime, mtime time.Time) error
}

// SelectOps is the optional I/O multiplexing sub-record of an Ops. Unlike
// the file and directory ops these have a single calling convention: a
// backend that needs its registration context closes over it.
type SelectOps struct {
	// StartSelect arms asynchronous readiness notification for the local
	// fds in the three sets. The returned value is handed back to
	// EndSelect. Returning ErrNotSupported opts the backend out of this
	// select round.
	StartSelect func(nfds int, readfds, writefds, errorfds *FdSet, s SelectSem) (any, error)

	// EndSelect disarms notification armed by a successful StartSelect.
	EndSelect func(args any) error

	// SocketSelect waits synchronously on the backend's own fds. A nil
	// timeout waits forever.
	SocketSelect func(nfds int, readfds, writefds, errorfds *FdSet, timeout *time.Duration) (int, error)

	// StopSocketSelect interrupts an in-flight SocketSelect.
	StopSocketSelect func(s *sem.Semaphore)

	// StopSocketSelectISR is the interrupt context variant of
	// StopSocketSelect. woken, if non-nil, reports whether a waiter was
	// made runnable.
	StopSocketSelectISR func(s *sem.Semaphore, woken *bool)

	// GetSocketSelectSemaphore returns the semaphore SocketSelect waits
	// on, so driver level backends can wake it.
	GetSocketSelectSemaphore func() *sem.Semaphore
}

// clone deep-copies the operation set including its optional sub-records,
// giving the dispatcher exclusive ownership of non static registrations.
func (o *Ops) clone() *Ops {
	c := *o
	if o.Dir != nil {
		dir := *o.Dir
		c.Dir = &dir
	}
	if o.Select != nil {
		sel := *o.Select
		c.Select = &sel
	}
	return &c
}
