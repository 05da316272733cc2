package vfs

import (
	"io"
	"os"
	"time"
)

// Std is the process wide dispatcher used by the package level functions.
// Embedders that want isolated descriptor spaces create their own with New.
var Std = New(nil)

// Register adds a backend to Std under a path prefix.
func Register(prefix string, ops *Ops, ctx any, flags Flags) (int, error) {
	return Std.Register(prefix, ops, ctx, flags)
}

// RegisterWithID adds a backend to Std without a path prefix.
func RegisterWithID(ops *Ops, ctx any) (int, error) { return Std.RegisterWithID(ops, ctx) }

// RegisterFdRange adds a backend to Std claiming the fds [minFd, maxFd).
func RegisterFdRange(ops *Ops, ctx any, minFd, maxFd int) error {
	return Std.RegisterFdRange(ops, ctx, minFd, maxFd)
}

// RegisterFd claims a permanent descriptor row on Std for the mount at index.
func RegisterFd(index int) (int, error) { return Std.RegisterFd(index) }

// RegisterFdWithLocalFd claims a descriptor row on Std for the mount at index.
func RegisterFdWithLocalFd(index, localFd int, permanent bool) (int, error) {
	return Std.RegisterFdWithLocalFd(index, localFd, permanent)
}

// UnregisterFd releases a permanent descriptor row on Std.
func UnregisterFd(index, fd int) error { return Std.UnregisterFd(index, fd) }

// Unregister removes the Std mount registered under exactly this prefix.
func Unregister(prefix string) error { return Std.Unregister(prefix) }

// UnregisterWithID removes the Std mount at index.
func UnregisterWithID(index int) error { return Std.UnregisterWithID(index) }

// SetReadonlyFlag marks the Std mount under this prefix read-only.
func SetReadonlyFlag(prefix string) error { return Std.SetReadonlyFlag(prefix) }

// Open opens a file on Std.
func Open(path string, flags int, mode os.FileMode) (int, error) { return Std.Open(path, flags, mode) }

// Close closes an Std descriptor.
func Close(fd int) error { return Std.Close(fd) }

// Read reads from an Std descriptor.
func Read(fd int, p []byte) (int, error) { return Std.Read(fd, p) }

// Write writes to an Std descriptor.
func Write(fd int, p []byte) (int, error) { return Std.Write(fd, p) }

// Pread reads at an offset from an Std descriptor.
func Pread(fd int, p []byte, offset int64) (int, error) { return Std.Pread(fd, p, offset) }

// Pwrite writes at an offset to an Std descriptor.
func Pwrite(fd int, p []byte, offset int64) (int, error) { return Std.Pwrite(fd, p, offset) }

// Lseek moves the file position of an Std descriptor.
func Lseek(fd int, offset int64, whence int) (int64, error) { return Std.Lseek(fd, offset, whence) }

// Fstat describes an open Std descriptor.
func Fstat(fd int) (Stat, error) { return Std.Fstat(fd) }

// Fcntl performs a descriptor control operation on Std.
func Fcntl(fd int, cmd int, arg int) (int, error) { return Std.Fcntl(fd, cmd, arg) }

// Ioctl forwards a device control request on Std.
func Ioctl(fd int, cmd int, args ...any) (int, error) { return Std.Ioctl(fd, cmd, args...) }

// Fsync flushes an Std descriptor.
func Fsync(fd int) error { return Std.Fsync(fd) }

// StatPath describes the file at path on Std. It is named to avoid
// shadowing the Stat type.
func StatPath(path string) (Stat, error) { return Std.Stat(path) }

// Utime sets file times on Std.
func Utime(path string, atime, mtime time.Time) error { return Std.Utime(path, atime, mtime) }

// Link creates a hard link on Std.
func Link(oldpath, newpath string) error { return Std.Link(oldpath, newpath) }

// Unlink removes a file on Std.
func Unlink(path string) error { return Std.Unlink(path) }

// Rename moves a file on Std.
func Rename(src, dst string) error { return Std.Rename(src, dst) }

// Opendir opens a directory stream on Std.
func Opendir(path string) (*Dir, error) { return Std.Opendir(path) }

// Readdir returns the next entry of an Std directory stream.
func Readdir(dir *Dir) (*Dirent, error) { return Std.Readdir(dir) }

// ReaddirR is the caller-buffered Readdir on Std.
func ReaddirR(dir *Dir, ent *Dirent) (*Dirent, error) { return Std.ReaddirR(dir, ent) }

// Telldir returns the position of an Std directory stream.
func Telldir(dir *Dir) (int64, error) { return Std.Telldir(dir) }

// Seekdir positions an Std directory stream.
func Seekdir(dir *Dir, loc int64) error { return Std.Seekdir(dir, loc) }

// Rewinddir rewinds an Std directory stream.
func Rewinddir(dir *Dir) error { return Std.Rewinddir(dir) }

// Closedir releases an Std directory stream.
func Closedir(dir *Dir) error { return Std.Closedir(dir) }

// Mkdir creates a directory on Std.
func Mkdir(path string, mode os.FileMode) error { return Std.Mkdir(path, mode) }

// Rmdir removes a directory on Std.
func Rmdir(path string) error { return Std.Rmdir(path) }

// Access checks reachability of a path on Std.
func Access(path string, amode int) error { return Std.Access(path, amode) }

// Truncate resizes a file by path on Std.
func Truncate(path string, length int64) error { return Std.Truncate(path, length) }

// Ftruncate resizes an open Std descriptor.
func Ftruncate(fd int, length int64) error { return Std.Ftruncate(fd, length) }

// Select multiplexes readiness over Std descriptors.
func Select(nfds int, readfds, writefds, errorfds *FdSet, timeout *time.Duration) (int, error) {
	return Std.Select(nfds, readfds, writefds, errorfds, timeout)
}

// SelectTriggered signals readiness for an in-flight Std select.
func SelectTriggered(s SelectSem) { Std.SelectTriggered(s) }

// SelectTriggeredISR signals readiness from interrupt context.
func SelectTriggeredISR(s SelectSem, woken *bool) { Std.SelectTriggeredISR(s, woken) }

// DumpFds writes the used Std descriptor rows to w.
func DumpFds(w io.Writer) { Std.DumpFds(w) }

// DumpRegisteredPaths writes the Std mount table to w.
func DumpRegisteredPaths(w io.Writer) { Std.DumpRegisteredPaths(w) }
