package vfs

import "fmt"

// Error describes the low level errors raised by the dispatcher in a cross
// platform way. Backend errors are passed through untouched; these values
// stand in for the errno a POSIX layer would have set.
type Error byte

// Low level errors
const (
	OK Error = iota
	ENOENT
	EBADF
	EINVAL
	ENOMEM
	ENOSYS
	EROFS
	EXDEV
	EINTR
	ENOTSUP
	EBUSY
	EEXIST
	ENOTDIR
	ENOTEMPTY
	EAGAIN
)

// ErrNotSupported is returned by a backend's StartSelect to opt out of one
// select round. It is the only StartSelect failure which does not abort the
// whole call.
const ErrNotSupported = ENOTSUP

var errorNames = []string{
	OK:        "Success",
	ENOENT:    "No such file or directory",
	EBADF:     "Bad file descriptor",
	EINVAL:    "Invalid argument",
	ENOMEM:    "Out of resources",
	ENOSYS:    "Function not implemented",
	EROFS:     "Read-only file system",
	EXDEV:     "Cross-device link",
	EINTR:     "Interrupted system call",
	ENOTSUP:   "Operation not supported",
	EBUSY:     "Device or resource busy",
	EEXIST:    "File exists",
	ENOTDIR:   "Not a directory",
	ENOTEMPTY: "Directory not empty",
	EAGAIN:    "Resource temporarily unavailable",
}

// Error renders the error as a string
func (e Error) Error() string {
	if int(e) < len(errorNames) {
		return errorNames[e]
	}
	return fmt.Sprintf("Low level error %d", e)
}
