// Package vfscommon holds the capacities and feature options shared by the
// dispatcher and its backends.
package vfscommon

// Capacities. These size the fixed tables so they are constants, not options.
const (
	// MaxCount is the maximum number of registered mounts.
	MaxCount = 8

	// FdsMax is the size of the descriptor table. The global fd value is
	// the row index, so it is also the largest usable fd + 1.
	FdsMax = 64

	// PathMax is the longest accepted mount prefix in bytes.
	PathMax = 15

	// DirentNameSize bounds the name field of a directory entry.
	DirentNameSize = 256
)

// Options control which op families a dispatcher instance services.
type Options struct {
	EnableIO     bool // file I/O ops (open/read/write/…)
	EnableDir    bool // directory and path metadata ops
	EnableSelect bool // synchronous I/O multiplexing
}

// DefaultOpt is the default options used by vfs.New
var DefaultOpt = Options{
	EnableIO:     true,
	EnableDir:    true,
	EnableSelect: true,
}
