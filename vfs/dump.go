package vfs

import (
	"fmt"
	"io"

	"github.com/vfsmux/vfsmux/vfs/vfscommon"
)

// DumpFds writes a table of the used descriptor rows to w: the owning
// mount prefix, the fd the application sees and the fd the backend sees.
func (v *VFS) DumpFds(w io.Writer) {
	fmt.Fprintf(w, "<mount prefix> - <fd seen by app> - <fd seen by backend>\n")
	v.mu.Lock()
	for fd := range v.fds {
		index := int(v.fds[fd].vfsIndex.Load())
		if index == -1 {
			continue
		}
		name := "socket"
		if m := v.mountForIndex(index); m != nil && m.prefix != "" {
			name = m.prefix
		}
		fmt.Fprintf(w, "(%s) - 0x%x - 0x%x\n", name, fd, v.fds[fd].localFd.Load())
	}
	v.mu.Unlock()
}

// DumpRegisteredPaths writes one line per mount table slot to w.
func (v *VFS) DumpRegisteredPaths(w io.Writer) {
	fmt.Fprintf(w, "<index>:<mount prefix> -> <ops>\n")
	for i := 0; i < vfscommon.MaxCount; i++ {
		m := v.mounts[i].Load()
		if m == nil {
			fmt.Fprintf(w, "%d:NULL -> NULL\n", i)
			continue
		}
		fmt.Fprintf(w, "%d:%s -> %p\n", i, m.prefix, m.ops)
	}
}
