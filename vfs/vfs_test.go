package vfs_test

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/vfsmux/vfsmux/vfs"
)

func init() {
	logrus.SetLevel(logrus.DebugLevel)
}

// dumpState renders the mount and descriptor tables for comparing a
// dispatcher against an earlier snapshot of itself.
func dumpState(t *testing.T, v *vfs.VFS) string {
	t.Helper()
	var buf bytes.Buffer
	v.DumpRegisteredPaths(&buf)
	v.DumpFds(&buf)
	return buf.String()
}
