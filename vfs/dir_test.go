package vfs_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsmux/vfsmux/vfs"
	"github.com/vfsmux/vfsmux/vfs/vfscommon"
	"github.com/vfsmux/vfsmux/vfs/vfstest"
)

func TestStatDispatch(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/data", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	_, err = v.Stat("/data/file")
	require.NoError(t, err)
	calls := b.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "stat", calls[0].Op)
	assert.Equal(t, "/file", calls[0].Args[0])

	_, err = v.Stat("/nowhere")
	assert.Equal(t, error(vfs.ENOENT), err)
}

func TestDirOpsNoSubRecord(t *testing.T) {
	v := vfs.New(nil)
	ops := &vfs.Ops{
		Open: func(path string, flags int, mode os.FileMode) (int, error) { return 0, nil },
	}
	_, err := v.Register("/flat", ops, nil, vfs.FlagDefault)
	require.NoError(t, err)

	_, err = v.Stat("/flat/f")
	assert.Equal(t, error(vfs.ENOSYS), err)
	assert.Equal(t, error(vfs.ENOSYS), v.Mkdir("/flat/d", 0777))
	assert.Equal(t, error(vfs.ENOSYS), v.Unlink("/flat/f"))
	_, err = v.Opendir("/flat")
	assert.Equal(t, error(vfs.ENOSYS), err)
}

func TestReadOnlyMutatingOps(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/ro", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)
	require.NoError(t, v.SetReadonlyFlag("/ro"))

	assert.Equal(t, error(vfs.EROFS), v.Unlink("/ro/f"))
	assert.Equal(t, error(vfs.EROFS), v.Mkdir("/ro/d", 0777))
	assert.Equal(t, error(vfs.EROFS), v.Rmdir("/ro/d"))
	assert.Equal(t, error(vfs.EROFS), v.Rename("/ro/a", "/ro/b"))
	assert.Equal(t, error(vfs.EROFS), v.Link("/ro/a", "/ro/b"))
	assert.Equal(t, error(vfs.EROFS), v.Truncate("/ro/f", 0))
	assert.Empty(t, b.Calls()) // rejected before the backend

	// non mutating ops still reach the backend
	_, err = v.Stat("/ro/f")
	require.NoError(t, err)
	require.NoError(t, v.Access("/ro/f", 0))
	assert.Equal(t, []string{"stat", "access"}, b.CallNames())
}

func TestSetReadonlyFlagUnknownPrefix(t *testing.T) {
	v := vfs.New(nil)
	assert.Equal(t, vfs.ErrInvalidState, v.SetReadonlyFlag("/missing"))
}

func TestCrossDevice(t *testing.T) {
	v := vfs.New(nil)
	b1 := vfstest.New()
	b2 := vfstest.New()
	_, err := v.Register("/one", b1.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)
	_, err = v.Register("/two", b2.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	assert.Equal(t, error(vfs.EXDEV), v.Rename("/one/a", "/two/a"))
	assert.Equal(t, error(vfs.EXDEV), v.Link("/one/a", "/two/a"))
	assert.Empty(t, b1.Calls())
	assert.Empty(t, b2.Calls())

	// same mount works and both paths are translated
	require.NoError(t, v.Rename("/one/a", "/one/b"))
	calls := b1.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "rename", calls[0].Op)
	assert.Equal(t, "/a", calls[0].Args[0])
	assert.Equal(t, "/b", calls[0].Args[1])
}

func TestOpendirAnnotatesMount(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	index, err := v.Register("/data", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	dir, err := v.Opendir("/data/sub")
	require.NoError(t, err)
	require.NotNil(t, dir)

	// the readdir family works from the handle alone
	_, err = v.Readdir(dir)
	require.NoError(t, err)
	_, err = v.Telldir(dir)
	require.NoError(t, err)
	require.NoError(t, v.Rewinddir(dir))
	require.NoError(t, v.Closedir(dir))

	names := b.CallNames()
	assert.Equal(t, []string{"opendir", "readdir", "telldir", "seekdir", "closedir"}, names)

	// rewinddir is seekdir to position 0
	calls := b.Calls()
	assert.Equal(t, int64(0), calls[3].Args[1])

	// once the mount is gone the handle is dead
	require.NoError(t, v.UnregisterWithID(index))
	_, err = v.Readdir(dir)
	assert.Equal(t, error(vfs.EBADF), err)
	assert.Equal(t, error(vfs.EBADF), v.Closedir(dir))
}

func TestOpendirRootForms(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/foo", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	// both the bare prefix and the trailing slash form resolve to "/"
	for _, path := range []string{"/foo", "/foo/"} {
		dir, err := v.Opendir(path)
		require.NoError(t, err, "path %q", path)
		require.NotNil(t, dir)
	}
	calls := b.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/", calls[0].Args[0])
	assert.Equal(t, "/", calls[1].Args[0])
}

func TestReaddirNilDir(t *testing.T) {
	v := vfs.New(nil)
	_, err := v.Readdir(nil)
	assert.Equal(t, error(vfs.EBADF), err)
}

func TestUtimeDispatch(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/data", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	atime := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mtime := atime.Add(time.Hour)
	require.NoError(t, v.Utime("/data/f", atime, mtime))
	calls := b.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "utime", calls[0].Op)
	assert.Equal(t, atime, calls[0].Args[1])
	assert.Equal(t, mtime, calls[0].Args[2])
}

func TestFtruncate(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/data", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	fd, err := v.Open("/data/f", os.O_RDWR, 0)
	require.NoError(t, err)

	require.NoError(t, v.Ftruncate(fd, 123))
	calls := b.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, "ftruncate", last.Op)
	assert.Equal(t, int64(123), last.Args[1])

	assert.Equal(t, error(vfs.EBADF), v.Ftruncate(63, 0))

	require.NoError(t, v.SetReadonlyFlag("/data"))
	assert.Equal(t, error(vfs.EROFS), v.Ftruncate(fd, 0))
}

func TestDisabledDir(t *testing.T) {
	v := vfs.New(&vfscommon.Options{EnableIO: true, EnableSelect: true})
	b := vfstest.New()
	_, err := v.Register("/data", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	_, err = v.Stat("/data/f")
	assert.Equal(t, error(vfs.ENOSYS), err)
	_, err = v.Opendir("/data")
	assert.Equal(t, error(vfs.ENOSYS), err)
	assert.Equal(t, error(vfs.ENOSYS), v.Mkdir("/data/d", 0777))
}
