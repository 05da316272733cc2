package vfs_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsmux/vfsmux/vfs"
	"github.com/vfsmux/vfsmux/vfs/vfscommon"
	"github.com/vfsmux/vfsmux/vfs/vfstest"
)

func TestOpenDispatch(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/foo", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	fd, err := v.Open("/foo/file", os.O_RDONLY, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, fd)

	calls := b.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "open", calls[0].Op)
	assert.Equal(t, "/file", calls[0].Args[0]) // backend sees the translated path

	// a second open gets the next free row
	fd2, err := v.Open("/foo/other", os.O_RDONLY, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, fd2)
}

func TestOpenNoMount(t *testing.T) {
	v := vfs.New(nil)
	fd, err := v.Open("/nowhere/file", os.O_RDONLY, 0)
	assert.Equal(t, -1, fd)
	assert.Equal(t, error(vfs.ENOENT), err)
}

func TestOpenPrefixBoundary(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/foo", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	// "/foo1/file" must not reach /foo's backend
	_, err = v.Open("/foo1/file", os.O_RDONLY, 0)
	assert.Equal(t, error(vfs.ENOENT), err)
	assert.Empty(t, b.Calls())
}

func TestOpenReadOnlyFS(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/ro", b.Ops(), nil, vfs.FlagReadOnlyFS)
	require.NoError(t, err)

	_, err = v.Open("/ro/file", os.O_WRONLY, 0)
	assert.Equal(t, error(vfs.EROFS), err)
	_, err = v.Open("/ro/file", os.O_RDWR, 0)
	assert.Equal(t, error(vfs.EROFS), err)
	assert.Empty(t, b.Calls()) // rejected before the backend

	fd, err := v.Open("/ro/file", os.O_RDONLY, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, fd)
}

func TestOpenBackendError(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	b.Err = errors.New("backend open failed")
	_, err := v.Register("/foo", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	fd, err := v.Open("/foo/file", os.O_RDONLY, 0)
	assert.Equal(t, -1, fd)
	assert.Equal(t, b.Err, err)
}

func TestOpenTableFull(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/foo", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	for i := 0; i < vfscommon.FdsMax; i++ {
		fd, err := v.Open("/foo/file", os.O_RDONLY, 0)
		require.NoError(t, err)
		require.Equal(t, i, fd)
	}
	b.Reset()

	fd, err := v.Open("/foo/file", os.O_RDONLY, 0)
	assert.Equal(t, -1, fd)
	assert.Equal(t, error(vfs.ENOMEM), err)
	// the orphaned backend fd was closed again
	assert.Equal(t, []string{"open", "close"}, b.CallNames())
}

func TestReadWriteDispatch(t *testing.T) {
	v := vfs.New(nil)
	b1 := vfstest.New()
	b2 := vfstest.New()
	_, err := v.Register("/one", b1.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)
	_, err = v.Register("/two", b2.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	fd1, err := v.Open("/one/a", os.O_RDWR, 0)
	require.NoError(t, err)
	fd2, err := v.Open("/two/b", os.O_RDWR, 0)
	require.NoError(t, err)
	require.NotEqual(t, fd1, fd2)

	n, err := v.Write(fd2, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = v.Read(fd1, make([]byte, 4))
	require.NoError(t, err)

	// each backend sees its own local fd, both 0 here
	calls := b2.Calls()
	require.Equal(t, "write", calls[len(calls)-1].Op)
	assert.Equal(t, 0, calls[len(calls)-1].Args[0])
	calls = b1.Calls()
	require.Equal(t, "read", calls[len(calls)-1].Op)
	assert.Equal(t, 0, calls[len(calls)-1].Args[0])
}

func TestBadFd(t *testing.T) {
	v := vfs.New(nil)
	for _, fd := range []int{-1, 5, vfscommon.FdsMax, vfscommon.FdsMax + 100} {
		_, err := v.Read(fd, nil)
		assert.Equal(t, error(vfs.EBADF), err, "fd %d", fd)
		_, err = v.Write(fd, nil)
		assert.Equal(t, error(vfs.EBADF), err, "fd %d", fd)
		assert.Equal(t, error(vfs.EBADF), v.Close(fd), "fd %d", fd)
		_, err = v.Lseek(fd, 0, 0)
		assert.Equal(t, error(vfs.EBADF), err, "fd %d", fd)
	}
}

func TestNotImplemented(t *testing.T) {
	v := vfs.New(nil)
	ops := &vfs.Ops{
		Open: func(path string, flags int, mode os.FileMode) (int, error) {
			return 7, nil
		},
	}
	_, err := v.Register("/sparse", ops, nil, vfs.FlagDefault)
	require.NoError(t, err)

	fd, err := v.Open("/sparse/f", os.O_RDONLY, 0)
	require.NoError(t, err)

	_, err = v.Read(fd, make([]byte, 1))
	assert.Equal(t, error(vfs.ENOSYS), err)
	_, err = v.Fcntl(fd, 0, 0)
	assert.Equal(t, error(vfs.ENOSYS), err)
	_, err = v.Ioctl(fd, 1)
	assert.Equal(t, error(vfs.ENOSYS), err)
	assert.Equal(t, error(vfs.ENOSYS), v.Fsync(fd))
	assert.Equal(t, error(vfs.ENOSYS), v.Close(fd))
}

func TestContextDispatch(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	ctx := &struct{ name string }{"devctx"}
	_, err := v.Register("/dev", b.CtxOps(ctx), ctx, vfs.FlagContextPtr)
	require.NoError(t, err)

	fd, err := v.Open("/dev/tty", os.O_RDWR, 0)
	require.NoError(t, err)

	n, err := v.Write(fd, []byte("at"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names := b.CallNames()
	assert.Equal(t, []string{"open_ctx", "write_ctx"}, names)
}

func TestContextVariantRequired(t *testing.T) {
	// with FlagContextPtr only the ctx variants are consulted, the bare
	// slots are ignored
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/dev", b.Ops(), nil, vfs.FlagContextPtr)
	require.NoError(t, err)

	_, err = v.Open("/dev/tty", os.O_RDONLY, 0)
	assert.Equal(t, error(vfs.ENOSYS), err)
	assert.Empty(t, b.Calls())
}

func TestCloseReusesFd(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	_, err := v.Register("/foo", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	fd, err := v.Open("/foo/a", os.O_RDONLY, 0)
	require.NoError(t, err)
	fd2, err := v.Open("/foo/b", os.O_RDONLY, 0)
	require.NoError(t, err)
	require.NotEqual(t, fd, fd2)

	require.NoError(t, v.Close(fd))
	_, err = v.Read(fd, nil)
	assert.Equal(t, error(vfs.EBADF), err)

	fd3, err := v.Open("/foo/c", os.O_RDONLY, 0)
	require.NoError(t, err)
	assert.Equal(t, fd, fd3) // the released row is the lowest free one
}

func TestClosePermanentFdSurvives(t *testing.T) {
	v := vfs.New(nil)
	b := vfstest.New()
	index, err := v.RegisterWithID(b.Ops(), nil)
	require.NoError(t, err)

	fd, err := v.RegisterFd(index)
	require.NoError(t, err)

	require.NoError(t, v.Close(fd))
	// the row survives the close and still dispatches
	_, err = v.Write(fd, []byte("x"))
	require.NoError(t, err)
}

func TestIoctlForwardsArgs(t *testing.T) {
	v := vfs.New(nil)
	var gotCmd int
	var gotArgs []any
	ops := &vfs.Ops{
		Open: func(path string, flags int, mode os.FileMode) (int, error) { return 0, nil },
		Ioctl: func(fd int, cmd int, args ...any) (int, error) {
			gotCmd, gotArgs = cmd, args
			return 0, nil
		},
	}
	_, err := v.Register("/dev", ops, nil, vfs.FlagDefault)
	require.NoError(t, err)

	fd, err := v.Open("/dev/spi", os.O_RDWR, 0)
	require.NoError(t, err)

	type speed struct{ hz int }
	arg := &speed{hz: 1000000}
	_, err = v.Ioctl(fd, 42, arg, "extra")
	require.NoError(t, err)
	assert.Equal(t, 42, gotCmd)
	require.Len(t, gotArgs, 2)
	assert.Same(t, arg, gotArgs[0]) // the argument bundle is opaque and unchanged
	assert.Equal(t, "extra", gotArgs[1])
}

func TestDisabledIO(t *testing.T) {
	v := vfs.New(&vfscommon.Options{EnableDir: true, EnableSelect: true})
	b := vfstest.New()
	_, err := v.Register("/foo", b.Ops(), nil, vfs.FlagDefault)
	require.NoError(t, err)

	_, err = v.Open("/foo/f", os.O_RDONLY, 0)
	assert.Equal(t, error(vfs.ENOSYS), err)
	_, err = v.Read(0, nil)
	assert.Equal(t, error(vfs.ENOSYS), err)
}
