package sockfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsmux/vfsmux/vfs"
)

func mountOne(t *testing.T) (*vfs.VFS, *SockFS) {
	t.Helper()
	v := vfs.New(nil)
	s, err := Mount(v)
	require.NoError(t, err)
	return v, s
}

func TestPairReadWrite(t *testing.T) {
	v, s := mountOne(t)
	fd1, fd2, err := s.Pair()
	require.NoError(t, err)
	require.NotEqual(t, fd1, fd2)

	n, err := v.Write(fd1, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, err = v.Read(fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	// nothing more buffered
	_, err = v.Read(fd2, buf)
	assert.Equal(t, error(vfs.EAGAIN), err)
}

func TestPermanentRows(t *testing.T) {
	v, s := mountOne(t)
	fd1, fd2, err := s.Pair()
	require.NoError(t, err)

	// Close through the dispatcher leaves the permanent row intact
	require.NoError(t, v.Close(fd1))
	_, err = v.Write(fd1, []byte("still here"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := v.Read(fd2, buf)
	require.NoError(t, err)
	assert.Equal(t, "still here", string(buf[:n]))
}

func TestCloseSocket(t *testing.T) {
	v, s := mountOne(t)
	fd1, fd2, err := s.Pair()
	require.NoError(t, err)

	require.NoError(t, s.CloseSocket(fd1))
	_, err = v.Read(fd1, make([]byte, 1))
	assert.Equal(t, error(vfs.EBADF), err)

	// the peer sees an orderly shutdown
	n, err := v.Read(fd2, make([]byte, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, error(vfs.EBADF), s.CloseSocket(fd1))
}

func TestSelectSocketReadable(t *testing.T) {
	v, s := mountOne(t)
	fd1, fd2, err := s.Pair()
	require.NoError(t, err)

	done := make(chan struct{})
	var n int
	var readfds vfs.FdSet
	readfds.Set(fd2)
	go func() {
		defer close(done)
		n, err = v.Select(fd2+1, &readfds, nil, nil, nil)
	}()

	time.Sleep(5 * time.Millisecond)
	_, werr := v.Write(fd1, []byte("x"))
	require.NoError(t, werr)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("select did not wake")
	}
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, readfds.IsSet(fd2))
	assert.False(t, readfds.IsSet(fd1))
}

func TestSelectSocketWritable(t *testing.T) {
	v, s := mountOne(t)
	fd1, _, err := s.Pair()
	require.NoError(t, err)

	var writefds vfs.FdSet
	writefds.Set(fd1)
	n, err := v.Select(fd1+1, nil, &writefds, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, writefds.IsSet(fd1))
}

func TestSelectSocketTimeout(t *testing.T) {
	v, s := mountOne(t)
	_, fd2, err := s.Pair()
	require.NoError(t, err)

	var readfds vfs.FdSet
	readfds.Set(fd2)
	timeout := 10 * time.Millisecond
	start := time.Now()
	n, err := v.Select(fd2+1, &readfds, nil, nil, &timeout)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, readfds.IsZero())
	assert.GreaterOrEqual(t, time.Since(start), timeout)
}
