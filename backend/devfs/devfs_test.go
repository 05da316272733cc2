package devfs

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsmux/vfsmux/vfs"
)

func mountOne(t *testing.T) (*vfs.VFS, *DevFS, *Pipe) {
	t.Helper()
	v := vfs.New(nil)
	d, err := Mount(v, "/dev")
	require.NoError(t, err)
	pipe := NewPipe(16)
	require.NoError(t, d.Add("uart0", pipe))
	return v, d, pipe
}

func TestOpenReadWrite(t *testing.T) {
	v, _, pipe := mountOne(t)

	fd, err := v.Open("/dev/uart0", os.O_RDWR, 0)
	require.NoError(t, err)

	// nothing buffered yet
	buf := make([]byte, 8)
	_, err = v.Read(fd, buf)
	assert.Equal(t, error(vfs.EAGAIN), err)

	_, err = pipe.Feed([]byte("ping"))
	require.NoError(t, err)
	n, err := v.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	n, err = v.Write(fd, []byte("pong"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, pipe.Len())

	require.NoError(t, v.Close(fd))
	_, err = v.Read(fd, buf)
	assert.Equal(t, error(vfs.EBADF), err)
}

func TestOpenUnknownDevice(t *testing.T) {
	v, _, _ := mountOne(t)
	_, err := v.Open("/dev/uart1", os.O_RDWR, 0)
	assert.Equal(t, error(vfs.ENOENT), err)
}

func TestAddValidation(t *testing.T) {
	_, d, _ := mountOne(t)
	assert.Equal(t, error(vfs.EEXIST), d.Add("uart0", NewPipe(4)))
	assert.Equal(t, error(vfs.EINVAL), d.Add("", NewPipe(4)))
	assert.Equal(t, error(vfs.EINVAL), d.Add("a/b", NewPipe(4)))
}

func TestPipeBound(t *testing.T) {
	p := NewPipe(4)
	n, err := p.Feed([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 4, n) // truncated at the bound
	assert.False(t, p.WriteReady())

	_, err = p.Feed([]byte("x"))
	assert.Equal(t, error(vfs.EAGAIN), err)

	buf := make([]byte, 8)
	n, err = p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))
	assert.True(t, p.WriteReady())
	assert.False(t, p.ReadReady())
}

func TestListDevices(t *testing.T) {
	v, d, _ := mountOne(t)
	require.NoError(t, d.Add("spi1", NewPipe(8)))

	dir, err := v.Opendir("/dev")
	require.NoError(t, err)
	var names []string
	for {
		ent, err := v.Readdir(dir)
		require.NoError(t, err)
		if ent == nil {
			break
		}
		names = append(names, ent.Name)
		assert.Equal(t, os.ModeDevice, ent.Type)
	}
	require.NoError(t, v.Closedir(dir))
	assert.Equal(t, []string{"spi1", "uart0"}, names)

	st, err := v.Stat("/dev")
	require.NoError(t, err)
	assert.True(t, st.Mode.IsDir())
	st, err = v.Stat("/dev/uart0")
	require.NoError(t, err)
	assert.Equal(t, os.ModeDevice, st.Mode)
}

func TestIoctlReadiness(t *testing.T) {
	v, _, pipe := mountOne(t)
	fd, err := v.Open("/dev/uart0", os.O_RDWR, 0)
	require.NoError(t, err)

	var ready bool
	_, err = v.Ioctl(fd, IoctlReadReady, &ready)
	require.NoError(t, err)
	assert.False(t, ready)

	_, err = pipe.Feed([]byte("x"))
	require.NoError(t, err)
	_, err = v.Ioctl(fd, IoctlReadReady, &ready)
	require.NoError(t, err)
	assert.True(t, ready)

	_, err = v.Ioctl(fd, IoctlWriteReady, &ready)
	require.NoError(t, err)
	assert.True(t, ready)

	_, err = v.Ioctl(fd, 999, &ready)
	assert.Equal(t, error(vfs.ENOTSUP), err)
	_, err = v.Ioctl(fd, IoctlReadReady, "not a bool pointer")
	assert.Equal(t, error(vfs.EINVAL), err)
}

func TestSelectWakesOnFeed(t *testing.T) {
	v, _, pipe := mountOne(t)
	fd, err := v.Open("/dev/uart0", os.O_RDONLY, 0)
	require.NoError(t, err)

	done := make(chan struct{})
	var n int
	var readfds vfs.FdSet
	readfds.Set(fd)
	go func() {
		defer close(done)
		n, err = v.Select(fd+1, &readfds, nil, nil, nil)
	}()

	time.Sleep(5 * time.Millisecond)
	_, ferr := pipe.Feed([]byte("wake"))
	require.NoError(t, ferr)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("select did not wake")
	}
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, readfds.IsSet(fd))
}

func TestSelectAlreadyReady(t *testing.T) {
	v, _, pipe := mountOne(t)
	fd, err := v.Open("/dev/uart0", os.O_RDONLY, 0)
	require.NoError(t, err)

	// data queued before the select is armed must still wake it
	_, err = pipe.Feed([]byte("early"))
	require.NoError(t, err)

	var readfds vfs.FdSet
	readfds.Set(fd)
	n, err := v.Select(fd+1, &readfds, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, readfds.IsSet(fd))
}

func TestSelectWriteReadiness(t *testing.T) {
	v, _, pipe := mountOne(t)
	fd, err := v.Open("/dev/uart0", os.O_WRONLY, 0)
	require.NoError(t, err)

	// fill the fifo so writes would block
	_, err = pipe.Feed(make([]byte, 16))
	require.NoError(t, err)

	done := make(chan struct{})
	var n int
	var writefds vfs.FdSet
	writefds.Set(fd)
	go func() {
		defer close(done)
		n, err = v.Select(fd+1, nil, &writefds, nil, nil)
	}()

	time.Sleep(5 * time.Millisecond)
	// draining the fifo frees space and wakes the waiter
	buf := make([]byte, 16)
	_, rerr := pipe.Read(buf)
	require.NoError(t, rerr)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("select did not wake")
	}
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, writefds.IsSet(fd))
}

func TestSelectTimeoutNotReady(t *testing.T) {
	v, _, _ := mountOne(t)
	fd, err := v.Open("/dev/uart0", os.O_RDONLY, 0)
	require.NoError(t, err)

	var readfds vfs.FdSet
	readfds.Set(fd)
	timeout := 10 * time.Millisecond
	n, err := v.Select(fd+1, &readfds, nil, nil, &timeout)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, readfds.IsZero())
}
