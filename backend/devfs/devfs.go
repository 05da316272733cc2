// Package devfs provides a device-namespace backend: named devices mounted
// as /dev/<name> style files with driver level select support.
//
// The backend registers with FlagContextPtr, so the dispatcher drives it
// through the context aware op variants with the *DevFS as the context.
package devfs

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/vfsmux/vfsmux/vfs"
)

// Device is one endpoint in the namespace.
type Device interface {
	// Read takes available bytes without blocking; an empty device
	// returns EAGAIN.
	Read(p []byte) (int, error)
	// Write queues bytes without blocking; a full device returns EAGAIN.
	Write(p []byte) (int, error)
	// ReadReady reports whether Read would return data.
	ReadReady() bool
	// WriteReady reports whether Write would accept data.
	WriteReady() bool
	// Attach is called once when the device is added; the device uses
	// notify to report state changes (data arrived, space freed).
	Attach(notify func())
}

// openDev is one backend local descriptor.
type openDev struct {
	name string
	dev  Device
}

// armed is the per select-call notification state handed back to EndSelect
// as the driver args.
type armed struct {
	readfds  *vfs.FdSet
	writefds *vfs.FdSet
	sem      vfs.SelectSem
}

// DevFS is the device namespace. It is registered with the context pointer
// flag; the package level op functions recover it from the ctx argument.
type DevFS struct {
	v *vfs.VFS

	mu      sync.Mutex
	devices map[string]Device
	files   []*openDev
	waiters map[*armed]struct{}
}

// Mount registers a fresh device namespace on v under prefix.
func Mount(v *vfs.VFS, prefix string) (*DevFS, error) {
	d := &DevFS{
		v:       v,
		devices: map[string]Device{},
		waiters: map[*armed]struct{}{},
	}
	_, err := v.Register(prefix, d.ops(), d, vfs.FlagContextPtr)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Add mounts a device under name. The name must not contain "/".
func (d *DevFS) Add(name string, dev Device) error {
	if name == "" || strings.Contains(name, "/") {
		return vfs.EINVAL
	}
	d.mu.Lock()
	if _, ok := d.devices[name]; ok {
		d.mu.Unlock()
		return vfs.EEXIST
	}
	d.devices[name] = dev
	d.mu.Unlock()
	dev.Attach(d.notify)
	return nil
}

// notify is given to every device; it re-checks the armed select calls and
// wakes those whose devices became ready.
func (d *DevFS) notify() {
	d.mu.Lock()
	var wake []vfs.SelectSem
	for a := range d.waiters {
		ready := false
		for fd, of := range d.files {
			if of == nil {
				continue
			}
			if a.readfds != nil && a.readfds.IsSet(fd) && of.dev.ReadReady() {
				ready = true
			}
			if a.writefds != nil && a.writefds.IsSet(fd) && of.dev.WriteReady() {
				ready = true
			}
		}
		if ready {
			wake = append(wake, a.sem)
		}
	}
	d.mu.Unlock()
	for _, s := range wake {
		d.v.SelectTriggered(s)
	}
}

func fromCtx(ctx any) *DevFS {
	return ctx.(*DevFS)
}

func devOpen(ctx any, path string, flags int, mode os.FileMode) (int, error) {
	d := fromCtx(ctx)
	name := strings.TrimPrefix(path, "/")
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[name]
	if !ok {
		return -1, vfs.ENOENT
	}
	of := &openDev{name: name, dev: dev}
	for i, slot := range d.files {
		if slot == nil {
			d.files[i] = of
			return i, nil
		}
	}
	d.files = append(d.files, of)
	return len(d.files) - 1, nil
}

func (d *DevFS) file(fd int) (*openDev, error) {
	if fd < 0 || fd >= len(d.files) || d.files[fd] == nil {
		return nil, vfs.EBADF
	}
	return d.files[fd], nil
}

func devClose(ctx any, fd int) error {
	d := fromCtx(ctx)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.file(fd); err != nil {
		return err
	}
	d.files[fd] = nil
	return nil
}

func devRead(ctx any, fd int, p []byte) (int, error) {
	d := fromCtx(ctx)
	d.mu.Lock()
	of, err := d.file(fd)
	d.mu.Unlock()
	if err != nil {
		return -1, err
	}
	n, err := of.dev.Read(p)
	if n > 0 {
		// space freed, writers may be waiting
		d.notify()
	}
	return n, err
}

func devWrite(ctx any, fd int, p []byte) (int, error) {
	d := fromCtx(ctx)
	d.mu.Lock()
	of, err := d.file(fd)
	d.mu.Unlock()
	if err != nil {
		return -1, err
	}
	n, err := of.dev.Write(p)
	if n > 0 {
		d.notify()
	}
	return n, err
}

func devFstat(ctx any, fd int) (vfs.Stat, error) {
	d := fromCtx(ctx)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.file(fd); err != nil {
		return vfs.Stat{}, err
	}
	return vfs.Stat{Mode: os.ModeDevice}, nil
}

func devFsync(ctx any, fd int) error {
	d := fromCtx(ctx)
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.file(fd)
	return err
}

// ioctl commands understood by every device.
const (
	// IoctlReadReady asks whether a read would return data; the result is
	// stored into the *bool argument.
	IoctlReadReady = iota + 1
	// IoctlWriteReady asks whether a write would accept data.
	IoctlWriteReady
)

func devIoctl(ctx any, fd int, cmd int, args ...any) (int, error) {
	d := fromCtx(ctx)
	d.mu.Lock()
	of, err := d.file(fd)
	d.mu.Unlock()
	if err != nil {
		return -1, err
	}
	if len(args) != 1 {
		return -1, vfs.EINVAL
	}
	out, ok := args[0].(*bool)
	if !ok {
		return -1, vfs.EINVAL
	}
	switch cmd {
	case IoctlReadReady:
		*out = of.dev.ReadReady()
	case IoctlWriteReady:
		*out = of.dev.WriteReady()
	default:
		return -1, vfs.ENOTSUP
	}
	return 0, nil
}

func devStat(ctx any, path string) (vfs.Stat, error) {
	d := fromCtx(ctx)
	if path == "/" {
		return vfs.Stat{Mode: os.ModeDir | 0555}, nil
	}
	name := strings.TrimPrefix(path, "/")
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.devices[name]; !ok {
		return vfs.Stat{}, vfs.ENOENT
	}
	return vfs.Stat{Mode: os.ModeDevice}, nil
}

type devDirStream struct {
	names []string
	pos   int64
}

func devOpendir(ctx any, path string) (*vfs.Dir, error) {
	d := fromCtx(ctx)
	if path != "/" {
		return nil, vfs.ENOTDIR
	}
	d.mu.Lock()
	names := make([]string, 0, len(d.devices))
	for name := range d.devices {
		names = append(names, name)
	}
	d.mu.Unlock()
	sort.Strings(names)
	return &vfs.Dir{Handle: &devDirStream{names: names}}, nil
}

func devReaddir(ctx any, dir *vfs.Dir) (*vfs.Dirent, error) {
	ds, ok := dir.Handle.(*devDirStream)
	if !ok {
		return nil, vfs.EBADF
	}
	if ds.pos >= int64(len(ds.names)) {
		return nil, nil
	}
	ent := &vfs.Dirent{Type: os.ModeDevice, Name: ds.names[ds.pos]}
	ds.pos++
	return ent, nil
}

func devTelldir(ctx any, dir *vfs.Dir) (int64, error) {
	ds, ok := dir.Handle.(*devDirStream)
	if !ok {
		return -1, vfs.EBADF
	}
	return ds.pos, nil
}

func devSeekdir(ctx any, dir *vfs.Dir, loc int64) error {
	ds, ok := dir.Handle.(*devDirStream)
	if !ok {
		return vfs.EBADF
	}
	if loc < 0 || loc > int64(len(ds.names)) {
		return vfs.EINVAL
	}
	ds.pos = loc
	return nil
}

func devClosedir(ctx any, dir *vfs.Dir) error {
	if _, ok := dir.Handle.(*devDirStream); !ok {
		return vfs.EBADF
	}
	dir.Handle = nil
	return nil
}

// startSelect arms notification for this call. Devices that are already
// ready report immediately through the semaphore so no edge is lost.
func (d *DevFS) startSelect(nfds int, readfds, writefds, errorfds *vfs.FdSet, s vfs.SelectSem) (any, error) {
	a := &armed{readfds: readfds, writefds: writefds, sem: s}
	d.mu.Lock()
	d.waiters[a] = struct{}{}
	ready := false
	for fd, of := range d.files {
		if of == nil {
			continue
		}
		if readfds != nil && readfds.IsSet(fd) && of.dev.ReadReady() {
			ready = true
		}
		if writefds != nil && writefds.IsSet(fd) && of.dev.WriteReady() {
			ready = true
		}
	}
	d.mu.Unlock()
	if ready {
		d.v.SelectTriggered(s)
	}
	return a, nil
}

func (d *DevFS) endSelect(args any) error {
	a, ok := args.(*armed)
	if !ok {
		return vfs.EINVAL
	}
	d.mu.Lock()
	delete(d.waiters, a)
	// rewrite the sets to the armed fds whose device is ready now
	if a.readfds != nil {
		old := *a.readfds
		a.readfds.Zero()
		for fd, of := range d.files {
			if of != nil && old.IsSet(fd) && of.dev.ReadReady() {
				a.readfds.Set(fd)
			}
		}
	}
	if a.writefds != nil {
		old := *a.writefds
		a.writefds.Zero()
		for fd, of := range d.files {
			if of != nil && old.IsSet(fd) && of.dev.WriteReady() {
				a.writefds.Set(fd)
			}
		}
	}
	d.mu.Unlock()
	return nil
}

func (d *DevFS) ops() *vfs.Ops {
	return &vfs.Ops{
		OpenCtx:  devOpen,
		CloseCtx: devClose,
		ReadCtx:  devRead,
		WriteCtx: devWrite,
		FstatCtx: devFstat,
		FsyncCtx: devFsync,
		IoctlCtx: devIoctl,
		Dir: &vfs.DirOps{
			StatCtx:     devStat,
			OpendirCtx:  devOpendir,
			ReaddirCtx:  devReaddir,
			TelldirCtx:  devTelldir,
			SeekdirCtx:  devSeekdir,
			ClosedirCtx: devClosedir,
		},
		Select: &vfs.SelectOps{
			StartSelect: d.startSelect,
			EndSelect:   d.endSelect,
		},
	}
}
