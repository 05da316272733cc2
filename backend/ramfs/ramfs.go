// Package ramfs provides an in-memory filesystem backend.
package ramfs

import (
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vfsmux/vfsmux/vfs"
	"github.com/vfsmux/vfsmux/vfs/vfscommon"
)

// node is one file or directory in the tree. A hard link is a second
// directory entry pointing at the same node.
type node struct {
	mode     os.FileMode
	data     []byte
	children map[string]*node // nil for files
	ino      uint64
	nlink    int
	atime    time.Time
	mtime    time.Time
	ctime    time.Time
}

func (n *node) isDir() bool {
	return n.children != nil
}

// openFile is one entry of the backend local descriptor table.
type openFile struct {
	n      *node
	flags  int
	offset int64
}

// dirStream is the state behind a vfs.Dir handle: a name-sorted snapshot
// of the directory taken at opendir time.
type dirStream struct {
	entries []vfs.Dirent
	pos     int64
}

// Fs is an in-memory filesystem. One mutex guards the tree and the local
// descriptor table; everything here is short and CPU only.
type Fs struct {
	mu    sync.Mutex
	root  *node
	files []*openFile // local fd table, indexed by local fd
	ino   uint64
}

// New creates an empty filesystem.
func New() *Fs {
	f := &Fs{}
	f.root = f.newNode(os.ModeDir | 0777)
	return f
}

// Mount registers the filesystem on v under prefix and returns it.
func Mount(v *vfs.VFS, prefix string) (*Fs, error) {
	f := New()
	_, err := v.Register(prefix, f.Ops(), nil, vfs.FlagDefault)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fs) newNode(mode os.FileMode) *node {
	f.ino++
	now := time.Now()
	n := &node{
		mode:  mode,
		ino:   f.ino,
		nlink: 1,
		atime: now,
		mtime: now,
		ctime: now,
	}
	if mode.IsDir() {
		n.children = map[string]*node{}
	}
	return n
}

// split breaks a backend relative path ("/a/b", "/") into segments.
func split(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// lookup walks to the node at path. Call with mu held.
func (f *Fs) lookup(path string) (*node, error) {
	n := f.root
	for _, seg := range split(path) {
		if !n.isDir() {
			return nil, vfs.ENOTDIR
		}
		child, ok := n.children[seg]
		if !ok {
			return nil, vfs.ENOENT
		}
		n = child
	}
	return n, nil
}

// lookupParent walks to the directory containing path and returns it with
// the leaf name. Call with mu held.
func (f *Fs) lookupParent(path string) (*node, string, error) {
	segs := split(path)
	if len(segs) == 0 {
		return nil, "", vfs.EINVAL
	}
	n := f.root
	for _, seg := range segs[:len(segs)-1] {
		if !n.isDir() {
			return nil, "", vfs.ENOTDIR
		}
		child, ok := n.children[seg]
		if !ok {
			return nil, "", vfs.ENOENT
		}
		n = child
	}
	if !n.isDir() {
		return nil, "", vfs.ENOTDIR
	}
	return n, segs[len(segs)-1], nil
}

// allocFd claims the lowest free slot of the local fd table. Call with mu
// held.
func (f *Fs) allocFd(of *openFile) int {
	for i, slot := range f.files {
		if slot == nil {
			f.files[i] = of
			return i
		}
	}
	f.files = append(f.files, of)
	return len(f.files) - 1
}

// file returns the open file for a local fd. Call with mu held.
func (f *Fs) file(fd int) (*openFile, error) {
	if fd < 0 || fd >= len(f.files) || f.files[fd] == nil {
		return nil, vfs.EBADF
	}
	return f.files[fd], nil
}

func (f *Fs) open(path string, flags int, mode os.FileMode) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookup(path)
	switch {
	case err == nil:
		if flags&os.O_CREATE != 0 && flags&os.O_EXCL != 0 {
			return -1, vfs.EEXIST
		}
		if n.isDir() && flags&3 != os.O_RDONLY {
			return -1, vfs.EINVAL
		}
	case err == error(vfs.ENOENT) && flags&os.O_CREATE != 0:
		parent, name, perr := f.lookupParent(path)
		if perr != nil {
			return -1, perr
		}
		n = f.newNode(mode &^ os.ModeDir)
		parent.children[name] = n
		parent.mtime = time.Now()
	default:
		return -1, err
	}

	if flags&os.O_TRUNC != 0 && !n.isDir() {
		n.data = nil
		n.mtime = time.Now()
	}
	of := &openFile{n: n, flags: flags}
	if flags&os.O_APPEND != 0 {
		of.offset = int64(len(n.data))
	}
	return f.allocFd(of), nil
}

func (f *Fs) close(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.file(fd); err != nil {
		return err
	}
	f.files[fd] = nil
	return nil
}

func (f *Fs) read(fd int, p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	of, err := f.file(fd)
	if err != nil {
		return -1, err
	}
	n := copy(p, of.n.data[min64(of.offset, int64(len(of.n.data))):])
	of.offset += int64(n)
	of.n.atime = time.Now()
	return n, nil
}

func (f *Fs) pread(fd int, p []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	of, err := f.file(fd)
	if err != nil {
		return -1, err
	}
	if offset < 0 {
		return -1, vfs.EINVAL
	}
	n := copy(p, of.n.data[min64(offset, int64(len(of.n.data))):])
	return n, nil
}

func (f *Fs) writeLocked(of *openFile, p []byte, offset int64) int {
	end := offset + int64(len(p))
	if int64(len(of.n.data)) < end {
		grown := make([]byte, end)
		copy(grown, of.n.data)
		of.n.data = grown
	}
	copy(of.n.data[offset:], p)
	of.n.mtime = time.Now()
	return len(p)
}

func (f *Fs) write(fd int, p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	of, err := f.file(fd)
	if err != nil {
		return -1, err
	}
	if of.flags&3 == os.O_RDONLY {
		return -1, vfs.EBADF
	}
	if of.flags&os.O_APPEND != 0 {
		of.offset = int64(len(of.n.data))
	}
	n := f.writeLocked(of, p, of.offset)
	of.offset += int64(n)
	return n, nil
}

func (f *Fs) pwrite(fd int, p []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	of, err := f.file(fd)
	if err != nil {
		return -1, err
	}
	if of.flags&3 == os.O_RDONLY || offset < 0 {
		return -1, vfs.EINVAL
	}
	return f.writeLocked(of, p, offset), nil
}

func (f *Fs) lseek(fd int, offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	of, err := f.file(fd)
	if err != nil {
		return -1, err
	}
	var base int64
	switch whence {
	case 0: // SEEK_SET
		base = 0
	case 1: // SEEK_CUR
		base = of.offset
	case 2: // SEEK_END
		base = int64(len(of.n.data))
	default:
		return -1, vfs.EINVAL
	}
	if base+offset < 0 {
		return -1, vfs.EINVAL
	}
	of.offset = base + offset
	return of.offset, nil
}

func statNode(n *node) vfs.Stat {
	return vfs.Stat{
		Size:  int64(len(n.data)),
		Mode:  n.mode,
		Ino:   n.ino,
		Nlink: n.nlink,
		Atime: n.atime,
		Mtime: n.mtime,
		Ctime: n.ctime,
	}
}

func (f *Fs) fstat(fd int) (vfs.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	of, err := f.file(fd)
	if err != nil {
		return vfs.Stat{}, err
	}
	return statNode(of.n), nil
}

func (f *Fs) fsync(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.file(fd)
	return err
}

func (f *Fs) fcntl(fd int, cmd int, arg int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	of, err := f.file(fd)
	if err != nil {
		return -1, err
	}
	const fGetFl = 3 // F_GETFL
	if cmd == fGetFl {
		return of.flags, nil
	}
	return -1, vfs.ENOTSUP
}

func (f *Fs) stat(path string) (vfs.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.lookup(path)
	if err != nil {
		return vfs.Stat{}, err
	}
	return statNode(n), nil
}

func (f *Fs) link(oldpath, newpath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.lookup(oldpath)
	if err != nil {
		return err
	}
	if n.isDir() {
		return vfs.EINVAL
	}
	parent, name, err := f.lookupParent(newpath)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return vfs.EEXIST
	}
	parent.children[name] = n
	n.nlink++
	parent.mtime = time.Now()
	return nil
}

func (f *Fs) unlink(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, name, err := f.lookupParent(path)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return vfs.ENOENT
	}
	if n.isDir() {
		return vfs.EINVAL
	}
	delete(parent.children, name)
	n.nlink--
	parent.mtime = time.Now()
	return nil
}

func (f *Fs) rename(src, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	srcParent, srcName, err := f.lookupParent(src)
	if err != nil {
		return err
	}
	n, ok := srcParent.children[srcName]
	if !ok {
		return vfs.ENOENT
	}
	dstParent, dstName, err := f.lookupParent(dst)
	if err != nil {
		return err
	}
	if existing, ok := dstParent.children[dstName]; ok {
		if existing.isDir() {
			return vfs.EEXIST
		}
	}
	delete(srcParent.children, srcName)
	dstParent.children[dstName] = n
	now := time.Now()
	srcParent.mtime = now
	dstParent.mtime = now
	return nil
}

func (f *Fs) opendir(path string) (*vfs.Dir, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.lookup(path)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, vfs.ENOTDIR
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]vfs.Dirent, len(names))
	for i, name := range names {
		child := n.children[name]
		if len(name) > vfscommon.DirentNameSize {
			name = name[:vfscommon.DirentNameSize]
		}
		entries[i] = vfs.Dirent{
			Ino:  child.ino,
			Type: child.mode & os.ModeDir,
			Name: name,
		}
	}
	return &vfs.Dir{Handle: &dirStream{entries: entries}}, nil
}

func stream(dir *vfs.Dir) (*dirStream, error) {
	ds, ok := dir.Handle.(*dirStream)
	if !ok {
		return nil, vfs.EBADF
	}
	return ds, nil
}

func (f *Fs) readdir(dir *vfs.Dir) (*vfs.Dirent, error) {
	ds, err := stream(dir)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ds.pos >= int64(len(ds.entries)) {
		return nil, nil
	}
	ent := ds.entries[ds.pos]
	ds.pos++
	return &ent, nil
}

func (f *Fs) readdirR(dir *vfs.Dir, ent *vfs.Dirent) (*vfs.Dirent, error) {
	next, err := f.readdir(dir)
	if err != nil || next == nil {
		return nil, err
	}
	*ent = *next
	return ent, nil
}

func (f *Fs) telldir(dir *vfs.Dir) (int64, error) {
	ds, err := stream(dir)
	if err != nil {
		return -1, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return ds.pos, nil
}

func (f *Fs) seekdir(dir *vfs.Dir, loc int64) error {
	ds, err := stream(dir)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if loc < 0 || loc > int64(len(ds.entries)) {
		return vfs.EINVAL
	}
	ds.pos = loc
	return nil
}

func (f *Fs) closedir(dir *vfs.Dir) error {
	ds, err := stream(dir)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ds.entries = nil
	ds.pos = 0
	return nil
}

func (f *Fs) mkdir(path string, mode os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, name, err := f.lookupParent(path)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return vfs.EEXIST
	}
	parent.children[name] = f.newNode(os.ModeDir | mode)
	parent.mtime = time.Now()
	return nil
}

func (f *Fs) rmdir(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, name, err := f.lookupParent(path)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return vfs.ENOENT
	}
	if !n.isDir() {
		return vfs.ENOTDIR
	}
	if len(n.children) != 0 {
		return vfs.ENOTEMPTY
	}
	delete(parent.children, name)
	parent.mtime = time.Now()
	return nil
}

func (f *Fs) access(path string, amode int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.lookup(path)
	return err
}

func (f *Fs) truncateLocked(n *node, length int64) error {
	if length < 0 {
		return vfs.EINVAL
	}
	if n.isDir() {
		return vfs.EINVAL
	}
	if int64(len(n.data)) > length {
		n.data = n.data[:length]
	} else {
		grown := make([]byte, length)
		copy(grown, n.data)
		n.data = grown
	}
	n.mtime = time.Now()
	return nil
}

func (f *Fs) truncate(path string, length int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.lookup(path)
	if err != nil {
		return err
	}
	return f.truncateLocked(n, length)
}

func (f *Fs) ftruncate(fd int, length int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	of, err := f.file(fd)
	if err != nil {
		return err
	}
	return f.truncateLocked(of.n, length)
}

func (f *Fs) utime(path string, atime, mtime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.lookup(path)
	if err != nil {
		return err
	}
	n.atime = atime
	n.mtime = mtime
	return nil
}

// Ops returns the operation set to register with a dispatcher.
func (f *Fs) Ops() *vfs.Ops {
	return &vfs.Ops{
		Open:   f.open,
		Close:  f.close,
		Read:   f.read,
		Write:  f.write,
		Pread:  f.pread,
		Pwrite: f.pwrite,
		Lseek:  f.lseek,
		Fstat:  f.fstat,
		Fcntl:  f.fcntl,
		Fsync:  f.fsync,
		Dir: &vfs.DirOps{
			Stat:      f.stat,
			Link:      f.link,
			Unlink:    f.unlink,
			Rename:    f.rename,
			Opendir:   f.opendir,
			Readdir:   f.readdir,
			ReaddirR:  f.readdirR,
			Telldir:   f.telldir,
			Seekdir:   f.seekdir,
			Closedir:  f.closedir,
			Mkdir:     f.mkdir,
			Rmdir:     f.rmdir,
			Access:    f.access,
			Truncate:  f.truncate,
			Ftruncate: f.ftruncate,
			Utime:     f.utime,
		},
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
