package devfs

import (
	"sync"

	"github.com/vfsmux/vfsmux/vfs"
)

// Pipe is a bounded in-memory byte fifo device. The consumer side is the
// file API (Read); the producer side is Feed, standing in for the
// interrupt handler of a real peripheral.
type Pipe struct {
	mu     sync.Mutex
	buf    []byte
	max    int
	notify func()
}

// NewPipe creates a fifo holding at most max bytes.
func NewPipe(max int) *Pipe {
	if max <= 0 {
		max = 256
	}
	return &Pipe{max: max}
}

// Attach implements Device.
func (p *Pipe) Attach(notify func()) {
	p.mu.Lock()
	p.notify = notify
	p.mu.Unlock()
}

// Read drains up to len(p) buffered bytes.
func (p *Pipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.buf) == 0 {
		p.mu.Unlock()
		return 0, vfs.EAGAIN
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	notify := p.notify
	p.mu.Unlock()
	if notify != nil {
		notify() // space freed
	}
	return n, nil
}

// Write queues bytes for the consumer, up to the fifo bound.
func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	space := p.max - len(p.buf)
	if space == 0 {
		p.mu.Unlock()
		return 0, vfs.EAGAIN
	}
	if len(b) > space {
		b = b[:space]
	}
	p.buf = append(p.buf, b...)
	notify := p.notify
	p.mu.Unlock()
	if notify != nil {
		notify() // data arrived
	}
	return len(b), nil
}

// Feed is Write for the device side producer.
func (p *Pipe) Feed(b []byte) (int, error) {
	return p.Write(b)
}

// ReadReady implements Device.
func (p *Pipe) ReadReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf) > 0
}

// WriteReady implements Device.
func (p *Pipe) WriteReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf) < p.max
}

// Len returns the number of buffered bytes.
func (p *Pipe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

var _ Device = (*Pipe)(nil)
