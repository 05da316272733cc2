// Package sem provides a small bounded counting semaphore with timed
// acquisition, used by the select multiplexer for readiness signalling.
package sem

import "time"

// Semaphore is a counting semaphore bounded at a maximum permit count.
// Releases beyond the bound are dropped rather than accumulated, which is
// what a readiness wakeup wants: N triggers before the waiter runs must
// wake it exactly once.
type Semaphore struct {
	permits chan struct{}
}

// New creates a semaphore with the given maximum and initial permit count.
// It panics if max is not positive, initial is negative or initial exceeds
// max.
func New(max, initial int) *Semaphore {
	if max <= 0 || initial < 0 || initial > max {
		panic("sem: bad permit counts")
	}
	s := &Semaphore{permits: make(chan struct{}, max)}
	for i := 0; i < initial; i++ {
		s.permits <- struct{}{}
	}
	return s
}

// Acquire takes one permit, waiting up to timeout for one to become
// available. A negative timeout waits forever. It reports whether a permit
// was taken.
func (s *Semaphore) Acquire(timeout time.Duration) bool {
	if timeout < 0 {
		<-s.permits
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.permits:
		return true
	case <-t.C:
		return false
	}
}

// TryAcquire takes one permit without blocking and reports whether it did.
func (s *Semaphore) TryAcquire() bool {
	select {
	case <-s.permits:
		return true
	default:
		return false
	}
}

// Release returns one permit. It reports whether the permit was added, or
// false if the semaphore was already at its bound and the release was
// dropped.
func (s *Semaphore) Release() bool {
	select {
	case s.permits <- struct{}{}:
		return true
	default:
		return false
	}
}
