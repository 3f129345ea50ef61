package reactor

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Waker interrupts a blocked Run from any goroutine.  It wraps a
// non-blocking eventfd: Wake adds to the counter, making the descriptor
// readable, and Drain resets it from inside the loop.
type Waker struct {
	mu     sync.Mutex
	fd     int
	closed bool
}

// NewWaker creates the eventfd backing a Waker.
func NewWaker() (*Waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &Waker{fd: fd}, nil
}

// Fd returns the descriptor to register with a Loop.
func (w *Waker) Fd() int { return w.fd }

// Wake makes the waker readable.  It is safe for concurrent use and a
// no-op after Close.
func (w *Waker) Wake() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	// EAGAIN means the counter is saturated, which still wakes the loop.
	unix.Write(w.fd, buf[:]) //nolint:errcheck
}

// Drain consumes pending wakeups so the descriptor stops reporting
// readiness.
func (w *Waker) Drain() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	var buf [8]byte
	unix.Read(w.fd, buf[:]) //nolint:errcheck
}

// Close releases the eventfd.  It is safe to call more than once.
func (w *Waker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return unix.Close(w.fd)
}
