// Package reactor is the single-threaded readiness multiplexer at the
// heart of the server.  A Loop owns one epoll instance and a table of
// callbacks keyed by file descriptor; Run blocks in epoll_wait once and
// synchronously dispatches every ready descriptor.
//
// A Loop is not safe for concurrent use.  Everything except Waker.Wake
// must be called from the goroutine that calls Run.
package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"telemetry/internal/errors"
)

// Events is a readiness mask as reported by epoll.
type Events uint32

const (
	Readable Events = unix.EPOLLIN
	Writable Events = unix.EPOLLOUT
	PeerHup  Events = unix.EPOLLRDHUP
	Hangup   Events = unix.EPOLLHUP
	Error    Events = unix.EPOLLERR
)

// Has reports whether any bit of want is set in e.
func (e Events) Has(want Events) bool { return e&want != 0 }

// Callback receives the events observed for its descriptor.
type Callback func(ev Events)

// DefaultMaxEvents bounds how many ready descriptors one Run reports.
const DefaultMaxEvents = 64

type registration struct {
	cb   Callback
	pass uint64 // dispatch pass during which the descriptor was added
}

// Loop multiplexes readiness over registered descriptors.  It never
// owns the descriptors themselves: callers close them, and must
// Unregister before or immediately after doing so.
type Loop struct {
	epfd   int
	regs   map[int]*registration
	events []unix.EpollEvent
	pass   uint64
}

// New creates a Loop backed by a fresh epoll instance.  maxEvents <= 0
// selects DefaultMaxEvents.
func New(maxEvents int) (*Loop, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &Loop{
		epfd:   epfd,
		regs:   make(map[int]*registration),
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Register starts watching fd for the given interest set.  It fails if
// fd is already registered or if the kernel rejects the registration.
func (l *Loop) Register(fd int, interest Events, cb Callback) error {
	if l.epfd < 0 {
		return errors.ErrClosed
	}
	if _, ok := l.regs[fd]; ok {
		return fmt.Errorf("register fd %d: %w", fd, errors.ErrAlreadyRegistered)
	}
	ev := unix.EpollEvent{Events: uint32(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("register fd %d: %w", fd, err)
	}
	l.regs[fd] = &registration{cb: cb, pass: l.pass}
	return nil
}

// Modify replaces the interest set of a registered descriptor.  It
// returns false if fd was never registered or the kernel refused.
func (l *Loop) Modify(fd int, interest Events) bool {
	if _, ok := l.regs[fd]; !ok {
		return false
	}
	ev := unix.EpollEvent{Events: uint32(interest), Fd: int32(fd)}
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &ev) == nil
}

// Unregister stops watching fd.  Unknown descriptors are ignored.
func (l *Loop) Unregister(fd int) {
	if _, ok := l.regs[fd]; !ok {
		return
	}
	delete(l.regs, fd)
	// The descriptor may already be closed, in which case the kernel
	// dropped it from the interest list on its own.
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil) //nolint:errcheck
}

// Registered reports whether fd is currently registered.
func (l *Loop) Registered(fd int) bool {
	_, ok := l.regs[fd]
	return ok
}

// Len returns the number of registered descriptors.
func (l *Loop) Len() int { return len(l.regs) }

// Run waits up to timeout for readiness and dispatches each ready
// descriptor's callback once.  A negative timeout blocks indefinitely.
// An interrupted wait is reported as "no events".
//
// Callbacks may Register and Unregister freely.  A descriptor removed
// during the pass is not dispatched afterwards; a descriptor added
// during the pass (even one reusing a just-closed fd number) is first
// dispatched by the next Run.
func (l *Loop) Run(timeout time.Duration) error {
	if l.epfd < 0 {
		return errors.ErrClosed
	}

	l.pass++
	n, err := unix.EpollWait(l.epfd, l.events, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		fd := int(l.events[i].Fd)
		reg, ok := l.regs[fd]
		if !ok || reg.pass == l.pass {
			continue
		}
		reg.cb(Events(l.events[i].Events))
	}
	return nil
}

// Close releases the epoll instance and forgets every registration.
// It is safe to call more than once.
func (l *Loop) Close() error {
	if l.epfd < 0 {
		return nil
	}
	err := unix.Close(l.epfd)
	l.epfd = -1
	l.regs = make(map[int]*registration)
	return err
}

func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		ms = 1
	}
	return int(ms)
}
