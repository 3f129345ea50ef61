// Package shutdown turns asynchronous OS signal delivery into a plain
// callback the rest of the server can act on safely.
//
// The Go runtime's signal handler only enqueues the signal onto the
// channel registered with signal.Notify.  A dedicated waiter goroutine
// receives from that channel outside signal context and invokes the
// callback, which may log, allocate or touch shared state freely.  A
// second channel lets Uninstall wake the waiter without racing a real
// signal.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"telemetry/internal/errors"
)

// DefaultSignals are the signals that stop the server.
var DefaultSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT} //nolint:gochecknoglobals

// Flag is a set-once shutdown marker.  Once set it is never cleared.
type Flag struct {
	set atomic.Bool
}

// Set raises the flag and reports whether this call raised it.
func (f *Flag) Set() bool { return f.set.CompareAndSwap(false, true) }

// IsSet reports whether the flag has been raised.
func (f *Flag) IsSet() bool { return f.set.Load() }

// Coordinator bridges OS signals to a callback.
type Coordinator struct {
	mu        sync.Mutex
	installed bool
	signals   chan os.Signal
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewCoordinator returns an uninstalled Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Install starts delivering the given signals to callback, once per
// received occurrence.  It fails if the coordinator is already
// installed.  callback runs on the waiter goroutine and must not call
// Uninstall.
func (c *Coordinator) Install(sigs []os.Signal, callback func(os.Signal)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.installed {
		return errors.ErrAlreadyInstalled
	}

	c.signals = make(chan os.Signal, 1)
	c.stop = make(chan struct{})
	c.installed = true

	c.wg.Add(1)
	go c.wait(c.signals, c.stop, callback)

	signal.Notify(c.signals, sigs...)
	return nil
}

// Uninstall restores the previous signal disposition, wakes and joins
// the waiter, and releases both channels.  It is idempotent and safe
// on a coordinator that was never installed.
func (c *Coordinator) Uninstall() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.installed {
		return
	}

	signal.Stop(c.signals)
	close(c.stop)
	c.wg.Wait()

	c.signals = nil
	c.stop = nil
	c.installed = false
}

// Installed reports whether signals are currently being delivered.
func (c *Coordinator) Installed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installed
}

func (c *Coordinator) wait(sigs <-chan os.Signal, stop <-chan struct{}, callback func(os.Signal)) {
	defer c.wg.Done()
	for {
		select {
		case <-stop:
			return
		case sig := <-sigs:
			callback(sig)
		}
	}
}
