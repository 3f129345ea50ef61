// Package errors provides domain-specific error types for telemetryd.
//
// These types carry structured context (operation, address, whether a
// privileged port was involved) so that startup faults can be reported
// to the operator precisely and per-connection faults can be told apart
// from the transient would-block conditions a non-blocking reactor sees
// all the time.
package errors

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrAlreadyRegistered = errors.New("descriptor already registered")
	ErrAlreadyInstalled  = errors.New("signal coordinator already installed")
	ErrNotStarted        = errors.New("not started")
	ErrClosed            = errors.New("use of closed descriptor")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a socket operation.
type NetworkError struct {
	Op         string // "socket", "setsockopt", "bind", "listen", "nonblock", "accept", "read", "write"
	Addr       string // network address involved
	Err        error  // underlying error
	Privileged bool   // bind was refused on a port below 1024
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Privileged {
		s += " (privileged port, run as root or pick a port >= 1024)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError.  A bind refused with EACCES or EPERM on
// a port below 1024 is flagged as a privileged-port failure.
func Wrap(op, addr string, port int, err error) *NetworkError {
	return &NetworkError{
		Op:         op,
		Addr:       addr,
		Err:        err,
		Privileged: op == "bind" && port > 0 && port < 1024 && isPermission(err),
	}
}

// ── Classification helpers ───────────────────────────────────────────

// IsWouldBlock reports whether err is the transient condition a
// non-blocking socket returns when no data (or no peer) is pending.
func IsWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINTR)
}

// IsPrivileged reports whether err is a bind failure on a privileged
// port.
func IsPrivileged(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Privileged
	}
	return false
}

func isPermission(err error) bool {
	return errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM)
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use telemetry/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
