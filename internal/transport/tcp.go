package transport

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"telemetry/internal/errors"
	"telemetry/internal/session"
)

// DefaultBacklog is the listen queue length.
const DefaultBacklog = 128

// DefaultBufferSize is the largest message read in one go; longer
// input is split across reads rather than rejected.
const DefaultBufferSize = 1024

// ── Listener ─────────────────────────────────────────────────────────

// Listener owns a non-blocking listening socket and turns pending
// peers into Connections.
type Listener struct {
	Host       string // bind address; empty binds every interface
	Port       int    // 0 picks an ephemeral port, updated by Start
	Backlog    int
	BufferSize int
	Sessions   *session.Manager

	fd  int
	buf []byte // read buffer shared by every Connection
}

// NewListener returns a Listener that is not yet bound.
func NewListener(host string, port int, sessions *session.Manager) *Listener {
	return &Listener{
		Host:       host,
		Port:       port,
		Backlog:    DefaultBacklog,
		BufferSize: DefaultBufferSize,
		Sessions:   sessions,
		fd:         -1,
	}
}

// Start binds with SO_REUSEADDR, switches to non-blocking mode and
// begins listening.  Failures are *errors.NetworkError values whose
// Privileged field flags a refused low port.
func (l *Listener) Start() error {
	if l.fd >= 0 {
		return nil
	}
	fd, err := openSocket(unix.SOCK_STREAM, l.Host, l.Port)
	if err != nil {
		return err
	}

	backlog := l.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return errors.Wrap("listen", l.Addr(), l.Port, err)
	}

	port, err := boundPort(fd)
	if err != nil {
		unix.Close(fd)
		return errors.Wrap("getsockname", l.Addr(), l.Port, err)
	}

	size := l.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	l.fd = fd
	l.Port = port
	l.buf = make([]byte, size)
	return nil
}

// Fd returns the listening descriptor, or -1 when not started.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the bind address as host:port.
func (l *Listener) Addr() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// AcceptOne accepts a single pending peer.  It returns (nil, nil) when
// nobody is waiting, which is the normal outcome of a spurious or
// already-drained readiness event.
func (l *Listener) AcceptOne() (*Connection, error) {
	if l.fd < 0 {
		return nil, errors.ErrNotStarted
	}
	nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		// ECONNABORTED: the peer gave up while queued.
		if errors.IsWouldBlock(err) || err == unix.ECONNABORTED {
			return nil, nil
		}
		return nil, errors.Wrap("accept", l.Addr(), l.Port, err)
	}

	c := &Connection{
		fd:       nfd,
		peer:     FormatSockaddr(sa),
		state:    StateOpen,
		sessions: l.Sessions,
		buf:      l.buf,
	}
	l.Sessions.Connected()
	return c, nil
}

// Stop closes the listening socket.  Accepted connections are owned by
// the caller and are not touched.
func (l *Listener) Stop() error {
	if l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	return err
}

// ── Connection ───────────────────────────────────────────────────────

// State is a Connection's lifecycle stage.
type State int

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is one accepted stream peer.  It is driven entirely from
// the reactor goroutine and is not safe for concurrent use.
type Connection struct {
	fd       int
	peer     string
	state    State
	sessions *session.Manager
	buf      []byte

	onMessage func(c *Connection, msg string)
	onClose   func(c *Connection)
}

// Fd returns the socket descriptor, or -1 once closed.
func (c *Connection) Fd() int { return c.fd }

// Peer returns the remote address as host:port.
func (c *Connection) Peer() string { return c.peer }

// State returns the lifecycle stage.
func (c *Connection) State() State { return c.state }

// OnMessage sets the function that receives each inbound message,
// trailing whitespace already stripped.
func (c *Connection) OnMessage(fn func(c *Connection, msg string)) { c.onMessage = fn }

// OnClose sets the function invoked while closing, before the
// descriptor is released, so the owner can unregister it.
func (c *Connection) OnClose(fn func(c *Connection)) { c.onClose = fn }

// HandleRead performs one non-blocking read.  End of stream closes the
// connection and returns nil; a read fault closes it and returns the
// fault; would-block is a no-op.
func (c *Connection) HandleRead() error {
	if c.state != StateOpen {
		return nil
	}

	n, err := unix.Read(c.fd, c.buf)
	switch {
	case err != nil && errors.IsWouldBlock(err):
		return nil
	case err != nil:
		werr := errors.Wrap("read", c.peer, 0, err)
		c.sessions.IOError()
		c.Close()
		return werr
	case n == 0:
		c.Close()
		return nil
	}

	c.sessions.BytesReceived(n)
	if c.onMessage != nil {
		c.onMessage(c, trimMessage(c.buf[:n]))
	}
	return nil
}

// Send makes one best-effort write.  Nothing is buffered or retried: a
// full socket buffer or a short write loses the remainder and is
// reported to the caller; any other fault also closes the connection.
func (c *Connection) Send(msg string) error {
	if c.state != StateOpen {
		return errors.ErrClosed
	}

	n, err := unix.SendmsgN(c.fd, []byte(msg), nil, nil, unix.MSG_NOSIGNAL)
	c.sessions.BytesSent(n)
	switch {
	case err != nil && errors.IsWouldBlock(err):
		return errors.Wrap("write", c.peer, 0, err)
	case err != nil:
		werr := errors.Wrap("write", c.peer, 0, err)
		c.sessions.IOError()
		c.Close()
		return werr
	case n < len(msg):
		return errors.Wrap("write", c.peer, 0,
			fmt.Errorf("%w: %d of %d bytes", io.ErrShortWrite, n, len(msg)))
	}
	return nil
}

// Close moves the connection to Closed.  It decrements the current
// connection count, runs the close notification and releases the
// descriptor, each exactly once; later calls do nothing.
func (c *Connection) Close() {
	if c.state != StateOpen {
		return
	}
	c.state = StateClosing

	c.sessions.Disconnected()
	if c.onClose != nil {
		c.onClose(c)
	}

	unix.Close(c.fd) //nolint:errcheck
	c.fd = -1
	c.state = StateClosed
}
