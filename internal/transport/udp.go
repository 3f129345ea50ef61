package transport

import (
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"telemetry/internal/errors"
	"telemetry/internal/session"
)

// trailingSpace is stripped from the end of every inbound message.
const trailingSpace = " \t\n\r\f\v"

func trimMessage(b []byte) string {
	return strings.TrimRight(string(b), trailingSpace)
}

// Endpoint is one bound, non-blocking datagram socket.  Every datagram
// is a self-contained request; nothing is remembered between them.
type Endpoint struct {
	Host       string
	Port       int
	BufferSize int
	Sessions   *session.Manager

	fd  int
	buf []byte
}

// NewEndpoint returns an Endpoint that is not yet bound.
func NewEndpoint(host string, port int, sessions *session.Manager) *Endpoint {
	return &Endpoint{
		Host:       host,
		Port:       port,
		BufferSize: DefaultBufferSize,
		Sessions:   sessions,
		fd:         -1,
	}
}

// Start binds the socket and switches it to non-blocking mode.
func (e *Endpoint) Start() error {
	if e.fd >= 0 {
		return nil
	}
	fd, err := openSocket(unix.SOCK_DGRAM, e.Host, e.Port)
	if err != nil {
		return err
	}
	port, err := boundPort(fd)
	if err != nil {
		unix.Close(fd)
		return errors.Wrap("getsockname", e.Addr(), e.Port, err)
	}

	size := e.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	e.fd = fd
	e.Port = port
	e.buf = make([]byte, size)
	return nil
}

// Fd returns the socket descriptor, or -1 when not started.
func (e *Endpoint) Fd() int { return e.fd }

// Addr returns the bind address as host:port.
func (e *Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ReceiveOne reads a single pending datagram.  ok is false when none is
// queued.  Datagrams longer than the buffer are truncated.
func (e *Endpoint) ReceiveOne() (msg string, from unix.Sockaddr, ok bool, err error) {
	if e.fd < 0 {
		return "", nil, false, errors.ErrNotStarted
	}
	n, from, err := unix.Recvfrom(e.fd, e.buf, 0)
	if err != nil {
		if errors.IsWouldBlock(err) {
			return "", nil, false, nil
		}
		e.Sessions.IOError()
		return "", nil, false, errors.Wrap("recvfrom", e.Addr(), e.Port, err)
	}
	e.Sessions.DatagramReceived(n)
	return trimMessage(e.buf[:n]), from, true, nil
}

// SendTo sends msg as one datagram.  Failures are returned for the
// caller to report; nothing is retried.
func (e *Endpoint) SendTo(msg string, to unix.Sockaddr) error {
	if e.fd < 0 {
		return errors.ErrNotStarted
	}
	if err := unix.Sendto(e.fd, []byte(msg), unix.MSG_NOSIGNAL, to); err != nil {
		e.Sessions.IOError()
		return errors.Wrap("sendto", FormatSockaddr(to), 0, err)
	}
	e.Sessions.BytesSent(len(msg))
	return nil
}

// Stop closes the socket.
func (e *Endpoint) Stop() error {
	if e.fd < 0 {
		return nil
	}
	err := unix.Close(e.fd)
	e.fd = -1
	return err
}
