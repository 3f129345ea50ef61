package transport

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"telemetry/internal/errors"
)

// inet4 builds an IPv4 socket address.  An empty host binds every
// interface.
func inet4(host string, port int) (*unix.SockaddrInet4, error) {
	sa := &unix.SockaddrInet4{Port: port}
	if host == "" {
		return sa, nil
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return nil, fmt.Errorf("%q is not an IPv4 address", host)
	}
	copy(sa.Addr[:], ip)
	return sa, nil
}

// FormatSockaddr renders a socket address as host:port.
func FormatSockaddr(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", sa)
	}
}

// boundPort returns the local port a socket ended up on.
func boundPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	if a, ok := sa.(*unix.SockaddrInet4); ok {
		return a.Port, nil
	}
	return 0, fmt.Errorf("unexpected socket address %T", sa)
}

// openSocket creates a non-blocking IPv4 socket bound to host:port with
// SO_REUSEADDR set.  On failure nothing is left open.
func openSocket(typ int, host string, port int) (int, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	sa, err := inet4(host, port)
	if err != nil {
		return -1, errors.Wrap("resolve", addr, port, err)
	}

	fd, err := unix.Socket(unix.AF_INET, typ|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Wrap("socket", addr, port, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap("setsockopt", addr, port, err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap("bind", addr, port, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap("nonblock", addr, port, err)
	}
	return fd, nil
}
