package sockline

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// parsePort parses a decimal port string.
func parsePort(port string) (int, error) {
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidAddress, "invalid port %q", port)
	}

	return int(p), nil
}

// sockaddr builds an IPv4 socket address from a dotted-quad host and a
// decimal port.
func sockaddr(host, port string) (*unix.SockaddrInet4, error) {
	p, err := parsePort(port)
	if err != nil {
		return nil, err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, errors.Wrapf(ErrInvalidAddress, "invalid IPv4 address %q", host)
	}

	ip4 := ip.To4()
	if ip4 == nil {
		return nil, errors.Wrapf(ErrInvalidAddress, "address %q is not IPv4", host)
	}

	sa := &unix.SockaddrInet4{Port: p}
	copy(sa.Addr[:], ip4)

	return sa, nil
}

// anyAddr returns the wildcard bind address for port.
func anyAddr(port string) (*unix.SockaddrInet4, error) {
	p, err := parsePort(port)
	if err != nil {
		return nil, err
	}

	return &unix.SockaddrInet4{Port: p}, nil
}

// formatAddr renders an IPv4 socket address as host:port.
func formatAddr(sa *unix.SockaddrInet4) string {
	if sa == nil {
		return ""
	}

	return net.JoinHostPort(net.IP(sa.Addr[:]).String(), strconv.Itoa(sa.Port))
}
