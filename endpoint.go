// Package sockline wraps raw IPv4 stream and datagram sockets behind small,
// role-checked endpoints that send and receive typed payloads: strings,
// slices of fixed-size elements, and fixed-layout values.
//
// Every operation maps to a single blocking OS call. The package adds no
// framing, no retransmission, no timeouts and no multiplexing on top of what
// the transport protocol itself provides; message boundaries are exactly the
// syscall boundaries. An endpoint is meant to be driven by one goroutine at a
// time, with the caller owning any serialization beyond that.
package sockline

import (
	"github.com/pkg/errors"
	"github.com/sockline/sockline/log"
	"golang.org/x/sys/unix"
)

// endpoint holds the descriptor and address state shared by both transports.
// The descriptor is owned exclusively by one endpoint and released exactly
// once; afterwards the -1 sentinel keeps further closes a no-op.
type endpoint struct {
	fd   int
	role Role
	addr *unix.SockaddrInet4
}

// newSocket creates an IPv4 socket of the given type, either
// unix.SOCK_STREAM or unix.SOCK_DGRAM.
func newSocket(typ int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, typ|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, opError(OpSocket, err)
	}

	return fd, nil
}

func (e *endpoint) closed() bool {
	return e.fd < 0
}

// close releases the descriptor. Safe to call more than once.
func (e *endpoint) close() error {
	if e.closed() {
		return nil
	}

	fd := e.fd
	e.fd = -1

	if err := unix.Close(fd); err != nil {
		return errors.Wrap(err, "failed to close socket")
	}

	log.Debug().Int("fd", fd).Stringer("role", e.role).Msg("Endpoint closed.")

	return nil
}

// bind attaches the endpoint to all local interfaces on its configured port.
// The socket is marked reusable first so a restarted process can take the
// port back without waiting out TIME_WAIT.
func (e *endpoint) bind() error {
	if err := unix.SetsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return opError(OpBind, err)
	}

	if err := unix.Bind(e.fd, e.addr); err != nil {
		return opError(OpBind, err)
	}

	// binding port 0 makes the kernel pick a real port; keep the configured
	// address in step so later sends target the port actually bound
	sa, err := unix.Getsockname(e.fd)
	if err != nil {
		return opError(OpBind, err)
	}

	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		e.addr.Port = in4.Port
	}

	return nil
}

// localPort reads the port the endpoint is actually bound to, which is only
// known after binding port 0.
func (e *endpoint) localPort() (int, error) {
	if e.closed() {
		return 0, errors.WithStack(ErrClosed)
	}

	sa, err := unix.Getsockname(e.fd)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read bound address")
	}

	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, errors.Errorf("unexpected socket address family %T", sa)
	}

	return in4.Port, nil
}
