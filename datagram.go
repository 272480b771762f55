package sockline

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sockline/sockline/log"
	"github.com/sockline/sockline/payload"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"
)

var _ io.ReadWriteCloser = (*Datagram)(nil)

// Datagram is a connectionless (UDP) endpoint. Unlike Stream, both roles may
// send and receive; there is no accept step and no OS-level connection.
//
// Every send is one discrete datagram addressed to the endpoint's configured
// address: the peer given at construction for RoleClient, the constructor
// address for RoleServer. A server that needs to answer its callers should
// learn their address through RecvFrom and point a RoleClient endpoint at it.
// Datagrams are independent units with no delivery or ordering guarantee, and
// a datagram larger than the receive capacity is silently truncated to it,
// the remainder discarded.
type Datagram struct {
	e endpoint
}

// NewDatagram creates a datagram endpoint. A RoleServer endpoint binds to
// all local interfaces on port and ignores host; a RoleClient endpoint
// records host:port as the destination of every send without any handshake.
func NewDatagram(host, port string, role Role) (*Datagram, error) {
	var sa *unix.SockaddrInet4
	var err error

	switch role {
	case RoleServer:
		sa, err = anyAddr(port)
	case RoleClient:
		sa, err = sockaddr(host, port)
	default:
		return nil, errors.Wrapf(ErrRoleViolation, "datagram endpoints are client or server, have %s", role)
	}

	if err != nil {
		return nil, err
	}

	fd, err := newSocket(unix.SOCK_DGRAM)
	if err != nil {
		return nil, err
	}

	d := &Datagram{e: endpoint{fd: fd, role: role, addr: sa}}

	if role == RoleServer {
		if err := d.e.bind(); err != nil {
			_ = d.e.close()
			return nil, err
		}
	}

	log.Debug().Stringer("role", role).Int("fd", fd).Msg("Datagram endpoint ready.")

	return d, nil
}

// Write sends p as one datagram to the configured address. The whole
// datagram is handed to the OS in a single attempt.
func (d *Datagram) Write(p []byte) (int, error) {
	if d.e.closed() {
		return 0, errors.WithStack(ErrClosed)
	}

	return d.write(p)
}

// Read receives one datagram, or its first len(p) bytes if it is larger,
// returning the number of bytes actually read.
func (d *Datagram) Read(p []byte) (int, error) {
	if d.e.closed() {
		return 0, errors.WithStack(ErrClosed)
	}

	return d.read(p)
}

// RecvFrom behaves like Read and additionally reports the sender's
// host:port, for servers that need to know who is talking to them.
func (d *Datagram) RecvFrom(p []byte) (int, string, error) {
	if d.e.closed() {
		return 0, "", errors.WithStack(ErrClosed)
	}

	n, sa, err := unix.Recvfrom(d.e.fd, p, 0)
	if err != nil {
		return 0, "", opError(OpRead, err)
	}

	var from string
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		from = formatAddr(in4)
	}

	return n, from, nil
}

// SendBytes transmits p as one datagram, the typed counterpart of Write for
// raw byte sequences.
func (d *Datagram) SendBytes(p []byte) (int, error) {
	if d.e.closed() {
		return 0, errors.WithStack(ErrClosed)
	}

	return d.write(p)
}

// RecvBytes receives one datagram of at most capacity bytes, returning it as
// a right-sized slice.
func (d *Datagram) RecvBytes(capacity int) ([]byte, error) {
	if d.e.closed() {
		return nil, errors.WithStack(ErrClosed)
	}

	buf := make([]byte, capacity)

	n, err := d.read(buf)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

// SendString transmits str plus a single terminator byte as one datagram.
func (d *Datagram) SendString(str string) (int, error) {
	if d.e.closed() {
		return 0, errors.WithStack(ErrClosed)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = payload.AppendString(buf.B, str)

	return d.write(buf.B)
}

// SendValue transmits the raw little-endian bytes of a fixed-layout value,
// or a slice of them, as one datagram.
func (d *Datagram) SendValue(v interface{}) (int, error) {
	if d.e.closed() {
		return 0, errors.WithStack(ErrClosed)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	b, err := payload.AppendValue(buf.B, v)
	if err != nil {
		return 0, err
	}
	buf.B = b

	return d.write(buf.B)
}

// RecvString receives one datagram of at most capacity bytes and decodes it
// as a terminator-delimited string.
func (d *Datagram) RecvString(capacity int) (string, error) {
	if d.e.closed() {
		return "", errors.WithStack(ErrClosed)
	}

	buf := make([]byte, capacity)

	n, err := d.read(buf)
	if err != nil {
		return "", err
	}

	return string(payload.TrimTerminator(buf[:n])), nil
}

// RecvValue fills the fixed-layout value pointed to by v from one datagram.
// A datagram shorter than the value needs is a decode error.
func (d *Datagram) RecvValue(v interface{}) error {
	if d.e.closed() {
		return errors.WithStack(ErrClosed)
	}

	size := payload.Size(v)
	if size <= 0 {
		return errors.Errorf("value of type %T has no fixed layout", v)
	}

	buf := make([]byte, size)

	n, err := d.read(buf)
	if err != nil {
		return err
	}

	return payload.Unmarshal(buf[:n], v)
}

// RecvSlice receives one datagram of at most capacity elements into the
// slice pointed to by slicePtr, resizing it to the number of whole elements
// actually read.
func (d *Datagram) RecvSlice(slicePtr interface{}, capacity int) error {
	if d.e.closed() {
		return errors.WithStack(ErrClosed)
	}

	size, err := payload.ElemSize(slicePtr)
	if err != nil {
		return err
	}

	buf := make([]byte, capacity*size)

	n, err := d.read(buf)
	if err != nil {
		return err
	}

	return payload.UnmarshalSlice(buf[:n], slicePtr)
}

// LocalPort reports the port the endpoint is bound to. Client endpoints stay
// unbound until their first send.
func (d *Datagram) LocalPort() (int, error) {
	return d.e.localPort()
}

// Role reports the role the endpoint was created with.
func (d *Datagram) Role() Role {
	return d.e.role
}

// Close releases the socket. Closing an already closed endpoint is a no-op.
func (d *Datagram) Close() error {
	return d.e.close()
}

func (d *Datagram) write(p []byte) (int, error) {
	if err := unix.Sendto(d.e.fd, p, 0, d.e.addr); err != nil {
		return 0, opError(OpWrite, err)
	}

	// sendto delivers a datagram whole or fails; there is no short count.
	return len(p), nil
}

func (d *Datagram) read(p []byte) (int, error) {
	n, _, err := unix.Recvfrom(d.e.fd, p, 0)
	if err != nil {
		return 0, opError(OpRead, err)
	}

	return n, nil
}
