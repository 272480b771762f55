package sockline

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sockline/sockline/log"
	"github.com/sockline/sockline/payload"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"
)

var _ io.ReadWriteCloser = (*Stream)(nil)

// Stream is a connection-oriented (TCP) endpoint. A RoleServer stream only
// accepts connections; sending and receiving is reserved for RoleClient and
// RoleConnection streams.
//
// Streams carry the usual TCP contract: bytes arrive reliably and in order,
// but boundaries between distinct sends are not preserved. A receiver may see
// one payload split across reads or coalesced with its neighbors.
type Stream struct {
	e endpoint
}

// NewStream creates a stream endpoint. A RoleServer stream binds to all
// local interfaces on port and ignores host; a RoleClient stream connects to
// host:port. RoleConnection streams are produced by Accept only.
func NewStream(host, port string, role Role) (*Stream, error) {
	var sa *unix.SockaddrInet4
	var err error

	switch role {
	case RoleServer:
		sa, err = anyAddr(port)
	case RoleClient:
		sa, err = sockaddr(host, port)
	default:
		return nil, errors.Wrap(ErrRoleViolation, "connection streams are produced by Accept")
	}

	if err != nil {
		return nil, err
	}

	fd, err := newSocket(unix.SOCK_STREAM)
	if err != nil {
		return nil, err
	}

	s := &Stream{e: endpoint{fd: fd, role: role, addr: sa}}

	switch role {
	case RoleServer:
		if err := s.e.bind(); err != nil {
			_ = s.e.close()
			return nil, err
		}
	case RoleClient:
		if err := unix.Connect(fd, sa); err != nil {
			_ = s.e.close()
			return nil, opError(OpConnect, err)
		}
	}

	log.Debug().Stringer("role", role).Int("fd", fd).Msg("Stream endpoint ready.")

	return s, nil
}

// Accept marks the stream as listening with the given backlog, then blocks
// until a peer connects. The returned RoleConnection stream owns its own
// descriptor and keeps working after the server that produced it is closed.
func (s *Stream) Accept(backlog int) (*Stream, error) {
	if s.e.closed() {
		return nil, errors.WithStack(ErrClosed)
	}

	if s.e.role != RoleServer {
		return nil, errors.Wrapf(ErrRoleViolation, "accept requires a server stream, have %s", s.e.role)
	}

	if err := unix.Listen(s.e.fd, backlog); err != nil {
		return nil, opError(OpListen, err)
	}

	nfd, sa, err := unix.Accept(s.e.fd)
	if err != nil {
		return nil, opError(OpAccept, err)
	}

	peer, _ := sa.(*unix.SockaddrInet4)

	log.Debug().Int("fd", nfd).Msg("Accepted stream connection.")

	return &Stream{e: endpoint{fd: nfd, role: RoleConnection, addr: peer}}, nil
}

// Write sends raw bytes in one attempt. The byte count the OS reports is
// surfaced to the caller; transferring fewer bytes than len(p) yields the
// count alongside an error, never an internal retry.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.checkIO(); err != nil {
		return 0, err
	}

	return s.write(p)
}

// Read receives at most len(p) bytes in one blocking call, returning the
// number of bytes actually read. A return of (0, io.EOF) means the peer
// closed the connection; it is reported distinctly from a failed read.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.checkIO(); err != nil {
		return 0, err
	}

	return s.read(p)
}

// SendString transmits str plus a single terminator byte.
func (s *Stream) SendString(str string) (int, error) {
	if err := s.checkIO(); err != nil {
		return 0, err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = payload.AppendString(buf.B, str)

	return s.write(buf.B)
}

// SendBytes transmits p as-is in one attempt, the typed counterpart of Write
// for raw byte sequences.
func (s *Stream) SendBytes(p []byte) (int, error) {
	if err := s.checkIO(); err != nil {
		return 0, err
	}

	return s.write(p)
}

// SendValue transmits the raw little-endian bytes of a fixed-layout value,
// or a slice of them, with no length prefix.
func (s *Stream) SendValue(v interface{}) (int, error) {
	if err := s.checkIO(); err != nil {
		return 0, err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	b, err := payload.AppendValue(buf.B, v)
	if err != nil {
		return 0, err
	}
	buf.B = b

	return s.write(buf.B)
}

// RecvString receives at most capacity bytes in one blocking call and
// decodes them as a terminator-delimited string.
func (s *Stream) RecvString(capacity int) (string, error) {
	if err := s.checkIO(); err != nil {
		return "", err
	}

	buf := make([]byte, capacity)

	n, err := s.read(buf)
	if err != nil {
		return "", err
	}

	return string(payload.TrimTerminator(buf[:n])), nil
}

// RecvBytes receives at most capacity bytes in one blocking call, returning
// them as a right-sized slice.
func (s *Stream) RecvBytes(capacity int) ([]byte, error) {
	if err := s.checkIO(); err != nil {
		return nil, err
	}

	buf := make([]byte, capacity)

	n, err := s.read(buf)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

// RecvValue fills the fixed-layout value pointed to by v from one blocking
// receive. Receiving fewer bytes than the value needs is a decode error.
func (s *Stream) RecvValue(v interface{}) error {
	if err := s.checkIO(); err != nil {
		return err
	}

	size := payload.Size(v)
	if size <= 0 {
		return errors.Errorf("value of type %T has no fixed layout", v)
	}

	buf := make([]byte, size)

	n, err := s.read(buf)
	if err != nil {
		return err
	}

	return payload.Unmarshal(buf[:n], v)
}

// RecvSlice receives at most capacity elements into the slice pointed to by
// slicePtr, resizing it to the number of whole elements actually read.
func (s *Stream) RecvSlice(slicePtr interface{}, capacity int) error {
	if err := s.checkIO(); err != nil {
		return err
	}

	size, err := payload.ElemSize(slicePtr)
	if err != nil {
		return err
	}

	buf := make([]byte, capacity*size)

	n, err := s.read(buf)
	if err != nil {
		return err
	}

	return payload.UnmarshalSlice(buf[:n], slicePtr)
}

// LocalPort reports the port the stream is bound to.
func (s *Stream) LocalPort() (int, error) {
	return s.e.localPort()
}

// Peer reports the remote address as host:port: the dialed address for a
// client stream, the accepted peer for a connection stream. A server stream
// has no peer.
func (s *Stream) Peer() string {
	if s.e.role == RoleServer {
		return ""
	}

	return formatAddr(s.e.addr)
}

// Role reports the role the stream was created with.
func (s *Stream) Role() Role {
	return s.e.role
}

// Close releases the socket. Closing an already closed stream is a no-op.
func (s *Stream) Close() error {
	return s.e.close()
}

func (s *Stream) checkIO() error {
	if s.e.closed() {
		return errors.WithStack(ErrClosed)
	}

	if s.e.role == RoleServer {
		return errors.Wrap(ErrRoleViolation, "server streams only accept connections")
	}

	return nil
}

func (s *Stream) write(p []byte) (int, error) {
	n, err := unix.Write(s.e.fd, p)
	if err != nil {
		return 0, opError(OpWrite, err)
	}

	if n < len(p) {
		return n, opError(OpWrite, io.ErrShortWrite)
	}

	return n, nil
}

func (s *Stream) read(p []byte) (int, error) {
	n, err := unix.Read(s.e.fd, p)
	if err != nil {
		return 0, opError(OpRead, err)
	}

	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}

	return n, nil
}
