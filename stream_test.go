package sockline

import (
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vec3 struct {
	X, Y, Z float32
}

// serveStream binds a server on a kernel-assigned port and accepts a single
// connection in the background.
func serveStream(t *testing.T) (*Stream, string, <-chan *Stream) {
	t.Helper()

	server, err := NewStream("", "0", RoleServer)
	require.NoError(t, err)

	port, err := server.LocalPort()
	require.NoError(t, err)

	accepted := make(chan *Stream, 1)

	go func() {
		conn, err := server.Accept(1)
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	// the acceptor needs a moment to reach listen before anyone dials
	time.Sleep(50 * time.Millisecond)

	return server, strconv.Itoa(port), accepted
}

func streamPair(t *testing.T) (server, conn, client *Stream) {
	t.Helper()

	server, port, accepted := serveStream(t)

	client, err := NewStream("127.0.0.1", port, RoleClient)
	require.NoError(t, err)

	conn = <-accepted
	require.NotNil(t, conn)

	return server, conn, client
}

func TestStreamStringRoundTrip(t *testing.T) {
	server, conn, client := streamPair(t)
	defer server.Close()
	defer conn.Close()
	defer client.Close()

	n, err := client.SendString("hello")
	require.NoError(t, err)
	assert.Equal(t, len("hello")+1, n)

	msg, err := conn.RecvString(16)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg)
}

func TestStreamValueRoundTrip(t *testing.T) {
	server, conn, client := streamPair(t)
	defer server.Close()
	defer conn.Close()
	defer client.Close()

	sent := vec3{X: 1, Y: 2, Z: 3}

	_, err := conn.SendValue(sent)
	require.NoError(t, err)

	var got vec3
	require.NoError(t, client.RecvValue(&got))
	assert.Equal(t, sent, got)
}

func TestStreamSliceRoundTrip(t *testing.T) {
	server, conn, client := streamPair(t)
	defer server.Close()
	defer conn.Close()
	defer client.Close()

	_, err := client.SendValue([]uint16{7, 8, 9})
	require.NoError(t, err)

	var got []uint16
	require.NoError(t, conn.RecvSlice(&got, 8))
	assert.Equal(t, []uint16{7, 8, 9}, got)
}

func TestStreamBytesRoundTrip(t *testing.T) {
	server, conn, client := streamPair(t)
	defer server.Close()
	defer conn.Close()
	defer client.Close()

	n, err := client.SendBytes([]byte("raw bytes"))
	require.NoError(t, err)
	assert.Equal(t, len("raw bytes"), n)

	got, err := conn.RecvBytes(4)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw "), got)

	// the remainder stays queued on the stream, not discarded
	rest, err := conn.RecvBytes(16)
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), rest)
}

func TestStreamPeer(t *testing.T) {
	server, conn, client := streamPair(t)
	defer server.Close()
	defer conn.Close()
	defer client.Close()

	port, err := server.LocalPort()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:"+strconv.Itoa(port), client.Peer())

	clientPort, err := client.LocalPort()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:"+strconv.Itoa(clientPort), conn.Peer())

	assert.Empty(t, server.Peer())
}

func TestStreamServerRoleViolation(t *testing.T) {
	server, err := NewStream("", "0", RoleServer)
	require.NoError(t, err)
	defer server.Close()

	_, err = server.SendString("nope")
	assert.ErrorIs(t, err, ErrRoleViolation)

	_, err = server.Write([]byte{1})
	assert.ErrorIs(t, err, ErrRoleViolation)

	_, err = server.SendBytes([]byte{1})
	assert.ErrorIs(t, err, ErrRoleViolation)

	_, err = server.RecvString(4)
	assert.ErrorIs(t, err, ErrRoleViolation)

	_, err = server.RecvBytes(4)
	assert.ErrorIs(t, err, ErrRoleViolation)

	_, err = server.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrRoleViolation)

	var v uint32
	assert.ErrorIs(t, server.RecvValue(&v), ErrRoleViolation)
}

func TestStreamAcceptRequiresServer(t *testing.T) {
	server, conn, client := streamPair(t)
	defer server.Close()
	defer conn.Close()
	defer client.Close()

	_, err := client.Accept(1)
	assert.ErrorIs(t, err, ErrRoleViolation)

	_, err = conn.Accept(1)
	assert.ErrorIs(t, err, ErrRoleViolation)
}

func TestStreamConnectionOutlivesServer(t *testing.T) {
	server, conn, client := streamPair(t)
	defer conn.Close()
	defer client.Close()

	require.NoError(t, server.Close())

	_, err := client.SendString("still here")
	require.NoError(t, err)

	msg, err := conn.RecvString(32)
	require.NoError(t, err)
	assert.Equal(t, "still here", msg)
}

func TestStreamPeerCloseReadsEOF(t *testing.T) {
	server, conn, client := streamPair(t)
	defer server.Close()
	defer conn.Close()

	require.NoError(t, client.Close())

	n, err := conn.Read(make([]byte, 8))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	// peer closure is not a failed read
	var opErr *Error
	assert.False(t, errors.As(err, &opErr))
}

func TestStreamInvalidAddress(t *testing.T) {
	cases := []struct {
		name string
		host string
		port string
		role Role
	}{
		{name: "non-numeric port", host: "127.0.0.1", port: "nope", role: RoleClient},
		{name: "port out of range", host: "127.0.0.1", port: "70000", role: RoleClient},
		{name: "negative port", host: "127.0.0.1", port: "-1", role: RoleServer},
		{name: "bogus host", host: "bogus", port: "5000", role: RoleClient},
		{name: "ipv6 host", host: "::1", port: "5000", role: RoleClient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewStream(tc.host, tc.port, tc.role)
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestStreamConnectRefused(t *testing.T) {
	server, err := NewStream("", "0", RoleServer)
	require.NoError(t, err)

	port, err := server.LocalPort()
	require.NoError(t, err)
	require.NoError(t, server.Close())

	_, err = NewStream("127.0.0.1", strconv.Itoa(port), RoleClient)
	require.Error(t, err)

	var opErr *Error
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpConnect, opErr.Op)
}

func TestStreamConnectionRoleNotConstructible(t *testing.T) {
	_, err := NewStream("127.0.0.1", "5000", RoleConnection)
	assert.ErrorIs(t, err, ErrRoleViolation)
}

func TestStreamCloseIdempotent(t *testing.T) {
	server, err := NewStream("", "0", RoleServer)
	require.NoError(t, err)

	require.NoError(t, server.Close())
	require.NoError(t, server.Close())

	_, err = server.Accept(1)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = server.LocalPort()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStreamClosedIO(t *testing.T) {
	server, conn, client := streamPair(t)
	defer server.Close()
	defer conn.Close()

	require.NoError(t, client.Close())

	_, err := client.SendString("late")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = client.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStreamRoles(t *testing.T) {
	server, conn, client := streamPair(t)
	defer server.Close()
	defer conn.Close()
	defer client.Close()

	assert.Equal(t, RoleServer, server.Role())
	assert.Equal(t, RoleConnection, conn.Role())
	assert.Equal(t, RoleClient, client.Role())
}
