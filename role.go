package sockline

// Role determines which operations an endpoint permits.
type Role uint8

const (
	// RoleClient endpoints address a remote peer and may send and receive
	// payloads.
	RoleClient Role = iota

	// RoleServer endpoints bind a local port. A stream server only accepts
	// connections; a datagram server exchanges payloads directly.
	RoleServer

	// RoleConnection endpoints wrap a single accepted stream connection. They
	// are produced by Accept and are never constructed directly.
	RoleConnection
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	case RoleConnection:
		return "connection"
	}

	return "unknown"
}
