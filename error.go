package sockline

import (
	"fmt"

	"github.com/pkg/errors"
)

// Op names the socket operation an Error originated from.
type Op string

const (
	OpSocket  Op = "socket"
	OpBind    Op = "bind"
	OpConnect Op = "connect"
	OpListen  Op = "listen"
	OpAccept  Op = "accept"
	OpWrite   Op = "write"
	OpRead    Op = "read"
)

var (
	// ErrRoleViolation is reported when an operation is attempted on an
	// endpoint whose role does not permit it.
	ErrRoleViolation = errors.New("operation not permitted for endpoint role")

	// ErrInvalidAddress is reported when an address or port string cannot be
	// parsed. It is always raised before any socket gets created, so a bad
	// address never leaks a descriptor.
	ErrInvalidAddress = errors.New("malformed address")

	// ErrClosed is reported by operations on an endpoint whose descriptor has
	// already been released.
	ErrClosed = errors.New("endpoint closed")
)

// Error records a failed socket operation together with the OS error that
// caused it. Exactly one OS call is attempted per logical operation; nothing
// is retried before the failure surfaces.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sockline: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying OS error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Cause returns the underlying OS error.
func (e *Error) Cause() error {
	return e.Err
}

func opError(op Op, err error) error {
	return &Error{Op: op, Err: err}
}
