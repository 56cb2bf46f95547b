// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// Error kinds. Every error returned by this package matches exactly one of
// these sentinels via [errors.Is].
var (
	// ErrAddressFamilyUnavailable indicates that the platform does not
	// support the requested address family or option.
	ErrAddressFamilyUnavailable = errors.New("address family unavailable")

	// ErrInvalidAddress indicates a malformed or oversized address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrAddressInUse indicates a bind conflict.
	ErrAddressInUse = errors.New("address in use")

	// ErrConnectionRefused indicates that nobody is listening at the peer address.
	ErrConnectionRefused = errors.New("connection refused")

	// ErrNoSuchDevice indicates that the peer node, CID or device does not exist.
	ErrNoSuchDevice = errors.New("no such device")

	// ErrSocketClosed indicates an operation on a closed handle.
	ErrSocketClosed = errors.New("socket closed")

	// ErrOperationNotSupported indicates an operation on a half-closed
	// direction or an option the platform lacks.
	ErrOperationNotSupported = errors.New("operation not supported")

	// ErrMalformedRecord indicates a topology record that cannot be decoded.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrAlreadyRunning indicates starting a topology watcher whose
	// receive loop was already started.
	ErrAlreadyRunning = errors.New("already running")

	// ErrSocket is the kind of any uncategorized native failure.
	ErrSocket = errors.New("socket error")

	// ErrWouldBlock is returned by non-blocking channels when the
	// operation cannot complete without waiting.
	ErrWouldBlock = errors.New("operation would block")

	// ErrConnectPending is returned by a non-blocking connect that has
	// been initiated but not completed yet.
	ErrConnectPending = errors.New("connect in progress")
)

// SocketError is the concrete error type returned by this package.
//
// Use [errors.Is] against the Err* sentinels to test the Kind and
// [errors.As] to access the operation, family and raw platform code.
type SocketError struct {
	// Kind is one of the Err* sentinels.
	Kind error

	// Op is the operation that failed (e.g., "bind", "decode").
	Op string

	// Family is the address family involved, if known.
	Family Family

	// Errno is the raw platform error code, or zero.
	Errno syscall.Errno

	// Err is the underlying error, if any.
	Err error
}

var _ net.Error = &SocketError{}

// Error implements error.
func (e *SocketError) Error() string {
	msg := e.Op + " " + e.Family.String() + ": " + e.Kind.Error()
	if e.Err != nil && e.Err != e.Kind {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SocketError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind of this error.
func (e *SocketError) Is(target error) bool {
	return target == e.Kind
}

// Timeout implements [net.Error]. It reports whether the operation failed
// because a deadline expired.
func (e *SocketError) Timeout() bool {
	return errors.Is(e.Err, os.ErrDeadlineExceeded)
}

// Temporary implements [net.Error].
func (e *SocketError) Temporary() bool {
	return e.Timeout()
}

// newError builds a [*SocketError] without an errno.
func newError(kind error, op string, family Family, err error) *SocketError {
	return &SocketError{Kind: kind, Op: op, Family: family, Err: err}
}

// invalidAddressf builds an [ErrInvalidAddress] error with a formatted reason.
func invalidAddressf(op string, family Family, format string, args ...any) *SocketError {
	return newError(ErrInvalidAddress, op, family, fmt.Errorf(format, args...))
}

// closedError builds an [ErrSocketClosed] error that also matches [net.ErrClosed].
func closedError(op string, family Family) *SocketError {
	return newError(ErrSocketClosed, op, family, net.ErrClosed)
}

// wrapError maps a native error to a [*SocketError].
//
// Errors that already are [*SocketError] pass through unchanged. Errors
// caused by a concurrent close map to [ErrSocketClosed]. Otherwise, the
// errno (if any) decides the kind via [kindForErrno].
func wrapError(op string, family Family, err error) error {
	if err == nil {
		return nil
	}
	var serr *SocketError
	if errors.As(err, &serr) {
		return serr
	}
	if isClosedError(err) {
		return &SocketError{Kind: ErrSocketClosed, Op: op, Family: family, Err: err}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &SocketError{Kind: kindForErrno(errno), Op: op, Family: family, Errno: errno, Err: err}
	}
	return &SocketError{Kind: ErrSocket, Op: op, Family: family, Err: err}
}
