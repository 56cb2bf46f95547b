//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/errclass/unix.go
//

package afsock

import (
	"errors"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// errnoKinds maps platform errors to error kinds. Errnos not listed
// here map to [ErrSocket].
var errnoKinds = map[syscall.Errno]error{
	unix.EADDRINUSE:      ErrAddressInUse,
	unix.EADDRNOTAVAIL:   ErrInvalidAddress,
	unix.EAFNOSUPPORT:    ErrAddressFamilyUnavailable,
	unix.EBADF:           ErrSocketClosed,
	unix.ECONNREFUSED:    ErrConnectionRefused,
	unix.EHOSTUNREACH:    ErrNoSuchDevice,
	unix.EINVAL:          ErrInvalidAddress,
	unix.ENAMETOOLONG:    ErrInvalidAddress,
	unix.ENETUNREACH:     ErrNoSuchDevice,
	unix.ENODEV:          ErrNoSuchDevice,
	unix.ENOENT:          ErrConnectionRefused,
	unix.ENOPROTOOPT:     ErrOperationNotSupported,
	unix.ENOTSOCK:        ErrOperationNotSupported,
	unix.ENOTTY:          ErrOperationNotSupported,
	unix.ENXIO:           ErrNoSuchDevice,
	unix.EOPNOTSUPP:      ErrOperationNotSupported,
	unix.EPIPE:           ErrOperationNotSupported,
	unix.EPROTONOSUPPORT: ErrAddressFamilyUnavailable,
	unix.ESOCKTNOSUPPORT: ErrAddressFamilyUnavailable,
}

// kindForErrno returns the error kind for the given errno.
//
// ENOTSUP is not a map key because Linux defines it as EOPNOTSUPP.
func kindForErrno(errno syscall.Errno) error {
	if kind, found := errnoKinds[errno]; found {
		return kind
	}
	if errno == unix.ENOTSUP {
		return ErrOperationNotSupported
	}
	return ErrSocket
}

// isClosedError reports whether err results from using a closed descriptor.
func isClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed)
}

// isWouldBlock reports whether err is EAGAIN/EWOULDBLOCK.
func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
