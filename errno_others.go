//go:build !unix

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"errors"
	"net"
	"os"
	"syscall"
)

func kindForErrno(syscall.Errno) error {
	return ErrSocket
}

func isClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed)
}
