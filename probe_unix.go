//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// probeSocket opens and immediately closes a socket.
func probeSocket(domain, typ, proto int) (bool, error) {
	fd, err := unix.Socket(domain, typ, proto)
	if err != nil {
		return false, err
	}
	unix.Close(fd)
	return true, nil
}

// withSocketPair runs fn with both ends of a fresh AF_UNIX socket pair.
func withSocketPair(typ int, fn func(fds [2]int) (bool, error)) (bool, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, typ, 0)
	if err != nil {
		return false, err
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])
	return fn(fds)
}

// probeFileDescriptors passes one end of a socket pair over itself.
func probeFileDescriptors() (bool, error) {
	return withSocketPair(unix.SOCK_STREAM, func(fds [2]int) (bool, error) {
		if err := unix.Sendmsg(fds[0], []byte{0}, unix.UnixRights(fds[0]), nil, 0); err != nil {
			return false, err
		}
		buf, oob := make([]byte, 1), make([]byte, unix.CmsgSpace(4))
		_, oobn, _, _, err := unix.Recvmsg(fds[1], buf, oob, 0)
		if err != nil {
			return false, err
		}
		received, err := parseRights(oob[:oobn])
		for _, fd := range received {
			unix.Close(fd)
		}
		if err != nil {
			return false, err
		}
		return len(received) == 1, nil
	})
}

// probeZeroLengthSend sends an empty datagram over a socket pair.
func probeZeroLengthSend() (bool, error) {
	return withSocketPair(unix.SOCK_DGRAM, func(fds [2]int) (bool, error) {
		n, err := unix.Write(fds[0], nil)
		if err != nil {
			return false, err
		}
		if n != 0 {
			return false, errors.New("unexpected byte count")
		}
		return true, nil
	})
}

// parseRights extracts the descriptors carried by SCM_RIGHTS messages.
func parseRights(oob []byte) ([]int, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, err
	}
	var fds []int
	for _, msg := range msgs {
		if msg.Header.Level != unix.SOL_SOCKET || msg.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		rights, err := unix.ParseUnixRights(&msg)
		if err != nil {
			return fds, err
		}
		fds = append(fds, rights...)
	}
	return fds, nil
}
