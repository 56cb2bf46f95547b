// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// NativeProber returns the [Prober] for the running kernel.
func NativeProber() Prober {
	return ProberFunc(probeLinux)
}

func probeLinux(c Capability) (bool, error) {
	switch c {
	case CapabilityUnixDomain:
		return probeSocket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	case CapabilityUnixDatagrams:
		return probeSocket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	case CapabilityNativeSocketPair:
		return withSocketPair(unix.SOCK_STREAM, func([2]int) (bool, error) { return true, nil })
	case CapabilityPeerCredentials:
		return withSocketPair(unix.SOCK_STREAM, func(fds [2]int) (bool, error) {
			_, err := unix.GetsockoptUcred(fds[0], unix.SOL_SOCKET, unix.SO_PEERCRED)
			return err == nil, err
		})
	case CapabilityAncillaryMessages:
		return probeCredentialMessages()
	case CapabilityFileDescriptors:
		return probeFileDescriptors()
	case CapabilityAbstractNamespace:
		return probeAbstractNamespace()
	case CapabilityTIPC:
		return probeSocket(unix.AF_TIPC, unix.SOCK_RDM, 0)
	case CapabilityVSOCK:
		return probeSocket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	case CapabilityVSOCKDatagram:
		return probeSocket(unix.AF_VSOCK, unix.SOCK_DGRAM, 0)
	case CapabilityZeroLengthSend:
		return probeZeroLengthSend()
	case CapabilitySystem:
		return false, nil
	default:
		return false, fmt.Errorf("unknown capability %s", c)
	}
}

// probeCredentialMessages sends SCM_CREDENTIALS over a socket pair.
func probeCredentialMessages() (bool, error) {
	return withSocketPair(unix.SOCK_STREAM, func(fds [2]int) (bool, error) {
		if err := unix.SetsockoptInt(fds[1], unix.SOL_SOCKET, unix.SO_PASSCRED, 1); err != nil {
			return false, err
		}
		ucred := &unix.Ucred{Pid: int32(unix.Getpid()), Uid: uint32(unix.Getuid()), Gid: uint32(unix.Getgid())}
		if err := unix.Sendmsg(fds[0], []byte{0}, unix.UnixCredentials(ucred), nil, 0); err != nil {
			return false, err
		}
		buf, oob := make([]byte, 1), make([]byte, unix.CmsgSpace(unix.SizeofUcred))
		_, oobn, _, _, err := unix.Recvmsg(fds[1], buf, oob, 0)
		if err != nil {
			return false, err
		}
		return oobn > 0, nil
	})
}

// probeAbstractNamespace autobinds a socket and checks that the kernel
// assigned an abstract name.
func probeAbstractNamespace() (bool, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return false, err
	}
	defer unix.Close(fd)
	if err := unix.Bind(fd, &unix.SockaddrUnix{}); err != nil {
		return false, err
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return false, err
	}
	ua, ok := sa.(*unix.SockaddrUnix)
	return ok && strings.HasPrefix(ua.Name, "@"), nil
}
