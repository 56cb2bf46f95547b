// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// sysprotoControl is SYSPROTO_CONTROL from <sys/sys_domain.h>.
const sysprotoControl = 2

// NativeProber returns the [Prober] for the running kernel.
func NativeProber() Prober {
	return ProberFunc(probeDarwin)
}

func probeDarwin(c Capability) (bool, error) {
	switch c {
	case CapabilityUnixDomain:
		return probeSocket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	case CapabilityUnixDatagrams:
		return probeSocket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	case CapabilityNativeSocketPair:
		return withSocketPair(unix.SOCK_STREAM, func([2]int) (bool, error) { return true, nil })
	case CapabilityPeerCredentials:
		return withSocketPair(unix.SOCK_STREAM, func(fds [2]int) (bool, error) {
			_, err := unix.GetsockoptXucred(fds[0], unix.SOL_LOCAL, unix.LOCAL_PEERCRED)
			return err == nil, err
		})
	case CapabilityFileDescriptors:
		return probeFileDescriptors()
	case CapabilityZeroLengthSend:
		return probeZeroLengthSend()
	case CapabilitySystem:
		return probeSocket(unix.AF_SYSTEM, unix.SOCK_DGRAM, sysprotoControl)
	case CapabilityAncillaryMessages, CapabilityAbstractNamespace,
		CapabilityTIPC, CapabilityVSOCK, CapabilityVSOCKDatagram:
		return false, nil
	default:
		return false, fmt.Errorf("unknown capability %s", c)
	}
}
