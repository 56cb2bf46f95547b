// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// socketFlags are OR-ed into the type passed to socketpair(2). Darwin has
// no SOCK_CLOEXEC, so [SocketPair] sets close-on-exec separately.
const socketFlags = 0

// nativeSocketParams maps a family and type to socket(2) arguments.
func nativeSocketParams(family Family, typ SocketType) (domain, sotype, proto int, err error) {
	switch typ {
	case SocketStream:
		sotype = unix.SOCK_STREAM
	case SocketDatagram:
		sotype = unix.SOCK_DGRAM
	case SocketSeqPacket:
		sotype = unix.SOCK_SEQPACKET
	default:
		return 0, 0, 0, newError(ErrOperationNotSupported, "open", family, nil)
	}
	switch family {
	case FamilyUnix:
		return unix.AF_UNIX, sotype, 0, nil
	case FamilySystem:
		if typ == SocketSeqPacket {
			return 0, 0, 0, newError(ErrOperationNotSupported, "open", family, nil)
		}
		return unix.AF_SYSTEM, sotype, sysprotoControl, nil
	default:
		return 0, 0, 0, newError(ErrAddressFamilyUnavailable, "open", family, nil)
	}
}

// socketFamily infers the family of a socket descriptor from its local
// address, since Darwin has no SO_DOMAIN.
func socketFamily(fd int) (Family, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return FamilyUnknown, err
	}
	switch sa.(type) {
	case *unix.SockaddrUnix:
		return FamilyUnix, nil
	case *unix.SockaddrCtl:
		return FamilySystem, nil
	default:
		return FamilyUnknown, newError(ErrAddressFamilyUnavailable, "adopt",
			FamilyUnknown, fmt.Errorf("unexpected address %T", sa))
	}
}

// toSockaddr converts an [Address] to the x/sys/unix representation.
func toSockaddr(addr Address) (unix.Sockaddr, error) {
	switch a := addr.(type) {
	case UnixAddress:
		if err := validateUnix(a); err != nil {
			return nil, err
		}
		if a.abstract {
			return nil, newError(ErrAddressFamilyUnavailable, "sockaddr", FamilyUnix, nil)
		}
		return &unix.SockaddrUnix{Name: a.name}, nil
	case SystemAddress:
		return &unix.SockaddrCtl{ID: a.ID, Unit: a.Unit}, nil
	case nil:
		return nil, invalidAddressf("sockaddr", FamilyUnknown, "nil address")
	default:
		return nil, newError(ErrAddressFamilyUnavailable, "sockaddr", addr.Family(), nil)
	}
}

// fromSockaddr converts an x/sys/unix address to an [Address].
func fromSockaddr(sa unix.Sockaddr) (Address, error) {
	switch a := sa.(type) {
	case *unix.SockaddrUnix:
		return UnixPathAddress(a.Name), nil
	case *unix.SockaddrCtl:
		return SystemAddress{ID: a.ID, Unit: a.Unit}, nil
	case nil:
		return nil, invalidAddressf("sockaddr", FamilyUnknown, "no address")
	default:
		return nil, invalidAddressf("sockaddr", FamilyUnknown, "unexpected address %T", sa)
	}
}

// maxControlName is MAX_KCTL_NAME from <sys/kern_control.h>.
const maxControlName = 96

// ResolveSystemAddress resolves a kernel-control name (for example
// "com.apple.net.utun_control") to a [SystemAddress] using CTLIOCGINFO.
func ResolveSystemAddress(name string, unit uint32) (SystemAddress, error) {
	if name == "" || len(name) >= maxControlName {
		return SystemAddress{}, invalidAddressf("resolve", FamilySystem, "invalid control name %q", name)
	}
	fd, err := unix.Socket(unix.AF_SYSTEM, unix.SOCK_DGRAM, sysprotoControl)
	if err != nil {
		return SystemAddress{}, wrapError("resolve", FamilySystem, err)
	}
	defer unix.Close(fd)
	info := &unix.CtlInfo{}
	copy(info.Name[:], name)
	if err := unix.IoctlCtlInfo(fd, info); err != nil {
		return SystemAddress{}, wrapError("resolve", FamilySystem, err)
	}
	return SystemAddress{ID: info.Id, Unit: unit}, nil
}
