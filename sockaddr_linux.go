// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// socketFlags are OR-ed into the type passed to socketpair(2).
const socketFlags = unix.SOCK_CLOEXEC

// nativeSocketParams maps a family and type to socket(2) arguments.
func nativeSocketParams(family Family, typ SocketType) (domain, sotype, proto int, err error) {
	switch typ {
	case SocketStream:
		sotype = unix.SOCK_STREAM
	case SocketDatagram:
		sotype = unix.SOCK_DGRAM
	case SocketSeqPacket:
		sotype = unix.SOCK_SEQPACKET
	case SocketRDM:
		sotype = unix.SOCK_RDM
	default:
		return 0, 0, 0, newError(ErrOperationNotSupported, "open", family, nil)
	}
	switch family {
	case FamilyUnix:
		domain = unix.AF_UNIX
	case FamilyTIPC:
		domain = unix.AF_TIPC
	case FamilyVSOCK:
		domain = unix.AF_VSOCK
	default:
		return 0, 0, 0, newError(ErrAddressFamilyUnavailable, "open", family, nil)
	}
	if typ == SocketRDM && family != FamilyTIPC {
		return 0, 0, 0, newError(ErrOperationNotSupported, "open", family, nil)
	}
	return domain, sotype, 0, nil
}

// socketFamily reads the family of a socket descriptor from SO_DOMAIN.
func socketFamily(fd int) (Family, error) {
	domain, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_DOMAIN)
	if err != nil {
		return FamilyUnknown, err
	}
	switch domain {
	case unix.AF_UNIX:
		return FamilyUnix, nil
	case unix.AF_TIPC:
		return FamilyTIPC, nil
	case unix.AF_VSOCK:
		return FamilyVSOCK, nil
	default:
		return FamilyUnknown, newError(ErrAddressFamilyUnavailable, "adopt",
			FamilyUnknown, fmt.Errorf("address family %d", domain))
	}
}

// toSockaddr converts an [Address] to the x/sys/unix representation.
//
// A leading "@" marks abstract names in [*unix.SockaddrUnix], so
// pathnames starting with "@" cannot be expressed.
func toSockaddr(addr Address) (unix.Sockaddr, error) {
	switch a := addr.(type) {
	case UnixAddress:
		if err := validateUnix(a); err != nil {
			return nil, err
		}
		if a.abstract {
			return &unix.SockaddrUnix{Name: "@" + a.name}, nil
		}
		if strings.HasPrefix(a.name, "@") {
			return nil, invalidAddressf("sockaddr", FamilyUnix, "path starts with @: %q", a.name)
		}
		return &unix.SockaddrUnix{Name: a.name}, nil
	case TIPCServiceRange:
		if a.Lower > a.Upper {
			return nil, invalidAddressf("sockaddr", FamilyTIPC, "lower %d exceeds upper %d", a.Lower, a.Upper)
		}
		return &unix.SockaddrTIPC{
			Scope: int(a.Scope),
			Addr:  &unix.TIPCServiceRange{Type: a.Type, Lower: a.Lower, Upper: a.Upper},
		}, nil
	case TIPCServiceAddress:
		return &unix.SockaddrTIPC{
			Scope: int(a.Scope),
			Addr:  &unix.TIPCServiceName{Type: a.Type, Instance: a.Instance, Domain: a.Domain},
		}, nil
	case TIPCSocketID:
		return &unix.SockaddrTIPC{Addr: &unix.TIPCSocketAddr{Ref: a.Ref, Node: a.Node}}, nil
	case VSOCKAddress:
		return &unix.SockaddrVM{CID: a.CID, Port: a.Port, Flags: a.Flags}, nil
	case nil:
		return nil, invalidAddressf("sockaddr", FamilyUnknown, "nil address")
	default:
		return nil, newError(ErrAddressFamilyUnavailable, "sockaddr", addr.Family(), nil)
	}
}

// fromSockaddr converts an x/sys/unix address to an [Address].
//
// The x/sys/unix package renders both the unnamed address and the empty
// abstract name as "@": we map it to the unnamed address.
func fromSockaddr(sa unix.Sockaddr) (Address, error) {
	switch a := sa.(type) {
	case *unix.SockaddrUnix:
		switch {
		case a.Name == "" || a.Name == "@":
			return UnixUnnamedAddress(), nil
		case strings.HasPrefix(a.Name, "@"):
			return UnixAbstractAddress(a.Name[1:]), nil
		default:
			return UnixPathAddress(a.Name), nil
		}
	case *unix.SockaddrTIPC:
		scope := TIPCScope(a.Scope)
		switch ta := a.Addr.(type) {
		case *unix.TIPCServiceRange:
			return TIPCServiceRange{Scope: scope, Type: ta.Type, Lower: ta.Lower, Upper: ta.Upper}, nil
		case *unix.TIPCServiceName:
			return TIPCServiceAddress{Scope: scope, Type: ta.Type, Instance: ta.Instance, Domain: ta.Domain}, nil
		case *unix.TIPCSocketAddr:
			return TIPCSocketID{Ref: ta.Ref, Node: ta.Node}, nil
		}
		return nil, invalidAddressf("sockaddr", FamilyTIPC, "unexpected address %T", a.Addr)
	case *unix.SockaddrVM:
		return VSOCKAddress{CID: a.CID, Port: a.Port, Flags: a.Flags}, nil
	case nil:
		return nil, invalidAddressf("sockaddr", FamilyUnknown, "no address")
	default:
		return nil, invalidAddressf("sockaddr", FamilyUnknown, "unexpected address %T", sa)
	}
}

// ResolveSystemAddress resolves a kernel-control name. AF_SYSTEM only
// exists on Darwin.
func ResolveSystemAddress(name string, unit uint32) (SystemAddress, error) {
	return SystemAddress{}, newError(ErrAddressFamilyUnavailable, "resolve", FamilySystem, nil)
}
