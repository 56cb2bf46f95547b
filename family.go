// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import "strconv"

// Family is an address family (a class of local transport).
type Family int

const (
	// FamilyUnknown is the zero value and never a valid family.
	FamilyUnknown Family = iota

	// FamilyUnix is AF_UNIX (filesystem paths and abstract names).
	FamilyUnix

	// FamilyTIPC is AF_TIPC (Linux Transparent Inter-Process Communication).
	FamilyTIPC

	// FamilyVSOCK is AF_VSOCK (virtual machine sockets).
	FamilyVSOCK

	// FamilySystem is AF_SYSTEM (Darwin kernel control sockets).
	FamilySystem
)

// Canonical native family numbers used by the address codec.
//
// These are the values the respective kernels use: Linux for AF_UNIX,
// AF_TIPC and AF_VSOCK and Darwin for AF_SYSTEM.
const (
	nativeAFUnix   = 1
	nativeAFTIPC   = 30
	nativeAFSystem = 32
	nativeAFVSOCK  = 40
)

// String returns the family name used in logs and in external forms.
func (f Family) String() string {
	switch f {
	case FamilyUnix:
		return "unix"
	case FamilyTIPC:
		return "tipc"
	case FamilyVSOCK:
		return "vsock"
	case FamilySystem:
		return "system"
	default:
		return "family(" + strconv.Itoa(int(f)) + ")"
	}
}

// ParseFamily parses the output of [Family.String].
func ParseFamily(s string) (Family, error) {
	for _, f := range []Family{FamilyUnix, FamilyTIPC, FamilyVSOCK, FamilySystem} {
		if f.String() == s {
			return f, nil
		}
	}
	return FamilyUnknown, invalidAddressf("parse", FamilyUnknown, "unknown address family %q", s)
}

// SocketType is the socket type (stream, datagram, ...).
type SocketType int

const (
	// SocketStream is SOCK_STREAM.
	SocketStream SocketType = iota + 1

	// SocketDatagram is SOCK_DGRAM.
	SocketDatagram

	// SocketSeqPacket is SOCK_SEQPACKET.
	SocketSeqPacket

	// SocketRDM is SOCK_RDM (reliably-delivered messages, TIPC only).
	SocketRDM
)

// String returns the socket type name.
func (t SocketType) String() string {
	switch t {
	case SocketStream:
		return "stream"
	case SocketDatagram:
		return "dgram"
	case SocketSeqPacket:
		return "seqpacket"
	case SocketRDM:
		return "rdm"
	default:
		return "type(" + strconv.Itoa(int(t)) + ")"
	}
}

// ParseSocketType parses the output of [SocketType.String].
func ParseSocketType(s string) (SocketType, error) {
	for _, t := range []SocketType{SocketStream, SocketDatagram, SocketSeqPacket, SocketRDM} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, invalidAddressf("parse", FamilyUnknown, "unknown socket type %q", s)
}

// connectionOriented reports whether the type requires connect/accept.
func (t SocketType) connectionOriented() bool {
	return t == SocketStream || t == SocketSeqPacket
}
