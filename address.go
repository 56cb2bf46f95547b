// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"net"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
)

// Address is the uniform address value for every supported family.
//
// The set of implementations is closed: [UnixAddress], [TIPCServiceRange],
// [TIPCServiceAddress], [TIPCSocketID], [VSOCKAddress] and [SystemAddress].
// All of them are comparable value types, so two addresses are equal iff
// they compare equal with ==. Every Address also implements [net.Addr].
type Address interface {
	net.Addr

	// Family returns the address family.
	Family() Family

	// sealed prevents implementations outside this package.
	sealed()
}

// UnixAddress is an AF_UNIX address: a filesystem path, a name in the
// Linux abstract namespace, or the unnamed address.
//
// Construct using [UnixPathAddress], [UnixAbstractAddress] or
// [UnixUnnamedAddress]. The zero value is the unnamed address.
type UnixAddress struct {
	name     string
	abstract bool
}

var _ Address = UnixAddress{}

// UnixPathAddress returns the address of a filesystem socket.
func UnixPathAddress(path string) UnixAddress {
	return UnixAddress{name: path}
}

// UnixAbstractAddress returns an abstract-namespace address.
//
// Trailing NUL padding is not part of the name: two abstract addresses
// are equal iff their names without padding are equal.
func UnixAbstractAddress(name string) UnixAddress {
	return UnixAddress{name: strings.TrimRight(name, "\x00"), abstract: true}
}

// UnixUnnamedAddress returns the unnamed address (e.g., of an unbound
// socket or of one end of a socket pair).
func UnixUnnamedAddress() UnixAddress {
	return UnixAddress{}
}

// Name returns the path or abstract name.
func (a UnixAddress) Name() string { return a.name }

// IsAbstract reports whether this is an abstract-namespace address.
func (a UnixAddress) IsAbstract() bool { return a.abstract }

// IsUnnamed reports whether this is the unnamed address.
func (a UnixAddress) IsUnnamed() bool { return !a.abstract && a.name == "" }

// Family implements [Address].
func (UnixAddress) Family() Family { return FamilyUnix }

// Network implements [net.Addr].
func (UnixAddress) Network() string { return FamilyUnix.String() }

// String implements [net.Addr]. Abstract names are prefixed with "@".
func (a UnixAddress) String() string {
	if a.abstract {
		return "@" + a.name
	}
	return a.name
}

func (UnixAddress) sealed() {}

// TIPCScope is the lookup/publication scope of a TIPC service address.
type TIPCScope int8

// TIPC scopes. The zone scope is obsolete but still accepted by the codec.
const (
	TIPCScopeUnspecified TIPCScope = 0
	TIPCScopeZone        TIPCScope = 1
	TIPCScopeCluster     TIPCScope = 2
	TIPCScopeNode        TIPCScope = 3
)

// prefix returns the external-form prefix for the scope. The cluster
// scope is the default and has no prefix.
func (s TIPCScope) prefix() string {
	switch s {
	case TIPCScopeCluster:
		return ""
	case TIPCScopeNode:
		return "node-"
	default:
		return strconv.Itoa(int(s)) + "-"
	}
}

// TIPC address types, as stored in sockaddr_tipc.addrtype.
const (
	tipcAddrServiceRange = 1
	tipcAddrServiceAddr  = 2
	tipcAddrSocketID     = 3
)

// TIPCServiceRange is a TIPC service range (type plus instance range),
// used for binding and for multicast.
type TIPCServiceRange struct {
	Scope TIPCScope
	Type  uint32
	Lower uint32
	Upper uint32
}

var _ Address = TIPCServiceRange{}

// NewTIPCServiceRange returns a cluster-scoped [TIPCServiceRange].
func NewTIPCServiceRange(typ, lower, upper uint32) TIPCServiceRange {
	return TIPCServiceRange{Scope: TIPCScopeCluster, Type: typ, Lower: lower, Upper: upper}
}

// Family implements [Address].
func (TIPCServiceRange) Family() Family { return FamilyTIPC }

// Network implements [net.Addr].
func (TIPCServiceRange) Network() string { return FamilyTIPC.String() }

// String implements [net.Addr].
func (a TIPCServiceRange) String() string {
	return a.Scope.prefix() + "range." + formatUint32(a.Type) + "." +
		formatUint32(a.Lower) + "." + formatUint32(a.Upper)
}

func (TIPCServiceRange) sealed() {}

// TIPCServiceAddress is a TIPC service address (type and instance),
// optionally restricted to a lookup domain (a node hash, zero for any).
type TIPCServiceAddress struct {
	Scope    TIPCScope
	Type     uint32
	Instance uint32
	Domain   uint32
}

var _ Address = TIPCServiceAddress{}

// NewTIPCServiceAddress returns a cluster-scoped [TIPCServiceAddress]
// with no domain restriction.
func NewTIPCServiceAddress(typ, instance uint32) TIPCServiceAddress {
	return TIPCServiceAddress{Scope: TIPCScopeCluster, Type: typ, Instance: instance}
}

// Family implements [Address].
func (TIPCServiceAddress) Family() Family { return FamilyTIPC }

// Network implements [net.Addr].
func (TIPCServiceAddress) Network() string { return FamilyTIPC.String() }

// String implements [net.Addr] using the "type.instance[:domain]" form.
func (a TIPCServiceAddress) String() string {
	s := a.Scope.prefix() + formatUint32(a.Type) + "." + formatUint32(a.Instance)
	if a.Domain != 0 {
		s += ":" + formatUint32(a.Domain)
	}
	return s
}

func (TIPCServiceAddress) sealed() {}

// TIPCSocketID is the unique identity of a TIPC socket: a port
// reference and the hash of the node owning it.
type TIPCSocketID struct {
	Ref  uint32
	Node uint32
}

var _ Address = TIPCSocketID{}

// Family implements [Address].
func (TIPCSocketID) Family() Family { return FamilyTIPC }

// Network implements [net.Addr].
func (TIPCSocketID) Network() string { return FamilyTIPC.String() }

// String implements [net.Addr].
func (a TIPCSocketID) String() string {
	return "socket." + formatUint32(a.Ref) + "." + formatUint32(a.Node)
}

func (TIPCSocketID) sealed() {}

// Well-known VSOCK context IDs and ports.
const (
	VSOCKCIDAny        uint32 = 0xffffffff
	VSOCKCIDHypervisor uint32 = vsock.Hypervisor
	VSOCKCIDLocal      uint32 = vsock.Local
	VSOCKCIDHost       uint32 = vsock.Host
	VSOCKPortAny       uint32 = 0xffffffff
)

// VSOCKAddress is an AF_VSOCK address.
type VSOCKAddress struct {
	CID   uint32
	Port  uint32
	Flags uint8
}

var _ Address = VSOCKAddress{}

// Family implements [Address].
func (VSOCKAddress) Family() Family { return FamilyVSOCK }

// Network implements [net.Addr].
func (VSOCKAddress) Network() string { return FamilyVSOCK.String() }

// String implements [net.Addr] using the "cid:port" form.
func (a VSOCKAddress) String() string {
	s := vsockCIDName(a.CID) + ":" + vsockPortName(a.Port)
	if a.Flags != 0 {
		s += "/" + strconv.Itoa(int(a.Flags))
	}
	return s
}

// VSOCKAddr converts to the [*vsock.Addr] type used by the
// github.com/mdlayher/vsock package. Flags are not represented.
func (a VSOCKAddress) VSOCKAddr() *vsock.Addr {
	return &vsock.Addr{ContextID: a.CID, Port: a.Port}
}

func (VSOCKAddress) sealed() {}

func vsockCIDName(cid uint32) string {
	switch cid {
	case VSOCKCIDAny:
		return "any"
	case VSOCKCIDHypervisor:
		return "hypervisor"
	case VSOCKCIDLocal:
		return "local"
	case VSOCKCIDHost:
		return "host"
	default:
		return formatUint32(cid)
	}
}

func vsockPortName(port uint32) string {
	if port == VSOCKPortAny {
		return "any"
	}
	return formatUint32(port)
}

// SystemAddress is an AF_SYSTEM kernel-control address (Darwin).
//
// Use [ResolveSystemAddress] to obtain the ID from a control name.
type SystemAddress struct {
	ID   uint32
	Unit uint32
}

var _ Address = SystemAddress{}

// Family implements [Address].
func (SystemAddress) Family() Family { return FamilySystem }

// Network implements [net.Addr].
func (SystemAddress) Network() string { return FamilySystem.String() }

// String implements [net.Addr] using the "id:unit" form.
func (a SystemAddress) String() string {
	return formatUint32(a.ID) + ":" + formatUint32(a.Unit)
}

func (SystemAddress) sealed() {}

func formatUint32(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
