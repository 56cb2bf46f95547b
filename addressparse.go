// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"strconv"
	"strings"
)

// ParseAddress parses the external form of an address of the given family.
//
// The accepted forms are the ones produced by the String method of each
// address type:
//
//   - unix: a filesystem path, "@name" for the abstract namespace, or ""
//     for the unnamed address;
//   - tipc: "type.instance[:domain]", "range.type.lower.upper" or
//     "socket.ref.node", where service forms take an optional scope
//     prefix ("node-", "cluster-" or a number followed by "-");
//   - vsock: "cid:port[/flags]", where cid may be any, hypervisor, local
//     or host and port may be any;
//   - system: "id:unit" (see [ResolveSystemAddress] for control names).
//
// Numbers are decimal or hexadecimal with a "0x" prefix.
func ParseAddress(family Family, s string) (Address, error) {
	switch family {
	case FamilyUnix:
		if name, found := strings.CutPrefix(s, "@"); found {
			return UnixAbstractAddress(name), nil
		}
		addr := UnixPathAddress(s)
		if err := validateUnix(addr); err != nil {
			return nil, err
		}
		return addr, nil
	case FamilyTIPC:
		return parseTIPC(s)
	case FamilyVSOCK:
		return parseVSOCK(s)
	case FamilySystem:
		return parseSystem(s)
	default:
		return nil, invalidAddressf("parse", family, "no parser for family")
	}
}

func parseTIPC(s string) (Address, error) {
	scope, rest, err := parseTIPCScope(s)
	if err != nil {
		return nil, err
	}
	kind, body, found := strings.Cut(rest, ".")
	if !found {
		return nil, invalidAddressf("parse", FamilyTIPC, "malformed address %q", s)
	}
	switch kind {
	case "range":
		fields, err := parseUint32List(FamilyTIPC, body, 3)
		if err != nil {
			return nil, err
		}
		if fields[1] > fields[2] {
			return nil, invalidAddressf("parse", FamilyTIPC, "lower exceeds upper in %q", s)
		}
		return TIPCServiceRange{Scope: scope, Type: fields[0], Lower: fields[1], Upper: fields[2]}, nil
	case "socket":
		if rest != s {
			return nil, invalidAddressf("parse", FamilyTIPC, "socket ids have no scope: %q", s)
		}
		fields, err := parseUint32List(FamilyTIPC, body, 2)
		if err != nil {
			return nil, err
		}
		return TIPCSocketID{Ref: fields[0], Node: fields[1]}, nil
	case "service":
		return parseTIPCService(scope, body)
	default:
		return parseTIPCService(scope, rest)
	}
}

func parseTIPCScope(s string) (TIPCScope, string, error) {
	prefix, rest, found := strings.Cut(s, "-")
	if !found {
		return TIPCScopeCluster, s, nil
	}
	switch prefix {
	case "cluster":
		return TIPCScopeCluster, rest, nil
	case "node":
		return TIPCScopeNode, rest, nil
	}
	value, err := strconv.ParseInt(prefix, 10, 8)
	if err != nil || value < 0 {
		return 0, "", invalidAddressf("parse", FamilyTIPC, "invalid scope %q", prefix)
	}
	return TIPCScope(value), rest, nil
}

func parseTIPCService(scope TIPCScope, s string) (Address, error) {
	name, domain, hasDomain := strings.Cut(s, ":")
	fields, err := parseUint32List(FamilyTIPC, name, 2)
	if err != nil {
		return nil, err
	}
	addr := TIPCServiceAddress{Scope: scope, Type: fields[0], Instance: fields[1]}
	if hasDomain {
		if addr.Domain, err = parseUint32(FamilyTIPC, domain); err != nil {
			return nil, err
		}
	}
	return addr, nil
}

func parseVSOCK(s string) (Address, error) {
	s, flags, hasFlags := strings.Cut(s, "/")
	cidPart, portPart, found := strings.Cut(s, ":")
	if !found {
		return nil, invalidAddressf("parse", FamilyVSOCK, "expected cid:port, got %q", s)
	}
	var (
		addr VSOCKAddress
		err  error
	)
	switch cidPart {
	case "any":
		addr.CID = VSOCKCIDAny
	case "hypervisor":
		addr.CID = VSOCKCIDHypervisor
	case "local":
		addr.CID = VSOCKCIDLocal
	case "host":
		addr.CID = VSOCKCIDHost
	default:
		if addr.CID, err = parseUint32(FamilyVSOCK, cidPart); err != nil {
			return nil, err
		}
	}
	if portPart == "any" {
		addr.Port = VSOCKPortAny
	} else if addr.Port, err = parseUint32(FamilyVSOCK, portPart); err != nil {
		return nil, err
	}
	if hasFlags {
		value, err := strconv.ParseUint(flags, 0, 8)
		if err != nil {
			return nil, invalidAddressf("parse", FamilyVSOCK, "invalid flags %q", flags)
		}
		addr.Flags = uint8(value)
	}
	return addr, nil
}

func parseSystem(s string) (Address, error) {
	idPart, unitPart, found := strings.Cut(s, ":")
	if !found {
		return nil, invalidAddressf("parse", FamilySystem, "expected id:unit, got %q", s)
	}
	id, err := parseUint32(FamilySystem, idPart)
	if err != nil {
		return nil, err
	}
	unit, err := parseUint32(FamilySystem, unitPart)
	if err != nil {
		return nil, err
	}
	return SystemAddress{ID: id, Unit: unit}, nil
}

func parseUint32List(family Family, s string, count int) ([]uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) != count {
		return nil, invalidAddressf("parse", family, "expected %d dot-separated numbers, got %q", count, s)
	}
	values := make([]uint32, 0, count)
	for _, part := range parts {
		value, err := parseUint32(family, part)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func parseUint32(family Family, s string) (uint32, error) {
	var (
		value uint64
		err   error
	)
	if hex, found := strings.CutPrefix(s, "0x"); found {
		value, err = strconv.ParseUint(hex, 16, 32)
	} else {
		value, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, invalidAddressf("parse", family, "invalid number %q", s)
	}
	return uint32(value), nil
}
