// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Native address sizes and limits.
const (
	// UnixPathMax is the size of sockaddr_un.sun_path.
	UnixPathMax = 108

	sizeofSockaddrTIPC = 16
	sizeofSockaddrVM   = 16
	sizeofSockaddrCtl  = 32
	sizeofFamilyHeader = 2
	sysAddrControl     = 2
)

// addressCodec encodes and decodes the native representation of one family.
type addressCodec struct {
	encode func(addr Address) ([]byte, error)
	decode func(data []byte) (Address, error)
}

// codecs is the dispatch table keyed by family. Adding a family means
// adding a variant type and one entry here.
var codecs = map[Family]addressCodec{
	FamilyUnix:   {encode: encodeUnix, decode: decodeUnix},
	FamilyTIPC:   {encode: encodeTIPC, decode: decodeTIPC},
	FamilyVSOCK:  {encode: encodeVSOCK, decode: decodeVSOCK},
	FamilySystem: {encode: encodeSystem, decode: decodeSystem},
}

// EncodeAddress returns the native (sockaddr) representation of addr.
//
// Encoding is pure and deterministic: equal addresses always encode to
// equal bytes. Multi-byte fields use the host byte order, like the kernel.
func EncodeAddress(addr Address) ([]byte, error) {
	if addr == nil {
		return nil, invalidAddressf("encode", FamilyUnknown, "nil address")
	}
	codec, found := codecs[addr.Family()]
	if !found {
		return nil, invalidAddressf("encode", addr.Family(), "no codec for family")
	}
	return codec.encode(addr)
}

// DecodeAddress parses the native representation of an address of the
// given family. It never retains or modifies data.
func DecodeAddress(family Family, data []byte) (Address, error) {
	codec, found := codecs[family]
	if !found {
		return nil, invalidAddressf("decode", family, "no codec for family")
	}
	return codec.decode(data)
}

var hostEndian = binary.NativeEndian

func checkFamilyHeader(family Family, native uint16, data []byte) error {
	if len(data) < sizeofFamilyHeader {
		return invalidAddressf("decode", family, "address too short: %d bytes", len(data))
	}
	if got := hostEndian.Uint16(data); got != native {
		return invalidAddressf("decode", family, "unexpected native family %d", got)
	}
	return nil
}

func encodeUnix(addr Address) ([]byte, error) {
	ua := addr.(UnixAddress)
	if err := validateUnix(ua); err != nil {
		return nil, err
	}
	buf := hostEndian.AppendUint16(nil, nativeAFUnix)
	switch {
	case ua.abstract:
		buf = append(buf, 0)
		buf = append(buf, ua.name...)
	case ua.name != "":
		buf = append(buf, ua.name...)
		buf = append(buf, 0)
	}
	return buf, nil
}

func validateUnix(ua UnixAddress) error {
	if ua.abstract {
		if len(ua.name)+1 > UnixPathMax {
			return invalidAddressf("encode", FamilyUnix, "abstract name too long: %d bytes", len(ua.name))
		}
		return nil
	}
	if strings.IndexByte(ua.name, 0) >= 0 {
		return invalidAddressf("encode", FamilyUnix, "path contains NUL")
	}
	if len(ua.name)+1 > UnixPathMax {
		return invalidAddressf("encode", FamilyUnix, "path too long: %d bytes", len(ua.name))
	}
	return nil
}

func decodeUnix(data []byte) (Address, error) {
	if err := checkFamilyHeader(FamilyUnix, nativeAFUnix, data); err != nil {
		return nil, err
	}
	payload := data[sizeofFamilyHeader:]
	if len(payload) > UnixPathMax {
		return nil, invalidAddressf("decode", FamilyUnix, "address too long: %d bytes", len(data))
	}
	if len(payload) == 0 {
		return UnixUnnamedAddress(), nil
	}
	if payload[0] == 0 {
		name := bytes.TrimRight(payload[1:], "\x00")
		return UnixAbstractAddress(string(name)), nil
	}
	if idx := bytes.IndexByte(payload, 0); idx >= 0 {
		payload = payload[:idx]
	}
	if len(payload)+1 > UnixPathMax {
		return nil, invalidAddressf("decode", FamilyUnix, "path not NUL-terminated")
	}
	return UnixPathAddress(string(payload)), nil
}

func encodeTIPC(addr Address) ([]byte, error) {
	buf := make([]byte, sizeofSockaddrTIPC)
	hostEndian.PutUint16(buf[0:], nativeAFTIPC)
	switch a := addr.(type) {
	case TIPCServiceRange:
		if a.Scope < 0 {
			return nil, invalidAddressf("encode", FamilyTIPC, "invalid scope %d", a.Scope)
		}
		if a.Lower > a.Upper {
			return nil, invalidAddressf("encode", FamilyTIPC, "lower %d exceeds upper %d", a.Lower, a.Upper)
		}
		buf[2] = tipcAddrServiceRange
		buf[3] = byte(a.Scope)
		hostEndian.PutUint32(buf[4:], a.Type)
		hostEndian.PutUint32(buf[8:], a.Lower)
		hostEndian.PutUint32(buf[12:], a.Upper)
	case TIPCServiceAddress:
		if a.Scope < 0 {
			return nil, invalidAddressf("encode", FamilyTIPC, "invalid scope %d", a.Scope)
		}
		buf[2] = tipcAddrServiceAddr
		buf[3] = byte(a.Scope)
		hostEndian.PutUint32(buf[4:], a.Type)
		hostEndian.PutUint32(buf[8:], a.Instance)
		hostEndian.PutUint32(buf[12:], a.Domain)
	case TIPCSocketID:
		buf[2] = tipcAddrSocketID
		hostEndian.PutUint32(buf[4:], a.Ref)
		hostEndian.PutUint32(buf[8:], a.Node)
	default:
		return nil, invalidAddressf("encode", FamilyTIPC, "unexpected address type %T", addr)
	}
	return buf, nil
}

func decodeTIPC(data []byte) (Address, error) {
	if err := checkFamilyHeader(FamilyTIPC, nativeAFTIPC, data); err != nil {
		return nil, err
	}
	if len(data) != sizeofSockaddrTIPC {
		return nil, invalidAddressf("decode", FamilyTIPC, "expected %d bytes, got %d", sizeofSockaddrTIPC, len(data))
	}
	scope := TIPCScope(int8(data[3]))
	if scope < 0 {
		return nil, invalidAddressf("decode", FamilyTIPC, "invalid scope %d", scope)
	}
	a, b, c := hostEndian.Uint32(data[4:]), hostEndian.Uint32(data[8:]), hostEndian.Uint32(data[12:])
	switch data[2] {
	case tipcAddrServiceRange:
		if b > c {
			return nil, invalidAddressf("decode", FamilyTIPC, "lower %d exceeds upper %d", b, c)
		}
		return TIPCServiceRange{Scope: scope, Type: a, Lower: b, Upper: c}, nil
	case tipcAddrServiceAddr:
		return TIPCServiceAddress{Scope: scope, Type: a, Instance: b, Domain: c}, nil
	case tipcAddrSocketID:
		if scope != 0 || c != 0 {
			return nil, invalidAddressf("decode", FamilyTIPC, "non-zero padding in socket id")
		}
		return TIPCSocketID{Ref: a, Node: b}, nil
	default:
		return nil, invalidAddressf("decode", FamilyTIPC, "unknown address type %d", data[2])
	}
}

func encodeVSOCK(addr Address) ([]byte, error) {
	a := addr.(VSOCKAddress)
	buf := make([]byte, sizeofSockaddrVM)
	hostEndian.PutUint16(buf[0:], nativeAFVSOCK)
	hostEndian.PutUint32(buf[4:], a.Port)
	hostEndian.PutUint32(buf[8:], a.CID)
	buf[12] = a.Flags
	return buf, nil
}

func decodeVSOCK(data []byte) (Address, error) {
	if err := checkFamilyHeader(FamilyVSOCK, nativeAFVSOCK, data); err != nil {
		return nil, err
	}
	if len(data) != sizeofSockaddrVM {
		return nil, invalidAddressf("decode", FamilyVSOCK, "expected %d bytes, got %d", sizeofSockaddrVM, len(data))
	}
	if hostEndian.Uint16(data[2:]) != 0 || !allZero(data[13:]) {
		return nil, invalidAddressf("decode", FamilyVSOCK, "non-zero reserved bytes")
	}
	return VSOCKAddress{
		Port:  hostEndian.Uint32(data[4:]),
		CID:   hostEndian.Uint32(data[8:]),
		Flags: data[12],
	}, nil
}

// encodeSystem uses the Darwin sockaddr_ctl layout, which starts with a
// one-byte length instead of a two-byte family.
func encodeSystem(addr Address) ([]byte, error) {
	a := addr.(SystemAddress)
	buf := make([]byte, sizeofSockaddrCtl)
	buf[0] = sizeofSockaddrCtl
	buf[1] = nativeAFSystem
	hostEndian.PutUint16(buf[2:], sysAddrControl)
	hostEndian.PutUint32(buf[4:], a.ID)
	hostEndian.PutUint32(buf[8:], a.Unit)
	return buf, nil
}

func decodeSystem(data []byte) (Address, error) {
	if len(data) != sizeofSockaddrCtl {
		return nil, invalidAddressf("decode", FamilySystem, "expected %d bytes, got %d", sizeofSockaddrCtl, len(data))
	}
	if data[0] != sizeofSockaddrCtl || data[1] != nativeAFSystem {
		return nil, invalidAddressf("decode", FamilySystem, "invalid header %d/%d", data[0], data[1])
	}
	if got := hostEndian.Uint16(data[2:]); got != sysAddrControl {
		return nil, invalidAddressf("decode", FamilySystem, "unsupported sysaddr %d", got)
	}
	if !allZero(data[12:]) {
		return nil, invalidAddressf("decode", FamilySystem, "non-zero reserved bytes")
	}
	return SystemAddress{ID: hostEndian.Uint32(data[4:]), Unit: hostEndian.Uint32(data[8:])}, nil
}

func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
