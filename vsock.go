// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/mdlayher/vsock"
)

// LocalContextID returns the VSOCK context ID of the running machine.
//
// Fails with [ErrAddressFamilyUnavailable] when the platform has no
// VSOCK support or /dev/vsock is missing.
func LocalContextID() (uint32, error) {
	cid, err := vsock.ContextID()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, errors.ErrUnsupported) {
			return 0, newError(ErrAddressFamilyUnavailable, "contextid", FamilyVSOCK, err)
		}
		return 0, wrapError("contextid", FamilyVSOCK, err)
	}
	return cid, nil
}

// VSOCKDialer is a [Dialer] for [FamilyVSOCK] stream connections backed
// by the github.com/mdlayher/vsock package instead of [*Handle].
//
// Use it as [Config.Dialer] when the caller wants a [*vsock.Conn].
type VSOCKDialer struct{}

var _ Dialer = VSOCKDialer{}

// DialContext implements [Dialer]. The network must be "vsock". The ctx
// is checked before dialing since the underlying dial is not cancellable.
func (VSOCKDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	family, err := ParseFamily(network)
	if err != nil {
		return nil, err
	}
	if family != FamilyVSOCK {
		return nil, newError(ErrAddressFamilyUnavailable, "connect", family, errors.New("VSOCKDialer only dials vsock"))
	}
	addr, err := ParseAddress(family, address)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, wrapError("connect", family, err)
	}
	va := addr.(VSOCKAddress)
	conn, err := vsock.Dial(va.CID, va.Port, nil)
	if err != nil {
		return nil, wrapError("connect", family, err)
	}
	return conn, nil
}
