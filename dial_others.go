//go:build !linux && !darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"io"
	"net"
)

// DialContext implements [Dialer].
func (d *HandleDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	family, _ := ParseFamily(network)
	return nil, newError(ErrAddressFamilyUnavailable, "connect", family, nil)
}

// DialTopology implements [TopologyDialer].
func (d *HandleTopologyDialer) DialTopology(ctx context.Context) (io.ReadWriteCloser, error) {
	return nil, newError(ErrAddressFamilyUnavailable, "connect", FamilyTIPC, nil)
}
