//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"io"
	"net"
)

// DialContext implements [Dialer].
func (d *HandleDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	family, err := ParseFamily(network)
	if err != nil {
		return nil, err
	}
	addr, err := ParseAddress(family, address)
	if err != nil {
		return nil, err
	}
	h, err := OpenHandle(d.Config, family, d.Type, DefaultSLogger())
	if err != nil {
		return nil, err
	}
	if err := h.Connect(ctx, addr); err != nil {
		h.Close()
		return nil, err
	}
	return NewConn(h), nil
}

// DialTopology implements [TopologyDialer].
func (d *HandleTopologyDialer) DialTopology(ctx context.Context) (io.ReadWriteCloser, error) {
	h, err := OpenHandle(d.Config, FamilyTIPC, SocketSeqPacket, DefaultSLogger())
	if err != nil {
		return nil, err
	}
	if err := h.Connect(ctx, TopologyServiceAddress); err != nil {
		h.Close()
		return nil, err
	}
	return NewConn(h), nil
}
