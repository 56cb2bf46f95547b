//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"net"
)

// Listen opens a stream socket, binds it to addr and starts listening
// with [Config.Backlog]. Stale Unix sockets at addr are reclaimed when
// forceRebind is true.
func Listen(cfg *Config, addr Address, forceRebind bool, logger SLogger) (*Listener, error) {
	if addr == nil {
		return nil, invalidAddressf("listen", FamilyUnknown, "nil address")
	}
	h, err := OpenHandle(cfg, addr.Family(), SocketStream, logger)
	if err != nil {
		return nil, err
	}
	if err := h.Bind(addr, forceRebind); err != nil {
		h.Close()
		return nil, err
	}
	if err := h.Listen(0); err != nil {
		h.Close()
		return nil, err
	}
	return NewListener(h), nil
}

// NewListener returns a [*Listener] that owns the given listening handle.
func NewListener(h *Handle) *Listener {
	l := &Listener{h: h}
	if addr, err := h.LocalAddress(); err == nil {
		l.addr = addr
	}
	return l
}

// Listener is a [net.Listener] view of a listening [*Handle].
type Listener struct {
	addr Address
	h    *Handle
}

var _ net.Listener = &Listener{}

// Handle returns the underlying handle.
func (l *Listener) Handle() *Handle {
	return l.h
}

// Accept implements [net.Listener]. It returns a [*Conn].
func (l *Listener) Accept() (net.Conn, error) {
	return l.AcceptContext(context.Background())
}

// AcceptContext is like Accept but honors ctx.
func (l *Listener) AcceptContext(ctx context.Context) (net.Conn, error) {
	child, _, err := l.h.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return NewConn(child), nil
}

// Close implements [net.Listener]. It wakes blocked Accept calls.
func (l *Listener) Close() error {
	return l.h.Close()
}

// Addr implements [net.Listener].
func (l *Listener) Addr() net.Addr {
	if l.addr == nil {
		return nil
	}
	return l.addr
}
