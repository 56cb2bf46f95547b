//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"net"
	"time"
)

// NewConn returns a [*Conn] that owns the given connected handle.
func NewConn(h *Handle) *Conn {
	c := &Conn{h: h}
	if addr, err := h.LocalAddress(); err == nil {
		c.laddr = addr
	}
	if addr, err := h.RemoteAddress(); err == nil {
		c.raddr = addr
	}
	return c
}

// Conn is a [net.Conn] view of a connected [*Handle].
//
// Addresses are captured at construction: LocalAddr and RemoteAddr
// return nil when the kernel did not report them.
type Conn struct {
	h     *Handle
	laddr Address
	raddr Address
}

var _ net.Conn = &Conn{}

// Handle returns the underlying handle.
func (c *Conn) Handle() *Handle {
	return c.h
}

// Read implements [net.Conn].
func (c *Conn) Read(p []byte) (int, error) {
	return c.h.Read(p)
}

// Write implements [net.Conn].
func (c *Conn) Write(p []byte) (int, error) {
	return c.h.Write(p)
}

// Close implements [net.Conn].
func (c *Conn) Close() error {
	return c.h.Close()
}

// CloseRead shuts down the read side of the connection.
func (c *Conn) CloseRead() error {
	return c.h.Shutdown(ShutdownRead)
}

// CloseWrite shuts down the write side of the connection.
func (c *Conn) CloseWrite() error {
	return c.h.Shutdown(ShutdownWrite)
}

// LocalAddr implements [net.Conn].
func (c *Conn) LocalAddr() net.Addr {
	if c.laddr == nil {
		return nil
	}
	return c.laddr
}

// RemoteAddr implements [net.Conn].
func (c *Conn) RemoteAddr() net.Addr {
	if c.raddr == nil {
		return nil
	}
	return c.raddr
}

// SetDeadline implements [net.Conn].
func (c *Conn) SetDeadline(t time.Time) error {
	return c.h.SetDeadline(t)
}

// SetReadDeadline implements [net.Conn].
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.h.SetReadDeadline(t)
}

// SetWriteDeadline implements [net.Conn].
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.h.SetWriteDeadline(t)
}
