//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import "context"

// Channel adds non-blocking, selectable I/O on top of a [*Handle].
//
// A new channel is in blocking mode. In non-blocking mode operations
// never wait: they fail with [ErrWouldBlock] when they cannot complete
// and Connect fails with [ErrConnectPending] after initiating the
// connection, which [*Channel.FinishConnect] later completes. Use a
// [*Selector] to wait for readiness.
//
// Closing the channel (or its handle) from another goroutine wakes any
// blocked operation with [ErrSocketClosed].
type Channel struct {
	h *Handle
}

// NewChannel returns a [*Channel] wrapping the given handle. The channel
// shares the handle's lifecycle.
func NewChannel(h *Handle) *Channel {
	return &Channel{h: h}
}

// Handle returns the underlying handle.
func (c *Channel) Handle() *Handle {
	return c.h
}

// SetBlocking switches between blocking and non-blocking mode.
func (c *Channel) SetBlocking(block bool) error {
	if err := c.h.checkOpen("setblocking"); err != nil {
		return err
	}
	c.h.nonblocking.Store(!block)
	return nil
}

// IsBlocking reports whether the channel is in blocking mode.
func (c *Channel) IsBlocking() bool {
	return !c.h.nonblocking.Load()
}

// Read reads from the connected socket.
func (c *Channel) Read(p []byte) (int, error) {
	return c.h.Read(p)
}

// Write writes to the connected socket.
func (c *Channel) Write(p []byte) (int, error) {
	return c.h.Write(p)
}

// Send is like [*Handle.Send].
func (c *Channel) Send(ctx context.Context, p []byte, anc *Ancillary) (int, error) {
	return c.h.Send(ctx, p, anc)
}

// SendTo is like [*Handle.SendTo].
func (c *Channel) SendTo(ctx context.Context, p []byte, to Address, anc *Ancillary) (int, error) {
	return c.h.SendTo(ctx, p, to, anc)
}

// Receive is like [*Handle.Receive].
func (c *Channel) Receive(ctx context.Context, p []byte, req AncillaryRequest) (Message, error) {
	return c.h.Receive(ctx, p, req)
}

// Accept returns a channel for the next pending connection. The new
// channel is in blocking mode.
func (c *Channel) Accept(ctx context.Context) (*Channel, Address, error) {
	child, addr, err := c.h.Accept(ctx)
	if err != nil {
		return nil, nil, err
	}
	return NewChannel(child), addr, nil
}

// Connect is like [*Handle.Connect].
func (c *Channel) Connect(ctx context.Context, addr Address) error {
	return c.h.Connect(ctx, addr)
}

// FinishConnect completes a connection initiated in non-blocking mode.
//
// It returns true once the connection is established and false while
// still in progress. Polling it repeatedly has no side effects; after
// completion it keeps returning the final result.
func (c *Channel) FinishConnect() (bool, error) {
	return c.h.finishConnect()
}

// IsConnectionPending reports whether a non-blocking connect is in progress.
func (c *Channel) IsConnectionPending() bool {
	return c.h.isConnectPending()
}

// Register registers the channel with the selector for the given
// operations and returns the selection key.
func (c *Channel) Register(sel *Selector, ops Ops, attachment any) (*SelectionKey, error) {
	return sel.register(c, ops, attachment)
}

// Close closes the underlying handle.
func (c *Channel) Close() error {
	return c.h.Close()
}
