// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"net"
)

// NewCancelWatchFunc returns a new [*CancelWatchFunc].
func NewCancelWatchFunc() *CancelWatchFunc {
	return &CancelWatchFunc{}
}

// CancelWatchFunc arranges for the connection to be closed when the context
// is done (cancelled or deadline exceeded). Closing a [*Conn] closes its
// [*Handle], which wakes any blocked read, write or accept with
// [ErrSocketClosed] instead of waiting for per-operation deadlines.
//
// The returned connection wraps the input connection. Closing the returned
// connection unregisters the context watcher and closes the underlying
// connection, so no watcher outlives the connection.
//
// Use this primitive when the context lifetime matches the intended
// connection lifetime (e.g., CLI tools honoring ^C). Do not use it when
// the connection may outlive the current context.
type CancelWatchFunc struct{}

var _ Func[net.Conn, net.Conn] = &CancelWatchFunc{}

// Call registers a context watcher using [context.AfterFunc] that closes
// the connection when the context is done. The returned [net.Conn] wraps
// the input: closing it unregisters the watcher and closes the underlying
// connection.
func (op *CancelWatchFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	return &cancelWatchedConn{Conn: conn, stop: stop}, nil
}

// cancelWatchedConn wraps a [net.Conn] with a context cancellation watcher.
type cancelWatchedConn struct {
	net.Conn
	stop func() bool
}

// Close unregisters the context watcher and closes the underlying connection.
func (c *cancelWatchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}

// CloseRead forwards to the underlying connection when it supports half-close.
func (c *cancelWatchedConn) CloseRead() error {
	if hc, ok := c.Conn.(halfCloser); ok {
		return hc.CloseRead()
	}
	return newError(ErrOperationNotSupported, "shutdown", FamilyUnknown, nil)
}

// CloseWrite forwards to the underlying connection when it supports half-close.
func (c *cancelWatchedConn) CloseWrite() error {
	if hc, ok := c.Conn.(halfCloser); ok {
		return hc.CloseWrite()
	}
	return newError(ErrOperationNotSupported, "shutdown", FamilyUnknown, nil)
}
