//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSelector returns a selector closed at cleanup.
func newTestSelector(t *testing.T) *Selector {
	sel, err := NewSelector()
	require.NoError(t, err)
	t.Cleanup(func() { sel.Close() })
	return sel
}

// Non-blocking channels fail with ErrWouldBlock instead of waiting.
func TestChannelNonblockingRead(t *testing.T) {
	a, b := newSocketPair(t, NewConfig(), SocketStream)
	ca, cb := NewChannel(a), NewChannel(b)
	assert.True(t, cb.IsBlocking())
	assert.Same(t, b, cb.Handle())

	require.NoError(t, cb.SetBlocking(false))
	assert.False(t, cb.IsBlocking())

	_, err := cb.Read(make([]byte, 8))
	require.ErrorIs(t, err, ErrWouldBlock)
	_, err = cb.Receive(context.Background(), make([]byte, 8), AncillaryRequest{})
	require.ErrorIs(t, err, ErrWouldBlock)

	_, err = ca.Write([]byte("data"))
	require.NoError(t, err)
	buf := make([]byte, 8)
	require.Eventually(t, func() bool {
		n, err := cb.Read(buf)
		return err == nil && string(buf[:n]) == "data"
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, cb.Close())
	require.ErrorIs(t, cb.SetBlocking(true), ErrSocketClosed)
}

// Select reports read readiness only once data is available.
func TestSelectorReadReadiness(t *testing.T) {
	a, b := newSocketPair(t, NewConfig(), SocketStream)
	sel := newTestSelector(t)

	cb := NewChannel(b)
	require.NoError(t, cb.SetBlocking(false))
	key, err := cb.Register(sel, OpRead, "peer")
	require.NoError(t, err)
	assert.Same(t, cb, key.Channel())
	assert.Equal(t, "peer", key.Attachment())
	assert.Equal(t, OpRead, key.Interest())
	assert.Len(t, sel.Keys(), 1)

	ready, err := sel.Select(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, ready)

	_, err = a.Write([]byte("x"))
	require.NoError(t, err)
	ready, err = sel.Select(context.Background(), 5*time.Second)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Same(t, key, ready[0])
	assert.Equal(t, OpRead, key.Ready())

	// registering again updates the existing key
	again, err := cb.Register(sel, OpRead|OpWrite, "updated")
	require.NoError(t, err)
	assert.Same(t, key, again)
	assert.Equal(t, "updated", key.Attachment())

	key.SetInterest(OpWrite)
	ready, err = sel.Select(context.Background(), 5*time.Second)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, OpWrite, key.Ready())

	key.Cancel()
	assert.Empty(t, sel.Keys())
}

// Wakeup and context cancellation interrupt an indefinite Select.
func TestSelectorWakeup(t *testing.T) {
	_, b := newSocketPair(t, NewConfig(), SocketStream)
	sel := newTestSelector(t)
	_, err := NewChannel(b).Register(sel, OpRead, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		ready, err := sel.Select(context.Background(), -1)
		if err == nil && len(ready) != 0 {
			err = errors.New("unexpected ready keys")
		}
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	sel.Wakeup()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wakeup did not interrupt Select")
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err = sel.Select(ctx, -1)
	require.ErrorIs(t, err, context.Canceled)
}

// Closed channels drop out and a closed selector refuses work.
func TestSelectorClose(t *testing.T) {
	_, b := newSocketPair(t, NewConfig(), SocketStream)
	sel := newTestSelector(t)
	cb := NewChannel(b)
	_, err := cb.Register(sel, OpRead, nil)
	require.NoError(t, err)

	require.NoError(t, cb.Close())
	ready, err := sel.Select(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, ready)
	assert.Empty(t, sel.Keys())

	other, _ := newSocketPair(t, NewConfig(), SocketStream)
	require.NoError(t, sel.Close())
	require.NoError(t, sel.Close())
	_, err = sel.Select(context.Background(), 0)
	require.ErrorIs(t, err, ErrSocketClosed)
	_, err = NewChannel(other).Register(sel, OpRead, nil)
	require.ErrorIs(t, err, ErrSocketClosed)
}

// A descriptor number reused after close is not reported for the old key.
func TestSelectorReusedDescriptor(t *testing.T) {
	sel := newTestSelector(t)
	_, b := newSocketPair(t, NewConfig(), SocketStream)
	old := NewChannel(b)
	oldKey, err := old.Register(sel, OpRead, "old")
	require.NoError(t, err)
	require.NoError(t, old.Close())

	// the new pair likely takes over the descriptor numbers just released
	c, d := newSocketPair(t, NewConfig(), SocketStream)
	_, err = c.Write([]byte("x"))
	require.NoError(t, err)

	ready, err := sel.Select(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, ready)
	assert.Empty(t, sel.Keys())
	assert.Equal(t, Ops(0), oldKey.Ready())

	newKey, err := NewChannel(d).Register(sel, OpRead, "new")
	require.NoError(t, err)
	ready, err = sel.Select(context.Background(), 5*time.Second)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Same(t, newKey, ready[0])

	_, err = old.Register(sel, OpRead, nil)
	require.ErrorIs(t, err, ErrSocketClosed)
}

// Non-blocking accept and connect complete through the selector.
func TestSelectorAcceptAndConnect(t *testing.T) {
	cfg := NewConfig()
	addr := UnixPathAddress(newSocketPath(t, "select.sock"))
	sel := newTestSelector(t)

	listener, err := Listen(cfg, addr, false, DefaultSLogger())
	require.NoError(t, err)
	defer listener.Close()
	server := NewChannel(listener.Handle())
	require.NoError(t, server.SetBlocking(false))

	_, _, err = server.Accept(context.Background())
	require.ErrorIs(t, err, ErrWouldBlock)
	acceptKey, err := server.Register(sel, OpAccept, nil)
	require.NoError(t, err)

	h, err := OpenHandle(cfg, FamilyUnix, SocketStream, DefaultSLogger())
	require.NoError(t, err)
	client := NewChannel(h)
	defer client.Close()
	require.NoError(t, client.SetBlocking(false))

	err = client.Connect(context.Background(), addr)
	if errors.Is(err, ErrConnectPending) {
		assert.True(t, client.IsConnectionPending())
		_, err = client.Register(sel, OpConnect, nil)
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			done, err := client.FinishConnect()
			return err == nil && done
		}, 5*time.Second, 10*time.Millisecond)
	} else {
		require.NoError(t, err)
	}
	assert.False(t, client.IsConnectionPending())
	connected, err := client.FinishConnect()
	require.NoError(t, err)
	assert.True(t, connected)
	assert.Equal(t, HandleConnected, h.State())

	ready, err := sel.Select(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Contains(t, ready, acceptKey)
	assert.Equal(t, OpAccept, acceptKey.Ready())

	child, _, err := server.Accept(context.Background())
	require.NoError(t, err)
	defer child.Close()
	assert.Equal(t, HandleConnected, child.Handle().State())
}

// Ops render as a pipe separated list.
func TestOpsString(t *testing.T) {
	assert.Equal(t, "", Ops(0).String())
	assert.Equal(t, "read|accept", (OpRead | OpAccept).String())
	assert.Equal(t, "read|write|accept|connect", (OpRead | OpWrite | OpAccept | OpConnect).String())
}
