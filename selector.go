//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Ops is a set of readiness operations.
type Ops uint8

const (
	// OpRead is readiness to receive.
	OpRead Ops = 1 << iota

	// OpWrite is readiness to send.
	OpWrite

	// OpAccept is readiness to accept a connection.
	OpAccept

	// OpConnect is readiness to complete a non-blocking connect.
	OpConnect
)

// String returns the operations separated by "|".
func (o Ops) String() string {
	var names []string
	for _, entry := range []struct {
		op   Ops
		name string
	}{{OpRead, "read"}, {OpWrite, "write"}, {OpAccept, "accept"}, {OpConnect, "connect"}} {
		if o&entry.op != 0 {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, "|")
}

// SelectionKey is the registration of a [*Channel] with a [*Selector].
type SelectionKey struct {
	attachment any
	channel    *Channel
	sel        *Selector

	// protected by sel.mu
	cancelled bool
	interest  Ops
	ready     Ops
}

// Channel returns the registered channel.
func (k *SelectionKey) Channel() *Channel { return k.channel }

// Attachment returns the value passed to [*Channel.Register].
func (k *SelectionKey) Attachment() any { return k.attachment }

// Interest returns the operations the key is interested in.
func (k *SelectionKey) Interest() Ops {
	k.sel.mu.Lock()
	defer k.sel.mu.Unlock()
	return k.interest
}

// SetInterest changes the operations the key is interested in. It takes
// effect at the next [*Selector.Select].
func (k *SelectionKey) SetInterest(ops Ops) {
	k.sel.mu.Lock()
	k.interest = ops
	k.sel.mu.Unlock()
}

// Ready returns the operations found ready by the last select.
func (k *SelectionKey) Ready() Ops {
	k.sel.mu.Lock()
	defer k.sel.mu.Unlock()
	return k.ready
}

// Cancel removes the key from its selector.
func (k *SelectionKey) Cancel() {
	k.sel.mu.Lock()
	k.cancelled = true
	delete(k.sel.keys, k)
	k.sel.mu.Unlock()
}

// NewSelector returns a new [*Selector].
func NewSelector() (*Selector, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, wrapError("selector", FamilyUnknown, err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, wrapError("selector", FamilyUnknown, err)
		}
	}
	return &Selector{keys: make(map[*SelectionKey]struct{}), wakeR: fds[0], wakeW: fds[1]}, nil
}

// Selector waits for readiness of registered channels using poll(2).
//
// Select blocks the calling goroutine's thread. Use [*Selector.Wakeup]
// or a context to interrupt it.
type Selector struct {
	closed bool
	keys   map[*SelectionKey]struct{}
	mu     sync.Mutex
	wakeR  int
	wakeW  int
}

func (s *Selector) register(c *Channel, ops Ops, attachment any) (*SelectionKey, error) {
	if err := c.h.checkOpen("register"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, closedError("register", c.h.family)
	}
	for key := range s.keys {
		if key.channel == c {
			key.interest, key.attachment = ops, attachment
			return key, nil
		}
	}
	key := &SelectionKey{attachment: attachment, channel: c, interest: ops, sel: s}
	s.keys[key] = struct{}{}
	return key, nil
}

// Keys returns the registered keys.
func (s *Selector) Keys() []*SelectionKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]*SelectionKey, 0, len(s.keys))
	for key := range s.keys {
		keys = append(keys, key)
	}
	return keys
}

// Select waits until at least one registered channel is ready, the
// timeout expires, ctx is done or [*Selector.Wakeup] is called, and
// returns the ready keys. A negative timeout waits forever.
//
// Keys of closed channels are removed. Descriptors are read again at
// every call, and readiness reported for a channel closed while polling
// is discarded, since its descriptor number may have been reused.
func (s *Selector) Select(ctx context.Context, timeout time.Duration) ([]*SelectionKey, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, closedError("select", FamilyUnknown)
	}
	pollfds := []unix.PollFd{{Fd: int32(s.wakeR), Events: unix.POLLIN}}
	var keys []*SelectionKey
	for key := range s.keys {
		sysfd, ok := key.descriptor()
		if !ok {
			key.cancelled = true
			delete(s.keys, key)
			continue
		}
		var events int16
		if key.interest&(OpRead|OpAccept) != 0 {
			events |= unix.POLLIN
		}
		if key.interest&(OpWrite|OpConnect) != 0 {
			events |= unix.POLLOUT
		}
		key.ready = 0
		pollfds = append(pollfds, unix.PollFd{Fd: int32(sysfd), Events: events})
		keys = append(keys, key)
	}
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, s.Wakeup)
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout < 0 || remaining < timeout {
			timeout = max(remaining, 0)
		}
	}
	msec := -1
	if timeout >= 0 {
		msec = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	_, err := unix.Poll(pollfds, msec)
	if err != nil && !errors.Is(err, unix.EINTR) {
		return nil, wrapError("select", FamilyUnknown, err)
	}
	s.drainWakeup()

	s.mu.Lock()
	var ready []*SelectionKey
	for idx, key := range keys {
		if key.cancelled {
			continue
		}
		if key.channel.h.IsClosed() {
			key.cancelled = true
			delete(s.keys, key)
			continue
		}
		revents := pollfds[idx+1].Revents
		var ops Ops
		if revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ops |= key.interest & (OpRead | OpAccept)
		}
		if revents&(unix.POLLOUT|unix.POLLHUP|unix.POLLERR) != 0 {
			ops |= key.interest & (OpWrite | OpConnect)
		}
		key.ready = ops
		if ops != 0 {
			ready = append(ready, key)
		}
	}
	s.mu.Unlock()
	if len(ready) == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return ready, nil
}

// descriptor returns the current descriptor of the key's channel, or
// false once the channel is closed.
func (k *SelectionKey) descriptor() (int, bool) {
	if k.channel.h.IsClosed() {
		return -1, false
	}
	sysfd := -1
	err := k.channel.h.control(func(fd int) error {
		sysfd = fd
		return nil
	})
	return sysfd, err == nil
}

// Wakeup causes a blocked (or the next) Select to return immediately.
func (s *Selector) Wakeup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		unix.Write(s.wakeW, []byte{0})
	}
}

func (s *Selector) drainWakeup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	buf := make([]byte, 64)
	for {
		if n, err := unix.Read(s.wakeR, buf); err != nil || n <= 0 {
			return
		}
	}
}

// Close cancels all keys and releases the selector. It does not close
// the registered channels. Close is idempotent.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for key := range s.keys {
		key.cancelled = true
		delete(s.keys, key)
	}
	unix.Close(s.wakeR)
	unix.Close(s.wakeW)
	return nil
}
