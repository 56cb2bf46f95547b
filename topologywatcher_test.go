// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTopologyService is the server end of an in-memory topology
// service connection. [net.Pipe] preserves write boundaries for reads
// with a large enough buffer, like a seqpacket socket.
type fakeTopologyService struct {
	conn net.Conn
}

// newTopologyWatcherWithFake returns a watcher dialing a fake service.
func newTopologyWatcherWithFake(
	t *testing.T, listener TopologyListener, logger SLogger) (*TopologyWatcher, *fakeTopologyService) {
	client, server := net.Pipe()
	t.Cleanup(func() { server.Close() })

	cfg := NewConfig()
	cfg.TopologyDialer = TopologyDialerFunc(func(ctx context.Context) (io.ReadWriteCloser, error) {
		return client, nil
	})
	return NewTopologyWatcher(cfg, listener, logger), &fakeTopologyService{conn: server}
}

// readSubscription reads one subscription record.
func (f *fakeTopologyService) readSubscription(t *testing.T) []byte {
	buf := make([]byte, 64)
	n, err := f.conn.Read(buf)
	if err != nil {
		t.Error(err)
		return nil
	}
	return buf[:n]
}

// subscribeAsync runs fn while the fake service reads the record it sends.
func (f *fakeTopologyService) subscribeAsync(t *testing.T, fn func() error) []byte {
	records := make(chan []byte, 1)
	go func() { records <- f.readSubscription(t) }()
	require.NoError(t, fn())
	return <-records
}

// send writes one raw record to the watcher.
func (f *fakeTopologyService) send(t *testing.T, record []byte) {
	_, err := f.conn.Write(record)
	require.NoError(t, err)
}

// A service subscription reaches the service in wire format and a
// published event for it reaches the listener.
func TestTopologyWatcherServiceSubscription(t *testing.T) {
	events := make(chan *TopologyEvent, 4)
	listener := TopologyListenerFunc(func(event *TopologyEvent) { events <- event })
	logger, records := newCapturingLogger()
	watcher, service := newTopologyWatcherWithFake(t, listener, logger)

	var sub TopologySubscription
	record := service.subscribeAsync(t, func() (err error) {
		sub, err = watcher.AddServiceSubscription(context.Background(), 100, 5, 5, 1000)
		return
	})
	wantRecord, err := sub.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, wantRecord, record)
	assert.True(t, sub.IsService())
	assert.Equal(t, uint32(1000), sub.Timeout)

	require.NoError(t, watcher.Start(context.Background()))
	assert.True(t, watcher.IsRunning())

	// malformed records are skipped
	service.send(t, []byte("short"))
	badKind, err := (&TopologyEvent{Kind: 7, Subscription: sub}).MarshalBinary()
	require.NoError(t, err)
	service.send(t, badKind)

	published := &TopologyEvent{
		Kind:         TopologyPublished,
		FoundLower:   5,
		FoundUpper:   5,
		Port:         TIPCSocketID{Ref: 77, Node: 1},
		Subscription: sub,
	}
	data, err := published.MarshalBinary()
	require.NoError(t, err)
	service.send(t, data)

	select {
	case got := <-events:
		assert.Equal(t, published, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}

	cancelRecord := service.subscribeAsync(t, func() error {
		return watcher.CancelSubscription(context.Background(), sub)
	})
	require.Len(t, cancelRecord, TopologySubscriptionSize)
	cancelled, err := ParseTopologySubscription(cancelRecord)
	require.NoError(t, err)
	assert.Equal(t, sub.Cancellation(), cancelled)

	require.NoError(t, watcher.Close())
	select {
	case <-watcher.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Equal(t, WatcherStopped, watcher.State())
	assert.Empty(t, events)

	malformed := 0
	for _, msg := range recordMessages(*records) {
		if msg == "topologyEventMalformed" {
			malformed++
		}
	}
	assert.Equal(t, 2, malformed)
}

// Port and link state subscriptions use the default timeout.
func TestTopologyWatcherPortAndLinkState(t *testing.T) {
	watcher, service := newTopologyWatcherWithFake(t, TopologyListenerFunc(func(*TopologyEvent) {}), DefaultSLogger())
	watcher.DefaultTimeout = 2500
	defer watcher.Close()

	record := service.subscribeAsync(t, func() error {
		_, err := watcher.AddPortSubscription(context.Background(), 0, ^uint32(0))
		return err
	})
	sub, err := ParseTopologySubscription(record)
	require.NoError(t, err)
	assert.Equal(t, TopologySubscription{
		Type: TIPCNodeState, Lower: 0, Upper: ^uint32(0), Filter: SubscribePorts, Timeout: 2500,
	}, sub)

	record = service.subscribeAsync(t, func() error {
		_, err := watcher.AddLinkStateSubscription(context.Background())
		return err
	})
	sub, err = ParseTopologySubscription(record)
	require.NoError(t, err)
	assert.Equal(t, TopologySubscription{
		Type: TIPCLinkState, Lower: 0, Upper: ^uint32(0), Timeout: 2500,
	}, sub)
}

// RunLoop returns when ctx is done and the loop cannot start twice.
func TestTopologyWatcherRunLoop(t *testing.T) {
	watcher, _ := newTopologyWatcherWithFake(t, TopologyListenerFunc(func(*TopologyEvent) {}), DefaultSLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.RunLoop(ctx) }()

	require.Eventually(t, watcher.IsRunning, 5*time.Second, 10*time.Millisecond)
	require.ErrorIs(t, watcher.Start(context.Background()), ErrAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunLoop did not return")
	}
	assert.Equal(t, WatcherStopped, watcher.State())

	// stopped is terminal
	require.ErrorIs(t, watcher.Start(context.Background()), ErrSocketClosed)
	_, err := watcher.AddServiceSubscription(context.Background(), 1, 1, 1, TIPCWaitForever)
	require.ErrorIs(t, err, ErrSocketClosed)
	require.NoError(t, watcher.Close())
}

// A service closing the connection ends RunLoop with the read error.
func TestTopologyWatcherServiceHangup(t *testing.T) {
	watcher, service := newTopologyWatcherWithFake(t, TopologyListenerFunc(func(*TopologyEvent) {}), DefaultSLogger())

	done := make(chan error, 1)
	go func() { done <- watcher.RunLoop(context.Background()) }()
	require.Eventually(t, watcher.IsRunning, 5*time.Second, 10*time.Millisecond)

	service.conn.Close()
	select {
	case err := <-done:
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(5 * time.Second):
		t.Fatal("RunLoop did not return")
	}
	assert.Equal(t, WatcherStopped, watcher.State())
}

// Stopping an idle watcher is immediate and idempotent.
func TestTopologyWatcherStopIdle(t *testing.T) {
	dialed := false
	cfg := NewConfig()
	cfg.TopologyDialer = TopologyDialerFunc(func(ctx context.Context) (io.ReadWriteCloser, error) {
		dialed = true
		return nil, errors.New("unexpected dial")
	})
	watcher := NewTopologyWatcher(cfg, TopologyListenerFunc(func(*TopologyEvent) {}), DefaultSLogger())

	assert.Equal(t, WatcherIdle, watcher.State())
	require.NoError(t, watcher.StopLoop())
	require.NoError(t, watcher.Close())
	assert.Equal(t, WatcherStopped, watcher.State())
	<-watcher.Done()
	assert.False(t, dialed)
}

// Dial failures and invalid subscriptions surface to the caller.
func TestTopologyWatcherErrors(t *testing.T) {
	wantErr := newError(ErrAddressFamilyUnavailable, "connect", FamilyTIPC, nil)
	cfg := NewConfig()
	cfg.TopologyDialer = TopologyDialerFunc(func(ctx context.Context) (io.ReadWriteCloser, error) {
		return nil, wantErr
	})
	logger, records := newCapturingLogger()
	watcher := NewTopologyWatcher(cfg, TopologyListenerFunc(func(*TopologyEvent) {}), logger)

	_, err := watcher.AddServiceSubscription(context.Background(), 100, 10, 5, TIPCWaitForever)
	require.ErrorIs(t, err, ErrMalformedRecord)
	assert.Empty(t, *records)

	_, err = watcher.AddServiceSubscription(context.Background(), 100, 5, 10, TIPCWaitForever)
	require.ErrorIs(t, err, ErrAddressFamilyUnavailable)
	assert.Equal(t, []string{"topologyDialStart", "topologyDialDone"}, recordMessages(*records))

	require.ErrorIs(t, watcher.Start(context.Background()), ErrAddressFamilyUnavailable)
	assert.Equal(t, WatcherIdle, watcher.State())
}

// WatcherState names are stable.
func TestWatcherStateString(t *testing.T) {
	assert.Equal(t, "idle", WatcherIdle.String())
	assert.Equal(t, "running", WatcherRunning.String())
	assert.Equal(t, "stopping", WatcherStopping.String())
	assert.Equal(t, "stopped", WatcherStopped.String())
	assert.Equal(t, "unknown", WatcherState(42).String())
}
