// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// TopologyDialer opens a connection to the TIPC topology service.
//
// The returned stream must preserve record boundaries: each Write sends
// one subscription and each Read returns at most one event.
type TopologyDialer interface {
	DialTopology(ctx context.Context) (io.ReadWriteCloser, error)
}

// TopologyDialerFunc adapts a function to the [TopologyDialer] interface.
type TopologyDialerFunc func(ctx context.Context) (io.ReadWriteCloser, error)

var _ TopologyDialer = TopologyDialerFunc(nil)

// DialTopology implements [TopologyDialer].
func (f TopologyDialerFunc) DialTopology(ctx context.Context) (io.ReadWriteCloser, error) {
	return f(ctx)
}

// HandleTopologyDialer is the default [TopologyDialer]. It connects a
// TIPC seqpacket [*Handle] to [TopologyServiceAddress].
type HandleTopologyDialer struct {
	// Config is the configuration used to open handles.
	Config *Config
}

var _ TopologyDialer = &HandleTopologyDialer{}

// TopologyListener receives the events delivered by a [*TopologyWatcher].
//
// OnEvent runs on the receive loop goroutine: events are delivered
// sequentially in arrival order.
type TopologyListener interface {
	OnEvent(event *TopologyEvent)
}

// TopologyListenerFunc adapts a function to the [TopologyListener] interface.
type TopologyListenerFunc func(event *TopologyEvent)

var _ TopologyListener = TopologyListenerFunc(nil)

// OnEvent implements [TopologyListener].
func (f TopologyListenerFunc) OnEvent(event *TopologyEvent) {
	f(event)
}

// WatcherState is the lifecycle state of a [*TopologyWatcher].
type WatcherState int

const (
	// WatcherIdle means the receive loop has not started yet.
	WatcherIdle WatcherState = iota

	// WatcherRunning means the receive loop is delivering events.
	WatcherRunning

	// WatcherStopping means a stop was requested and the loop is exiting.
	WatcherStopping

	// WatcherStopped is the terminal state.
	WatcherStopped
)

// String returns the state name.
func (s WatcherState) String() string {
	switch s {
	case WatcherIdle:
		return "idle"
	case WatcherRunning:
		return "running"
	case WatcherStopping:
		return "stopping"
	case WatcherStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// topologyReadBufferSize is large enough for one event record.
const topologyReadBufferSize = 64

// NewTopologyWatcher returns a new [*TopologyWatcher].
//
// The cfg argument contains the common configuration for afsock operations.
//
// The listener argument receives the events.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewTopologyWatcher(cfg *Config, listener TopologyListener, logger SLogger) *TopologyWatcher {
	return &TopologyWatcher{
		DefaultTimeout: TIPCWaitForever,
		Dialer:         cfg.TopologyDialer,
		ErrClassifier:  cfg.ErrClassifier,
		Listener:       listener,
		Logger:         logger,
		TimeNow:        cfg.TimeNow,
		done:           make(chan struct{}),
	}
}

// TopologyWatcher subscribes to the TIPC topology service and delivers
// the resulting events to a [TopologyListener].
//
// The connection to the topology service opens lazily on the first
// subscription or when the receive loop starts. Subscriptions may be
// sent from any goroutine, including from within the listener.
//
// The lifecycle is Idle, Running, Stopping and Stopped. Stopped is terminal.
//
// All fields are safe to modify after construction but before first use.
type TopologyWatcher struct {
	// DefaultTimeout is the timeout in milliseconds used by
	// [*TopologyWatcher.AddPortSubscription] and
	// [*TopologyWatcher.AddLinkStateSubscription].
	//
	// Set by [NewTopologyWatcher] to [TIPCWaitForever].
	DefaultTimeout uint32

	// Dialer opens the connection to the topology service.
	//
	// Set by [NewTopologyWatcher] from [Config.TopologyDialer].
	Dialer TopologyDialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewTopologyWatcher] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Listener receives the events.
	//
	// Set by [NewTopologyWatcher] to the user-provided listener.
	Listener TopologyListener

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewTopologyWatcher] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewTopologyWatcher] from [Config.TimeNow].
	TimeNow func() time.Time

	// dialMu serializes the lazy dial.
	dialMu sync.Mutex

	// done is closed when the watcher reaches WatcherStopped.
	done chan struct{}

	// mu protects conn and state.
	mu    sync.Mutex
	conn  io.ReadWriteCloser
	state WatcherState

	// writeMu keeps subscription records from interleaving.
	writeMu sync.Mutex
}

// State returns the current lifecycle state.
func (w *TopologyWatcher) State() WatcherState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// IsRunning reports whether the receive loop is running.
func (w *TopologyWatcher) IsRunning() bool {
	return w.State() == WatcherRunning
}

// Done returns a channel closed once the watcher is stopped.
func (w *TopologyWatcher) Done() <-chan struct{} {
	return w.done
}

// connection returns the topology connection, dialing it if needed.
func (w *TopologyWatcher) connection(ctx context.Context) (io.ReadWriteCloser, error) {
	w.dialMu.Lock()
	defer w.dialMu.Unlock()

	w.mu.Lock()
	conn, state := w.conn, w.state
	w.mu.Unlock()
	if state >= WatcherStopping {
		return nil, closedError("subscribe", FamilyTIPC)
	}
	if conn != nil {
		return conn, nil
	}

	t0 := w.TimeNow()
	deadline, _ := ctx.Deadline()
	w.logDialStart(t0, deadline)
	conn, err := w.Dialer.DialTopology(ctx)
	w.logDialDone(t0, deadline, err)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state >= WatcherStopping {
		conn.Close()
		return nil, closedError("subscribe", FamilyTIPC)
	}
	w.conn = conn
	return conn, nil
}

// SendSubscription sends sub to the topology service.
func (w *TopologyWatcher) SendSubscription(ctx context.Context, sub TopologySubscription) error {
	data, err := sub.MarshalBinary()
	if err != nil {
		return err
	}
	conn, err := w.connection(ctx)
	if err != nil {
		return err
	}

	t0 := w.TimeNow()
	w.logSubscribeStart(sub, t0)
	w.writeMu.Lock()
	_, err = conn.Write(data)
	w.writeMu.Unlock()
	w.logSubscribeDone(sub, t0, err)
	return err
}

// AddServiceSubscription subscribes to the first publication and last
// withdrawal of the given service range. The timeout is in milliseconds
// or [TIPCWaitForever].
func (w *TopologyWatcher) AddServiceSubscription(
	ctx context.Context, serviceType, lower, upper, timeout uint32) (TopologySubscription, error) {
	sub := TopologySubscription{
		Type:    serviceType,
		Lower:   lower,
		Upper:   upper,
		Filter:  SubscribeService,
		Timeout: timeout,
	}
	return sub, w.SendSubscription(ctx, sub)
}

// AddPortSubscription subscribes to every port publication of the nodes
// in the given range, using [TopologyWatcher.DefaultTimeout].
func (w *TopologyWatcher) AddPortSubscription(ctx context.Context, lower, upper uint32) (TopologySubscription, error) {
	sub := TopologySubscription{
		Type:    TIPCNodeState,
		Lower:   lower,
		Upper:   upper,
		Filter:  SubscribePorts,
		Timeout: w.DefaultTimeout,
	}
	return sub, w.SendSubscription(ctx, sub)
}

// AddLinkStateSubscription subscribes to link state changes of every
// node, using [TopologyWatcher.DefaultTimeout].
func (w *TopologyWatcher) AddLinkStateSubscription(ctx context.Context) (TopologySubscription, error) {
	sub := TopologySubscription{
		Type:    TIPCLinkState,
		Lower:   0,
		Upper:   ^uint32(0),
		Timeout: w.DefaultTimeout,
	}
	return sub, w.SendSubscription(ctx, sub)
}

// CancelSubscription cancels a subscription previously returned by
// one of the Add methods or sent with [*TopologyWatcher.SendSubscription].
func (w *TopologyWatcher) CancelSubscription(ctx context.Context, sub TopologySubscription) error {
	return w.SendSubscription(ctx, sub.Cancellation())
}

// Start connects if needed and runs the receive loop on a background
// goroutine. The ctx only bounds the dial: use [*TopologyWatcher.StopLoop]
// or [*TopologyWatcher.Close] to stop the loop.
func (w *TopologyWatcher) Start(ctx context.Context) error {
	conn, err := w.begin(ctx)
	if err != nil {
		return err
	}
	go w.loop(conn)
	return nil
}

// RunLoop connects if needed and runs the receive loop on the calling
// goroutine until the watcher is stopped, ctx is done or the connection
// fails. It returns nil when stopped through [*TopologyWatcher.StopLoop],
// [*TopologyWatcher.Close] or ctx.
func (w *TopologyWatcher) RunLoop(ctx context.Context) error {
	conn, err := w.begin(ctx)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		w.StopLoop()
	})
	defer stop()
	return w.loop(conn)
}

// begin moves the watcher from Idle to Running.
func (w *TopologyWatcher) begin(ctx context.Context) (io.ReadWriteCloser, error) {
	conn, err := w.connection(ctx)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case WatcherIdle:
		w.state = WatcherRunning
		return conn, nil
	case WatcherRunning:
		return nil, newError(ErrAlreadyRunning, "watch", FamilyTIPC, nil)
	default:
		return nil, closedError("watch", FamilyTIPC)
	}
}

// loop delivers events until the connection fails or is closed.
func (w *TopologyWatcher) loop(conn io.ReadWriteCloser) (err error) {
	t0 := w.TimeNow()
	w.logWatchStart(t0)
	defer func() {
		w.logWatchDone(t0, err)
		w.finish()
	}()

	buf := make([]byte, topologyReadBufferSize)
	for {
		n, rerr := conn.Read(buf)
		if rerr != nil {
			if w.State() == WatcherStopping {
				return nil
			}
			return rerr
		}
		event, perr := ParseTopologyEvent(buf[:n])
		if perr != nil {
			w.logMalformedEvent(n, perr)
			continue
		}
		w.logEvent(event)
		w.Listener.OnEvent(event)
	}
}

// finish moves the watcher to Stopped and releases the connection.
func (w *TopologyWatcher) finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WatcherStopped {
		return
	}
	w.state = WatcherStopped
	if w.conn != nil {
		w.conn.Close()
	}
	close(w.done)
}

// StopLoop asks the receive loop to stop by closing the connection,
// which unblocks the pending read. It does not wait: use
// [*TopologyWatcher.Done] for that. Stopping an idle watcher moves it
// directly to Stopped.
func (w *TopologyWatcher) StopLoop() error {
	w.mu.Lock()
	switch w.state {
	case WatcherRunning:
		w.state = WatcherStopping
		conn := w.conn
		w.mu.Unlock()
		conn.Close()
		return nil
	case WatcherIdle:
		w.mu.Unlock()
		w.finish()
		return nil
	default:
		w.mu.Unlock()
		return nil
	}
}

// Close stops the watcher and releases the connection. It is idempotent.
func (w *TopologyWatcher) Close() error {
	return w.StopLoop()
}

func (w *TopologyWatcher) logDialStart(t0, deadline time.Time) {
	w.Logger.Info(
		"topologyDialStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", FamilyTIPC.String()),
		slog.String("remoteAddr", TopologyServiceAddress.String()),
		slog.Time("t", t0),
	)
}

func (w *TopologyWatcher) logDialDone(t0, deadline time.Time, err error) {
	w.Logger.Info(
		"topologyDialDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", w.ErrClassifier.Classify(err)),
		slog.String("protocol", FamilyTIPC.String()),
		slog.String("remoteAddr", TopologyServiceAddress.String()),
		slog.Time("t0", t0),
		slog.Time("t", w.TimeNow()),
	)
}

func (w *TopologyWatcher) logSubscribeStart(sub TopologySubscription, t0 time.Time) {
	w.Logger.Info(
		"topologySubscribeStart",
		slog.String("subscription", sub.String()),
		slog.Time("t", t0),
	)
}

func (w *TopologyWatcher) logSubscribeDone(sub TopologySubscription, t0 time.Time, err error) {
	w.Logger.Info(
		"topologySubscribeDone",
		slog.Any("err", err),
		slog.String("errClass", w.ErrClassifier.Classify(err)),
		slog.String("subscription", sub.String()),
		slog.Time("t0", t0),
		slog.Time("t", w.TimeNow()),
	)
}

func (w *TopologyWatcher) logWatchStart(t0 time.Time) {
	w.Logger.Info(
		"topologyWatchStart",
		slog.Time("t", t0),
	)
}

func (w *TopologyWatcher) logWatchDone(t0 time.Time, err error) {
	w.Logger.Info(
		"topologyWatchDone",
		slog.Any("err", err),
		slog.String("errClass", w.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", w.TimeNow()),
	)
}

func (w *TopologyWatcher) logEvent(event *TopologyEvent) {
	w.Logger.Debug(
		"topologyEvent",
		slog.String("event", event.String()),
		slog.Time("t", w.TimeNow()),
	)
}

func (w *TopologyWatcher) logMalformedEvent(n int, err error) {
	w.Logger.Info(
		"topologyEventMalformed",
		slog.Any("err", err),
		slog.Int("ioBytesCount", n),
		slog.Time("t", w.TimeNow()),
	)
}
