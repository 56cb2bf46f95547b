//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/netxlite/dialer.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package afsock

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
)

// Dialer abstracts dialing an address in its external form.
//
// The network is a [Family] name (e.g., "unix", "tipc") and the address
// is in the form accepted by [ParseAddress]. By making [*ConnectFunc]
// depend on an abstract implementation we allow for unit testing and
// for using alternative dialers.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// HandleDialer is the default [Dialer]. It opens a [*Handle] of the
// configured type, connects it and returns it as a [*Conn].
type HandleDialer struct {
	// Config is the configuration used to open handles.
	Config *Config

	// Type is the socket type to open.
	Type SocketType
}

var _ Dialer = &HandleDialer{}

// NewConnectFunc returns a new [*ConnectFunc].
//
// The cfg argument contains the common configuration for afsock operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewConnectFunc(cfg *Config, logger SLogger) *ConnectFunc {
	return &ConnectFunc{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// ConnectFunc dials an [Address] using its family as the network.
//
// Returns either a valid [net.Conn] or an error, never both.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ConnectFunc struct {
	// Dialer is the [Dialer] to use.
	//
	// Set by [NewConnectFunc] from [Config.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConnectFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewConnectFunc] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewConnectFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[Address, net.Conn] = &ConnectFunc{}

// Call invokes the [*ConnectFunc] to connect to the given [Address].
func (op *ConnectFunc) Call(ctx context.Context, address Address) (net.Conn, error) {
	if address == nil {
		return nil, invalidAddressf("connect", FamilyUnknown, "nil address")
	}
	network := address.Family().String()
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logConnectStart(network, address.String(), t0, deadline)
	conn, err := op.Dialer.DialContext(ctx, network, address.String())
	op.logConnectDone(network, address.String(), t0, deadline, conn, err)
	return conn, err
}

func (op *ConnectFunc) logConnectStart(network, address string, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)
}

func (op *ConnectFunc) logConnectDone(
	network, address string, t0 time.Time, deadline time.Time, conn net.Conn, err error) {
	op.Logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
