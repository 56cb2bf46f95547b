//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/netxlite/dialer.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package afsock

// SLogger is the structured logger of handles, pipelines and the
// topology watcher. A [*slog.Logger] satisfies it.
//
// Two levels are used:
//   - Info for lifecycle events (open, adopt, bind, connect, listen, accept,
//     shutdown, close, topology subscriptions)
//   - Debug for per-I/O events (read, write, send, receive, set deadline)
//     and for topology events
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// DefaultSLogger returns an [SLogger] that discards every socket event.
// Pass a [*slog.Logger] to see them.
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

type discardSLogger struct{}

var _ SLogger = discardSLogger{}

// Debug implements [SLogger].
func (discardSLogger) Debug(msg string, args ...any) {}

// Info implements [SLogger].
func (discardSLogger) Info(msg string, args ...any) {}
