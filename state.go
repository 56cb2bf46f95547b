// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

// HandleState is the lifecycle state of a [*Handle].
type HandleState int

const (
	// HandleOpen is the state of a fresh socket.
	HandleOpen HandleState = iota + 1

	// HandleBound is the state after a successful bind.
	HandleBound

	// HandleConnected is the state after a successful connect, and the
	// state of accepted sockets and socket pairs.
	HandleConnected

	// HandleListening is the state after a successful listen.
	HandleListening

	// HandleClosed is the terminal state.
	HandleClosed
)

// String returns the state name.
func (s HandleState) String() string {
	switch s {
	case HandleOpen:
		return "open"
	case HandleBound:
		return "bound"
	case HandleConnected:
		return "connected"
	case HandleListening:
		return "listening"
	case HandleClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ShutdownDirection selects the half of a connection to shut down.
type ShutdownDirection int

const (
	// ShutdownRead disables further receives.
	ShutdownRead ShutdownDirection = iota + 1

	// ShutdownWrite disables further sends.
	ShutdownWrite

	// ShutdownBoth disables both directions.
	ShutdownBoth
)

// String returns the direction name.
func (d ShutdownDirection) String() string {
	switch d {
	case ShutdownRead:
		return "read"
	case ShutdownWrite:
		return "write"
	case ShutdownBoth:
		return "both"
	default:
		return "unknown"
	}
}
