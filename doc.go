// SPDX-License-Identifier: GPL-3.0-or-later

// Package afsock provides sockets for the local and cluster address
// families that the standard library does not cover.
//
// # Address Families
//
// Four families are supported, each with its own [Address] variant:
//
//   - [FamilyUnix]: [UnixAddress] (pathname, abstract or unnamed)
//   - [FamilyTIPC]: [TIPCServiceRange], [TIPCServiceAddress] and [TIPCSocketID]
//   - [FamilyVSOCK]: [VSOCKAddress]
//   - [FamilySystem]: [SystemAddress] (macOS kernel control sockets)
//
// [EncodeAddress] and [DecodeAddress] convert between addresses and
// their native sockaddr bytes. [ParseAddress] parses the external form
// returned by each String method.
//
// # Capabilities
//
// Platform support is probed lazily and cached by a [CapabilityRegistry].
// Operations needing a capability the platform lacks fail with
// [ErrAddressFamilyUnavailable] before touching the kernel. Use
// [*CapabilityRegistry.Snapshot] to inspect the probed capabilities.
//
// # Sockets
//
// A [*Handle] owns one native descriptor and exposes the socket lifecycle
// (bind, connect, listen, accept, shutdown, close), datagram and
// ancillary I/O (file descriptors and credentials) and socket options.
// Closing a handle wakes every blocked call, which then fails with
// [ErrSocketClosed].
//
// Three views sit on top of a handle:
//
//   - [*Conn] and [*Listener] implement [net.Conn] and [net.Listener]
//   - [*Channel] adds a non-blocking mode, where operations fail with
//     [ErrWouldBlock] or [ErrConnectPending] instead of waiting, and
//     can be registered with a [*Selector] for readiness multiplexing
//
// # Topology
//
// A [*TopologyWatcher] subscribes to the TIPC topology service and
// delivers [TopologyEvent] values to a [TopologyListener].
//
// # Errors
//
// Every error matches exactly one of the Err* sentinels via [errors.Is].
// Use [errors.As] with [*SocketError] to access the failed operation and
// the raw platform error code.
//
// # Composition and Observability
//
// Connection establishment follows the [Func] abstraction, which chains
// with [Compose2], [Compose3] and [Compose4]:
//
//   - [ConnectFunc]: dials an [Address] through [Config.Dialer]
//   - [ObserveConnFunc]: logs I/O operations on a connection
//   - [CancelWatchFunc]: closes the connection when the context is done
//
// All operations support structured logging via [SLogger] (compatible
// with [log/slog]). By default, logging is disabled. Lifecycle events
// are emitted as *Start/*Done pairs at [slog.LevelInfo]; per-I/O events
// use [slog.LevelDebug]. Completion events include t0, t, err and
// errClass, classified by [Config.ErrClassifier]. Use [NewSpanID] with
// [*slog.Logger.With] to correlate the events of one operation.
//
// # Platforms
//
// Native sockets are available on Linux and macOS. Elsewhere, the
// address types and codecs work but every socket operation fails with
// [ErrAddressFamilyUnavailable].
package afsock
