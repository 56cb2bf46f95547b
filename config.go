// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import "time"

// DefaultBacklog is the listen backlog used when none is specified.
const DefaultBacklog = 50

// Config holds common configuration for afsock operations.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Backlog is the listen backlog used by [*Handle.Listen] when the
	// caller passes a non-positive value.
	//
	// Set by [NewConfig] to [DefaultBacklog].
	Backlog int

	// Capabilities is the registry consulted before opening sockets and
	// before using optional features.
	//
	// Set by [NewConfig] to a registry using [NativeProber].
	Capabilities *CapabilityRegistry

	// Dialer is used by [*ConnectFunc].
	//
	// Set by [NewConfig] to a [*HandleDialer] using stream sockets.
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// TopologyDialer connects [*TopologyWatcher] to the topology service.
	//
	// Set by [NewConfig] to a [*HandleTopologyDialer].
	TopologyDialer TopologyDialer
}

// NewConfig creates a [*Config] with sensible defaults.
//
// Each call creates a new [*CapabilityRegistry]. Create the config
// once at startup and share it to probe each capability only once.
func NewConfig() *Config {
	cfg := &Config{
		Backlog:       DefaultBacklog,
		Capabilities:  NewCapabilityRegistry(NativeProber()),
		ErrClassifier: DefaultErrClassifier,
		TimeNow:       time.Now,
	}
	cfg.Dialer = &HandleDialer{Config: cfg, Type: SocketStream}
	cfg.TopologyDialer = &HandleTopologyDialer{Config: cfg}
	return cfg
}
