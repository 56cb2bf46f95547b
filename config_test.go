// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Make sure NewConfig wires the default dialers, registry and classifier.
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	require.NotNil(t, cfg)

	assert.Equal(t, DefaultBacklog, cfg.Backlog)
	assert.NotNil(t, cfg.Capabilities)

	// Dialer should be a stream HandleDialer sharing this config
	dialer, ok := cfg.Dialer.(*HandleDialer)
	require.True(t, ok, "Dialer should be *HandleDialer")
	assert.Same(t, cfg, dialer.Config)
	assert.Equal(t, SocketStream, dialer.Type)

	// TopologyDialer should be a HandleTopologyDialer sharing this config
	tdialer, ok := cfg.TopologyDialer.(*HandleTopologyDialer)
	require.True(t, ok, "TopologyDialer should be *HandleTopologyDialer")
	assert.Same(t, cfg, tdialer.Config)

	// ErrClassifier should be DefaultErrClassifier
	assert.Equal(t, "", cfg.ErrClassifier.Classify(nil))

	// TimeNow should be set and return a valid time
	now := cfg.TimeNow()
	assert.False(t, now.IsZero())
}

// Make sure each config owns its own capability registry.
func TestNewConfigDistinctRegistries(t *testing.T) {
	assert.NotSame(t, NewConfig().Capabilities, NewConfig().Capabilities)
}
