// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Probe results are converted to booleans, with errors and panics
// meaning unsupported.
func TestCapabilityRegistrySupports(t *testing.T) {
	tests := []struct {
		// name describes the prober behavior.
		name string

		// prober is the prober to use.
		prober ProberFunc

		// want is the expected result.
		want bool
	}{
		{
			name:   "supported",
			prober: func(Capability) (bool, error) { return true, nil },
			want:   true,
		},
		{
			name:   "unsupported",
			prober: func(Capability) (bool, error) { return false, nil },
			want:   false,
		},
		{
			name:   "error",
			prober: func(Capability) (bool, error) { return true, errors.New("mocked error") },
			want:   false,
		},
		{
			name:   "panic",
			prober: func(Capability) (bool, error) { panic("mocked panic") },
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewCapabilityRegistry(tt.prober)
			assert.Equal(t, tt.want, registry.Supports(CapabilityTIPC))
		})
	}
}

// Each capability is probed once and concurrent callers agree.
func TestCapabilityRegistryProbesOnce(t *testing.T) {
	var calls sync.Map
	registry := NewCapabilityRegistry(ProberFunc(func(c Capability) (bool, error) {
		counter, _ := calls.LoadOrStore(c, &atomic.Int32{})
		counter.(*atomic.Int32).Add(1)
		return c == CapabilityUnixDomain, nil
	}))

	var group errgroup.Group
	results := make([]bool, 64)
	for idx := range results {
		group.Go(func() error {
			results[idx] = registry.Supports(CapabilityUnixDomain)
			registry.Supports(CapabilityTIPC)
			return nil
		})
	}
	require.NoError(t, group.Wait())

	for _, result := range results {
		assert.True(t, result)
	}
	for _, c := range []Capability{CapabilityUnixDomain, CapabilityTIPC} {
		counter, found := calls.Load(c)
		require.True(t, found)
		assert.Equal(t, int32(1), counter.(*atomic.Int32).Load(), c.String())
	}
}

// Snapshot covers every capability and is a copy.
func TestCapabilityRegistrySnapshot(t *testing.T) {
	registry := NewCapabilityRegistry(ProberFunc(func(c Capability) (bool, error) {
		return c == CapabilityUnixDomain || c == CapabilitySystem, nil
	}))

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, len(AllCapabilities()))
	assert.True(t, snapshot[CapabilityUnixDomain])
	assert.True(t, snapshot[CapabilitySystem])
	assert.False(t, snapshot[CapabilityTIPC])

	snapshot[CapabilityTIPC] = true
	assert.False(t, registry.Supports(CapabilityTIPC))
}

// require fails with ErrAddressFamilyUnavailable for missing capabilities.
func TestCapabilityRegistryRequire(t *testing.T) {
	registry := NewCapabilityRegistry(ProberFunc(func(c Capability) (bool, error) {
		return c == CapabilityUnixDomain, nil
	}))

	require.NoError(t, registry.require("open", FamilyUnix, CapabilityUnixDomain))

	err := registry.require("open", FamilyTIPC, CapabilityTIPC)
	require.ErrorIs(t, err, ErrAddressFamilyUnavailable)
	var serr *SocketError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "open", serr.Op)
	assert.Equal(t, FamilyTIPC, serr.Family)
}

// Capability names are stable and unknown values render numerically.
func TestCapabilityString(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range AllCapabilities() {
		name := c.String()
		assert.False(t, seen[name], name)
		seen[name] = true
	}
	assert.Equal(t, "tipc", CapabilityTIPC.String())
	assert.Equal(t, "capability(99)", Capability(99).String())
}

// familyCapability maps datagram variants to their own capability.
func TestFamilyCapability(t *testing.T) {
	tests := []struct {
		// family is the socket family.
		family Family

		// typ is the socket type.
		typ SocketType

		// want is the required capability.
		want Capability
	}{
		{family: FamilyUnix, typ: SocketStream, want: CapabilityUnixDomain},
		{family: FamilyUnix, typ: SocketSeqPacket, want: CapabilityUnixDomain},
		{family: FamilyUnix, typ: SocketDatagram, want: CapabilityUnixDatagrams},
		{family: FamilyTIPC, typ: SocketRDM, want: CapabilityTIPC},
		{family: FamilyVSOCK, typ: SocketStream, want: CapabilityVSOCK},
		{family: FamilyVSOCK, typ: SocketDatagram, want: CapabilityVSOCKDatagram},
		{family: FamilySystem, typ: SocketDatagram, want: CapabilitySystem},
	}

	for _, tt := range tests {
		got, found := familyCapability(tt.family, tt.typ)
		require.True(t, found)
		assert.Equal(t, tt.want, got, tt.family.String()+"/"+tt.typ.String())
	}

	_, found := familyCapability(FamilyUnknown, SocketStream)
	assert.False(t, found)
}
