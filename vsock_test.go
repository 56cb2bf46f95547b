// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// LocalContextID either succeeds or fails with a *SocketError.
func TestLocalContextID(t *testing.T) {
	_, err := LocalContextID()
	if err != nil {
		var serr *SocketError
		require.ErrorAs(t, err, &serr)
		require.Equal(t, FamilyVSOCK, serr.Family)
	}
}

// VSOCKDialer refuses other families, bad addresses and done contexts.
func TestVSOCKDialerErrors(t *testing.T) {
	_, err := VSOCKDialer{}.DialContext(context.Background(), "unix", "@afsock")
	require.ErrorIs(t, err, ErrAddressFamilyUnavailable)

	_, err = VSOCKDialer{}.DialContext(context.Background(), "vsock", "host")
	require.ErrorIs(t, err, ErrInvalidAddress)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = VSOCKDialer{}.DialContext(ctx, "vsock", "host:1024")
	require.ErrorIs(t, err, ErrSocket)
}
