// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Kernel names stop at the first NUL.
func TestIoctlString(t *testing.T) {
	name := make([]int8, 16)
	for i, c := range "1.1.1:eth0" {
		name[i] = int8(c)
	}
	assert.Equal(t, "1.1.1:eth0", ioctlString(name))
	assert.Equal(t, "", ioctlString(make([]int8, 4)))
	assert.Equal(t, "abc", ioctlString([]int8{'a', 'b', 'c'}))
	assert.Equal(t, "ab", ioctlString([]uint8{'a', 'b', 0, 'c'}))
}

// Link and node queries run on a TIPC handle.
func TestHandleTIPCLinkQueries(t *testing.T) {
	cfg := NewConfig()
	requireCapability(t, cfg, CapabilityTIPC)
	h, err := OpenHandle(cfg, FamilyTIPC, SocketRDM, DefaultSLogger())
	require.NoError(t, err)
	defer h.Close()

	// no link exists to a made up node, so the kernel either reports an
	// empty name or refuses the request
	name, err := h.LinkName(0x0badcafe, 0)
	if err != nil {
		var serr *SocketError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "linkname", serr.Op)
	} else {
		assert.Empty(t, name)
	}

	_, err = h.NodeIdentity(0x0badcafe)
	if err != nil {
		var serr *SocketError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "nodeid", serr.Op)
	}
}
