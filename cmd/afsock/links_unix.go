//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package main

import "github.com/bassosimone/afsock"

// openLinkNamer opens the TIPC handle resolving link names. A failure
// only costs the link names, so it returns nil instead of an error.
func openLinkNamer(cfg *afsock.Config, logger afsock.SLogger) linkNamer {
	h, err := afsock.OpenHandle(cfg, afsock.FamilyTIPC, afsock.SocketRDM, logger)
	if err != nil {
		return nil
	}
	return h
}
