//go:build !(linux || darwin)

// SPDX-License-Identifier: GPL-3.0-or-later

package main

import "github.com/bassosimone/afsock"

// openLinkNamer returns nil: link names need native sockets.
func openLinkNamer(cfg *afsock.Config, logger afsock.SLogger) linkNamer {
	return nil
}
