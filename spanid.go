// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 tagging the log records of one socket
// exchange, such as a CLI send or a topology watch session. Attach it
// with [*slog.Logger.With].
//
// It panics if the system random number generator fails.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
