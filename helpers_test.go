// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted. Logging goroutines must
// be done before the slice is inspected.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var (
		mu      sync.Mutex
		records []slog.Record
	)
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			mu.Lock()
			defer mu.Unlock()
			records = append(records, record)
			return nil
		},
	}
	return slog.New(handler), &records
}

// recordMessages returns the messages of the captured records.
func recordMessages(records []slog.Record) []string {
	var msgs []string
	for _, r := range records {
		msgs = append(msgs, r.Message)
	}
	return msgs
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc and
// RemoteAddrFunc set. This is the minimum needed for code that calls
// [safeconn.LocalAddr], [safeconn.RemoteAddr], and [safeconn.Network]
// during construction.
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return UnixAbstractAddress("local") },
		RemoteAddrFunc: func() net.Addr { return UnixAbstractAddress("remote") },
	}
}

// newTestConfig returns a [*Config] whose registry reports every capability
// as available, so tests do not depend on the probes.
func newTestConfig() *Config {
	cfg := NewConfig()
	cfg.Capabilities = NewCapabilityRegistry(ProberFunc(func(c Capability) (bool, error) {
		return true, nil
	}))
	return cfg
}
