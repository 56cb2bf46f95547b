// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewObserveConnFunc populates all fields from Config and the provided logger.
func TestNewObserveConnFunc(t *testing.T) {
	cfg := NewConfig()
	logger := DefaultSLogger()

	fn := NewObserveConnFunc(cfg, logger)

	require.NotNil(t, fn)
	assert.NotNil(t, fn.Logger)
	assert.NotNil(t, fn.TimeNow)
	assert.NotNil(t, fn.ErrClassifier)
}

// Every observed operation delegates to the underlying connection, returns
// its result and emits the expected log events.
func TestObservedConnDelegation(t *testing.T) {
	wantErr := errors.New("mocked error")
	deadline := time.Now().Add(time.Hour)

	tests := []struct {
		// name describes what this test case verifies.
		name string

		// setup configures the mocked connection to fail or succeed.
		setup func(conn *netstub.FuncConn, fail bool)

		// invoke calls the observed method.
		invoke func(conn net.Conn) error

		// wantMsgs are the expected log messages.
		wantMsgs []string
	}{
		{
			name: "read",
			setup: func(conn *netstub.FuncConn, fail bool) {
				conn.ReadFunc = func(b []byte) (int, error) {
					if fail {
						return 0, wantErr
					}
					return copy(b, "hello"), nil
				}
			},
			invoke: func(conn net.Conn) error {
				buf := make([]byte, 16)
				n, err := conn.Read(buf)
				if err == nil && string(buf[:n]) != "hello" {
					return errors.New("unexpected data")
				}
				return err
			},
			wantMsgs: []string{"readStart", "readDone"},
		},

		{
			name: "write",
			setup: func(conn *netstub.FuncConn, fail bool) {
				conn.WriteFunc = func(b []byte) (int, error) {
					if fail {
						return 0, wantErr
					}
					return len(b), nil
				}
			},
			invoke: func(conn net.Conn) error {
				_, err := conn.Write([]byte("hello"))
				return err
			},
			wantMsgs: []string{"writeStart", "writeDone"},
		},

		{
			name: "set deadline",
			setup: func(conn *netstub.FuncConn, fail bool) {
				conn.SetDeadlineFunc = func(t time.Time) error {
					if fail {
						return wantErr
					}
					if !t.Equal(deadline) {
						return errors.New("unexpected deadline")
					}
					return nil
				}
			},
			invoke:   func(conn net.Conn) error { return conn.SetDeadline(deadline) },
			wantMsgs: []string{"setDeadline"},
		},

		{
			name: "set read deadline",
			setup: func(conn *netstub.FuncConn, fail bool) {
				conn.SetReadDeadFunc = func(t time.Time) error {
					if fail {
						return wantErr
					}
					return nil
				}
			},
			invoke:   func(conn net.Conn) error { return conn.SetReadDeadline(deadline) },
			wantMsgs: []string{"setReadDeadline"},
		},

		{
			name: "set write deadline",
			setup: func(conn *netstub.FuncConn, fail bool) {
				conn.SetWriteDeaFunc = func(t time.Time) error {
					if fail {
						return wantErr
					}
					return nil
				}
			},
			invoke:   func(conn net.Conn) error { return conn.SetWriteDeadline(deadline) },
			wantMsgs: []string{"setWriteDeadline"},
		},

		{
			name: "close",
			setup: func(conn *netstub.FuncConn, fail bool) {
				conn.CloseFunc = func() error {
					if fail {
						return wantErr
					}
					return nil
				}
			},
			invoke:   func(conn net.Conn) error { return conn.Close() },
			wantMsgs: []string{"closeStart", "closeDone"},
		},
	}

	for _, tt := range tests {
		for _, fail := range []bool{false, true} {
			name := tt.name
			if fail {
				name += " error"
			}
			t.Run(name, func(t *testing.T) {
				logger, records := newCapturingLogger()
				mockConn := newMinimalConn()
				tt.setup(mockConn, fail)

				fn := NewObserveConnFunc(NewConfig(), logger)
				observed, err := fn.Call(context.Background(), mockConn)
				require.NoError(t, err)

				err = tt.invoke(observed)
				if fail {
					require.ErrorIs(t, err, wantErr)
				} else {
					require.NoError(t, err)
				}
				assert.Equal(t, tt.wantMsgs, recordMessages(*records))
			})
		}
	}
}

// Second Close returns net.ErrClosed without calling the underlying Close again.
func TestObservedConnCloseOnce(t *testing.T) {
	closeCount := 0
	mockConn := newMinimalConn()
	mockConn.CloseFunc = func() error {
		closeCount++
		return nil
	}

	fn := NewObserveConnFunc(NewConfig(), DefaultSLogger())
	observed, _ := fn.Call(context.Background(), mockConn)

	require.NoError(t, observed.Close())
	require.ErrorIs(t, observed.Close(), net.ErrClosed)
	assert.Equal(t, 1, closeCount)
}

// Address accessors delegate and the cached strings use the address forms.
func TestObservedConnAddrs(t *testing.T) {
	mockConn := newMinimalConn()

	fn := NewObserveConnFunc(NewConfig(), DefaultSLogger())
	observed, _ := fn.Call(context.Background(), mockConn)

	assert.Equal(t, UnixAbstractAddress("local"), observed.LocalAddr())
	assert.Equal(t, UnixAbstractAddress("remote"), observed.RemoteAddr())

	oc := observed.(*observedConn)
	assert.Equal(t, "@local", oc.laddr)
	assert.Equal(t, "@remote", oc.raddr)
	assert.Equal(t, "unix", oc.protocol)
}

// Half-close fails with ErrOperationNotSupported on connections lacking it.
func TestObservedConnHalfCloseUnsupported(t *testing.T) {
	logger, records := newCapturingLogger()
	mockConn := newMinimalConn()

	fn := NewObserveConnFunc(NewConfig(), logger)
	observed, _ := fn.Call(context.Background(), mockConn)

	hc := observed.(interface{ CloseWrite() error })
	require.ErrorIs(t, hc.CloseWrite(), ErrOperationNotSupported)
	assert.Equal(t, []string{"shutdownStart", "shutdownDone"}, recordMessages(*records))
}
