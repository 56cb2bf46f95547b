// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import "context"

// Func is one step of a socket pipeline: endpoint selection, connect,
// cancellation binding or I/O observation. Steps compose with [Compose2]
// and friends.
//
// A Func that receives a connection and fails closes it before returning,
// so a failed pipeline leaks no descriptor. [CancelWatchFunc] and
// [ObserveConnFunc] follow this rule.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter turns a closure into a [Func], for steps such as a custom
// handshake on a freshly connected Unix socket.
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}
