// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import "os"

// Credentials identify the process on the other side of a Unix socket.
type Credentials struct {
	// PID is the process ID, or zero when the platform does not report it.
	PID int32

	// UID is the effective user ID.
	UID uint32

	// GID is the effective group ID.
	GID uint32
}

// Ancillary is the side channel of data sent or received alongside a
// payload over a Unix socket.
//
// On send, unsupported parts are silently dropped. On receive, parts are
// populated only when the [*CapabilityRegistry] confirms support.
type Ancillary struct {
	// Files are the open descriptors to pass (SCM_RIGHTS). Received files
	// are owned by the caller, who must close them.
	Files []*os.File

	// Credentials are the sender's credentials (SCM_CREDENTIALS). When
	// sending, the kernel checks that they match the sending process.
	Credentials *Credentials
}

// AncillaryRequest describes the ancillary data a receive should accept.
type AncillaryRequest struct {
	// MaxFiles is the maximum number of descriptors to receive.
	MaxFiles int

	// Credentials requests the sender's credentials.
	Credentials bool
}

// Message is the result of a receive operation.
type Message struct {
	// N is the number of payload bytes read.
	N int

	// From is the sender address for unconnected sockets, or nil.
	From Address

	// Ancillary contains the received side channel data.
	Ancillary Ancillary

	// Truncated indicates that the datagram did not fit the buffer.
	Truncated bool

	// ControlTruncated indicates that ancillary data was discarded
	// because it did not fit the requested limits.
	ControlTruncated bool
}

// SocketOption is a socket option that [*Handle.SetOption] and
// [*Handle.GetOption] understand.
type SocketOption int

const (
	// OptionReceiveBuffer is SO_RCVBUF.
	OptionReceiveBuffer SocketOption = iota + 1

	// OptionSendBuffer is SO_SNDBUF.
	OptionSendBuffer

	// OptionPassCredentials is SO_PASSCRED (Linux, Unix sockets).
	OptionPassCredentials

	// OptionTIPCImportance is TIPC_IMPORTANCE.
	OptionTIPCImportance

	// OptionTIPCSourceDroppable is TIPC_SRC_DROPPABLE.
	OptionTIPCSourceDroppable

	// OptionTIPCDestDroppable is TIPC_DEST_DROPPABLE.
	OptionTIPCDestDroppable

	// OptionTIPCConnTimeout is TIPC_CONN_TIMEOUT, in milliseconds.
	OptionTIPCConnTimeout
)

// TIPC message importance levels for [OptionTIPCImportance].
const (
	TIPCLowImportance      = 0
	TIPCMediumImportance   = 1
	TIPCHighImportance     = 2
	TIPCCriticalImportance = 3
)
