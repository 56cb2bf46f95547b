// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// recvFlags are passed to every recvmsg(2).
const recvFlags = unix.MSG_CMSG_CLOEXEC

// credentialsSpace is the control buffer space for one SCM_CREDENTIALS.
var credentialsSpace = unix.CmsgSpace(unix.SizeofUcred)

// nativeOption maps an option to the setsockopt(2) level and name.
func nativeOption(family Family, opt SocketOption) (level, name int, ok bool) {
	switch opt {
	case OptionReceiveBuffer:
		return unix.SOL_SOCKET, unix.SO_RCVBUF, true
	case OptionSendBuffer:
		return unix.SOL_SOCKET, unix.SO_SNDBUF, true
	case OptionPassCredentials:
		return unix.SOL_SOCKET, unix.SO_PASSCRED, family == FamilyUnix
	case OptionTIPCImportance:
		return unix.SOL_TIPC, unix.TIPC_IMPORTANCE, family == FamilyTIPC
	case OptionTIPCSourceDroppable:
		return unix.SOL_TIPC, unix.TIPC_SRC_DROPPABLE, family == FamilyTIPC
	case OptionTIPCDestDroppable:
		return unix.SOL_TIPC, unix.TIPC_DEST_DROPPABLE, family == FamilyTIPC
	case OptionTIPCConnTimeout:
		return unix.SOL_TIPC, unix.TIPC_CONN_TIMEOUT, family == FamilyTIPC
	default:
		return 0, 0, false
	}
}

// peerCredentials reads SO_PEERCRED.
func peerCredentials(fd int) (Credentials, error) {
	ucred, err := unix.GetsockoptUcred(fd, unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{PID: ucred.Pid, UID: ucred.Uid, GID: ucred.Gid}, nil
}

// enablePassCredentials sets SO_PASSCRED so the kernel attaches
// SCM_CREDENTIALS to received messages.
func enablePassCredentials(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_PASSCRED, 1)
}

// encodeCredentials builds an SCM_CREDENTIALS control message.
func encodeCredentials(creds *Credentials) []byte {
	return unix.UnixCredentials(&unix.Ucred{Pid: creds.PID, Uid: creds.UID, Gid: creds.GID})
}

// parseCredentials decodes an SCM_CREDENTIALS control message.
func parseCredentials(msg *unix.SocketControlMessage) (*Credentials, bool) {
	if msg.Header.Level != unix.SOL_SOCKET || msg.Header.Type != unix.SCM_CREDENTIALS {
		return nil, false
	}
	ucred, err := unix.ParseUnixCredentials(msg)
	if err != nil {
		return nil, false
	}
	return &Credentials{PID: ucred.Pid, UID: ucred.Uid, GID: ucred.Gid}, true
}

// tipcLinkName queries SIOCGETLINKNAME for the link to peer over bearerID.
func tipcLinkName(fd int, peer, bearerID uint32) (string, error) {
	req := unix.TIPCSIOCLNReq{Peer: peer, Id: bearerID}
	if err := tipcIoctl(fd, unix.SIOCGETLINKNAME, unsafe.Pointer(&req)); err != nil {
		return "", err
	}
	return ioctlString(req.Linkname[:]), nil
}

// tipcNodeIdentity queries SIOCGETNODEID for the node with address peer.
func tipcNodeIdentity(fd int, peer uint32) (string, error) {
	req := unix.TIPCSIOCNodeIDReq{Peer: peer}
	if err := tipcIoctl(fd, unix.SIOCGETNODEID, unsafe.Pointer(&req)); err != nil {
		return "", err
	}
	return ioctlString(req.Id[:]), nil
}

func tipcIoctl(fd int, req uint, arg unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg)); errno != 0 {
		return errno
	}
	return nil
}

// ioctlString converts a NUL padded kernel name to a string. The element
// type of C char arrays in x/sys differs across architectures.
func ioctlString[T int8 | uint8](name []T) string {
	buf := make([]byte, 0, len(name))
	for _, c := range name {
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}
	return string(buf)
}
