// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import "golang.org/x/sys/unix"

// recvFlags are passed to every recvmsg(2). Darwin lacks
// MSG_CMSG_CLOEXEC: received descriptors get close-on-exec afterwards.
const recvFlags = 0

// credentialsSpace is zero: Darwin has no SCM_CREDENTIALS.
var credentialsSpace = 0

// nativeOption maps an option to the setsockopt(2) level and name.
func nativeOption(family Family, opt SocketOption) (level, name int, ok bool) {
	switch opt {
	case OptionReceiveBuffer:
		return unix.SOL_SOCKET, unix.SO_RCVBUF, true
	case OptionSendBuffer:
		return unix.SOL_SOCKET, unix.SO_SNDBUF, true
	default:
		return 0, 0, false
	}
}

// peerCredentials reads LOCAL_PEERCRED and LOCAL_PEERPID.
func peerCredentials(fd int) (Credentials, error) {
	xucred, err := unix.GetsockoptXucred(fd, unix.SOL_LOCAL, unix.LOCAL_PEERCRED)
	if err != nil {
		return Credentials{}, err
	}
	creds := Credentials{UID: xucred.Uid}
	if xucred.Ngroups > 0 {
		creds.GID = xucred.Groups[0]
	}
	if pid, err := unix.GetsockoptInt(fd, unix.SOL_LOCAL, unix.LOCAL_PEERPID); err == nil {
		creds.PID = int32(pid)
	}
	return creds, nil
}

func enablePassCredentials(fd int) error {
	return unix.ENOPROTOOPT
}

func encodeCredentials(creds *Credentials) []byte {
	return nil
}

func parseCredentials(msg *unix.SocketControlMessage) (*Credentials, bool) {
	return nil, false
}

// tipcLinkName fails: Darwin has no TIPC.
func tipcLinkName(fd int, peer, bearerID uint32) (string, error) {
	return "", unix.EAFNOSUPPORT
}

// tipcNodeIdentity fails: Darwin has no TIPC.
func tipcNodeIdentity(fd int, peer uint32) (string, error) {
	return "", unix.EAFNOSUPPORT
}
