//go:build linux || darwin

// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mdlayher/socket"
	"golang.org/x/sys/unix"
)

// Handle owns exactly one native socket descriptor.
//
// Close is safe to call concurrently with any other method: it wakes
// blocked calls, which then fail with [ErrSocketClosed]. Other methods
// provide no mutual exclusion for data operations, so concurrent sends
// (or receives) need external synchronization.
//
// Every method of a closed handle fails with [ErrSocketClosed] before
// any system call is attempted, except Close, which always succeeds.
type Handle struct {
	backlog       int
	caps          *CapabilityRegistry
	closed        atomic.Bool
	closeonce     sync.Once
	conn          *socket.Conn
	errClassifier ErrClassifier
	family        Family
	logger        SLogger
	protocol      string
	timeNow       func() time.Time
	typ           SocketType

	nonblocking atomic.Bool
	passcred    atomic.Bool
	shutRead    atomic.Bool
	shutWrite   atomic.Bool

	// mu protects the fields below.
	mu         sync.Mutex
	connectErr error
	laddr      string
	pending    bool
	raddr      string
	state      HandleState
}

// OpenHandle opens a new socket of the given family and type.
//
// The cfg argument contains the common configuration for afsock operations.
//
// The logger argument is the [SLogger] to use for structured logging.
//
// Fails with [ErrAddressFamilyUnavailable] when cfg.Capabilities does not
// support the family (or the family's datagram variant).
func OpenHandle(cfg *Config, family Family, typ SocketType, logger SLogger) (*Handle, error) {
	t0 := cfg.TimeNow()
	protocol := protocolName(family, typ)
	logger.Info(
		"openStart",
		slog.String("protocol", protocol),
		slog.Time("t", t0),
	)
	h, err := openHandle(cfg, family, typ, logger)
	logger.Info(
		"openDone",
		slog.Any("err", err),
		slog.String("errClass", cfg.ErrClassifier.Classify(err)),
		slog.String("protocol", protocol),
		slog.Time("t0", t0),
		slog.Time("t", cfg.TimeNow()),
	)
	return h, err
}

func openHandle(cfg *Config, family Family, typ SocketType, logger SLogger) (*Handle, error) {
	capability, found := familyCapability(family, typ)
	if !found {
		return nil, newError(ErrAddressFamilyUnavailable, "open", family, nil)
	}
	if err := cfg.Capabilities.require("open", family, capability); err != nil {
		return nil, err
	}
	domain, sotype, proto, err := nativeSocketParams(family, typ)
	if err != nil {
		return nil, err
	}
	conn, err := socket.Socket(domain, sotype, proto, family.String(), nil)
	if err != nil {
		return nil, wrapError("open", family, err)
	}
	return newHandle(cfg, conn, family, typ, HandleOpen, logger), nil
}

// SocketPair returns two connected Unix handles of the given type.
func SocketPair(cfg *Config, family Family, typ SocketType, logger SLogger) (*Handle, *Handle, error) {
	if family != FamilyUnix {
		return nil, nil, newError(ErrOperationNotSupported, "socketpair", family, nil)
	}
	if err := cfg.Capabilities.require("socketpair", family, CapabilityNativeSocketPair); err != nil {
		return nil, nil, err
	}
	_, sotype, _, err := nativeSocketParams(family, typ)
	if err != nil {
		return nil, nil, err
	}
	fds, err := unix.Socketpair(unix.AF_UNIX, sotype|socketFlags, 0)
	if err != nil {
		return nil, nil, wrapError("socketpair", family, err)
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	c0, err := socket.New(fds[0], family.String())
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, wrapError("socketpair", family, err)
	}
	c1, err := socket.New(fds[1], family.String())
	if err != nil {
		c0.Close()
		unix.Close(fds[1])
		return nil, nil, wrapError("socketpair", family, err)
	}
	h0 := newHandle(cfg, c0, family, typ, HandleConnected, logger)
	h1 := newHandle(cfg, c1, family, typ, HandleConnected, logger)
	return h0, h1, nil
}

// NewHandleFromFile returns a [*Handle] owning a copy of the socket
// descriptor held by f, for example one received through [Ancillary]
// or inherited from the parent process. The family and type are read
// from the descriptor. The state is listening, connected, bound or open
// depending on what the descriptor reports.
//
// The caller remains responsible for closing f. Fails with
// [ErrOperationNotSupported] when f is not a socket and with
// [ErrAddressFamilyUnavailable] when the family is unknown or
// cfg.Capabilities does not support it.
func NewHandleFromFile(cfg *Config, f *os.File, logger SLogger) (*Handle, error) {
	t0 := cfg.TimeNow()
	logger.Info(
		"adoptStart",
		slog.String("file", fileName(f)),
		slog.Time("t", t0),
	)
	h, err := newHandleFromFile(cfg, f, logger)
	protocol := ""
	if h != nil {
		protocol = h.protocol
	}
	logger.Info(
		"adoptDone",
		slog.Any("err", err),
		slog.String("errClass", cfg.ErrClassifier.Classify(err)),
		slog.String("file", fileName(f)),
		slog.String("protocol", protocol),
		slog.Time("t0", t0),
		slog.Time("t", cfg.TimeNow()),
	)
	return h, err
}

func newHandleFromFile(cfg *Config, f *os.File, logger SLogger) (*Handle, error) {
	if f == nil {
		return nil, newError(ErrOperationNotSupported, "adopt", FamilyUnknown, os.ErrInvalid)
	}
	rc, err := f.SyscallConn()
	if err != nil {
		return nil, wrapError("adopt", FamilyUnknown, err)
	}
	var (
		family Family
		typ    SocketType
		state  HandleState
		operr  error
	)
	if err := rc.Control(func(fd uintptr) {
		family, typ, state, operr = describeSocket(int(fd))
	}); err != nil {
		return nil, wrapError("adopt", FamilyUnknown, err)
	}
	if operr != nil {
		return nil, wrapError("adopt", family, operr)
	}
	capability, found := familyCapability(family, typ)
	if !found {
		return nil, newError(ErrAddressFamilyUnavailable, "adopt", family, nil)
	}
	if err := cfg.Capabilities.require("adopt", family, capability); err != nil {
		return nil, err
	}
	conn, err := socket.FileConn(f, family.String())
	if err != nil {
		return nil, wrapError("adopt", family, err)
	}
	return newHandle(cfg, conn, family, typ, state, logger), nil
}

// describeSocket reads the family, type and state of a socket descriptor.
func describeSocket(fd int) (Family, SocketType, HandleState, error) {
	family, err := socketFamily(fd)
	if err != nil {
		return FamilyUnknown, 0, 0, err
	}
	sotype, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err != nil {
		return family, 0, 0, err
	}
	var typ SocketType
	switch sotype {
	case unix.SOCK_STREAM:
		typ = SocketStream
	case unix.SOCK_DGRAM:
		typ = SocketDatagram
	case unix.SOCK_SEQPACKET:
		typ = SocketSeqPacket
	case unix.SOCK_RDM:
		typ = SocketRDM
	default:
		return family, 0, 0, newError(ErrOperationNotSupported, "adopt", family, nil)
	}
	if listening, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ACCEPTCONN); err == nil && listening != 0 {
		return family, typ, HandleListening, nil
	}
	if _, err := unix.Getpeername(fd); err == nil {
		return family, typ, HandleConnected, nil
	}
	// TIPC autobinds on creation, so only a named Unix socket counts as bound.
	if sa, err := unix.Getsockname(fd); err == nil && family == FamilyUnix {
		if addr, err := fromSockaddr(sa); err == nil && !addr.(UnixAddress).IsUnnamed() {
			return family, typ, HandleBound, nil
		}
	}
	return family, typ, HandleOpen, nil
}

func fileName(f *os.File) string {
	if f == nil {
		return ""
	}
	return f.Name()
}

func newHandle(cfg *Config, conn *socket.Conn, family Family,
	typ SocketType, state HandleState, logger SLogger) *Handle {
	h := &Handle{
		backlog:       cfg.Backlog,
		caps:          cfg.Capabilities,
		conn:          conn,
		errClassifier: cfg.ErrClassifier,
		family:        family,
		logger:        logger,
		protocol:      protocolName(family, typ),
		timeNow:       cfg.TimeNow,
		typ:           typ,
		state:         state,
	}
	h.refreshAddrs()
	return h
}

func protocolName(family Family, typ SocketType) string {
	return family.String() + "/" + typ.String()
}

// Family returns the handle's address family.
func (h *Handle) Family() Family { return h.family }

// Type returns the handle's socket type.
func (h *Handle) Type() SocketType { return h.typ }

// State returns the current lifecycle state.
func (h *Handle) State() HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// IsClosed reports whether Close has been called.
func (h *Handle) IsClosed() bool {
	return h.closed.Load()
}

// Bind assigns a local address to the socket.
//
// When the address is in use and forceRebind is true, a stale filesystem
// socket at a Unix pathname is unlinked and the bind is retried. The flag
// is ignored for abstract names and for other families.
func (h *Handle) Bind(addr Address, forceRebind bool) error {
	if err := h.checkOpen("bind"); err != nil {
		return err
	}
	if err := h.checkFamily("bind", addr); err != nil {
		return err
	}
	t0 := h.timeNow()
	h.logStart("bind", addr.String(), "", t0)
	err := h.bind(addr, forceRebind)
	laddr, _ := h.addrs()
	h.logDone("bind", laddr, "", t0, err)
	return err
}

func (h *Handle) bind(addr Address, forceRebind bool) error {
	sa, err := toSockaddr(addr)
	if err != nil {
		return err
	}
	err = h.conn.Bind(sa)
	if errors.Is(err, unix.EADDRINUSE) && forceRebind {
		if ua, ok := addr.(UnixAddress); ok && !ua.abstract && ua.name != "" {
			if unlinkStaleSocket(ua.name) == nil {
				err = h.conn.Bind(sa)
			}
		}
	}
	if err != nil {
		return h.wrap("bind", err)
	}
	h.setState(HandleBound)
	h.refreshAddrs()
	return nil
}

// unlinkStaleSocket removes path only if it is a socket.
func unlinkStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return errors.New("not a socket")
	}
	return os.Remove(path)
}

// Connect connects the socket to the given address.
//
// In blocking mode (the default) Connect waits until the connection is
// established, ctx is done or the handle is closed. In non-blocking mode
// (see [*Channel.SetBlocking]) Connect returns [ErrConnectPending] when
// the connection is initiated but not yet complete.
func (h *Handle) Connect(ctx context.Context, addr Address) error {
	if err := h.checkOpen("connect"); err != nil {
		return err
	}
	if err := h.checkFamily("connect", addr); err != nil {
		return err
	}
	t0 := h.timeNow()
	laddr, _ := h.addrs()
	h.logStart("connect", laddr, addr.String(), t0)
	err := h.connect(ctx, addr)
	laddr, _ = h.addrs()
	h.logDone("connect", laddr, addr.String(), t0, err)
	return err
}

func (h *Handle) connect(ctx context.Context, addr Address) error {
	sa, err := toSockaddr(addr)
	if err != nil {
		return err
	}
	if h.nonblocking.Load() {
		return h.connectNonblocking(sa)
	}
	if _, err := h.conn.Connect(ctx, sa); err != nil {
		return h.wrap("connect", err)
	}
	h.setConnected()
	return nil
}

func (h *Handle) connectNonblocking(sa unix.Sockaddr) error {
	err := h.control(func(fd int) error {
		return unix.Connect(fd, sa)
	})
	switch {
	case err == nil:
		h.setConnected()
		return nil
	case errors.Is(err, unix.EINPROGRESS), errors.Is(err, unix.EALREADY):
		h.mu.Lock()
		h.pending, h.connectErr = true, nil
		h.mu.Unlock()
		return newError(ErrConnectPending, "connect", h.family, err)
	case isWouldBlock(err):
		return newError(ErrWouldBlock, "connect", h.family, err)
	default:
		return h.wrap("connect", err)
	}
}

// finishConnect completes a non-blocking connect without blocking.
//
// It reports true once the connection is established. Calling it again
// after completion or failure returns the same result.
func (h *Handle) finishConnect() (bool, error) {
	if err := h.checkOpen("connect"); err != nil {
		return false, err
	}
	h.mu.Lock()
	pending, connected, connectErr := h.pending, h.state == HandleConnected, h.connectErr
	h.mu.Unlock()
	if !pending {
		return connected, connectErr
	}
	var (
		ready bool
		soerr int
	)
	err := h.control(func(fd int) error {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, 0)
		if errors.Is(err, unix.EINTR) || n == 0 {
			return nil
		}
		if err != nil {
			return err
		}
		ready = true
		soerr, err = unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		return err
	})
	if err != nil {
		return false, h.wrap("connect", err)
	}
	if !ready {
		return false, nil
	}
	if soerr != 0 {
		cerr := h.wrap("connect", syscall.Errno(soerr))
		h.mu.Lock()
		h.pending, h.connectErr = false, cerr
		h.mu.Unlock()
		return false, cerr
	}
	h.mu.Lock()
	h.pending = false
	h.mu.Unlock()
	h.setConnected()
	return true, nil
}

// isConnectPending reports whether a non-blocking connect is in progress.
func (h *Handle) isConnectPending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending
}

// Listen marks the socket as accepting connections. A non-positive
// backlog selects [Config.Backlog].
func (h *Handle) Listen(backlog int) error {
	if err := h.checkOpen("listen"); err != nil {
		return err
	}
	if backlog <= 0 {
		backlog = h.backlog
	}
	t0 := h.timeNow()
	laddr, _ := h.addrs()
	h.logStart("listen", laddr, "", t0)
	err := h.conn.Listen(backlog)
	if err != nil {
		err = h.wrap("listen", err)
	} else {
		h.setState(HandleListening)
		h.refreshAddrs()
	}
	h.logDone("listen", laddr, "", t0, err)
	return err
}

// Accept waits for and returns the next connection along with the peer
// address, which is nil when the kernel does not report one. The new
// handle has its own lifecycle; the listening handle is not modified.
//
// In non-blocking mode Accept fails with [ErrWouldBlock] when no
// connection is pending.
func (h *Handle) Accept(ctx context.Context) (*Handle, Address, error) {
	if err := h.checkOpen("accept"); err != nil {
		return nil, nil, err
	}
	t0 := h.timeNow()
	laddr, _ := h.addrs()
	h.logStart("accept", laddr, "", t0)
	child, raddr, err := h.accept(ctx)
	h.logDone("accept", laddr, addrString(raddr), t0, err)
	return child, raddr, err
}

func (h *Handle) accept(ctx context.Context) (*Handle, Address, error) {
	if h.nonblocking.Load() {
		return h.acceptNonblocking()
	}
	conn, sa, err := h.conn.Accept(ctx, 0)
	if err != nil {
		return nil, nil, h.wrap("accept", err)
	}
	return h.adopt(conn, sa)
}

func (h *Handle) acceptNonblocking() (*Handle, Address, error) {
	var (
		nfd int
		sa  unix.Sockaddr
	)
	err := h.control(func(fd int) (err error) {
		nfd, sa, err = unix.Accept(fd)
		return
	})
	if isWouldBlock(err) {
		return nil, nil, newError(ErrWouldBlock, "accept", h.family, err)
	}
	if err != nil {
		return nil, nil, h.wrap("accept", err)
	}
	unix.CloseOnExec(nfd)
	conn, err := socket.New(nfd, h.family.String())
	if err != nil {
		unix.Close(nfd)
		return nil, nil, h.wrap("accept", err)
	}
	return h.adopt(conn, sa)
}

// adopt wraps an accepted connection into a child handle.
func (h *Handle) adopt(conn *socket.Conn, sa unix.Sockaddr) (*Handle, Address, error) {
	child := &Handle{
		backlog:       h.backlog,
		caps:          h.caps,
		conn:          conn,
		errClassifier: h.errClassifier,
		family:        h.family,
		logger:        h.logger,
		protocol:      h.protocol,
		timeNow:       h.timeNow,
		typ:           h.typ,
		state:         HandleConnected,
	}
	child.refreshAddrs()
	raddr, err := fromSockaddr(sa)
	if err != nil {
		return child, nil, nil
	}
	return child, raddr, nil
}

// Read reads from a connected socket. It returns [io.EOF] when the peer
// has shut down its write side.
func (h *Handle) Read(p []byte) (int, error) {
	if err := h.checkReadable("read"); err != nil {
		return 0, err
	}
	var (
		n   int
		err error
	)
	if h.nonblocking.Load() {
		err = h.control(func(fd int) (err error) {
			n, err = unix.Read(fd, p)
			return
		})
		n = max(n, 0)
	} else {
		n, err = h.conn.Read(p)
	}
	if err == nil && n == 0 && len(p) > 0 && h.typ == SocketStream {
		return 0, io.EOF
	}
	return n, h.wrap("read", err)
}

// Write writes to a connected socket.
func (h *Handle) Write(p []byte) (int, error) {
	if err := h.checkWritable("write"); err != nil {
		return 0, err
	}
	if !h.nonblocking.Load() {
		n, err := h.conn.Write(p)
		return n, h.wrap("write", err)
	}
	var n int
	err := h.control(func(fd int) (err error) {
		n, err = unix.Write(fd, p)
		return
	})
	return max(n, 0), h.wrap("write", err)
}

// Send sends p on a connected socket along with the optional ancillary data.
func (h *Handle) Send(ctx context.Context, p []byte, anc *Ancillary) (int, error) {
	if err := h.checkWritable("send"); err != nil {
		return 0, err
	}
	return h.sendmsg(ctx, "send", p, nil, anc)
}

// SendTo sends p to the given address along with the optional ancillary data.
func (h *Handle) SendTo(ctx context.Context, p []byte, to Address, anc *Ancillary) (int, error) {
	if err := h.checkWritable("sendto"); err != nil {
		return 0, err
	}
	if err := h.checkFamily("sendto", to); err != nil {
		return 0, err
	}
	sa, err := toSockaddr(to)
	if err != nil {
		return 0, err
	}
	return h.sendmsg(ctx, "sendto", p, sa, anc)
}

func (h *Handle) sendmsg(ctx context.Context, op string, p []byte, to unix.Sockaddr, anc *Ancillary) (int, error) {
	oob, err := h.encodeAncillary(anc)
	if err != nil {
		return 0, h.wrap(op, err)
	}
	t0 := h.timeNow()
	h.logIOStart(op, len(p), t0)
	var n int
	if h.nonblocking.Load() {
		err = h.control(func(fd int) (err error) {
			n, err = unix.SendmsgN(fd, p, oob, to, 0)
			return
		})
	} else {
		n, err = h.conn.Sendmsg(ctx, p, oob, to, 0)
	}
	if anc != nil {
		runtime.KeepAlive(anc.Files)
	}
	err = h.wrap(op, err)
	h.logIODone(op, n, t0, err)
	return n, err
}

func (h *Handle) encodeAncillary(anc *Ancillary) ([]byte, error) {
	if anc == nil || h.family != FamilyUnix {
		return nil, nil
	}
	var oob []byte
	if len(anc.Files) > 0 && h.caps.Supports(CapabilityFileDescriptors) {
		fds := make([]int, 0, len(anc.Files))
		for _, f := range anc.Files {
			fd, err := fileDescriptor(f)
			if err != nil {
				return nil, err
			}
			fds = append(fds, fd)
		}
		oob = append(oob, unix.UnixRights(fds...)...)
	}
	if anc.Credentials != nil && h.caps.Supports(CapabilityAncillaryMessages) {
		oob = append(oob, encodeCredentials(anc.Credentials)...)
	}
	return oob, nil
}

// fileDescriptor returns the descriptor of f without calling f.Fd, which
// would switch f to blocking mode and disable its deadlines. The caller
// keeps f alive until the descriptor is no longer used.
func fileDescriptor(f *os.File) (int, error) {
	if f == nil {
		return -1, os.ErrInvalid
	}
	rc, err := f.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := rc.Control(func(sysfd uintptr) { fd = int(sysfd) }); err != nil {
		return -1, err
	}
	return fd, nil
}

// Receive reads one message into p along with the ancillary data allowed
// by req. On a stream socket it returns [io.EOF] when the peer has shut
// down its write side.
func (h *Handle) Receive(ctx context.Context, p []byte, req AncillaryRequest) (Message, error) {
	if err := h.checkReadable("receive"); err != nil {
		return Message{}, err
	}
	oob := h.ancillaryBuffer(req)
	t0 := h.timeNow()
	h.logIOStart("receive", len(p), t0)
	var (
		n, oobn, flags int
		from           unix.Sockaddr
		err            error
	)
	if h.nonblocking.Load() {
		err = h.control(func(fd int) (err error) {
			n, oobn, flags, from, err = unix.Recvmsg(fd, p, oob, recvFlags)
			return
		})
	} else {
		n, oobn, flags, from, err = h.conn.Recvmsg(ctx, p, oob, recvFlags)
	}
	err = h.wrap("receive", err)
	h.logIODone("receive", n, t0, err)
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		N:                n,
		Truncated:        flags&unix.MSG_TRUNC != 0,
		ControlTruncated: flags&unix.MSG_CTRUNC != 0,
	}
	if from != nil {
		msg.From, _ = fromSockaddr(from)
	}
	msg.Ancillary = parseAncillary(oob[:oobn])
	if n == 0 && oobn == 0 && len(p) > 0 && h.typ == SocketStream {
		return msg, io.EOF
	}
	return msg, nil
}

func (h *Handle) ancillaryBuffer(req AncillaryRequest) []byte {
	if h.family != FamilyUnix {
		return nil
	}
	size := 0
	if req.MaxFiles > 0 && h.caps.Supports(CapabilityFileDescriptors) {
		size += unix.CmsgSpace(4 * req.MaxFiles)
	}
	if req.Credentials && h.caps.Supports(CapabilityAncillaryMessages) {
		if !h.passcred.Load() {
			if h.control(enablePassCredentials) == nil {
				h.passcred.Store(true)
			}
		}
		size += credentialsSpace
	}
	if size == 0 {
		return nil
	}
	return make([]byte, size)
}

// parseAncillary converts control messages to [Ancillary]. Malformed
// messages are ignored.
func parseAncillary(oob []byte) Ancillary {
	var anc Ancillary
	if len(oob) == 0 {
		return anc
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return anc
	}
	for _, msg := range msgs {
		if creds, ok := parseCredentials(&msg); ok {
			anc.Credentials = creds
			continue
		}
		if msg.Header.Level != unix.SOL_SOCKET || msg.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		fds, _ := unix.ParseUnixRights(&msg)
		for _, fd := range fds {
			unix.CloseOnExec(fd)
			anc.Files = append(anc.Files, os.NewFile(uintptr(fd), "afsock-received-fd"))
		}
	}
	return anc
}

// Shutdown disables one or both directions of the connection. Later
// operations on a disabled direction fail with [ErrOperationNotSupported].
func (h *Handle) Shutdown(dir ShutdownDirection) error {
	if err := h.checkOpen("shutdown"); err != nil {
		return err
	}
	var how int
	switch dir {
	case ShutdownRead:
		how = unix.SHUT_RD
	case ShutdownWrite:
		how = unix.SHUT_WR
	case ShutdownBoth:
		how = unix.SHUT_RDWR
	default:
		return newError(ErrOperationNotSupported, "shutdown", h.family, nil)
	}
	t0 := h.timeNow()
	laddr, raddr := h.addrs()
	h.logStart("shutdown", laddr, raddr, t0)
	err := h.wrap("shutdown", h.conn.Shutdown(how))
	if err == nil {
		if dir != ShutdownWrite {
			h.shutRead.Store(true)
		}
		if dir != ShutdownRead {
			h.shutWrite.Store(true)
		}
	}
	h.logDone("shutdown", laddr, raddr, t0, err)
	return err
}

// Close releases the descriptor. It wakes any call blocked on the
// handle, is idempotent and always returns nil.
func (h *Handle) Close() error {
	h.closeonce.Do(func() {
		t0 := h.timeNow()
		laddr, raddr := h.addrs()
		h.logStart("close", laddr, raddr, t0)
		h.closed.Store(true)
		h.setState(HandleClosed)
		err := h.conn.Close()
		h.logDone("close", laddr, raddr, t0, err)
	})
	return nil
}

// LocalAddress returns the address the socket is bound to.
func (h *Handle) LocalAddress() (Address, error) {
	if err := h.checkOpen("getsockname"); err != nil {
		return nil, err
	}
	var sa unix.Sockaddr
	err := h.control(func(fd int) (err error) {
		sa, err = unix.Getsockname(fd)
		return
	})
	if err != nil {
		return nil, h.wrap("getsockname", err)
	}
	return fromSockaddr(sa)
}

// RemoteAddress returns the address of the connected peer.
func (h *Handle) RemoteAddress() (Address, error) {
	if err := h.checkOpen("getpeername"); err != nil {
		return nil, err
	}
	var sa unix.Sockaddr
	err := h.control(func(fd int) (err error) {
		sa, err = unix.Getpeername(fd)
		return
	})
	if err != nil {
		return nil, h.wrap("getpeername", err)
	}
	return fromSockaddr(sa)
}

// PeerCredentials returns the credentials of the connected peer process.
//
// Fails with [ErrOperationNotSupported] for non-Unix handles and when the
// registry does not confirm [CapabilityPeerCredentials].
func (h *Handle) PeerCredentials() (Credentials, error) {
	if err := h.checkOpen("peercred"); err != nil {
		return Credentials{}, err
	}
	if h.family != FamilyUnix || !h.caps.Supports(CapabilityPeerCredentials) {
		return Credentials{}, newError(ErrOperationNotSupported, "peercred", h.family, nil)
	}
	var creds Credentials
	err := h.control(func(fd int) (err error) {
		creds, err = peerCredentials(fd)
		return
	})
	return creds, h.wrap("peercred", err)
}

// LinkName returns the name of the TIPC link to the node peer over the
// bearer bearerID, as reported by [*TopologyEvent.LinkPeer]. An empty
// name means the kernel knows no such link.
//
// Fails with [ErrOperationNotSupported] for non-TIPC handles and when
// the kernel does not implement SIOCGETLINKNAME.
func (h *Handle) LinkName(peer, bearerID uint32) (string, error) {
	if err := h.checkTIPC("linkname"); err != nil {
		return "", err
	}
	var name string
	err := h.control(func(fd int) (err error) {
		name, err = tipcLinkName(fd, peer, bearerID)
		return
	})
	return name, h.wrap("linkname", err)
}

// NodeIdentity returns the identity of the TIPC node with address peer,
// or an empty string when the node has none.
//
// Fails with [ErrOperationNotSupported] for non-TIPC handles and when
// the kernel does not implement SIOCGETNODEID.
func (h *Handle) NodeIdentity(peer uint32) (string, error) {
	if err := h.checkTIPC("nodeid"); err != nil {
		return "", err
	}
	var identity string
	err := h.control(func(fd int) (err error) {
		identity, err = tipcNodeIdentity(fd, peer)
		return
	})
	return identity, h.wrap("nodeid", err)
}

func (h *Handle) checkTIPC(op string) error {
	if err := h.checkOpen(op); err != nil {
		return err
	}
	if h.family != FamilyTIPC {
		return newError(ErrOperationNotSupported, op, h.family, nil)
	}
	return nil
}

// SetOption sets an integer socket option.
func (h *Handle) SetOption(opt SocketOption, value int) error {
	if err := h.checkOpen("setsockopt"); err != nil {
		return err
	}
	level, name, ok := nativeOption(h.family, opt)
	if !ok {
		return newError(ErrOperationNotSupported, "setsockopt", h.family, nil)
	}
	if err := h.conn.SetsockoptInt(level, name, value); err != nil {
		return h.wrap("setsockopt", err)
	}
	if opt == OptionPassCredentials {
		h.passcred.Store(value != 0)
	}
	return nil
}

// GetOption returns the value of an integer socket option.
func (h *Handle) GetOption(opt SocketOption) (int, error) {
	if err := h.checkOpen("getsockopt"); err != nil {
		return 0, err
	}
	level, name, ok := nativeOption(h.family, opt)
	if !ok {
		return 0, newError(ErrOperationNotSupported, "getsockopt", h.family, nil)
	}
	value, err := h.conn.GetsockoptInt(level, name)
	return value, h.wrap("getsockopt", err)
}

// SetDeadline sets the read and write deadlines of blocking operations.
func (h *Handle) SetDeadline(t time.Time) error {
	if err := h.checkOpen("setdeadline"); err != nil {
		return err
	}
	return h.wrap("setdeadline", h.conn.SetDeadline(t))
}

// SetReadDeadline sets the deadline of blocking receives.
func (h *Handle) SetReadDeadline(t time.Time) error {
	if err := h.checkOpen("setdeadline"); err != nil {
		return err
	}
	return h.wrap("setdeadline", h.conn.SetReadDeadline(t))
}

// SetWriteDeadline sets the deadline of blocking sends.
func (h *Handle) SetWriteDeadline(t time.Time) error {
	if err := h.checkOpen("setdeadline"); err != nil {
		return err
	}
	return h.wrap("setdeadline", h.conn.SetWriteDeadline(t))
}

// SyscallConn returns a raw connection to the descriptor.
func (h *Handle) SyscallConn() (syscall.RawConn, error) {
	if err := h.checkOpen("syscallconn"); err != nil {
		return nil, err
	}
	return h.conn.SyscallConn()
}

// control runs fn with the descriptor, without waiting for readiness.
func (h *Handle) control(fn func(fd int) error) error {
	rc, err := h.conn.SyscallConn()
	if err != nil {
		return err
	}
	var operr error
	if err := rc.Control(func(fd uintptr) { operr = fn(int(fd)) }); err != nil {
		return err
	}
	return operr
}

// checkOpen fails with [ErrSocketClosed] once Close has been called.
func (h *Handle) checkOpen(op string) error {
	if h.closed.Load() {
		return closedError(op, h.family)
	}
	return nil
}

func (h *Handle) checkFamily(op string, addr Address) error {
	if addr == nil {
		return invalidAddressf(op, h.family, "nil address")
	}
	if addr.Family() != h.family {
		return invalidAddressf(op, h.family, "address family %s does not match socket", addr.Family())
	}
	return nil
}

func (h *Handle) checkReadable(op string) error {
	if err := h.checkOpen(op); err != nil {
		return err
	}
	if h.shutRead.Load() {
		return newError(ErrOperationNotSupported, op, h.family, errors.New("read side shut down"))
	}
	return nil
}

func (h *Handle) checkWritable(op string) error {
	if err := h.checkOpen(op); err != nil {
		return err
	}
	if h.shutWrite.Load() {
		return newError(ErrOperationNotSupported, op, h.family, errors.New("write side shut down"))
	}
	return nil
}

// wrap maps err to a [*SocketError], taking into account a concurrent
// close. It returns nil and [io.EOF] unchanged.
func (h *Handle) wrap(op string, err error) error {
	switch {
	case err == nil || err == io.EOF:
		return err
	case h.closed.Load():
		return newError(ErrSocketClosed, op, h.family, err)
	case h.nonblocking.Load() && isWouldBlock(err):
		return newError(ErrWouldBlock, op, h.family, err)
	default:
		return wrapError(op, h.family, err)
	}
}

func (h *Handle) setState(state HandleState) {
	h.mu.Lock()
	if h.state != HandleClosed {
		h.state = state
	}
	h.mu.Unlock()
}

func (h *Handle) setConnected() {
	h.setState(HandleConnected)
	h.refreshAddrs()
}

// refreshAddrs caches the address strings used for logging.
func (h *Handle) refreshAddrs() {
	var laddr, raddr string
	_ = h.control(func(fd int) error {
		if sa, err := unix.Getsockname(fd); err == nil {
			if addr, err := fromSockaddr(sa); err == nil {
				laddr = addr.String()
			}
		}
		if sa, err := unix.Getpeername(fd); err == nil {
			if addr, err := fromSockaddr(sa); err == nil {
				raddr = addr.String()
			}
		}
		return nil
	})
	h.mu.Lock()
	h.laddr, h.raddr = laddr, raddr
	h.mu.Unlock()
}

func (h *Handle) addrs() (laddr, raddr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.laddr, h.raddr
}

func addrString(addr Address) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

func (h *Handle) logStart(event, laddr, raddr string, t0 time.Time) {
	h.logger.Info(
		event+"Start",
		slog.String("localAddr", laddr),
		slog.String("protocol", h.protocol),
		slog.String("remoteAddr", raddr),
		slog.Time("t", t0),
	)
}

func (h *Handle) logDone(event, laddr, raddr string, t0 time.Time, err error) {
	h.logger.Info(
		event+"Done",
		slog.Any("err", err),
		slog.String("errClass", h.errClassifier.Classify(err)),
		slog.String("localAddr", laddr),
		slog.String("protocol", h.protocol),
		slog.String("remoteAddr", raddr),
		slog.Time("t0", t0),
		slog.Time("t", h.timeNow()),
	)
}

func (h *Handle) logIOStart(event string, size int, t0 time.Time) {
	laddr, raddr := h.addrs()
	h.logger.Debug(
		event+"Start",
		slog.Int("ioBufferSize", size),
		slog.String("localAddr", laddr),
		slog.String("protocol", h.protocol),
		slog.String("remoteAddr", raddr),
		slog.Time("t", t0),
	)
}

func (h *Handle) logIODone(event string, count int, t0 time.Time, err error) {
	laddr, raddr := h.addrs()
	h.logger.Debug(
		event+"Done",
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", h.errClassifier.Classify(err)),
		slog.String("localAddr", laddr),
		slog.String("protocol", h.protocol),
		slog.String("remoteAddr", raddr),
		slog.Time("t0", t0),
		slog.Time("t", h.timeNow()),
	)
}
