// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"fmt"
	"maps"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Capability is a runtime-determined fact about what the current
// platform and kernel support.
type Capability int

const (
	// CapabilityUnixDomain indicates support for AF_UNIX stream sockets.
	CapabilityUnixDomain Capability = iota + 1

	// CapabilityPeerCredentials indicates that the credentials of the
	// peer of a connected Unix socket can be queried.
	CapabilityPeerCredentials

	// CapabilityAncillaryMessages indicates support for ancillary data
	// (credentials) sent alongside the payload.
	CapabilityAncillaryMessages

	// CapabilityFileDescriptors indicates support for passing open file
	// descriptors (SCM_RIGHTS).
	CapabilityFileDescriptors

	// CapabilityAbstractNamespace indicates support for the Linux abstract
	// namespace of AF_UNIX addresses.
	CapabilityAbstractNamespace

	// CapabilityUnixDatagrams indicates support for AF_UNIX datagram sockets.
	CapabilityUnixDatagrams

	// CapabilityNativeSocketPair indicates support for socketpair(2).
	CapabilityNativeSocketPair

	// CapabilityTIPC indicates support for AF_TIPC.
	CapabilityTIPC

	// CapabilityVSOCK indicates support for AF_VSOCK stream sockets.
	CapabilityVSOCK

	// CapabilityVSOCKDatagram indicates support for AF_VSOCK datagram sockets.
	CapabilityVSOCKDatagram

	// CapabilityZeroLengthSend indicates that sending an empty datagram
	// succeeds instead of failing or being a no-op.
	CapabilityZeroLengthSend

	// CapabilitySystem indicates support for AF_SYSTEM (Darwin kernel control).
	CapabilitySystem
)

// AllCapabilities returns every known [Capability] in declaration order.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityUnixDomain,
		CapabilityPeerCredentials,
		CapabilityAncillaryMessages,
		CapabilityFileDescriptors,
		CapabilityAbstractNamespace,
		CapabilityUnixDatagrams,
		CapabilityNativeSocketPair,
		CapabilityTIPC,
		CapabilityVSOCK,
		CapabilityVSOCKDatagram,
		CapabilityZeroLengthSend,
		CapabilitySystem,
	}
}

var capabilityNames = map[Capability]string{
	CapabilityUnixDomain:        "unix",
	CapabilityPeerCredentials:   "peer-credentials",
	CapabilityAncillaryMessages: "ancillary-messages",
	CapabilityFileDescriptors:   "file-descriptors",
	CapabilityAbstractNamespace: "abstract-namespace",
	CapabilityUnixDatagrams:     "unix-datagrams",
	CapabilityNativeSocketPair:  "socketpair",
	CapabilityTIPC:              "tipc",
	CapabilityVSOCK:             "vsock",
	CapabilityVSOCKDatagram:     "vsock-datagram",
	CapabilityZeroLengthSend:    "zero-length-send",
	CapabilitySystem:            "system",
}

// String returns the capability name.
func (c Capability) String() string {
	if name, found := capabilityNames[c]; found {
		return name
	}
	return "capability(" + strconv.Itoa(int(c)) + ")"
}

// familyCapability returns the capability required to open a socket of
// the given family and type.
func familyCapability(family Family, typ SocketType) (Capability, bool) {
	switch family {
	case FamilyUnix:
		if typ == SocketDatagram {
			return CapabilityUnixDatagrams, true
		}
		return CapabilityUnixDomain, true
	case FamilyTIPC:
		return CapabilityTIPC, true
	case FamilyVSOCK:
		if typ == SocketDatagram {
			return CapabilityVSOCKDatagram, true
		}
		return CapabilityVSOCK, true
	case FamilySystem:
		return CapabilitySystem, true
	default:
		return 0, false
	}
}

// Prober determines whether a [Capability] is available.
//
// A nil error with true means supported. Any error, and any panic, is
// interpreted by [*CapabilityRegistry] as "unsupported".
type Prober interface {
	Probe(c Capability) (bool, error)
}

// ProberFunc adapts a function to the [Prober] interface.
type ProberFunc func(c Capability) (bool, error)

var _ Prober = ProberFunc(nil)

// Probe implements [Prober].
func (f ProberFunc) Probe(c Capability) (bool, error) {
	return f(c)
}

// NewCapabilityRegistry returns a new [*CapabilityRegistry] using the
// given [Prober]. Use [NativeProber] to probe the running kernel.
//
// Construct one registry at startup and share it through [Config].
func NewCapabilityRegistry(prober Prober) *CapabilityRegistry {
	return &CapabilityRegistry{
		cache:  make(map[Capability]bool),
		prober: prober,
	}
}

// CapabilityRegistry caches the result of probing each [Capability].
//
// Each capability is probed at most once per registry; concurrent first
// callers share the same probe and observe the same result. Cached
// results never change.
type CapabilityRegistry struct {
	cache  map[Capability]bool
	group  singleflight.Group
	mu     sync.RWMutex
	prober Prober
}

// Supports reports whether the given capability is available.
func (r *CapabilityRegistry) Supports(c Capability) bool {
	r.mu.RLock()
	value, found := r.cache[c]
	r.mu.RUnlock()
	if found {
		return value
	}
	result, _, _ := r.group.Do(c.String(), func() (any, error) {
		r.mu.RLock()
		value, found := r.cache[c]
		r.mu.RUnlock()
		if found {
			return value, nil
		}
		value = r.probe(c)
		r.mu.Lock()
		r.cache[c] = value
		r.mu.Unlock()
		return value, nil
	})
	return result.(bool)
}

// probe runs the prober converting errors and panics to false.
func (r *CapabilityRegistry) probe(c Capability) (supported bool) {
	defer func() {
		if recover() != nil {
			supported = false
		}
	}()
	ok, err := r.prober.Probe(c)
	return err == nil && ok
}

// Snapshot probes every known capability and returns a copy of the results.
func (r *CapabilityRegistry) Snapshot() map[Capability]bool {
	for _, c := range AllCapabilities() {
		r.Supports(c)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.cache)
}

// require returns [ErrAddressFamilyUnavailable] unless c is supported.
func (r *CapabilityRegistry) require(op string, family Family, c Capability) error {
	if r.Supports(c) {
		return nil
	}
	return newError(ErrAddressFamilyUnavailable, op, family, fmt.Errorf("missing capability %s", c))
}
