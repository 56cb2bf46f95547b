// SPDX-License-Identifier: GPL-3.0-or-later

package afsock

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Sizes of the topology service wire records.
const (
	TopologySubscriptionSize = 28
	TopologyEventSize        = 48
)

// Well-known topology values.
const (
	// TIPCWaitForever disables the subscription timeout.
	TIPCWaitForever uint32 = ^uint32(0)

	// TIPCNodeState is the service type of node (port) availability.
	TIPCNodeState uint32 = 0

	// TIPCLinkState is the service type of link state changes.
	TIPCLinkState uint32 = 2
)

// TopologyServiceAddress is the address of the kernel topology service.
var TopologyServiceAddress = NewTIPCServiceAddress(1, 1)

// SubscriptionFilter is the filter bitmask of a [TopologySubscription].
type SubscriptionFilter uint32

const (
	// SubscribePorts reports each matching port (TIPC_SUB_PORTS).
	SubscribePorts SubscriptionFilter = 1 << iota

	// SubscribeService reports only the first publication and last
	// withdrawal of the service (TIPC_SUB_SERVICE).
	SubscribeService

	// SubscribeCancel cancels a previous subscription (TIPC_SUB_CANCEL).
	SubscribeCancel
)

// String returns the set flags separated by "|", or "none".
func (f SubscriptionFilter) String() string {
	var names []string
	if f&SubscribePorts != 0 {
		names = append(names, "ports")
	}
	if f&SubscribeService != 0 {
		names = append(names, "service")
	}
	if f&SubscribeCancel != 0 {
		names = append(names, "cancel")
	}
	if rest := f &^ (SubscribePorts | SubscribeService | SubscribeCancel); rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// TopologySubscription is a request to the topology service.
//
// The wire format is 28 bytes in network byte order laid out as the
// kernel's struct tipc_subscr: type, lower, upper, timeout, filter and
// the 8-byte user handle. The service echoes the record in each event,
// and matches cancellations by exact equality of all fields except the
// cancel bit.
type TopologySubscription struct {
	Type       uint32
	Lower      uint32
	Upper      uint32
	Filter     SubscriptionFilter
	Timeout    uint32
	UserHandle [8]byte
}

// Validate checks that Upper is not below Lower, which only port
// subscriptions may violate.
func (s TopologySubscription) Validate() error {
	if s.Lower > s.Upper && s.Filter&SubscribePorts == 0 {
		return newError(ErrMalformedRecord, "subscribe", FamilyTIPC,
			fmt.Errorf("lower %d exceeds upper %d", s.Lower, s.Upper))
	}
	return nil
}

// MarshalBinary returns the wire representation.
func (s TopologySubscription) MarshalBinary() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s.appendTo(make([]byte, 0, TopologySubscriptionSize)), nil
}

func (s TopologySubscription) appendTo(buf []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, s.Type)
	buf = binary.BigEndian.AppendUint32(buf, s.Lower)
	buf = binary.BigEndian.AppendUint32(buf, s.Upper)
	buf = binary.BigEndian.AppendUint32(buf, s.Timeout)
	buf = binary.BigEndian.AppendUint32(buf, uint32(s.Filter))
	return append(buf, s.UserHandle[:]...)
}

// ParseTopologySubscription decodes a wire subscription record.
func ParseTopologySubscription(data []byte) (TopologySubscription, error) {
	if len(data) != TopologySubscriptionSize {
		return TopologySubscription{}, newError(ErrMalformedRecord, "decode", FamilyTIPC,
			fmt.Errorf("subscription: expected %d bytes, got %d", TopologySubscriptionSize, len(data)))
	}
	sub := TopologySubscription{
		Type:    binary.BigEndian.Uint32(data[0:]),
		Lower:   binary.BigEndian.Uint32(data[4:]),
		Upper:   binary.BigEndian.Uint32(data[8:]),
		Timeout: binary.BigEndian.Uint32(data[12:]),
		Filter:  SubscriptionFilter(binary.BigEndian.Uint32(data[16:])),
	}
	copy(sub.UserHandle[:], data[20:])
	return sub, nil
}

// Cancellation returns the record that cancels s: the same fields with
// [SubscribeCancel] added to the filter.
func (s TopologySubscription) Cancellation() TopologySubscription {
	s.Filter |= SubscribeCancel
	return s
}

// IsPort reports whether s is a port subscription.
func (s TopologySubscription) IsPort() bool { return s.Filter&SubscribePorts != 0 }

// IsService reports whether s is a service subscription.
func (s TopologySubscription) IsService() bool { return s.Filter&SubscribeService != 0 }

// IsCancellation reports whether s cancels a subscription.
func (s TopologySubscription) IsCancellation() bool { return s.Filter&SubscribeCancel != 0 }

// String returns a human readable representation.
func (s TopologySubscription) String() string {
	timeout := "forever"
	if s.Timeout != TIPCWaitForever {
		timeout = formatUint32(s.Timeout) + "ms"
	}
	return fmt.Sprintf("%d@%s-%s;filter=%s;timeout=%s;handle=%s", s.Type,
		formatTIPCInt(s.Lower), formatTIPCInt(s.Upper), s.Filter, timeout, hex.EncodeToString(s.UserHandle[:]))
}

// formatTIPCInt renders ~0 as "~0" like the TIPC tools do.
func formatTIPCInt(v uint32) string {
	if v == ^uint32(0) {
		return "~0"
	}
	return formatUint32(v)
}

// TopologyEventKind is the kind of a [TopologyEvent].
type TopologyEventKind uint32

const (
	// TopologyPublished reports a new publication (TIPC_PUBLISHED).
	TopologyPublished TopologyEventKind = iota + 1

	// TopologyWithdrawn reports a withdrawn publication (TIPC_WITHDRAWN).
	TopologyWithdrawn

	// TopologyTimedOut reports an expired subscription (TIPC_SUBSCR_TIMEOUT).
	TopologyTimedOut
)

// String returns the event kind name.
func (k TopologyEventKind) String() string {
	switch k {
	case TopologyPublished:
		return "published"
	case TopologyWithdrawn:
		return "withdrawn"
	case TopologyTimedOut:
		return "timeout"
	default:
		return "kind(" + formatUint32(uint32(k)) + ")"
	}
}

// TopologyEvent is an event received from the topology service.
//
// The wire format is 48 bytes in network byte order: kind, found lower,
// found upper, the publishing socket (ref, node) and the echoed
// 28-byte subscription.
type TopologyEvent struct {
	Kind         TopologyEventKind
	FoundLower   uint32
	FoundUpper   uint32
	Port         TIPCSocketID
	Subscription TopologySubscription
}

// ParseTopologyEvent decodes a wire event record. It fails with
// [ErrMalformedRecord] on a wrong length or an unknown kind.
func ParseTopologyEvent(data []byte) (*TopologyEvent, error) {
	if len(data) != TopologyEventSize {
		return nil, newError(ErrMalformedRecord, "decode", FamilyTIPC,
			fmt.Errorf("event: expected %d bytes, got %d", TopologyEventSize, len(data)))
	}
	kind := TopologyEventKind(binary.BigEndian.Uint32(data[0:]))
	if kind < TopologyPublished || kind > TopologyTimedOut {
		return nil, newError(ErrMalformedRecord, "decode", FamilyTIPC, fmt.Errorf("event: unknown kind %d", kind))
	}
	sub, err := ParseTopologySubscription(data[20:])
	if err != nil {
		return nil, err
	}
	return &TopologyEvent{
		Kind:       kind,
		FoundLower: binary.BigEndian.Uint32(data[4:]),
		FoundUpper: binary.BigEndian.Uint32(data[8:]),
		Port: TIPCSocketID{
			Ref:  binary.BigEndian.Uint32(data[12:]),
			Node: binary.BigEndian.Uint32(data[16:]),
		},
		Subscription: sub,
	}, nil
}

// MarshalBinary returns the wire representation. Only the topology
// service produces events: this is useful for simulating it.
func (e *TopologyEvent) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, TopologyEventSize)
	buf = binary.BigEndian.AppendUint32(buf, uint32(e.Kind))
	buf = binary.BigEndian.AppendUint32(buf, e.FoundLower)
	buf = binary.BigEndian.AppendUint32(buf, e.FoundUpper)
	buf = binary.BigEndian.AppendUint32(buf, e.Port.Ref)
	buf = binary.BigEndian.AppendUint32(buf, e.Port.Node)
	return e.Subscription.appendTo(buf), nil
}

// LinkPeer returns the peer node and bearer id identifying the link
// reported by an event of a [TIPCLinkState] subscription, to be passed
// to [*Handle.LinkName]. It returns false for other events.
func (e *TopologyEvent) LinkPeer() (peer, bearerID uint32, ok bool) {
	if e.Subscription.Type != TIPCLinkState {
		return 0, 0, false
	}
	return e.FoundLower, e.Port.Ref & 0xffff, true
}

// String returns a human readable representation.
func (e *TopologyEvent) String() string {
	found := formatTIPCInt(e.FoundLower)
	if e.FoundLower != e.FoundUpper {
		found += "-" + formatTIPCInt(e.FoundUpper)
	}
	return fmt.Sprintf("%s;found=%s;port=%s;sub=%s", e.Kind, found, e.Port, e.Subscription)
}
