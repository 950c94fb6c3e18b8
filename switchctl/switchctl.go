package switchctl

import (
	"github.com/google/uuid"
)

// SwitchID identifies a forwarding device, e.g. "s1".
type SwitchID string

// PortID is a switch-local port number.
type PortID uint32

// Reserved output ports understood by every switch.
const (
	// PortFlood sends the packet out every port except the ingress port.
	PortFlood PortID = 0xfffffffb
	// PortController redirects the packet to the controller.
	PortController PortID = 0xfffffffd
)

// Rule priorities, highest wins. Transport-specific rules shadow MAC-only
// rules, which shadow the table-miss catch-all.
const (
	PriorityTableMiss = 0
	PriorityMac       = 5
	PriorityTransport = 10
)

// RuleIdleTimeout is the idle timeout, in seconds, carried by every MAC-only
// and transport-specific rule so it self-expires on the switch. The
// table-miss rule uses NoTimeout and never expires.
const (
	RuleIdleTimeout = 30
	NoTimeout       = 0
)

// Transport is an exact transport-protocol plus port-pair match.
type Transport struct {
	Proto   uint8
	SrcPort uint16
	DstPort uint16
}

// MatchSpec describes what a flow rule matches. The zero value matches every
// packet (table miss). DstMAC, when set, is an exact destination-MAC match;
// Transport, when non-nil, additionally matches the exact protocol and
// port pair.
type MatchSpec struct {
	DstMAC    string
	Transport *Transport
}

// Commander issues commands toward switches. Calls are fire-and-forget: the
// core never waits for an acknowledgment, and a returned error is logged by
// the caller and absorbed.
type Commander interface {
	InstallRule(sw SwitchID, match MatchSpec, outPort PortID, priority int, idleTimeout int) error
	SendPacket(sw SwitchID, inPort, outPort PortID, payload []byte) error
}

// NewBufferHandle mints an opaque token identifying a frame buffered by the
// delivery layer for one-shot replay.
func NewBufferHandle() string {
	return uuid.NewString()
}
