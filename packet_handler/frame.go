package packet

import (
	"encoding/binary"
	"fmt"
	"net"

	"l2spf/switchctl"
)

// Ethertypes the decision engine cares about.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeLLDP uint16 = 0x88cc
)

// IP protocol numbers for transport extraction.
const (
	ProtoTCP uint8 = 6
	ProtoUDP uint8 = 17
)

const ethHeaderLen = 14

// Frame is the decoded view of a packet-in payload: the link-layer header
// plus, when the payload is TCP or UDP over IPv4, the exact transport 5-tuple
// tail used for transport-specific rules.
type Frame struct {
	DstMAC    net.HardwareAddr
	SrcMAC    net.HardwareAddr
	EtherType uint16
	Transport *switchctl.Transport
}

// Decode parses the link-layer header of a raw frame and extracts a
// transport hint when one is present. A payload too short to carry an
// Ethernet header is rejected as malformed.
func Decode(data []byte) (*Frame, error) {
	if len(data) < ethHeaderLen {
		return nil, fmt.Errorf("frame too short: %d bytes", len(data))
	}

	frame := &Frame{
		DstMAC:    net.HardwareAddr(append([]byte(nil), data[0:6]...)),
		SrcMAC:    net.HardwareAddr(append([]byte(nil), data[6:12]...)),
		EtherType: binary.BigEndian.Uint16(data[12:14]),
	}

	if frame.EtherType == EtherTypeIPv4 {
		frame.Transport = decodeTransport(data[ethHeaderLen:])
	}

	return frame, nil
}

// decodeTransport pulls the protocol and port pair out of an IPv4 payload.
// Returns nil for non-TCP/UDP traffic or truncated headers; a missing hint
// only downgrades the installed rule from transport-specific to MAC-only.
func decodeTransport(ip []byte) *switchctl.Transport {
	if len(ip) < 20 {
		return nil
	}
	if version := ip[0] >> 4; version != 4 {
		return nil
	}

	ihl := int(ip[0]&0x0f) * 4
	if ihl < 20 || len(ip) < ihl+4 {
		return nil
	}

	proto := ip[9]
	if proto != ProtoTCP && proto != ProtoUDP {
		return nil
	}

	l4 := ip[ihl:]
	return &switchctl.Transport{
		Proto:   proto,
		SrcPort: binary.BigEndian.Uint16(l4[0:2]),
		DstPort: binary.BigEndian.Uint16(l4[2:4]),
	}
}

// IsMulticastDst reports whether the destination is a broadcast or multicast
// group address (I/G bit set), covering ff:ff:ff:ff:ff:ff, 01:00:5e:* and
// 33:33:* among others.
func (f *Frame) IsMulticastDst() bool {
	return len(f.DstMAC) > 0 && f.DstMAC[0]&0x01 != 0
}

// IsDiscovery reports whether the frame belongs to topology discovery and
// must never reach learning or forwarding.
func (f *Frame) IsDiscovery() bool {
	return f.EtherType == EtherTypeLLDP
}

// Dst returns the canonical string form of the destination MAC, used as a
// table and cache key.
func (f *Frame) Dst() string {
	return f.DstMAC.String()
}

// Src returns the canonical string form of the source MAC.
func (f *Frame) Src() string {
	return f.SrcMAC.String()
}
