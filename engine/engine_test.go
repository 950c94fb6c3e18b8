package engine

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"l2spf/flowcache"
	packet "l2spf/packet_handler"
	"l2spf/switchctl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hostA = "00:00:00:00:00:0a"
	hostB = "00:00:00:00:00:0b"
)

type installedRule struct {
	sw       switchctl.SwitchID
	match    switchctl.MatchSpec
	outPort  switchctl.PortID
	priority int
	idle     int
}

type sentPacket struct {
	sw      switchctl.SwitchID
	inPort  switchctl.PortID
	outPort switchctl.PortID
}

type fakeCommander struct {
	rules   []installedRule
	packets []sentPacket
}

func (f *fakeCommander) InstallRule(sw switchctl.SwitchID, match switchctl.MatchSpec, outPort switchctl.PortID, priority int, idleTimeout int) error {
	f.rules = append(f.rules, installedRule{sw: sw, match: match, outPort: outPort, priority: priority, idle: idleTimeout})
	return nil
}

func (f *fakeCommander) SendPacket(sw switchctl.SwitchID, inPort, outPort switchctl.PortID, payload []byte) error {
	f.packets = append(f.packets, sentPacket{sw: sw, inPort: inPort, outPort: outPort})
	return nil
}

// pathRules filters out the table-miss installs issued on switch join.
func (f *fakeCommander) pathRules() []installedRule {
	var rules []installedRule
	for _, rule := range f.rules {
		if rule.priority != switchctl.PriorityTableMiss {
			rules = append(rules, rule)
		}
	}
	return rules
}

func frame(t *testing.T, dst, src string, etherType uint16) []byte {
	t.Helper()
	dstMAC, err := net.ParseMAC(dst)
	require.NoError(t, err)
	srcMAC, err := net.ParseMAC(src)
	require.NoError(t, err)

	raw := append([]byte{}, dstMAC...)
	raw = append(raw, srcMAC...)
	return binary.BigEndian.AppendUint16(raw, etherType)
}

func packetIn(t *testing.T, sw switchctl.SwitchID, port switchctl.PortID, dst, src string, etherType uint16) switchctl.PacketInEvent {
	t.Helper()
	return switchctl.PacketInEvent{
		Switch:       sw,
		InPort:       port,
		Frame:        frame(t, dst, src, etherType),
		BufferHandle: switchctl.NewBufferHandle(),
	}
}

// newTestEngine wires an engine over the line topology s1-s2-s4 with every
// switch joined and both links discovered.
func newTestEngine(t *testing.T) (*Engine, *fakeCommander) {
	t.Helper()
	cmd := &fakeCommander{}
	e := New(Config{Commander: cmd, Seed: 1})

	for _, sw := range []switchctl.SwitchID{"s1", "s2", "s4"} {
		e.handleEvent(switchctl.SwitchJoinEvent{Switch: sw, Ports: []switchctl.PortID{1, 2, 3, 7}})
	}
	e.handleEvent(switchctl.LinkAddEvent{SwitchA: "s1", PortA: 3, SwitchB: "s2", PortB: 1})
	e.handleEvent(switchctl.LinkAddEvent{SwitchA: "s2", PortA: 2, SwitchB: "s4", PortB: 1})
	return e, cmd
}

func TestSwitchJoinInstallsTableMiss(t *testing.T) {
	cmd := &fakeCommander{}
	e := New(Config{Commander: cmd, Seed: 1})

	e.handleEvent(switchctl.SwitchJoinEvent{Switch: "s1", Ports: []switchctl.PortID{1, 2}})

	require.Len(t, cmd.rules, 1)
	rule := cmd.rules[0]
	assert.Equal(t, switchctl.SwitchID("s1"), rule.sw)
	assert.Equal(t, switchctl.MatchSpec{}, rule.match, "table miss matches everything")
	assert.Equal(t, switchctl.PortController, rule.outPort)
	assert.Equal(t, switchctl.PriorityTableMiss, rule.priority)
	assert.Equal(t, switchctl.NoTimeout, rule.idle, "table miss never expires")
	assert.True(t, e.Topology().IsLive("s1"))
}

func TestPacketInOutcomes(t *testing.T) {
	t.Run("MalformedDropped", func(t *testing.T) {
		e, cmd := newTestEngine(t)
		outcome := e.handlePacketIn(switchctl.PacketInEvent{Switch: "s1", InPort: 7, Frame: []byte{0x01}})

		assert.Equal(t, OutcomeDrop, outcome)
		assert.Empty(t, cmd.packets)
		assert.Equal(t, 0, e.Hosts().Len(), "malformed frames must not be learned")
	})

	t.Run("DiscoveryDropped", func(t *testing.T) {
		e, cmd := newTestEngine(t)
		outcome := e.handlePacketIn(packetIn(t, "s1", 7, "01:80:c2:00:00:0e", hostA, packet.EtherTypeLLDP))

		assert.Equal(t, OutcomeDrop, outcome)
		assert.Empty(t, cmd.packets)
	})

	t.Run("BroadcastFloods", func(t *testing.T) {
		e, cmd := newTestEngine(t)
		outcome := e.handlePacketIn(packetIn(t, "s1", 7, "ff:ff:ff:ff:ff:ff", hostA, packet.EtherTypeIPv4))

		assert.Equal(t, OutcomeFlood, outcome)
		require.Len(t, cmd.packets, 1)
		assert.Equal(t, sentPacket{sw: "s1", inPort: 7, outPort: switchctl.PortFlood}, cmd.packets[0])
	})

	t.Run("ARPFloods", func(t *testing.T) {
		e, cmd := newTestEngine(t)
		outcome := e.handlePacketIn(packetIn(t, "s1", 7, hostB, hostA, packet.EtherTypeARP))

		assert.Equal(t, OutcomeFlood, outcome)
		require.Len(t, cmd.packets, 1)
		assert.Equal(t, switchctl.PortFlood, cmd.packets[0].outPort)
	})

	t.Run("UnknownUnicastFloods", func(t *testing.T) {
		e, cmd := newTestEngine(t)
		outcome := e.handlePacketIn(packetIn(t, "s1", 7, hostB, hostA, packet.EtherTypeIPv4))

		assert.Equal(t, OutcomeFlood, outcome)
		require.Len(t, cmd.packets, 1)
		assert.Equal(t, switchctl.PortFlood, cmd.packets[0].outPort)
		assert.Empty(t, cmd.pathRules(), "no rule installed for unknown destination")
		assert.Equal(t, 0, e.Flows().Len(), "no cache entry for unknown destination")
	})

	t.Run("SameSwitchDirectOutput", func(t *testing.T) {
		e, cmd := newTestEngine(t)

		// hostB speaks first and is learned on s1 port 2
		e.handlePacketIn(packetIn(t, "s1", 2, hostA, hostB, packet.EtherTypeIPv4))
		cmd.packets = nil

		outcome := e.handlePacketIn(packetIn(t, "s1", 7, hostB, hostA, packet.EtherTypeIPv4))

		assert.Equal(t, OutcomeDirect, outcome)
		require.Len(t, cmd.packets, 1)
		assert.Equal(t, sentPacket{sw: "s1", inPort: 7, outPort: 2}, cmd.packets[0])
		assert.Empty(t, cmd.pathRules(), "single-hop traffic never installs rules")
		assert.Equal(t, 0, e.Flows().Len(), "single-hop traffic never consults the resolver")
	})

	t.Run("CrossSwitchInstallAndOutput", func(t *testing.T) {
		e, cmd := newTestEngine(t)

		// hostB is learned behind s4 port 7
		e.handlePacketIn(packetIn(t, "s4", 7, hostA, hostB, packet.EtherTypeIPv4))
		cmd.packets = nil

		outcome := e.handlePacketIn(packetIn(t, "s1", 7, hostB, hostA, packet.EtherTypeIPv4))

		assert.Equal(t, OutcomeInstall, outcome)

		rules := cmd.pathRules()
		require.Len(t, rules, 3, "one rule per switch on the path")
		assert.Equal(t, installedRule{sw: "s1", match: switchctl.MatchSpec{DstMAC: hostB}, outPort: 3, priority: switchctl.PriorityMac, idle: switchctl.RuleIdleTimeout}, rules[0])
		assert.Equal(t, installedRule{sw: "s2", match: switchctl.MatchSpec{DstMAC: hostB}, outPort: 2, priority: switchctl.PriorityMac, idle: switchctl.RuleIdleTimeout}, rules[1])
		assert.Equal(t, installedRule{sw: "s4", match: switchctl.MatchSpec{DstMAC: hostB}, outPort: 7, priority: switchctl.PriorityMac, idle: switchctl.RuleIdleTimeout}, rules[2])

		// the triggering packet goes out toward the next hop
		require.Len(t, cmd.packets, 1)
		assert.Equal(t, sentPacket{sw: "s1", inPort: 7, outPort: 3}, cmd.packets[0])

		path, ok := e.Flows().Lookup(flowcache.Key{Ingress: "s1", Egress: "s4", DstMAC: hostB})
		require.True(t, ok)
		assert.Len(t, path, 3)
	})

	t.Run("NoPathDegradesToFlood", func(t *testing.T) {
		cmd := &fakeCommander{}
		e := New(Config{Commander: cmd, Seed: 1})
		e.handleEvent(switchctl.SwitchJoinEvent{Switch: "s1", Ports: []switchctl.PortID{1, 7}})
		e.handleEvent(switchctl.SwitchJoinEvent{Switch: "s4", Ports: []switchctl.PortID{1, 7}})

		// hostB known behind s4 but no links discovered yet
		e.handlePacketIn(packetIn(t, "s4", 7, hostA, hostB, packet.EtherTypeIPv4))
		cmd.packets = nil

		outcome := e.handlePacketIn(packetIn(t, "s1", 7, hostB, hostA, packet.EtherTypeIPv4))

		assert.Equal(t, OutcomeFlood, outcome)
		require.Len(t, cmd.packets, 1)
		assert.Equal(t, switchctl.PortFlood, cmd.packets[0].outPort)
		assert.Empty(t, cmd.pathRules())
	})
}

func TestTrunkPortLearningSuppressed(t *testing.T) {
	e, _ := newTestEngine(t)

	// a frame arriving on s1 port 3 (the link toward s2) must not be learned
	e.handlePacketIn(packetIn(t, "s1", 3, hostB, hostA, packet.EtherTypeIPv4))
	_, known := e.Hosts().Lookup(hostA)
	assert.False(t, known, "trunk-port source must not pollute the table")

	// the same source on a host port is learned
	e.handlePacketIn(packetIn(t, "s1", 7, hostB, hostA, packet.EtherTypeIPv4))
	loc, known := e.Hosts().Lookup(hostA)
	require.True(t, known)
	assert.Equal(t, switchctl.SwitchID("s1"), loc.Switch)
	assert.Equal(t, switchctl.PortID(7), loc.Port)
}

func TestSwitchLeave(t *testing.T) {
	e, _ := newTestEngine(t)
	e.handleEvent(switchctl.SwitchLeaveEvent{Switch: "s2"})
	assert.False(t, e.Topology().IsLive("s2"))
}

func TestRunDrainsQueue(t *testing.T) {
	cmd := &fakeCommander{}
	e := New(Config{Commander: cmd, Seed: 1, QueueSize: 8})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.Submit(switchctl.SwitchJoinEvent{Switch: "s1", Ports: []switchctl.PortID{1, 7}})
	e.Submit(packetIn(t, "s1", 7, hostB, hostA, packet.EtherTypeIPv4))

	require.Eventually(t, func() bool {
		_, known := e.Hosts().Lookup(hostA)
		return known
	}, time.Second, 5*time.Millisecond, "submitted packet-in was not processed")
}
