package switchctl

import (
	log "github.com/sirupsen/logrus"
)

// CommandLogger is a Commander that only logs the commands it receives. It
// stands in for a southbound adapter in dry runs and during bring-up, before
// a real switch connection layer is attached.
type CommandLogger struct{}

func (CommandLogger) InstallRule(sw SwitchID, match MatchSpec, outPort PortID, priority int, idleTimeout int) error {
	if match.Transport != nil {
		log.Infof("InstallRule: switch=%s dst=%s proto=%d ports=%d:%d -> port %d (priority=%d idle=%ds)",
			sw, match.DstMAC, match.Transport.Proto, match.Transport.SrcPort, match.Transport.DstPort,
			outPort, priority, idleTimeout)
		return nil
	}
	log.Infof("InstallRule: switch=%s dst=%q -> port %d (priority=%d idle=%ds)",
		sw, match.DstMAC, outPort, priority, idleTimeout)
	return nil
}

func (CommandLogger) SendPacket(sw SwitchID, inPort, outPort PortID, payload []byte) error {
	log.Infof("SendPacket: switch=%s in=%d out=%d len=%d", sw, inPort, outPort, len(payload))
	return nil
}
