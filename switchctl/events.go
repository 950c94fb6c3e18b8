package switchctl

// Event is a notification delivered by the switch-control layer. Each
// concrete event is an immutable value so the decision engine can process a
// recorded sequence deterministically.
type Event interface {
	event()
}

// PacketInEvent is delivered once per frame that matched no installed rule.
type PacketInEvent struct {
	Switch       SwitchID
	InPort       PortID
	Frame        []byte
	BufferHandle string
}

// LinkAddEvent is delivered when topology discovery finds a new
// inter-switch link.
type LinkAddEvent struct {
	SwitchA SwitchID
	PortA   PortID
	SwitchB SwitchID
	PortB   PortID
}

// SwitchJoinEvent is delivered when a switch connects to the controller.
type SwitchJoinEvent struct {
	Switch SwitchID
	Ports  []PortID
}

// SwitchLeaveEvent is delivered when a switch disconnects.
type SwitchLeaveEvent struct {
	Switch SwitchID
}

func (PacketInEvent) event()    {}
func (LinkAddEvent) event()     {}
func (SwitchJoinEvent) event()  {}
func (SwitchLeaveEvent) event() {}
