package engine

import (
	"context"

	"l2spf/flowcache"
	"l2spf/mactable"
	packet "l2spf/packet_handler"
	"l2spf/routing"
	"l2spf/switchctl"
	"l2spf/topology"

	log "github.com/sirupsen/logrus"
)

// Outcome is the terminal disposition of one packet-in notification.
type Outcome int

const (
	OutcomeDrop Outcome = iota
	OutcomeFlood
	OutcomeDirect
	OutcomeInstall
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDrop:
		return "drop"
	case OutcomeFlood:
		return "flood"
	case OutcomeDirect:
		return "direct-output"
	case OutcomeInstall:
		return "install-and-output"
	}
	return "unknown"
}

// StatePublisher mirrors controller state to an external store. Both calls
// must not block the caller.
type StatePublisher interface {
	PublishTopology(switches []switchctl.SwitchID, links []topology.Link)
	PublishHost(mac string, loc mactable.Location)
}

// Config wires an Engine.
type Config struct {
	Commander switchctl.Commander
	Matrix    *topology.WeightMatrix
	ECMP      bool
	Seed      int64
	QueueSize int
	Publisher StatePublisher // optional
}

const defaultQueueSize = 1024

// Engine is the packet-in decision engine. It owns the topology store, the
// MAC location table and the flow cache, and serializes every mutation of
// them by draining one event queue from a single goroutine.
type Engine struct {
	cmd       switchctl.Commander
	topo      *topology.Store
	macs      *mactable.Table
	flows     *flowcache.Cache
	publisher StatePublisher
	events    chan switchctl.Event
}

func New(cfg Config) *Engine {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	topo := topology.NewStore(cfg.Matrix)
	selector := routing.NewSelector(cfg.ECMP, cfg.Seed)

	return &Engine{
		cmd:       cfg.Commander,
		topo:      topo,
		macs:      mactable.New(),
		flows:     flowcache.New(topo, cfg.Commander, selector),
		publisher: cfg.Publisher,
		events:    make(chan switchctl.Event, queueSize),
	}
}

// Topology exposes the engine-owned store for wiring and inspection.
func (e *Engine) Topology() *topology.Store { return e.topo }

// Hosts exposes the engine-owned MAC location table.
func (e *Engine) Hosts() *mactable.Table { return e.macs }

// Flows exposes the engine-owned flow cache.
func (e *Engine) Flows() *flowcache.Cache { return e.flows }

// Submit enqueues a notification for processing. A full queue drops the
// event: the switch resends unmatched frames, so losing one notification
// only delays learning.
func (e *Engine) Submit(ev switchctl.Event) {
	select {
	case e.events <- ev:
	default:
		log.Warnf("Submit: event queue full, dropping %T", ev)
	}
}

// Run drains the event queue until the context is canceled. Every event runs
// to completion before the next is taken; no error halts the loop.
func (e *Engine) Run(ctx context.Context) {
	log.Infof("Engine started")
	for {
		select {
		case <-ctx.Done():
			log.Infof("Engine stopped: %v", ctx.Err())
			return
		case ev := <-e.events:
			e.handleEvent(ev)
		}
	}
}

func (e *Engine) handleEvent(ev switchctl.Event) {
	switch ev := ev.(type) {
	case switchctl.PacketInEvent:
		outcome := e.handlePacketIn(ev)
		log.Debugf("PacketIn on %s port %d: %s", ev.Switch, ev.InPort, outcome)
	case switchctl.LinkAddEvent:
		e.handleLinkAdd(ev)
	case switchctl.SwitchJoinEvent:
		e.handleSwitchJoin(ev)
	case switchctl.SwitchLeaveEvent:
		e.handleSwitchLeave(ev)
	default:
		log.Warnf("handleEvent: unknown event %T", ev)
	}
}

// handlePacketIn walks the decision states for one unmatched frame: parse,
// learn, classify, then flood, direct-output or install-and-output. Every
// failure on the way degrades to flood or drop, never to a propagated error.
func (e *Engine) handlePacketIn(ev switchctl.PacketInEvent) Outcome {
	frame, err := packet.Decode(ev.Frame)
	if err != nil {
		log.Debugf("handlePacketIn: malformed frame from %s: %v", ev.Switch, err)
		return OutcomeDrop
	}
	if frame.IsDiscovery() {
		return OutcomeDrop
	}

	// learn the source unless it arrived on an inter-switch port, which
	// would poison the table with infrastructure addresses
	if !e.topo.IsTrunkPort(ev.Switch, ev.InPort) {
		e.macs.Learn(ev.Switch, frame.Src(), ev.InPort)
		if e.publisher != nil {
			e.publisher.PublishHost(frame.Src(), mactable.Location{Switch: ev.Switch, Port: ev.InPort})
		}
	}

	if frame.IsMulticastDst() || frame.EtherType == packet.EtherTypeARP {
		e.flood(ev)
		return OutcomeFlood
	}

	loc, known := e.macs.Lookup(frame.Dst())
	if !known {
		e.flood(ev)
		return OutcomeFlood
	}

	// same switch: forward this one packet, no rules
	if loc.Switch == ev.Switch {
		e.send(ev, loc.Port)
		return OutcomeDirect
	}

	key := flowcache.Key{Ingress: ev.Switch, Egress: loc.Switch, DstMAC: frame.Dst()}
	path, err := e.flows.GetOrInstall(key, loc.Port, frame.Transport)
	if err != nil {
		log.Warnf("handlePacketIn: %s -> %s: %v, flooding", ev.Switch, loc.Switch, err)
		e.flood(ev)
		return OutcomeFlood
	}

	outPort, err := e.outputPort(ev.Switch, path, loc.Port)
	if err != nil {
		log.Warnf("handlePacketIn: no output port on %s for %v: %v, flooding", ev.Switch, path, err)
		e.flood(ev)
		return OutcomeFlood
	}

	e.send(ev, outPort)
	return OutcomeInstall
}

// outputPort derives this switch's output port from the resolved path: the
// link toward the next switch, or the learned egress port when the path ends
// here.
func (e *Engine) outputPort(sw switchctl.SwitchID, path routing.Path, egressPort switchctl.PortID) (switchctl.PortID, error) {
	for i, hop := range path {
		if hop != sw {
			continue
		}
		if i == len(path)-1 {
			return egressPort, nil
		}
		return e.topo.NeighborPort(sw, path[i+1])
	}
	return 0, routing.ErrNoPath
}

func (e *Engine) handleLinkAdd(ev switchctl.LinkAddEvent) {
	e.topo.AddLink(ev.SwitchA, ev.PortA, ev.SwitchB, ev.PortB, topology.DefaultLinkWeight)
	e.publishTopology()
}

// handleSwitchJoin registers the switch and installs its table-miss rule, the
// only rule installed unconditionally: priority 0, never expires, punts
// unmatched frames to the controller.
func (e *Engine) handleSwitchJoin(ev switchctl.SwitchJoinEvent) {
	e.topo.AddSwitch(ev.Switch, ev.Ports)

	err := e.cmd.InstallRule(ev.Switch, switchctl.MatchSpec{}, switchctl.PortController,
		switchctl.PriorityTableMiss, switchctl.NoTimeout)
	if err != nil {
		log.Warnf("handleSwitchJoin: table-miss install on %s failed: %v", ev.Switch, err)
	}
	e.publishTopology()
}

func (e *Engine) handleSwitchLeave(ev switchctl.SwitchLeaveEvent) {
	e.topo.RemoveSwitch(ev.Switch)
	e.publishTopology()
}

func (e *Engine) publishTopology() {
	if e.publisher != nil {
		e.publisher.PublishTopology(e.topo.LiveSwitches(), e.topo.Links())
	}
}

func (e *Engine) flood(ev switchctl.PacketInEvent) {
	e.send(ev, switchctl.PortFlood)
}

func (e *Engine) send(ev switchctl.PacketInEvent, outPort switchctl.PortID) {
	if err := e.cmd.SendPacket(ev.Switch, ev.InPort, outPort, ev.Frame); err != nil {
		log.Warnf("send: packet-out on %s port %d failed: %v", ev.Switch, outPort, err)
	}
}
