package topology

import (
	"sync"

	"l2spf/switchctl"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// ErrNoLink is returned when no discovered link connects two switches.
var ErrNoLink = xerrors.New("topology: no link between switches")

// DefaultLinkWeight is used for discovered links with no weight-matrix entry.
const DefaultLinkWeight = 1

// Link is one inter-switch link. Links are stored in both directions, so a
// discovered link appears twice when listed.
type Link struct {
	A      switchctl.SwitchID
	PortA  switchctl.PortID
	B      switchctl.SwitchID
	PortB  switchctl.PortID
	Weight int
}

// Store is the live topology model: the set of connected switches with their
// ports and the weighted graph of discovered inter-switch links. All methods
// are safe for concurrent use; readers get copies.
type Store struct {
	mu     sync.RWMutex
	matrix *WeightMatrix

	// live switches and their ports
	switches map[switchctl.SwitchID]map[switchctl.PortID]struct{}

	// adjacency: adj[a][b] = link weight
	adj map[switchctl.SwitchID]map[switchctl.SwitchID]int

	// linkPort[a][b] = the port on a that faces b
	linkPort map[switchctl.SwitchID]map[switchctl.SwitchID]switchctl.PortID

	// trunk[sw][port] marks ports that are link endpoints
	trunk map[switchctl.SwitchID]map[switchctl.PortID]struct{}
}

func NewStore(matrix *WeightMatrix) *Store {
	return &Store{
		matrix:   matrix,
		switches: make(map[switchctl.SwitchID]map[switchctl.PortID]struct{}),
		adj:      make(map[switchctl.SwitchID]map[switchctl.SwitchID]int),
		linkPort: make(map[switchctl.SwitchID]map[switchctl.SwitchID]switchctl.PortID),
		trunk:    make(map[switchctl.SwitchID]map[switchctl.PortID]struct{}),
	}
}

// AddSwitch registers a connected switch and its ports.
func (s *Store) AddSwitch(sw switchctl.SwitchID, ports []switchctl.PortID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	portSet := make(map[switchctl.PortID]struct{}, len(ports))
	for _, port := range ports {
		portSet[port] = struct{}{}
	}
	s.switches[sw] = portSet
	log.Infof("AddSwitch: %s connected with %d ports", sw, len(ports))
}

// RemoveSwitch drops a switch from the live set consulted by the installer.
// Links referencing it stay until the next Rebuild.
func (s *Store) RemoveSwitch(sw switchctl.SwitchID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.switches, sw)
	log.Infof("RemoveSwitch: %s disconnected", sw)
}

// IsLive reports whether a switch is currently connected.
func (s *Store) IsLive(sw switchctl.SwitchID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.switches[sw]
	return ok
}

// AddLink records a discovered link in both directions. Idempotent: relearning
// the same link only refreshes its weight and port mapping.
func (s *Store) AddLink(a switchctl.SwitchID, portA switchctl.PortID, b switchctl.SwitchID, portB switchctl.PortID, weight int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.resolveWeight(a, b, weight)
	s.insertDirected(a, portA, b, w)
	s.insertDirected(b, portB, a, w)
	log.Infof("AddLink: %s port %d <-> %s port %d (weight %d)", a, portA, b, portB, w)
}

// Rebuild replaces the graph wholesale from a full topology snapshot. Live
// switch registrations are preserved; links, port mappings and trunk
// classification are discarded and relearned.
func (s *Store) Rebuild(switches []switchctl.SwitchID, links []Link) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adj = make(map[switchctl.SwitchID]map[switchctl.SwitchID]int)
	s.linkPort = make(map[switchctl.SwitchID]map[switchctl.SwitchID]switchctl.PortID)
	s.trunk = make(map[switchctl.SwitchID]map[switchctl.PortID]struct{})

	for _, sw := range switches {
		s.adj[sw] = make(map[switchctl.SwitchID]int)
	}
	for _, l := range links {
		w := s.resolveWeight(l.A, l.B, l.Weight)
		s.insertDirected(l.A, l.PortA, l.B, w)
		s.insertDirected(l.B, l.PortB, l.A, w)
	}
	log.Infof("Rebuild: %d switches, %d directed links", len(s.adj), s.linkCountLocked())
}

// NeighborPort returns the port on sw that faces next.
func (s *Store) NeighborPort(sw, next switchctl.SwitchID) (switchctl.PortID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ports, ok := s.linkPort[sw]; ok {
		if port, ok := ports[next]; ok {
			return port, nil
		}
	}
	return 0, xerrors.Errorf("%s -> %s: %w", sw, next, ErrNoLink)
}

// IsTrunkPort reports whether the port is an endpoint of any discovered link,
// i.e. faces another switch rather than a host.
func (s *Store) IsTrunkPort(sw switchctl.SwitchID, port switchctl.PortID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ports, ok := s.trunk[sw]; ok {
		_, trunk := ports[port]
		return trunk
	}
	return false
}

// Graph is an immutable weighted-adjacency snapshot handed to the path
// resolver.
type Graph struct {
	Adj map[switchctl.SwitchID]map[switchctl.SwitchID]int
}

// HasNode reports whether the snapshot contains the switch.
func (g *Graph) HasNode(sw switchctl.SwitchID) bool {
	_, ok := g.Adj[sw]
	return ok
}

// Snapshot copies the current adjacency for a path computation.
func (s *Store) Snapshot() *Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adj := make(map[switchctl.SwitchID]map[switchctl.SwitchID]int, len(s.adj))
	for a, neighbors := range s.adj {
		row := make(map[switchctl.SwitchID]int, len(neighbors))
		for b, w := range neighbors {
			row[b] = w
		}
		adj[a] = row
	}
	return &Graph{Adj: adj}
}

// Links lists every directed link, for state publishing.
func (s *Store) Links() []Link {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var links []Link
	for a, neighbors := range s.adj {
		for b, w := range neighbors {
			links = append(links, Link{
				A:      a,
				PortA:  s.linkPort[a][b],
				B:      b,
				PortB:  s.linkPort[b][a],
				Weight: w,
			})
		}
	}
	return links
}

// LiveSwitches lists the currently connected switches.
func (s *Store) LiveSwitches() []switchctl.SwitchID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switches := make([]switchctl.SwitchID, 0, len(s.switches))
	for sw := range s.switches {
		switches = append(switches, sw)
	}
	return switches
}

// resolveWeight prefers the static matrix entry for the pair; the discovered
// weight applies otherwise, with DefaultLinkWeight as the floor.
func (s *Store) resolveWeight(a, b switchctl.SwitchID, discovered int) int {
	if w, ok := s.matrix.Weight(a, b); ok {
		return w
	}
	if discovered > 0 {
		return discovered
	}
	return DefaultLinkWeight
}

// insertDirected must run under the write lock, once per direction.
func (s *Store) insertDirected(from switchctl.SwitchID, fromPort switchctl.PortID, to switchctl.SwitchID, weight int) {
	if _, ok := s.adj[from]; !ok {
		s.adj[from] = make(map[switchctl.SwitchID]int)
	}
	s.adj[from][to] = weight

	if _, ok := s.linkPort[from]; !ok {
		s.linkPort[from] = make(map[switchctl.SwitchID]switchctl.PortID)
	}
	s.linkPort[from][to] = fromPort

	if _, ok := s.trunk[from]; !ok {
		s.trunk[from] = make(map[switchctl.PortID]struct{})
	}
	s.trunk[from][fromPort] = struct{}{}

	// make sure the far end exists as a graph node even before its own
	// links are inserted
	if _, ok := s.adj[to]; !ok {
		s.adj[to] = make(map[switchctl.SwitchID]int)
	}
}

func (s *Store) linkCountLocked() int {
	count := 0
	for _, neighbors := range s.adj {
		count += len(neighbors)
	}
	return count
}
