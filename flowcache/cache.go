package flowcache

import (
	"sync"

	"l2spf/routing"
	"l2spf/switchctl"
	"l2spf/topology"

	log "github.com/sirupsen/logrus"
)

// Key identifies a cached route. It is keyed on the ingress switch rather
// than the transmitting host: the route depends on which switch first saw
// the frame, so distinct ingress points toward the same destination resolve
// independently.
type Key struct {
	Ingress switchctl.SwitchID
	Egress  switchctl.SwitchID
	DstMAC  string
}

// Cache memoizes computed paths and installs the forwarding rules along them.
//
// Entries are never invalidated: a topology change after a path is cached, or
// a switch-side rule expiring on idle-timeout, leaves the entry pointing at a
// route that may no longer match live switch state. Callers live with that
// boundary until a cached path is explicitly dropped by restart.
type Cache struct {
	mu       sync.Mutex
	store    *topology.Store
	cmd      switchctl.Commander
	selector *routing.Selector
	entries  map[Key]routing.Path
}

func New(store *topology.Store, cmd switchctl.Commander, selector *routing.Selector) *Cache {
	return &Cache{
		store:    store,
		cmd:      cmd,
		selector: selector,
		entries:  make(map[Key]routing.Path),
	}
}

// GetOrInstall returns the cached path for key, resolving and installing
// rules first on a miss. A hit never reinstalls: the rules are assumed still
// resident on the switches.
func (c *Cache) GetOrInstall(key Key, egressPort switchctl.PortID, hint *switchctl.Transport) (routing.Path, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if path, ok := c.entries[key]; ok {
		return path, nil
	}

	paths, err := routing.ComputePaths(c.store.Snapshot(), key.Ingress, key.Egress)
	if err != nil {
		return nil, err
	}
	path := c.selector.Pick(paths)

	log.Infof("GetOrInstall: %s -> %s for %s via %v", key.Ingress, key.Egress, key.DstMAC, path)
	c.installPathRules(path, key.DstMAC, egressPort, hint)

	c.entries[key] = path
	return path, nil
}

// Lookup returns the cached path for key without resolving.
func (c *Cache) Lookup(key Key) (routing.Path, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, ok := c.entries[key]
	return path, ok
}

// Len returns the number of cached routes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// InstallPathRules installs one forwarding rule per switch on the path:
// non-final hops output toward the next switch on the path, the final hop
// outputs egressPort. Returns the number of rules actually issued.
func (c *Cache) InstallPathRules(path routing.Path, dstMAC string, egressPort switchctl.PortID, hint *switchctl.Transport) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.installPathRules(path, dstMAC, egressPort, hint)
}

// installPathRules must run under the lock. A hop whose switch is not live or
// whose port mapping is missing is skipped, never retried; the remaining hops
// still get their rules.
func (c *Cache) installPathRules(path routing.Path, dstMAC string, egressPort switchctl.PortID, hint *switchctl.Transport) int {
	match := switchctl.MatchSpec{DstMAC: dstMAC}
	priority := switchctl.PriorityMac
	if hint != nil {
		match.Transport = hint
		priority = switchctl.PriorityTransport
	}

	installed := 0
	for i, sw := range path {
		if !c.store.IsLive(sw) {
			log.Warnf("InstallPathRules: switch %s not live, skipping hop", sw)
			continue
		}

		outPort := egressPort
		if i < len(path)-1 {
			port, err := c.store.NeighborPort(sw, path[i+1])
			if err != nil {
				log.Warnf("InstallPathRules: %v, skipping hop", err)
				continue
			}
			outPort = port
		}

		if err := c.cmd.InstallRule(sw, match, outPort, priority, switchctl.RuleIdleTimeout); err != nil {
			log.Warnf("InstallPathRules: install on %s failed: %v", sw, err)
			continue
		}
		log.Infof("InstallPathRules: %s: dst=%s -> port %d (priority=%d)", sw, dstMAC, outPort, priority)
		installed++
	}

	log.Infof("InstallPathRules: installed %d rules on path %v", installed, path)
	return installed
}
