package mactable

import (
	"sync"

	"l2spf/switchctl"

	log "github.com/sirupsen/logrus"
)

// Location is where a host MAC was last observed.
type Location struct {
	Switch switchctl.SwitchID
	Port   switchctl.PortID
}

// Table maps learned host MACs to their last observed (switch, port)
// location. Last write wins; entries never age out. Trunk-port suppression is
// the caller's job: the table records whatever it is told.
type Table struct {
	mu        sync.RWMutex
	locations map[string]Location
}

func New() *Table {
	return &Table{
		locations: make(map[string]Location),
	}
}

// Learn upserts the location for mac, overwriting any prior mapping.
func (t *Table) Learn(sw switchctl.SwitchID, mac string, port switchctl.PortID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, known := t.locations[mac]
	t.locations[mac] = Location{Switch: sw, Port: port}

	if !known {
		log.Infof("Learn: host %s at %s port %d", mac, sw, port)
	} else if prev.Switch != sw || prev.Port != port {
		log.Infof("Learn: host %s moved %s port %d -> %s port %d", mac, prev.Switch, prev.Port, sw, port)
	}
}

// Lookup returns the last learned location for mac.
func (t *Table) Lookup(mac string) (Location, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	loc, ok := t.locations[mac]
	return loc, ok
}

// Entries returns a copy of the table, for state publishing.
func (t *Table) Entries() map[string]Location {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := make(map[string]Location, len(t.locations))
	for mac, loc := range t.locations {
		entries[mac] = loc
	}
	return entries
}

// Len returns the number of learned hosts.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.locations)
}
