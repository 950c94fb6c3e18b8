package routing

import (
	"math/rand"

	log "github.com/sirupsen/logrus"
)

// Selector applies the multipath policy to a resolved equal-cost path set.
// The randomness source is injected so distribution tests can seed it.
type Selector struct {
	ecmp bool
	rng  *rand.Rand
}

func NewSelector(ecmp bool, seed int64) *Selector {
	return &Selector{
		ecmp: ecmp,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Pick chooses one path: uniformly at random when multipath mode is on and
// more than one minimum-cost path exists, deterministically (first in sorted
// order) otherwise.
func (s *Selector) Pick(paths []Path) Path {
	if len(paths) == 0 {
		return nil
	}
	if s.ecmp && len(paths) > 1 {
		chosen := paths[s.rng.Intn(len(paths))]
		log.Infof("ECMP: selected %v among %d equal-cost paths", chosen, len(paths))
		return chosen
	}
	return paths[0]
}
