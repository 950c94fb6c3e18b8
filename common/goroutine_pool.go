package common

import (
	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"
)

type PoolConfig struct {
	MaxWorkers int
}

// NewPool builds the shared worker pool used for background publish work.
func NewPool(config PoolConfig) (*ants.Pool, error) {
	pool, err := ants.NewPool(config.MaxWorkers)
	if err != nil {
		log.Errorf("Failed to create worker pool: %v", err)
		return nil, err
	}

	return pool, nil
}
