package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"l2spf/mactable"
	"l2spf/switchctl"
	"l2spf/topology"

	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	TopologyKey = "/l2spf/topology"
	HostPrefix  = "/l2spf/hosts/"
)

type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	PutTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
		PutTimeout:  3 * time.Second,
	}
}

// LinkRecord is the published form of one directed link.
type LinkRecord struct {
	SwitchA string `json:"switch_a"`
	PortA   uint32 `json:"port_a"`
	SwitchB string `json:"switch_b"`
	PortB   uint32 `json:"port_b"`
	Weight  int    `json:"weight"`
}

// TopologySnapshot is the published form of the live topology.
type TopologySnapshot struct {
	Switches  []string     `json:"switches"`
	Links     []LinkRecord `json:"links"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// HostRecord is the published form of one learned host location.
type HostRecord struct {
	MAC       string    `json:"mac"`
	Switch    string    `json:"switch"`
	Port      uint32    `json:"port"`
	LearnedAt time.Time `json:"learned_at"`
}

// StatePublisher mirrors topology snapshots and learned host locations into
// etcd for external observers. Puts run on a goroutine pool so the decision
// engine's event loop never blocks on etcd I/O; a failed put is logged and
// dropped, the next state change republishes anyway.
type StatePublisher struct {
	client *clientv3.Client
	pool   *ants.Pool
	config Config
}

func NewStatePublisher(config Config, pool *ants.Pool) (*StatePublisher, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return &StatePublisher{
		client: client,
		pool:   pool,
		config: config,
	}, nil
}

func (p *StatePublisher) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

// PublishTopology mirrors the current switch and link set.
func (p *StatePublisher) PublishTopology(switches []switchctl.SwitchID, links []topology.Link) {
	snapshot := TopologySnapshot{
		Switches:  make([]string, 0, len(switches)),
		Links:     make([]LinkRecord, 0, len(links)),
		UpdatedAt: time.Now(),
	}
	for _, sw := range switches {
		snapshot.Switches = append(snapshot.Switches, string(sw))
	}
	for _, l := range links {
		snapshot.Links = append(snapshot.Links, LinkRecord{
			SwitchA: string(l.A),
			PortA:   uint32(l.PortA),
			SwitchB: string(l.B),
			PortB:   uint32(l.PortB),
			Weight:  l.Weight,
		})
	}

	p.put(TopologyKey, snapshot)
}

// PublishHost mirrors one learned host location.
func (p *StatePublisher) PublishHost(mac string, loc mactable.Location) {
	record := HostRecord{
		MAC:       mac,
		Switch:    string(loc.Switch),
		Port:      uint32(loc.Port),
		LearnedAt: time.Now(),
	}

	p.put(HostPrefix+mac, record)
}

func (p *StatePublisher) put(key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warnf("put: failed to marshal %s: %v", key, err)
		return
	}

	err = p.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.PutTimeout)
		defer cancel()

		if _, err := p.client.Put(ctx, key, string(data)); err != nil {
			log.Warnf("put: failed to publish %s: %v", key, err)
		}
	})
	if err != nil {
		log.Warnf("put: failed to submit publish task for %s: %v", key, err)
	}
}
