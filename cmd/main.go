package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"l2spf/common"
	"l2spf/engine"
	"l2spf/etcd"
	"l2spf/stats"
	"l2spf/switchctl"
	"l2spf/topology"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ControllerConfig holds configuration from the toml file.
type ControllerConfig struct {
	Topology TopologyConfig `toml:"topology"`
	Routing  RoutingConfig  `toml:"routing"`
	Etcd     EtcdConfig     `toml:"etcd"`
	Stats    StatsConfig    `toml:"stats"`
}

type TopologyConfig struct {
	Nodes        []string `toml:"nodes"`
	WeightMatrix [][]int  `toml:"weight_matrix"`
}

type RoutingConfig struct {
	ECMP bool  `toml:"ecmp"`
	Seed int64 `toml:"seed"`
}

type EtcdConfig struct {
	Enabled   bool     `toml:"enabled"`
	Endpoints []string `toml:"endpoints"`
}

type StatsConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds"`
}

func loadConfig(path string) (*ControllerConfig, error) {
	var config ControllerConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	if len(config.Etcd.Endpoints) == 0 {
		config.Etcd.Endpoints = []string{"localhost:2379"}
	}
	if config.Stats.IntervalSeconds <= 0 {
		config.Stats.IntervalSeconds = 60
	}
	if config.Routing.Seed == 0 {
		config.Routing.Seed = time.Now().UnixNano()
	}
	return &config, nil
}

// log init
func init() {
	logDir := "./logs"
	os.MkdirAll(logDir, 0755)

	fileLogger := &lumberjack.Logger{
		Filename:   logDir + "/l2spf.log",
		MaxSize:    100,  // MB
		MaxBackups: 7,    // Keep 7 old log files
		MaxAge:     30,   // Days
		Compress:   true, // Compress old log files
	}

	multiWriter := io.MultiWriter(os.Stdout, fileLogger)
	log.SetOutput(multiWriter)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	log.SetLevel(log.InfoLevel)

	log.Infof("Logging initialized: file=%s/l2spf.log, stdout=enabled", logDir)
}

func main() {
	cfg, err := loadConfig("l2spf_config.toml")
	if err != nil {
		log.Fatalf("loading configuration failed, err:%v", err)
		return
	}

	matrix, err := topology.NewWeightMatrix(cfg.Topology.Nodes, cfg.Topology.WeightMatrix)
	if err != nil {
		log.Fatalf("invalid weight matrix, err:%v", err)
		return
	}

	pool, err := common.NewPool(common.PoolConfig{MaxWorkers: 16})
	if err != nil {
		log.Fatalf("creating worker pool failed, err:%v", err)
		return
	}
	defer pool.Release()

	var publisher engine.StatePublisher
	if cfg.Etcd.Enabled {
		etcdConfig := etcd.DefaultConfig()
		etcdConfig.Endpoints = cfg.Etcd.Endpoints
		statePublisher, err := etcd.NewStatePublisher(etcdConfig, pool)
		if err != nil {
			log.Fatalf("connecting to etcd failed, err:%v", err)
			return
		}
		defer statePublisher.Close()
		publisher = statePublisher
		log.Infof("etcd state publishing enabled, endpoints:%v", cfg.Etcd.Endpoints)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Stats.Enabled {
		reporter := stats.NewReporter(time.Duration(cfg.Stats.IntervalSeconds) * time.Second)
		go reporter.Run(ctx)
	}

	// The southbound adapter delivers switch notifications via ctl.Submit;
	// CommandLogger stands in for its command side until one is attached.
	ctl := engine.New(engine.Config{
		Commander: switchctl.CommandLogger{},
		Matrix:    matrix,
		ECMP:      cfg.Routing.ECMP,
		Seed:      cfg.Routing.Seed,
		Publisher: publisher,
	})
	go ctl.Run(ctx)

	log.Infof("l2spf controller started, ecmp:%v, nodes:%d", cfg.Routing.ECMP, len(cfg.Topology.Nodes))
	<-signalChan
	log.Infof("received signal, shutting down")
	cancel()
	time.Sleep(1 * time.Second)
}
