package stats

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

// Reporter periodically logs controller-host health so an operator can spot a
// controller drowning in packet-in load.
type Reporter struct {
	Interval time.Duration
}

func NewReporter(interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reporter{Interval: interval}
}

// Run reports on every tick until the context is canceled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	usage, err := cpu.Percent(0, false)
	if err != nil || len(usage) == 0 {
		log.Warnf("report: failed to read cpu usage: %v", err)
		return
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warnf("report: failed to read memory usage: %v", err)
		return
	}

	avg, err := load.Avg()
	if err != nil {
		log.Warnf("report: failed to read load average: %v", err)
		return
	}

	log.Infof("health: cpu=%.1f%% mem=%.1f%% load1=%.2f load5=%.2f",
		usage[0], vm.UsedPercent, avg.Load1, avg.Load5)
}
