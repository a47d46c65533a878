package workers

import (
	"context"
	"interest-chat/observability"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker samples the server process and publishes the readings as gauges.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	connections    func() int
}

func NewHealthMonitoringWorker(log *slog.Logger, metricInterval time.Duration, connections func() int) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{log: log, metricInterval: metricInterval, connections: connections}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.sample(p)
		}
	}
}

func (w *HealthMonitoringWorker) sample(p *process.Process) {
	cpu, err := p.CPUPercent()
	if err != nil {
		w.log.Error("Error while finding process cpu usage", "err", err)
		return
	}
	ram, err := p.MemoryPercent()
	if err != nil {
		w.log.Error("Error while finding process ram usage", "err", err)
		return
	}
	observability.SetProcessUsage(cpu, ram, goruntime.NumGoroutine())
	w.log.Debug("Process health", "cpu", cpu, "ram", ram, "subscribers", w.connections())
}
