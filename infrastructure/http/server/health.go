package server

import (
	"net/http"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

type HealthReport struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	Connections   int     `json:"connections"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float32 `json:"memoryPercent"`
}

// HealthReporter samples the current process on demand.
type HealthReporter struct {
	process     *process.Process
	connections func() int
	startedAt   time.Time
}

func NewHealthReporter(connections func() int) (*HealthReporter, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &HealthReporter{process: p, connections: connections, startedAt: time.Now()}, nil
}

// Report never fails: a reading that cannot be taken is left at zero.
func (h *HealthReporter) Report() HealthReport {
	report := HealthReport{
		Status:     "ok",
		Uptime:     time.Since(h.startedAt).Truncate(time.Second).String(),
		Goroutines: goruntime.NumGoroutine(),
	}
	if h.connections != nil {
		report.Connections = h.connections()
	}
	if cpu, err := h.process.CPUPercent(); err == nil {
		report.CPUPercent = cpu
	}
	if mem, err := h.process.MemoryPercent(); err == nil {
		report.MemoryPercent = mem
	}
	return report
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, HealthReport{Status: "ok"})
		return
	}
	writeJSON(w, http.StatusOK, s.health.Report())
}
