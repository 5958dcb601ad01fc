// Package observability collects process-level stats for the health
// endpoint.
package observability

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

type ProcessStats struct {
	Goroutines    int     `json:"goroutines"`
	RSSBytes      uint64  `json:"rss_bytes"`
	CPUPercent    float64 `json:"cpu_percent"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

var startedAt = time.Now()

// Collect gathers a best-effort snapshot; fields stay zero when the
// platform refuses a probe.
func Collect() ProcessStats {
	stats := ProcessStats{
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: time.Since(startedAt).Seconds(),
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	return stats
}
