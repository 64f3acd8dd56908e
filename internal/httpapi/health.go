package httpapi

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthReport is the /health response body: a point-in-time snapshot of
// process resource usage surfaced via gopsutil.
type HealthReport struct {
	Status      string  `json:"status"`
	Timestamp   int64   `json:"timestamp"`
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	CPUPercent  float64 `json:"cpu_percent,omitempty"`
	MemUsedMB   float64 `json:"mem_used_mb,omitempty"`
	MemTotalMB  float64 `json:"mem_total_mb,omitempty"`
	MemUsedPct  float64 `json:"mem_used_percent,omitempty"`
}

// ReportHealth snapshots process/host resource usage for the /health
// endpoint. CPU/memory reads are best-effort: a gopsutil failure (common
// inside minimal containers) degrades to the Go runtime stats only,
// rather than failing the health check.
func ReportHealth() HealthReport {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	report := HealthReport{
		Status:      "healthy",
		Timestamp:   time.Now().Unix(),
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(m.HeapAlloc) / (1024 * 1024),
	}

	if times, err := cpu.Percent(0, false); err == nil && len(times) > 0 {
		report.CPUPercent = times[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		report.MemUsedMB = float64(vm.Used) / (1024 * 1024)
		report.MemTotalMB = float64(vm.Total) / (1024 * 1024)
		report.MemUsedPct = vm.UsedPercent
	}

	return report
}
