package server

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStats is host and process memory reported by /health.
type SystemStats struct {
	TotalBytes     uint64  `json:"total_bytes,omitempty"`
	AvailableBytes uint64  `json:"available_bytes,omitempty"`
	UsedPercent    float64 `json:"used_percent,omitempty"`
	HeapBytes      uint64  `json:"heap_bytes"`
	Goroutines     int     `json:"goroutines"`
}

// systemStats reads host memory via gopsutil. Host fields stay zero where
// the platform does not report them.
func systemStats() SystemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats := SystemStats{HeapBytes: ms.HeapAlloc, Goroutines: runtime.NumGoroutine()}

	if v, err := mem.VirtualMemory(); err == nil {
		stats.TotalBytes = v.Total
		stats.AvailableBytes = v.Available
		stats.UsedPercent = v.UsedPercent
	}
	return stats
}
