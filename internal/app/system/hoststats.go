package system

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a snapshot shown on the admin dashboard. Zero fields mean the
// platform did not report them.
type HostStats struct {
	Hostname      string
	Uptime        time.Duration
	MemoryTotal   uint64
	MemoryUsed    uint64
	MemoryPercent float64
	Load1         float64
	Load5         float64
	Load15        float64
	Goroutines    int
}

// CollectHostStats gathers what it can and ignores unsupported probes.
func CollectHostStats(ctx context.Context) HostStats {
	stats := HostStats{Goroutines: runtime.NumGoroutine()}
	if info, err := host.InfoWithContext(ctx); err == nil {
		stats.Hostname = info.Hostname
		stats.Uptime = time.Duration(info.Uptime) * time.Second
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryTotal = vm.Total
		stats.MemoryUsed = vm.Used
		stats.MemoryPercent = vm.UsedPercent
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		stats.Load1, stats.Load5, stats.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	return stats
}
