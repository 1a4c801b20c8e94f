package health

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Resources is a process-level resource snapshot folded into each
// heartbeat.
type Resources struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	NumGoroutine  int     `json:"num_goroutine"`
}

// CollectResources samples CPU/memory over a short window and reads the
// current goroutine count. CPU sampling briefly blocks (100ms); callers on
// a hot path should snapshot from a ticking background goroutine instead
// of per-request.
func CollectResources() (Resources, error) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return Resources{NumGoroutine: runtime.NumGoroutine()}, err
	}
	var cpuAvg float64
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		return Resources{CPUPercent: cpuAvg, NumGoroutine: runtime.NumGoroutine()}, err
	}

	return Resources{
		CPUPercent:     cpuAvg,
		MemUsedPercent: memStat.UsedPercent,
		NumGoroutine:   runtime.NumGoroutine(),
	}, nil
}
