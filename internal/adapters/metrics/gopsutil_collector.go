package metrics

import (
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"

	"dev.rubentxu.devops-platform/server-manager/internal/ports"
)

// GopsutilCollector implementa ports.ProcessMetricsCollector sobre
// gopsutil. Mantiene un handle por PID porque el porcentaje de CPU se
// calcula como delta desde la muestra anterior del mismo handle.
type GopsutilCollector struct {
	mu    sync.Mutex
	procs map[int]*process.Process
	cores int
}

func NewGopsutilCollector() *GopsutilCollector {
	cores, err := cpu.Counts(true)
	if err != nil || cores < 1 {
		cores = 1
	}
	return &GopsutilCollector{
		procs: make(map[int]*process.Process),
		cores: cores,
	}
}

func (g *GopsutilCollector) Sample(pid int) (ports.ProcessSample, error) {
	proc, err := g.handleFor(pid)
	if err != nil {
		return ports.ProcessSample{}, err
	}

	cpuPercent, err := proc.Percent(0)
	if err != nil {
		return ports.ProcessSample{}, fmt.Errorf("error sampling cpu for pid %d: %v", pid, err)
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return ports.ProcessSample{}, fmt.Errorf("error sampling memory for pid %d: %v", pid, err)
	}

	return ports.ProcessSample{
		// Normalizado por núcleos lógicos: 100% = la máquina entera.
		CPUPercent: cpuPercent / float64(g.cores),
		MemoryMB:   float64(memInfo.RSS) / (1024 * 1024),
	}, nil
}

func (g *GopsutilCollector) Forget(pid int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.procs, pid)
}

func (g *GopsutilCollector) handleFor(pid int) (*process.Process, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if proc, ok := g.procs[pid]; ok {
		return proc, nil
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("error attaching to pid %d: %v", pid, err)
	}
	g.procs[pid] = proc
	return proc, nil
}
