package inspector

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Gopsutil is the default Inspector backed by shirou/gopsutil. One instance
// holds a process handle for the current pid so repeated probes are cheap.
type Gopsutil struct {
	self *process.Process
}

func NewGopsutil() (*Gopsutil, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Gopsutil{self: p}, nil
}

func (g *Gopsutil) Memory() (MemoryInfo, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemoryInfo{}, err
	}
	info := MemoryInfo{
		SystemTotal: vm.Total,
		SystemFree:  vm.Available,
		SystemUsed:  vm.Used,
	}
	if mi, err := g.self.MemoryInfo(); err == nil {
		info.ProcessRSS = mi.RSS
	}
	return info, nil
}

func (g *Gopsutil) CPUCount() (int, error) {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return 0, err
	}
	return n, nil
}

func (g *Gopsutil) ProcessCPUTime() (time.Duration, error) {
	t, err := g.self.Times()
	if err != nil {
		return 0, err
	}
	return time.Duration((t.User + t.System) * float64(time.Second)), nil
}

func (g *Gopsutil) LoadAverage() (LoadInfo, error) {
	avg, err := load.Avg()
	if err != nil {
		return LoadInfo{}, err
	}
	return LoadInfo{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
}

func (g *Gopsutil) Census() (ProcessCensus, error) {
	procs, err := process.Processes()
	if err != nil {
		return ProcessCensus{}, err
	}
	var c ProcessCensus
	c.Total = len(procs)
	for _, p := range procs {
		sts, err := p.Status()
		if err != nil || len(sts) == 0 {
			continue
		}
		switch sts[0] {
		case process.Running:
			c.Running++
		case process.Sleep, process.Idle:
			c.Sleeping++
		case process.Zombie:
			c.Zombie++
		}
	}
	return c, nil
}

func (g *Gopsutil) DiskUsage(path string) (DiskInfo, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return DiskInfo{}, err
	}
	return DiskInfo{
		Total:       u.Total,
		Free:        u.Free,
		Used:        u.Used,
		UsedPercent: u.UsedPercent,
	}, nil
}

func (g *Gopsutil) Uptime() (time.Duration, error) {
	secs, err := host.Uptime()
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}
