package inspector

import "time"

// MemoryInfo describes system-wide and process memory at a point in time.
type MemoryInfo struct {
	SystemTotal uint64
	SystemFree  uint64
	SystemUsed  uint64
	ProcessRSS  uint64
}

// LoadInfo carries the 1/5/15-minute load averages.
type LoadInfo struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// ProcessCensus counts processes by state across the machine.
type ProcessCensus struct {
	Total    int
	Running  int
	Sleeping int
	Zombie   int
}

// DiskInfo describes usage of a single filesystem path.
type DiskInfo struct {
	Total       uint64
	Free        uint64
	Used        uint64
	UsedPercent float64
}

// Inspector abstracts OS-level introspection so monitors stay
// platform-agnostic and testable against a mock. Implementations return an
// error when a probe is unavailable; callers degrade that metric group to
// zeros and log at debug level.
type Inspector interface {
	Memory() (MemoryInfo, error)
	CPUCount() (int, error)
	// ProcessCPUTime returns the cumulative CPU time consumed by this
	// process (user+system).
	ProcessCPUTime() (time.Duration, error)
	LoadAverage() (LoadInfo, error)
	Census() (ProcessCensus, error)
	DiskUsage(path string) (DiskInfo, error)
	Uptime() (time.Duration, error)
}
