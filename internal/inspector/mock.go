package inspector

import (
	"sync"
	"time"
)

// Mock is a scriptable Inspector for tests. Zero value returns zeroed metrics
// with nil errors; set fields or errors to shape a scenario.
type Mock struct {
	mu sync.Mutex

	Mem     MemoryInfo
	MemErr  error
	Cores   int
	CoreErr error
	CPUTime time.Duration
	CPUErr  error
	Load    LoadInfo
	LoadErr error
	Procs   ProcessCensus
	ProcErr error
	Disk    DiskInfo
	DiskErr error
	Up      time.Duration
	UpErr   error
}

func (m *Mock) Memory() (MemoryInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Mem, m.MemErr
}

func (m *Mock) CPUCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Cores, m.CoreErr
}

func (m *Mock) ProcessCPUTime() (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CPUTime, m.CPUErr
}

func (m *Mock) LoadAverage() (LoadInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Load, m.LoadErr
}

func (m *Mock) Census() (ProcessCensus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Procs, m.ProcErr
}

func (m *Mock) DiskUsage(string) (DiskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Disk, m.DiskErr
}

func (m *Mock) Uptime() (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Up, m.UpErr
}

// Set mutates the mock under its lock, for scripting mid-test changes.
func (m *Mock) Set(fn func(*Mock)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}
