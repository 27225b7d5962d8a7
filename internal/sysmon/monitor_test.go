package sysmon

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eekfonky/healthcore/internal/alert"
	"github.com/eekfonky/healthcore/internal/inspector"
	"github.com/eekfonky/healthcore/internal/scheduler"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestMonitor(cfg Config, mock *inspector.Mock) (*Monitor, *alert.Dispatcher) {
	alerts := alert.NewDispatcher(0)
	return New(cfg, mock, scheduler.New(), alerts), alerts
}

func TestCollectGathersInspectorData(t *testing.T) {
	mock := &inspector.Mock{}
	mock.Set(func(m *inspector.Mock) {
		m.Cores = 4
		m.Load = inspector.LoadInfo{Load1: 2.0, Load5: 1.5, Load15: 1.0}
		m.Procs = inspector.ProcessCensus{Total: 300, Running: 5, Sleeping: 290, Zombie: 2}
		m.Disk = inspector.DiskInfo{Total: 1000, Free: 400, Used: 600, UsedPercent: 60}
		m.Up = 48 * time.Hour
	})
	m, _ := newTestMonitor(Config{}, mock)

	snap := m.Collect()
	if snap.CPU.Cores != 4 {
		t.Fatalf("cores = %d", snap.CPU.Cores)
	}
	if snap.CPU.LoadRatio != 0.5 {
		t.Fatalf("load ratio = %.2f, want 0.5", snap.CPU.LoadRatio)
	}
	if snap.Processes.Total != 300 || snap.Processes.Zombie != 2 {
		t.Fatalf("census = %+v", snap.Processes)
	}
	if snap.Disk.Percent != 60 {
		t.Fatalf("disk percent = %.1f", snap.Disk.Percent)
	}
	if snap.Uptime != 48*time.Hour {
		t.Fatalf("uptime = %v", snap.Uptime)
	}
}

func TestCollectCPUUsageFromTimeDelta(t *testing.T) {
	clk := newFakeClock()
	mock := &inspector.Mock{}
	mock.Set(func(m *inspector.Mock) {
		m.Cores = 2
		m.CPUTime = 10 * time.Second
	})
	m, _ := newTestMonitor(Config{}, mock)
	m.SetClock(clk.Now)

	// First sample establishes the baseline; no usage yet.
	snap := m.Collect()
	if snap.CPU.UsagePercent != 0 {
		t.Fatalf("first sample usage = %.1f, want 0", snap.CPU.UsagePercent)
	}

	// 5s of CPU over 10s of wall clock is 50%.
	clk.Advance(10 * time.Second)
	mock.Set(func(m *inspector.Mock) { m.CPUTime = 15 * time.Second })
	snap = m.Collect()
	if snap.CPU.UsagePercent < 49.9 || snap.CPU.UsagePercent > 50.1 {
		t.Fatalf("usage = %.1f, want ~50", snap.CPU.UsagePercent)
	}

	// Usage is capped at 100 even if CPU time outruns the wall clock.
	clk.Advance(time.Second)
	mock.Set(func(m *inspector.Mock) { m.CPUTime = 25 * time.Second })
	snap = m.Collect()
	if snap.CPU.UsagePercent != 100 {
		t.Fatalf("usage = %.1f, want capped at 100", snap.CPU.UsagePercent)
	}
}

func TestCollectDegradesToZerosOnInspectorErrors(t *testing.T) {
	mock := &inspector.Mock{}
	mock.Set(func(m *inspector.Mock) {
		m.CoreErr = errors.New("no cpu info")
		m.CPUErr = errors.New("no proc info")
		m.LoadErr = errors.New("no load info")
		m.ProcErr = errors.New("no census")
		m.DiskErr = errors.New("no disk")
		m.UpErr = errors.New("no uptime")
	})
	m, alerts := newTestMonitor(Config{}, mock)

	snap := m.Collect()
	if m.Analyze(snap) != LevelHealthy {
		t.Fatalf("degraded sample must classify healthy")
	}
	if len(alerts.Recent()) != 0 {
		t.Fatalf("inspector failure must not alert: %+v", alerts.Recent())
	}
	if snap.CPU.Cores != 1 {
		t.Fatalf("core fallback = %d, want 1", snap.CPU.Cores)
	}
}

func TestAnalyzeThresholds(t *testing.T) {
	cases := []struct {
		name  string
		snap  Snapshot
		level Level
		typ   alert.Type
	}{
		{"cpu warning", Snapshot{CPU: CPUInfo{UsagePercent: 85}}, LevelWarning, alert.TypeCPU},
		{"cpu critical", Snapshot{CPU: CPUInfo{UsagePercent: 96}}, LevelCritical, alert.TypeCPU},
		{"load warning", Snapshot{CPU: CPUInfo{LoadRatio: 1.6}}, LevelWarning, alert.TypeLoad},
		{"load critical", Snapshot{CPU: CPUInfo{LoadRatio: 2.5}}, LevelCritical, alert.TypeLoad},
		{"process warning", Snapshot{Processes: ProcessInfo{Total: 850}}, LevelWarning, alert.TypeProcess},
		{"process critical", Snapshot{Processes: ProcessInfo{Total: 1100}}, LevelCritical, alert.TypeProcess},
		{"disk warning", Snapshot{Disk: DiskInfo{Percent: 82}}, LevelWarning, alert.TypeDisk},
		{"disk critical", Snapshot{Disk: DiskInfo{Percent: 95}}, LevelCritical, alert.TypeDisk},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, alerts := newTestMonitor(Config{}, &inspector.Mock{})
			if got := m.Analyze(tc.snap); got != tc.level {
				t.Fatalf("level = %v, want %v", got, tc.level)
			}
			recent := alerts.Recent()
			if len(recent) != 1 || recent[0].Type != tc.typ {
				t.Fatalf("alerts = %+v, want one %v alert", recent, tc.typ)
			}
		})
	}
}

func TestAnalyzeZombiesAlwaysWarn(t *testing.T) {
	m, alerts := newTestMonitor(Config{}, &inspector.Mock{})
	level := m.Analyze(Snapshot{Processes: ProcessInfo{Total: 100, Zombie: 3}})
	if level != LevelWarning {
		t.Fatalf("level = %v, want warning for zombies", level)
	}
	recent := alerts.Recent()
	if len(recent) != 1 || recent[0].Type != alert.TypeProcess {
		t.Fatalf("alerts = %+v", recent)
	}
}

func TestAnalyzeWorstLevelWins(t *testing.T) {
	m, alerts := newTestMonitor(Config{}, &inspector.Mock{})
	snap := Snapshot{
		CPU:  CPUInfo{UsagePercent: 85},
		Disk: DiskInfo{Percent: 95},
	}
	if got := m.Analyze(snap); got != LevelCritical {
		t.Fatalf("level = %v, want critical", got)
	}
	if len(alerts.Recent()) != 2 {
		t.Fatalf("expected an alert per breached group, got %d", len(alerts.Recent()))
	}
}

func TestHistoryRingBounded(t *testing.T) {
	mock := &inspector.Mock{}
	m, _ := newTestMonitor(Config{HistorySize: 3}, mock)
	for i := 0; i < 5; i++ {
		m.Collect()
	}
	if got := len(m.History()); got != 3 {
		t.Fatalf("history length = %d, want 3", got)
	}
}

func TestStartStopRegistersTimer(t *testing.T) {
	sched := scheduler.New()
	m := New(Config{}, &inspector.Mock{}, sched, alert.NewDispatcher(0))
	m.Start(time.Hour)
	if sched.Len() != 1 {
		t.Fatalf("timer not registered")
	}
	m.Stop()
	if sched.Len() != 0 {
		t.Fatalf("timer not canceled")
	}
}
