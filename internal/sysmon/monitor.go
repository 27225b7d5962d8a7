package sysmon

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eekfonky/healthcore/internal/alert"
	"github.com/eekfonky/healthcore/internal/inspector"
	"github.com/eekfonky/healthcore/internal/metrics"
	"github.com/eekfonky/healthcore/internal/scheduler"
)

const timerName = "sysmon.collect"

// Monitor samples CPU, load, the machine process census, and disk usage on a
// schedule and raises threshold alerts. Inspector failures degrade the
// affected metric group to zeros with a debug log; they never alert.
type Monitor struct {
	cfg    Config
	insp   inspector.Inspector
	sched  *scheduler.Registry
	alerts *alert.Dispatcher
	now    func() time.Time

	mu          sync.Mutex
	history     []Snapshot
	level       Level
	lastCPUTime time.Duration
	lastSample  time.Time
	running     bool
}

func New(cfg Config, insp inspector.Inspector, sched *scheduler.Registry, alerts *alert.Dispatcher) *Monitor {
	return &Monitor{
		cfg:    cfg.withDefaults(),
		insp:   insp,
		sched:  sched,
		alerts: alerts,
		now:    time.Now,
		level:  LevelHealthy,
	}
}

// SetClock injects a time source for tests.
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Start registers the repeating collection cycle.
func (m *Monitor) Start(interval time.Duration) {
	if interval <= 0 {
		interval = m.cfg.Interval
	}
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	m.sched.ScheduleRepeating(timerName, interval, m.cycle)
}

// Stop cancels the collection timer.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	m.sched.Cancel(timerName)
}

func (m *Monitor) cycle() {
	snap := m.Collect()
	level := m.Analyze(snap)
	m.mu.Lock()
	m.level = level
	m.mu.Unlock()
}

// Collect samples the system and appends an immutable snapshot to the
// bounded history.
func (m *Monitor) Collect() Snapshot {
	m.mu.Lock()
	now := m.now()
	prevCPU := m.lastCPUTime
	prevAt := m.lastSample
	m.mu.Unlock()

	snap := Snapshot{Timestamp: now}

	cores, err := m.insp.CPUCount()
	if err != nil || cores <= 0 {
		slog.Debug("cpu count unavailable", "error", err)
		cores = 1
	}
	snap.CPU.Cores = cores

	// CPU usage approximated from cumulative process CPU time delta over
	// wall-clock delta, capped at 100.
	cpuTime, err := m.insp.ProcessCPUTime()
	if err != nil {
		slog.Debug("process cpu time unavailable", "error", err)
	} else {
		if !prevAt.IsZero() && now.After(prevAt) && cpuTime > prevCPU {
			wall := now.Sub(prevAt)
			usage := float64(cpuTime-prevCPU) / float64(wall) * 100
			if usage > 100 {
				usage = 100
			}
			snap.CPU.UsagePercent = usage
		}
		m.mu.Lock()
		m.lastCPUTime = cpuTime
		m.lastSample = now
		m.mu.Unlock()
	}

	if la, err := m.insp.LoadAverage(); err != nil {
		slog.Debug("load average unavailable", "error", err)
	} else {
		snap.CPU.Load1 = la.Load1
		snap.CPU.Load5 = la.Load5
		snap.CPU.Load15 = la.Load15
		snap.CPU.LoadRatio = la.Load1 / float64(cores)
	}

	if census, err := m.insp.Census(); err != nil {
		slog.Debug("process census unavailable", "error", err)
	} else {
		snap.Processes = ProcessInfo{
			Total:    census.Total,
			Running:  census.Running,
			Sleeping: census.Sleeping,
			Zombie:   census.Zombie,
		}
	}

	if du, err := m.insp.DiskUsage(m.cfg.DiskPath); err != nil {
		slog.Debug("disk usage unavailable", "path", m.cfg.DiskPath, "error", err)
	} else {
		snap.Disk = DiskInfo{Used: du.Used, Free: du.Free, Total: du.Total, Percent: du.UsedPercent}
	}

	if up, err := m.insp.Uptime(); err != nil {
		slog.Debug("uptime unavailable", "error", err)
	} else {
		snap.Uptime = up
	}

	m.append(snap)
	metrics.SetSystem(snap.CPU.UsagePercent, snap.CPU.LoadRatio, snap.Disk.Percent)
	metrics.SetProcessCensus(snap.Processes.Total, snap.Processes.Running, snap.Processes.Sleeping, snap.Processes.Zombie)
	return snap
}

func (m *Monitor) append(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) >= m.cfg.HistorySize {
		copy(m.history, m.history[1:])
		m.history[len(m.history)-1] = snap
	} else {
		m.history = append(m.history, snap)
	}
}

// Analyze classifies the snapshot against the configured thresholds and
// emits an alert per breached group. Returns the worst level found.
func (m *Monitor) Analyze(snap Snapshot) Level {
	level := LevelHealthy

	check := func(v, warn, crit float64, typ alert.Type, msg string, actions ...string) {
		var l Level
		var threshold float64
		switch {
		case v >= crit:
			l, threshold = LevelCritical, crit
		case v >= warn:
			l, threshold = LevelWarning, warn
		default:
			return
		}
		level = worse(level, l)
		m.emit(alert.Alert{
			Level:     toAlertLevel(l),
			Type:      typ,
			Message:   fmt.Sprintf("%s: %.1f (threshold %.1f)", msg, v, threshold),
			Value:     v,
			Threshold: threshold,
			Suggested: actions,
		})
	}

	check(snap.CPU.UsagePercent, m.cfg.CPUWarning, m.cfg.CPUCritical,
		alert.TypeCPU, "cpu usage high", "profile hot paths", "defer background work")
	check(snap.CPU.LoadRatio, m.cfg.LoadRatioWarning, m.cfg.LoadRatioCritical,
		alert.TypeLoad, "load average high relative to cores", "reduce concurrency")
	check(float64(snap.Processes.Total), float64(m.cfg.ProcessWarning), float64(m.cfg.ProcessCritical),
		alert.TypeProcess, "process count high", "review background operations")
	check(snap.Disk.Percent, m.cfg.DiskWarning, m.cfg.DiskCritical,
		alert.TypeDisk, "disk usage high", "remove stale temporary files", "rotate logs")

	// Zombies warn regardless of the other thresholds.
	if snap.Processes.Zombie > 0 {
		level = worse(level, LevelWarning)
		m.emit(alert.Alert{
			Level:     alert.LevelWarning,
			Type:      alert.TypeProcess,
			Message:   fmt.Sprintf("%d zombie processes detected", snap.Processes.Zombie),
			Value:     float64(snap.Processes.Zombie),
			Suggested: []string{"run forced cleanup to reap zombies"},
		})
	}
	return level
}

func toAlertLevel(l Level) alert.Level {
	if l == LevelCritical {
		return alert.LevelCritical
	}
	return alert.LevelWarning
}

func (m *Monitor) emit(a alert.Alert) {
	metrics.IncAlert(string(a.Level), string(a.Type))
	if m.alerts != nil {
		m.alerts.Emit(a)
	}
}

// History returns a copy of the retained snapshots, oldest first.
func (m *Monitor) History() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, len(m.history))
	copy(out, m.history)
	return out
}

// Status reports the latest classification.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{Level: m.level}
	if n := len(m.history); n > 0 {
		last := m.history[n-1]
		st.Last = &last
	}
	return st
}
