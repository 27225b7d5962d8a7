package memmon

import (
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/eekfonky/healthcore/internal/alert"
	"github.com/eekfonky/healthcore/internal/inspector"
	"github.com/eekfonky/healthcore/internal/metrics"
	"github.com/eekfonky/healthcore/internal/scheduler"
)

const timerName = "memmon.collect"

// GCFunc triggers a garbage collection pass. The hook is optional; a nil
// hook disables manual GC actions without affecting sampling.
type GCFunc func()

// DefaultGC runs a collection and returns freed pages to the OS.
func DefaultGC() {
	runtime.GC()
	debug.FreeOSMemory()
}

// Monitor samples heap and system memory on a schedule, classifies pressure,
// detects leak trends, and governs a rate-limited manual GC policy.
type Monitor struct {
	cfg    Config
	insp   inspector.Inspector
	sched  *scheduler.Registry
	alerts *alert.Dispatcher
	now    func() time.Time

	mu          sync.Mutex
	history     []Snapshot
	level       Level
	leak        LeakReport
	gcHook      GCFunc
	gcMissing   bool // logged once when the hook is absent
	lastWarnGC  time.Time
	lastCritGC  time.Time
	gcWindow    []time.Time // manual GC timestamps within the last hour
	manualGCs   int
	lastEmerg   time.Time
	emergencies int
	onEmergency []func(reason string)
	running     bool
}

// New builds a monitor. The GC hook defaults to DefaultGC; pass
// SetGCHook(nil) to model a runtime without one.
func New(cfg Config, insp inspector.Inspector, sched *scheduler.Registry, alerts *alert.Dispatcher) *Monitor {
	return &Monitor{
		cfg:    cfg.withDefaults(),
		insp:   insp,
		sched:  sched,
		alerts: alerts,
		now:    time.Now,
		gcHook: DefaultGC,
		level:  LevelHealthy,
	}
}

// SetGCHook replaces the manual GC trigger. A nil hook is the
// feature-unavailable case: logged once at debug, sampling continues.
func (m *Monitor) SetGCHook(fn GCFunc) {
	m.mu.Lock()
	m.gcHook = fn
	m.mu.Unlock()
}

// SetClock injects a time source for tests.
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// OnEmergency registers a callback invoked when emergency cleanup runs, so
// dependent components can release their own resources.
func (m *Monitor) OnEmergency(fn func(reason string)) {
	m.mu.Lock()
	m.onEmergency = append(m.onEmergency, fn)
	m.mu.Unlock()
}

// Start registers the repeating collection cycle. Interval <= 0 uses the
// configured default.
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

// cycle is one scheduled pass: sample, classify, react.
func (m *Monitor) cycle() {
	snap := m.Collect()
	level := m.classify(snap)
	leak := m.DetectLeak()

	m.mu.Lock()
	m.level = level
	m.leak = leak
	m.mu.Unlock()

	metrics.SetMemory(snap.System.Percent, snap.Heap.Percent, snap.RSS)
	metrics.SetLeakSuspected(leak.Suspected)

	if leak.Suspected {
		m.emit(alert.Alert{
			Level:     alert.LevelWarning,
			Type:      alert.TypeLeak,
			Message:   fmt.Sprintf("heap growing at %.1f MB/min over %d samples", leak.RateMBMin, leak.Samples),
			Value:     leak.RateMBMin,
			Threshold: m.cfg.LeakSuspectRate,
			Suggested: []string{"inspect recent allocations", "capture a heap profile"},
		})
	}

	switch level {
	case LevelWarning:
		m.emit(memAlert(alert.LevelWarning, snap, m.cfg.SystemWarning))
		m.gcAtWarning()
	case LevelCritical:
		m.emit(memAlert(alert.LevelCritical, snap, m.cfg.SystemCritical))
		m.gcAtCritical()
	case LevelEmergency:
		m.emit(memAlert(alert.LevelEmergency, snap, m.cfg.SystemEmergency))
		m.EmergencyCleanup("memory pressure at emergency level")
	}
}

func memAlert(level alert.Level, snap Snapshot, threshold float64) alert.Alert {
	return alert.Alert{
		Level:     level,
		Type:      alert.TypeMemory,
		Message:   fmt.Sprintf("memory pressure %s: system %.1f%%, heap %.1f%%", level, snap.System.Percent, snap.Heap.Percent),
		Value:     snap.System.Percent,
		Threshold: threshold,
		Suggested: []string{"force garbage collection", "review memory-heavy operations"},
	}
}

func (m *Monitor) emit(a alert.Alert) {
	metrics.IncAlert(string(a.Level), string(a.Type))
	if m.alerts != nil {
		m.alerts.Emit(a)
	}
}

// Collect samples memory and appends an immutable snapshot to the bounded
// history. Inspector failure degrades system metrics to zero with a debug
// log; heap metrics always come from the runtime.
func (m *Monitor) Collect() Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.mu.Lock()
	now := m.now()
	m.mu.Unlock()

	snap := Snapshot{
		Timestamp: now,
		Heap: HeapMemory{
			Used:  ms.HeapAlloc,
			Total: ms.HeapSys,
		},
		GC: GCStats{
			Runs:      ms.NumGC,
			Reclaimed: ms.TotalAlloc - ms.HeapAlloc,
		},
	}
	if ms.HeapSys > 0 {
		snap.Heap.Percent = float64(ms.HeapAlloc) / float64(ms.HeapSys) * 100
	}
	if ms.LastGC > 0 {
		snap.GC.LastRun = time.Unix(0, int64(ms.LastGC))
	}

	if mi, err := m.insp.Memory(); err != nil {
		slog.Debug("memory inspection unavailable", "error", err)
	} else {
		snap.System = SystemMemory{Used: mi.SystemUsed, Free: mi.SystemFree, Total: mi.SystemTotal}
		if mi.SystemTotal > 0 {
			snap.System.Percent = float64(mi.SystemUsed) / float64(mi.SystemTotal) * 100
		}
		snap.RSS = mi.ProcessRSS
	}

	m.append(snap)
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

func (m *Monitor) classify(snap Snapshot) Level {
	sys := classifyPct(snap.System.Percent, m.cfg.SystemWarning, m.cfg.SystemCritical, m.cfg.SystemEmergency)
	heap := classifyPct(snap.Heap.Percent, m.cfg.HeapWarning, m.cfg.HeapCritical, m.cfg.HeapEmergency)
	return worse(sys, heap)
}

func classifyPct(v, warn, crit, emerg float64) Level {
	switch {
	case v >= emerg:
		return LevelEmergency
	case v >= crit:
		return LevelCritical
	case v >= warn:
		return LevelWarning
	default:
		return LevelHealthy
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

// Status reports the latest classification and leak analysis.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		Level:       m.level,
		Leak:        m.leak,
		ManualGCs:   m.manualGCs,
		Emergencies: m.emergencies,
	}
	if n := len(m.history); n > 0 {
		last := m.history[n-1]
		st.Last = &last
	}
	return st
}

// AddSnapshotForTesting appends a synthetic snapshot, bypassing collection.
func (m *Monitor) AddSnapshotForTesting(snap Snapshot) {
	m.append(snap)
}
