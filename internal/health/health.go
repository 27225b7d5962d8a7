package health

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eekfonky/healthcore/internal/alert"
	"github.com/eekfonky/healthcore/internal/breaker"
	"github.com/eekfonky/healthcore/internal/memmon"
	"github.com/eekfonky/healthcore/internal/metrics"
	"github.com/eekfonky/healthcore/internal/procman"
	"github.com/eekfonky/healthcore/internal/scheduler"
	"github.com/eekfonky/healthcore/internal/sysmon"
)

// Overall is the composed health level across components.
type Overall string

const (
	Healthy   Overall = "healthy"
	Warning   Overall = "warning"
	Critical  Overall = "critical"
	Emergency Overall = "emergency"
)

func rank(o Overall) int {
	switch o {
	case Emergency:
		return 3
	case Critical:
		return 2
	case Warning:
		return 1
	default:
		return 0
	}
}

func worst(a, b Overall) Overall {
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

// Status is the composed report returned by the aggregator. It is built
// fresh on every call, never mutated in place.
type Status struct {
	Overall         Overall            `json:"overall"`
	Components      map[string]string  `json:"components"`
	Metrics         map[string]float64 `json:"metrics"`
	Recommendations []string           `json:"recommendations"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// Config tunes the aggregator.
type Config struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// EmergencyGuard is how long a triggered emergency response suppresses
	// re-entrant triggers.
	EmergencyGuard time.Duration `mapstructure:"emergency_guard"`
	// RestartMemoryPercent is the recommendation threshold for suggesting a
	// process restart.
	RestartMemoryPercent float64 `mapstructure:"restart_memory_percent"`
	// ReviewChildCount is the recommendation threshold for reviewing
	// background operations.
	ReviewChildCount int `mapstructure:"review_child_count"`
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.EmergencyGuard <= 0 {
		c.EmergencyGuard = 30 * time.Second
	}
	if c.RestartMemoryPercent <= 0 {
		c.RestartMemoryPercent = 85
	}
	if c.ReviewChildCount <= 0 {
		c.ReviewChildCount = 10
	}
	return c
}

// Aggregator composes the monitors, the process manager, and the breaker
// registry into one status surface and runs the guarded emergency protocol.
type Aggregator struct {
	cfg      Config
	mem      *memmon.Monitor
	sys      *sysmon.Monitor
	procs    *procman.Manager
	breakers *breaker.Registry
	sched    *scheduler.Registry
	alerts   *alert.Dispatcher
	now      func() time.Time

	mu           sync.Mutex
	lastEmerg    time.Time
	initialized  bool
	shuttingDown bool
}

func NewAggregator(cfg Config, mem *memmon.Monitor, sys *sysmon.Monitor, procs *procman.Manager,
	breakers *breaker.Registry, sched *scheduler.Registry, alerts *alert.Dispatcher) *Aggregator {
	return &Aggregator{
		cfg:      cfg.withDefaults(),
		mem:      mem,
		sys:      sys,
		procs:    procs,
		breakers: breakers,
		sched:    sched,
		alerts:   alerts,
		now:      time.Now,
	}
}

// SetClock injects a time source for tests.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

// Initialize starts monitors and wires the cross-component emergency hook:
// a memory emergency makes the process manager release its children.
func (a *Aggregator) Initialize() {
	a.mu.Lock()
	if a.initialized {
		a.mu.Unlock()
		return
	}
	a.initialized = true
	a.mu.Unlock()

	a.mem.OnEmergency(func(reason string) {
		n := a.procs.KillAll("SIGTERM")
		if n > 0 {
			slog.Warn("memory emergency released child processes", "count", n, "reason", reason)
		}
	})
	a.mem.Start(0)
	a.sys.Start(0)
	a.procs.StartSweeper()
	a.sched.ScheduleRepeating("health.poll", a.cfg.PollInterval, func() {
		metrics.SetBreakersOpen(a.breakers.OpenCount())
	})
	slog.Info("health aggregator initialized")
}

// Shutdown stops all periodic work and drains tracked child processes
// within the manager's shutdown budget.
func (a *Aggregator) Shutdown() {
	a.mu.Lock()
	if a.shuttingDown {
		a.mu.Unlock()
		return
	}
	a.shuttingDown = true
	a.mu.Unlock()

	a.mem.Stop()
	a.sys.Stop()
	a.procs.GracefulShutdown(0)
	a.sched.CancelAll()
	slog.Info("health aggregator shut down")
}

// Status polls every subsystem and composes the overall report. Always
// best-effort: a subsystem with no sample yet contributes healthy/zeros.
func (a *Aggregator) Status() Status {
	memSt := a.mem.Status()
	sysSt := a.sys.Status()
	children := a.procs.Running()
	open := a.breakers.OpenCount()

	components := map[string]string{
		"memory":    string(memSt.Level),
		"system":    string(sysSt.Level),
		"processes": Healthy.String(),
		"breakers":  Healthy.String(),
	}

	overall := worst(toOverall(string(memSt.Level)), toOverall(string(sysSt.Level)))
	if open > 0 {
		components["breakers"] = string(Warning)
		overall = worst(overall, Warning)
	}
	if len(children) > a.cfg.ReviewChildCount {
		components["processes"] = string(Warning)
		overall = worst(overall, Warning)
	}

	vals := map[string]float64{
		"children_active": float64(len(children)),
		"breakers_open":   float64(open),
	}
	if memSt.Last != nil {
		vals["memory_system_percent"] = memSt.Last.System.Percent
		vals["memory_heap_percent"] = memSt.Last.Heap.Percent
	}
	if memSt.Leak.Suspected {
		vals["leak_rate_mb_min"] = memSt.Leak.RateMBMin
	}
	if sysSt.Last != nil {
		vals["cpu_percent"] = sysSt.Last.CPU.UsagePercent
		vals["load_ratio"] = sysSt.Last.CPU.LoadRatio
		vals["disk_percent"] = sysSt.Last.Disk.Percent
		vals["process_total"] = float64(sysSt.Last.Processes.Total)
	}

	return Status{
		Overall:         overall,
		Components:      components,
		Metrics:         vals,
		Recommendations: a.recommend(memSt, sysSt, len(children), open),
		GeneratedAt:     a.now(),
	}
}

func (o Overall) String() string { return string(o) }

func toOverall(level string) Overall {
	switch level {
	case "emergency":
		return Emergency
	case "critical":
		return Critical
	case "warning":
		return Warning
	default:
		return Healthy
	}
}

func (a *Aggregator) recommend(memSt memmon.Status, sysSt sysmon.Status, children, openBreakers int) []string {
	var recs []string
	if memSt.Last != nil && memSt.Last.System.Percent > a.cfg.RestartMemoryPercent {
		recs = append(recs, fmt.Sprintf("system memory above %.0f%%: consider restarting the service", a.cfg.RestartMemoryPercent))
	}
	if memSt.Leak.Suspected {
		recs = append(recs, fmt.Sprintf("suspected memory leak (%.1f MB/min): capture a heap profile", memSt.Leak.RateMBMin))
	}
	if children > a.cfg.ReviewChildCount {
		recs = append(recs, fmt.Sprintf("%d child processes active: review background operations", children))
	}
	if openBreakers > 0 {
		recs = append(recs, fmt.Sprintf("%d circuit breaker(s) open: check dependency health", openBreakers))
	}
	if sysSt.Last != nil && sysSt.Last.Disk.Percent > 80 {
		recs = append(recs, "disk usage above 80%: remove stale temporary files and rotate logs")
	}
	return recs
}

// TriggerEmergencyResponse runs the guarded cross-component cleanup. A
// second trigger within EmergencyGuard of a prior one is a no-op. Each
// step's failure is recorded and reported; no failure aborts the rest.
func (a *Aggregator) TriggerEmergencyResponse(reason string) (bool, []error) {
	a.mu.Lock()
	now := a.now()
	if !a.lastEmerg.IsZero() && now.Sub(a.lastEmerg) < a.cfg.EmergencyGuard {
		a.mu.Unlock()
		slog.Warn("emergency response suppressed: guard active", "reason", reason)
		return false, nil
	}
	a.lastEmerg = now
	a.mu.Unlock()

	slog.Error("emergency response triggered", "reason", reason)
	metrics.IncEmergencyResponse()
	var errs []error

	step := func(name string, fn func()) {
		defer func() {
			if rec := recover(); rec != nil {
				errs = append(errs, fmt.Errorf("emergency step %s panicked: %v", name, rec))
			}
		}()
		fn()
	}

	step("memory-cleanup", func() { a.mem.EmergencyCleanup(reason) })
	step("kill-children", func() {
		n := a.procs.KillAll("SIGKILL")
		slog.Warn("emergency response killed child processes", "count", n)
	})
	step("cancel-timers", func() { a.sched.CancelAll() })
	step("final-gc", func() { a.mem.ForceGC() })

	if a.alerts != nil {
		a.alerts.Emit(alert.Alert{
			Level:   alert.LevelEmergency,
			Type:    alert.TypeMemory,
			Message: "emergency response executed: " + reason,
		})
	}
	for _, err := range errs {
		slog.Error("emergency response step failed", "error", err)
	}
	return true, errs
}
