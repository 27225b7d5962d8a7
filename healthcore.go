package healthcore

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eekfonky/healthcore/internal/alert"
	"github.com/eekfonky/healthcore/internal/breaker"
	cfg "github.com/eekfonky/healthcore/internal/config"
	"github.com/eekfonky/healthcore/internal/health"
	"github.com/eekfonky/healthcore/internal/history"
	"github.com/eekfonky/healthcore/internal/inspector"
	"github.com/eekfonky/healthcore/internal/memmon"
	"github.com/eekfonky/healthcore/internal/metrics"
	"github.com/eekfonky/healthcore/internal/procman"
	"github.com/eekfonky/healthcore/internal/scheduler"
	"github.com/eekfonky/healthcore/internal/server"
	"github.com/eekfonky/healthcore/internal/sysmon"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Alert = alert.Alert

type HealthStatus = health.Status

type ProcessRecord = procman.Record

type ExecOptions = procman.Options

type BreakerState = breaker.State

type FileConfig = cfg.FileConfig

// Core wires the monitors, the process manager, the breaker registry, and
// the aggregator into one embeddable unit.
type Core struct {
	sched    *scheduler.Registry
	alerts   *alert.Dispatcher
	mem      *memmon.Monitor
	sys      *sysmon.Monitor
	procs    *procman.Manager
	breakers *breaker.Registry
	agg      *health.Aggregator
	sink     history.CloserSink
}

// New assembles a Core from a file configuration. Zero-valued sections fall
// back to built-in defaults, so New(FileConfig{}) is a working system.
func New(fc FileConfig) (*Core, error) {
	sched := scheduler.New()
	alerts := alert.NewDispatcher(0)
	insp, err := inspector.NewGopsutil()
	if err != nil {
		return nil, err
	}

	mem := memmon.New(fc.Memory, insp, sched, alerts)
	sys := sysmon.New(fc.System, insp, sched, alerts)
	procs := procman.NewManager(fc.Process, sched)

	breakers := breaker.NewRegistry(breaker.Config{})
	breakers.OnStateChange(func(name string, from, to breaker.State) {
		metrics.RecordBreakerTransition(name, from.String(), to.String())
		if to == breaker.Open {
			alerts.Emit(alert.Alert{
				Level:   alert.LevelWarning,
				Type:    alert.TypeBreaker,
				Message: "circuit breaker opened for dependency " + name,
				Labels:  map[string]string{"dependency": name},
			})
		}
	})
	for name, e := range fc.Breaker {
		breakers.SetConfig(name, breaker.Config{
			FailureThreshold: e.FailureThreshold,
			Cooldown:         e.Cooldown,
			HalfOpenTrials:   e.HalfOpenTrials,
		})
	}

	agg := health.NewAggregator(fc.Health, mem, sys, procs, breakers, sched, alerts)

	c := &Core{
		sched:    sched,
		alerts:   alerts,
		mem:      mem,
		sys:      sys,
		procs:    procs,
		breakers: breakers,
		agg:      agg,
	}
	if fc.History.DSN != "" {
		sink, err := history.NewSinkFromDSN(fc.History.DSN)
		if err != nil {
			return nil, err
		}
		c.sink = sink
		alerts.Subscribe(history.Listener(sink))
	}
	return c, nil
}

// LoadConfig reads the TOML configuration at path; empty path yields
// defaults.
func LoadConfig(path string) (FileConfig, error) { return cfg.Load(path) }

// Start begins monitoring and background sweeps.
func (c *Core) Start() { c.agg.Initialize() }

// Stop shuts down monitors, drains children, and closes the alert sink.
func (c *Core) Stop() {
	c.agg.Shutdown()
	if c.sink != nil {
		_ = c.sink.Close()
	}
}

// Status returns the composed health report.
func (c *Core) Status() HealthStatus { return c.agg.Status() }

// Execute runs a command under the security gate, capacity, timeout, and
// output limits.
func (c *Core) Execute(ctx context.Context, command string, args []string, opts ExecOptions) (ProcessRecord, error) {
	return c.procs.Execute(ctx, command, args, opts)
}

// KillAll signals every tracked child and returns how many were signaled.
func (c *Core) KillAll(signal string) int { return c.procs.KillAll(signal) }

// Processes lists tracked children, oldest first.
func (c *Core) Processes() []ProcessRecord { return c.procs.Running() }

// Guard runs fn through the named dependency's circuit breaker.
func (c *Core) Guard(name string, fn func() error) error {
	return c.breakers.Do(name, fn)
}

// ForceCleanup sweeps temp files and zombies, then forces a GC pass.
func (c *Core) ForceCleanup() int {
	removed := c.sys.ForceCleanup()
	c.mem.ForceGC()
	return removed
}

// TriggerEmergency runs the guarded emergency protocol.
func (c *Core) TriggerEmergency(reason string) (bool, []error) {
	return c.agg.TriggerEmergencyResponse(reason)
}

// RecentAlerts returns the bounded in-memory alert ring, oldest first.
func (c *Core) RecentAlerts() []Alert { return c.alerts.Recent() }

// NewAPIServer starts the operator API on addr.
func (c *Core) NewAPIServer(addr, basePath string) *http.Server {
	r := server.NewRouter(c.agg, c.mem, c.sys, c.procs, c.alerts, basePath)
	return server.NewServer(addr, r)
}

// NewOpsServer builds the metrics listener; call Start on the result.
func (c *Core) NewOpsServer() *server.OpsServer {
	return server.NewOpsServer(c.agg)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ShutdownHTTP drains an operator API server started with NewAPIServer.
func ShutdownHTTP(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
