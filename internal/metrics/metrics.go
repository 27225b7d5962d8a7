package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	memSystemPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthcore",
			Subsystem: "memory",
			Name:      "system_percent",
			Help:      "System memory usage percentage.",
		},
	)
	memHeapPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthcore",
			Subsystem: "memory",
			Name:      "heap_percent",
			Help:      "Heap usage percentage of the monitored process.",
		},
	)
	memRSSBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthcore",
			Subsystem: "memory",
			Name:      "rss_bytes",
			Help:      "Resident set size of the monitored process.",
		},
	)
	gcRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthcore",
			Subsystem: "memory",
			Name:      "gc_runs_total",
			Help:      "Manual garbage collection invocations by trigger level.",
		}, []string{"level"},
	)
	leakSuspected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthcore",
			Subsystem: "memory",
			Name:      "leak_suspected",
			Help:      "1 when the leak detector currently suspects a leak.",
		},
	)

	cpuPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthcore",
			Subsystem: "system",
			Name:      "cpu_percent",
			Help:      "Approximated CPU usage percentage.",
		},
	)
	loadRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthcore",
			Subsystem: "system",
			Name:      "load_ratio",
			Help:      "1-minute load average divided by core count.",
		},
	)
	diskPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthcore",
			Subsystem: "system",
			Name:      "disk_percent",
			Help:      "Disk usage percentage of the monitored path.",
		},
	)
	processCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "healthcore",
			Subsystem: "system",
			Name:      "process_count",
			Help:      "Machine process census by state.",
		}, []string{"state"},
	)

	childSpawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthcore",
			Subsystem: "child",
			Name:      "spawns_total",
			Help:      "Child process spawn attempts by outcome.",
		}, []string{"outcome"},
	)
	childKills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthcore",
			Subsystem: "child",
			Name:      "kills_total",
			Help:      "Child processes killed by reason.",
		}, []string{"reason"},
	)
	childActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthcore",
			Subsystem: "child",
			Name:      "active",
			Help:      "Currently tracked child processes.",
		},
	)

	alertsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthcore",
			Subsystem: "alerts",
			Name:      "emitted_total",
			Help:      "Alerts emitted by level and type.",
		}, []string{"level", "type"},
	)
	breakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthcore",
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"name", "from", "to"},
	)
	breakersOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthcore",
			Subsystem: "breaker",
			Name:      "open",
			Help:      "Circuit breakers currently not closed.",
		},
	)
	emergencyResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "healthcore",
			Subsystem: "health",
			Name:      "emergency_responses_total",
			Help:      "Executed emergency response sequences.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		memSystemPercent, memHeapPercent, memRSSBytes, gcRuns, leakSuspected,
		cpuPercent, loadRatio, diskPercent, processCount,
		childSpawns, childKills, childActive,
		alertsEmitted, breakerTransitions, breakersOpen, emergencyResponses,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the
// DefaultGatherer. The caller is responsible for wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func SetMemory(systemPct, heapPct float64, rss uint64) {
	if regOK.Load() {
		memSystemPercent.Set(systemPct)
		memHeapPercent.Set(heapPct)
		memRSSBytes.Set(float64(rss))
	}
}

func IncGCRun(level string) {
	if regOK.Load() {
		gcRuns.WithLabelValues(level).Inc()
	}
}

func SetLeakSuspected(v bool) {
	if regOK.Load() {
		if v {
			leakSuspected.Set(1)
		} else {
			leakSuspected.Set(0)
		}
	}
}

func SetSystem(cpuPct, ratio, diskPct float64) {
	if regOK.Load() {
		cpuPercent.Set(cpuPct)
		loadRatio.Set(ratio)
		diskPercent.Set(diskPct)
	}
}

func SetProcessCensus(total, running, sleeping, zombie int) {
	if regOK.Load() {
		processCount.WithLabelValues("total").Set(float64(total))
		processCount.WithLabelValues("running").Set(float64(running))
		processCount.WithLabelValues("sleeping").Set(float64(sleeping))
		processCount.WithLabelValues("zombie").Set(float64(zombie))
	}
}

func IncSpawn(outcome string) {
	if regOK.Load() {
		childSpawns.WithLabelValues(outcome).Inc()
	}
}

func IncKill(reason string) {
	if regOK.Load() {
		childKills.WithLabelValues(reason).Inc()
	}
}

func SetActiveChildren(n int) {
	if regOK.Load() {
		childActive.Set(float64(n))
	}
}

func IncAlert(level, typ string) {
	if regOK.Load() {
		alertsEmitted.WithLabelValues(level, typ).Inc()
	}
}

func RecordBreakerTransition(name, from, to string) {
	if regOK.Load() {
		breakerTransitions.WithLabelValues(name, from, to).Inc()
	}
}

func SetBreakersOpen(n int) {
	if regOK.Load() {
		breakersOpen.Set(float64(n))
	}
}

func IncEmergencyResponse() {
	if regOK.Load() {
		emergencyResponses.Inc()
	}
}
