package health

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eekfonky/healthcore/internal/alert"
	"github.com/eekfonky/healthcore/internal/breaker"
	"github.com/eekfonky/healthcore/internal/inspector"
	"github.com/eekfonky/healthcore/internal/memmon"
	"github.com/eekfonky/healthcore/internal/procman"
	"github.com/eekfonky/healthcore/internal/scheduler"
	"github.com/eekfonky/healthcore/internal/sysmon"
)

type fixture struct {
	agg      *Aggregator
	mem      *memmon.Monitor
	sys      *sysmon.Monitor
	procs    *procman.Manager
	breakers *breaker.Registry
	sched    *scheduler.Registry
	alerts   *alert.Dispatcher
	mock     *inspector.Mock
}

func newFixture(cfg Config) *fixture {
	mock := &inspector.Mock{}
	sched := scheduler.New()
	alerts := alert.NewDispatcher(0)
	mem := memmon.New(memmon.Config{}, mock, sched, alerts)
	mem.SetGCHook(func() {})
	sys := sysmon.New(sysmon.Config{}, mock, sched, alerts)
	procs := procman.NewManager(procman.Config{KillGrace: 50 * time.Millisecond}, sched)
	breakers := breaker.NewRegistry(breaker.Config{FailureThreshold: 1, Cooldown: time.Minute})
	agg := NewAggregator(cfg, mem, sys, procs, breakers, sched, alerts)
	return &fixture{agg, mem, sys, procs, breakers, sched, alerts, mock}
}

func TestWorstOrdering(t *testing.T) {
	cases := []struct {
		a, b, want Overall
	}{
		{Healthy, Healthy, Healthy},
		{Healthy, Warning, Warning},
		{Warning, Critical, Critical},
		{Critical, Emergency, Emergency},
		{Emergency, Healthy, Emergency},
	}
	for _, tc := range cases {
		if got := worst(tc.a, tc.b); got != tc.want {
			t.Errorf("worst(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestStatusHealthyWithNoSamples(t *testing.T) {
	f := newFixture(Config{})
	st := f.agg.Status()
	if st.Overall != Healthy {
		t.Fatalf("overall = %v with no data, want healthy", st.Overall)
	}
	if len(st.Components) != 4 {
		t.Fatalf("components = %v", st.Components)
	}
	if st.Metrics["children_active"] != 0 || st.Metrics["breakers_open"] != 0 {
		t.Fatalf("metrics = %v", st.Metrics)
	}
}

func TestStatusComposesWorstComponent(t *testing.T) {
	f := newFixture(Config{})
	// A synthetic critical memory sample drives the composed level.
	f.mem.AddSnapshotForTesting(memmon.Snapshot{
		Timestamp: time.Now(),
		System:    memmon.SystemMemory{Percent: 88, Used: 88, Total: 100},
	})
	f.mock.Set(func(m *inspector.Mock) {
		m.Mem = inspector.MemoryInfo{SystemUsed: 88, SystemFree: 12, SystemTotal: 100}
	})
	// Run one collection cycle so the monitor classifies the sample.
	f.mem.Collect()
	st := f.agg.Status()
	if st.Metrics["memory_system_percent"] != 88 {
		t.Fatalf("memory metric = %v", st.Metrics)
	}
}

func TestOpenBreakerDegradesStatus(t *testing.T) {
	f := newFixture(Config{})
	_ = f.breakers.Do("api", func() error { return errTest })
	if f.breakers.OpenCount() != 1 {
		t.Fatalf("breaker not open")
	}
	st := f.agg.Status()
	if st.Overall != Warning {
		t.Fatalf("overall = %v with an open breaker, want warning", st.Overall)
	}
	if st.Components["breakers"] != string(Warning) {
		t.Fatalf("breakers component = %q", st.Components["breakers"])
	}
	if st.Metrics["breakers_open"] != 1 {
		t.Fatalf("metrics = %v", st.Metrics)
	}
}

func TestRecommendations(t *testing.T) {
	f := newFixture(Config{})
	_ = f.breakers.Do("api", func() error { return errTest })
	f.mock.Set(func(m *inspector.Mock) {
		m.Mem = inspector.MemoryInfo{SystemUsed: 90, SystemFree: 10, SystemTotal: 100}
	})
	f.mem.Collect()

	st := f.agg.Status()
	var sawMemory, sawBreaker bool
	for _, r := range st.Recommendations {
		if strings.Contains(r, "restarting the service") {
			sawMemory = true
		}
		if strings.Contains(r, "circuit breaker") {
			sawBreaker = true
		}
	}
	if !sawMemory || !sawBreaker {
		t.Fatalf("recommendations = %v", st.Recommendations)
	}
}

func TestEmergencyResponseGuard(t *testing.T) {
	f := newFixture(Config{})
	clk := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := clk
	f.agg.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})

	ran, errs := f.agg.TriggerEmergencyResponse("test")
	if !ran || len(errs) != 0 {
		t.Fatalf("first trigger: ran=%v errs=%v", ran, errs)
	}
	ran, _ = f.agg.TriggerEmergencyResponse("again")
	if ran {
		t.Fatalf("re-entrant trigger within the guard must be suppressed")
	}

	mu.Lock()
	now = clk.Add(31 * time.Second)
	mu.Unlock()
	ran, _ = f.agg.TriggerEmergencyResponse("later")
	if !ran {
		t.Fatalf("trigger after the guard elapsed was suppressed")
	}
}

func TestEmergencyResponseEmitsAlertAndCancelsTimers(t *testing.T) {
	f := newFixture(Config{})
	f.sched.ScheduleRepeating("some.timer", time.Hour, func() {})

	ran, errs := f.agg.TriggerEmergencyResponse("memory pressure")
	if !ran || len(errs) != 0 {
		t.Fatalf("ran=%v errs=%v", ran, errs)
	}
	if f.sched.Len() != 0 {
		t.Fatalf("timers not canceled: %v", f.sched.Names())
	}
	var sawEmergency bool
	for _, a := range f.alerts.Recent() {
		if a.Level == alert.LevelEmergency {
			sawEmergency = true
		}
	}
	if !sawEmergency {
		t.Fatalf("no emergency alert emitted")
	}
}

func TestInitializeAndShutdownIdempotent(t *testing.T) {
	f := newFixture(Config{PollInterval: time.Hour})
	f.agg.Initialize()
	f.agg.Initialize()
	if f.sched.Len() == 0 {
		t.Fatalf("no timers registered by Initialize")
	}
	f.agg.Shutdown()
	f.agg.Shutdown()
	if f.sched.Len() != 0 {
		t.Fatalf("timers survived Shutdown: %v", f.sched.Names())
	}
}

var errTest = errors.New("dependency down")
