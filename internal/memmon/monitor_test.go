package memmon

import (
	"errors"
	"testing"
	"time"

	"github.com/eekfonky/healthcore/internal/alert"
	"github.com/eekfonky/healthcore/internal/inspector"
	"github.com/eekfonky/healthcore/internal/scheduler"
)

func TestClassifyPct(t *testing.T) {
	cases := []struct {
		v    float64
		want Level
	}{
		{10, LevelHealthy},
		{69.9, LevelHealthy},
		{70, LevelWarning},
		{84.9, LevelWarning},
		{85, LevelCritical},
		{94.9, LevelCritical},
		{95, LevelEmergency},
		{100, LevelEmergency},
	}
	for _, tc := range cases {
		if got := classifyPct(tc.v, 70, 85, 95); got != tc.want {
			t.Errorf("classifyPct(%.1f) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestClassifyTakesWorstOfSystemAndHeap(t *testing.T) {
	m := newTestMonitor(Config{})
	snap := Snapshot{
		System: SystemMemory{Percent: 50},
		Heap:   HeapMemory{Percent: 91},
	}
	if got := m.classify(snap); got != LevelCritical {
		t.Fatalf("classify = %v, want critical from heap", got)
	}
}

func TestCollectHeapPercentWithinBounds(t *testing.T) {
	mock := &inspector.Mock{}
	mock.Set(func(m *inspector.Mock) { m.MemErr = errors.New("unavailable") })
	m := New(Config{}, mock, scheduler.New(), alert.NewDispatcher(0))

	snap := m.Collect()
	if snap.Heap.Percent < 0 || snap.Heap.Percent > 100 {
		t.Fatalf("heap percent out of bounds: %.2f", snap.Heap.Percent)
	}
	if snap.Heap.Used == 0 || snap.Heap.Total == 0 {
		t.Fatalf("runtime heap sample empty: %+v", snap.Heap)
	}
	// Inspector failure degrades system metrics to zero without failing.
	if snap.System.Percent != 0 || snap.System.Total != 0 {
		t.Fatalf("system metrics not zeroed on inspector failure: %+v", snap.System)
	}
}

func TestCollectUsesInspectorSystemMemory(t *testing.T) {
	mock := &inspector.Mock{}
	mock.Set(func(m *inspector.Mock) {
		m.Mem = inspector.MemoryInfo{
			SystemUsed:  80,
			SystemFree:  20,
			SystemTotal: 100,
			ProcessRSS:  4096,
		}
	})
	m := New(Config{}, mock, scheduler.New(), alert.NewDispatcher(0))

	snap := m.Collect()
	if snap.System.Percent != 80 {
		t.Fatalf("system percent = %.1f, want 80", snap.System.Percent)
	}
	if snap.RSS != 4096 {
		t.Fatalf("rss = %d, want 4096", snap.RSS)
	}
}

func TestHistoryRingBounded(t *testing.T) {
	m := newTestMonitor(Config{HistorySize: 5})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		m.AddSnapshotForTesting(Snapshot{Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	h := m.History()
	if len(h) != 5 {
		t.Fatalf("history length = %d, want 5", len(h))
	}
	if !h[0].Timestamp.Equal(base.Add(3 * time.Minute)) {
		t.Fatalf("oldest retained = %v, want minute 3", h[0].Timestamp)
	}
}

func TestCycleEmergencyRunsCleanupAndAlerts(t *testing.T) {
	mock := &inspector.Mock{}
	mock.Set(func(m *inspector.Mock) {
		m.Mem = inspector.MemoryInfo{SystemUsed: 97, SystemFree: 3, SystemTotal: 100}
	})
	alerts := alert.NewDispatcher(0)
	m := New(Config{}, mock, scheduler.New(), alerts)
	runs, hook := countingHook()
	m.SetGCHook(hook)

	m.cycle()

	if m.Status().Level != LevelEmergency {
		t.Fatalf("level = %v, want emergency", m.Status().Level)
	}
	if m.Status().Emergencies != 1 {
		t.Fatalf("emergencies = %d, want 1", m.Status().Emergencies)
	}
	if runs.Load() != 3 {
		t.Fatalf("emergency GC passes = %d, want 3", runs.Load())
	}
	var sawEmergency bool
	for _, a := range alerts.Recent() {
		if a.Level == alert.LevelEmergency && a.Type == alert.TypeMemory {
			sawEmergency = true
		}
	}
	if !sawEmergency {
		t.Fatalf("no emergency alert emitted: %+v", alerts.Recent())
	}
}

func TestCycleWarningTriggersRateLimitedGC(t *testing.T) {
	mock := &inspector.Mock{}
	mock.Set(func(m *inspector.Mock) {
		m.Mem = inspector.MemoryInfo{SystemUsed: 75, SystemFree: 25, SystemTotal: 100}
	})
	alerts := alert.NewDispatcher(0)
	m := New(Config{}, mock, scheduler.New(), alerts)
	runs, hook := countingHook()
	m.SetGCHook(hook)

	m.cycle()
	m.cycle()

	// Heap pressure from the live runtime can raise this to critical; either
	// way both cycles fall inside the respective rate limit.
	if lvl := m.Status().Level; lvl != LevelWarning && lvl != LevelCritical {
		t.Fatalf("level = %v, want warning or critical", lvl)
	}
	if runs.Load() != 1 {
		t.Fatalf("GC runs = %d, want 1 within the rate limit", runs.Load())
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
