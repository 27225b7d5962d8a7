package memmon

import (
	"log/slog"
	"time"

	"github.com/eekfonky/healthcore/internal/metrics"
)

// gcAtWarning triggers a collection at most once per GCWarnInterval.
func (m *Monitor) gcAtWarning() {
	m.mu.Lock()
	now := m.now()
	if now.Sub(m.lastWarnGC) < m.cfg.GCWarnInterval {
		m.mu.Unlock()
		return
	}
	hook, ok := m.takeGCSlotLocked(now)
	if ok {
		m.lastWarnGC = now
	}
	m.mu.Unlock()
	if ok {
		m.runGC(hook, "warning")
	}
}

// gcAtCritical triggers immediately, then applies the 5s cooldown and the
// hourly cap.
func (m *Monitor) gcAtCritical() {
	m.mu.Lock()
	now := m.now()
	if now.Sub(m.lastCritGC) < m.cfg.GCCriticalCooldown {
		m.mu.Unlock()
		return
	}
	hook, ok := m.takeGCSlotLocked(now)
	if ok {
		m.lastCritGC = now
	}
	m.mu.Unlock()
	if ok {
		m.runGC(hook, "critical")
	}
}

// ForceGC runs a collection immediately, still consuming a slot in the
// hourly window. Operator entry point.
func (m *Monitor) ForceGC() bool {
	m.mu.Lock()
	now := m.now()
	hook := m.gcHook
	if hook == nil {
		m.noteMissingHookLocked()
		m.mu.Unlock()
		return false
	}
	m.recordGCLocked(now)
	m.mu.Unlock()
	m.runGC(hook, "forced")
	return true
}

// takeGCSlotLocked enforces the hourly cap and hook availability. Caller
// holds m.mu.
func (m *Monitor) takeGCSlotLocked(now time.Time) (GCFunc, bool) {
	if m.gcHook == nil {
		m.noteMissingHookLocked()
		return nil, false
	}
	m.pruneGCWindowLocked(now)
	if len(m.gcWindow) >= m.cfg.GCHourlyCap {
		slog.Debug("manual GC skipped: hourly cap reached", "cap", m.cfg.GCHourlyCap)
		return nil, false
	}
	m.recordGCLocked(now)
	return m.gcHook, true
}

func (m *Monitor) recordGCLocked(now time.Time) {
	m.pruneGCWindowLocked(now)
	m.gcWindow = append(m.gcWindow, now)
	m.manualGCs++
}

func (m *Monitor) pruneGCWindowLocked(now time.Time) {
	cutoff := now.Add(-time.Hour)
	i := 0
	for i < len(m.gcWindow) && m.gcWindow[i].Before(cutoff) {
		i++
	}
	m.gcWindow = m.gcWindow[i:]
}

func (m *Monitor) noteMissingHookLocked() {
	if !m.gcMissing {
		m.gcMissing = true
		slog.Debug("manual GC hook unavailable; continuing without GC actions")
	}
}

func (m *Monitor) runGC(hook GCFunc, level string) {
	hook()
	metrics.IncGCRun(level)
}

// EmergencyCleanup bypasses the rate limits: several successive GC passes
// with short pauses, internal bookkeeping cleared, and registered emergency
// callbacks notified so dependents release their own resources. Re-entrant
// calls within EmergencyGuard of a prior run are ignored.
func (m *Monitor) EmergencyCleanup(reason string) bool {
	m.mu.Lock()
	now := m.now()
	if !m.lastEmerg.IsZero() && now.Sub(m.lastEmerg) < m.cfg.EmergencyGuard {
		m.mu.Unlock()
		slog.Debug("emergency cleanup suppressed by guard", "reason", reason)
		return false
	}
	m.lastEmerg = now
	m.emergencies++
	hook := m.gcHook
	callbacks := append([]func(string){}, m.onEmergency...)
	// Drop cached history down to the most recent sample; the rest is
	// reclaimable bookkeeping under emergency pressure.
	if n := len(m.history); n > 1 {
		last := m.history[n-1]
		m.history = append(m.history[:0], last)
	}
	m.mu.Unlock()

	slog.Error("memory emergency cleanup", "reason", reason)
	for _, cb := range callbacks {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("emergency callback panicked", "panic", rec)
				}
			}()
			cb(reason)
		}()
	}
	if hook != nil {
		for i := 0; i < 3; i++ {
			m.runGC(hook, "emergency")
			time.Sleep(50 * time.Millisecond)
		}
	} else {
		m.mu.Lock()
		m.noteMissingHookLocked()
		m.mu.Unlock()
	}
	return true
}
