package healthcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eekfonky/healthcore/internal/breaker"
	"github.com/eekfonky/healthcore/internal/config"
	"github.com/eekfonky/healthcore/internal/procman"
	"github.com/eekfonky/healthcore/internal/sysmon"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	fc := FileConfig{
		System: sysmon.Config{TempDirs: []string{t.TempDir()}},
	}
	c, err := New(fc)
	if err != nil {
		t.Fatalf("new core: %v", err)
	}
	return c
}

func TestCoreLifecycle(t *testing.T) {
	c := newTestCore(t)
	c.Start()
	defer c.Stop()

	st := c.Status()
	if st.Overall == "" || len(st.Components) != 4 {
		t.Fatalf("status = %+v", st)
	}
	if len(c.Processes()) != 0 {
		t.Fatalf("unexpected tracked children: %v", c.Processes())
	}
}

func TestCoreExecute(t *testing.T) {
	c := newTestCore(t)
	defer c.Stop()

	rec, err := c.Execute(context.Background(), "echo", []string{"hello"}, ExecOptions{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(rec.Stdout, "hello") {
		t.Fatalf("stdout = %q", rec.Stdout)
	}

	var sec *procman.SecurityError
	if _, err := c.Execute(context.Background(), "rm", []string{"-rf", "/"}, ExecOptions{}); !errors.As(err, &sec) {
		t.Fatalf("disallowed command error = %v", err)
	}
}

func TestCoreGuardTripsConfiguredBreaker(t *testing.T) {
	fc := FileConfig{
		System: sysmon.Config{TempDirs: []string{t.TempDir()}},
	}
	c, err := New(fc)
	if err != nil {
		t.Fatalf("new core: %v", err)
	}
	defer c.Stop()

	boom := errors.New("dependency down")
	// The api preset trips after 5 consecutive failures.
	for i := 0; i < 5; i++ {
		if err := c.Guard("api", func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if err := c.Guard("api", func() error { return nil }); !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("open breaker passed a call through: %v", err)
	}

	// The opened breaker surfaces as a warning alert and a degraded status.
	// The transition callback runs on its own goroutine, so poll briefly.
	var sawBreakerAlert bool
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !sawBreakerAlert {
		for _, a := range c.RecentAlerts() {
			if strings.Contains(a.Message, "circuit breaker opened") {
				sawBreakerAlert = true
			}
		}
		if !sawBreakerAlert {
			time.Sleep(10 * time.Millisecond)
		}
	}
	if !sawBreakerAlert {
		t.Fatalf("no breaker alert emitted: %v", c.RecentAlerts())
	}
	if c.Status().Components["breakers"] != "warning" {
		t.Fatalf("breakers component = %q", c.Status().Components["breakers"])
	}
}

func TestCoreForceCleanup(t *testing.T) {
	c := newTestCore(t)
	defer c.Stop()
	if removed := c.ForceCleanup(); removed != 0 {
		t.Fatalf("removed = %d from an empty temp dir", removed)
	}
}

func TestCoreEmergencyGuarded(t *testing.T) {
	c := newTestCore(t)
	defer c.Stop()

	ran, errs := c.TriggerEmergency("drill")
	if !ran || len(errs) != 0 {
		t.Fatalf("ran=%v errs=%v", ran, errs)
	}
	if ran, _ = c.TriggerEmergency("again"); ran {
		t.Fatalf("re-entrant emergency not suppressed")
	}
}

func TestCoreHistorySinkPersistsAlerts(t *testing.T) {
	fc := FileConfig{
		System:  sysmon.Config{TempDirs: []string{t.TempDir()}},
		History: config.HistoryConfig{DSN: t.TempDir() + "/alerts.db"},
	}
	c, err := New(fc)
	if err != nil {
		t.Fatalf("new core: %v", err)
	}
	c.TriggerEmergency("drill")
	time.Sleep(100 * time.Millisecond)
	c.Stop()
}
