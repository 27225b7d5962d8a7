package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleRepeatingFiresAndCancelStops(t *testing.T) {
	r := New()
	var ticks atomic.Int64
	r.ScheduleRepeating("t1", 10*time.Millisecond, func() { ticks.Add(1) })

	deadline := time.Now().Add(time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ticks.Load() < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", ticks.Load())
	}

	r.Cancel("t1")
	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if got := ticks.Load(); got > after+1 {
		t.Fatalf("timer kept firing after cancel: %d -> %d", after, got)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry after cancel, got %d", r.Len())
	}
}

func TestReregisterReplacesPrevious(t *testing.T) {
	r := New()
	var first, second atomic.Int64
	r.ScheduleRepeating("t", 10*time.Millisecond, func() { first.Add(1) })
	r.ScheduleRepeating("t", 10*time.Millisecond, func() { second.Add(1) })
	defer r.CancelAll()

	time.Sleep(80 * time.Millisecond)
	firstAfter := first.Load()
	time.Sleep(80 * time.Millisecond)
	if got := first.Load(); got > firstAfter {
		t.Fatalf("replaced timer still firing: %d -> %d", firstAfter, got)
	}
	if second.Load() == 0 {
		t.Fatalf("replacement timer never fired")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 registered timer, got %d", r.Len())
	}
}

func TestScheduleOnceFiresOnceAndReleasesName(t *testing.T) {
	r := New()
	var fired atomic.Int64
	r.ScheduleOnce("once", 10*time.Millisecond, func() { fired.Add(1) })

	deadline := time.Now().Add(time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("expected exactly one firing, got %d", fired.Load())
	}
	deadline = time.Now().Add(time.Second)
	for r.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.Len() != 0 {
		t.Fatalf("name not released after one-shot fired")
	}
}

func TestScheduleOnceCanceledNeverFires(t *testing.T) {
	r := New()
	var fired atomic.Int64
	r.ScheduleOnce("once", 50*time.Millisecond, func() { fired.Add(1) })
	r.Cancel("once")
	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("canceled one-shot fired anyway")
	}
}

func TestCancelAllStopsEverything(t *testing.T) {
	r := New()
	var ticks atomic.Int64
	for _, name := range []string{"a", "b", "c"} {
		r.ScheduleRepeating(name, 10*time.Millisecond, func() { ticks.Add(1) })
	}
	time.Sleep(40 * time.Millisecond)
	r.CancelAll()
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
	after := ticks.Load()
	time.Sleep(60 * time.Millisecond)
	if got := ticks.Load(); got > after+3 {
		t.Fatalf("timers kept firing after CancelAll: %d -> %d", after, got)
	}
}

func TestPanicInCallbackDoesNotStopTimer(t *testing.T) {
	r := New()
	var ticks atomic.Int64
	r.ScheduleRepeating("panicky", 10*time.Millisecond, func() {
		ticks.Add(1)
		panic("boom")
	})
	defer r.CancelAll()

	deadline := time.Now().Add(time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ticks.Load() < 3 {
		t.Fatalf("timer stopped after panic: only %d ticks", ticks.Load())
	}
}

func TestInvalidScheduleIsNoOp(t *testing.T) {
	r := New()
	r.ScheduleRepeating("bad", 0, func() {})
	r.ScheduleRepeating("nilfn", time.Second, nil)
	r.ScheduleOnce("neg", -1, func() {})
	if r.Len() != 0 {
		t.Fatalf("invalid registrations must not register, got %d", r.Len())
	}
}
