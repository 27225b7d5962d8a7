package procman

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/eekfonky/healthcore/internal/metrics"
	"github.com/eekfonky/healthcore/internal/scheduler"
)

const sweepTimer = "procman.sweep"

// Manager spawns, tracks, times out, and forcibly terminates child
// processes under the security gate. It owns every Record exclusively.
type Manager struct {
	cfg   Config
	sched *scheduler.Registry
	now   func() time.Time
	// start is the spawn primitive, injectable so tests can count or deny
	// process creation.
	start func(*exec.Cmd) error

	mu    sync.Mutex
	table map[string]*tracked
	seq   int64
}

type tracked struct {
	rec    Record
	cmd    *exec.Cmd
	done   chan struct{}
	stdout *limitWriter
	stderr *limitWriter
}

func NewManager(cfg Config, sched *scheduler.Registry) *Manager {
	return &Manager{
		cfg:   cfg.withDefaults(),
		sched: sched,
		now:   time.Now,
		start: func(cmd *exec.Cmd) error { return cmd.Start() },
		table: make(map[string]*tracked),
	}
}

// SetClock injects a time source for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// SetStarter injects the spawn primitive for tests.
func (m *Manager) SetStarter(fn func(*exec.Cmd) error) {
	m.mu.Lock()
	m.start = fn
	m.mu.Unlock()
}

// StartSweeper registers the periodic orphan sweep on the scheduler.
func (m *Manager) StartSweeper() {
	m.sched.ScheduleRepeating(sweepTimer, m.cfg.SweepInterval, m.SweepOrphans)
}

// StopSweeper cancels the orphan sweep.
func (m *Manager) StopSweeper() {
	m.sched.Cancel(sweepTimer)
}

// Execute runs command under the security gate and waits for completion.
// The returned Record carries capped stdout/stderr and the exit state.
// Violations, timeouts, and output-limit breaches are returned as errors;
// the Record is still returned for inspection when a process actually ran.
func (m *Manager) Execute(ctx context.Context, command string, args []string, opts Options) (Record, error) {
	env, secErr := m.gate(command, args, opts.Env)
	if secErr != nil {
		metrics.IncSpawn("rejected")
		return Record{}, secErr
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = m.cfg.DefaultTimeout
	}
	maxOutput := opts.MaxOutput
	if maxOutput <= 0 {
		maxOutput = m.cfg.MaxOutputBytes
	}

	m.evictForCapacity()

	overflow := make(chan struct{}, 1)
	signalOverflow := func() {
		select {
		case overflow <- struct{}{}:
		default:
		}
	}

	// #nosec G204 -- command passed the allow-list, args the sanitizer.
	cmd := exec.Command(command, args...)
	cmd.Env = env
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	sysProcAttrs(cmd)
	stdout := newLimitWriter(maxOutput, signalOverflow)
	stderr := newLimitWriter(maxOutput, signalOverflow)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	m.mu.Lock()
	m.seq++
	id := fmt.Sprintf("proc-%d", m.seq)
	startFn := m.start
	now := m.now()
	m.mu.Unlock()

	if err := startFn(cmd); err != nil {
		metrics.IncSpawn("error")
		return Record{}, fmt.Errorf("spawn %s: %w", command, err)
	}
	metrics.IncSpawn("ok")

	t := &tracked{
		rec: Record{
			ID:        id,
			PID:       cmd.Process.Pid,
			Command:   command,
			Args:      append([]string(nil), args...),
			StartedAt: now,
			State:     StateRunning,
		},
		cmd:    cmd,
		done:   make(chan struct{}),
		stdout: stdout,
		stderr: stderr,
	}
	m.mu.Lock()
	m.table[id] = t
	metrics.SetActiveChildren(len(m.table))
	m.mu.Unlock()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(t.done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var finalErr error
	var exitErr error
	select {
	case exitErr = <-waitErr:
	case <-ctx.Done():
		m.killTracked(t, syscall.SIGKILL, "canceled")
		exitErr = <-waitErr
		finalErr = ctx.Err()
	case <-timer.C:
		m.killTracked(t, syscall.SIGKILL, "timeout")
		exitErr = <-waitErr
		finalErr = fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case <-overflow:
		m.killTracked(t, syscall.SIGKILL, "output_limit")
		exitErr = <-waitErr
		finalErr = fmt.Errorf("%w (%d bytes)", ErrOutputLimit, maxOutput)
	}

	rec := m.finalize(t, exitErr, finalErr)
	return rec, finalErr
}

// finalize fills the record's terminal fields and removes it from the
// active table, after the configured grace when the process was killed.
func (m *Manager) finalize(t *tracked, exitErr, cause error) Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	t.rec.StoppedAt = m.now()
	t.rec.Stdout = t.stdout.String()
	t.rec.Stderr = t.stderr.String()

	switch {
	case t.rec.State == StateKilled:
		// killTracked already set state and signal
	case cause != nil:
		t.rec.State = StateKilled
	case exitErr == nil:
		t.rec.State = StateCompleted
	default:
		t.rec.State = StateFailed
	}
	if ee, ok := exitErr.(*exec.ExitError); ok {
		t.rec.ExitCode = ee.ExitCode()
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			t.rec.Signal = signalName(ws.Signal())
		}
	} else if exitErr == nil {
		t.rec.ExitCode = 0
	} else {
		t.rec.ExitCode = -1
	}

	rec := t.rec
	id := t.rec.ID
	if t.rec.State == StateKilled {
		// Keep killed entries visible briefly for post-mortem queries.
		m.sched.ScheduleOnce("procman.remove."+id, m.cfg.KillGrace, func() {
			m.mu.Lock()
			delete(m.table, id)
			metrics.SetActiveChildren(len(m.table))
			m.mu.Unlock()
		})
	} else {
		delete(m.table, id)
		metrics.SetActiveChildren(len(m.table))
	}
	return rec
}

// evictForCapacity kills the oldest-started running processes until a slot
// is free.
func (m *Manager) evictForCapacity() {
	for {
		m.mu.Lock()
		running := m.runningLocked()
		if len(running) < m.cfg.MaxProcesses {
			m.mu.Unlock()
			return
		}
		sort.Slice(running, func(i, j int) bool {
			return running[i].rec.StartedAt.Before(running[j].rec.StartedAt)
		})
		oldest := running[0]
		m.mu.Unlock()

		slog.Warn("process table at capacity, evicting oldest",
			"id", oldest.rec.ID, "command", oldest.rec.Command, "started_at", oldest.rec.StartedAt)
		m.killTracked(oldest, syscall.SIGKILL, "capacity")
		select {
		case <-oldest.done:
		case <-time.After(m.cfg.KillGrace):
		}
	}
}

func (m *Manager) runningLocked() []*tracked {
	out := make([]*tracked, 0, len(m.table))
	for _, t := range m.table {
		if t.rec.State == StateRunning {
			out = append(out, t)
		}
	}
	return out
}

func (m *Manager) killTracked(t *tracked, sig syscall.Signal, reason string) {
	m.mu.Lock()
	if t.rec.State != StateRunning {
		m.mu.Unlock()
		return
	}
	t.rec.State = StateKilled
	t.rec.Signal = signalName(sig)
	pid := t.rec.PID
	m.mu.Unlock()

	if err := killGroup(pid, sig); err != nil {
		slog.Debug("kill failed", "pid", pid, "error", err)
	}
	metrics.IncKill(reason)
}

// Kill terminates a tracked process by id with the named signal.
func (m *Manager) Kill(id, signal string) error {
	if !ValidSignal(signal) {
		return fmt.Errorf("%w: %q", ErrBadSignal, signal)
	}
	m.mu.Lock()
	t, ok := m.table[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.killTracked(t, parseSignal(signal), "operator")
	return nil
}

// KillAll terminates every tracked running process. Returns the number
// signaled.
func (m *Manager) KillAll(signal string) int {
	m.mu.Lock()
	running := m.runningLocked()
	m.mu.Unlock()
	sig := parseSignal(signal)
	for _, t := range running {
		m.killTracked(t, sig, "operator")
	}
	return len(running)
}

// Running returns copies of the records still marked running, oldest first.
func (m *Manager) Running() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.table))
	for _, t := range m.table {
		if t.rec.State == StateRunning {
			out = append(out, t.rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Count returns the number of tracked processes (any state).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.table)
}

// SweepOrphans kills any process still running beyond the configured age.
func (m *Manager) SweepOrphans() {
	m.mu.Lock()
	cutoff := m.now().Add(-m.cfg.OrphanMaxAge)
	var orphans []*tracked
	for _, t := range m.table {
		if t.rec.State == StateRunning && t.rec.StartedAt.Before(cutoff) {
			orphans = append(orphans, t)
		}
	}
	m.mu.Unlock()
	for _, t := range orphans {
		slog.Warn("killing orphaned process", "id", t.rec.ID, "command", t.rec.Command, "age", time.Since(t.rec.StartedAt))
		m.killTracked(t, syscall.SIGKILL, "orphan")
	}
}

// GracefulShutdown sends SIGTERM to all tracked processes and races their
// completion against the shutdown timeout; stragglers get SIGKILL.
func (m *Manager) GracefulShutdown(timeout time.Duration) {
	if timeout <= 0 {
		timeout = m.cfg.ShutdownTimeout
	}
	m.StopSweeper()

	m.mu.Lock()
	running := m.runningLocked()
	m.mu.Unlock()
	if len(running) == 0 {
		return
	}

	for _, t := range running {
		m.killTracked(t, syscall.SIGTERM, "shutdown")
	}

	allDone := make(chan struct{})
	go func() {
		for _, t := range running {
			<-t.done
		}
		close(allDone)
	}()

	select {
	case <-allDone:
	case <-time.After(timeout):
		slog.Warn("graceful shutdown timed out, escalating to SIGKILL")
		for _, t := range running {
			select {
			case <-t.done:
			default:
				if err := killGroup(t.rec.PID, syscall.SIGKILL); err != nil {
					slog.Debug("escalated kill failed", "pid", t.rec.PID, "error", err)
				}
			}
		}
	}
}
