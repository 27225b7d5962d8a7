package procman

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State of a tracked child process.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateKilled    State = "killed"
)

// Record describes one tracked child process. Owned exclusively by the
// Manager; callers receive copies.
type Record struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	Args      []string  `json:"args"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	State     State     `json:"state"`
	ExitCode  int       `json:"exit_code"`
	Signal    string    `json:"signal,omitempty"`
	Stdout    string    `json:"stdout,omitempty"`
	Stderr    string    `json:"stderr,omitempty"`
}

// Options tunes a single Execute call. Zero values fall back to the
// manager's configured defaults.
type Options struct {
	Timeout   time.Duration
	MaxOutput int64
	WorkDir   string
	Env       map[string]string
}

// Config tunes the manager. Zero values fall back to defaults.
type Config struct {
	MaxProcesses    int           `mapstructure:"max_processes"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`
	MaxOutputBytes  int64         `mapstructure:"max_output_bytes"`
	OrphanMaxAge    time.Duration `mapstructure:"orphan_max_age"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	KillGrace       time.Duration `mapstructure:"kill_grace"`
	AllowedCommands []string      `mapstructure:"allowed_commands"`
}

func (c Config) withDefaults() Config {
	if c.MaxProcesses <= 0 {
		c.MaxProcesses = 20
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = 1 << 20
	}
	if c.OrphanMaxAge <= 0 {
		c.OrphanMaxAge = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.KillGrace <= 0 {
		c.KillGrace = 2 * time.Second
	}
	if len(c.AllowedCommands) == 0 {
		c.AllowedCommands = DefaultAllowedCommands()
	}
	return c
}

// Sentinel errors for the execution contract.
var (
	ErrTimeout     = errors.New("process exceeded its time budget and was killed")
	ErrOutputLimit = errors.New("process exceeded its output budget and was killed")
	ErrNotFound    = errors.New("no such process")
	ErrBadSignal   = errors.New("unrecognized signal name")
)

// ValidSignal reports whether name is one of the accepted symbolic signal
// names. Numeric or unknown names are rejected so the kill surface stays
// auditable. The SIG prefix is optional and matching is case-insensitive.
func ValidSignal(name string) bool {
	switch strings.ToUpper(strings.TrimPrefix(strings.ToUpper(name), "SIG")) {
	case "TERM", "KILL", "INT", "HUP", "QUIT":
		return true
	default:
		return false
	}
}

// SecurityError rejects a spawn request with the complete violation list;
// nothing is partially executed.
type SecurityError struct {
	Violations []string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("spawn rejected: %s", strings.Join(e.Violations, "; "))
}
