package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the position of a breaker's state machine.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ErrOpen is returned when a call is short-circuited because the breaker is
// open and the cooldown has not elapsed.
var ErrOpen = errors.New("circuit breaker is open")

// Config tunes a single breaker. Zero values fall back to defaults.
type Config struct {
	// FailureThreshold is the consecutive-failure count that trips
	// CLOSED -> OPEN. Default 5.
	FailureThreshold int
	// Cooldown is how long OPEN rejects calls before the next attempt is
	// allowed through as a HALF_OPEN trial. Default 30s.
	Cooldown time.Duration
	// HalfOpenTrials is the consecutive successes required to close from
	// HALF_OPEN. Default 1.
	HalfOpenTrials int
	// OnStateChange, when set, is invoked asynchronously after each
	// transition so it cannot deadlock against callers.
	OnStateChange func(name string, from, to State)
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.HalfOpenTrials <= 0 {
		c.HalfOpenTrials = 1
	}
	return c
}

// Snapshot is a point-in-time view of a breaker for status reporting.
type Snapshot struct {
	Name             string    `json:"name"`
	State            string    `json:"state"`
	Failures         int       `json:"consecutive_failures"`
	LastTransition   time.Time `json:"last_transition"`
	FailureThreshold int       `json:"failure_threshold"`
	Cooldown         string    `json:"cooldown"`
}

// Breaker isolates callers from one persistently failing dependency.
// It is safe for concurrent use.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu         sync.Mutex
	state      State
	failures   int
	successes  int
	transition time.Time
}

func newBreaker(name string, cfg Config, now func() time.Time) *Breaker {
	if now == nil {
		now = time.Now
	}
	return &Breaker{name: name, cfg: cfg.withDefaults(), now: now, transition: now()}
}

// Do runs fn if the state machine allows it. In OPEN before the cooldown has
// elapsed, fn is not invoked and ErrOpen is returned. The first call after
// cooldown moves to HALF_OPEN and is attempted as a trial.
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.now().Sub(b.transition) >= b.cfg.Cooldown {
			b.moveTo(HalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.successes = 0
		switch b.state {
		case Closed:
			if b.failures >= b.cfg.FailureThreshold {
				b.moveTo(Open)
			}
		case HalfOpen:
			// A failed trial restarts the cooldown clock.
			b.moveTo(Open)
		}
		return
	}
	b.successes++
	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		if b.successes >= b.cfg.HalfOpenTrials {
			b.failures = 0
			b.moveTo(Closed)
		}
	}
}

// moveTo must be called with b.mu held.
func (b *Breaker) moveTo(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	b.transition = b.now()
	b.successes = 0
	if cb := b.cfg.OnStateChange; cb != nil {
		go cb(b.name, prev, next)
	}
}

// State returns the current state without advancing the machine.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive-failure counter.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset forces the breaker closed and clears counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.successes = 0
	b.moveTo(Closed)
}

// Snapshot reports the breaker for status/metrics export.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:             b.name,
		State:            b.state.String(),
		Failures:         b.failures,
		LastTransition:   b.transition,
		FailureThreshold: b.cfg.FailureThreshold,
		Cooldown:         b.cfg.Cooldown.String(),
	}
}
