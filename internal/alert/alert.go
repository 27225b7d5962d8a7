package alert

import (
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of an alert.
type Level string

const (
	LevelWarning   Level = "warning"
	LevelCritical  Level = "critical"
	LevelEmergency Level = "emergency"
)

// Type names the subsystem condition that produced the alert.
type Type string

const (
	TypeMemory  Type = "memory"
	TypeCPU     Type = "cpu"
	TypeLoad    Type = "load"
	TypeProcess Type = "process"
	TypeDisk    Type = "disk"
	TypeLeak    Type = "leak"
	TypeBreaker Type = "breaker"
)

// Alert is a transient record emitted when a threshold is breached. It is
// dispatched to listeners, never persisted by the core itself.
type Alert struct {
	Level      Level             `json:"level"`
	Type       Type              `json:"type"`
	Message    string            `json:"message"`
	Value      float64           `json:"value,omitempty"`
	Threshold  float64           `json:"threshold,omitempty"`
	Suggested  []string          `json:"suggested_actions,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Listener receives dispatched alerts. Implementations must not block for
// long; dispatch happens inline on the emitting component's cycle.
type Listener interface {
	OnAlert(a Alert)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(a Alert)

func (f ListenerFunc) OnAlert(a Alert) { f(a) }

// Dispatcher fans alerts out to registered listeners and keeps a bounded
// ring of recent alerts for the status API.
type Dispatcher struct {
	mu        sync.Mutex
	listeners []Listener
	recent    []Alert
	maxRecent int
}

func NewDispatcher(maxRecent int) *Dispatcher {
	if maxRecent <= 0 {
		maxRecent = 100
	}
	return &Dispatcher{maxRecent: maxRecent}
}

// Subscribe registers a listener for all future alerts.
func (d *Dispatcher) Subscribe(l Listener) {
	if l == nil {
		return
	}
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

// Emit records the alert and delivers it to every listener. A panicking
// listener is logged and skipped so it cannot break the emitting cycle.
func (d *Dispatcher) Emit(a Alert) {
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now()
	}
	d.mu.Lock()
	if len(d.recent) >= d.maxRecent {
		copy(d.recent, d.recent[1:])
		d.recent[len(d.recent)-1] = a
	} else {
		d.recent = append(d.recent, a)
	}
	ls := append([]Listener(nil), d.listeners...)
	d.mu.Unlock()

	for _, l := range ls {
		deliver(l, a)
	}
}

// Recent returns a copy of the retained alerts, oldest first.
func (d *Dispatcher) Recent() []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Alert, len(d.recent))
	copy(out, d.recent)
	return out
}

func deliver(l Listener, a Alert) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("alert listener panicked", "type", a.Type, "panic", rec)
		}
	}()
	l.OnAlert(a)
}
