package breaker

import (
	"sync"
	"time"
)

// Well-known dependency names with shipped presets.
const (
	DepAPI       = "api"
	DepDiscovery = "discovery"
	DepDatabase  = "database"
)

// Presets returns the per-dependency configurations used when nothing is
// configured explicitly. Exact values are tunable, not load-bearing.
func Presets() map[string]Config {
	return map[string]Config{
		DepAPI:       {FailureThreshold: 5, Cooldown: 30 * time.Second, HalfOpenTrials: 1},
		DepDiscovery: {FailureThreshold: 3, Cooldown: 15 * time.Second, HalfOpenTrials: 1},
		DepDatabase:  {FailureThreshold: 5, Cooldown: 60 * time.Second, HalfOpenTrials: 2},
	}
}

// Registry creates breakers lazily by name and holds them for the process
// lifetime. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	defaults Config
	presets  map[string]Config
	breakers map[string]*Breaker
	now      func() time.Time
	onChange func(name string, from, to State)
}

func NewRegistry(defaults Config) *Registry {
	return &Registry{
		defaults: defaults.withDefaults(),
		presets:  Presets(),
		breakers: make(map[string]*Breaker),
		now:      time.Now,
	}
}

// SetConfig overrides the configuration used when the named breaker is first
// created. It has no effect on an already-created breaker.
func (r *Registry) SetConfig(name string, cfg Config) {
	r.mu.Lock()
	r.presets[name] = cfg
	r.mu.Unlock()
}

// OnStateChange installs a registry-wide transition callback. It is chained
// after any per-config callback and applies only to breakers created after
// the call.
func (r *Registry) OnStateChange(cb func(name string, from, to State)) {
	r.mu.Lock()
	r.onChange = cb
	r.mu.Unlock()
}

// SetClock injects a time source for tests. Must be called before first use.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// Get returns the breaker for name, creating it from the preset (or the
// registry default) on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[name]; ok {
		return b
	}
	cfg, ok := r.presets[name]
	if !ok {
		cfg = r.defaults
	}
	if r.onChange != nil {
		inner := cfg.OnStateChange
		hook := r.onChange
		cfg.OnStateChange = func(n string, from, to State) {
			if inner != nil {
				inner(n, from, to)
			}
			hook(n, from, to)
		}
	}
	b = newBreaker(name, cfg, r.now)
	r.breakers[name] = b
	return b
}

// Do runs fn through the named breaker.
func (r *Registry) Do(name string, fn func() error) error {
	return r.Get(name).Do(fn)
}

// Execute is an alias for Do.
func (r *Registry) Execute(name string, fn func() error) error {
	return r.Do(name, fn)
}

// States returns the current state of every breaker, keyed by name.
func (r *Registry) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}

// OpenCount reports how many breakers are currently not closed.
func (r *Registry) OpenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, b := range r.breakers {
		if b.State() != Closed {
			n++
		}
	}
	return n
}

// Snapshots returns a point-in-time view of every breaker, keyed by name.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Snapshot, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Snapshot()
	}
	return out
}

// ResetAll forces every breaker closed.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
