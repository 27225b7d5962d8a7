package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

// Registry owns every named timer in the process. Components register
// repeating or one-shot callbacks under a unique name so that shutdown can
// cancel all outstanding work deterministically. Re-registering a name
// replaces (cancels) the previous timer.
type Registry struct {
	mu     sync.Mutex
	timers map[string]*entry
}

type entry struct {
	quit chan struct{}
	once sync.Once
}

func (e *entry) stop() {
	e.once.Do(func() { close(e.quit) })
}

func New() *Registry {
	return &Registry{timers: make(map[string]*entry)}
}

// ScheduleRepeating runs fn every interval until the name is canceled.
// Each tick runs fn on the registry goroutine for that timer; a panic inside
// fn is recovered and logged so one bad cycle never stops future cycles.
func (r *Registry) ScheduleRepeating(name string, interval time.Duration, fn func()) {
	if interval <= 0 || fn == nil {
		return
	}
	e := r.replace(name)
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-e.quit:
				return
			case <-t.C:
				runProtected(name, fn)
			}
		}
	}()
}

// ScheduleOnce runs fn once after delay unless canceled first. The name is
// released after the callback fires.
func (r *Registry) ScheduleOnce(name string, delay time.Duration, fn func()) {
	if delay < 0 || fn == nil {
		return
	}
	e := r.replace(name)
	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-e.quit:
			return
		case <-t.C:
			runProtected(name, fn)
			r.release(name, e)
		}
	}()
}

// Cancel stops the timer registered under name. Canceling an unknown name is
// a no-op.
func (r *Registry) Cancel(name string) {
	r.mu.Lock()
	e, ok := r.timers[name]
	if ok {
		delete(r.timers, name)
	}
	r.mu.Unlock()
	if ok {
		e.stop()
	}
}

// CancelAll stops every registered timer. After it returns no callback will
// fire again until something re-registers.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	old := r.timers
	r.timers = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range old {
		e.stop()
	}
}

// Names returns the currently registered timer names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.timers))
	for n := range r.timers {
		out = append(out, n)
	}
	return out
}

// Len returns the number of registered timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *Registry) replace(name string) *entry {
	e := &entry{quit: make(chan struct{})}
	r.mu.Lock()
	prev, existed := r.timers[name]
	r.timers[name] = e
	r.mu.Unlock()
	if existed {
		prev.stop()
	}
	return e
}

// release removes the entry only if it is still the registered one, so a
// timer replaced mid-flight does not delete its successor.
func (r *Registry) release(name string, e *entry) {
	r.mu.Lock()
	if cur, ok := r.timers[name]; ok && cur == e {
		delete(r.timers, name)
	}
	r.mu.Unlock()
}

func runProtected(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("scheduled callback panicked", "timer", name, "panic", rec)
		}
	}()
	fn()
}
