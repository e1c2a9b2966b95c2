package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// phase is one named timing span. A phase is open until its first stop;
// later stops keep the recorded duration.
type phase struct {
	start time.Time
	dur   time.Duration
	done  bool
}

// PhaseTimer stops a running phase. It supports use with defer.
type PhaseTimer struct {
	timer     *Timer
	phaseName string
}

// Stop stops the phase and records its duration.
// Safe to call multiple times; only the first call has effect.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.StopPhase(pt.phaseName)
}

// Timer records named phases of a benchmark run, such as the episode loop
// and the persistence pass. Phases are kept in start order.
type Timer struct {
	mu      sync.Mutex
	name    string
	started time.Time
	phases  map[string]*phase
	order   []string
	logger  Logger
	enabled bool
	clock   Clock
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithLogger sets the logger used when a phase stops.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) { t.logger = logger }
}

// WithEnabled sets whether the timer is enabled.
// When disabled, all operations are no-ops.
func WithEnabled(enabled bool) TimerOption {
	return func(t *Timer) { t.enabled = enabled }
}

// WithClock sets a custom clock for testability.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) { t.clock = clock }
}

// NewTimer creates a new Timer with the given name and options.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:    name,
		phases:  make(map[string]*phase),
		enabled: true,
		clock:   NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.started = t.clock.Now()
	return t
}

// Start begins timing a new phase. Starting a phase that already exists
// restarts it.
func (t *Timer) Start(phaseName string) *PhaseTimer {
	pt := &PhaseTimer{timer: t, phaseName: phaseName}
	if !t.enabled {
		return pt
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := t.phases[phaseName]; !seen {
		t.order = append(t.order, phaseName)
	}
	t.phases[phaseName] = &phase{start: t.clock.Now()}
	return pt
}

// StopPhase stops timing a phase and returns its duration.
// Safe to call multiple times; only the first call has effect.
func (t *Timer) StopPhase(phaseName string) time.Duration {
	if !t.enabled {
		return 0
	}

	t.mu.Lock()
	p, ok := t.phases[phaseName]
	switch {
	case !ok:
		t.mu.Unlock()
		return 0
	case p.done:
		t.mu.Unlock()
		return p.dur
	}
	p.dur = t.clock.Now().Sub(p.start)
	p.done = true
	dur := p.dur
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Debug("%s: phase %s took %v", t.name, phaseName, dur)
	}
	return dur
}

// GetDuration returns the duration of a completed phase.
func (t *Timer) GetDuration(phaseName string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.phases[phaseName]; ok {
		return p.dur
	}
	return 0
}

// TotalDuration returns the total duration since the timer was created.
func (t *Timer) TotalDuration() time.Duration {
	return t.clock.Since(t.started)
}

// Summary returns a one-line summary of all phases in start order.
func (t *Timer) Summary() string {
	if !t.enabled {
		return ""
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s timing:", t.name)
	for _, name := range t.order {
		fmt.Fprintf(&sb, " %s=%v", name, t.phases[name].dur)
	}
	fmt.Fprintf(&sb, " total=%v", t.TotalDuration())
	return sb.String()
}

// Reset clears all phases and resets the start time.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = make(map[string]*phase)
	t.order = nil
	t.started = t.clock.Now()
}
