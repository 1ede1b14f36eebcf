package hooks

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// EventKind identifies a scheduler event.
type EventKind string

const (
	EventRenderRequested EventKind = "render_requested"
	EventRenderStarted   EventKind = "render_started"
	EventRenderCommitted EventKind = "render_committed"
	EventRenderAborted   EventKind = "render_aborted"
	EventCommitFinished  EventKind = "commit_finished"
	EventStateChanged    EventKind = "state_changed"
	EventEffectRun       EventKind = "effect_run"
	EventCleanupRun      EventKind = "cleanup_run"
	EventEffectFailed    EventKind = "effect_failed"
	EventCleanupFailed   EventKind = "cleanup_failed"
	EventStaleWrite      EventKind = "stale_write"
	EventTeardown        EventKind = "teardown"
)

// Event describes one step of the render/commit lifecycle of an instance.
type Event struct {
	Kind       EventKind     `json:"kind"`
	Instance   uint64        `json:"instance"`
	Name       string        `json:"name"`
	Slot       int           `json:"slot"`
	Generation uint64        `json:"generation"`
	Time       time.Time     `json:"time"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
}

// String returns a stable one-line form without timestamps, used for
// transcripts and test assertions.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteString(" ")
	b.WriteString(string(e.Kind))
	if e.Slot >= 0 {
		fmt.Fprintf(&b, " slot=%d", e.Slot)
	}
	fmt.Fprintf(&b, " gen=%d", e.Generation)
	if e.Error != "" {
		b.WriteString(" err=")
		b.WriteString(e.Error)
	}
	return b.String()
}

// Observer receives scheduler events. Observe may be called from any
// goroutine that writes state, so implementations must be safe for
// concurrent use.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

// Recorder is an Observer that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe records e.
func (r *Recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Filter returns the recorded events whose kind is one of kinds.
func (r *Recorder) Filter(kinds ...EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Transcript returns the String form of the events whose kind is one of
// kinds, or of every event when kinds is empty.
func (r *Recorder) Transcript(kinds ...EventKind) []string {
	events := r.Events()
	if len(kinds) > 0 {
		events = r.Filter(kinds...)
	}
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.String()
	}
	return lines
}

// Reset discards the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// observers fans an event out to several observers.
type observers []Observer

func (os observers) Observe(e Event) {
	for _, o := range os {
		o.Observe(e)
	}
}
