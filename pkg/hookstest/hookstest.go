package hookstest

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/vango-dev/hooks/internal/errors"
	"github.com/vango-dev/hooks/pkg/hooks"
)

// Harness mounts one component on a private host and records its events.
type Harness struct {
	t      testing.TB
	name   string
	body   hooks.Component
	config Config

	Host     *hooks.Host
	Instance *hooks.Instance
	Recorder *hooks.Recorder
}

// Config configures a Harness.
type Config struct {
	// AutoFlush makes state writes render immediately.
	AutoFlush bool

	// MaxPasses bounds each flush. Default: 100.
	MaxPasses int

	// Observers receive the harness events in addition to its recorder.
	Observers []hooks.Observer

	// Lazy skips the initial flush, leaving the first render queued.
	Lazy bool
}

// Option configures a Harness.
type Option func(*Config)

// WithAutoFlush enables host auto-flush.
func WithAutoFlush() Option {
	return func(c *Config) {
		c.AutoFlush = true
	}
}

// WithMaxPasses sets the pass budget of each flush.
func WithMaxPasses(n int) Option {
	return func(c *Config) {
		c.MaxPasses = n
	}
}

// WithObserver adds an observer to the harness host.
func WithObserver(o hooks.Observer) Option {
	return func(c *Config) {
		c.Observers = append(c.Observers, o)
	}
}

// Lazy leaves the first render queued instead of flushing it.
func Lazy() Option {
	return func(c *Config) {
		c.Lazy = true
	}
}

// New mounts body as name and flushes its first render.
//
// Example:
//
//	h := hookstest.New(t, "widget", Widget, hookstest.WithAutoFlush())
func New(t testing.TB, name string, body hooks.Component, opts ...Option) *Harness {
	t.Helper()

	config := Config{MaxPasses: 100}
	for _, opt := range opts {
		opt(&config)
	}

	rec := hooks.NewRecorder()
	hostOpts := []hooks.HostOption{
		hooks.WithHostObserver(rec),
		hooks.WithMaxPasses(config.MaxPasses),
		hooks.WithAutoFlush(config.AutoFlush),
	}
	for _, o := range config.Observers {
		hostOpts = append(hostOpts, hooks.WithHostObserver(o))
	}

	h := &Harness{
		t:        t,
		name:     name,
		body:     body,
		config:   config,
		Host:     hooks.NewHost(hostOpts...),
		Recorder: rec,
	}
	h.Instance = h.Host.Mount(name, body)

	t.Cleanup(func() {
		if err := h.Host.Close(); err != nil {
			t.Errorf("teardown of %s failed: %v", name, err)
		}
	})

	if !config.Lazy {
		h.MustFlush()
	}
	return h
}

// Flush runs queued renders until the host is idle.
func (h *Harness) Flush() error {
	return h.Host.RunUntilIdle(context.Background())
}

// MustFlush flushes and fails the test on error.
func (h *Harness) MustFlush() {
	h.t.Helper()
	if err := h.Flush(); err != nil {
		h.t.Fatalf("flush of %s failed: %v", h.name, err)
	}
}

// Dispatch runs fn as an event handler of the instance and flushes.
//
// Example:
//
//	err := h.Dispatch(func() { setName.Set("Jane"); setAge.Set(31) })
func (h *Harness) Dispatch(fn func()) error {
	return h.Host.Dispatch(context.Background(), h.Instance, fn)
}

// Unmount tears the instance down.
func (h *Harness) Unmount() error {
	return h.Host.Unmount(h.Instance)
}

// Remount tears the instance down and mounts the body again with fresh
// state. Recorded events are kept.
func (h *Harness) Remount() {
	h.t.Helper()
	if err := h.Unmount(); err != nil {
		h.t.Fatalf("unmount of %s failed: %v", h.name, err)
	}
	h.Instance = h.Host.Mount(h.name, h.body)
	if !h.config.Lazy {
		h.MustFlush()
	}
}

// Transcript returns the recorded events of the given kinds, or all of them.
func (h *Harness) Transcript(kinds ...hooks.EventKind) []string {
	return h.Recorder.Transcript(kinds...)
}

// ExpectTranscript asserts the recorded transcript of the given kinds.
func (h *Harness) ExpectTranscript(want []string, kinds ...hooks.EventKind) {
	h.t.Helper()
	got := h.Transcript(kinds...)
	if !equal(got, want) {
		h.t.Errorf("transcript mismatch\ngot:\n  %s\nwant:\n  %s",
			strings.Join(got, "\n  "), strings.Join(want, "\n  "))
	}
}

// ExpectCount asserts how many events of kind were recorded.
func (h *Harness) ExpectCount(kind hooks.EventKind, want int) {
	h.t.Helper()
	if got := len(h.Recorder.Filter(kind)); got != want {
		h.t.Errorf("%s events = %d, want %d", kind, got, want)
	}
}

// ExpectGeneration asserts the instance's commit count.
func (h *Harness) ExpectGeneration(want uint64) {
	h.t.Helper()
	if got := h.Instance.Generation(); got != want {
		h.t.Errorf("%s generation = %d, want %d", h.name, got, want)
	}
}

// ExpectIdle asserts that no render is queued.
func (h *Harness) ExpectIdle() {
	h.t.Helper()
	if n := h.Host.Pending(); n != 0 {
		h.t.Errorf("%d renders still queued", n)
	}
}

// ExpectCode asserts that err carries a hook error with the given code,
// possibly among joined errors.
//
// Example:
//
//	hookstest.ExpectCode(t, h.Flush(), "H004")
func ExpectCode(t testing.TB, err error, code string) {
	t.Helper()
	if !HasCode(err, code) {
		t.Errorf("expected error %s, got %v", code, err)
	}
}

// HasCode reports whether err or any error it wraps or joins is a hook
// error with the given code.
func HasCode(err error, code string) bool {
	return err != nil && stderrors.Is(err, errors.New(code))
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
