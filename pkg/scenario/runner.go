package scenario

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/hooks/internal/errors"
	"github.com/vango-dev/hooks/pkg/hooks"
)

// Result is the outcome of one scenario run.
type Result struct {
	// RunID uniquely identifies the run.
	RunID string `json:"runId"`

	Scenario string        `json:"scenario"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	// Log holds the effect and cleanup log lines, in invocation order.
	Log []string `json:"log"`

	// Transcript is the filtered event transcript.
	Transcript []string `json:"transcript"`

	// Events is the full recorded event stream.
	Events []hooks.Event `json:"events"`

	// Errors lists the error codes reported by flushes and teardowns.
	Errors []string `json:"errors"`

	// Commits maps instance names to their committed render count.
	Commits map[string]uint64 `json:"commits"`

	// Failures lists mismatches against the scenario's expectations.
	Failures []string `json:"failures,omitempty"`
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Logger    *slog.Logger
	Observers []hooks.Observer
	MaxPasses int

	// OnHost is called with each new host before any step runs.
	OnHost func(*hooks.Host)
}

// RunnerOption configures a Runner.
type RunnerOption func(*RunnerConfig)

// WithLogger sets the logger passed to the host.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(c *RunnerConfig) {
		c.Logger = l
	}
}

// WithObserver adds an observer to every run, next to the run's recorder.
func WithObserver(o hooks.Observer) RunnerOption {
	return func(c *RunnerConfig) {
		c.Observers = append(c.Observers, o)
	}
}

// WithMaxPasses sets the default pass budget of each flush.
func WithMaxPasses(n int) RunnerOption {
	return func(c *RunnerConfig) {
		c.MaxPasses = n
	}
}

// WithHostHook sets a function called with each new host before any step
// runs, for attaching observers that need the host itself.
func WithHostHook(fn func(*hooks.Host)) RunnerOption {
	return func(c *RunnerConfig) {
		c.OnHost = fn
	}
}

// Runner executes scenarios.
type Runner struct {
	config RunnerConfig
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	config := RunnerConfig{MaxPasses: 1000}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Runner{config: config}
}

// run is the state of one scenario execution.
type run struct {
	scenario   *Scenario
	host       *hooks.Host
	components map[string]*Component
	instances  map[string]*mountedInstance
	result     *Result

	mu  sync.Mutex
	log []string
}

// mountedInstance tracks the setters of one mounted instance.
type mountedInstance struct {
	inst      *hooks.Instance
	component *Component
	setters   []*hooks.Setter[any]
}

// Run executes s and checks its expectations. The returned error reports
// invalid scenarios and a cancelled ctx; hook failures are part of the
// result.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	sess, err := r.Start(ctx, s)
	if err != nil {
		return nil, err
	}
	return sess.Close()
}

// Session is a scenario whose steps have run but whose host is still
// open, so its instances can be inspected.
type Session struct {
	runner *Runner
	run    *run
	rec    *hooks.Recorder
	err    error
	closed bool
}

// Start validates s, executes its steps and returns the open session.
func (r *Runner) Start(ctx context.Context, s *Scenario) (*Session, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	rec := hooks.NewRecorder()
	maxPasses := r.config.MaxPasses
	if s.MaxPasses > 0 {
		maxPasses = s.MaxPasses
	}
	opts := []hooks.HostOption{
		hooks.WithLogger(r.config.Logger.With("scenario", s.Name)),
		hooks.WithHostObserver(rec),
		hooks.WithMaxPasses(maxPasses),
		hooks.WithAutoFlush(s.AutoFlush),
	}
	for _, o := range r.config.Observers {
		opts = append(opts, hooks.WithHostObserver(o))
	}

	x := &run{
		scenario:   s,
		host:       hooks.NewHost(opts...),
		components: make(map[string]*Component, len(s.Components)),
		instances:  make(map[string]*mountedInstance),
		result: &Result{
			RunID:    uuid.Must(uuid.NewV7()).String(),
			Scenario: s.Name,
			Started:  time.Now(),
			Commits:  make(map[string]uint64),
		},
	}
	for i := range s.Components {
		x.components[s.Components[i].Name] = &s.Components[i]
	}
	if r.config.OnHost != nil {
		r.config.OnHost(x.host)
	}

	r.config.Logger.Debug("scenario started", "scenario", s.Name, "run_id", x.result.RunID)

	return &Session{
		runner: r,
		run:    x,
		rec:    rec,
		err:    x.steps(ctx, s.Steps),
	}, nil
}

// Host returns the session's host.
func (sess *Session) Host() *hooks.Host {
	return sess.run.host
}

// Close tears the host down, then completes and checks the result.
// Close is idempotent.
func (sess *Session) Close() (*Result, error) {
	x := sess.run
	if sess.closed {
		return x.result, sess.err
	}
	sess.closed = true

	for name, m := range x.instances {
		x.result.Commits[name] = m.inst.Generation()
	}
	x.report(x.host.Close())

	kinds := make([]hooks.EventKind, 0, len(x.scenario.Trace))
	for _, k := range x.scenario.Trace {
		kinds = append(kinds, hooks.EventKind(k))
	}
	x.result.Events = sess.rec.Events()
	x.result.Transcript = sess.rec.Transcript(kinds...)
	x.mu.Lock()
	x.result.Log = append([]string(nil), x.log...)
	x.mu.Unlock()
	x.result.Duration = time.Since(x.result.Started)

	if sess.err != nil {
		return x.result, sess.err
	}
	if x.scenario.Expect != nil {
		x.result.Failures = x.scenario.Expect.Check(x.result)
	}

	sess.runner.config.Logger.Debug("scenario finished",
		"scenario", x.scenario.Name,
		"run_id", x.result.RunID,
		"passed", x.result.Passed(),
		"duration", x.result.Duration)
	return x.result, nil
}

func (x *run) steps(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := x.step(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (x *run) step(ctx context.Context, step Step) error {
	switch step.Kind() {
	case StepMount:
		c := x.components[step.Mount]
		name := step.InstanceName()
		m := &mountedInstance{component: c}
		x.instances[name] = m
		m.inst = x.host.Mount(name, x.body(m))

	case StepSet:
		x.write(step.Set)

	case StepUpdate:
		x.write(step.Update)

	case StepBatch:
		var err error
		x.host.Batch(func() {
			err = x.steps(ctx, step.Batch)
		})
		return err

	case StepFlush:
		x.report(x.host.RunUntilIdle(ctx))

	case StepRender:
		x.report(x.host.Render(ctx, x.instances[step.Render].inst))

	case StepTeardown:
		x.report(x.host.Unmount(x.instances[step.Teardown].inst))
	}
	return ctx.Err()
}

// body builds the component body for m.
func (x *run) body(m *mountedInstance) hooks.Component {
	c := m.component
	return func(inst *hooks.Instance) {
		values := make([]any, len(c.State))
		setters := make([]*hooks.Setter[any], len(c.State))
		for i, st := range c.State {
			values[i], setters[i] = hooks.UseState(inst, st.Initial)
		}
		m.setters = setters

		for _, e := range c.Effects {
			e := e
			text := expand(e.Log, c, values)
			cleanup := expand(e.Cleanup, c, values)

			var deps hooks.Deps
			if e.Deps != nil {
				deps = hooks.DepsOf()
				for _, name := range *e.Deps {
					deps = append(deps, values[c.stateIndex(name)])
				}
			}

			hooks.UseEffect(inst, func() hooks.Cleanup {
				if text != "" {
					x.append(text)
				}
				if e.Write != nil {
					w := *e.Write
					m.writeWith(setters, &w)
				}
				if e.Panic != "" {
					panic(e.Panic)
				}
				if cleanup == "" {
					return nil
				}
				return func() { x.append(cleanup) }
			}, deps)
		}
	}
}

// write applies a set or update step. An instance that has not rendered
// has no setters yet, so the write is reported instead of dropped.
func (x *run) write(w *Write) {
	m := x.instances[w.Instance]
	if m.setters == nil {
		x.report(errors.New("H162").
			WithDetailf("instance %q has not rendered yet; the write to %q was not applied", w.Instance, w.State).
			WithSuggestion("Add a flush step after the mount, or set autoFlush: true."))
		return
	}
	m.writeWith(m.setters, w)
}

func (m *mountedInstance) writeWith(setters []*hooks.Setter[any], w *Write) {
	i := m.component.stateIndex(w.State)
	if i < 0 || i >= len(setters) {
		return
	}
	if w.Add != 0 {
		add := w.Add
		setters[i].Update(func(prev any) any {
			n, _ := prev.(int)
			return n + add
		})
		return
	}
	setters[i].Set(w.Value)
}

func (x *run) append(line string) {
	x.mu.Lock()
	x.log = append(x.log, line)
	x.mu.Unlock()
}

// report records the codes of err, which may be a joined error.
func (x *run) report(err error) {
	for _, e := range flatten(err) {
		code := "unknown"
		var herr *errors.HookError
		if stderrors.As(e, &herr) {
			code = herr.Code
		}
		x.result.Errors = append(x.result.Errors, code)
	}
}

// flatten expands joined errors into their members.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}

// expand replaces {state} placeholders with rendered values.
func expand(text string, c *Component, values []any) string {
	if text == "" || !strings.Contains(text, "{") {
		return text
	}
	pairs := make([]string, 0, 2*len(c.State))
	for i, st := range c.State {
		pairs = append(pairs, "{"+st.Name+"}", fmt.Sprint(values[i]))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Check compares r against e and returns one line per mismatch.
func (e *Expect) Check(r *Result) []string {
	var failures []string
	if e.Log != nil && !equalStrings(e.Log, r.Log) {
		failures = append(failures, fmt.Sprintf("log = %q, want %q", r.Log, e.Log))
	}
	if e.Transcript != nil && !equalStrings(e.Transcript, r.Transcript) {
		failures = append(failures, fmt.Sprintf("transcript = %q, want %q", r.Transcript, e.Transcript))
	}
	if e.Errors != nil && !equalStrings(e.Errors, r.Errors) {
		failures = append(failures, fmt.Sprintf("errors = %q, want %q", r.Errors, e.Errors))
	}
	for name, want := range e.Commits {
		if got := r.Commits[name]; got != want {
			failures = append(failures, fmt.Sprintf("commits[%s] = %d, want %d", name, got, want))
		}
	}
	return failures
}

func equalStrings(a, b []string) bool {
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
