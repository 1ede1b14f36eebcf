package hooks

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/hooks/internal/errors"
)

// HookType identifies the kind of hook occupying a slot.
type HookType uint8

const (
	HookState HookType = iota + 1
	HookEffect
	HookRef
)

// String returns a human-readable name for the hook type.
func (h HookType) String() string {
	switch h {
	case HookState:
		return "State"
	case HookEffect:
		return "Effect"
	case HookRef:
		return "Ref"
	default:
		return "Unknown"
	}
}

// slot is one order-indexed unit of per-instance state.
type slot struct {
	kind   HookType
	state  *stateCell
	effect *effectSlot
	ref    any
}

// Instance is one mounted component. It owns an ordered sequence of slots
// whose identity is their declaration order within a render.
//
// The render/commit methods must be called from one goroutine at a time
// (normally the Host loop). State setters may be called from any goroutine.
type Instance struct {
	id       uint64
	name     string
	logger   *slog.Logger
	observer Observer
	request  func(*Instance)

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards slot values, the slot slice header and dirty.
	mu    sync.Mutex
	slots []*slot
	dirty bool

	// Render/commit bookkeeping, owned by the rendering goroutine.
	cursor     int
	rendering  bool
	committing bool
	renderErr  error
	generation atomic.Uint64

	disposed atomic.Bool

	// retiring stops the commit pass in progress; set by a host that will
	// tear the instance down once the pass ends.
	retiring atomic.Bool
}

// InstanceOption configures an Instance.
type InstanceOption func(*Instance)

// WithObserver sets the observer notified of the instance's events.
func WithObserver(o Observer) InstanceOption {
	return func(inst *Instance) {
		inst.observer = o
	}
}

// WithInstanceLogger sets the logger used for diagnostics.
func WithInstanceLogger(l *slog.Logger) InstanceOption {
	return func(inst *Instance) {
		inst.logger = l
	}
}

// WithRenderRequest sets the function called when the instance needs a new
// render. It is called at most once between two renders, from the goroutine
// that performed the first changed state write.
func WithRenderRequest(fn func(*Instance)) InstanceOption {
	return func(inst *Instance) {
		inst.request = fn
	}
}

// WithContext sets the parent of the instance context. The instance
// context is cancelled when the instance is torn down.
func WithContext(ctx context.Context) InstanceOption {
	return func(inst *Instance) {
		inst.ctx = ctx
	}
}

// NewInstance creates an unmounted component instance with no slots.
func NewInstance(name string, opts ...InstanceOption) *Instance {
	inst := &Instance{
		id:   nextID(),
		name: name,
		ctx:  context.Background(),
	}
	for _, opt := range opts {
		opt(inst)
	}
	if inst.logger == nil {
		inst.logger = slog.Default()
	}
	inst.logger = inst.logger.With("instance", inst.String())
	inst.ctx, inst.cancel = context.WithCancel(inst.ctx)
	return inst
}

// ID returns the unique identifier of the instance.
func (inst *Instance) ID() uint64 {
	return inst.id
}

// Name returns the component name the instance was created with.
func (inst *Instance) Name() string {
	return inst.name
}

// String returns "name#id".
func (inst *Instance) String() string {
	return fmt.Sprintf("%s#%d", inst.name, inst.id)
}

// Generation returns the number of successfully committed renders.
func (inst *Instance) Generation() uint64 {
	return inst.generation.Load()
}

// IsDisposed returns true once the instance has been torn down.
func (inst *Instance) IsDisposed() bool {
	return inst.disposed.Load()
}

// Context returns a context that is cancelled when the instance is torn
// down, after all cleanups have run.
func (inst *Instance) Context() context.Context {
	return inst.ctx
}

// NeedsRender reports whether a state write changed a value since the last
// BeginRender.
func (inst *Instance) NeedsRender() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.dirty
}

// Len returns the number of slots committed or declared so far.
func (inst *Instance) Len() int {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return len(inst.slots)
}

// =============================================================================
// Render Cycle
// =============================================================================

// BeginRender opens a fresh slot cursor for the component body and takes a
// consistent snapshot of every state slot. Writes that land after this point
// are visible to the next render, not this one.
func (inst *Instance) BeginRender() {
	inst.cursor = 0
	inst.renderErr = nil
	inst.rendering = true

	if inst.disposed.Load() {
		return
	}

	inst.mu.Lock()
	if inst.generation.Load() == 0 {
		// No committed render yet: a failed first render leaves nothing behind.
		inst.slots = inst.slots[:0]
	}
	for _, s := range inst.slots {
		if s.kind == HookState {
			s.state.snapshot = s.state.value
		}
	}
	inst.dirty = false
	inst.mu.Unlock()

	inst.emit(EventRenderStarted, -1, nil)
}

// claim returns the slot for the next declaration of kind. A nil slot means
// the instance is torn down and the declaration must be a no-op.
// Ordering violations panic with a *errors.HookError.
func (inst *Instance) claim(kind HookType) (s *slot, index int, fresh bool) {
	if inst.disposed.Load() {
		inst.stale(-1)
		return nil, -1, false
	}
	if !inst.rendering {
		panic(errors.New("H008").
			WithSite(inst.String(), inst.cursor).
			WithDetailf("%s hook declared outside BeginRender/CommitRender", kind))
	}

	index = inst.cursor
	inst.cursor++

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.generation.Load() == 0 {
		s = &slot{kind: kind}
		inst.slots = append(inst.slots, s)
		return s, index, true
	}

	if index >= len(inst.slots) {
		inst.fail(errors.New("H001").
			WithSite(inst.String(), index).
			WithDetailf("extra %s hook at index %d, previous renders declared %d hooks", kind, index, len(inst.slots)).
			WithSuggestion("declare every hook unconditionally, before any early return"))
	}
	s = inst.slots[index]
	if s.kind != kind {
		inst.fail(errors.New("H001").
			WithSite(inst.String(), index).
			WithDetailf("expected %s hook at index %d, got %s", s.kind, index, kind).
			WithSuggestion("move the condition inside the effect body instead of around the hook"))
	}
	return s, index, false
}

// fail poisons the current render and panics with err.
func (inst *Instance) fail(err *errors.HookError) {
	inst.renderErr = err
	panic(err)
}

// AbortRender marks the current render as failed with err. The next
// CommitRender returns err without touching committed state. Hosts call this
// when the component body panics.
func (inst *Instance) AbortRender(err error) {
	if inst.renderErr == nil {
		inst.renderErr = err
	}
}

// CommitRender completes the current render and runs the effect
// reconciliation pass.
//
// Slot count and kinds are validated first; on violation the pass is
// aborted and the instance keeps its last committed state. Otherwise the
// generation is bumped and effect slots are processed in registration order:
// a slot that must re-run has its previous cleanup invoked, then its new body.
// Effect and cleanup panics are recovered, the slot is treated as having run,
// and all failures are returned joined.
//
// State writes made by effects or cleanups request a new render; they never
// re-enter this pass.
func (inst *Instance) CommitRender() error {
	if inst.committing {
		return errors.New("H006").WithSite(inst.String(), -1)
	}
	if !inst.rendering {
		return errors.New("H008").
			WithSite(inst.String(), -1).
			WithDetail("CommitRender called without BeginRender")
	}
	inst.rendering = false

	if inst.disposed.Load() {
		return nil
	}

	if err := inst.renderErr; err != nil {
		inst.renderErr = nil
		inst.discardPending()
		inst.emit(EventRenderAborted, -1, err)
		return err
	}

	inst.mu.Lock()
	declared := len(inst.slots)
	inst.mu.Unlock()
	if inst.generation.Load() > 0 && inst.cursor != declared {
		err := errors.New("H001").
			WithSite(inst.String(), inst.cursor).
			WithDetailf("expected %d hooks, got %d", declared, inst.cursor).
			WithSuggestion("declare every hook unconditionally, before any early return")
		inst.discardPending()
		inst.emit(EventRenderAborted, -1, err)
		return err
	}

	inst.committing = true
	defer func() { inst.committing = false }()

	start := time.Now()
	gen := inst.generation.Add(1)
	inst.emit(EventRenderCommitted, -1, nil)

	inst.mu.Lock()
	slots := append([]*slot(nil), inst.slots...)
	inst.mu.Unlock()

	var errs []error
	for i, s := range slots {
		if s.kind != HookEffect {
			continue
		}
		if inst.disposed.Load() || inst.retiring.Load() {
			// Torn down, or about to be, from inside the pass.
			break
		}
		errs = append(errs, inst.reconcile(i, s.effect)...)
	}

	inst.observe(Event{
		Kind:       EventCommitFinished,
		Slot:       -1,
		Generation: gen,
		Duration:   time.Since(start),
		Err:        stderrors.Join(errs...),
	})
	inst.logger.Debug("commit finished", "generation", gen, "failures", len(errs))

	return stderrors.Join(errs...)
}

// discardPending drops effect declarations of an aborted render.
func (inst *Instance) discardPending() {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	for _, s := range inst.slots {
		if s.kind == HookEffect {
			s.effect.next = nil
			s.effect.nextDeps = nil
		}
	}
}

// Teardown runs every outstanding cleanup exactly once, in registration
// order, then discards the slots and cancels the instance context.
// Subsequent calls are no-ops. Cleanup panics are recovered and returned
// joined. An effect body still running when Teardown starts runs the
// cleanup it returns as soon as it returns, so every cleanup still runs
// exactly once; Host.Unmount avoids that case by deferring teardown until
// the pass ends.
func (inst *Instance) Teardown() error {
	if inst.disposed.Swap(true) {
		return nil
	}

	inst.mu.Lock()
	slots := inst.slots
	inst.slots = nil
	inst.dirty = false
	inst.mu.Unlock()

	var errs []error
	for i, s := range slots {
		if s.kind != HookEffect {
			continue
		}
		if err := inst.runCleanup(i, s.effect); err != nil {
			errs = append(errs, err)
		}
		inst.mu.Lock()
		s.effect.active = false
		inst.mu.Unlock()
	}

	inst.cancel()
	inst.emit(EventTeardown, -1, nil)
	inst.logger.Debug("instance torn down", "cleanup_failures", len(errs))

	return stderrors.Join(errs...)
}

// =============================================================================
// Diagnostics
// =============================================================================

// stale reports a write or declaration against a torn-down instance.
func (inst *Instance) stale(index int) {
	err := errors.New("H003").WithSite(inst.String(), index)
	inst.logger.Warn("ignoring write to torn-down instance", "slot", index)
	inst.emit(EventStaleWrite, index, err)
}

func (inst *Instance) emit(kind EventKind, index int, err error) {
	inst.observe(Event{Kind: kind, Slot: index, Err: err})
}

func (inst *Instance) observe(e Event) {
	if inst.observer == nil {
		return
	}
	e.Instance = inst.id
	e.Name = inst.name
	if e.Generation == 0 {
		e.Generation = inst.generation.Load()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Err != nil {
		e.Error = e.Err.Error()
	}
	inst.observer.Observe(e)
}

// markDirty records a changed write and requests a render if none is
// outstanding. Must be called with mu held; returns the request to make
// after unlocking.
func (inst *Instance) markDirty() func() {
	if inst.dirty {
		return nil
	}
	inst.dirty = true
	if inst.request == nil {
		return nil
	}
	return func() {
		inst.emit(EventRenderRequested, -1, nil)
		inst.request(inst)
	}
}

// SlotInfo describes one slot for diagnostics.
type SlotInfo struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`

	// Value is the latest stored value of a state or ref slot.
	Value string `json:"value,omitempty"`

	// Deps is the committed dependency count of an effect slot, -1 when the
	// effect has no list.
	Deps int `json:"deps,omitempty"`

	// Active reports whether an effect body has run.
	Active bool `json:"active,omitempty"`

	// Cleanup reports whether an effect holds an outstanding cleanup.
	Cleanup bool `json:"cleanup,omitempty"`
}

// Slots describes the instance's slots in declaration order.
func (inst *Instance) Slots() []SlotInfo {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	out := make([]SlotInfo, 0, len(inst.slots))
	for i, s := range inst.slots {
		info := SlotInfo{Index: i, Kind: s.kind.String()}
		switch s.kind {
		case HookState:
			if s.state != nil {
				info.Value = fmt.Sprintf("%v", s.state.value)
			}
		case HookRef:
			if r, ok := s.ref.(interface{ describe() string }); ok {
				info.Value = r.describe()
			}
		case HookEffect:
			if e := s.effect; e != nil {
				info.Deps = -1
				if e.deps != nil {
					info.Deps = len(e.deps)
				}
				info.Active = e.active
				info.Cleanup = e.cleanup != nil
			}
		}
		out = append(out, info)
	}
	return out
}
