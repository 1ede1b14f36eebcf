package hooks

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"

	"github.com/vango-dev/hooks/internal/errors"
)

// Component is a component body. It declares its hooks on inst, in the same
// order on every render.
type Component func(inst *Instance)

// HostConfig configures a Host.
type HostConfig struct {
	// Logger receives diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Observers receive every event of every mounted instance.
	Observers []Observer

	// MaxPasses bounds the render passes run by one RunUntilIdle call.
	// Zero means unbounded.
	MaxPasses int

	// AutoFlush runs queued renders as soon as they are requested outside a
	// batch, on the requesting goroutine. When false, the owner of the Host
	// drives it with Step or RunUntilIdle.
	AutoFlush bool
}

// HostOption configures a Host.
type HostOption func(*HostConfig)

// WithLogger sets the host logger.
func WithLogger(l *slog.Logger) HostOption {
	return func(c *HostConfig) {
		c.Logger = l
	}
}

// WithHostObserver adds an observer for all mounted instances.
func WithHostObserver(o Observer) HostOption {
	return func(c *HostConfig) {
		c.Observers = append(c.Observers, o)
	}
}

// WithMaxPasses sets the render pass budget of RunUntilIdle.
func WithMaxPasses(n int) HostOption {
	return func(c *HostConfig) {
		c.MaxPasses = n
	}
}

// WithAutoFlush makes the host flush renders when they are requested.
func WithAutoFlush(enabled bool) HostOption {
	return func(c *HostConfig) {
		c.AutoFlush = enabled
	}
}

// mounted pairs an instance with its component body.
type mounted struct {
	inst *Instance
	body Component
}

// Host is a minimal render loop. It owns a FIFO queue of instances that need
// a render and runs one render/commit pass at a time, so a state write made
// inside a commit pass is processed after that pass, never inside it.
type Host struct {
	config HostConfig
	logger *slog.Logger

	obsMu     sync.RWMutex
	observers observers

	mu         sync.Mutex
	queue      []*Instance
	queued     map[uint64]bool
	instances  map[uint64]*mounted
	order      []uint64
	running    bool
	batchDepth int
	wake       chan struct{}

	// current is the instance whose pass is in flight; retiring holds
	// instances unmounted during their own pass, torn down when it ends.
	current  *Instance
	retiring map[uint64]bool
}

// NewHost creates a Host.
func NewHost(opts ...HostOption) *Host {
	config := HostConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Host{
		config:    config,
		logger:    config.Logger,
		observers: append(observers(nil), config.Observers...),
		queued:    make(map[uint64]bool),
		instances: make(map[uint64]*mounted),
		retiring:  make(map[uint64]bool),
		wake:      make(chan struct{}, 1),
	}
}

// Observe fans an event out to the host's observers.
func (h *Host) Observe(e Event) {
	h.obsMu.RLock()
	obs := h.observers
	h.obsMu.RUnlock()
	obs.Observe(e)
}

// AddObserver attaches o to every instance of the host, mounted or not.
func (h *Host) AddObserver(o Observer) {
	h.obsMu.Lock()
	h.observers = append(h.observers[:len(h.observers):len(h.observers)], o)
	h.obsMu.Unlock()
}

// Mount creates an instance for body and queues its first render.
func (h *Host) Mount(name string, body Component) *Instance {
	inst := NewInstance(name,
		WithInstanceLogger(h.logger),
		WithObserver(h),
		WithRenderRequest(h.enqueue),
	)

	h.mu.Lock()
	h.instances[inst.id] = &mounted{inst: inst, body: body}
	h.order = append(h.order, inst.id)
	h.mu.Unlock()

	h.logger.Debug("mounted instance", "instance", inst.String())
	h.enqueue(inst)
	return inst
}

// Unmount tears the instance down and forgets it.
//
// When the instance is in the middle of a render/commit pass, whether
// Unmount is called from one of its effects or from another goroutine, the
// rest of the pass is skipped and teardown runs on the loop goroutine as
// soon as the pass ends; Unmount then returns nil without waiting and any
// cleanup failure is returned by the Step that ran the pass.
func (h *Host) Unmount(inst *Instance) error {
	h.mu.Lock()
	delete(h.instances, inst.id)
	delete(h.queued, inst.id)
	h.removeQueued(inst)
	for i, id := range h.order {
		if id == inst.id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	deferred := h.current == inst
	if deferred {
		h.retiring[inst.id] = true
		inst.retiring.Store(true)
	}
	h.mu.Unlock()

	if deferred {
		h.logger.Debug("teardown deferred to end of pass", "instance", inst.String())
		return nil
	}
	return inst.Teardown()
}

// Close unmounts every instance, most recently mounted first. An instance
// whose pass is in flight is torn down when that pass ends, as with Unmount.
func (h *Host) Close() error {
	h.mu.Lock()
	order := append([]uint64(nil), h.order...)
	h.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		h.mu.Lock()
		m := h.instances[order[i]]
		h.mu.Unlock()
		if m == nil {
			continue
		}
		if err := h.Unmount(m.inst); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Instances returns the mounted instances in mount order.
func (h *Host) Instances() []*Instance {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Instance, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.instances[id].inst)
	}
	return out
}

// Lookup returns the mounted instance with the given ID.
func (h *Host) Lookup(id uint64) (*Instance, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.instances[id]
	if !ok {
		return nil, false
	}
	return m.inst, true
}

// Pending returns the number of instances waiting for a render.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// Wake returns a channel that receives a value whenever a render is queued.
func (h *Host) Wake() <-chan struct{} {
	return h.wake
}

// enqueue adds inst to the render queue unless it is already there.
func (h *Host) enqueue(inst *Instance) {
	var autorun bool

	h.mu.Lock()
	if _, ok := h.instances[inst.id]; !ok || h.queued[inst.id] {
		h.mu.Unlock()
		return
	}
	h.queued[inst.id] = true
	h.queue = append(h.queue, inst)
	autorun = h.config.AutoFlush && !h.running && h.batchDepth == 0
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}

	if autorun {
		if err := h.RunUntilIdle(context.Background()); err != nil {
			h.logger.Error("render flush failed", "error", err)
		}
	}
}

func (h *Host) removeQueued(inst *Instance) {
	for i, q := range h.queue {
		if q == inst {
			h.queue = append(h.queue[:i], h.queue[i+1:]...)
			return
		}
	}
}

// Batch runs fn as one synchronous scope: state writes inside it coalesce
// and, with AutoFlush, the resulting renders run once fn returns.
func (h *Host) Batch(fn func()) {
	h.mu.Lock()
	h.batchDepth++
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.batchDepth--
		flush := h.batchDepth == 0 && h.config.AutoFlush && !h.running && len(h.queue) > 0
		h.mu.Unlock()

		if flush {
			if err := h.RunUntilIdle(context.Background()); err != nil {
				h.logger.Error("render flush failed", "error", err)
			}
		}
	}()

	fn()
}

// Dispatch runs an event handler for inst inside a batch, then flushes the
// resulting renders. Handlers for torn-down instances are dropped.
func (h *Host) Dispatch(ctx context.Context, inst *Instance, handler func()) error {
	if inst.IsDisposed() {
		inst.stale(-1)
		return nil
	}
	h.Batch(handler)
	return h.RunUntilIdle(ctx)
}

// Step runs one queued render/commit pass. It reports false when the queue
// is empty or another goroutine is already running the loop.
func (h *Host) Step(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	h.mu.Lock()
	if h.running || len(h.queue) == 0 {
		h.mu.Unlock()
		return false, nil
	}
	h.running = true
	m := h.pop()
	if m != nil {
		h.current = m.inst
	}
	h.mu.Unlock()

	if m == nil {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
		return true, nil
	}

	var retire bool
	err := func() error {
		defer func() {
			h.mu.Lock()
			h.running = false
			h.current = nil
			retire = h.retiring[m.inst.id]
			delete(h.retiring, m.inst.id)
			h.mu.Unlock()
		}()
		return h.render(m)
	}()

	if retire {
		err = stderrors.Join(err, m.inst.Teardown())
	}
	return true, err
}

// pop removes the head of the queue. Must be called with mu held.
func (h *Host) pop() *mounted {
	inst := h.queue[0]
	h.queue = h.queue[1:]
	delete(h.queued, inst.id)
	return h.instances[inst.id]
}

// RunUntilIdle runs queued passes until the queue is empty. Failed passes do
// not stop the loop; their errors are returned joined. When the pass budget
// is exhausted the remaining work stays queued and ErrPassBudgetExceeded is
// returned.
//
// Calls made while the loop is already running return immediately; the
// running loop picks up whatever they would have processed.
func (h *Host) RunUntilIdle(ctx context.Context) error {
	var errs []error
	passes := 0

	for {
		if h.config.MaxPasses > 0 && passes >= h.config.MaxPasses && h.Pending() > 0 {
			errs = append(errs, errors.New("H007").
				WithDetailf("%d passes run, %d instances still queued", passes, h.Pending()))
			break
		}

		ran, err := h.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				errs = append(errs, err)
				break
			}
			errs = append(errs, err)
		}
		if !ran {
			break
		}
		passes++
	}

	return stderrors.Join(errs...)
}

// Render queues inst and runs the loop until idle.
func (h *Host) Render(ctx context.Context, inst *Instance) error {
	h.enqueue(inst)
	return h.RunUntilIdle(ctx)
}

// render runs one begin/body/commit cycle for m.
func (h *Host) render(m *mounted) error {
	inst := m.inst
	if inst.IsDisposed() {
		return nil
	}

	inst.BeginRender()
	if err := protect(func() { m.body(inst) }); err != nil {
		var herr *errors.HookError
		if !stderrors.As(err, &herr) {
			herr = errors.New("H009").WithSite(inst.String(), -1).Wrap(err)
		}
		inst.AbortRender(herr)
	}
	return inst.CommitRender()
}
