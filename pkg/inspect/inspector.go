package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/hooks/pkg/hooks"
)

// DefaultHistory is the default number of recent events kept.
const DefaultHistory = 256

// Config configures an Inspector.
type Config struct {
	// Gatherer serves /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// History is the number of recent events kept for /events.
	History int

	// Logger receives request and error logs. Default: slog.Default().
	Logger *slog.Logger
}

// Option configures an Inspector.
type Option func(*Config)

// WithGatherer sets the Prometheus gatherer served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *Config) {
		c.Gatherer = g
	}
}

// WithHistory sets the number of recent events kept.
func WithHistory(n int) Option {
	return func(c *Config) {
		c.History = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// Inspector serves the state of a host over HTTP.
type Inspector struct {
	host   *hooks.Host
	config Config
	logger *slog.Logger
	stream *Stream

	mu     sync.Mutex
	recent []hooks.Event
}

// InstanceView is the JSON form of a mounted instance.
type InstanceView struct {
	ID          uint64           `json:"id"`
	Name        string           `json:"name"`
	Generation  uint64           `json:"generation"`
	NeedsRender bool             `json:"needsRender"`
	Disposed    bool             `json:"disposed"`
	Slots       []hooks.SlotInfo `json:"slots,omitempty"`
	Events      []hooks.Event    `json:"events,omitempty"`
}

// New creates an Inspector for host.
func New(host *hooks.Host, opts ...Option) *Inspector {
	config := Config{
		Gatherer: prometheus.DefaultGatherer,
		History:  DefaultHistory,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Inspector{
		host:   host,
		config: config,
		logger: config.Logger,
		stream: NewStream(),
	}
}

// Observe implements hooks.Observer. Events are kept in a bounded history
// and broadcast to stream clients.
func (ins *Inspector) Observe(e hooks.Event) {
	ins.mu.Lock()
	ins.recent = append(ins.recent, e)
	if over := len(ins.recent) - ins.config.History; over > 0 && ins.config.History > 0 {
		ins.recent = append(ins.recent[:0:0], ins.recent[over:]...)
	}
	ins.mu.Unlock()

	ins.stream.Observe(e)
}

// Stream returns the live event stream.
func (ins *Inspector) Stream() *Stream {
	return ins.stream
}

// Recent returns the kept events, oldest first.
func (ins *Inspector) Recent() []hooks.Event {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	return append([]hooks.Event(nil), ins.recent...)
}

// Handler returns the HTTP handler.
func (ins *Inspector) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/instances", func(r chi.Router) {
		r.Get("/", ins.listInstances)
		r.Get("/{id}", ins.getInstance)
		r.Post("/{id}/render", ins.renderInstance)
	})
	r.Get("/events", ins.listEvents)
	r.Handle("/events/ws", ins.stream)
	r.Handle("/metrics", promhttp.HandlerFor(ins.config.Gatherer, promhttp.HandlerOpts{}))

	return r
}

// Close disconnects stream clients.
func (ins *Inspector) Close() {
	ins.stream.Close()
}

func (ins *Inspector) listInstances(w http.ResponseWriter, r *http.Request) {
	instances := ins.host.Instances()
	out := make([]InstanceView, 0, len(instances))
	for _, inst := range instances {
		out = append(out, view(inst))
	}
	ins.writeJSON(w, http.StatusOK, out)
}

func (ins *Inspector) getInstance(w http.ResponseWriter, r *http.Request) {
	inst, ok := ins.lookup(w, r)
	if !ok {
		return
	}

	v := view(inst)
	v.Slots = inst.Slots()
	for _, e := range ins.Recent() {
		if e.Instance == inst.ID() {
			v.Events = append(v.Events, e)
		}
	}
	ins.writeJSON(w, http.StatusOK, v)
}

func (ins *Inspector) renderInstance(w http.ResponseWriter, r *http.Request) {
	inst, ok := ins.lookup(w, r)
	if !ok {
		return
	}

	before := inst.Generation()
	if err := ins.host.Render(r.Context(), inst); err != nil {
		ins.logger.Warn("inspector render failed", "instance", inst.String(), "error", err)
		ins.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	// Another goroutine is flushing the host; the render stays queued and
	// that loop commits it.
	if inst.Generation() == before {
		ins.writeJSON(w, http.StatusAccepted, view(inst))
		return
	}
	ins.writeJSON(w, http.StatusOK, view(inst))
}

func (ins *Inspector) listEvents(w http.ResponseWriter, r *http.Request) {
	events := ins.Recent()
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := events[:0]
		for _, e := range events {
			if string(e.Kind) == kind {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	ins.writeJSON(w, http.StatusOK, events)
}

func (ins *Inspector) lookup(w http.ResponseWriter, r *http.Request) (*hooks.Instance, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		ins.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid instance id"})
		return nil, false
	}
	inst, ok := ins.host.Lookup(id)
	if !ok {
		ins.writeJSON(w, http.StatusNotFound, map[string]string{"error": "instance not found"})
		return nil, false
	}
	return inst, true
}

func (ins *Inspector) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ins.logger.Error("inspector response failed", "error", err)
	}
}

func view(inst *hooks.Instance) InstanceView {
	return InstanceView{
		ID:          inst.ID(),
		Name:        inst.Name(),
		Generation:  inst.Generation(),
		NeedsRender: inst.NeedsRender(),
		Disposed:    inst.IsDisposed(),
	}
}
