package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/hooks/pkg/hooks"
)

// Default tracer name.
const defaultTracerName = "hooks"

// TracerConfig configures the OpenTelemetry observer.
type TracerConfig struct {
	// TracerName is the name of the tracer (default: "hooks").
	TracerName string

	// Tracer overrides the tracer resolved from the global provider.
	Tracer trace.Tracer

	// Filter determines which instances are traced, by component name.
	// If nil, all instances are traced.
	Filter func(name string) bool

	// Context is the parent context of every span (default: Background).
	Context context.Context
}

// TracerOption configures the OpenTelemetry observer.
type TracerOption func(*TracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *TracerConfig) {
		c.TracerName = name
	}
}

// WithTracer sets the tracer directly.
func WithTracer(tracer trace.Tracer) TracerOption {
	return func(c *TracerConfig) {
		c.Tracer = tracer
	}
}

// WithComponentFilter sets a filter on component names.
func WithComponentFilter(filter func(name string) bool) TracerOption {
	return func(c *TracerConfig) {
		c.Filter = filter
	}
}

// WithParentContext sets the parent context of commit spans.
func WithParentContext(ctx context.Context) TracerOption {
	return func(c *TracerConfig) {
		c.Context = ctx
	}
}

// Tracer is a hooks.Observer that records one span per commit pass.
type Tracer struct {
	config TracerConfig
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[uint64]trace.Span
}

// NewTracer creates a tracing observer.
//
// Span layout:
//   - "hooks.commit <component>": from render_committed to commit_finished,
//     with an event per effect_run and cleanup_run
//   - "hooks.render_aborted <component>": zero-length span for an aborted render
//
// Failures are recorded on the span and set its status to Error.
func NewTracer(opts ...TracerOption) *Tracer {
	config := TracerConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Context == nil {
		config.Context = context.Background()
	}
	tracer := config.Tracer
	if tracer == nil {
		tracer = otel.Tracer(config.TracerName)
	}
	return &Tracer{
		config: config,
		tracer: tracer,
		spans:  make(map[uint64]trace.Span),
	}
}

// Observe implements hooks.Observer.
func (t *Tracer) Observe(e hooks.Event) {
	if t.config.Filter != nil && !t.config.Filter(e.Name) {
		return
	}

	switch e.Kind {
	case hooks.EventRenderCommitted:
		_, span := t.tracer.Start(t.config.Context, "hooks.commit "+e.Name,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithTimestamp(e.Time),
			trace.WithAttributes(instanceAttributes(e)...),
		)
		t.mu.Lock()
		if prev, ok := t.spans[e.Instance]; ok {
			prev.End()
		}
		t.spans[e.Instance] = span
		t.mu.Unlock()

	case hooks.EventEffectRun, hooks.EventCleanupRun:
		if span := t.span(e.Instance); span != nil {
			span.AddEvent(string(e.Kind),
				trace.WithTimestamp(e.Time),
				trace.WithAttributes(attribute.Int("hooks.slot", e.Slot)))
		}

	case hooks.EventEffectFailed, hooks.EventCleanupFailed:
		if span := t.span(e.Instance); span != nil && e.Err != nil {
			span.RecordError(e.Err,
				trace.WithTimestamp(e.Time),
				trace.WithAttributes(
					attribute.Int("hooks.slot", e.Slot),
					attribute.String("hooks.error_code", errorCode(e.Err)),
				))
		}

	case hooks.EventCommitFinished:
		t.mu.Lock()
		span, ok := t.spans[e.Instance]
		delete(t.spans, e.Instance)
		t.mu.Unlock()
		if !ok {
			return
		}
		if e.Err != nil {
			span.SetStatus(codes.Error, e.Err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(attribute.Int64("hooks.commit_duration_us", e.Duration.Microseconds()))
		span.End(trace.WithTimestamp(e.Time))

	case hooks.EventRenderAborted:
		_, span := t.tracer.Start(t.config.Context, "hooks.render_aborted "+e.Name,
			trace.WithTimestamp(e.Time),
			trace.WithAttributes(instanceAttributes(e)...),
		)
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		span.End(trace.WithTimestamp(e.Time))

	case hooks.EventTeardown:
		t.mu.Lock()
		span, ok := t.spans[e.Instance]
		delete(t.spans, e.Instance)
		t.mu.Unlock()
		if ok {
			span.End()
		}
	}
}

// Open returns the number of commit spans not yet ended.
func (t *Tracer) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

func (t *Tracer) span(id uint64) trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spans[id]
}

func instanceAttributes(e hooks.Event) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("hooks.component", e.Name),
		attribute.Int64("hooks.instance", int64(e.Instance)),
		attribute.Int64("hooks.generation", int64(e.Generation)),
	}
}
