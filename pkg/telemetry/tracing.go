package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for filament runtimes.
const defaultTracerName = "filament"

// TracingConfig configures the OpenTelemetry hooks.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "filament").
	TracerName string

	// MinEvaluationDuration drops evaluation spans shorter than this.
	// Most computed reads take microseconds; recording every one of them
	// drowns a trace backend. Zero records everything.
	MinEvaluationDuration time.Duration

	// TraceNotifications also records a span per delivered notification.
	// Disabled by default because of volume.
	TraceNotifications bool

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// TracingOption configures the OpenTelemetry hooks.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithMinEvaluationDuration sets the evaluation span threshold.
func WithMinEvaluationDuration(d time.Duration) TracingOption {
	return func(c *TracingConfig) {
		c.MinEvaluationDuration = d
	}
}

// WithTraceNotifications enables per-notification spans.
func WithTraceNotifications(enable bool) TracingOption {
	return func(c *TracingConfig) {
		c.TraceNotifications = enable
	}
}

func defaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName:            defaultTracerName,
		MinEvaluationDuration: 100 * time.Microsecond,
	}
}

// Tracing implements filament.Hooks by recording OpenTelemetry spans.
//
// The hooks fire after the fact, so spans are created retroactively with
// explicit start and end timestamps. The tracer comes from the global
// OpenTelemetry tracer provider; configure it in main() before creating the
// runtime:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	rt := filament.New(filament.WithHooks(telemetry.NewTracing()))
type Tracing struct {
	config TracingConfig
}

// NewTracing resolves the tracer and returns the hooks.
func NewTracing(opts ...TracingOption) *Tracing {
	config := defaultTracingConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)
	return &Tracing{config: config}
}

// record emits one retroactive span covering [end-d, end].
func (t *Tracing) record(name string, d time.Duration, attrs ...attribute.KeyValue) {
	end := time.Now()
	_, span := t.config.tracer.Start(
		context.Background(),
		name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(end.Add(-d)),
		trace.WithAttributes(attrs...),
	)
	span.End(trace.WithTimestamp(end))
}

// ComputedEvaluated implements filament.Hooks.
func (t *Tracing) ComputedEvaluated(d time.Duration) {
	if d < t.config.MinEvaluationDuration {
		return
	}
	t.record("filament.evaluate", d)
}

// NotificationDelivered implements filament.Hooks.
func (t *Tracing) NotificationDelivered(event string, subscribers int) {
	if !t.config.TraceNotifications {
		return
	}
	t.record("filament.notify", 0,
		attribute.String("filament.event", event),
		attribute.Int("filament.subscribers", subscribers),
	)
}

// FlushCompleted implements filament.Hooks.
func (t *Tracing) FlushCompleted(tasks, groups int) {
	t.record("filament.flush", 0,
		attribute.Int("filament.tasks", tasks),
		attribute.Int("filament.groups", groups),
	)
}

// ArrayDiffed implements filament.Hooks.
func (t *Tracing) ArrayDiffed(records int) {
	t.record("filament.array_diff", 0,
		attribute.Int("filament.records", records),
	)
}
