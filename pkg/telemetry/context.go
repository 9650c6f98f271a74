package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry is the set of observability components handed to the coordinator
// and the host synchronizer.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// NewTelemetry validates cfg and builds every component from it.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Telemetry{Config: cfg}
	var err error
	if t.Logger, err = NewLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if t.Tracer, err = NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment); err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}
	if t.Metrics, err = NewMetrics(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if t.Events, err = NewEventPublisher(cfg.Events); err != nil {
		_ = t.Tracer.Shutdown(context.Background())
		return nil, fmt.Errorf("events: %w", err)
	}
	return t, nil
}

// Nop returns a bundle whose components discard everything. Tests use it.
func Nop() *Telemetry {
	return &Telemetry{
		Logger:  NopLogger(),
		Tracer:  NopTracer(),
		Metrics: NopMetrics(),
		Events:  NopEventPublisher(),
		Config:  DefaultConfig(),
	}
}

// Shutdown drains queued events before flushing spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.Events.Shutdown(ctx), t.Tracer.Shutdown(ctx))
}

// StartMetricsServer exposes the Prometheus registry over HTTP. It returns a nil
// server when metrics are disabled.
func (t *Telemetry) StartMetricsServer() (*http.Server, error) {
	return t.Metrics.StartMetricsServer()
}

// InstrumentedContext is one traced lifecycle flow: its context, root span,
// tagged logger, and elapsed-time timer.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation opens a root span named after the flow and derives a logger
// from ctx that carries the operation name and, when sampled, the trace and
// span IDs. The returned Ctx carries both.
func StartOperation(ctx context.Context, tracer *Tracer, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	op := &InstrumentedContext{
		Ctx:    ctx,
		Logger: FromContext(ctx).WithField("operation", operation),
		Timer:  NewTimer(),
	}
	if tracer == nil {
		return op
	}

	spanCtx, span := tracer.StartSpan(ctx, operation, attrs...)
	op.Span = span
	if sc := span.SpanContext(); sc.IsValid() {
		op.Logger = op.Logger.WithFields(map[string]interface{}{
			"trace_id": sc.TraceID().String(),
			"span_id":  sc.SpanID().String(),
		})
	}
	op.Ctx = op.Logger.WithContext(spanCtx)
	return op
}

// End closes the root span with a status derived from err.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		EndSpan(ic.Span, err)
	}
}
