// Package telemetry provides observability instrumentation for bootcoord.
//
// It combines structured logging (zerolog), distributed tracing (OpenTelemetry),
// Prometheus metrics, and a small event bus into one bundle:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Every component also has a no-op constructor (NopLogger, NopTracer, NopMetrics,
// NopEventPublisher) so libraries can be used without any telemetry wiring.
//
// # Logging
//
// Loggers travel through context.Context:
//
//	ctx = logger.WithContext(ctx)
//	telemetry.FromContext(ctx).WithKey("BootSettings_Runtime").Info("resolved")
//
// FromContext falls back to the global zerolog logger.
//
// # Tracing
//
// StartOperation opens a span, tags the context logger with the trace identifiers,
// and starts a timer:
//
//	op := telemetry.StartOperation(ctx, tracer, telemetry.SpanInitialize)
//	defer op.End(err)
//
// Exporters: otlp (gRPC), stdout, none.
//
// # Metrics
//
// All lifecycle metrics live in a private registry served by Metrics.Handler.
//
// # Events
//
// EventPublisher delivers phase changes, resolution failures, and host events to
// subscribers. Synchronous publishers deliver in publish order on the caller's
// goroutine; async publishers deliver from one background goroutine.
package telemetry
