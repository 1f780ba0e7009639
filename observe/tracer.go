package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CommandMeta identifies a dispatched command for telemetry purposes.
type CommandMeta struct {
	Command string // Command name (zKey or cmd), required
	Action  string // Declared action, e.g. "read" (optional)
	Model   string // Target model (optional)
	ConnID  string // Originating connection id (optional)
	User    string // Resolved user id (optional)
}

// SpanName returns the deterministic span name for this command.
// Format: bridge.dispatch.<command>
func (m CommandMeta) SpanName() string {
	return "bridge.dispatch." + m.Command
}

// Tracer wraps OpenTelemetry tracing with dispatch-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a command dispatch.
	StartSpan(ctx context.Context, meta CommandMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with command metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CommandMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("bridge.command", meta.Command),
		attribute.Bool("bridge.error", false), // Updated in EndSpan on error
	}
	if meta.Action != "" {
		attrs = append(attrs, attribute.String("bridge.action", meta.Action))
	}
	if meta.Model != "" {
		attrs = append(attrs, attribute.String("bridge.model", meta.Model))
	}
	if meta.ConnID != "" {
		attrs = append(attrs, attribute.String("bridge.conn_id", meta.ConnID))
	}
	if meta.User != "" {
		attrs = append(attrs, attribute.String("bridge.user", meta.User))
	}

	ctx, span := t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("bridge.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, _ CommandMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, "noop")
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}

// Ensure implementations satisfy Tracer
var (
	_ Tracer = (*tracerImpl)(nil)
	_ Tracer = (*noopTracer)(nil)
)
