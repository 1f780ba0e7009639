package observe

import (
	"context"
	"time"
)

// DispatchFunc is the signature for command execution functions wrapped by
// Middleware.
type DispatchFunc func(ctx context.Context) (any, error)

// Middleware wraps command dispatch with observability (tracing, metrics,
// logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe DispatchFunc.
//   - Context: propagates context through tracing spans.
//   - Errors: errors from the wrapped function are recorded and propagated
//     unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability
// components. Nil components degrade to no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = &noopMetrics{}
	}
	if logger == nil {
		logger = &nopLogger{}
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap instruments fn with a span, dispatch metrics, and debug logs, all
// attributed to meta.
func (m *Middleware) Wrap(meta CommandMeta, fn DispatchFunc) DispatchFunc {
	return func(ctx context.Context) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		result, err := fn(ctx)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordDispatch(ctx, meta, duration, false, err)

		if err != nil {
			m.logger.Debug(ctx, "command failed",
				Field{Key: "command", Value: meta.Command},
				Field{Key: "duration_ms", Value: duration.Milliseconds()},
				Field{Key: "error", Value: err.Error()})
		} else {
			m.logger.Debug(ctx, "command executed",
				Field{Key: "command", Value: meta.Command},
				Field{Key: "duration_ms", Value: duration.Milliseconds()})
		}

		return result, err
	}
}

// RecordCacheHit records a dispatch served entirely from cache.
func (m *Middleware) RecordCacheHit(ctx context.Context, meta CommandMeta) {
	m.metrics.RecordDispatch(ctx, meta, 0, true, nil)
}
