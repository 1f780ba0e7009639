package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records bridge telemetry.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; recording never blocks dispatch.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordDispatch records one command dispatch with its duration,
	// whether it was served from cache, and its error status.
	RecordDispatch(ctx context.Context, meta CommandMeta, duration time.Duration, cached bool, err error)

	// RecordConnection adjusts the live-connection gauge by delta (+1 on
	// accept, -1 on disconnect).
	RecordConnection(ctx context.Context, delta int64)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	cachedCount  metric.Int64Counter
	durationHist metric.Float64Histogram
	connections  metric.Int64UpDownCounter
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"bridge.dispatch.total",
		metric.WithDescription("Total number of dispatched commands"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"bridge.dispatch.errors",
		metric.WithDescription("Total number of failed command dispatches"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	cachedCount, err := meter.Int64Counter(
		"bridge.dispatch.cached",
		metric.WithDescription("Total number of dispatches served from cache"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"bridge.dispatch.duration_ms",
		metric.WithDescription("Command dispatch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	connections, err := meter.Int64UpDownCounter(
		"bridge.connections",
		metric.WithDescription("Number of live bridge connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		cachedCount:  cachedCount,
		durationHist: durationHist,
		connections:  connections,
	}, nil
}

// RecordDispatch records metrics for one command dispatch.
func (m *metricsImpl) RecordDispatch(ctx context.Context, meta CommandMeta, duration time.Duration, cached bool, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("bridge.command", meta.Command),
	}
	if meta.Action != "" {
		attrs = append(attrs, attribute.String("bridge.action", meta.Action))
	}

	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	if cached {
		m.cachedCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordConnection adjusts the live-connection gauge.
func (m *metricsImpl) RecordConnection(ctx context.Context, delta int64) {
	m.connections.Add(ctx, delta)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordDispatch(context.Context, CommandMeta, time.Duration, bool, error) {}
func (m *noopMetrics) RecordConnection(context.Context, int64)                                {}

// NewNopMetrics returns a Metrics implementation that discards everything.
func NewNopMetrics() Metrics {
	return &noopMetrics{}
}

// Ensure implementations satisfy Metrics
var (
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = (*noopMetrics)(nil)
)
