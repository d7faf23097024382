package exporter

import (
	"context"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hyp3rd/telemetry/pkg/config"
)

// MetricShim is a hot-swappable sdkmetric.Exporter. Register it with a
// PeriodicReader once; subsequent endpoint changes replace the transport
// underneath without touching the reader.
type MetricShim struct {
	core *core[sdkmetric.Exporter]
}

// NewMetricShim builds the initial metric transport via factory and wraps it.
func NewMetricShim(ctx context.Context, factory Factory[sdkmetric.Exporter], params Params, opts ...Option) (*MetricShim, error) {
	c, err := newCore(ctx, config.SignalMetrics, factory, params, opts...)
	if err != nil {
		return nil, err
	}

	return &MetricShim{core: c}, nil
}

// Temporality implements sdkmetric.Exporter.
func (m *MetricShim) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return m.core.load().Temporality(kind)
}

// Aggregation implements sdkmetric.Exporter.
func (m *MetricShim) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return m.core.load().Aggregation(kind)
}

// Export implements sdkmetric.Exporter.
func (m *MetricShim) Export(ctx context.Context, metrics *metricdata.ResourceMetrics) error {
	return m.core.load().Export(ctx, metrics)
}

// ForceFlush implements sdkmetric.Exporter.
func (m *MetricShim) ForceFlush(ctx context.Context) error {
	return m.core.load().ForceFlush(ctx)
}

// Shutdown implements sdkmetric.Exporter.
func (m *MetricShim) Shutdown(ctx context.Context) error {
	return m.core.shutdown(ctx)
}

// State reports READY or UPDATING.
func (m *MetricShim) State() State {
	return m.core.State()
}

// Endpoint returns the destination currently being exported to.
func (m *MetricShim) Endpoint() string {
	return m.core.Endpoint()
}

// ChangeEndpoint swaps the metric transport to a new destination. See the
// package documentation for the failure semantics.
func (m *MetricShim) ChangeEndpoint(ctx context.Context, flush Flusher, settings *config.Settings, newEndpoint, authToken string) (bool, error) {
	return m.core.changeEndpoint(ctx, flush, settings, newEndpoint, authToken)
}

// SpanShim is a hot-swappable sdktrace.SpanExporter.
type SpanShim struct {
	core *core[sdktrace.SpanExporter]
}

// NewSpanShim builds the initial span transport via factory and wraps it.
func NewSpanShim(ctx context.Context, factory Factory[sdktrace.SpanExporter], params Params, opts ...Option) (*SpanShim, error) {
	c, err := newCore(ctx, config.SignalTracing, factory, params, opts...)
	if err != nil {
		return nil, err
	}

	return &SpanShim{core: c}, nil
}

// ExportSpans implements sdktrace.SpanExporter.
func (s *SpanShim) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return s.core.load().ExportSpans(ctx, spans)
}

// Shutdown implements sdktrace.SpanExporter.
func (s *SpanShim) Shutdown(ctx context.Context) error {
	return s.core.shutdown(ctx)
}

// State reports READY or UPDATING.
func (s *SpanShim) State() State {
	return s.core.State()
}

// Endpoint returns the destination currently being exported to.
func (s *SpanShim) Endpoint() string {
	return s.core.Endpoint()
}

// ChangeEndpoint swaps the span transport to a new destination.
func (s *SpanShim) ChangeEndpoint(ctx context.Context, flush Flusher, settings *config.Settings, newEndpoint, authToken string) (bool, error) {
	return s.core.changeEndpoint(ctx, flush, settings, newEndpoint, authToken)
}

// LogShim is a hot-swappable sdklog.Exporter.
type LogShim struct {
	core *core[sdklog.Exporter]
}

// NewLogShim builds the initial log transport via factory and wraps it.
func NewLogShim(ctx context.Context, factory Factory[sdklog.Exporter], params Params, opts ...Option) (*LogShim, error) {
	c, err := newCore(ctx, config.SignalLogging, factory, params, opts...)
	if err != nil {
		return nil, err
	}

	return &LogShim{core: c}, nil
}

// Export implements sdklog.Exporter.
func (l *LogShim) Export(ctx context.Context, records []sdklog.Record) error {
	return l.core.load().Export(ctx, records)
}

// ForceFlush implements sdklog.Exporter.
func (l *LogShim) ForceFlush(ctx context.Context) error {
	return l.core.load().ForceFlush(ctx)
}

// Shutdown implements sdklog.Exporter.
func (l *LogShim) Shutdown(ctx context.Context) error {
	return l.core.shutdown(ctx)
}

// State reports READY or UPDATING.
func (l *LogShim) State() State {
	return l.core.State()
}

// Endpoint returns the destination currently being exported to.
func (l *LogShim) Endpoint() string {
	return l.core.Endpoint()
}

// ChangeEndpoint swaps the log transport to a new destination.
func (l *LogShim) ChangeEndpoint(ctx context.Context, flush Flusher, settings *config.Settings, newEndpoint, authToken string) (bool, error) {
	return l.core.changeEndpoint(ctx, flush, settings, newEndpoint, authToken)
}
