package telemetry

import (
	"context"
	"regexp"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/hyp3rd/telemetry/pkg/config"
	"github.com/hyp3rd/telemetry/pkg/exporter"
	"github.com/hyp3rd/telemetry/pkg/logging"
)

// metricNamePattern is the rule a metric name must match before an instrument
// is created for it.
var metricNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z_0-9]+$`)

// metricsRuntime owns the meter provider, the periodic reader, and the
// hot-swappable exporter shim for the metrics signal, plus an idempotent
// instrument registry keyed by metric name.
type metricsRuntime struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.PeriodicReader
	shim     *exporter.MetricShim
	meter    metric.Meter
	logger   logging.Adapter

	mu             sync.Mutex
	counters       map[string]metric.Int64Counter
	upDownCounters map[string]metric.Int64UpDownCounter
	histograms     map[string]metric.Float64Histogram
}

func newMetricsRuntime(ctx context.Context, settings *config.Settings, attrs *ResourceAttributes, res *resource.Resource, logger logging.Adapter, runtimeMetrics bool) (*metricsRuntime, error) {
	shim, err := exporter.NewMetricShim(ctx, newMetricFactory(settings),
		buildParams(settings, config.SignalMetrics), exporter.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(shim,
		sdkmetric.WithInterval(time.Duration(settings.MetricsExportInterval())*time.Millisecond))

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	m := &metricsRuntime{
		provider:       provider,
		reader:         reader,
		shim:           shim,
		meter:          provider.Meter(attrs.ServiceName, metric.WithInstrumentationVersion(attrs.ServiceVersion)),
		logger:         logger,
		counters:       map[string]metric.Int64Counter{},
		upDownCounters: map[string]metric.Int64UpDownCounter{},
		histograms:     map[string]metric.Float64Histogram{},
	}

	if runtimeMetrics {
		err = runtime.Start(runtime.WithMeterProvider(provider))
		if err != nil {
			logger.Warn(ctx, "start runtime instrumentation",
				attribute.String("error", err.Error()))
		}
	}

	return m, nil
}

// recordHistogram records a value on the named histogram, creating the
// instrument on first use. Returns false when the name is invalid or the
// instrument cannot be created.
func (m *metricsRuntime) recordHistogram(ctx context.Context, name string, value float64, attrs map[string]string) bool {
	m.mu.Lock()
	histogram, ok := m.histograms[name]

	if !ok {
		if !m.validName(ctx, name) {
			m.mu.Unlock()

			return false
		}

		var err error

		histogram, err = m.meter.Float64Histogram(name,
			metric.WithUnit("#"), metric.WithDescription("Dynamically created histogram metric."))
		if err != nil {
			m.mu.Unlock()
			m.logger.Error(ctx, err, "create histogram", attribute.String("metric", name))

			return false
		}

		m.histograms[name] = histogram
	}
	m.mu.Unlock()

	histogram.Record(ctx, value, metric.WithAttributes(toAttributes(attrs)...))

	return true
}

// incrementCounter adds abs(by) to the named counter. A monotonic counter is
// used when one already exists under the name; otherwise an up-down counter
// is created so the same name can later be decremented.
func (m *metricsRuntime) incrementCounter(ctx context.Context, name string, by int64, attrs map[string]string) bool {
	m.mu.Lock()

	if counter, ok := m.counters[name]; ok {
		m.mu.Unlock()
		counter.Add(ctx, abs(by), metric.WithAttributes(toAttributes(attrs)...))

		return true
	}

	upDown, ok := m.upDownCounters[name]
	if !ok {
		if !m.validName(ctx, name) {
			m.mu.Unlock()

			return false
		}

		var err error

		upDown, err = m.meter.Int64UpDownCounter(name,
			metric.WithUnit("#"), metric.WithDescription("No description."))
		if err != nil {
			m.mu.Unlock()
			m.logger.Error(ctx, err, "create counter", attribute.String("metric", name))

			return false
		}

		m.upDownCounters[name] = upDown
	}
	m.mu.Unlock()

	upDown.Add(ctx, abs(by), metric.WithAttributes(toAttributes(attrs)...))

	return true
}

// decrementCounter subtracts abs(by) from the named up-down counter, creating
// it on first use.
func (m *metricsRuntime) decrementCounter(ctx context.Context, name string, by int64, attrs map[string]string) bool {
	m.mu.Lock()

	upDown, ok := m.upDownCounters[name]
	if !ok {
		if !m.validName(ctx, name) {
			m.mu.Unlock()

			return false
		}

		var err error

		upDown, err = m.meter.Int64UpDownCounter(name,
			metric.WithUnit("#"), metric.WithDescription("No description."))
		if err != nil {
			m.mu.Unlock()
			m.logger.Error(ctx, err, "create counter", attribute.String("metric", name))

			return false
		}

		m.upDownCounters[name] = upDown
	}
	m.mu.Unlock()

	upDown.Add(ctx, -abs(by), metric.WithAttributes(toAttributes(attrs)...))

	return true
}

func (m *metricsRuntime) validName(ctx context.Context, name string) bool {
	if metricNamePattern.MatchString(name) {
		return true
	}

	m.logger.Warn(ctx, "metric name does not match ^[A-Za-z][A-Za-z_0-9]+$",
		attribute.String("metric", name))

	return false
}

// changeEndpoint hot-swaps the metrics destination, flushing buffered data
// points through the periodic reader before the old transport retires.
func (m *metricsRuntime) changeEndpoint(ctx context.Context, settings *config.Settings, newEndpoint, authToken string) (bool, error) {
	return m.shim.ChangeEndpoint(ctx, m.reader.ForceFlush, settings, newEndpoint, authToken)
}

func (m *metricsRuntime) shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

func abs(value int64) int64 {
	if value < 0 {
		return -value
	}

	return value
}

func toAttributes(attrs map[string]string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for key, value := range attrs {
		out = append(out, attribute.String(key, value))
	}

	return out
}
