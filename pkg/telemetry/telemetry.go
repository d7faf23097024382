// Package telemetry initializes OpenTelemetry logging, tracing, and metrics
// against OTLP collectors, with per-signal endpoints resolved through
// pkg/config and hot-swappable exporters from pkg/exporter. Init returns an
// explicit handle; nothing is stored in process globals, so independent
// components can run independent telemetry sessions.
package telemetry

import (
	"context"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap/zapcore"

	"github.com/hyp3rd/telemetry/pkg/config"
	"github.com/hyp3rd/telemetry/pkg/logging"
)

// Option customizes Init.
type Option func(*initOptions)

type initOptions struct {
	logger         logging.Adapter
	signals        []config.Signal
	runtimeMetrics bool
}

// WithSignals selects which signals to initialize. The default is metrics
// only.
func WithSignals(signals ...config.Signal) Option {
	return func(o *initOptions) {
		o.signals = signals
	}
}

// WithLogger routes the library's own diagnostics through the given adapter
// instead of the default slog JSON logger.
func WithLogger(logger logging.Adapter) Option {
	return func(o *initOptions) {
		o.logger = logger
	}
}

// WithRuntimeMetrics additionally exports Go runtime metrics (GC, memory,
// goroutines) through the metrics pipeline.
func WithRuntimeMetrics() Option {
	return func(o *initOptions) {
		o.runtimeMetrics = true
	}
}

// Telemetry is a live telemetry session: one resource, one session id, and a
// provider per enabled signal.
type Telemetry struct {
	settings  *config.Settings
	logger    logging.Adapter
	sessionID string

	metrics *metricsRuntime
	tracing *tracingRuntime
	logs    *logsRuntime
}

// Init builds a telemetry session from resolved settings and resource
// attributes. The connectivity probe runs first (unless skipped), then the
// requested signals are brought up; a failure tears down nothing and is
// returned as-is.
func Init(ctx context.Context, settings *config.Settings, attrs *ResourceAttributes, opts ...Option) (*Telemetry, error) {
	if settings == nil {
		return nil, ErrNilSettings
	}

	if attrs == nil {
		return nil, ErrNilAttributes
	}

	cfg := initOptions{signals: []config.Signal{config.SignalMetrics}}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = logging.FromLevel(settings.LoggingLevel())
	}

	err := attrs.normalize(ctx, cfg.logger)
	if err != nil {
		return nil, err
	}

	checkConnectivity(ctx, settings, cfg.logger)

	sessionID := hashSessionID(settings.TracingSessionEntropy(), attrs.UserID, attrs.ServiceName)

	res, err := attrs.toResource(sessionID)
	if err != nil {
		return nil, err
	}

	t := &Telemetry{
		settings:  settings,
		logger:    cfg.logger,
		sessionID: sessionID,
	}

	for _, signal := range cfg.signals {
		switch signal {
		case config.SignalMetrics:
			t.metrics, err = newMetricsRuntime(ctx, settings, attrs, res, cfg.logger, cfg.runtimeMetrics)
		case config.SignalTracing:
			t.tracing, err = newTracingRuntime(ctx, settings, attrs, res, cfg.logger)
		case config.SignalLogging:
			t.logs, err = newLogsRuntime(ctx, settings, res, cfg.logger)
		}

		if err != nil {
			return nil, err
		}
	}

	if t.metrics == nil && t.tracing == nil && t.logs == nil {
		cfg.logger.Warn(ctx, "no signals were initialized; was this intended?")
	}

	return t, nil
}

// SessionID returns the hashed session id stamped on the resource.
func (t *Telemetry) SessionID() string {
	return t.sessionID
}

// RecordHistogram records a value on the named histogram, creating it on
// first use. Returns false, with a logged reason, when metrics are not
// enabled or the name is invalid.
func (t *Telemetry) RecordHistogram(ctx context.Context, name string, value float64, attrs map[string]string) bool {
	if t.metrics == nil {
		t.logger.Error(ctx, ErrSignalNotEnabled, "record histogram without metrics enabled")

		return false
	}

	return t.metrics.recordHistogram(ctx, name, value, attrs)
}

// IncrementCounter adds abs(by) to the named counter, creating an up-down
// counter on first use.
func (t *Telemetry) IncrementCounter(ctx context.Context, name string, by int64, attrs map[string]string) bool {
	if t.metrics == nil {
		t.logger.Error(ctx, ErrSignalNotEnabled, "increment counter without metrics enabled")

		return false
	}

	return t.metrics.incrementCounter(ctx, name, by, attrs)
}

// DecrementCounter subtracts abs(by) from the named up-down counter,
// creating it on first use.
func (t *Telemetry) DecrementCounter(ctx context.Context, name string, by int64, attrs map[string]string) bool {
	if t.metrics == nil {
		t.logger.Error(ctx, ErrSignalNotEnabled, "decrement counter without metrics enabled")

		return false
	}

	return t.metrics.decrementCounter(ctx, name, by, attrs)
}

// StartSpan opens a named span, continuing the trace context in carrier when
// one is supplied. When tracing is not enabled a no-op span is returned so
// call sites stay unconditional; End must still be called.
func (t *Telemetry) StartSpan(ctx context.Context, name string, attrs map[string]string, carrier map[string]string) (context.Context, *Span) {
	if t.tracing == nil {
		t.logger.Warn(ctx, "start span without tracing enabled")

		return ctx, noopSpan()
	}

	return t.tracing.startSpan(ctx, name, attrs, carrier)
}

// WithSpan runs fn inside a span, recording the returned error as an
// exception with error status before closing the span.
func (t *Telemetry) WithSpan(ctx context.Context, name string, attrs map[string]string, fn func(ctx context.Context, span *Span) error) error {
	ctx, span := t.StartSpan(ctx, name, attrs, nil)
	defer span.End()

	err := fn(ctx, span)
	if err != nil {
		span.AddException(err)
		span.SetErrorStatus(err.Error())
	}

	return err
}

// ZapCore returns a zap core that exports records through the OTLP log
// pipeline, gated at the configured logging level.
func (t *Telemetry) ZapCore(name string) (zapcore.Core, error) {
	if t.logs == nil {
		return nil, ErrSignalNotEnabled
	}

	return t.logs.zapCore(name), nil
}

// LoggerProvider exposes the log provider for callers bridging a logging
// library themselves.
func (t *Telemetry) LoggerProvider() (*sdklog.LoggerProvider, error) {
	if t.logs == nil {
		return nil, ErrSignalNotEnabled
	}

	return t.logs.loggerProvider(), nil
}

// ChangeMetricsEndpoint hot-swaps the metrics destination. Buffered data
// points are flushed to the old destination first. The boolean reports
// whether the swap happened; a false with nil error means the new endpoint's
// exporter could not be built and the old one keeps serving.
func (t *Telemetry) ChangeMetricsEndpoint(ctx context.Context, newEndpoint, authToken string) (bool, error) {
	if t.metrics == nil {
		return false, ErrSignalNotEnabled
	}

	return t.metrics.changeEndpoint(ctx, t.settings, newEndpoint, authToken)
}

// ChangeTracingEndpoint hot-swaps the tracing destination. See
// ChangeMetricsEndpoint for the failure semantics.
func (t *Telemetry) ChangeTracingEndpoint(ctx context.Context, newEndpoint, authToken string) (bool, error) {
	if t.tracing == nil {
		return false, ErrSignalNotEnabled
	}

	return t.tracing.changeEndpoint(ctx, t.settings, newEndpoint, authToken)
}

// ChangeLoggingEndpoint hot-swaps the logging destination. See
// ChangeMetricsEndpoint for the failure semantics.
func (t *Telemetry) ChangeLoggingEndpoint(ctx context.Context, newEndpoint, authToken string) (bool, error) {
	if t.logs == nil {
		return false, ErrSignalNotEnabled
	}

	return t.logs.changeEndpoint(ctx, t.settings, newEndpoint, authToken)
}

// Shutdown flushes and tears down every enabled signal. All signals are shut
// down even when one fails; the first failure is returned.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var firstErr error

	if t.metrics != nil {
		err := t.metrics.shutdown(ctx)
		if err != nil {
			t.logger.Error(ctx, err, "shutdown metrics provider")

			firstErr = err
		}
	}

	if t.tracing != nil {
		err := t.tracing.shutdown(ctx)
		if err != nil {
			t.logger.Error(ctx, err, "shutdown tracer provider")

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if t.logs != nil {
		err := t.logs.shutdown(ctx)
		if err != nil {
			t.logger.Error(ctx, err, "shutdown logger provider")

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
