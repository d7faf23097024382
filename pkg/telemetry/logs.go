package telemetry

import (
	"context"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap/zapcore"

	"github.com/hyp3rd/telemetry/pkg/config"
	"github.com/hyp3rd/telemetry/pkg/exporter"
	"github.com/hyp3rd/telemetry/pkg/logging"
)

// logsRuntime owns the logger provider and the hot-swappable log exporter
// shim for the logging signal.
type logsRuntime struct {
	provider *sdklog.LoggerProvider
	shim     *exporter.LogShim
	level    zapcore.Level
	logger   logging.Adapter
}

func newLogsRuntime(ctx context.Context, settings *config.Settings, res *resource.Resource, logger logging.Adapter) (*logsRuntime, error) {
	shim, err := exporter.NewLogShim(ctx, newLogFactory(settings),
		buildParams(settings, config.SignalLogging), exporter.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(shim)),
	)

	return &logsRuntime{
		provider: provider,
		shim:     shim,
		level:    logging.ZapLevel(settings.LoggingLevel()),
		logger:   logger,
	}, nil
}

// zapCore builds a zap core that forwards records at or above the configured
// level to the OTLP log pipeline. Callers tee it into their own logger:
//
//	logger := zap.New(zapcore.NewTee(ownCore, telemetry.ZapCore("my-service")))
func (l *logsRuntime) zapCore(name string) zapcore.Core {
	core := otelzap.NewCore(name, otelzap.WithLoggerProvider(l.provider))

	return &levelGate{inner: core, min: l.level}
}

// LoggerProvider exposes the underlying provider for callers bridging other
// logging libraries themselves.
func (l *logsRuntime) loggerProvider() *sdklog.LoggerProvider {
	return l.provider
}

func (l *logsRuntime) changeEndpoint(ctx context.Context, settings *config.Settings, newEndpoint, authToken string) (bool, error) {
	return l.shim.ChangeEndpoint(ctx, l.provider.ForceFlush, settings, newEndpoint, authToken)
}

func (l *logsRuntime) shutdown(ctx context.Context) error {
	return l.provider.Shutdown(ctx)
}

// levelGate drops entries below the configured minimum before they reach the
// OTLP bridge.
type levelGate struct {
	inner zapcore.Core
	min   zapcore.Level
}

// Enabled implements zapcore.Core.
func (g *levelGate) Enabled(level zapcore.Level) bool {
	return level >= g.min && g.inner.Enabled(level)
}

// With implements zapcore.Core.
func (g *levelGate) With(fields []zapcore.Field) zapcore.Core {
	return &levelGate{inner: g.inner.With(fields), min: g.min}
}

// Check implements zapcore.Core.
func (g *levelGate) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !g.Enabled(entry.Level) {
		return checked
	}

	return g.inner.Check(entry, checked)
}

// Write implements zapcore.Core.
func (g *levelGate) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return g.inner.Write(entry, fields)
}

// Sync implements zapcore.Core.
func (g *levelGate) Sync() error {
	return g.inner.Sync()
}
