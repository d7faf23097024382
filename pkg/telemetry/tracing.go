package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/telemetry/pkg/config"
	"github.com/hyp3rd/telemetry/pkg/exporter"
	"github.com/hyp3rd/telemetry/pkg/logging"
)

// tracingRuntime owns the tracer provider and the hot-swappable span
// exporter shim for the tracing signal.
type tracingRuntime struct {
	provider *sdktrace.TracerProvider
	shim     *exporter.SpanShim
	tracer   trace.Tracer
	logger   logging.Adapter
}

func newTracingRuntime(ctx context.Context, settings *config.Settings, attrs *ResourceAttributes, res *resource.Resource, logger logging.Adapter) (*tracingRuntime, error) {
	shim, err := exporter.NewSpanShim(ctx, newSpanFactory(settings),
		buildParams(settings, config.SignalTracing), exporter.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(shim),
	)

	return &tracingRuntime{
		provider: provider,
		shim:     shim,
		tracer:   provider.Tracer(attrs.ServiceName, trace.WithInstrumentationVersion(attrs.ServiceVersion)),
		logger:   logger,
	}, nil
}

// startSpan opens a span, optionally continuing the trace context carried in
// a W3C traceparent carrier.
func (t *tracingRuntime) startSpan(ctx context.Context, name string, attrs map[string]string, carrier map[string]string) (context.Context, *Span) {
	if carrier != nil {
		ctx = propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier(carrier))
	}

	kvs := toAttributes(attrs)

	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(kvs...))

	return ctx, &Span{name: name, span: span, attrs: kvs}
}

func (t *tracingRuntime) changeEndpoint(ctx context.Context, settings *config.Settings, newEndpoint, authToken string) (bool, error) {
	return t.shim.ChangeEndpoint(ctx, t.provider.ForceFlush, settings, newEndpoint, authToken)
}

func (t *tracingRuntime) shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// Span wraps an OTel span with event name prefixing and error helpers. The
// zero value is a no-op span, returned when tracing is not initialized so
// call sites never have to nil-check.
type Span struct {
	name  string
	span  trace.Span
	attrs []attribute.KeyValue
	noop  bool
}

func noopSpan() *Span {
	return &Span{name: "UNKNOWN", noop: true}
}

// AddEvent records an event on the span, prefixing its name with the span
// name.
func (s *Span) AddEvent(name string, attrs map[string]string) {
	if s.noop {
		return
	}

	s.span.AddEvent(s.name+"."+name, trace.WithAttributes(toAttributes(attrs)...))
}

// AddException records err on the span with exception type and message
// attributes. A nil err records a generic placeholder exception.
func (s *Span) AddException(err error) {
	if s.noop {
		return
	}

	if err == nil {
		err = errNilException
	}

	s.span.RecordError(err, trace.WithAttributes(
		attribute.String("exception.type", fmt.Sprintf("%T", err)),
		attribute.String("exception.message", err.Error()),
	))
}

// SetErrorStatus marks the span as failed. An empty msg falls back to a
// generic description.
func (s *Span) SetErrorStatus(msg string) {
	if s.noop {
		return
	}

	if msg == "" {
		msg = "An error occurred during the span's execution."
	}

	s.span.SetStatus(codes.Error, msg)
}

// AddAttributes merges attrs into the span's attribute set.
func (s *Span) AddAttributes(attrs map[string]string) {
	if s.noop {
		return
	}

	kvs := toAttributes(attrs)
	s.attrs = append(s.attrs, kvs...)
	s.span.SetAttributes(kvs...)
}

// End closes the span.
func (s *Span) End() {
	if s.noop {
		return
	}

	s.span.End()
}

// hashSessionID derives the session.id resource attribute: a SHA-256 over
// entropy, user id, and service name so concurrent sessions hash uniquely.
func hashSessionID(entropy any, userID, serviceName string) string {
	combined := fmt.Sprintf("%v|%s|%s", entropy, userID, serviceName)
	sum := sha256.Sum256([]byte(combined))

	return hex.EncodeToString(sum[:])
}
