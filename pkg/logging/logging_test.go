package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zapcore"
)

const attributeCountWithTrace = 3

func TestWithTraceAddsSpanContext(t *testing.T) {
	t.Parallel()

	ctx, span := trace.NewTracerProvider().Tracer("test").Start(context.Background(), "span")
	defer span.End()

	attrs := withTrace(ctx, []attribute.KeyValue{attribute.String("foo", "bar")})
	if len(attrs) < attributeCountWithTrace {
		t.Fatalf("expected trace attributes plus payload, got %d", len(attrs))
	}

	if attrs[0].Key != "trace_id" {
		t.Fatalf("expected trace_id first, got %s", attrs[0].Key)
	}

	if attrs[1].Key != "span_id" {
		t.Fatalf("expected span_id second, got %s", attrs[1].Key)
	}
}

func TestWithTraceNoSpan(t *testing.T) {
	t.Parallel()

	attrs := withTrace(context.Background(), []attribute.KeyValue{attribute.String("foo", "bar")})
	if len(attrs) != 1 {
		t.Fatalf("expected only original attrs, got %d", len(attrs))
	}
}

func TestSlogAdapterWritesTraceAttributes(t *testing.T) {
	t.Parallel()

	ctx, span := trace.NewTracerProvider().Tracer("test").Start(context.Background(), "span")
	defer span.End()

	var buf bytes.Buffer

	adapter := NewSlogAdapter(slogLogger(&buf))

	adapter.Info(ctx, "hello", attribute.String("foo", "bar"))

	var entry map[string]any

	err := json.Unmarshal(buf.Bytes(), &entry)
	if err != nil {
		t.Fatalf("unmarshal slog output: %v", err)
	}

	if entry["trace_id"] == nil {
		t.Fatalf("expected trace_id attribute, got %v", entry)
	}
}

func TestSlogAdapterWarn(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	adapter := NewSlogAdapter(slogLogger(&buf))

	adapter.Warn(context.Background(), "heads up", attribute.Int("count", 2))

	var entry map[string]any

	err := json.Unmarshal(buf.Bytes(), &entry)
	if err != nil {
		t.Fatalf("unmarshal slog output: %v", err)
	}

	if entry["level"] != "WARN" {
		t.Fatalf("expected WARN level, got %v", entry["level"])
	}
}

func TestSlogLevelMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  slog.Level
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "info", want: slog.LevelInfo},
		{level: "warn", want: slog.LevelWarn},
		{level: "warning", want: slog.LevelWarn},
		{level: "error", want: slog.LevelError},
		{level: "fatal", want: slog.LevelError},
		{level: "critical", want: slog.LevelError},
		{level: "bogus", want: slog.LevelWarn},
	}

	for _, testCase := range tests {
		if got := SlogLevel(testCase.level); got != testCase.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", testCase.level, got, testCase.want)
		}
	}
}

func TestZapLevelMapping(t *testing.T) {
	t.Parallel()

	if got := ZapLevel("critical"); got != zapcore.DPanicLevel {
		t.Errorf("ZapLevel(critical) = %v, want DPanicLevel", got)
	}

	if got := ZapLevel("warning"); got != zapcore.WarnLevel {
		t.Errorf("ZapLevel(warning) = %v, want WarnLevel", got)
	}
}

func slogLogger(buf *bytes.Buffer) *slog.Logger {
	handler := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	return slog.New(handler)
}
