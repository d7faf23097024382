package logging

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// FromLevel builds the default diagnostics adapter, a JSON slog logger gated
// at the given level. Accepted levels are debug, info, warn, warning, error,
// fatal, and critical; anything else gates at warn.
func FromLevel(level string) Adapter {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: SlogLevel(level),
	})

	return NewSlogAdapter(slog.New(handler))
}

// SlogLevel maps a configured level string onto the slog scale. fatal and
// critical collapse onto error, slog's highest standard level.
func SlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "fatal", "critical":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// ZapLevel maps a configured level string onto the zap scale.
func ZapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	case "critical":
		return zapcore.DPanicLevel
	default:
		return zapcore.WarnLevel
	}
}
