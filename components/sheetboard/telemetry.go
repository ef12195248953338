package sheetboard

import (
	"context"
	"log/slog"
)

// Telemetry records board events for observability.
type Telemetry interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t Telemetry) Telemetry {
	if t == nil {
		return noopTelemetry{}
	}
	return t
}

// SlogTelemetry writes events to a slog.Logger. Events whose payload carries
// an "error" key are logged at warn level.
type SlogTelemetry struct {
	Logger *slog.Logger
}

// Record implements Telemetry.
func (t SlogTelemetry) Record(ctx context.Context, event string, payload map[string]any) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]slog.Attr, 0, len(payload))
	for k, v := range payload {
		attrs = append(attrs, slog.Any(k, v))
	}
	level := slog.LevelDebug
	if _, failed := payload["error"]; failed {
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx, level, event, attrs...)
}
