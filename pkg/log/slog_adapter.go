package log

import (
	"context"
	"log/slog"
	"maps"
	"slices"
)

// SlogAdapter writes events to an slog.Logger at Debug level, errors at
// Warn level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("client_id", event.ClientID),
		slog.String("category", event.Category.String()),
	}
	if event.Operation != "" {
		attrs = append(attrs, slog.String("op", event.Operation))
	}
	if event.SensorID != 0 {
		attrs = append(attrs, slog.Int("sensor_id", int(event.SensorID)))
	}
	if event.SubscriptionID != 0 {
		attrs = append(attrs, slog.Uint64("subscription_id", uint64(event.SubscriptionID)))
	}
	if event.Mode != "" {
		attrs = append(attrs, slog.String("mode", event.Mode))
	}
	if event.Interval != nil {
		attrs = append(attrs, slog.Int64("interval_ns", *event.Interval))
	}
	if event.Callback != "" {
		attrs = append(attrs, slog.String("callback", event.Callback))
	}

	level := slog.LevelDebug
	switch {
	case event.Fields != nil:
		fields := make([]any, 0, len(event.Fields))
		for _, k := range slices.Sorted(maps.Keys(event.Fields)) {
			fields = append(fields, slog.Float64(k, event.Fields[k]))
		}
		attrs = append(attrs, slog.Group("fields", fields...))
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.Int("error_code", int(event.Error.Code)),
			slog.String("error_msg", event.Error.Message),
			slog.Bool("async", event.Error.Async),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "sensor event", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
