package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event as one "protocol" record. Error events are logged at
// Error level so they show up without -debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Protocol != "" {
		attrs = append(attrs, slog.String("protocol", event.Protocol))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	level := slog.LevelDebug
	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		m := event.Message
		attrs = append(attrs,
			slog.String("msg_type", m.Type.String()),
			slog.String("name", m.Name),
		)
		if m.Strip != nil {
			attrs = append(attrs, slog.Uint64("strip", uint64(*m.Strip)))
		}
		if m.Zone != nil {
			attrs = append(attrs, slog.Uint64("zone", uint64(*m.Zone)))
		}
		if m.Device != nil {
			attrs = append(attrs, slog.Uint64("device", uint64(*m.Device)))
		}
		if m.Count > 0 {
			attrs = append(attrs, slog.Int("count", m.Count))
		}
	case event.StateChange != nil:
		sc := event.StateChange
		attrs = append(attrs,
			slog.String("entity", sc.Entity.String()),
			slog.String("old_state", sc.OldState),
			slog.String("new_state", sc.NewState),
		)
		if sc.Ref != "" {
			attrs = append(attrs, slog.String("ref", sc.Ref))
		}
		if sc.Reason != "" {
			attrs = append(attrs, slog.String("reason", sc.Reason))
		}
	case event.ControlMsg != nil:
		attrs = append(attrs, slog.String("ctrl_type", event.ControlMsg.Type.String()))
		if event.ControlMsg.CloseCode != nil {
			attrs = append(attrs, slog.Int("close_code", *event.ControlMsg.CloseCode))
		}
	case event.Error != nil:
		level = slog.LevelError
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
