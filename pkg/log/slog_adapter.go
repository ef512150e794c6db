package log

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger.
// Useful for development when you want to see transfers in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("instance_id", event.InstanceID),
		slog.String("category", event.Category.String()),
	}

	if event.Bus != "" {
		attrs = append(attrs, slog.String("bus", event.Bus))
	}
	if event.Client != "" {
		attrs = append(attrs, slog.String("client", event.Client))
	}

	switch {
	case event.Transfer != nil:
		attrs = append(attrs, transferAttrs(event.Transfer)...)
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
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Transfer != nil {
			attrs = append(attrs, transferAttrs(event.Error.Transfer)...)
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
}

func transferAttrs(t *TransferEvent) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("direction", t.Direction.String()),
		slog.Uint64("address", uint64(t.Address)),
		slog.Uint64("offset", uint64(t.Offset)),
		slog.Int("length", t.Length),
		slog.Int("moved", t.Moved),
	}
	if len(t.Data) > 0 {
		attrs = append(attrs, slog.String("data", hex.EncodeToString(t.Data)))
	}
	return attrs
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
