package outbox

import (
	"context"
	"log/slog"

	"sns/internal/registry/models"
)

// LogSink writes events to the logger. The daemon uses it when no broker is
// configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Publish(ctx context.Context, events []*models.Event) error {
	for _, e := range events {
		l.logger.InfoContext(ctx, "registry event",
			"event_id", e.ID,
			"type", e.Type,
			"name", e.Name,
			"actor", e.Actor.Hex(),
			"amount", e.Amount,
		)
	}
	return nil
}
