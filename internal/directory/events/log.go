package events

import (
	"context"
	"log/slog"

	"residents/internal/directory/models"
)

// LogPublisher writes each notification as a structured audit log line.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher constructs a log sink.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishPersonAdded(ctx context.Context, event models.PersonAdded) error {
	p.logger.InfoContext(ctx, models.EventPersonAdded,
		"event", models.EventPersonAdded,
		"log_type", "audit",
		"event_id", event.EventID.String(),
		"name", event.Name,
		"age", event.Age,
		"residency_status", event.ResidencyStatus.String(),
		"request_id", event.RequestID,
	)
	return nil
}
