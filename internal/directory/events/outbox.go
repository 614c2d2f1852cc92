package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"residents/internal/directory/models"
	txcontext "residents/pkg/platform/tx"
)

// OutboxPublisher records notifications in the outbox table using the SQL
// transaction of the add that produced them. It must run inside
// PostgresTx.RunInTx; without a transaction in context it refuses to write so
// a notification can never commit apart from its record.
type OutboxPublisher struct{}

// NewOutboxPublisher constructs an outbox sink.
func NewOutboxPublisher() *OutboxPublisher {
	return &OutboxPublisher{}
}

func (p *OutboxPublisher) PublishPersonAdded(ctx context.Context, event models.PersonAdded) error {
	tx, ok := txcontext.From(ctx)
	if !ok {
		return fmt.Errorf("outbox publish requires a transaction in context")
	}
	payload, err := models.EncodePersonAdded(event)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.ExecContext(ctx, query,
		uuid.New(),
		"resident",
		event.Name,
		models.EventPersonAdded,
		payload,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}
