package dispute

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// OutboxTopicDisputeEscalated is published whenever a dispute is escalated.
	OutboxTopicDisputeEscalated = "dispute.escalated"
)

// PGOutbox enqueues messages for downstream delivery inside the caller's
// transaction.
type PGOutbox struct {
	idGenerator func() string
}

func NewOutbox() *PGOutbox {
	return &PGOutbox{idGenerator: uuid.NewString}
}

func (o *PGOutbox) Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispute: marshal outbox payload: %w", err)
	}
	const q = `INSERT INTO outbox (id, topic, payload) VALUES ($1, $2, $3::jsonb)`
	if _, err := tx.Exec(ctx, q, o.idGenerator(), topic, body); err != nil {
		return fmt.Errorf("dispute: enqueue outbox: %w", err)
	}
	return nil
}
