package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads back audit entries. It backs verification tooling only;
// the HTTP surface does not expose the audit trail.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByDispute returns entries whose payload references the dispute,
// oldest first.
func (r *Repository) ListByDispute(ctx context.Context, disputeID string) ([]Entry, error) {
	const query = `
		SELECT id::text, action, actor_id, payload, created_at
		FROM audit_logs
		WHERE payload ->> 'disputeId' = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("audit: list by dispute: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, 4)
	for rows.Next() {
		var (
			e   Entry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Payload); err != nil {
			return nil, fmt.Errorf("audit: decode payload: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate: %w", err)
	}
	return out, nil
}
