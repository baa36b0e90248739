package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns queries that must yield zero rows on a consistent database.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_escalated_without_audit",
			SQL: `SELECT d.id FROM disputes d
                  WHERE d.status = 'escalated'
                    AND NOT EXISTS (
                        SELECT 1 FROM audit_logs a
                        WHERE a.action = 'dispute_escalated' AND a.payload ->> 'disputeId' = d.id)`,
		},
		{
			Name: "O2_audit_without_escalation",
			SQL: `SELECT a.id FROM audit_logs a
                  LEFT JOIN disputes d ON d.id = a.payload ->> 'disputeId'
                  WHERE a.action = 'dispute_escalated'
                    AND (d.id IS NULL OR d.status <> 'escalated')`,
		},
		{
			Name: "O3_duplicate_escalation",
			SQL: `SELECT payload ->> 'disputeId', COUNT(*) FROM audit_logs
                  WHERE action = 'dispute_escalated'
                  GROUP BY payload ->> 'disputeId' HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_outbox_audit_mismatch",
			SQL: `WITH a AS (SELECT COUNT(*) AS n FROM audit_logs WHERE action = 'dispute_escalated'),
                       o AS (SELECT COUNT(*) AS n FROM outbox WHERE topic = 'dispute.escalated')
                  SELECT a.n, o.n FROM a, o WHERE a.n <> o.n`,
		},
		{
			Name: "O5_audit_mutation_guard",
			SQL: `SELECT 'missing_no_mutate_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'no_mutate_audit_logs')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
