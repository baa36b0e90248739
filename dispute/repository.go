package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const snapshotSQL = `
	SELECT d.id, d.status, c.client_id, c.freelancer_id
	FROM disputes d
	JOIN contracts c ON c.id = d.contract_id
	WHERE d.id = $1
`

func (r *PGRepository) GetSnapshot(ctx context.Context, disputeID string) (Snapshot, error) {
	snap, err := scanSnapshot(r.pool.QueryRow(ctx, snapshotSQL, disputeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("dispute: get snapshot: %w", err)
	}
	return snap, nil
}

// LockSnapshot reads the dispute and holds its row lock until tx ends, so
// concurrent transitions of the same dispute are serialised.
func (r *PGRepository) LockSnapshot(ctx context.Context, tx pgx.Tx, disputeID string) (Snapshot, error) {
	snap, err := scanSnapshot(tx.QueryRow(ctx, snapshotSQL+" FOR UPDATE OF d", disputeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("dispute: lock snapshot: %w", err)
	}
	return snap, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, disputeID string, next Status) (Record, error) {
	const query = `
		UPDATE disputes d
		SET status = $2, updated_at = now()
		FROM contracts c
		WHERE d.id = $1 AND c.id = d.contract_id
		RETURNING d.id, d.contract_id, d.filed_by, d.reason, d.status,
		          c.client_id, c.freelancer_id, d.created_at, d.updated_at
	`

	rec, err := scanRecord(tx.QueryRow(ctx, query, disputeID, string(next)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: update status: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Record, int, error) {
	const query = `
		SELECT d.id, d.contract_id, d.filed_by, d.reason, d.status,
		       c.client_id, c.freelancer_id, d.created_at, d.updated_at
		FROM disputes d
		JOIN contracts c ON c.id = d.contract_id
		WHERE ($1 = '' OR d.status = $1)
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT $2 OFFSET $3
	`

	status := string(filters.Status)
	rows, err := r.pool.Query(ctx, query, status, filters.PageSize, (filters.Page-1)*filters.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, filters.PageSize)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("dispute: iterate: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM disputes WHERE ($1 = '' OR status = $1)`, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("dispute: count: %w", err)
	}
	return out, total, nil
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var snap Snapshot
	if err := row.Scan(&snap.ID, &snap.Status, &snap.ClientID, &snap.FreelancerID); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.ContractID,
		&rec.FiledBy,
		&rec.Reason,
		&rec.Status,
		&rec.ClientID,
		&rec.FreelancerID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
