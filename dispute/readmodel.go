package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// Querier is the read-only subset of pgxpool.Pool the read model needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGReadModel assembles the dispute detail from independent fetches.
type PGReadModel struct {
	db Querier
}

func NewReadModel(db Querier) *PGReadModel {
	return &PGReadModel{db: db}
}

func (m *PGReadModel) Detail(ctx context.Context, disputeID string) (Detail, error) {
	var (
		detail     Detail
		contractID string
		filedBy    string
	)
	const baseSQL = `
		SELECT id, contract_id, filed_by, reason, status, created_at, updated_at
		FROM disputes
		WHERE id = $1
	`
	err := m.db.QueryRow(ctx, baseSQL, disputeID).Scan(
		&detail.ID, &contractID, &filedBy, &detail.Reason, &detail.Status, &detail.CreatedAt, &detail.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, ErrNotFound
		}
		return Detail{}, fmt.Errorf("dispute: load detail: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		contract, err := m.contract(gctx, contractID)
		if err != nil {
			return err
		}
		detail.Contract = contract
		return nil
	})
	g.Go(func() error {
		filer, err := m.party(gctx, filedBy)
		if err != nil {
			return err
		}
		detail.FiledBy = filer
		return nil
	})
	g.Go(func() error {
		resolutions, err := m.resolutions(gctx, disputeID)
		if err != nil {
			return err
		}
		detail.Resolutions = resolutions
		return nil
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}
	return detail, nil
}

func (m *PGReadModel) contract(ctx context.Context, contractID string) (Contract, error) {
	const query = `
		SELECT c.id, c.title, c.amount_cents,
		       cl.id, cl.full_name, cl.email,
		       fr.id, fr.full_name, fr.email
		FROM contracts c
		JOIN users cl ON cl.id = c.client_id
		JOIN users fr ON fr.id = c.freelancer_id
		WHERE c.id = $1
	`
	var c Contract
	err := m.db.QueryRow(ctx, query, contractID).Scan(
		&c.ID, &c.Title, &c.AmountCents,
		&c.Client.ID, &c.Client.FullName, &c.Client.Email,
		&c.Freelancer.ID, &c.Freelancer.FullName, &c.Freelancer.Email,
	)
	if err != nil {
		return Contract{}, fmt.Errorf("dispute: load contract %s: %w", contractID, err)
	}
	return c, nil
}

func (m *PGReadModel) party(ctx context.Context, userID string) (Party, error) {
	var p Party
	err := m.db.QueryRow(ctx, `SELECT id, full_name, email FROM users WHERE id = $1`, userID).
		Scan(&p.ID, &p.FullName, &p.Email)
	if err != nil {
		return Party{}, fmt.Errorf("dispute: load party %s: %w", userID, err)
	}
	return p, nil
}

func (m *PGReadModel) resolutions(ctx context.Context, disputeID string) ([]Resolution, error) {
	const query = `
		SELECT id, outcome, notes, proposed_by, created_at
		FROM dispute_resolutions
		WHERE dispute_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := m.db.Query(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list resolutions: %w", err)
	}
	defer rows.Close()

	out := make([]Resolution, 0, 4)
	for rows.Next() {
		var res Resolution
		if err := rows.Scan(&res.ID, &res.Outcome, &res.Notes, &res.ProposedBy, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan resolution: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate resolutions: %w", err)
	}
	return out, nil
}
