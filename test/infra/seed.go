package infra

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Fixture is one contract with its two parties, a moderator and an admin.
type Fixture struct {
	ClientID     string
	FreelancerID string
	ModeratorID  string
	AdminID      string
	ContractID   string
}

var seq atomic.Int64

// SeedFixture inserts the users and contract every dispute hangs off.
func SeedFixture(ctx context.Context, pool *pgxpool.Pool) (Fixture, error) {
	n := seq.Add(1)
	var f Fixture
	users := []struct {
		dst  *string
		name string
		role string
	}{
		{&f.ClientID, "Carla Client", "USER"},
		{&f.FreelancerID, "Fred Freelancer", "USER"},
		{&f.ModeratorID, "Mona Moderator", "MODERATOR"},
		{&f.AdminID, "Adam Admin", "ADMIN"},
	}
	for i, u := range users {
		email := fmt.Sprintf("user%d-%d@autilance.test", n, i)
		if err := pool.QueryRow(ctx,
			`INSERT INTO users (email, full_name, role) VALUES ($1, $2, $3) RETURNING id`,
			email, u.name, u.role).Scan(u.dst); err != nil {
			return Fixture{}, fmt.Errorf("infra: seed user %s: %w", u.name, err)
		}
	}

	f.ContractID = fmt.Sprintf("CON-%03d", n)
	if _, err := pool.Exec(ctx,
		`INSERT INTO contracts (id, title, client_id, freelancer_id, amount_cents) VALUES ($1, $2, $3, $4, $5)`,
		f.ContractID, "Marketing site rebuild", f.ClientID, f.FreelancerID, int64(250000)); err != nil {
		return Fixture{}, fmt.Errorf("infra: seed contract: %w", err)
	}
	return f, nil
}

// SeedDispute files a dispute by the client against the fixture contract.
func SeedDispute(ctx context.Context, pool *pgxpool.Pool, f Fixture, id, status string) error {
	if _, err := pool.Exec(ctx,
		`INSERT INTO disputes (id, contract_id, filed_by, reason, status) VALUES ($1, $2, $3, $4, $5)`,
		id, f.ContractID, f.ClientID, "Deliverables missing", status); err != nil {
		return fmt.Errorf("infra: seed dispute %s: %w", id, err)
	}
	return nil
}
