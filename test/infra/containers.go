package infra

import (
	"cmp"
	"context"
	"fmt"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	defaultPostgresImage = "postgres:16-alpine"
	appRole              = "autilance"
)

// PostgresOptions names the database a test run provisions. Zero fields take
// the defaults from PostgresOptionsFromEnv.
type PostgresOptions struct {
	Image    string
	Database string
	User     string
	Password string
}

// PostgresOptionsFromEnv reads AUTILANCE_TEST_PG_IMAGE so CI can pin a
// different server version without code changes.
func PostgresOptionsFromEnv(database string) PostgresOptions {
	return PostgresOptions{
		Image:    cmp.Or(os.Getenv("AUTILANCE_TEST_PG_IMAGE"), defaultPostgresImage),
		Database: cmp.Or(database, appRole),
		User:     appRole,
		Password: appRole,
	}
}

type PGContainer struct {
	C   *postgres.PostgresContainer
	DSN string
}

// StartPostgres runs a disposable server described by opts and waits until it
// accepts connections.
func StartPostgres(ctx context.Context, opts PostgresOptions) (*PGContainer, error) {
	def := PostgresOptionsFromEnv(opts.Database)
	opts.Image = cmp.Or(opts.Image, def.Image)
	opts.Database = def.Database
	opts.User = cmp.Or(opts.User, def.User)
	opts.Password = cmp.Or(opts.Password, def.Password)

	pgC, err := postgres.Run(ctx, opts.Image,
		postgres.WithDatabase(opts.Database),
		postgres.WithUsername(opts.User),
		postgres.WithPassword(opts.Password),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("infra: run %s: %w", opts.Image, err)
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, fmt.Errorf("infra: container dsn: %w", err)
	}
	return &PGContainer{C: pgC, DSN: dsn}, nil
}

// Terminate is safe on a nil or shared-database container.
func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}
