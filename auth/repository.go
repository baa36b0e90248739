package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
)

const uniqueViolation = "23505"

// Repository is the account store behind sessions.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
}

type CreateUserParams struct {
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
}

// PGRepository reads and writes the users table.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// userRow mirrors the users columns; emails are stored lower-cased.
type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	FullName     string    `db:"full_name"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r userRow) user() User {
	return User{
		ID:           r.ID,
		Email:        r.Email,
		FullName:     r.FullName,
		PasswordHash: r.PasswordHash,
		Role:         Role(r.Role),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const userColumns = `id, email, full_name, password_hash, role, created_at, updated_at`

func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	const q = `
		INSERT INTO users (email, full_name, password_hash, role)
		VALUES (lower($1), $2, $3, $4)
		RETURNING ` + userColumns

	user, err := r.one(ctx, q, params.Email, params.FullName, params.PasswordHash, string(params.Role))
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return user, nil
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return User{}, ErrDuplicateEmail
	default:
		return User{}, fmt.Errorf("auth: create user: %w", err)
	}
}

func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return r.lookup(ctx, "email", `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email)
}

func (r *PGRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	return r.lookup(ctx, "id", `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
}

func (r *PGRepository) lookup(ctx context.Context, by, q string, arg string) (User, error) {
	user, err := r.one(ctx, q, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by %s: %w", by, err)
	}
	return user, nil
}

// one runs q and collects exactly one users row.
func (r *PGRepository) one(ctx context.Context, q string, args ...any) (User, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return User{}, err
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
	if err != nil {
		return User{}, err
	}
	return row.user(), nil
}
