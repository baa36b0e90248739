package infra

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/jackc/pgx/v5"
)

// LocalServer locates a developer's PostgreSQL, honouring the libpq
// PGHOST, PGPORT and PGUSER variables.
type LocalServer struct {
	Host string
	Port string
	User string
}

func LocalServerFromEnv() LocalServer {
	return LocalServer{
		Host: cmp.Or(os.Getenv("PGHOST"), "127.0.0.1"),
		Port: cmp.Or(os.Getenv("PGPORT"), "5432"),
		User: os.Getenv("PGUSER"),
	}
}

func (s LocalServer) dsn(user, password, database string) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     s.Host + ":" + s.Port,
		Path:     "/" + database,
		RawQuery: "sslmode=disable",
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// AdminDSNs lists superuser candidates in the order they are tried: PGUSER,
// the stock postgres account, then the OS login.
func (s LocalServer) AdminDSNs() []string {
	var users []string
	seen := make(map[string]bool)
	for _, u := range []string{s.User, "postgres", os.Getenv("USER")} {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		users = append(users, u)
	}

	dsns := make([]string, 0, 2*len(users))
	for _, u := range users {
		dsns = append(dsns, s.dsn(u, "", "postgres"), s.dsn(u, "postgres", "postgres"))
	}
	return dsns
}

// RecreateDatabase drops and recreates database owned by the autilance role,
// returning a DSN that logs in as that role.
func (s LocalServer) RecreateDatabase(ctx context.Context, database string) (string, error) {
	var (
		admin *pgx.Conn
		errs  []error
	)
	for _, dsn := range s.AdminDSNs() {
		conn, err := pgx.Connect(ctx, dsn)
		if err == nil {
			admin = conn
			break
		}
		errs = append(errs, err)
	}
	if admin == nil {
		return "", fmt.Errorf("infra: no admin login on %s:%s: %w", s.Host, s.Port, errors.Join(errs...))
	}
	defer admin.Close(ctx)

	role := pgx.Identifier{appRole}.Sanitize()
	name := pgx.Identifier{database}.Sanitize()
	steps := []struct {
		what string
		sql  string
	}{
		{"create role", fmt.Sprintf("DO $$ BEGIN CREATE ROLE %s WITH LOGIN PASSWORD '%s'; EXCEPTION WHEN duplicate_object THEN NULL; END $$", role, appRole)},
		{"drop database", "DROP DATABASE IF EXISTS " + name + " WITH (FORCE)"},
		{"create database", "CREATE DATABASE " + name + " OWNER " + role},
	}
	for _, step := range steps {
		if _, err := admin.Exec(ctx, step.sql); err != nil {
			return "", fmt.Errorf("infra: %s %s: %w", step.what, database, err)
		}
	}
	return s.dsn(appRole, appRole, database), nil
}
