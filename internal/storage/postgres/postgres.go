// Package postgres provides Postgres-backed job and recipe stores.
package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Pool is the subset of pgxpool.Pool the stores use.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Connect opens a pgx pool from cfg.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Schema creates the tables the stores expect.
const Schema = `
CREATE TABLE IF NOT EXISTS import_jobs (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	source_kind     TEXT NOT NULL,
	source_value    TEXT NOT NULL,
	bio_url         TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	error_code      TEXT NOT NULL DEFAULT '',
	error_message   TEXT NOT NULL DEFAULT '',
	notice          TEXT NOT NULL DEFAULT '',
	recipe_id       TEXT NOT NULL DEFAULT '',
	duplicate       BOOLEAN NOT NULL DEFAULT FALSE,
	review_required BOOLEAN NOT NULL DEFAULT FALSE,
	needs_bio_url   BOOLEAN NOT NULL DEFAULT FALSE,
	confidence      JSONB,
	canonical_url   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	started_at      TIMESTAMPTZ,
	completed_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS import_jobs_user_created ON import_jobs (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS recipes (
	id               TEXT PRIMARY KEY,
	owner_id         TEXT NOT NULL,
	canonical_url    TEXT NOT NULL DEFAULT '',
	fingerprint      TEXT NOT NULL DEFAULT '',
	title            TEXT NOT NULL,
	payload          JSONB NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	review_required  BOOLEAN NOT NULL DEFAULT FALSE,
	nutrition_status TEXT NOT NULL,
	nutrition        JSONB,
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS recipes_owner_url_unique ON recipes (owner_id, canonical_url) WHERE canonical_url <> '';
CREATE INDEX IF NOT EXISTS recipes_owner_fingerprint ON recipes (owner_id, fingerprint);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
