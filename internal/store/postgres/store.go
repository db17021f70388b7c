// Package postgres is the optional queue backend for hosts that already run
// PostgreSQL. Claims lock candidate rows with FOR UPDATE SKIP LOCKED.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vin-jex/queuectl/internal/store"
)

var _ store.Store = (*Store)(nil)

// Arbitrary key serializing concurrent schema creation.
const schemaLockKey = 0x71756575

type Store struct {
	connectionPool *pgxpool.Pool
}

func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, store.Unavailable("connect", err)
	}

	return &Store{connectionPool: pool}, nil
}

func (s *Store) Close() error {
	s.connectionPool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return store.Unavailable("ping", s.connectionPool.Ping(ctx))
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		seq           BIGSERIAL,
		id            TEXT PRIMARY KEY,
		command       TEXT NOT NULL,
		state         TEXT NOT NULL,
		attempts      INTEGER NOT NULL DEFAULT 0,
		max_retries   INTEGER NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL,
		next_attempt  BIGINT NOT NULL DEFAULT 0,
		timeout       INTEGER NOT NULL DEFAULT 60,
		lease_expires BIGINT NOT NULL DEFAULT 0,
		last_error    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_claim
		ON jobs (created_at, seq)
		WHERE state = 'pending'`,
	`CREATE TABLE IF NOT EXISTS dlq (
		seq        BIGSERIAL,
		id         TEXT PRIMARY KEY,
		command    TEXT NOT NULL,
		failed_at  TIMESTAMPTZ NOT NULL,
		attempts   INTEGER NOT NULL,
		last_error TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS workers (
		id             TEXT PRIMARY KEY,
		slot           INTEGER NOT NULL,
		pid            INTEGER NOT NULL,
		hostname       TEXT NOT NULL,
		started_at     TIMESTAMPTZ NOT NULL,
		last_heartbeat TIMESTAMPTZ NOT NULL,
		current_job    TEXT NOT NULL DEFAULT ''
	)`,
}

func (s *Store) Initialize(ctx context.Context) error {
	return s.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
			return store.Unavailable("lock schema", err)
		}

		for _, statement := range schema {
			if _, err := tx.Exec(ctx, statement); err != nil {
				return store.Unavailable("create schema", err)
			}
		}

		for key, value := range store.DefaultConfig() {
			if _, err := tx.Exec(
				ctx,
				`INSERT INTO meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
				key,
				value,
			); err != nil {
				return store.Unavailable("seed config", err)
			}
		}

		return nil
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
