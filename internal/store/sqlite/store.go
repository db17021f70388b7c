// Package sqlite is the default queue backend: a single database file shared
// by every queuectl process on the host.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/vin-jex/queuectl/internal/store"
)

var _ store.Store = (*Store)(nil)

// Fixed width so lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
}

// Open connects to the database file at path. Write transactions start
// with BEGIN IMMEDIATE so concurrent claimers serialize on the write lock
// instead of failing on lock upgrade.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate",
		path,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, store.Unavailable("open database", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, store.Unavailable("ping database", err)
	}

	return &Store{db: db}, nil
}

// NewFromDB wraps an already opened handle. The caller is responsible for
// the connection options.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return store.Unavailable("ping", s.db.PingContext(ctx))
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id            TEXT PRIMARY KEY,
		command       TEXT NOT NULL,
		state         TEXT NOT NULL,
		attempts      INTEGER NOT NULL DEFAULT 0,
		max_retries   INTEGER NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		next_attempt  INTEGER NOT NULL DEFAULT 0,
		timeout       INTEGER NOT NULL DEFAULT 60,
		lease_expires INTEGER NOT NULL DEFAULT 0,
		last_error    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_claim
		ON jobs (state, next_attempt, created_at)`,
	`CREATE TABLE IF NOT EXISTS dlq (
		id         TEXT PRIMARY KEY,
		command    TEXT NOT NULL,
		failed_at  TEXT NOT NULL,
		attempts   INTEGER NOT NULL,
		last_error TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS workers (
		id             TEXT PRIMARY KEY,
		slot           INTEGER NOT NULL,
		pid            INTEGER NOT NULL,
		hostname       TEXT NOT NULL,
		started_at     TEXT NOT NULL,
		last_heartbeat TEXT NOT NULL,
		current_job    TEXT NOT NULL DEFAULT ''
	)`,
}

func (s *Store) Initialize(ctx context.Context) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, statement := range schema {
			if _, err := tx.ExecContext(ctx, statement); err != nil {
				return store.Unavailable("create schema", err)
			}
		}

		for key, value := range store.DefaultConfig() {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)`,
				key,
				value,
			); err != nil {
				return store.Unavailable("seed config", err)
			}
		}

		return nil
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
