package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vin-jex/queuectl/internal/store"
)

func (s *Store) MoveToDLQ(ctx context.Context, entry store.DeadLetterEntry) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		return moveToDLQ(ctx, tx, entry)
	})
}

func moveToDLQ(ctx context.Context, tx *sql.Tx, entry store.DeadLetterEntry) error {
	if err := store.ValidateJobTransition(store.JobProcessing, store.JobDeadLettered); err != nil {
		return err
	}

	if _, err := tx.ExecContext(
		ctx,
		`
		INSERT OR REPLACE INTO dlq (id, command, failed_at, attempts, last_error)
		VALUES (?, ?, ?, ?, ?)
		`,
		entry.ID,
		entry.Command,
		formatTime(entry.FailedAt),
		entry.Attempts,
		store.Truncate(entry.LastError),
	); err != nil {
		return store.Unavailable("insert dlq entry", err)
	}

	result, err := tx.ExecContext(
		ctx,
		`DELETE FROM jobs WHERE id = ? AND state = ? AND attempts = ?`,
		entry.ID,
		store.JobProcessing,
		entry.Attempts,
	)
	if err != nil {
		return store.Unavailable("delete dead job", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return store.Unavailable("delete dead job", err)
	}

	if affected != 1 {
		return fmt.Errorf("%w: job %s is not processing at attempt %d", store.ErrInvalidStateTransition, entry.ID, entry.Attempts)
	}

	return nil
}

func scanDeadLetter(row rowScanner) (*store.DeadLetterEntry, error) {
	var (
		entry    store.DeadLetterEntry
		failedAt string
	)

	if err := row.Scan(&entry.ID, &entry.Command, &failedAt, &entry.Attempts, &entry.LastError); err != nil {
		return nil, err
	}

	var err error
	if entry.FailedAt, err = parseTime(failedAt); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (s *Store) ListDLQ(ctx context.Context) ([]store.DeadLetterEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, failed_at, attempts, last_error
		FROM dlq
		ORDER BY failed_at, rowid
	`)
	if err != nil {
		return nil, store.Unavailable("list dlq", err)
	}
	defer rows.Close()

	var entries []store.DeadLetterEntry
	for rows.Next() {
		entry, err := scanDeadLetter(rows)
		if err != nil {
			return nil, store.Unavailable("scan dlq entry", err)
		}
		entries = append(entries, *entry)
	}

	return entries, store.Unavailable("list dlq", rows.Err())
}

func (s *Store) GetDLQ(ctx context.Context, id string) (*store.DeadLetterEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, command, failed_at, attempts, last_error
		FROM dlq
		WHERE id = ?
	`, id)

	entry, err := scanDeadLetter(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: dlq entry %s", store.ErrNotFound, id)
		}
		return nil, store.Unavailable("get dlq entry", err)
	}

	return entry, nil
}

func (s *Store) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dlq`).Scan(&count)
	return count, store.Unavailable("count dlq", err)
}

func (s *Store) ReplayDLQ(
	ctx context.Context,
	id string,
	maxRetries int,
	timeout int,
	now time.Time,
) (*store.Job, error) {
	var replayed *store.Job

	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		entry, err := scanDeadLetter(tx.QueryRowContext(ctx, `
			SELECT id, command, failed_at, attempts, last_error
			FROM dlq
			WHERE id = ?
		`, id))
		if err != nil {
			if isNoRows(err) {
				return fmt.Errorf("%w: dlq entry %s", store.ErrNotFound, id)
			}
			return store.Unavailable("read dlq entry", err)
		}

		job := &store.Job{
			ID:         entry.ID,
			Command:    entry.Command,
			State:      store.JobPending,
			MaxRetries: maxRetries,
			Timeout:    timeout,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		_, err = tx.ExecContext(
			ctx,
			`
			INSERT INTO jobs (
				id,
				command,
				state,
				attempts,
				max_retries,
				created_at,
				updated_at,
				next_attempt,
				timeout
			)
			VALUES (?, ?, ?, 0, ?, ?, ?, 0, ?)
			`,
			job.ID,
			job.Command,
			job.State,
			job.MaxRetries,
			formatTime(now),
			formatTime(now),
			job.Timeout,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrConflict, id)
		}
		if err != nil {
			return store.Unavailable("recreate job", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM dlq WHERE id = ?`, id); err != nil {
			return store.Unavailable("delete dlq entry", err)
		}

		replayed = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	return replayed, nil
}
