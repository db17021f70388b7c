package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vin-jex/queuectl/internal/store"
)

func (s *Store) MoveToDLQ(ctx context.Context, entry store.DeadLetterEntry) error {
	return s.WithTransaction(ctx, func(tx pgx.Tx) error {
		return moveToDLQ(ctx, tx, entry)
	})
}

func moveToDLQ(ctx context.Context, tx pgx.Tx, entry store.DeadLetterEntry) error {
	if err := store.ValidateJobTransition(store.JobProcessing, store.JobDeadLettered); err != nil {
		return err
	}

	if _, err := tx.Exec(
		ctx,
		`
		INSERT INTO dlq (id, command, failed_at, attempts, last_error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE
		SET command = EXCLUDED.command,
			failed_at = EXCLUDED.failed_at,
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error
		`,
		entry.ID,
		entry.Command,
		entry.FailedAt,
		entry.Attempts,
		store.Truncate(entry.LastError),
	); err != nil {
		return store.Unavailable("insert dlq entry", err)
	}

	commandTag, err := tx.Exec(
		ctx,
		`DELETE FROM jobs WHERE id = $1 AND state = 'processing' AND attempts = $2`,
		entry.ID,
		entry.Attempts,
	)
	if err != nil {
		return store.Unavailable("delete dead job", err)
	}

	if commandTag.RowsAffected() != 1 {
		return fmt.Errorf("%w: job %s is not processing at attempt %d", store.ErrInvalidStateTransition, entry.ID, entry.Attempts)
	}

	return nil
}

const dlqColumns = `id, command, failed_at, attempts, last_error`

func scanDeadLetter(row pgx.Row) (*store.DeadLetterEntry, error) {
	var entry store.DeadLetterEntry
	if err := row.Scan(&entry.ID, &entry.Command, &entry.FailedAt, &entry.Attempts, &entry.LastError); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) ListDLQ(ctx context.Context) ([]store.DeadLetterEntry, error) {
	rows, err := s.connectionPool.Query(ctx, `SELECT `+dlqColumns+` FROM dlq ORDER BY failed_at, seq`)
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

func (s *Store) GetDLQ(ctx context.Context, jobID string) (*store.DeadLetterEntry, error) {
	entry, err := scanDeadLetter(s.connectionPool.QueryRow(
		ctx,
		`SELECT `+dlqColumns+` FROM dlq WHERE id = $1`,
		jobID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: dlq entry %s", store.ErrNotFound, jobID)
		}
		return nil, store.Unavailable("get dlq entry", err)
	}

	return entry, nil
}

func (s *Store) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.connectionPool.QueryRow(ctx, `SELECT COUNT(*) FROM dlq`).Scan(&count)
	return count, store.Unavailable("count dlq", err)
}

func (s *Store) ReplayDLQ(
	ctx context.Context,
	jobID string,
	maxRetries int,
	timeout int,
	now time.Time,
) (*store.Job, error) {
	var replayed *store.Job

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		entry, err := scanDeadLetter(tx.QueryRow(
			ctx,
			`SELECT `+dlqColumns+` FROM dlq WHERE id = $1 FOR UPDATE`,
			jobID,
		))
		if err != nil {
			if isNoRows(err) {
				return fmt.Errorf("%w: dlq entry %s", store.ErrNotFound, jobID)
			}
			return store.Unavailable("read dlq entry", err)
		}

		_, err = tx.Exec(
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
			VALUES ($1, $2, 'pending', 0, $3, $4, $4, 0, $5)
			`,
			entry.ID,
			entry.Command,
			maxRetries,
			now,
			timeout,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrConflict, jobID)
		}
		if err != nil {
			return store.Unavailable("recreate job", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM dlq WHERE id = $1`, jobID); err != nil {
			return store.Unavailable("delete dlq entry", err)
		}

		replayed = &store.Job{
			ID:         entry.ID,
			Command:    entry.Command,
			State:      store.JobPending,
			MaxRetries: maxRetries,
			Timeout:    timeout,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return replayed, nil
}
