package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vin-jex/queuectl/internal/store"
)

const jobColumns = `id, command, state, attempts, max_retries, created_at,
	updated_at, next_attempt, timeout, lease_expires, last_error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*store.Job, error) {
	var (
		job       store.Job
		createdAt string
		updatedAt string
	)

	if err := row.Scan(
		&job.ID,
		&job.Command,
		&job.State,
		&job.Attempts,
		&job.MaxRetries,
		&createdAt,
		&updatedAt,
		&job.NextAttempt,
		&job.Timeout,
		&job.LeaseExpires,
		&job.LastError,
	); err != nil {
		return nil, err
	}

	var err error
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &job, nil
}

func (s *Store) CreateJob(ctx context.Context, job *store.Job) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM dlq WHERE id = ?`, job.ID).Scan(&exists)
		if err == nil {
			return fmt.Errorf("%w: %s is in the dead letter queue", store.ErrConflict, job.ID)
		}
		if !isNoRows(err) {
			return store.Unavailable("check dlq", err)
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
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			job.ID,
			job.Command,
			store.JobPending,
			job.Attempts,
			job.MaxRetries,
			formatTime(job.CreatedAt),
			formatTime(job.UpdatedAt),
			job.NextAttempt,
			job.Timeout,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrConflict, job.ID)
		}

		return store.Unavailable("insert job", err)
	})
}

func (s *Store) GetJob(ctx context.Context, id string) (*store.Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`,
		id,
	)

	job, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: job %s", store.ErrNotFound, id)
		}
		return nil, store.Unavailable("get job", err)
	}

	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, state string, limit int) ([]store.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any

	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, state)
	}

	query += ` ORDER BY created_at, rowid`

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Unavailable("list jobs", err)
	}
	defer rows.Close()

	var jobs []store.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, store.Unavailable("scan job", err)
		}
		jobs = append(jobs, *job)
	}

	return jobs, store.Unavailable("list jobs", rows.Err())
}

func (s *Store) CountJobsByState(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, store.Unavailable("count jobs", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, store.Unavailable("scan count", err)
		}
		counts[state] = count
	}

	return counts, store.Unavailable("count jobs", rows.Err())
}

func (s *Store) CompleteJob(ctx context.Context, id string, attempts int, now time.Time) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		return transitionJobState(
			ctx,
			tx,
			id,
			attempts,
			store.JobCompleted,
			`updated_at = ?, lease_expires = 0, last_error = ''`,
			formatTime(now),
		)
	})
}

func (s *Store) RescheduleJob(
	ctx context.Context,
	id string,
	attempts int,
	nextAttempt time.Time,
	lastError string,
	now time.Time,
) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		return transitionJobState(
			ctx,
			tx,
			id,
			attempts,
			store.JobPending,
			`updated_at = ?, next_attempt = ?, lease_expires = 0, last_error = ?`,
			formatTime(now),
			nextAttempt.Unix(),
			store.Truncate(lastError),
		)
	})
}

// transitionJobState moves a processing job claimed at the given attempt
// count to nextState. assignments are extra SET clauses whose arguments
// precede the fence arguments.
func transitionJobState(
	ctx context.Context,
	tx *sql.Tx,
	jobID string,
	attempts int,
	nextState string,
	assignments string,
	args ...any,
) error {
	if err := store.ValidateJobTransition(store.JobProcessing, nextState); err != nil {
		return err
	}

	query := `UPDATE jobs SET state = ?`
	if assignments != "" {
		query += `, ` + assignments
	}
	query += ` WHERE id = ? AND state = ? AND attempts = ?`

	params := append([]any{nextState}, args...)
	params = append(params, jobID, store.JobProcessing, attempts)

	result, err := tx.ExecContext(ctx, query, params...)
	if err != nil {
		return store.Unavailable("transition job", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return store.Unavailable("transition job", err)
	}

	if affected != 1 {
		return fmt.Errorf("%w: job %s is not processing at attempt %d", store.ErrInvalidStateTransition, jobID, attempts)
	}

	return nil
}
