package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vin-jex/queuectl/internal/store"
)

const jobColumns = `id, command, state, attempts, max_retries, created_at,
	updated_at, next_attempt, timeout, lease_expires, last_error`

func scanJob(row pgx.Row) (*store.Job, error) {
	var job store.Job

	err := row.Scan(
		&job.ID,
		&job.Command,
		&job.State,
		&job.Attempts,
		&job.MaxRetries,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.NextAttempt,
		&job.Timeout,
		&job.LeaseExpires,
		&job.LastError,
	)
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func (s *Store) CreateJob(ctx context.Context, job *store.Job) error {
	return s.WithTransaction(ctx, func(transaction pgx.Tx) error {
		var exists int
		err := transaction.QueryRow(ctx, `SELECT 1 FROM dlq WHERE id = $1`, job.ID).Scan(&exists)
		if err == nil {
			return fmt.Errorf("%w: %s is in the dead letter queue", store.ErrConflict, job.ID)
		}
		if !isNoRows(err) {
			return store.Unavailable("check dlq", err)
		}

		_, err = transaction.Exec(
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
			VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $8)
			`,
			job.ID,
			job.Command,
			job.Attempts,
			job.MaxRetries,
			job.CreatedAt,
			job.UpdatedAt,
			job.NextAttempt,
			job.Timeout,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrConflict, job.ID)
		}

		return store.Unavailable("insert job", err)
	})
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*store.Job, error) {
	row := s.connectionPool.QueryRow(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`,
		jobID,
	)

	job, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: job %s", store.ErrNotFound, jobID)
		}
		return nil, store.Unavailable("get job", err)
	}

	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, state string, limit int) ([]store.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any

	if state != "" {
		args = append(args, state)
		query += ` WHERE state = $1`
	}

	query += ` ORDER BY created_at, seq`

	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.connectionPool.Query(ctx, query, args...)
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
	rows, err := s.connectionPool.Query(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
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

func (s *Store) CompleteJob(ctx context.Context, jobID string, attempts int, now time.Time) error {
	return s.WithTransaction(ctx, func(transaction pgx.Tx) error {
		return transitionJobState(ctx, transaction, jobID, attempts, store.JobCompleted, now, 0, "")
	})
}

func (s *Store) RescheduleJob(
	ctx context.Context,
	jobID string,
	attempts int,
	nextAttempt time.Time,
	lastError string,
	now time.Time,
) error {
	return s.WithTransaction(ctx, func(transaction pgx.Tx) error {
		return transitionJobState(
			ctx,
			transaction,
			jobID,
			attempts,
			store.JobPending,
			now,
			nextAttempt.Unix(),
			store.Truncate(lastError),
		)
	})
}

// transitionJobState moves a job claimed at the given attempt count out of
// processing. The lease is always cleared.
func transitionJobState(
	ctx context.Context,
	transaction pgx.Tx,
	jobID string,
	attempts int,
	nextState string,
	now time.Time,
	nextAttempt int64,
	lastError string,
) error {
	if err := store.ValidateJobTransition(store.JobProcessing, nextState); err != nil {
		return err
	}

	commandTag, err := transaction.Exec(
		ctx,
		`
			UPDATE jobs
			SET state = $2,
					updated_at = $3,
					next_attempt = $4,
					last_error = $5,
					lease_expires = 0
			WHERE id = $1
					AND state = 'processing'
					AND attempts = $6
		`,
		jobID,
		nextState,
		now,
		nextAttempt,
		lastError,
		attempts,
	)
	if err != nil {
		return store.Unavailable("transition job", err)
	}

	if commandTag.RowsAffected() != 1 {
		return fmt.Errorf("%w: job %s is not processing at attempt %d", store.ErrInvalidStateTransition, jobID, attempts)
	}

	return nil
}
