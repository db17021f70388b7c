package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vin-jex/queuectl/internal/store"
)

func (s *Store) ClaimNextPendingJob(
	ctx context.Context,
	now time.Time,
	leaseGrace time.Duration,
) (*store.Job, error) {
	var claimed *store.Job

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		var jobID string
		err := tx.QueryRow(
			ctx,
			`
			SELECT id
			FROM jobs
			WHERE state = 'pending' AND next_attempt <= $1
			ORDER BY created_at, seq
			FOR UPDATE SKIP LOCKED
			LIMIT 1
			`,
			now.Unix(),
		).Scan(&jobID)
		if isNoRows(err) {
			return nil
		}
		if err != nil {
			return store.Unavailable("select claimable job", err)
		}

		if err := store.ValidateJobTransition(store.JobPending, store.JobProcessing); err != nil {
			return err
		}

		commandTag, err := tx.Exec(
			ctx,
			`
			UPDATE jobs
			SET state = 'processing',
				attempts = attempts + 1,
				updated_at = $2,
				next_attempt = 0,
				lease_expires = $3 + timeout
			WHERE id = $1 AND state = 'pending'
			`,
			jobID,
			now,
			now.Add(leaseGrace).Unix(),
		)
		if err != nil {
			return store.Unavailable("claim job", err)
		}

		if commandTag.RowsAffected() == 0 {
			return nil
		}

		claimed, err = scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID))
		if err != nil {
			return store.Unavailable("read claimed job", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

func (s *Store) RecoverExpiredLeases(
	ctx context.Context,
	now time.Time,
) ([]string, error) {
	var recovered []string

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, command, attempts, max_retries
			FROM jobs
			WHERE state = 'processing'
			  AND lease_expires > 0
			  AND lease_expires <= $1
			ORDER BY created_at, seq
			FOR UPDATE SKIP LOCKED
		`, now.Unix())
		if err != nil {
			return store.Unavailable("select expired leases", err)
		}

		type orphan struct {
			jobID      string
			command    string
			attempts   int
			maxRetries int
		}

		var orphans []orphan
		for rows.Next() {
			var o orphan
			if err := rows.Scan(&o.jobID, &o.command, &o.attempts, &o.maxRetries); err != nil {
				rows.Close()
				return store.Unavailable("scan expired lease", err)
			}
			orphans = append(orphans, o)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return store.Unavailable("select expired leases", err)
		}

		for _, o := range orphans {
			if err := s.recoverSingleJob(ctx, tx, o.jobID, o.command, o.attempts, o.maxRetries, now); err != nil {
				return err
			}
			recovered = append(recovered, o.jobID)
		}

		return nil
	})

	return recovered, err
}

func (s *Store) recoverSingleJob(
	ctx context.Context,
	tx pgx.Tx,
	jobID string,
	command string,
	attempts int,
	maxRetries int,
	now time.Time,
) error {
	if attempts > maxRetries {
		return moveToDLQ(ctx, tx, store.DeadLetterEntry{
			ID:        jobID,
			Command:   command,
			FailedAt:  now,
			Attempts:  attempts,
			LastError: store.LeaseExpiredError,
		})
	}

	return transitionJobState(
		ctx,
		tx,
		jobID,
		attempts,
		store.JobPending,
		now,
		now.Unix(),
		store.LeaseExpiredError,
	)
}
