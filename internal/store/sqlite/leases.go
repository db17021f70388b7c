package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/vin-jex/queuectl/internal/store"
)

func (s *Store) ClaimNextPendingJob(
	ctx context.Context,
	now time.Time,
	leaseGrace time.Duration,
) (*store.Job, error) {
	var claimed *store.Job

	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		var jobID string
		err := tx.QueryRowContext(
			ctx,
			`
			SELECT id
			FROM jobs
			WHERE state = ? AND next_attempt <= ?
			ORDER BY created_at, rowid
			LIMIT 1
			`,
			store.JobPending,
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

		result, err := tx.ExecContext(
			ctx,
			`
			UPDATE jobs
			SET state = ?,
				attempts = attempts + 1,
				updated_at = ?,
				next_attempt = 0,
				lease_expires = ? + timeout
			WHERE id = ? AND state = ?
			`,
			store.JobProcessing,
			formatTime(now),
			now.Add(leaseGrace).Unix(),
			jobID,
			store.JobPending,
		)
		if err != nil {
			return store.Unavailable("claim job", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return store.Unavailable("claim job", err)
		}

		// Someone else won the row between select and update.
		if affected == 0 {
			return nil
		}

		row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
		claimed, err = scanJob(row)
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

	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, command, attempts, max_retries
			FROM jobs
			WHERE state = ?
			  AND lease_expires > 0
			  AND lease_expires <= ?
			ORDER BY created_at, rowid
		`, store.JobProcessing, now.Unix())
		if err != nil {
			return store.Unavailable("select expired leases", err)
		}

		type orphan struct {
			id         string
			command    string
			attempts   int
			maxRetries int
		}

		var orphans []orphan
		for rows.Next() {
			var o orphan
			if err := rows.Scan(&o.id, &o.command, &o.attempts, &o.maxRetries); err != nil {
				rows.Close()
				return store.Unavailable("scan expired lease", err)
			}
			orphans = append(orphans, o)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return store.Unavailable("select expired leases", err)
		}
		rows.Close()

		for _, o := range orphans {
			if o.attempts > o.maxRetries {
				err = moveToDLQ(ctx, tx, store.DeadLetterEntry{
					ID:        o.id,
					Command:   o.command,
					FailedAt:  now,
					Attempts:  o.attempts,
					LastError: store.LeaseExpiredError,
				})
			} else {
				err = transitionJobState(
					ctx,
					tx,
					o.id,
					o.attempts,
					store.JobPending,
					`updated_at = ?, next_attempt = ?, lease_expires = 0, last_error = ?`,
					formatTime(now),
					now.Unix(),
					store.LeaseExpiredError,
				)
			}
			if err != nil {
				return err
			}

			recovered = append(recovered, o.id)
		}

		return nil
	})

	return recovered, err
}
