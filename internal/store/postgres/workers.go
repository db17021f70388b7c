package postgres

import (
	"context"
	"time"

	"github.com/vin-jex/queuectl/internal/store"
)

func (s *Store) RegisterWorker(ctx context.Context, worker store.WorkerRecord) error {
	_, err := s.connectionPool.Exec(ctx, `
		INSERT INTO workers (
			id,
			slot,
			pid,
			hostname,
			started_at,
			last_heartbeat
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE
		SET pid = EXCLUDED.pid,
			last_heartbeat = EXCLUDED.last_heartbeat
	`,
		worker.ID,
		worker.Slot,
		worker.PID,
		worker.Hostname,
		worker.StartedAt,
		worker.LastHeartbeat,
	)

	return store.Unavailable("register worker", err)
}

func (s *Store) HeartbeatWorker(ctx context.Context, workerID string, currentJob string, now time.Time) error {
	_, err := s.connectionPool.Exec(ctx, `
		UPDATE workers
		SET last_heartbeat = $2,
			current_job = $3
		WHERE id = $1
	`, workerID, now, currentJob)

	return store.Unavailable("heartbeat worker", err)
}

func (s *Store) DeregisterWorker(ctx context.Context, workerID string) error {
	_, err := s.connectionPool.Exec(ctx, `DELETE FROM workers WHERE id = $1`, workerID)
	return store.Unavailable("deregister worker", err)
}

func (s *Store) ListWorkers(ctx context.Context) ([]store.WorkerRecord, error) {
	rows, err := s.connectionPool.Query(ctx, `
		SELECT id, slot, pid, hostname, started_at, last_heartbeat, current_job
		FROM workers
		ORDER BY slot, started_at
	`)
	if err != nil {
		return nil, store.Unavailable("list workers", err)
	}
	defer rows.Close()

	var workers []store.WorkerRecord
	for rows.Next() {
		var worker store.WorkerRecord
		if err := rows.Scan(
			&worker.ID,
			&worker.Slot,
			&worker.PID,
			&worker.Hostname,
			&worker.StartedAt,
			&worker.LastHeartbeat,
			&worker.CurrentJob,
		); err != nil {
			return nil, store.Unavailable("scan worker", err)
		}
		workers = append(workers, worker)
	}

	return workers, store.Unavailable("list workers", rows.Err())
}
