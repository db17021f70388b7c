package sqlite

import (
	"context"
	"time"

	"github.com/vin-jex/queuectl/internal/store"
)

func (s *Store) RegisterWorker(ctx context.Context, worker store.WorkerRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers (
			id,
			slot,
			pid,
			hostname,
			started_at,
			last_heartbeat,
			current_job
		)
		VALUES (?, ?, ?, ?, ?, ?, '')
		ON CONFLICT (id)
		DO UPDATE
		SET pid = excluded.pid,
			last_heartbeat = excluded.last_heartbeat
	`,
		worker.ID,
		worker.Slot,
		worker.PID,
		worker.Hostname,
		formatTime(worker.StartedAt),
		formatTime(worker.LastHeartbeat),
	)

	return store.Unavailable("register worker", err)
}

func (s *Store) HeartbeatWorker(ctx context.Context, id string, currentJob string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE workers
		SET last_heartbeat = ?,
			current_job = ?
		WHERE id = ?
	`, formatTime(now), currentJob, id)

	return store.Unavailable("heartbeat worker", err)
}

func (s *Store) DeregisterWorker(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workers WHERE id = ?`, id)
	return store.Unavailable("deregister worker", err)
}

func (s *Store) ListWorkers(ctx context.Context) ([]store.WorkerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		var (
			worker        store.WorkerRecord
			startedAt     string
			lastHeartbeat string
		)
		if err := rows.Scan(
			&worker.ID,
			&worker.Slot,
			&worker.PID,
			&worker.Hostname,
			&startedAt,
			&lastHeartbeat,
			&worker.CurrentJob,
		); err != nil {
			return nil, store.Unavailable("scan worker", err)
		}

		if worker.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, store.Unavailable("scan worker", err)
		}
		if worker.LastHeartbeat, err = parseTime(lastHeartbeat); err != nil {
			return nil, store.Unavailable("scan worker", err)
		}

		workers = append(workers, worker)
	}

	return workers, store.Unavailable("list workers", rows.Err())
}
