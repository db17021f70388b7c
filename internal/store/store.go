// Package store defines the persisted model of the queue and the contract
// every storage backend implements.
//
// IMPORTANT:
// Every transition out of JobProcessing is fenced on (state, attempts).
// Any update of jobs.state that skips the fence is a correctness bug: a
// worker whose lease was recovered must not overwrite a newer claim.
package store

import (
	"context"
	"strings"
	"time"
)

// MaxErrorLength bounds the captured output kept in last_error columns.
const MaxErrorLength = 2000

type Job struct {
	ID           string
	Command      string
	State        string
	Attempts     int
	MaxRetries   int
	Timeout      int
	NextAttempt  int64
	LeaseExpires int64
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TimeoutDuration returns the execution bound of the job.
func (j Job) TimeoutDuration() time.Duration {
	return time.Duration(j.Timeout) * time.Second
}

type DeadLetterEntry struct {
	ID        string
	Command   string
	FailedAt  time.Time
	Attempts  int
	LastError string
}

type WorkerRecord struct {
	ID            string
	Slot          int
	PID           int
	Hostname      string
	StartedAt     time.Time
	LastHeartbeat time.Time
	CurrentJob    string
}

// Store is implemented by the sqlite and postgres backends. Every method is
// safe to call from many processes against the same database.
type Store interface {
	// Initialize creates missing tables and seeds configuration defaults
	// without touching existing rows. It may be called any number of times.
	Initialize(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	// CreateJob inserts a pending job. It returns ErrConflict when the id is
	// present in either the jobs or the dlq table.
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	// ListJobs returns jobs oldest first. An empty state lists every job; a
	// non-positive limit means no limit.
	ListJobs(ctx context.Context, state string, limit int) ([]Job, error)
	CountJobsByState(ctx context.Context) (map[string]int, error)

	// ClaimNextPendingJob atomically moves the oldest eligible pending job to
	// processing and returns it. It returns (nil, nil) when nothing is
	// claimable.
	ClaimNextPendingJob(ctx context.Context, now time.Time, leaseGrace time.Duration) (*Job, error)
	CompleteJob(ctx context.Context, id string, attempts int, now time.Time) error
	RescheduleJob(ctx context.Context, id string, attempts int, nextAttempt time.Time, lastError string, now time.Time) error
	// MoveToDLQ replaces any DLQ row for the id and deletes the job row,
	// fenced on the claimed attempt count.
	MoveToDLQ(ctx context.Context, entry DeadLetterEntry) error
	// RecoverExpiredLeases returns orphaned processing jobs to pending, or
	// to the DLQ when their retry budget is spent.
	RecoverExpiredLeases(ctx context.Context, now time.Time) ([]string, error)

	ListDLQ(ctx context.Context) ([]DeadLetterEntry, error)
	GetDLQ(ctx context.Context, id string) (*DeadLetterEntry, error)
	CountDLQ(ctx context.Context) (int, error)
	// ReplayDLQ deletes the DLQ row and recreates the job as pending with
	// zero attempts. It returns ErrNotFound when the id is not dead-lettered.
	ReplayDLQ(ctx context.Context, id string, maxRetries, timeout int, now time.Time) (*Job, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	ListConfig(ctx context.Context) (map[string]string, error)

	RegisterWorker(ctx context.Context, worker WorkerRecord) error
	HeartbeatWorker(ctx context.Context, id string, currentJob string, now time.Time) error
	DeregisterWorker(ctx context.Context, id string) error
	ListWorkers(ctx context.Context) ([]WorkerRecord, error)
}

// Truncate cuts s to at most MaxErrorLength characters. Invalid UTF-8 is
// replaced with U+FFFD, which text columns in PostgreSQL require.
func Truncate(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	runes := []rune(s)
	if len(runes) <= MaxErrorLength {
		return s
	}
	return string(runes[:MaxErrorLength])
}
