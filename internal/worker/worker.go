// Package worker runs the claim, execute and report loop of a single worker
// process. Shutdown is observed only between jobs: a running command is never
// interrupted by ctx and its outcome is always persisted.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vin-jex/queuectl/internal/backoff"
	"github.com/vin-jex/queuectl/internal/scheduler"
	"github.com/vin-jex/queuectl/internal/store"
)

type Queue interface {
	Claim(ctx context.Context) (*store.Job, error)
	Complete(ctx context.Context, job *store.Job) error
	Fail(ctx context.Context, job *store.Job, output string) (backoff.Decision, error)
	RecoverExpired(ctx context.Context) ([]string, error)
	RegisterWorker(ctx context.Context, worker store.WorkerRecord) error
	HeartbeatWorker(ctx context.Context, id, currentJob string) error
	DeregisterWorker(ctx context.Context, id string) error
}

type Config struct {
	Slot              int
	PollInterval      time.Duration
	RecoveryInterval  time.Duration
	HeartbeatInterval time.Duration
}

type Worker struct {
	id       uuid.UUID
	config   Config
	queue    Queue
	executor Executor
	recovery *scheduler.Scheduler
	logger   *slog.Logger

	mu         sync.Mutex
	currentJob string
}

func New(id uuid.UUID, config Config, queue Queue, executor Executor, logger *slog.Logger) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}

	logger = logger.With("worker_id", id.String(), "slot", config.Slot)

	return &Worker{
		id:       id,
		config:   config,
		queue:    queue,
		executor: executor,
		recovery: scheduler.New(queue, config.RecoveryInterval, logger),
		logger:   logger,
	}
}

// Run processes jobs until ctx is cancelled while the worker is idle.
func (w *Worker) Run(ctx context.Context) error {
	hostname, _ := os.Hostname()
	now := time.Now()

	if err := w.queue.RegisterWorker(ctx, store.WorkerRecord{
		ID:            w.id.String(),
		Slot:          w.config.Slot,
		PID:           os.Getpid(),
		Hostname:      hostname,
		StartedAt:     now,
		LastHeartbeat: now,
	}); err != nil {
		return err
	}
	defer func() {
		if err := w.queue.DeregisterWorker(context.WithoutCancel(ctx), w.id.String()); err != nil {
			w.logger.Warn("worker deregistration failed", "err", err)
		}
	}()

	w.logger.Info("worker started", "pid", os.Getpid())

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		w.runHeartbeat(ctx)
	}()

	for ctx.Err() == nil {
		processed, err := w.processNext(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "err", err)
		}
		if processed {
			continue
		}

		w.recovery.MaybeSweep(ctx)
		w.sleep(ctx, w.config.PollInterval)
	}

	<-heartbeatDone
	w.logger.Info("worker stopped")
	return nil
}

// processNext claims and executes at most one job. It reports whether a job
// was claimed.
func (w *Worker) processNext(ctx context.Context) (bool, error) {
	// A claim committed just as ctx is cancelled must still be executed and
	// reported, so the claim itself ignores cancellation.
	job, err := w.queue.Claim(context.WithoutCancel(ctx))
	if err != nil || job == nil {
		return false, err
	}

	w.setCurrentJob(job.ID)
	defer w.setCurrentJob("")

	logger := w.logger.With("job_id", job.ID, "attempt", job.Attempts)
	logger.Info("job claimed", "command", job.Command, "max_retries", job.MaxRetries, "timeout", job.Timeout)

	result := w.executor.Execute(ctx, job.Command, job.TimeoutDuration())

	persistCtx := context.WithoutCancel(ctx)
	if result.Succeeded() {
		err = w.queue.Complete(persistCtx, job)
		if err == nil {
			logger.Info("job completed", "duration", result.Duration)
		}
	} else {
		var decision backoff.Decision
		decision, err = w.queue.Fail(persistCtx, job, result.Output)
		if err == nil {
			logFailure(logger, result, decision)
		}
	}

	if errors.Is(err, store.ErrInvalidStateTransition) {
		logger.Warn("job outcome discarded: lease was recovered by another worker", "err", err)
		return true, nil
	}

	return true, err
}

func logFailure(logger *slog.Logger, result Result, decision backoff.Decision) {
	attrs := []any{
		"exit_code", result.ExitCode,
		"timed_out", result.TimedOut,
		"duration", result.Duration,
	}

	switch decision.Action {
	case backoff.DeadLetter:
		logger.Warn("job moved to dlq", attrs...)
	default:
		logger.Warn("job failed, retry scheduled", append(attrs, "delay", decision.Delay)...)
	}
}

func (w *Worker) runHeartbeat(ctx context.Context) {
	if w.config.HeartbeatInterval <= 0 {
		return
	}

	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.HeartbeatWorker(ctx, w.id.String(), w.getCurrentJob()); err != nil && ctx.Err() == nil {
				w.logger.Warn("worker heartbeat failed", "err", err)
			}
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *Worker) setCurrentJob(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentJob = id
}

func (w *Worker) getCurrentJob() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentJob
}
