// Package queue is the job lifecycle engine. It validates submissions, applies
// the retry policy to execution outcomes and moves jobs between the jobs and
// dlq tables through a store.Store.
package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/vin-jex/queuectl/internal/events"
	"github.com/vin-jex/queuectl/internal/store"
)

const DefaultTopic = "queuectl.jobs"

// DefaultWorkerTTL is how long a worker registration counts as live after
// its last heartbeat.
const DefaultWorkerTTL = 30 * time.Second

type Options struct {
	Publisher events.Publisher
	Topic     string
	// LeaseGrace is added to a job's timeout when computing its lease.
	LeaseGrace time.Duration
	Logger     *slog.Logger
	// WorkerTTL defaults to DefaultWorkerTTL.
	WorkerTTL time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type Service struct {
	store      store.Store
	publisher  events.Publisher
	topic      string
	leaseGrace time.Duration
	workerTTL  time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(storeLayer store.Store, opts Options) *Service {
	service := &Service{
		store:      storeLayer,
		publisher:  opts.Publisher,
		topic:      opts.Topic,
		leaseGrace: opts.LeaseGrace,
		workerTTL:  opts.WorkerTTL,
		logger:     opts.Logger,
		now:        opts.Clock,
	}

	if service.publisher == nil {
		service.publisher = events.Noop()
	}
	if service.topic == "" {
		service.topic = DefaultTopic
	}
	if service.logger == nil {
		service.logger = slog.Default()
	}
	if service.now == nil {
		service.now = time.Now
	}
	if service.workerTTL <= 0 {
		service.workerTTL = DefaultWorkerTTL
	}

	return service
}

// Status summarizes the queue. Jobs holds a count for every job state and
// Workers counts registrations that heartbeated within the worker TTL.
type Status struct {
	Jobs         map[string]int
	DeadLettered int
	Workers      int
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	counts, err := s.store.CountJobsByState(ctx)
	if err != nil {
		return Status{}, err
	}

	jobs := make(map[string]int, len(store.JobStates))
	for _, state := range store.JobStates {
		jobs[state] = counts[state]
	}

	dead, err := s.store.CountDLQ(ctx)
	if err != nil {
		return Status{}, err
	}

	workers, err := s.store.ListWorkers(ctx)
	if err != nil {
		return Status{}, err
	}

	live := 0
	for _, worker := range workers {
		if s.WorkerLive(worker) {
			live++
		}
	}

	return Status{Jobs: jobs, DeadLettered: dead, Workers: live}, nil
}

// ListJobs lists jobs oldest first, optionally filtered by state.
func (s *Service) ListJobs(ctx context.Context, state string, limit int) ([]store.Job, error) {
	if state != "" && !store.IsValidState(state) {
		return nil, invalid("state", "unknown state %q", state)
	}

	return s.store.ListJobs(ctx, state, limit)
}

func (s *Service) GetJob(ctx context.Context, id string) (*store.Job, error) {
	return s.store.GetJob(ctx, id)
}

func (s *Service) ListDLQ(ctx context.Context) ([]store.DeadLetterEntry, error) {
	return s.store.ListDLQ(ctx)
}

// RetryDLQ moves a dead-lettered job back to pending with a fresh retry
// budget taken from the current configuration.
func (s *Service) RetryDLQ(ctx context.Context, id string) (*store.Job, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}

	job, err := s.store.ReplayDLQ(ctx, id, settings.MaxRetries, settings.JobTimeout, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("job replayed from dlq", "job_id", id)
	s.publish(events.Event{Type: events.TypeReplayed, JobID: id})

	return job, nil
}

// RecoverExpired releases jobs whose worker stopped before reporting.
func (s *Service) RecoverExpired(ctx context.Context) ([]string, error) {
	recovered, err := s.store.RecoverExpiredLeases(ctx, s.now())
	if err != nil {
		return nil, err
	}

	for _, id := range recovered {
		s.logger.Warn("recovered expired lease", "job_id", id)
		s.publish(events.Event{Type: events.TypeRecovered, JobID: id, Error: store.LeaseExpiredError})
	}

	return recovered, nil
}

func (s *Service) Workers(ctx context.Context) ([]store.WorkerRecord, error) {
	return s.store.ListWorkers(ctx)
}

// WorkerLive reports whether worker heartbeated recently enough to count as
// running. A worker killed before deregistering keeps its row but stops
// counting once its heartbeat ages past the TTL.
func (s *Service) WorkerLive(worker store.WorkerRecord) bool {
	return s.now().Sub(worker.LastHeartbeat) <= s.workerTTL
}

func (s *Service) RegisterWorker(ctx context.Context, worker store.WorkerRecord) error {
	return s.store.RegisterWorker(ctx, worker)
}

func (s *Service) HeartbeatWorker(ctx context.Context, id, currentJob string) error {
	return s.store.HeartbeatWorker(ctx, id, currentJob, s.now())
}

func (s *Service) DeregisterWorker(ctx context.Context, id string) error {
	return s.store.DeregisterWorker(ctx, id)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) publish(event events.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}

	body, err := event.Marshal()
	if err == nil {
		err = s.publisher.Publish(s.topic, body)
	}
	if err != nil {
		s.logger.Warn("event publish failed", "type", event.Type, "job_id", event.JobID, "err", err)
	}
}
