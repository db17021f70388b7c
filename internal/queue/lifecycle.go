package queue

import (
	"context"

	"github.com/vin-jex/queuectl/internal/backoff"
	"github.com/vin-jex/queuectl/internal/events"
	"github.com/vin-jex/queuectl/internal/store"
)

// Claim returns the oldest claimable job, or nil when none is ready.
func (s *Service) Claim(ctx context.Context) (*store.Job, error) {
	return s.store.ClaimNextPendingJob(ctx, s.now(), s.leaseGrace)
}

// Complete records a successful execution of a claimed job.
func (s *Service) Complete(ctx context.Context, job *store.Job) error {
	if err := s.store.CompleteJob(ctx, job.ID, job.Attempts, s.now()); err != nil {
		return err
	}

	s.publish(events.Event{Type: events.TypeCompleted, JobID: job.ID, Attempts: job.Attempts})
	return nil
}

// Fail records a failed execution of a claimed job and either schedules a
// retry or moves the job to the dead letter queue.
func (s *Service) Fail(ctx context.Context, job *store.Job, output string) (backoff.Decision, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return backoff.Decision{}, err
	}

	now := s.now()
	decision := settings.Policy().Decide(false, job.Attempts, job.MaxRetries)

	switch decision.Action {
	case backoff.DeadLetter:
		err = s.store.MoveToDLQ(ctx, store.DeadLetterEntry{
			ID:        job.ID,
			Command:   job.Command,
			FailedAt:  now,
			Attempts:  job.Attempts,
			LastError: output,
		})
		if err != nil {
			return decision, err
		}

		s.publish(events.Event{
			Type:     events.TypeDeadLettered,
			JobID:    job.ID,
			Attempts: job.Attempts,
			Error:    store.Truncate(output),
		})

	default:
		nextAttempt := now.Add(decision.Delay)
		if err := s.store.RescheduleJob(ctx, job.ID, job.Attempts, nextAttempt, output, now); err != nil {
			return decision, err
		}

		s.publish(events.Event{
			Type:        events.TypeRetried,
			JobID:       job.ID,
			Attempts:    job.Attempts,
			NextAttempt: nextAttempt.Unix(),
			Error:       store.Truncate(output),
		})
	}

	return decision, nil
}
