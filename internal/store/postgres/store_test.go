//go:build integration

package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vin-jex/queuectl/internal/store"
)

func TestClaimOldestEligibleFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	insertJob(t, s, "second", 3, now.Add(time.Second))
	insertJob(t, s, "first", 3, now)

	job, err := s.ClaimNextPendingJob(ctx, now, 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, "first", job.ID)
	assert.Equal(t, store.JobProcessing, job.State)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, now.Add(10*time.Second).Unix()+30, job.LeaseExpires)

	job, err = s.ClaimNextPendingJob(ctx, now, 0)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "second", job.ID)

	job, err = s.ClaimNextPendingJob(ctx, now, 0)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestConcurrentClaimsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	const jobs = 25
	for i := 0; i < jobs; i++ {
		insertJob(t, s, fmt.Sprintf("job-%02d", i), 3, now.Add(time.Duration(i)*time.Millisecond))
	}

	var (
		mu      sync.Mutex
		claimed = make(map[string]int)
		wg      sync.WaitGroup
	)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := s.ClaimNextPendingJob(ctx, now, 0)
				if !assert.NoError(t, err) || job == nil {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, jobs)
	for id, count := range claimed {
		assert.Equal(t, 1, count, id)
	}
}

func TestTransitionsAreFencedByAttempt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	insertJob(t, s, "fenced", 3, now)
	job, err := s.ClaimNextPendingJob(ctx, now, 0)
	require.NoError(t, err)

	err = s.CompleteJob(ctx, job.ID, job.Attempts+1, now)
	assert.ErrorIs(t, err, store.ErrInvalidStateTransition)

	require.NoError(t, s.CompleteJob(ctx, job.ID, job.Attempts, now))
	err = s.CompleteJob(ctx, job.ID, job.Attempts, now)
	assert.ErrorIs(t, err, store.ErrInvalidStateTransition)

	completed, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCompleted, completed.State)
	assert.Equal(t, int64(0), completed.LeaseExpires)
}

func TestDeadLetterAndReplay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	insertJob(t, s, "doomed", 1, now)
	job, err := s.ClaimNextPendingJob(ctx, now, 0)
	require.NoError(t, err)

	require.NoError(t, s.MoveToDLQ(ctx, store.DeadLetterEntry{
		ID:        job.ID,
		Command:   job.Command,
		FailedAt:  now,
		Attempts:  job.Attempts,
		LastError: strings.Repeat("x", store.MaxErrorLength+50),
	}))

	_, err = s.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	entry, err := s.GetDLQ(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, entry.LastError, store.MaxErrorLength)

	err = s.CreateJob(ctx, &store.Job{ID: job.ID, Command: "true", MaxRetries: 3, Timeout: 5, CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, store.ErrConflict)

	replayed, err := s.ReplayDLQ(ctx, job.ID, 5, 45, now)
	require.NoError(t, err)
	assert.Equal(t, 5, replayed.MaxRetries)

	fresh, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobPending, fresh.State)
	assert.Equal(t, 0, fresh.Attempts)
	assert.Equal(t, 45, fresh.Timeout)

	count, err := s.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = s.ReplayDLQ(ctx, "missing", 3, 60, now)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecoverExpiredLeases(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	insertJob(t, s, "retry", 3, now)
	insertJob(t, s, "exhausted", 0, now.Add(time.Millisecond))

	for i := 0; i < 2; i++ {
		_, err := s.ClaimNextPendingJob(ctx, now, 0)
		require.NoError(t, err)
	}

	recovered, err := s.RecoverExpiredLeases(ctx, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Empty(t, recovered)

	later := now.Add(time.Minute)
	recovered, err = s.RecoverExpiredLeases(ctx, later)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"retry", "exhausted"}, recovered)

	job, err := s.GetJob(ctx, "retry")
	require.NoError(t, err)
	assert.Equal(t, store.JobPending, job.State)
	assert.Equal(t, store.LeaseExpiredError, job.LastError)

	entry, err := s.GetDLQ(ctx, "exhausted")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Attempts)
}

func TestConfigAndWorkers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	values, err := s.ListConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.DefaultConfig(), values)

	require.NoError(t, s.SetConfig(ctx, store.KeyMaxRetries, "7"))
	value, err := s.GetConfig(ctx, store.KeyMaxRetries)
	require.NoError(t, err)
	assert.Equal(t, "7", value)

	_, err = s.GetConfig(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.RegisterWorker(ctx, store.WorkerRecord{
		ID: "w-1", Slot: 1, PID: 42, Hostname: "host", StartedAt: now, LastHeartbeat: now,
	}))
	require.NoError(t, s.HeartbeatWorker(ctx, "w-1", "job-a", now.Add(time.Second)))

	workers, err := s.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, "job-a", workers[0].CurrentJob)

	require.NoError(t, s.DeregisterWorker(ctx, "w-1"))
	workers, err = s.ListWorkers(ctx)
	require.NoError(t, err)
	assert.Empty(t, workers)
}
