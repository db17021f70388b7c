package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingRecoverer struct {
	calls atomic.Int32
	ids   []string
	err   error
}

func (r *countingRecoverer) RecoverExpired(context.Context) ([]string, error) {
	r.calls.Add(1)
	return r.ids, r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMaybeSweepHonoursInterval(t *testing.T) {
	recoverer := &countingRecoverer{ids: []string{"a"}}
	s := New(recoverer, time.Minute, discardLogger())

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.MaybeSweep(context.Background())
	s.MaybeSweep(context.Background())
	assert.Equal(t, int32(1), recoverer.calls.Load())

	now = now.Add(time.Minute)
	s.MaybeSweep(context.Background())
	assert.Equal(t, int32(2), recoverer.calls.Load())
}

func TestMaybeSweepDisabled(t *testing.T) {
	recoverer := &countingRecoverer{}
	s := New(recoverer, 0, discardLogger())

	s.MaybeSweep(context.Background())
	s.Run(context.Background())

	assert.Zero(t, recoverer.calls.Load())
}

func TestSweepReportsRecoveredCount(t *testing.T) {
	s := New(&countingRecoverer{ids: []string{"a", "b"}}, time.Second, discardLogger())
	assert.Equal(t, 2, s.Sweep(context.Background()))

	s = New(&countingRecoverer{err: errors.New("database is locked")}, time.Second, discardLogger())
	assert.Equal(t, 0, s.Sweep(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	recoverer := &countingRecoverer{}
	s := New(recoverer, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return recoverer.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
