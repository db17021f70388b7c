package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vin-jex/queuectl/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStore(t, filepath.Join(t.TempDir(), "queue.db"))
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func insertJob(t *testing.T, s *Store, id string, maxRetries int, createdAt time.Time) {
	t.Helper()

	err := s.CreateJob(context.Background(), &store.Job{
		ID:         id,
		Command:    "exit 0",
		MaxRetries: maxRetries,
		Timeout:    30,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	})
	require.NoError(t, err)
}
