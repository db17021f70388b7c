package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vin-jex/queuectl/internal/config"
	"github.com/vin-jex/queuectl/internal/queue"
	"github.com/vin-jex/queuectl/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		DataDir:  filepath.Join(t.TempDir(), "nested", "data"),
		DBFile:   "queue.db",
		NSQTopic: "queuectl.jobs",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenCreatesSQLiteDatabase(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	application, err := Open(ctx, cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	_, err = os.Stat(cfg.DBPath())
	require.NoError(t, err)

	settings, err := application.Queue.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, settings.MaxRetries)

	job, err := application.Queue.Enqueue(ctx, queue.Payload{ID: "boot", Command: "true"})
	require.NoError(t, err)
	assert.Equal(t, store.JobPending, job.State)
}

func TestOpenKeepsStateAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first, err := Open(ctx, cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, first.Queue.SetConfig(ctx, store.KeyMaxRetries, "7"))
	_, err = first.Queue.Enqueue(ctx, queue.Payload{ID: "durable", Command: "true"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(ctx, cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	value, err := second.Queue.GetConfig(ctx, store.KeyMaxRetries)
	require.NoError(t, err)
	assert.Equal(t, "7", value)

	job, err := second.Queue.GetJob(ctx, "durable")
	require.NoError(t, err)
	assert.Equal(t, "true", job.Command)
}

func TestOpenFailsOnUnusableDataDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	cfg := testConfig(t)
	cfg.DataDir = filepath.Join(blocker, "data")

	_, err := Open(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create data directory")
}

func TestOpenFallsBackWhenNSQDUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.NSQDAddr = "127.0.0.1:1"

	application, err := Open(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	assert.Nil(t, application.publisher)
}

func TestWorkerTTLFollowsHeartbeat(t *testing.T) {
	assert.Equal(t, 15*time.Second, workerTTL(5*time.Second))
	assert.Equal(t, queue.DefaultWorkerTTL, workerTTL(0))
}
