package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vin-jex/queuectl/internal/app"
	"github.com/vin-jex/queuectl/internal/config"
	"github.com/vin-jex/queuectl/internal/queue"
	"github.com/vin-jex/queuectl/internal/store"
)

func setupDataDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("QUEUECTL_DATA_DIR", dir)
	t.Setenv("QUEUECTL_LOG_LEVEL", "error")
	t.Setenv("QUEUECTL_DATABASE_URL", "")
	t.Setenv("QUEUECTL_NSQD_ADDR", "")

	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	env := &environment{}
	defer env.close()

	var out bytes.Buffer
	rootCmd := newRootCmd(env)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// openApp opens the same database the CLI uses so tests can drive the
// worker-side lifecycle directly.
func openApp(t *testing.T) *app.App {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)

	application, err := app.Open(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	return application
}

func TestEnqueueListAndStatus(t *testing.T) {
	setupDataDir(t)

	out, err := runCLI(t, "enqueue", `{"id":"job1","command":"echo hello"}`)
	require.NoError(t, err)
	assert.Equal(t, "Enqueued job job1\n", out)

	out, err = runCLI(t, "list", "--state", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "job1")
	assert.Contains(t, out, "echo hello")

	out, err = runCLI(t, "list", "--state", "completed")
	require.NoError(t, err)
	assert.Equal(t, "No jobs found.\n", out)

	out, err = runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "pending: 1\n")
	assert.Contains(t, out, "processing: 0\n")
	assert.Contains(t, out, "dlq: 0\n")
	assert.Contains(t, out, "supervisor: not running")
}

func TestEnqueueFromFile(t *testing.T) {
	dir := setupDataDir(t)

	path := filepath.Join(dir, "job.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"command":"date"}`), 0o600))

	out, err := runCLI(t, "enqueue", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Enqueued job ")

	jobs, err := openApp(t).Queue.ListJobs(context.Background(), store.JobPending, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "date", jobs[0].Command)
}

func TestEnqueueRejectsInvalidInput(t *testing.T) {
	setupDataDir(t)

	_, err := runCLI(t, "enqueue", `{"id":"x"}`)
	var validationErr *queue.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "command", validationErr.Field)

	_, err = runCLI(t, "enqueue", `{"id":"dup","command":"true"}`)
	require.NoError(t, err)
	_, err = runCLI(t, "enqueue", `{"id":"dup","command":"true"}`)
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = runCLI(t, "list", "--state", "bogus")
	require.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	setupDataDir(t)

	out, err := runCLI(t, "config", "set", "max_retries", "5")
	require.NoError(t, err)
	assert.Equal(t, "config set max_retries = 5\n", out)

	out, err = runCLI(t, "config", "get", "max_retries")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)

	out, err = runCLI(t, "config", "list")
	require.NoError(t, err)
	assert.Equal(t, "backoff_base = 2\nbackoff_max = 0\njob_timeout = 60\nmax_retries = 5\n", out)

	_, err = runCLI(t, "config", "set", "backoff_base", "0.5")
	require.Error(t, err)

	_, err = runCLI(t, "config", "get", "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDLQListAndRetry(t *testing.T) {
	setupDataDir(t)
	ctx := context.Background()

	_, err := runCLI(t, "enqueue", `{"id":"doomed","command":"exit 3","max_retries":0}`)
	require.NoError(t, err)

	application := openApp(t)
	job, err := application.Queue.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	_, err = application.Queue.Fail(ctx, job, "exit status 3")
	require.NoError(t, err)

	out, err := runCLI(t, "dlq", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "doomed")
	assert.Contains(t, out, "exit status 3")

	out, err = runCLI(t, "dlq", "retry", "doomed")
	require.NoError(t, err)
	assert.Equal(t, "Moved doomed from DLQ back to pending\n", out)

	out, err = runCLI(t, "dlq", "list")
	require.NoError(t, err)
	assert.Equal(t, "Dead letter queue is empty.\n", out)

	_, err = runCLI(t, "dlq", "retry", "doomed")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecoverWithNothingExpired(t *testing.T) {
	setupDataDir(t)

	out, err := runCLI(t, "recover")
	require.NoError(t, err)
	assert.Equal(t, "Recovered 0 job(s)\n", out)
}

func TestWorkerStopAndStatusWithoutSupervisor(t *testing.T) {
	setupDataDir(t)

	out, err := runCLI(t, "worker", "stop")
	require.NoError(t, err)
	assert.Equal(t, "No supervisor is running.\n", out)

	out, err = runCLI(t, "worker", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "supervisor: not running")
	assert.Contains(t, out, "No workers registered.")
}

func TestStatusReportsStalePIDFile(t *testing.T) {
	dir := setupDataDir(t)

	// pid values this large are never assigned.
	stale := strconv.Itoa(1 << 30)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queuectl_master.pid"), []byte(stale), 0o600))

	out, err := runCLI(t, "worker", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "supervisor: stale pidfile (pid "+stale+")")
}

func TestWorkerStartRejectsZeroCount(t *testing.T) {
	setupDataDir(t)

	_, err := runCLI(t, "worker", "start", "--count", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 1")
}
