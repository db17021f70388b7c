package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vin-jex/queuectl/internal/queue"
	"github.com/vin-jex/queuectl/internal/store"
	"github.com/vin-jex/queuectl/internal/store/sqlite"
)

type testEnv struct {
	server  *httptest.Server
	queue   *queue.Service
	storage *sqlite.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	storage, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	require.NoError(t, storage.Initialize(ctx))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := queue.NewService(storage, queue.Options{Logger: logger})
	server := httptest.NewServer(NewServer(service, logger).Handler())

	t.Cleanup(func() {
		server.Close()
		_ = storage.Close()
	})

	return &testEnv{server: server, queue: service, storage: storage}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	request, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })

	return response
}

func decode[T any](t *testing.T, response *http.Response) T {
	t.Helper()
	var body T
	require.NoError(t, json.NewDecoder(response.Body).Decode(&body))
	return body
}

func TestCreateAndGetJob(t *testing.T) {
	env := newTestEnv(t)

	response := env.do(t, http.MethodPost, "/api/jobs", `{"id":"web-1","command":"echo hi","max_retries":2}`)
	require.Equal(t, http.StatusCreated, response.StatusCode)
	assert.NotEmpty(t, response.Header.Get(requestIDHeader))

	created := decode[JobResponse](t, response)
	assert.Equal(t, "web-1", created.ID)
	assert.Equal(t, store.JobPending, created.State)
	assert.Equal(t, 2, created.MaxRetries)
	assert.Equal(t, 60, created.Timeout)
	assert.Nil(t, created.NextAttempt)

	response = env.do(t, http.MethodGet, "/api/jobs/web-1", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "echo hi", decode[JobResponse](t, response).Command)
}

func TestCreateJobErrors(t *testing.T) {
	env := newTestEnv(t)

	response := env.do(t, http.MethodPost, "/api/jobs", `not json`)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

	response = env.do(t, http.MethodPost, "/api/jobs", `{"id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
	assert.Contains(t, decode[ErrorResponse](t, response).Error, "command")

	response = env.do(t, http.MethodPost, "/api/jobs", `{"id":"dup","command":"true"}`)
	require.Equal(t, http.StatusCreated, response.StatusCode)
	response = env.do(t, http.MethodPost, "/api/jobs", `{"id":"dup","command":"true"}`)
	assert.Equal(t, http.StatusConflict, response.StatusCode)
}

func TestGetUnknownJob(t *testing.T) {
	env := newTestEnv(t)

	response := env.do(t, http.MethodGet, "/api/jobs/ghost", "")
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestListJobsAndStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := env.queue.Enqueue(ctx, queue.Payload{ID: id, Command: "true"})
		require.NoError(t, err)
	}
	job, err := env.queue.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, env.queue.Complete(ctx, job))

	response := env.do(t, http.MethodGet, "/api/jobs?state=pending&limit=1", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	listed := decode[ListJobsResponse](t, response)
	require.Len(t, listed.Jobs, 1)
	assert.Equal(t, "b", listed.Jobs[0].ID)

	response = env.do(t, http.MethodGet, "/api/jobs?state=bogus", "")
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

	response = env.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	status := decode[StatusResponse](t, response)
	assert.Equal(t, 2, status.Jobs[store.JobPending])
	assert.Equal(t, 1, status.Jobs[store.JobCompleted])
	assert.Zero(t, status.Jobs[store.JobProcessing])
}

func TestDLQRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	zero := 0
	_, err := env.queue.Enqueue(ctx, queue.Payload{ID: "dead", Command: "false", MaxRetries: &zero})
	require.NoError(t, err)
	job, err := env.queue.Claim(ctx)
	require.NoError(t, err)
	_, err = env.queue.Fail(ctx, job, "exit status 1")
	require.NoError(t, err)

	response := env.do(t, http.MethodGet, "/api/dlq", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	entries := decode[ListDLQResponse](t, response)
	require.Len(t, entries.Entries, 1)
	assert.Equal(t, "exit status 1", entries.Entries[0].LastError)

	response = env.do(t, http.MethodPost, "/api/dlq/dead/retry", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	replayed := decode[JobResponse](t, response)
	assert.Equal(t, store.JobPending, replayed.State)
	assert.Equal(t, 0, replayed.Attempts)

	response = env.do(t, http.MethodPost, "/api/dlq/dead/retry", "")
	assert.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestConfigEndpoints(t *testing.T) {
	env := newTestEnv(t)

	response := env.do(t, http.MethodPut, "/api/config/max_retries", `{"value":"6"}`)
	require.Equal(t, http.StatusOK, response.StatusCode)

	response = env.do(t, http.MethodGet, "/api/config/max_retries", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, ConfigResponse{Key: "max_retries", Value: "6"}, decode[ConfigResponse](t, response))

	response = env.do(t, http.MethodPut, "/api/config/max_retries", `{"value":"-2"}`)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

	response = env.do(t, http.MethodPut, "/api/config/unknown", `{"value":"1"}`)
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)

	response = env.do(t, http.MethodGet, "/api/config/unknown", "")
	assert.Equal(t, http.StatusNotFound, response.StatusCode)

	response = env.do(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	values := decode[map[string]string](t, response)
	assert.Equal(t, "6", values["max_retries"])
	assert.Equal(t, "2", values["backoff_base"])
}

func TestWorkersEndpoint(t *testing.T) {
	env := newTestEnv(t)

	response := env.do(t, http.MethodGet, "/api/workers", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Empty(t, decode[ListWorkersResponse](t, response).Workers)
}

func TestProbesAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	response := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, response.StatusCode)

	response = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, response.StatusCode)

	env.do(t, http.MethodGet, "/api/status", "")

	response = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `queuectl_jobs{state="pending"} 0`)
	assert.Contains(t, string(body), `queuectl_http_requests_total{code="200",method="GET",route="/api/status"} 1`)
}

func TestReadyFailsWhenStoreClosed(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.storage.Close())

	response := env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, response.StatusCode)

	response = env.do(t, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusServiceUnavailable, response.StatusCode)
}

func TestDashboardRendersEscapedContent(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.queue.Enqueue(context.Background(), queue.Payload{ID: "html", Command: "echo '<script>alert(1)</script>'"})
	require.NoError(t, err)

	response := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	assert.Contains(t, response.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, string(body), "<script>alert(1)</script>")
}
