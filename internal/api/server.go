// Package api serves the dashboard and the JSON API over the same queue
// operations the CLI uses.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vin-jex/queuectl/internal/observability"
	"github.com/vin-jex/queuectl/internal/queue"
	"github.com/vin-jex/queuectl/internal/store"
)

type Queue interface {
	Enqueue(ctx context.Context, payload queue.Payload) (*store.Job, error)
	ListJobs(ctx context.Context, state string, limit int) ([]store.Job, error)
	GetJob(ctx context.Context, id string) (*store.Job, error)
	Status(ctx context.Context) (queue.Status, error)
	ListDLQ(ctx context.Context) ([]store.DeadLetterEntry, error)
	RetryDLQ(ctx context.Context, id string) (*store.Job, error)
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	ListConfig(ctx context.Context) (map[string]string, error)
	Workers(ctx context.Context) ([]store.WorkerRecord, error)
	Ping(ctx context.Context) error
}

type Server struct {
	queue    Queue
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *observability.HTTPMetrics
	router   *mux.Router
}

func NewServer(queueService Queue, logger *slog.Logger) *Server {
	server := &Server{
		queue:    queueService,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		metrics:  observability.NewHTTPMetrics(),
	}

	server.registry.MustRegister(server.metrics.Collectors()...)
	server.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		observability.NewQueueCollector(server.snapshot, logger),
	)

	server.registerRoutes()

	return server
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) snapshot(ctx context.Context) (observability.QueueSnapshot, error) {
	status, err := s.queue.Status(ctx)
	if err != nil {
		return observability.QueueSnapshot{}, err
	}

	return observability.QueueSnapshot{
		Jobs:         status.Jobs,
		DeadLettered: status.DeadLettered,
		Workers:      status.Workers,
	}, nil
}
