package observability

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueueSnapshot is what the collector needs from the queue on every scrape.
type QueueSnapshot struct {
	Jobs         map[string]int
	DeadLettered int
	Workers      int
}

type SnapshotFunc func(ctx context.Context) (QueueSnapshot, error)

// QueueCollector reads queue depth from the store at scrape time, so every
// process exporting it reports the same numbers.
type QueueCollector struct {
	snapshot SnapshotFunc
	logger   *slog.Logger

	jobs    *prometheus.Desc
	dlq     *prometheus.Desc
	workers *prometheus.Desc
	up      *prometheus.Desc
}

func NewQueueCollector(snapshot SnapshotFunc, logger *slog.Logger) *QueueCollector {
	return &QueueCollector{
		snapshot: snapshot,
		logger:   logger,
		jobs: prometheus.NewDesc(
			"queuectl_jobs",
			"Jobs in the jobs table by state.",
			[]string{"state"}, nil,
		),
		dlq: prometheus.NewDesc(
			"queuectl_dlq_jobs",
			"Entries in the dead letter queue.",
			nil, nil,
		),
		workers: prometheus.NewDesc(
			"queuectl_workers",
			"Registered worker processes.",
			nil, nil,
		),
		up: prometheus.NewDesc(
			"queuectl_store_up",
			"Whether the last scrape could read the store.",
			nil, nil,
		),
	}
}

func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobs
	ch <- c.dlq
	ch <- c.workers
	ch <- c.up
}

func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snapshot, err := c.snapshot(ctx)
	if err != nil {
		c.logger.Warn("metrics snapshot failed", "err", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	for state, count := range snapshot.Jobs {
		ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(count), state)
	}
	ch <- prometheus.MustNewConstMetric(c.dlq, prometheus.GaugeValue, float64(snapshot.DeadLettered))
	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(snapshot.Workers))
}

type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queuectl_http_requests_total",
			Help: "Dashboard HTTP requests by route and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queuectl_http_request_duration_seconds",
			Help:    "Dashboard HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

func (m *HTTPMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.duration}
}

func (m *HTTPMetrics) Observe(route, method string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// StatusRecorder captures the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}
