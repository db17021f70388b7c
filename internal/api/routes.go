package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	r := mux.NewRouter()
	r.Use(s.requestContext, s.instrument)

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/jobs", s.handleCreateJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{jobID}", s.handleGetJob).Methods(http.MethodGet)
	api.HandleFunc("/dlq", s.handleListDLQ).Methods(http.MethodGet)
	api.HandleFunc("/dlq/{jobID}/retry", s.handleRetryDLQ).Methods(http.MethodPost)
	api.HandleFunc("/config", s.handleListConfig).Methods(http.MethodGet)
	api.HandleFunc("/config/{key}", s.handleGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/config/{key}", s.handleSetConfig).Methods(http.MethodPut)
	api.HandleFunc("/workers", s.handleListWorkers).Methods(http.MethodGet)

	s.router = r
}
