package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/vin-jex/queuectl/internal/observability"
	"github.com/vin-jex/queuectl/internal/queue"
	"github.com/vin-jex/queuectl/internal/store"
)

const defaultListLimit = 100

func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(body)
}

// writeError maps queue and store errors onto HTTP status codes.
func writeError(writer http.ResponseWriter, request *http.Request, err error) {
	var validationErr *queue.ValidationError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, store.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(request.Context()).Error("request failed", "path", request.URL.Path, "err", err)
	}

	writeJSON(writer, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if err := s.queue.Ping(ctx); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) handleStatus(
	writer http.ResponseWriter,
	request *http.Request,
) {
	status, err := s.queue.Status(request.Context())
	if err != nil {
		writeError(writer, request, err)
		return
	}

	writeJSON(writer, http.StatusOK, StatusResponse{
		Jobs:         status.Jobs,
		DeadLettered: status.DeadLettered,
		Workers:      status.Workers,
	})
}

func (s *Server) handleCreateJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	var createRequest CreateJobRequest

	if err := json.NewDecoder(request.Body).Decode(&createRequest); err != nil {
		writeError(writer, request, &queue.ValidationError{Field: "payload", Message: "invalid JSON body"})
		return
	}

	job, err := s.queue.Enqueue(request.Context(), queue.Payload{
		ID:         createRequest.ID,
		Command:    createRequest.Command,
		MaxRetries: createRequest.MaxRetries,
		Timeout:    createRequest.Timeout,
	})
	if err != nil {
		writeError(writer, request, err)
		return
	}

	observability.LoggerFromContext(request.Context()).Info("job created", "job_id", job.ID)
	writeJSON(writer, http.StatusCreated, newJobResponse(*job))
}

func (s *Server) handleGetJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	job, err := s.queue.GetJob(request.Context(), mux.Vars(request)["jobID"])
	if err != nil {
		writeError(writer, request, err)
		return
	}

	writeJSON(writer, http.StatusOK, newJobResponse(*job))
}

func (s *Server) handleListJobs(
	writer http.ResponseWriter,
	request *http.Request,
) {
	query := request.URL.Query()

	limit := defaultListLimit
	if rawLimit := query.Get("limit"); rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	jobs, err := s.queue.ListJobs(request.Context(), query.Get("state"), limit)
	if err != nil {
		writeError(writer, request, err)
		return
	}

	response := ListJobsResponse{
		Jobs: make([]JobResponse, 0, len(jobs)),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, newJobResponse(job))
	}

	writeJSON(writer, http.StatusOK, response)
}

func (s *Server) handleListDLQ(
	writer http.ResponseWriter,
	request *http.Request,
) {
	entries, err := s.queue.ListDLQ(request.Context())
	if err != nil {
		writeError(writer, request, err)
		return
	}

	response := ListDLQResponse{
		Entries: make([]DeadLetterResponse, 0, len(entries)),
	}
	for _, entry := range entries {
		response.Entries = append(response.Entries, newDeadLetterResponse(entry))
	}

	writeJSON(writer, http.StatusOK, response)
}

func (s *Server) handleRetryDLQ(
	writer http.ResponseWriter,
	request *http.Request,
) {
	jobID := mux.Vars(request)["jobID"]

	job, err := s.queue.RetryDLQ(request.Context(), jobID)
	if err != nil {
		writeError(writer, request, err)
		return
	}

	observability.LoggerFromContext(request.Context()).Info("dlq job retried", "job_id", jobID)
	writeJSON(writer, http.StatusOK, newJobResponse(*job))
}

func (s *Server) handleListConfig(
	writer http.ResponseWriter,
	request *http.Request,
) {
	values, err := s.queue.ListConfig(request.Context())
	if err != nil {
		writeError(writer, request, err)
		return
	}

	writeJSON(writer, http.StatusOK, values)
}

func (s *Server) handleGetConfig(
	writer http.ResponseWriter,
	request *http.Request,
) {
	key := mux.Vars(request)["key"]

	value, err := s.queue.GetConfig(request.Context(), key)
	if err != nil {
		writeError(writer, request, err)
		return
	}

	writeJSON(writer, http.StatusOK, ConfigResponse{Key: key, Value: value})
}

func (s *Server) handleSetConfig(
	writer http.ResponseWriter,
	request *http.Request,
) {
	key := mux.Vars(request)["key"]

	var setRequest SetConfigRequest
	if err := json.NewDecoder(request.Body).Decode(&setRequest); err != nil {
		writeError(writer, request, &queue.ValidationError{Field: "payload", Message: "invalid JSON body"})
		return
	}

	if err := s.queue.SetConfig(request.Context(), key, setRequest.Value); err != nil {
		writeError(writer, request, err)
		return
	}

	writeJSON(writer, http.StatusOK, ConfigResponse{Key: key, Value: setRequest.Value})
}

func (s *Server) handleListWorkers(
	writer http.ResponseWriter,
	request *http.Request,
) {
	workers, err := s.queue.Workers(request.Context())
	if err != nil {
		writeError(writer, request, err)
		return
	}

	response := ListWorkersResponse{
		Workers: make([]WorkerResponse, 0, len(workers)),
	}
	for _, worker := range workers {
		response.Workers = append(response.Workers, newWorkerResponse(worker))
	}

	writeJSON(writer, http.StatusOK, response)
}
