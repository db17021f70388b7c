package api

import (
	"time"

	"github.com/vin-jex/queuectl/internal/store"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type JobResponse struct {
	ID           string     `json:"id"`
	Command      string     `json:"command"`
	State        string     `json:"state"`
	Attempts     int        `json:"attempts"`
	MaxRetries   int        `json:"max_retries"`
	Timeout      int        `json:"timeout"`
	NextAttempt  *time.Time `json:"next_attempt,omitempty"`
	LeaseExpires *time.Time `json:"lease_expires,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type DeadLetterResponse struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	FailedAt  time.Time `json:"failed_at"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
}

type ListDLQResponse struct {
	Entries []DeadLetterResponse `json:"entries"`
}

type StatusResponse struct {
	Jobs         map[string]int `json:"jobs"`
	DeadLettered int            `json:"dlq"`
	Workers      int            `json:"workers"`
}

type ConfigResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type WorkerResponse struct {
	ID            string    `json:"id"`
	Slot          int       `json:"slot"`
	PID           int       `json:"pid"`
	Hostname      string    `json:"hostname"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	CurrentJob    string    `json:"current_job,omitempty"`
}

type ListWorkersResponse struct {
	Workers []WorkerResponse `json:"workers"`
}

func epochTime(seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	t := time.Unix(seconds, 0).UTC()
	return &t
}

func newJobResponse(job store.Job) JobResponse {
	return JobResponse{
		ID:           job.ID,
		Command:      job.Command,
		State:        job.State,
		Attempts:     job.Attempts,
		MaxRetries:   job.MaxRetries,
		Timeout:      job.Timeout,
		NextAttempt:  epochTime(job.NextAttempt),
		LeaseExpires: epochTime(job.LeaseExpires),
		LastError:    job.LastError,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

func newDeadLetterResponse(entry store.DeadLetterEntry) DeadLetterResponse {
	return DeadLetterResponse{
		ID:        entry.ID,
		Command:   entry.Command,
		FailedAt:  entry.FailedAt,
		Attempts:  entry.Attempts,
		LastError: entry.LastError,
	}
}

func newWorkerResponse(worker store.WorkerRecord) WorkerResponse {
	return WorkerResponse{
		ID:            worker.ID,
		Slot:          worker.Slot,
		PID:           worker.PID,
		Hostname:      worker.Hostname,
		StartedAt:     worker.StartedAt,
		LastHeartbeat: worker.LastHeartbeat,
		CurrentJob:    worker.CurrentJob,
	}
}
