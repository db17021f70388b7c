package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/vin-jex/queuectl/internal/events"
	"github.com/vin-jex/queuectl/internal/store"
)

// Payload is a job submission. Optional fields fall back to configuration.
type Payload struct {
	ID         string `json:"id,omitempty"`
	Command    string `json:"command"`
	MaxRetries *int   `json:"max_retries,omitempty"`
	Timeout    *int   `json:"timeout,omitempty"`
}

func (p Payload) validate() error {
	if strings.TrimSpace(p.Command) == "" {
		return invalid("command", "required")
	}

	if p.ID != "" && strings.IndexFunc(p.ID, unicode.IsSpace) >= 0 {
		return invalid("id", "must not contain whitespace")
	}

	if p.MaxRetries != nil && *p.MaxRetries < 0 {
		return invalid("max_retries", "must not be negative")
	}

	if p.Timeout != nil && *p.Timeout <= 0 {
		return invalid("timeout", "must be positive")
	}

	return nil
}

// ParsePayload decodes a single JSON object into a Payload.
func ParsePayload(data []byte) (Payload, error) {
	var payload Payload

	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&payload); err != nil {
		return Payload{}, invalid("payload", "%v", err)
	}

	// One submission per call; anything after the object is rejected.
	var trailing json.RawMessage
	if err := decoder.Decode(&trailing); !errors.Is(err, io.EOF) {
		return Payload{}, invalid("payload", "unexpected data after the JSON object")
	}

	return payload, nil
}

// EnqueueInput enqueues input, which is either a JSON object or the path of
// a file holding one.
func (s *Service) EnqueueInput(ctx context.Context, input string) (*store.Job, error) {
	trimmed := strings.TrimSpace(input)

	var data []byte
	if strings.HasPrefix(trimmed, "{") {
		data = []byte(trimmed)
	} else {
		content, err := os.ReadFile(trimmed)
		if errors.Is(err, fs.ErrNotExist) || trimmed == "" {
			return nil, invalid("", "expected a JSON object or a path to a JSON file")
		}
		if err != nil {
			return nil, fmt.Errorf("read job file: %w", err)
		}
		data = content
	}

	payload, err := ParsePayload(data)
	if err != nil {
		return nil, err
	}

	return s.Enqueue(ctx, payload)
}

// Enqueue validates payload and stores it as a pending job. It returns
// store.ErrConflict when the id already names a job or a DLQ entry.
func (s *Service) Enqueue(ctx context.Context, payload Payload) (*store.Job, error) {
	if err := payload.validate(); err != nil {
		return nil, err
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &store.Job{
		ID:         payload.ID,
		Command:    payload.Command,
		State:      store.JobPending,
		MaxRetries: settings.MaxRetries,
		Timeout:    settings.JobTimeout,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if payload.MaxRetries != nil {
		job.MaxRetries = *payload.MaxRetries
	}
	if payload.Timeout != nil {
		job.Timeout = *payload.Timeout
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("job enqueued", "job_id", job.ID, "max_retries", job.MaxRetries, "timeout", job.Timeout)
	s.publish(events.Event{Type: events.TypeEnqueued, JobID: job.ID})

	return job, nil
}
