// Package events publishes job lifecycle transitions to an optional message
// bus. Publishing is best effort: the store stays the source of truth.
package events

import (
	"encoding/json"
	"time"
)

const (
	TypeEnqueued     = "job.enqueued"
	TypeCompleted    = "job.completed"
	TypeRetried      = "job.retry_scheduled"
	TypeDeadLettered = "job.dead_lettered"
	TypeReplayed     = "job.replayed"
	TypeRecovered    = "job.lease_recovered"
)

type Event struct {
	Type        string    `json:"type"`
	JobID       string    `json:"job_id"`
	Attempts    int       `json:"attempts"`
	NextAttempt int64     `json:"next_attempt,omitempty"`
	Error       string    `json:"error,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher matches the producer side of the NSQ client.
type Publisher interface {
	Publish(topic string, body []byte) error
}

type noop struct{}

func (noop) Publish(string, []byte) error { return nil }

// Noop discards every message.
func Noop() Publisher { return noop{} }
