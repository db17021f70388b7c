package store

const (
	KeyBackoffBase = "backoff_base"
	KeyBackoffMax  = "backoff_max"
	KeyMaxRetries  = "max_retries"
	KeyJobTimeout  = "job_timeout"
)

// DefaultConfig returns the values seeded into the meta table on first
// initialization.
func DefaultConfig() map[string]string {
	return map[string]string{
		KeyBackoffBase: "2",
		KeyBackoffMax:  "0",
		KeyMaxRetries:  "3",
		KeyJobTimeout:  "60",
	}
}

// LeaseExpiredError is recorded as last_error for jobs recovered from a
// worker that stopped reporting.
const LeaseExpiredError = "lease expired: worker stopped before reporting an outcome"
