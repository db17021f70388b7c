package api

type CreateJobRequest struct {
	ID         string `json:"id,omitempty"`
	Command    string `json:"command"`
	MaxRetries *int   `json:"max_retries,omitempty"`
	Timeout    *int   `json:"timeout,omitempty"`
}

type SetConfigRequest struct {
	Value string `json:"value"`
}
