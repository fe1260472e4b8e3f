package models

import "time"

// JobStatus is the aggregate state of a generation job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"    // created, no provider responses observed yet
	JobProcessing JobStatus = "processing" // at least one prediction still in flight
	JobPartial    JobStatus = "partial"    // all terminal, mixed outcome
	JobCompleted  JobStatus = "completed"  // every prediction succeeded
	JobFailed     JobStatus = "failed"     // every prediction failed, or none were created
)

// Prediction statuses as reported by the provider.
const (
	PredictionQueued     = "queued"
	PredictionProcessing = "processing"
	PredictionSucceeded  = "succeeded"
	PredictionFailed     = "failed"
	PredictionError      = "error" // local marker for a fetch/create that could not complete
)

// PredictionTerminal reports whether a prediction status is final.
func PredictionTerminal(status string) bool {
	switch status {
	case PredictionSucceeded, PredictionFailed, PredictionError:
		return true
	}
	return false
}

// Prediction tracks a single provider prediction belonging to one job.
type Prediction struct {
	PredictionID string     `json:"prediction_id"`
	Status       string     `json:"status"`
	ImageURL     *string    `json:"image_url,omitempty"`
	Error        *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Job is one user request to generate a batch of images. It lives only in
// process memory; the store keeps just the job_id -> prediction_id mapping.
type Job struct {
	ID              string       `json:"job_id"`
	Prompt          string       `json:"prompt"`
	NumImages       int          `json:"num_images"`
	Model           string       `json:"model"`
	Status          JobStatus    `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	Predictions     []Prediction `json:"predictions"`
	CompletedImages int          `json:"completed_images"`
	FailedImages    int          `json:"failed_images"`
}

// PredictionSnapshot is the current provider-side view of one prediction,
// as fetched during a polling pass. Failures are carried as data: a snapshot
// with Status "error" and Error set, never an error value.
type PredictionSnapshot struct {
	PredictionID string   `json:"prediction_id"`
	Status       string   `json:"status"`
	URLs         []string `json:"urls"`
	Output       []string `json:"output"`
	Error        string   `json:"error,omitempty"`
	DataRemoved  bool     `json:"data_removed,omitempty"`
	Note         string   `json:"note,omitempty"`
}

// PredictionUpdate is the event broadcast to every subscriber of a job each
// time one prediction fetch resolves.
type PredictionUpdate struct {
	Type string             `json:"type"` // always "prediction_update"
	Data PredictionSnapshot `json:"data"`
}
