package generation

import (
	"sync"
	"time"

	"github.com/vikramsd/fluxgen/internal/models"
)

// Registry is the in-memory job table. Jobs live only for the lifetime of
// the process; the registry is constructed once at startup and handed to
// every request path, never held as package state.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*models.Job)}
}

// Add stores a job. The registry takes ownership of the pointer; all later
// reads go through copies.
func (r *Registry) Add(job *models.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// Get returns a deep copy of a job so callers can never observe a
// mid-update state or mutate shared records.
func (r *Registry) Get(id string) (*models.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return copyJob(job), true
}

// All returns copies of every job, for the diagnostic listing endpoint.
func (r *Registry) All() []*models.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, copyJob(job))
	}
	return out
}

// update runs fn against the live job under the write lock. It returns
// false if the job is unknown.
func (r *Registry) update(id string, fn func(job *models.Job)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	return true
}

// DeleteTerminalOlderThan evicts jobs that reached a terminal status before
// the cutoff. It returns the ids of the evicted jobs so their persisted
// prediction rows can be cleaned up as well.
func (r *Registry) DeleteTerminalOlderThan(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, job := range r.jobs {
		if job.CompletedAt == nil || job.CompletedAt.After(cutoff) {
			continue
		}
		switch job.Status {
		case models.JobCompleted, models.JobPartial, models.JobFailed:
			delete(r.jobs, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

func copyJob(job *models.Job) *models.Job {
	out := *job
	out.Predictions = make([]models.Prediction, len(job.Predictions))
	copy(out.Predictions, job.Predictions)
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
