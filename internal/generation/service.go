// The generation service owns job creation and job state. It fans out one
// provider call per requested image, tolerates partial failures, and keeps
// the in-memory job aggregate in sync with provider-side prediction state.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vikramsd/fluxgen/internal/models"
	"github.com/vikramsd/fluxgen/internal/provider"
	"github.com/vikramsd/fluxgen/internal/store"
)

var (
	// ErrJobNotFound is returned when a job id is unknown to the registry.
	ErrJobNotFound = errors.New("job not found")
	// ErrUnsupportedModel is returned when the requested model is not in
	// the supported set.
	ErrUnsupportedModel = errors.New("model is not supported")
)

// Service creates jobs and applies prediction updates to them.
type Service struct {
	registry *Registry
	store    *store.Store
	provider provider.Provider

	defaultModel    string
	supportedModels []string
}

// NewService wires the job creator to its collaborators. The provider is
// expected to already carry retry behavior for fetches.
func NewService(registry *Registry, st *store.Store, p provider.Provider, defaultModel string) *Service {
	return &Service{
		registry:        registry,
		store:           st,
		provider:        p,
		defaultModel:    defaultModel,
		supportedModels: []string{defaultModel},
	}
}

// SupportedModels returns the models a job may request.
func (s *Service) SupportedModels() []string {
	out := make([]string, len(s.supportedModels))
	copy(out, s.supportedModels)
	return out
}

// DefaultModel returns the model used when a request names none.
func (s *Service) DefaultModel() string {
	return s.defaultModel
}

// ValidateModel resolves an optional model name against the supported set.
func (s *Service) ValidateModel(model string) (string, error) {
	if model == "" {
		return s.defaultModel, nil
	}
	for _, m := range s.supportedModels {
		if m == model {
			return model, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedModel, model)
}

// CreateJob allocates a job and issues numImages independent create calls
// to the provider. Each call is attempted regardless of how its siblings
// fare; failures are counted and logged, never raised. The returned job id
// is valid even when every creation failed (the job is then "failed").
func (s *Service) CreateJob(ctx context.Context, prompt string, numImages int, model string) (string, error) {
	validatedModel, err := s.ValidateModel(model)
	if err != nil {
		return "", err
	}

	jobID := uuid.New().String()
	job := &models.Job{
		ID:        jobID,
		Prompt:    prompt,
		NumImages: numImages,
		Model:     validatedModel,
		Status:    models.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	s.registry.Add(job)

	// Fan out one create call per requested image. Results are collected
	// by request index so the persisted id list preserves request order.
	results := make([]*models.Prediction, numImages)
	var wg sync.WaitGroup
	for i := 0; i < numImages; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pred, err := s.provider.CreatePrediction(ctx, prompt)
			if err != nil {
				log.Printf("Failed to create prediction %d/%d for job %s: %v", i+1, numImages, jobID, err)
				return
			}
			results[i] = pred
		}(i)
	}
	wg.Wait()

	var predictions []models.Prediction
	var predictionIDs []string
	for _, pred := range results {
		if pred == nil {
			continue
		}
		predictions = append(predictions, *pred)
		predictionIDs = append(predictionIDs, pred.PredictionID)
	}
	failedCreates := numImages - len(predictions)

	s.registry.update(jobID, func(job *models.Job) {
		job.Predictions = predictions
		job.FailedImages = failedCreates
		if len(predictions) == 0 {
			now := time.Now().UTC()
			job.Status = models.JobFailed
			job.CompletedAt = &now
		} else {
			job.Status = models.JobProcessing
		}
	})

	if failedCreates > 0 {
		log.Printf("Job %s: %d of %d prediction creations failed", jobID, failedCreates, numImages)
	}

	// Persist the id list in one batch. A storage failure degrades
	// durability, not availability: the job stays servable from memory,
	// though the poller will see an empty id list until the store recovers.
	if len(predictionIDs) > 0 {
		if err := s.store.AppendPredictionIDs(jobID, predictionIDs); err != nil {
			log.Printf("Failed to persist %d prediction ids for job %s: %v", len(predictionIDs), jobID, err)
		}
	}

	return jobID, nil
}

// ApplySnapshot folds one fresh provider snapshot into the job's record for
// that prediction and recomputes the aggregate status. Unknown jobs and
// unknown prediction ids are ignored.
func (s *Service) ApplySnapshot(jobID string, snap *models.PredictionSnapshot) {
	s.registry.update(jobID, func(job *models.Job) {
		for i := range job.Predictions {
			if job.Predictions[i].PredictionID != snap.PredictionID {
				continue
			}
			applySnapshotToRecord(&job.Predictions[i], snap)
			break
		}
		recomputeJob(job)
	})
}

// RefreshJob fetches the current state of every prediction concurrently and
// applies the results. Used on the direct query path so a GET reflects the
// provider's latest view without waiting for a polling pass.
func (s *Service) RefreshJob(ctx context.Context, jobID string) error {
	job, ok := s.registry.Get(jobID)
	if !ok {
		return ErrJobNotFound
	}

	var wg sync.WaitGroup
	snapshots := make([]*models.PredictionSnapshot, len(job.Predictions))
	for i, pred := range job.Predictions {
		wg.Add(1)
		go func(i int, predictionID string) {
			defer wg.Done()
			snap, err := s.provider.GetPrediction(ctx, predictionID)
			// A caller that went away mid-refresh produces cancellation
			// noise, not provider state; keep it out of the records.
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				// The retrying provider converts failures to data; an
				// error here is unexpected but must not abort siblings.
				log.Printf("Failed to refresh prediction %s: %v", predictionID, err)
				return
			}
			snapshots[i] = snap
		}(i, pred.PredictionID)
	}
	wg.Wait()

	for _, snap := range snapshots {
		if snap != nil {
			s.ApplySnapshot(jobID, snap)
		}
	}
	return nil
}

// GetJob returns a snapshot of a job, refreshing in-flight jobs from the
// provider first.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	job, ok := s.registry.Get(jobID)
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status == models.JobProcessing || job.Status == models.JobPartial {
		if err := s.RefreshJob(ctx, jobID); err == nil {
			job, _ = s.registry.Get(jobID)
		}
	}
	return job, nil
}

// ListJobs returns every known job, for the diagnostic endpoint.
func (s *Service) ListJobs() []*models.Job {
	return s.registry.All()
}

// EvictTerminalJobs drops terminal jobs older than the cutoff from memory
// and removes their persisted prediction rows.
func (s *Service) EvictTerminalJobs(cutoff time.Time) int {
	evicted := s.registry.DeleteTerminalOlderThan(cutoff)
	for _, jobID := range evicted {
		if err := s.store.DeletePredictionIDs(jobID); err != nil {
			log.Printf("Failed to delete persisted predictions for evicted job %s: %v", jobID, err)
		}
	}
	return len(evicted)
}

// applySnapshotToRecord copies provider-side state onto the job's record.
func applySnapshotToRecord(rec *models.Prediction, snap *models.PredictionSnapshot) {
	wasTerminal := models.PredictionTerminal(rec.Status)

	rec.Status = snap.Status
	if len(snap.Output) > 0 {
		url := snap.Output[0]
		rec.ImageURL = &url
	}
	if snap.Error != "" {
		msg := snap.Error
		rec.Error = &msg
	}
	if !wasTerminal && models.PredictionTerminal(snap.Status) && rec.CompletedAt == nil {
		now := time.Now().UTC()
		rec.CompletedAt = &now
	}
}

// recomputeJob re-derives the aggregate status and counters. CompletedAt is
// set exactly once, the first time the job reaches a terminal status, and a
// terminal job never reverts to processing.
func recomputeJob(job *models.Job) {
	succeeded, failed := countOutcomes(job.Predictions)
	job.CompletedImages = succeeded
	job.FailedImages = failed

	if job.CompletedAt != nil {
		return
	}

	status := AggregateStatus(job.Predictions)
	job.Status = status
	switch status {
	case models.JobCompleted, models.JobPartial, models.JobFailed:
		now := time.Now().UTC()
		job.CompletedAt = &now
	}
}
