package generation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vikramsd/fluxgen/internal/generation"
	"github.com/vikramsd/fluxgen/internal/models"
	"github.com/vikramsd/fluxgen/internal/provider/providertest"
	"github.com/vikramsd/fluxgen/internal/store"
	"github.com/vikramsd/fluxgen/internal/testutil"
)

const testModel = "black-forest-labs/flux-schnell"

func setupService(t *testing.T) (*generation.Service, *providertest.StubProvider, *store.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	stub := providertest.New()
	svc := generation.NewService(generation.NewRegistry(), st, stub, testModel)
	return svc, stub, st
}

func TestCreateJob_AllCreatesSucceed(t *testing.T) {
	svc, stub, st := setupService(t)

	jobID, err := svc.CreateJob(context.Background(), "a calm lake at dawn", 5, "")
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	assert.Equal(t, 5, stub.CreateCalls())

	job, err := svc.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobProcessing, job.Status)
	assert.Len(t, job.Predictions, 5)
	assert.Equal(t, testModel, job.Model)
	assert.Nil(t, job.CompletedAt)

	// The id list must be persisted in request order.
	ids, err := st.ListPredictionIDs(jobID)
	require.NoError(t, err)
	require.Len(t, ids, 5)
	for i, pred := range job.Predictions {
		assert.Equal(t, pred.PredictionID, ids[i])
	}
}

func TestCreateJob_PartialCreationFailure(t *testing.T) {
	svc, stub, _ := setupService(t)
	// Fail exactly 2 of the 5 creation attempts.
	boom := errors.New("provider exploded")
	stub.CreateErrs = []error{nil, boom, nil, boom, nil}

	jobID, err := svc.CreateJob(context.Background(), "five birds", 5, "")
	require.NoError(t, err, "partial creation failure must not fail the request")

	job, err := svc.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Len(t, job.Predictions, 3, "K-f records for f failures")
	assert.Equal(t, models.JobProcessing, job.Status)
}

func TestCreateJob_TotalCreationFailure(t *testing.T) {
	svc, stub, st := setupService(t)
	boom := errors.New("quota exceeded")
	stub.CreateErrs = []error{boom, boom, boom, boom, boom}

	jobID, err := svc.CreateJob(context.Background(), "nothing works", 5, "")
	require.NoError(t, err, "the caller still gets a job id back")

	job, err := svc.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Empty(t, job.Predictions)
	assert.NotNil(t, job.CompletedAt)

	exists, err := st.JobExists(jobID)
	require.NoError(t, err)
	assert.False(t, exists, "nothing to persist when every creation failed")
}

func TestCreateJob_UnsupportedModel(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.CreateJob(context.Background(), "a prompt", 5, "some-other-model")
	assert.ErrorIs(t, err, generation.ErrUnsupportedModel)
}

func TestGetJob_NotFound(t *testing.T) {
	svc, _, _ := setupService(t)
	_, err := svc.GetJob(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, generation.ErrJobNotFound)
}

// End-to-end status progression: 3 of 5 creations succeed, then predictions
// resolve across two polling passes.
func TestJobLifecycle_PartialCreateThenCompletion(t *testing.T) {
	svc, stub, _ := setupService(t)
	boom := errors.New("rejected")
	stub.CreateErrs = []error{nil, nil, boom, nil, boom}

	jobID, err := svc.CreateJob(context.Background(), "three survivors", 5, "")
	require.NoError(t, err)

	job, _ := svc.GetJob(context.Background(), jobID)
	require.Len(t, job.Predictions, 3)
	require.Equal(t, models.JobProcessing, job.Status)
	ids := []string{job.Predictions[0].PredictionID, job.Predictions[1].PredictionID, job.Predictions[2].PredictionID}

	// First pass: two succeed, one still processing.
	url := "https://replicate.delivery/a.webp"
	stub.SetSnapshot(&models.PredictionSnapshot{PredictionID: ids[0], Status: models.PredictionSucceeded, Output: []string{url}})
	stub.SetSnapshot(&models.PredictionSnapshot{PredictionID: ids[1], Status: models.PredictionSucceeded, Output: []string{url}})
	stub.SetSnapshot(&models.PredictionSnapshot{PredictionID: ids[2], Status: models.PredictionProcessing})

	require.NoError(t, svc.RefreshJob(context.Background(), jobID))
	job, _ = svc.GetJob(context.Background(), jobID)
	assert.Equal(t, models.JobProcessing, job.Status)
	assert.Equal(t, 2, job.CompletedImages)
	assert.Nil(t, job.CompletedAt)

	// Second pass: the last one lands.
	stub.SetSnapshot(&models.PredictionSnapshot{PredictionID: ids[2], Status: models.PredictionSucceeded, Output: []string{url}})
	require.NoError(t, svc.RefreshJob(context.Background(), jobID))

	job, _ = svc.GetJob(context.Background(), jobID)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 3, job.CompletedImages)
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.Predictions[0].ImageURL)
	assert.Equal(t, url, *job.Predictions[0].ImageURL)

	// A terminal job never reverts, and CompletedAt is set exactly once.
	completedAt := *job.CompletedAt
	stub.SetSnapshot(&models.PredictionSnapshot{PredictionID: ids[2], Status: models.PredictionProcessing})
	svc.ApplySnapshot(jobID, &models.PredictionSnapshot{PredictionID: ids[2], Status: models.PredictionProcessing})
	job, _ = svc.GetJob(context.Background(), jobID)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.True(t, completedAt.Equal(*job.CompletedAt))
}

func TestApplySnapshot_MixedTerminalIsPartial(t *testing.T) {
	svc, stub, _ := setupService(t)

	jobID, err := svc.CreateJob(context.Background(), "mixed outcome", 5, "")
	require.NoError(t, err)
	job, _ := svc.GetJob(context.Background(), jobID)

	for i, pred := range job.Predictions {
		snap := &models.PredictionSnapshot{PredictionID: pred.PredictionID}
		if i < 2 {
			snap.Status = models.PredictionSucceeded
			snap.Output = []string{"https://replicate.delivery/x.webp"}
		} else {
			snap.Status = models.PredictionFailed
			snap.Error = "NSFW content detected"
		}
		stub.SetSnapshot(snap)
		svc.ApplySnapshot(jobID, snap)
	}

	job, _ = svc.GetJob(context.Background(), jobID)
	assert.Equal(t, models.JobPartial, job.Status)
	assert.Equal(t, 2, job.CompletedImages)
	assert.Equal(t, 3, job.FailedImages)
	assert.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.Predictions[4].Error)
	assert.Equal(t, "NSFW content detected", *job.Predictions[4].Error)
}

func TestEvictTerminalJobs(t *testing.T) {
	svc, _, st := setupService(t)

	jobID, err := svc.CreateJob(context.Background(), "short lived", 5, "")
	require.NoError(t, err)
	job, _ := svc.GetJob(context.Background(), jobID)
	for _, pred := range job.Predictions {
		svc.ApplySnapshot(jobID, &models.PredictionSnapshot{
			PredictionID: pred.PredictionID,
			Status:       models.PredictionSucceeded,
			Output:       []string{"https://replicate.delivery/x.webp"},
		})
	}

	// Not old enough yet.
	n := svc.EvictTerminalJobs(time.Now().Add(-time.Hour))
	assert.Equal(t, 0, n)

	n = svc.EvictTerminalJobs(time.Now().Add(time.Hour))
	assert.Equal(t, 1, n)
	_, err = svc.GetJob(context.Background(), jobID)
	assert.ErrorIs(t, err, generation.ErrJobNotFound)

	exists, err := st.JobExists(jobID)
	require.NoError(t, err)
	assert.False(t, exists, "persisted rows are cleaned up with the job")
}
