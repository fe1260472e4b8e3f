package generation

import "github.com/vikramsd/fluxgen/internal/models"

// AggregateStatus computes a job's overall status from its prediction
// records. It is a pure function of the record multiset: permuting the
// records never changes the result, and re-running it on the same records
// always yields the same status. The job status is never set any other way.
func AggregateStatus(predictions []models.Prediction) models.JobStatus {
	if len(predictions) == 0 {
		return models.JobFailed
	}

	succeeded, failed := 0, 0
	for _, p := range predictions {
		switch p.Status {
		case models.PredictionSucceeded:
			succeeded++
		case models.PredictionFailed, models.PredictionError:
			failed++
		}
	}

	total := len(predictions)
	switch {
	case succeeded == total:
		return models.JobCompleted
	case failed == total:
		return models.JobFailed
	case succeeded+failed == total:
		return models.JobPartial
	default:
		return models.JobProcessing
	}
}

// countOutcomes tallies succeeded and failed/error records.
func countOutcomes(predictions []models.Prediction) (succeeded, failed int) {
	for _, p := range predictions {
		switch p.Status {
		case models.PredictionSucceeded:
			succeeded++
		case models.PredictionFailed, models.PredictionError:
			failed++
		}
	}
	return succeeded, failed
}
