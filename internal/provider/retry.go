package provider

import (
	"context"
	"log"
	"time"

	"github.com/vikramsd/fluxgen/internal/models"
)

// RetryConfig controls the backoff applied to prediction fetches.
type RetryConfig struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // ceiling for any single backoff sleep
}

// DefaultRetryConfig matches the provider's documented rate-limit guidance.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   4 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// RetryingClient wraps a Provider and retries transient GetPrediction
// failures with exponential backoff. Fetch failures never surface as errors:
// after the attempts are exhausted (or immediately, for permanent failures)
// the caller receives a snapshot with status "error" and the error text as
// data. This keeps one bad prediction from aborting a concurrent batch.
type RetryingClient struct {
	inner Provider
	cfg   RetryConfig
}

// NewRetryingClient wraps inner with the given retry configuration.
// Zero or negative values fall back to the defaults.
func NewRetryingClient(inner Provider, cfg RetryConfig) *RetryingClient {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	return &RetryingClient{inner: inner, cfg: cfg}
}

// CreatePrediction passes through unchanged. Creation-phase failures are the
// job creator's partial-failure domain, not the retry layer's.
func (c *RetryingClient) CreatePrediction(ctx context.Context, prompt string) (*models.Prediction, error) {
	return c.inner.CreatePrediction(ctx, prompt)
}

// GetPrediction fetches a prediction, retrying transient failures.
func (c *RetryingClient) GetPrediction(ctx context.Context, predictionID string) (*models.PredictionSnapshot, error) {
	var lastErr error
	delay := c.cfg.BaseDelay

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		snapshot, err := c.inner.GetPrediction(ctx, predictionID)
		if err == nil {
			return snapshot, nil
		}
		lastErr = err

		if !IsTransient(err) {
			log.Printf("Permanent error fetching prediction %s: %v", predictionID, err)
			return errorSnapshot(predictionID, err), nil
		}
		if ctx.Err() != nil {
			return errorSnapshot(predictionID, ctx.Err()), nil
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		log.Printf("Transient error fetching prediction %s (attempt %d/%d), retrying in %s: %v",
			predictionID, attempt, c.cfg.MaxAttempts, delay, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errorSnapshot(predictionID, ctx.Err()), nil
		}

		delay *= 2
		if delay > c.cfg.MaxDelay {
			delay = c.cfg.MaxDelay
		}
	}

	log.Printf("Giving up on prediction %s after %d attempts: %v", predictionID, c.cfg.MaxAttempts, lastErr)
	return errorSnapshot(predictionID, lastErr), nil
}

func errorSnapshot(predictionID string, err error) *models.PredictionSnapshot {
	return &models.PredictionSnapshot{
		PredictionID: predictionID,
		Status:       models.PredictionError,
		URLs:         []string{},
		Output:       []string{},
		Error:        err.Error(),
	}
}
