// Package provider defines the interface to the external prediction service
// and the error classification the retry layer depends on.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/vikramsd/fluxgen/internal/models"
)

// Provider is the external image generation service. It is treated as
// unreliable: calls may be slow, rate limited, or fail transiently.
type Provider interface {
	// CreatePrediction submits one generation request and returns the
	// provider-assigned prediction handle.
	CreatePrediction(ctx context.Context, prompt string) (*models.Prediction, error)
	// GetPrediction fetches the current state of a prediction.
	GetPrediction(ctx context.Context, predictionID string) (*models.PredictionSnapshot, error)
}

// APIError is an error response from the provider's HTTP API. Transient
// reports whether the call is worth retrying (rate limits and 5xx-class
// failures); anything else is permanent and converted to data immediately.
type APIError struct {
	StatusCode int
	Body       string
	Transient  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err represents a failure worth retrying.
// Transport-level errors (no HTTP response at all) count as transient.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient
	}
	// No structured API error means the request never got a response
	// (timeout, connection reset). Retry those.
	return true
}
