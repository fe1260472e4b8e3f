// Client for the Replicate predictions API. Each requested image becomes one
// prediction; the poller fetches prediction state through this client.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vikramsd/fluxgen/internal/models"
	"github.com/vikramsd/fluxgen/internal/provider"
)

// Client implements the provider.Provider interface against the Replicate
// REST API.
type Client struct {
	client     *http.Client
	apiBaseURL string
	token      string
	model      string
}

// New creates a new Replicate client.
func New(baseURL, token, model string) *Client {
	return &Client{
		client:     &http.Client{Timeout: 20 * time.Second},
		apiBaseURL: baseURL,
		token:      token,
		model:      model,
	}
}

// CreatePrediction submits a single generation request for the configured model.
func (c *Client) CreatePrediction(ctx context.Context, prompt string) (*models.Prediction, error) {
	payload := createPredictionRequest{
		Model: c.model,
		Input: predictionInput{
			Prompt:           prompt,
			AspectRatio:      "1:1",
			OutputFormat:     "webp",
			OutputQuality:    80,
			SafetyTolerance:  2,
			PromptUpsampling: true,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/predictions", c.apiBaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp)
	}

	var apiResponse predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, &provider.APIError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("decode error: %v", err)}
	}

	return &models.Prediction{
		PredictionID: apiResponse.ID,
		Status:       apiResponse.Status,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// GetPrediction fetches the current state of a prediction by id.
func (c *Client) GetPrediction(ctx context.Context, predictionID string) (*models.PredictionSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/predictions/%s", c.apiBaseURL, predictionID), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp)
	}

	var apiResponse predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, &provider.APIError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("decode error: %v", err)}
	}

	snapshot := &models.PredictionSnapshot{
		PredictionID: predictionID,
		Status:       apiResponse.Status,
		URLs:         apiResponse.Output,
		Output:       apiResponse.Output,
	}
	if apiResponse.Error != nil {
		snapshot.Error = *apiResponse.Error
	}
	if apiResponse.DataRemoved {
		snapshot.DataRemoved = true
		snapshot.Note = "Output data has been removed by the provider (likely expired)"
	}
	return snapshot, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")
}

// apiError converts a non-2xx response into a classified APIError.
// Rate limits and 5xx responses are transient; other 4xx are permanent.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &provider.APIError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Transient:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
	}
}
