package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vikramsd/fluxgen/internal/models"
	"github.com/vikramsd/fluxgen/internal/testutil"
)

func postGenerate(t *testing.T, router http.Handler, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/api/generate", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCreateGenerationValidation(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	router := server.Router()

	testCases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing prompt", map[string]interface{}{"num_images": 5}},
		{"blank prompt", map[string]interface{}{"prompt": "   ", "num_images": 5}},
		{"prompt too long", map[string]interface{}{"prompt": strings.Repeat("x", 1001), "num_images": 5}},
		{"too few images", map[string]interface{}{"prompt": "a red bicycle", "num_images": 4}},
		{"too many images", map[string]interface{}{"prompt": "a red bicycle", "num_images": 21}},
		{"unknown model", map[string]interface{}{"prompt": "a red bicycle", "num_images": 5, "model": "acme/unknown"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postGenerate(t, router, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d (body: %s)", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestCreateAndFetchGeneration(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	router := server.Router()

	rr := postGenerate(t, router, map[string]interface{}{
		"prompt": "a red bicycle leaning on a wall", "num_images": 5,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d (body: %s)", rr.Code, rr.Body.String())
	}
	var created map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	jobID := created["job_id"]
	if jobID == "" {
		t.Fatal("Response did not include a job_id")
	}

	req, _ := http.NewRequest("GET", "/api/generate/"+jobID, nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 fetching job, got %d", rr.Code)
	}
	var job models.Job
	if err := json.NewDecoder(rr.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode job: %v", err)
	}
	if job.ID != jobID {
		t.Errorf("Expected job id %s, got %s", jobID, job.ID)
	}
	if job.Status != models.JobProcessing {
		t.Errorf("Expected status %s, got %s", models.JobProcessing, job.Status)
	}
	if len(job.Predictions) != 5 {
		t.Errorf("Expected 5 predictions, got %d", len(job.Predictions))
	}
}

func TestGetGenerationNotFound(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)

	req, _ := http.NewRequest("GET", "/api/generate/no-such-job", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestListGenerations(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	router := server.Router()

	for i := 0; i < 3; i++ {
		rr := postGenerate(t, router, map[string]interface{}{
			"prompt": fmt.Sprintf("study %d of a lighthouse", i), "num_images": 5,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("Failed to create job %d: status %d", i, rr.Code)
		}
	}

	req, _ := http.NewRequest("GET", "/api/generate", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var listing struct {
		Jobs  []models.Job `json:"jobs"`
		Total int          `json:"total"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&listing); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}
	if listing.Total != 3 || len(listing.Jobs) != 3 {
		t.Errorf("Expected 3 jobs, got total=%d len=%d", listing.Total, len(listing.Jobs))
	}
}

func TestListModels(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)

	req, _ := http.NewRequest("GET", "/api/models", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var body struct {
		Models  []string `json:"models"`
		Default string   `json:"default"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Default == "" || len(body.Models) == 0 {
		t.Errorf("Expected a default model and a non-empty model list, got %+v", body)
	}
}

func TestHealthAndVersion(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	router := server.Router()

	req, _ := http.NewRequest("GET", "/api/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected health status 200, got %d", rr.Code)
	}

	req, _ = http.NewRequest("GET", "/api/version", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected version status 200, got %d", rr.Code)
	}
	var version map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&version); err != nil {
		t.Fatalf("Failed to decode version: %v", err)
	}
	if version["version"] != "test" {
		t.Errorf("Expected version 'test', got '%s'", version["version"])
	}
}
