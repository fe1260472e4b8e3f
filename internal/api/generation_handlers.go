package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/vikramsd/fluxgen/internal/generation"
)

const maxPromptLength = 1000

// ErrInvalidRequest marks a generate request rejected before it reaches the
// service.
var ErrInvalidRequest = errors.New("invalid request")

// validateGenerateRequest normalizes the prompt and checks the request
// bounds. It returns the trimmed prompt.
func (s *Server) validateGenerateRequest(prompt string, numImages int) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if utf8.RuneCountInString(prompt) > maxPromptLength {
		return "", fmt.Errorf("%w: prompt must be at most %d characters", ErrInvalidRequest, maxPromptLength)
	}
	min, max := s.app.Config.Jobs.MinImages, s.app.Config.Jobs.MaxImages
	if numImages < min || numImages > max {
		return "", fmt.Errorf("%w: num_images must be between %d and %d", ErrInvalidRequest, min, max)
	}
	return prompt, nil
}

func (s *Server) handleCreateGeneration(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Prompt    string `json:"prompt"`
		NumImages int    `json:"num_images"`
		Model     string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	prompt, err := s.validateGenerateRequest(payload.Prompt, payload.NumImages)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.app.Service.CreateJob(r.Context(), prompt, payload.NumImages, payload.Model)
	if err != nil {
		if errors.Is(err, generation.ErrUnsupportedModel) {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to start generation")
		return
	}

	RespondWithJSON(w, http.StatusCreated, map[string]string{"job_id": jobID})
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.app.Service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, generation.ErrJobNotFound) {
			RespondWithError(w, http.StatusNotFound, "Job not found")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}
	RespondWithJSON(w, http.StatusOK, job)
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	jobs := s.app.Service.ListJobs()
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"models":  s.app.Service.SupportedModels(),
		"default": s.app.Service.DefaultModel(),
	})
}
