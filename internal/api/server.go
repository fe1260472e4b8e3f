// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vikramsd/fluxgen/internal/core"
	"github.com/vikramsd/fluxgen/internal/monitor"
	"github.com/vikramsd/fluxgen/internal/store"
)

// Server holds the dependencies for our API.
type Server struct {
	app   *core.App
	db    *sql.DB
	store *store.Store
}

// Store returns the store instance.
func (s *Server) Store() *store.Store {
	return s.store
}

// App returns the application the server was built around.
func (s *Server) App() *core.App {
	return s.app
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{
		app:   app,
		db:    app.DB,
		store: app.Store,
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs requests to the console
	r.Use(middleware.Recoverer) // Recovers from panics
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/api/users/login", s.handleLogin)
	r.Get("/api/version", s.handleGetVersion)

	// Generation endpoints are open; sessions gate only the account routes.
	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleCreateGeneration)
		r.Get("/generate", s.handleListGenerations)
		r.Get("/generate/{jobID}", s.handleGetGeneration)
		r.Get("/models", s.handleListModels)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.AuthMiddleware)

		r.Post("/api/users/logout", s.handleLogout)
		r.Get("/api/users/me", s.handleGetMe)
	})

	// WebSocket route for live per-job updates. A job evicted from memory
	// but still present in the store can still be watched; the poller reads
	// its id list from the store.
	r.Get("/ws/generate/{jobID}", func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if _, err := s.app.Service.GetJob(r.Context(), jobID); err != nil {
			known, storeErr := s.store.JobExists(jobID)
			if storeErr != nil || !known {
				RespondWithError(w, http.StatusNotFound, "Job not found")
				return
			}
		}
		monitor.ServeWS(s.app.Hub, jobID, w, r)
	})

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(); err != nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
			return
		}
		count, err := s.store.CountJobs()
		if err != nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Database query failed")
			return
		}
		RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":         "ok",
			"persisted_jobs": count,
		})
	})

	return r
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version})
}
