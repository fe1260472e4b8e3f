package core

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/vikramsd/fluxgen/internal/config"
	"github.com/vikramsd/fluxgen/internal/db"
	"github.com/vikramsd/fluxgen/internal/generation"
	"github.com/vikramsd/fluxgen/internal/monitor"
	"github.com/vikramsd/fluxgen/internal/provider"
	"github.com/vikramsd/fluxgen/internal/provider/replicate"
	"github.com/vikramsd/fluxgen/internal/store"
)

// App holds the core components of the application that are shared
// between the server and the background workers.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Store    *store.Store
	Provider provider.Provider
	Service  *generation.Service
	Hub      *monitor.Hub
	Version  string
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, running migrations,
// and wiring the prediction provider behind its retry policy.
func New(version string) (*App, error) {
	// Load configuration from config.yml
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize the database connection
	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	if err := db.RunMigrations(database); err != nil {
		// We can't proceed without a valid database schema.
		// Close the DB connection before failing.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	st := store.New(database)

	base := replicate.New(cfg.Replicate.BaseURL, cfg.Replicate.Token, cfg.Replicate.Model)
	retrying := provider.NewRetryingClient(base, provider.RetryConfig{
		MaxAttempts: cfg.Monitor.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.Monitor.RetryBaseDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(cfg.Monitor.RetryMaxDelaySeconds) * time.Second,
	})

	svc := generation.NewService(generation.NewRegistry(), st, retrying, cfg.Replicate.Model)
	hub := monitor.NewHub(svc, st, retrying, time.Duration(cfg.Monitor.PollIntervalSeconds)*time.Second)

	log.Println("Core application setup complete.")
	return &App{
		Config:   cfg,
		DB:       database,
		Store:    st,
		Provider: retrying,
		Service:  svc,
		Hub:      hub,
		Version:  version,
	}, nil
}

// Close gracefully closes the application's resources, like the DB connection.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
