// A shared test server setup utility, which simplifies all API tests.

package testutil

import (
	"testing"
	"time"

	"github.com/vikramsd/fluxgen/internal/api"
	"github.com/vikramsd/fluxgen/internal/config"
	"github.com/vikramsd/fluxgen/internal/core"
	"github.com/vikramsd/fluxgen/internal/generation"
	"github.com/vikramsd/fluxgen/internal/monitor"
	"github.com/vikramsd/fluxgen/internal/provider/providertest"
	"github.com/vikramsd/fluxgen/internal/store"
)

// SetupTestApp wires a full core.App around an in-memory database and a
// scripted stub provider.
func SetupTestApp(t *testing.T) (*core.App, *providertest.StubProvider) {
	t.Helper()
	database := SetupTestDB(t)

	cfg := &config.Config{}
	cfg.Jobs.MinImages = 5
	cfg.Jobs.MaxImages = 20
	cfg.Monitor.PollIntervalSeconds = 10

	st := store.New(database)
	stub := providertest.New()
	svc := generation.NewService(generation.NewRegistry(), st, stub, "black-forest-labs/flux-schnell")
	hub := monitor.NewHub(svc, st, stub, time.Duration(cfg.Monitor.PollIntervalSeconds)*time.Second)

	app := &core.App{
		Config:   cfg,
		DB:       database,
		Store:    st,
		Provider: stub,
		Service:  svc,
		Hub:      hub,
		Version:  "test",
	}
	return app, stub
}

// SetupTestServer initializes a full core.App and api.Server for integration testing.
func SetupTestServer(t *testing.T) (*api.Server, *providertest.StubProvider) {
	t.Helper()
	app, stub := SetupTestApp(t)
	return api.NewServer(app), stub
}
