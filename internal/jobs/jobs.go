// Package jobs runs the background maintenance schedule.
package jobs

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/vikramsd/fluxgen/internal/core"
)

// StartJobs starts the background job scheduler.
func StartJobs(app *core.App) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startRetentionJob(s, app)

	log.Println("Starting background job scheduler...")
	s.StartAsync()
	return s
}

// startRetentionJob schedules the hourly sweep that evicts finished jobs
// older than the configured retention window.
func startRetentionJob(s *gocron.Scheduler, app *core.App) {
	retention := app.Config.Jobs.RetentionHours
	if retention == 0 {
		log.Println("Job retention is 0, scheduled eviction is disabled.")
		return
	}

	jobId := "jobs-retention"
	log.Printf("Scheduling job: '%s' to evict finished jobs older than %d hours.", jobId, retention)

	_, err := s.Every(1).Hour().Do(func() {
		cutoff := time.Now().Add(-time.Duration(retention) * time.Hour)
		evicted := app.Service.EvictTerminalJobs(cutoff)
		if evicted > 0 {
			log.Printf("Job '%s' evicted %d finished jobs.", jobId, evicted)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", jobId, err)
	}
}
