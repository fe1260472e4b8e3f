package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/vikramsd/fluxgen/internal/models"
)

// Poller drives the update loop for a single job. It runs one pass
// immediately on start, then one per cadence tick, until its context is
// cancelled. A signal on kick runs an extra pass between ticks.
type Poller struct {
	hub   *Hub
	jobID string
}

func (p *Poller) run(ctx context.Context, kick <-chan struct{}) {
	ticker := time.NewTicker(p.hub.interval)
	defer ticker.Stop()

	for {
		p.pass(ctx)
		select {
		case <-ctx.Done():
			log.Printf("Polling loop for job %s stopped", p.jobID)
			return
		case <-ticker.C:
		case <-kick:
		}
	}
}

// pass fetches every prediction of the job concurrently. Each result is
// broadcast as soon as it lands and folded into the job record; one
// prediction's outcome never delays or suppresses its siblings.
func (p *Poller) pass(ctx context.Context) {
	ids, err := p.hub.store.ListPredictionIDs(p.jobID)
	if err != nil {
		log.Printf("Failed to load prediction IDs for job %s: %v", p.jobID, err)
		return
	}
	if len(ids) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(predictionID string) {
			defer wg.Done()
			snap, err := p.hub.provider.GetPrediction(ctx, predictionID)
			// A teardown mid-fetch yields cancellation noise, not real
			// provider state; drop it rather than folding it in.
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				snap = &models.PredictionSnapshot{
					PredictionID: predictionID,
					Status:       models.PredictionError,
					URLs:         []string{},
					Error:        err.Error(),
				}
			}
			p.hub.Broadcast(p.jobID, &models.PredictionUpdate{
				Type: "prediction_update",
				Data: *snap,
			})
			p.hub.service.ApplySnapshot(p.jobID, snap)
		}(id)
	}
	wg.Wait()
}
