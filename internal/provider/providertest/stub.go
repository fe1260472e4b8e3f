// A stub provider for development and testing purposes. It simulates the
// prediction service without making network calls and lets tests script
// per-call outcomes.
package providertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vikramsd/fluxgen/internal/models"
)

// StubProvider implements provider.Provider with scripted behavior.
// The zero value succeeds on every call.
type StubProvider struct {
	mu sync.Mutex

	// CreateErrs, when non-empty, is consumed one entry per CreatePrediction
	// call; a nil entry means the call succeeds.
	CreateErrs []error
	// Snapshots maps prediction id to the snapshot GetPrediction returns.
	// Ids not present resolve to a "processing" snapshot.
	Snapshots map[string]*models.PredictionSnapshot
	// GetErrs maps prediction id to a queue of errors returned before the
	// snapshot is served. Used to exercise the retry path.
	GetErrs map[string][]error

	createCalls int
	getCalls    map[string]int
}

func New() *StubProvider {
	return &StubProvider{
		Snapshots: make(map[string]*models.PredictionSnapshot),
		GetErrs:   make(map[string][]error),
		getCalls:  make(map[string]int),
	}
}

func (p *StubProvider) CreatePrediction(ctx context.Context, prompt string) (*models.Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.createCalls
	p.createCalls++

	if n < len(p.CreateErrs) && p.CreateErrs[n] != nil {
		return nil, p.CreateErrs[n]
	}
	return &models.Prediction{
		PredictionID: fmt.Sprintf("stub-pred-%d", n+1),
		Status:       models.PredictionQueued,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (p *StubProvider) GetPrediction(ctx context.Context, predictionID string) (*models.PredictionSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.getCalls[predictionID]++

	if errs := p.GetErrs[predictionID]; len(errs) > 0 {
		err := errs[0]
		p.GetErrs[predictionID] = errs[1:]
		return nil, err
	}

	if snap, ok := p.Snapshots[predictionID]; ok {
		out := *snap
		return &out, nil
	}
	return &models.PredictionSnapshot{
		PredictionID: predictionID,
		Status:       models.PredictionProcessing,
		Output:       []string{},
	}, nil
}

// SetSnapshot scripts the snapshot returned for a prediction id.
func (p *StubProvider) SetSnapshot(snap *models.PredictionSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Snapshots[snap.PredictionID] = snap
}

// CreateCalls returns how many CreatePrediction calls have been made.
func (p *StubProvider) CreateCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createCalls
}

// GetCalls returns how many GetPrediction calls were made for one id.
func (p *StubProvider) GetCalls(predictionID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getCalls[predictionID]
}

// TotalGetCalls returns how many GetPrediction calls were made across all ids.
func (p *StubProvider) TotalGetCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.getCalls {
		total += n
	}
	return total
}
