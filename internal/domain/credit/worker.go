package credit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Worker periodically applies the monthly allowances to every owner holding
// a balance. AllocateMonthly is idempotent per period, so overlapping or
// repeated runs are harmless.
type Worker struct {
	service  *Service
	interval time.Duration
	stopCh   chan struct{}
}

// NewWorker creates a new allocation worker.
func NewWorker(service *Service, interval time.Duration) *Worker {
	if interval == 0 {
		interval = 6 * time.Hour
	}
	return &Worker{
		service:  service,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background worker.
func (w *Worker) Start() {
	log.Info().Msg("Starting credit allocation worker...")
	go w.loop()
}

// Stop gracefully stops the background worker.
func (w *Worker) Stop() {
	log.Info().Msg("Stopping credit allocation worker...")
	close(w.stopCh)
}

func (w *Worker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	w.allocate()

	for {
		select {
		case <-ticker.C:
			w.allocate()
		case <-w.stopCh:
			return
		}
	}
}

// allocate sweeps every owner. One owner's failure never aborts the batch.
func (w *Worker) allocate() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	owners, err := w.service.ListOwnersWithBalances(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list owners for monthly allocation")
		return
	}

	var failed int
	for _, ownerID := range owners {
		if err := w.service.EnsureMonthly(ctx, ownerID); err != nil {
			failed++
			log.Error().Err(err).Str("owner_id", ownerID.String()).Msg("Monthly allocation failed")
		}
	}

	if failed > 0 {
		log.Warn().Int("owners", len(owners)).Int("failed", failed).Msg("Monthly allocation sweep finished with failures")
	} else if len(owners) > 0 {
		log.Debug().Int("owners", len(owners)).Msg("Monthly allocation sweep finished")
	}
}
