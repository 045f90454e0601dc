package series

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Worker periodically re-materializes every active series so the rolling
// horizon keeps moving forward. Materialization is idempotent per date, so
// overlapping or repeated sweeps are harmless.
type Worker struct {
	service  *Service
	interval time.Duration
	stopCh   chan struct{}
}

// NewWorker creates a new materialization worker.
func NewWorker(service *Service, interval time.Duration) *Worker {
	if interval == 0 {
		interval = time.Hour
	}
	return &Worker{
		service:  service,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background worker.
func (w *Worker) Start() {
	log.Info().Msg("Starting series materialization worker...")
	go w.loop()
}

// Stop gracefully stops the background worker.
func (w *Worker) Stop() {
	log.Info().Msg("Stopping series materialization worker...")
	close(w.stopCh)
}

func (w *Worker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	w.sweep()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := w.service.MaterializeAll(ctx); err != nil {
		log.Error().Err(err).Msg("Series sweep failed")
	}
}
