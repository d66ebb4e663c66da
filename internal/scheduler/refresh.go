// Package scheduler runs the periodic refresh job that re-resolves every
// stored location through the full pipeline, keeping observation history
// warm for the degraded serving path.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"skycast/internal/types"
)

// refreshTimeout bounds a single location's resolution during a refresh run.
const refreshTimeout = 30 * time.Second

// WeatherResolver is the service surface the refresher needs.
type WeatherResolver interface {
	Resolve(ctx context.Context, ref types.LocationRef) (*types.ResolvedWeather, error)
	Locations(ctx context.Context) ([]types.Location, error)
}

// Refresher periodically re-resolves all stored locations with bounded
// concurrency.
type Refresher struct {
	scheduler   *gocron.Scheduler
	service     WeatherResolver
	logger      *slog.Logger
	interval    time.Duration
	concurrency int
}

// New creates a Refresher. Interval is how often a full refresh runs;
// concurrency bounds how many locations resolve in parallel.
func New(service WeatherResolver, interval time.Duration, concurrency int, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Refresher{
		scheduler:   gocron.NewScheduler(time.UTC),
		service:     service,
		logger:      logger,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (r *Refresher) Start() error {
	_, err := r.scheduler.Every(r.interval).Do(func() {
		r.runOnce(context.Background())
	})
	if err != nil {
		return err
	}

	r.scheduler.StartAsync()
	r.logger.Info("refresh scheduler started",
		"interval", r.interval,
		"concurrency", r.concurrency,
	)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (r *Refresher) Stop() {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
}

// runOnce resolves every stored location once. Failures are logged per
// location and never abort the run; the pipeline's own degradation handles
// provider outages.
func (r *Refresher) runOnce(ctx context.Context) {
	start := time.Now()

	locations, err := r.service.Locations(ctx)
	if err != nil {
		r.logger.Error("refresh run failed to list locations", "error", err)
		return
	}
	if len(locations) == 0 {
		r.logger.Info("refresh run skipped, no locations stored")
		return
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	failed := 0
	results := make(chan error, len(locations))

	for _, loc := range locations {
		g.Go(func() error {
			runCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
			defer cancel()

			_, err := r.service.Resolve(runCtx, types.ByID(loc.ID))
			if err != nil {
				r.logger.Warn("refresh failed for location",
					"location_id", loc.ID,
					"location", loc.Name,
					"error", err,
				)
			}
			results <- err
			return nil
		})
	}

	_ = g.Wait()
	close(results)
	for err := range results {
		if err != nil {
			failed++
		}
	}

	r.logger.Info("refresh run completed",
		"locations", len(locations),
		"failed", failed,
		"duration", time.Since(start),
	)
}
