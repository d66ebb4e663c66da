package weather

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"skycast/internal/external"
	"skycast/internal/types"
)

// PredictionInput carries everything a strategy may use to produce a
// short-horizon prediction. History is ordered newest first, as returned by
// the observation store.
type PredictionInput struct {
	Location *types.Location
	Current  types.Observation
	History  []types.Observation
}

// PredictionResult is the raw output of a strategy before the engine
// sanitizes and persists it.
type PredictionResult struct {
	TemperatureC float64
	Humidity     float64
	Provenance   types.Provenance
}

// PredictionStrategy produces a short-horizon prediction for a location.
type PredictionStrategy interface {
	Predict(ctx context.Context, in PredictionInput) (PredictionResult, error)
}

// Compile-time interface checks.
var (
	_ PredictionStrategy = (*ModelStrategy)(nil)
	_ PredictionStrategy = (*HeuristicStrategy)(nil)
)

// ModelStrategy delegates prediction to the external model service. The
// health probe runs first with a short deadline; a dead service fails the
// strategy immediately so the engine can fall back without waiting out the
// full inference timeout.
type ModelStrategy struct {
	client external.ModelPredictor
	logger *slog.Logger
}

// NewModelStrategy creates a ModelStrategy on top of the given predictor.
func NewModelStrategy(client external.ModelPredictor, logger *slog.Logger) *ModelStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelStrategy{client: client, logger: logger}
}

// Predict probes the model service and, when healthy, requests an inference
// built from the current reading and the chronological history.
func (s *ModelStrategy) Predict(ctx context.Context, in PredictionInput) (PredictionResult, error) {
	if !s.client.Healthy(ctx) {
		return PredictionResult{}, types.NewAppError(
			types.ErrCodeUpstreamModel,
			"model service failed the health probe",
			nil,
		)
	}

	req := &external.PredictRequest{
		CurrentWeather: external.ModelCurrentWeather{
			Temperature: in.Current.TemperatureC,
			Humidity:    in.Current.Humidity,
			WindSpeed:   in.Current.WindKph,
		},
		HistoricalData: historicalPoints(in.History),
	}

	pred, err := s.client.Predict(ctx, req)
	if err != nil {
		return PredictionResult{}, err
	}

	return PredictionResult{
		TemperatureC: pred.Temperature,
		Humidity:     pred.Humidity,
		Provenance:   types.ProvenanceModel,
	}, nil
}

// historicalPoints converts newest-first stored observations into the
// chronological series the model service expects.
func historicalPoints(history []types.Observation) []external.ModelHistoricalPoint {
	points := make([]external.ModelHistoricalPoint, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		obs := history[i]
		points = append(points, external.ModelHistoricalPoint{
			Timestamp:   obs.Timestamp.Format(time.RFC3339),
			Temperature: obs.TemperatureC,
			Humidity:    obs.Humidity,
			WindSpeed:   obs.WindKph,
		})
	}
	return points
}

// HeuristicStrategy is the local fallback: a bounded random perturbation of
// the current reading. Temperature moves by up to ±5%, humidity by up to
// ±10% clamped to the physical range. It never fails.
type HeuristicStrategy struct {
	rand *jitter
}

// NewHeuristicStrategy creates a HeuristicStrategy with its own random
// source.
func NewHeuristicStrategy() *HeuristicStrategy {
	return &HeuristicStrategy{rand: newJitter()}
}

// newHeuristicStrategyWithRand injects a shared or seeded random source.
func newHeuristicStrategyWithRand(rand *jitter) *HeuristicStrategy {
	return &HeuristicStrategy{rand: rand}
}

// Predict perturbs the current reading. The error return is always nil; it
// exists only to satisfy PredictionStrategy.
func (s *HeuristicStrategy) Predict(_ context.Context, in PredictionInput) (PredictionResult, error) {
	tempFactor := 1 + float64(s.rand.intBetween(-5, 5))/100
	humFactor := 1 + float64(s.rand.intBetween(-10, 10))/100

	return PredictionResult{
		TemperatureC: in.Current.TemperatureC * tempFactor,
		Humidity:     types.ClampFloat(in.Current.Humidity*humFactor, in.Current.Humidity, types.MinHumidity, types.MaxHumidity),
		Provenance:   types.ProvenanceHeuristic,
	}, nil
}

// PredictionStore is the persistence surface the engine needs.
type PredictionStore interface {
	Insert(ctx context.Context, pred *types.Prediction) error
	Latest(ctx context.Context, locationID string) (*types.Prediction, error)
}

// Engine runs the model strategy and falls back to the heuristic on any
// failure. Exactly one fallback attempt, no retries on either path.
type Engine struct {
	primary  PredictionStrategy
	fallback PredictionStrategy
	store    PredictionStore
	clock    types.Clock
	logger   *slog.Logger
}

// NewEngine wires the two strategies, the prediction store, and a clock.
func NewEngine(primary, fallback PredictionStrategy, store PredictionStore, clock types.Clock, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		primary:  primary,
		fallback: fallback,
		store:    store,
		clock:    clock,
		logger:   logger,
	}
}

// Predict produces, sanitizes, and persists a prediction for the input.
//
// The returned prediction is always non-nil. A non-nil error alongside it
// means persistence failed; the caller surfaces that as a warning instead of
// failing the request.
func (e *Engine) Predict(ctx context.Context, in PredictionInput) (*types.Prediction, error) {
	result, err := e.primary.Predict(ctx, in)
	if err != nil {
		e.logger.WarnContext(ctx, "model prediction failed, using heuristic fallback",
			"location_id", in.Location.ID,
			"error", err,
		)
		// The heuristic never fails.
		result, _ = e.fallback.Predict(ctx, in)
	}

	pred := &types.Prediction{
		ID:           "pred_" + uuid.New().String(),
		LocationID:   in.Location.ID,
		TemperatureC: types.ClampFloat(result.TemperatureC, in.Current.TemperatureC, types.MinTemperatureC, types.MaxTemperatureC),
		Humidity:     types.ClampFloat(result.Humidity, in.Current.Humidity, types.MinHumidity, types.MaxHumidity),
		Timestamp:    e.clock.Now(),
		Provenance:   result.Provenance,
	}

	if err := e.store.Insert(ctx, pred); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist prediction",
			"location_id", in.Location.ID,
			"provenance", string(pred.Provenance),
			"error", err,
		)
		return pred, err
	}

	return pred, nil
}
